package staffing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayurclinic/clinic/internal/domain/identity"
	"github.com/ayurclinic/clinic/internal/domain/notification"
	"github.com/ayurclinic/clinic/internal/platform/apperror"
	"github.com/ayurclinic/clinic/internal/platform/audit"
	"github.com/ayurclinic/clinic/internal/platform/auth"
	"github.com/ayurclinic/clinic/internal/platform/db"
	"github.com/ayurclinic/clinic/internal/platform/metrics"
	"github.com/ayurclinic/clinic/pkg/dates"
)

// Auditor appends entries attributed to the caller on ctx, or to an
// explicit actor for work the system does on its own.
type Auditor interface {
	Record(ctx context.Context, action, resourceID string, details map[string]any)
	RecordAs(ctx context.Context, userID, userRole, action, resourceID string, details map[string]any)
}

// TherapyReassigner moves a patient's active therapies between practitioners.
type TherapyReassigner interface {
	ReassignActive(ctx context.Context, patientID, from, to string) (int, error)
}

// Notifier delivers in-app notifications on a best-effort basis.
type Notifier interface {
	Notify(ctx context.Context, userID, kind string, data map[string]string)
	NotifyRole(ctx context.Context, role, kind string, data map[string]string)
}

// Service routes patients to staff by live load and manages leave. Loads
// are recomputed from patient assignments on every decision.
type Service struct {
	users     identity.UserRepository
	patients  identity.PatientRepository
	therapies TherapyReassigner
	leaves    LeaveRepository
	tx        db.Transactor
	audit     Auditor
	notifier  Notifier
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(users identity.UserRepository, patients identity.PatientRepository, therapies TherapyReassigner,
	leaves LeaveRepository, tx db.Transactor, audit Auditor) *Service {
	return &Service{
		users:     users,
		patients:  patients,
		therapies: therapies,
		leaves:    leaves,
		tx:        tx,
		audit:     audit,
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
}

func (s *Service) SetNotifier(n Notifier)        { s.notifier = n }
func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }
func (s *Service) SetLogger(l zerolog.Logger)    { s.logger = l.With().Str("component", "staffing").Logger() }

func (s *Service) notify(ctx context.Context, userID, kind string, data map[string]string) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, userID, kind, data)
	}
}

func (s *Service) notifyAdmins(ctx context.Context, kind string, data map[string]string) {
	if s.notifier != nil {
		s.notifier.NotifyRole(ctx, auth.RoleAdmin, kind, data)
	}
}

// leastLoaded returns the first candidate with the minimum load.
func leastLoaded(candidates []*identity.User, loads map[string]int) *identity.User {
	var best *identity.User
	bestLoad := 0
	for _, c := range candidates {
		if l := loads[c.ID]; best == nil || l < bestLoad {
			best, bestLoad = c, l
		}
	}
	return best
}

// -- Assignment --

// AssignDoctorByLoad picks the enabled doctor with the fewest patients,
// first in enumeration order on a tie. Emergencies go to the senior doctor,
// which is the first enabled doctor in enumeration order.
func (s *Service) AssignDoctorByLoad(ctx context.Context, isEmergency bool) (*identity.User, error) {
	doctors, err := s.users.ListEnabledByRole(ctx, auth.RoleDoctor)
	if err != nil {
		return nil, err
	}
	if len(doctors) == 0 {
		return nil, fmt.Errorf("%w: no enabled doctor", apperror.ErrUnavailable)
	}
	if isEmergency {
		s.metrics.IncAssignment(auth.RoleDoctor, "emergency")
		return doctors[0], nil
	}

	loads, err := s.patients.DoctorLoads(ctx)
	if err != nil {
		return nil, err
	}
	s.metrics.IncAssignment(auth.RoleDoctor, "load")
	return leastLoaded(doctors, loads), nil
}

// AssignPractitionerByLoad applies the same least-load rule to practitioners.
func (s *Service) AssignPractitionerByLoad(ctx context.Context) (*identity.User, error) {
	practitioners, err := s.users.ListEnabledByRole(ctx, auth.RolePractitioner)
	if err != nil {
		return nil, err
	}
	if len(practitioners) == 0 {
		return nil, fmt.Errorf("%w: no enabled practitioner", apperror.ErrUnavailable)
	}
	loads, err := s.patients.PractitionerLoads(ctx)
	if err != nil {
		return nil, err
	}
	return leastLoaded(practitioners, loads), nil
}

// AutoAssignOnLeave moves every patient of leaveUserID to the least-loaded
// remaining practitioner, recomputing loads after each move. A nil
// available list means every enabled practitioner is a candidate. The batch
// is all-or-nothing; audit entries follow the commit.
func (s *Service) AutoAssignOnLeave(ctx context.Context, leaveUserID string, available []string) (*Reassignment, error) {
	if _, err := s.users.GetByID(ctx, leaveUserID); err != nil {
		return nil, err
	}

	result := &Reassignment{Reassigned: []Reassigned{}}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		result.Reassigned = result.Reassigned[:0]

		affected, err := s.patients.List(ctx, identity.PatientFilter{PractitionerID: leaveUserID})
		if err != nil {
			return err
		}
		if len(affected) == 0 {
			return nil
		}

		pool, err := s.candidatePool(ctx, leaveUserID, available)
		if err != nil {
			return err
		}

		for _, p := range affected {
			loads, err := s.patients.PractitionerLoads(ctx)
			if err != nil {
				return err
			}
			next := leastLoaded(pool, loads)

			p.AssignedPractitionerID = next.ID
			if err := s.patients.Update(ctx, p); err != nil {
				return err
			}
			moved, err := s.therapies.ReassignActive(ctx, p.ID, leaveUserID, next.ID)
			if err != nil {
				return err
			}
			result.Reassigned = append(result.Reassigned, Reassigned{
				PatientID:         p.ID,
				OldPractitionerID: leaveUserID,
				NewPractitionerID: next.ID,
				TherapiesMoved:    moved,
			})
		}
		return nil
	})
	if errors.Is(err, apperror.ErrUnavailable) {
		s.metrics.IncReassignmentUnavailable()
	}
	if err != nil {
		return nil, err
	}

	previous := s.userName(ctx, leaveUserID)
	for _, r := range result.Reassigned {
		s.metrics.IncAssignment(auth.RolePractitioner, "leave")
		s.audit.RecordAs(ctx, audit.SystemUserID, audit.SystemRole, "AUTO_REASSIGN_PATIENT", r.PatientID, map[string]any{
			"old_practitioner_id": r.OldPractitionerID,
			"new_practitioner_id": r.NewPractitionerID,
			"therapies_moved":     r.TherapiesMoved,
		})
		s.notify(ctx, r.NewPractitionerID, notification.KindPatientReassigned, map[string]string{
			"patient_name":  s.patientName(ctx, r.PatientID),
			"previous_name": previous,
		})
	}
	if len(result.Reassigned) > 0 {
		s.logger.Info().Str("user_id", leaveUserID).Int("patients", len(result.Reassigned)).Msg("patients reassigned for leave")
	}
	return result, nil
}

func (s *Service) candidatePool(ctx context.Context, leaveUserID string, available []string) ([]*identity.User, error) {
	practitioners, err := s.users.ListEnabledByRole(ctx, auth.RolePractitioner)
	if err != nil {
		return nil, err
	}
	var allowed map[string]bool
	if available != nil {
		allowed = make(map[string]bool, len(available))
		for _, id := range available {
			allowed[id] = true
		}
	}
	var pool []*identity.User
	for _, p := range practitioners {
		if p.ID == leaveUserID || (allowed != nil && !allowed[p.ID]) {
			continue
		}
		pool = append(pool, p)
	}
	if len(pool) == 0 {
		return nil, fmt.Errorf("%w: no practitioner can take over from %s", apperror.ErrUnavailable, leaveUserID)
	}
	return pool, nil
}

func (s *Service) userName(ctx context.Context, id string) string {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return id
	}
	return u.Name
}

func (s *Service) patientName(ctx context.Context, id string) string {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return id
	}
	return p.Name
}

// -- Roster and availability --

func (s *Service) onLeave(ctx context.Context, start, end time.Time) (map[string][]*Leave, error) {
	leaves, err := s.leaves.ListApprovedOverlapping(ctx, start, end)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]*Leave)
	for _, l := range leaves {
		out[l.UserID] = append(out[l.UserID], l)
	}
	return out, nil
}

func (s *Service) present(ctx context.Context, role string, away map[string][]*Leave, loads map[string]int) ([]StaffLoad, error) {
	staff, err := s.users.ListEnabledByRole(ctx, role)
	if err != nil {
		return nil, err
	}
	out := []StaffLoad{}
	for _, u := range staff {
		if len(away[u.ID]) > 0 {
			continue
		}
		out = append(out, StaffLoad{UserView: u.ToView(), Load: loads[u.ID]})
	}
	return out, nil
}

// GetOnCallRoster lists the enabled doctors and practitioners not on
// approved leave on date, each with their current load.
func (s *Service) GetOnCallRoster(ctx context.Context, date time.Time) (*Roster, error) {
	day := dates.Day(date)
	away, err := s.onLeave(ctx, day, day)
	if err != nil {
		return nil, err
	}
	doctorLoads, err := s.patients.DoctorLoads(ctx)
	if err != nil {
		return nil, err
	}
	practitionerLoads, err := s.patients.PractitionerLoads(ctx)
	if err != nil {
		return nil, err
	}

	roster := &Roster{Date: day.Format(dates.DateLayout)}
	if roster.AvailableDoctors, err = s.present(ctx, auth.RoleDoctor, away, doctorLoads); err != nil {
		return nil, err
	}
	if roster.AvailablePractitioners, err = s.present(ctx, auth.RolePractitioner, away, practitionerLoads); err != nil {
		return nil, err
	}
	return roster, nil
}

// GetPractitionerAvailability reports, for every enabled practitioner,
// the approved leaves overlapping [start, end].
func (s *Service) GetPractitionerAvailability(ctx context.Context, start, end time.Time) ([]Availability, error) {
	start, end = dates.Day(start), dates.Day(end)
	if end.Before(start) {
		return nil, apperror.Invalid("end_date must not be before start_date")
	}
	away, err := s.onLeave(ctx, start, end)
	if err != nil {
		return nil, err
	}
	practitioners, err := s.users.ListEnabledByRole(ctx, auth.RolePractitioner)
	if err != nil {
		return nil, err
	}
	out := make([]Availability, 0, len(practitioners))
	for _, p := range practitioners {
		conflicts := away[p.ID]
		if conflicts == nil {
			conflicts = []*Leave{}
		}
		out = append(out, Availability{
			PractitionerID:    p.ID,
			Name:              p.Name,
			Available:         len(conflicts) == 0,
			ConflictingLeaves: conflicts,
		})
	}
	return out, nil
}

// -- Leave --

type LeaveInput struct {
	UserID   string `json:"user_id"`
	FromDate string `json:"from_date"`
	ToDate   string `json:"to_date"`
	Reason   string `json:"reason"`
}

func leaveData(name string, l *Leave) map[string]string {
	return map[string]string{
		"user_name": name,
		"from_date": l.FromDate.Format(dates.DateLayout),
		"to_date":   l.ToDate.Format(dates.DateLayout),
	}
}

// RequestLeave files a PENDING leave for the caller. Admins may file on
// behalf of another staff member.
func (s *Service) RequestLeave(ctx context.Context, in LeaveInput) (*Leave, error) {
	userID := auth.UserIDFromContext(ctx)
	if in.UserID != "" && in.UserID != userID {
		if !auth.HasRole(ctx, auth.RoleAdmin) {
			return nil, fmt.Errorf("%w: only admins may request leave for another user", apperror.ErrForbidden)
		}
		userID = in.UserID
	}
	from, err := dates.Parse(in.FromDate)
	if err != nil {
		return nil, apperror.Invalid("from_date: %s", err.Error())
	}
	to, err := dates.Parse(in.ToDate)
	if err != nil {
		return nil, apperror.Invalid("to_date: %s", err.Error())
	}
	from, to = dates.Day(from), dates.Day(to)
	if to.Before(from) {
		return nil, apperror.Invalid("to_date must not be before from_date")
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Role == auth.RolePatient {
		return nil, apperror.Invalid("patients do not take leave")
	}

	l := &Leave{
		ID:       uuid.New().String(),
		UserID:   u.ID,
		UserRole: u.Role,
		FromDate: from,
		ToDate:   to,
		Reason:   in.Reason,
		Status:   LeavePending,
	}
	if err := s.leaves.Create(ctx, l); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, "REQUEST_LEAVE", l.ID, map[string]any{
		"user_id":   l.UserID,
		"from_date": l.FromDate.Format(dates.DateLayout),
		"to_date":   l.ToDate.Format(dates.DateLayout),
	})
	s.notifyAdmins(ctx, notification.KindLeaveRequested, leaveData(u.Name, l))
	return l, nil
}

func (s *Service) GetLeave(ctx context.Context, id string) (*Leave, error) {
	return s.leaves.GetByID(ctx, id)
}

func (s *Service) ListLeaves(ctx context.Context, f LeaveFilter) ([]*Leave, error) {
	if f.Status != "" && !ValidLeaveStatus(f.Status) {
		return nil, apperror.Invalid("unknown status %q", f.Status)
	}
	return s.leaves.List(ctx, f)
}

// review moves a PENDING leave to status.
func (s *Service) review(ctx context.Context, id, status string) (*Leave, error) {
	var l *Leave
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		l, err = s.leaves.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if l.Status != LeavePending {
			return apperror.Conflict("leave %s is already %s", l.ID, l.Status)
		}
		now := s.now().UTC()
		l.Status = status
		l.ReviewedBy = auth.UserIDFromContext(ctx)
		l.ReviewedAt = &now
		return s.leaves.Update(ctx, l)
	})
	return l, err
}

// ApproveLeave approves a pending leave. A practitioner's patients are then
// reassigned; when nobody can take them the approval stands, the leave is
// flagged as needing emergency cover and admins are told.
func (s *Service) ApproveLeave(ctx context.Context, id string) (*LeaveDecision, error) {
	l, err := s.review(ctx, id, LeaveApproved)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, "APPROVE_LEAVE", l.ID, map[string]any{"user_id": l.UserID})
	s.notify(ctx, l.UserID, notification.KindLeaveApproved, leaveData("", l))

	decision := &LeaveDecision{Leave: l}
	if l.UserRole != auth.RolePractitioner {
		return decision, nil
	}

	res, err := s.AutoAssignOnLeave(ctx, l.UserID, nil)
	switch {
	case err == nil:
		decision.Reassignment = res
	case errors.Is(err, apperror.ErrUnavailable):
		decision.ReassignmentError = err.Error()
		l.EmergencyCoverRequired = true
		if err := s.leaves.Update(ctx, l); err != nil {
			return nil, err
		}
		s.logger.Warn().Str("leave_id", l.ID).Str("user_id", l.UserID).Msg("no practitioner available, emergency cover required")
		s.audit.Record(ctx, "FLAG_EMERGENCY_COVER", l.ID, map[string]any{"user_id": l.UserID})
		s.notifyAdmins(ctx, notification.KindEmergencyCoverRequired, leaveData(s.userName(ctx, l.UserID), l))
	default:
		return nil, fmt.Errorf("reassign patients of %s: %w", l.UserID, err)
	}
	return decision, nil
}

func (s *Service) RejectLeave(ctx context.Context, id string) (*Leave, error) {
	l, err := s.review(ctx, id, LeaveRejected)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, "REJECT_LEAVE", l.ID, map[string]any{"user_id": l.UserID})
	s.notify(ctx, l.UserID, notification.KindLeaveRejected, leaveData("", l))
	return l, nil
}
