package therapy

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayurclinic/clinic/internal/domain/identity"
	"github.com/ayurclinic/clinic/internal/domain/notification"
	"github.com/ayurclinic/clinic/internal/platform/apperror"
	"github.com/ayurclinic/clinic/internal/platform/auth"
	"github.com/ayurclinic/clinic/internal/platform/db"
	"github.com/ayurclinic/clinic/internal/platform/metrics"
	"github.com/ayurclinic/clinic/pkg/dates"
)

// Auditor appends an entry attributed to the caller on ctx.
type Auditor interface {
	Record(ctx context.Context, action, resourceID string, details map[string]any)
}

// PractitionerAssigner picks the least-loaded enabled practitioner.
type PractitionerAssigner interface {
	AssignPractitionerByLoad(ctx context.Context) (*identity.User, error)
}

// Notifier delivers in-app notifications on a best-effort basis.
type Notifier interface {
	Notify(ctx context.Context, userID, kind string, data map[string]string)
}

type Service struct {
	repo          Repository
	sessions      SessionRepository
	users         identity.UserRepository
	patients      identity.PatientRepository
	tx            db.Transactor
	audit         Auditor
	practitioners PractitionerAssigner
	notifier      Notifier
	metrics       *metrics.Metrics
	logger        zerolog.Logger
	now           func() time.Time
}

func NewService(repo Repository, sessions SessionRepository, users identity.UserRepository,
	patients identity.PatientRepository, tx db.Transactor, audit Auditor) *Service {
	return &Service{
		repo:     repo,
		sessions: sessions,
		users:    users,
		patients: patients,
		tx:       tx,
		audit:    audit,
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
}

func (s *Service) SetPractitionerAssigner(a PractitionerAssigner) { s.practitioners = a }
func (s *Service) SetNotifier(n Notifier)                         { s.notifier = n }
func (s *Service) SetMetrics(m *metrics.Metrics)                  { s.metrics = m }
func (s *Service) SetLogger(l zerolog.Logger)                     { s.logger = l.With().Str("component", "therapy").Logger() }

func (s *Service) notify(ctx context.Context, userID, kind string, data map[string]string) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, userID, kind, data)
	}
}

// requireStaff checks that id names an enabled user with role.
func (s *Service) requireStaff(ctx context.Context, id, role string) error {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, apperror.ErrNotFound) {
		return apperror.Invalid("%s %s does not exist", role, id)
	}
	if err != nil {
		return err
	}
	if u.Role != role || !u.Enabled {
		return apperror.Invalid("user %s is not an enabled %s", id, role)
	}
	return nil
}

func (s *Service) patientName(ctx context.Context, id string) string {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return ""
	}
	return p.Name
}

// withSessionIDs fills t.Sessions from the session store.
func (s *Service) withSessionIDs(ctx context.Context, t *Therapy) error {
	sessions, err := s.sessions.ListByTherapy(ctx, t.ID)
	if err != nil {
		return err
	}
	t.Sessions = sessionIDs(sessions)
	return nil
}

func sessionIDs(sessions []*Session) []string {
	ids := make([]string, 0, len(sessions))
	for _, sess := range sessions {
		ids = append(ids, sess.ID)
	}
	return ids
}

// -- Therapies --

type CreateInput struct {
	PatientID             string   `json:"patient_id"`
	DoctorID              string   `json:"doctor_id"`
	PrimaryPractitionerID string   `json:"primary_practitioner_id"`
	Type                  string   `json:"type"`
	Phase                 string   `json:"phase"`
	StartDate             string   `json:"start_date"`
	DurationDays          int      `json:"duration_days"`
	Room                  string   `json:"room"`
	Herbs                 []string `json:"herbs"`
	Notes                 string   `json:"notes"`
}

// CreateTherapy prescribes a therapy. Without an explicit practitioner the
// least-loaded one is chosen. A patient with no practitioner yet takes the
// therapy's.
func (s *Service) CreateTherapy(ctx context.Context, in CreateInput) (*Therapy, error) {
	if strings.TrimSpace(in.Type) == "" {
		return nil, apperror.Invalid("type is required")
	}
	if in.DurationDays < 0 {
		return nil, apperror.Invalid("duration_days must not be negative")
	}
	start := dates.Day(s.now())
	if in.StartDate != "" {
		d, err := dates.Parse(in.StartDate)
		if err != nil {
			return nil, apperror.Invalid("start_date: %s", err.Error())
		}
		start = d
	}

	patient, err := s.patients.GetByID(ctx, in.PatientID)
	if err != nil {
		return nil, err
	}

	if in.DoctorID == "" && auth.PrimaryRole(ctx) == auth.RoleDoctor {
		in.DoctorID = auth.UserIDFromContext(ctx)
	}
	if in.DoctorID == "" {
		in.DoctorID = patient.AssignedDoctorID
	}
	if err := s.requireStaff(ctx, in.DoctorID, auth.RoleDoctor); err != nil {
		return nil, err
	}

	autoAssigned := false
	if in.PrimaryPractitionerID == "" {
		if s.practitioners == nil {
			return nil, apperror.Invalid("primary_practitioner_id is required")
		}
		p, err := s.practitioners.AssignPractitionerByLoad(ctx)
		if err != nil {
			return nil, err
		}
		in.PrimaryPractitionerID = p.ID
		autoAssigned = true
	} else if err := s.requireStaff(ctx, in.PrimaryPractitionerID, auth.RolePractitioner); err != nil {
		return nil, err
	}

	herbs := in.Herbs
	if herbs == nil {
		herbs = []string{}
	}
	t := &Therapy{
		ID:                    uuid.New().String(),
		PatientID:             patient.ID,
		DoctorID:              in.DoctorID,
		PrimaryPractitionerID: in.PrimaryPractitionerID,
		Type:                  strings.TrimSpace(in.Type),
		Phase:                 in.Phase,
		StartDate:             start,
		DurationDays:          in.DurationDays,
		Room:                  in.Room,
		Herbs:                 herbs,
		Status:                StatusScheduled,
		Notes:                 in.Notes,
		Sessions:              []string{},
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, t); err != nil {
			return err
		}
		if patient.AssignedPractitionerID == "" {
			patient.AssignedPractitionerID = t.PrimaryPractitionerID
			return s.patients.Update(ctx, patient)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if autoAssigned {
		s.metrics.IncAssignment(auth.RolePractitioner, "therapy")
	}
	s.audit.Record(ctx, "ASSIGN_THERAPY", t.ID, map[string]any{
		"patient_id":      t.PatientID,
		"practitioner_id": t.PrimaryPractitionerID,
		"type":            t.Type,
		"auto_assigned":   autoAssigned,
	})
	s.notify(ctx, t.PrimaryPractitionerID, notification.KindTherapyAssigned, map[string]string{
		"therapy_type": t.Type,
		"patient_name": patient.Name,
		"start_date":   t.StartDate.Format(dates.DateLayout),
		"room":         t.Room,
	})
	return t, nil
}

func (s *Service) GetTherapy(ctx context.Context, id string) (*Therapy, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.withSessionIDs(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) ListTherapies(ctx context.Context, f Filter) ([]*Therapy, error) {
	if f.Status != "" && !ValidStatus(f.Status) {
		return nil, apperror.Invalid("unknown status %q", f.Status)
	}
	list, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	for _, t := range list {
		if err := s.withSessionIDs(ctx, t); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (s *Service) ListSessions(ctx context.Context, therapyID string) ([]*Session, error) {
	if _, err := s.repo.GetByID(ctx, therapyID); err != nil {
		return nil, err
	}
	return s.sessions.ListByTherapy(ctx, therapyID)
}

// RecordSession stores a visit and advances the therapy's progress and
// status from all of its sessions. A missing therapy fails before anything
// is written.
func (s *Service) RecordSession(ctx context.Context, therapyID string, in SessionInput, practitionerID string) (*Session, *Therapy, error) {
	progress := 0
	if in.ProgressPercent != nil {
		progress = *in.ProgressPercent
	}
	if progress < 0 || progress > 100 {
		return nil, nil, apperror.Invalid("progress_percent must be between 0 and 100")
	}
	attended := true
	if in.Attended != nil {
		attended = *in.Attended
	}
	now := s.now().UTC()
	date := now
	if in.Date != nil {
		date = in.Date.UTC()
	}

	sess := &Session{
		ID:              uuid.New().String(),
		TherapyID:       therapyID,
		Date:            date,
		PractitionerID:  practitionerID,
		Notes:           in.Notes,
		ProgressPercent: progress,
		Attended:        attended,
		Vitals:          in.Vitals,
		Attachments:     in.Attachments,
		Symptoms:        in.Symptoms,
	}
	if sess.Attachments == nil {
		sess.Attachments = []Attachment{}
	}
	if sess.Symptoms == nil {
		sess.Symptoms = []string{}
	}

	var t *Therapy
	completed := false
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		t, err = s.repo.GetForUpdate(ctx, therapyID)
		if err != nil {
			return err
		}
		if t.Status == StatusCancelled {
			return apperror.Conflict("therapy %s is cancelled", t.ID)
		}
		sess.PatientID = t.PatientID
		if sess.PractitionerID == "" {
			sess.PractitionerID = t.PrimaryPractitionerID
		}
		if err := s.sessions.Create(ctx, sess); err != nil {
			return err
		}
		all, err := s.sessions.ListByTherapy(ctx, t.ID)
		if err != nil {
			return err
		}
		completed = advance(t, all, now)
		t.Sessions = sessionIDs(all)
		return s.repo.Update(ctx, t)
	})
	if err != nil {
		return nil, nil, err
	}

	s.metrics.IncSessionRecorded(attended)
	s.audit.Record(ctx, "RECORD_SESSION", sess.ID, map[string]any{
		"therapy_id":       t.ID,
		"patient_id":       t.PatientID,
		"attended":         attended,
		"session_progress": progress,
		"therapy_progress": t.ProgressPercent,
		"status":           t.Status,
	})
	if completed {
		s.metrics.IncTherapyCompleted()
		s.logger.Info().Str("therapy_id", t.ID).Int("sessions", len(t.Sessions)).Msg("therapy completed")
		s.notify(ctx, t.DoctorID, notification.KindTherapyCompleted, map[string]string{
			"therapy_type": t.Type,
			"patient_name": s.patientName(ctx, t.PatientID),
			"progress":     strconv.Itoa(t.ProgressPercent),
		})
	}
	return sess, t, nil
}

// CancelTherapy ends a SCHEDULED or ONGOING therapy.
func (s *Service) CancelTherapy(ctx context.Context, id, reason string) (*Therapy, error) {
	var t *Therapy
	var previous string
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		t, err = s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !Active(t.Status) {
			return apperror.Conflict("therapy %s is %s", t.ID, t.Status)
		}
		previous = t.Status
		t.Status = StatusCancelled
		return s.repo.Update(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	if err := s.withSessionIDs(ctx, t); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, "CANCEL_THERAPY", t.ID, map[string]any{
		"previous_status": previous,
		"reason":          reason,
	})
	return t, nil
}

// ReassignTherapy hands an active therapy to another practitioner.
func (s *Service) ReassignTherapy(ctx context.Context, id, practitionerID string) (*Therapy, error) {
	if err := s.requireStaff(ctx, practitionerID, auth.RolePractitioner); err != nil {
		return nil, err
	}

	var t *Therapy
	var from string
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		t, err = s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !Active(t.Status) {
			return apperror.Conflict("therapy %s is %s", t.ID, t.Status)
		}
		from = t.PrimaryPractitionerID
		if from == practitionerID {
			return nil
		}
		t.PrimaryPractitionerID = practitionerID
		return s.repo.Update(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	if err := s.withSessionIDs(ctx, t); err != nil {
		return nil, err
	}
	if from == practitionerID {
		return t, nil
	}

	s.audit.Record(ctx, "REASSIGN_THERAPY", t.ID, map[string]any{
		"from_practitioner_id": from,
		"to_practitioner_id":   practitionerID,
	})
	s.notify(ctx, practitionerID, notification.KindTherapyReassigned, map[string]string{
		"therapy_type": t.Type,
		"patient_name": s.patientName(ctx, t.PatientID),
	})
	return t, nil
}
