package staffing

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayurclinic/clinic/internal/domain/identity"
	"github.com/ayurclinic/clinic/internal/domain/notification"
	"github.com/ayurclinic/clinic/internal/domain/therapy"
	"github.com/ayurclinic/clinic/internal/platform/apperror"
	"github.com/ayurclinic/clinic/internal/platform/audit"
	"github.com/ayurclinic/clinic/internal/platform/auth"
	"github.com/ayurclinic/clinic/internal/platform/db"
)

type sent struct {
	to   string
	kind string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sent
}

func (n *recordingNotifier) Notify(_ context.Context, userID, kind string, _ map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sent{to: userID, kind: kind})
}

func (n *recordingNotifier) NotifyRole(_ context.Context, role, kind string, _ map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sent{to: "role:" + role, kind: kind})
}

type fixture struct {
	svc       *Service
	users     identity.UserRepository
	patients  identity.PatientRepository
	therapies therapy.Repository
	leaves    LeaveRepository
	log       *audit.Log
	notifier  *recordingNotifier
	seq       int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log, err := audit.NewLog(context.Background(), audit.NewMemoryStore())
	require.NoError(t, err)

	f := &fixture{
		users:     identity.NewUserRepoMemory(),
		patients:  identity.NewPatientRepoMemory(),
		therapies: therapy.NewRepoMemory(),
		leaves:    NewLeaveRepoMemory(),
		log:       log,
		notifier:  &recordingNotifier{},
	}
	f.svc = NewService(f.users, f.patients, f.therapies, f.leaves, db.NopTransactor{}, log)
	f.svc.SetNotifier(f.notifier)
	return f
}

func (f *fixture) staff(t *testing.T, id, role string, enabled bool) *identity.User {
	t.Helper()
	u := &identity.User{ID: id, Email: id + "@clinic.test", Name: id, Role: role, Enabled: enabled}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f *fixture) patientsFor(t *testing.T, doctorID, practitionerID string, n int) []*identity.Patient {
	t.Helper()
	var out []*identity.Patient
	for i := 0; i < n; i++ {
		f.seq++
		p := &identity.Patient{
			ID:                     fmt.Sprintf("pat-%d", f.seq),
			Name:                   fmt.Sprintf("Patient %d", f.seq),
			AssignedDoctorID:       doctorID,
			AssignedPractitionerID: practitionerID,
		}
		require.NoError(t, f.patients.Create(context.Background(), p))
		out = append(out, p)
	}
	return out
}

func adminCtx() context.Context {
	return auth.WithIdentity(context.Background(), "admin-1", auth.RoleAdmin)
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// -- AssignDoctorByLoad --

func TestAssignDoctorByLoad_LeastLoadFirstOnTie(t *testing.T) {
	f := newFixture(t)
	f.staff(t, "D1", auth.RoleDoctor, true)
	f.staff(t, "D2", auth.RoleDoctor, true)
	f.staff(t, "D3", auth.RoleDoctor, true)
	f.patientsFor(t, "D1", "", 3)
	f.patientsFor(t, "D2", "", 1)
	f.patientsFor(t, "D3", "", 1)

	for i := 0; i < 3; i++ {
		d, err := f.svc.AssignDoctorByLoad(context.Background(), false)
		require.NoError(t, err)
		assert.Equal(t, "D2", d.ID)
	}
}

func TestAssignDoctorByLoad_EmergencyGoesToSenior(t *testing.T) {
	f := newFixture(t)
	f.staff(t, "D1", auth.RoleDoctor, true)
	f.staff(t, "D2", auth.RoleDoctor, true)
	f.patientsFor(t, "D1", "", 10)

	d, err := f.svc.AssignDoctorByLoad(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "D1", d.ID)
}

func TestAssignDoctorByLoad_SkipsDisabled(t *testing.T) {
	f := newFixture(t)
	f.staff(t, "D1", auth.RoleDoctor, false)
	f.staff(t, "D2", auth.RoleDoctor, true)
	f.patientsFor(t, "D2", "", 4)

	d, err := f.svc.AssignDoctorByLoad(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "D2", d.ID)
}

func TestAssignDoctorByLoad_NoDoctors(t *testing.T) {
	f := newFixture(t)
	f.staff(t, "D1", auth.RoleDoctor, false)
	f.staff(t, "P1", auth.RolePractitioner, true)

	_, err := f.svc.AssignDoctorByLoad(context.Background(), false)
	assert.ErrorIs(t, err, apperror.ErrUnavailable)
	_, err = f.svc.AssignDoctorByLoad(context.Background(), true)
	assert.ErrorIs(t, err, apperror.ErrUnavailable)
}

func TestAssignPractitionerByLoad(t *testing.T) {
	f := newFixture(t)
	f.staff(t, "P1", auth.RolePractitioner, true)
	f.staff(t, "P2", auth.RolePractitioner, true)
	f.patientsFor(t, "", "P1", 2)

	p, err := f.svc.AssignPractitionerByLoad(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "P2", p.ID)
}

// -- AutoAssignOnLeave --

func TestAutoAssignOnLeave_ReassignsEveryPatient(t *testing.T) {
	f := newFixture(t)
	f.staff(t, "P", auth.RolePractitioner, true)
	f.staff(t, "Q", auth.RolePractitioner, true)
	f.staff(t, "R", auth.RolePractitioner, true)
	affected := f.patientsFor(t, "", "P", 3)

	res, err := f.svc.AutoAssignOnLeave(adminCtx(), "P", nil)
	require.NoError(t, err)
	require.Len(t, res.Reassigned, 3)
	for _, r := range res.Reassigned {
		assert.Equal(t, "P", r.OldPractitionerID)
		assert.NotEqual(t, "P", r.NewPractitionerID)
	}
	// Loads are recomputed per patient, so the batch is spread out.
	assert.Equal(t, "Q", res.Reassigned[0].NewPractitionerID)
	assert.Equal(t, "R", res.Reassigned[1].NewPractitionerID)
	assert.Equal(t, "Q", res.Reassigned[2].NewPractitionerID)

	left, err := f.patients.List(context.Background(), identity.PatientFilter{PractitionerID: "P"})
	require.NoError(t, err)
	assert.Empty(t, left)

	entries, err := f.log.Query(context.Background(), audit.Filter{Action: "AUTO_REASSIGN_PATIENT"})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, audit.SystemUserID, e.UserID)
		assert.Equal(t, audit.SystemRole, e.UserRole)
		assert.Equal(t, affected[i].ID, e.ResourceID)
	}
	assert.Contains(t, f.notifier.sent, sent{to: "R", kind: notification.KindPatientReassigned})
}

func TestAutoAssignOnLeave_MovesActiveTherapies(t *testing.T) {
	f := newFixture(t)
	f.staff(t, "P", auth.RolePractitioner, true)
	f.staff(t, "Q", auth.RolePractitioner, true)
	p := f.patientsFor(t, "", "P", 1)[0]
	ctx := context.Background()
	require.NoError(t, f.therapies.Create(ctx, &therapy.Therapy{ID: "t-active", PatientID: p.ID, PrimaryPractitionerID: "P", Status: therapy.StatusOngoing}))
	require.NoError(t, f.therapies.Create(ctx, &therapy.Therapy{ID: "t-done", PatientID: p.ID, PrimaryPractitionerID: "P", Status: therapy.StatusCompleted}))

	res, err := f.svc.AutoAssignOnLeave(adminCtx(), "P", nil)
	require.NoError(t, err)
	require.Len(t, res.Reassigned, 1)
	assert.Equal(t, 1, res.Reassigned[0].TherapiesMoved)

	active, err := f.therapies.GetByID(ctx, "t-active")
	require.NoError(t, err)
	assert.Equal(t, "Q", active.PrimaryPractitionerID)
	done, err := f.therapies.GetByID(ctx, "t-done")
	require.NoError(t, err)
	assert.Equal(t, "P", done.PrimaryPractitionerID)
}

func TestAutoAssignOnLeave_NoPatientsIsNoOp(t *testing.T) {
	f := newFixture(t)
	f.staff(t, "P", auth.RolePractitioner, true)

	res, err := f.svc.AutoAssignOnLeave(adminCtx(), "P", nil)
	require.NoError(t, err)
	assert.Empty(t, res.Reassigned)
	assert.Equal(t, int64(0), f.log.Len())
}

func TestAutoAssignOnLeave_OnlyPractitionerIsUnavailable(t *testing.T) {
	f := newFixture(t)
	f.staff(t, "P", auth.RolePractitioner, true)
	f.staff(t, "Q", auth.RolePractitioner, false)
	f.patientsFor(t, "", "P", 3)

	_, err := f.svc.AutoAssignOnLeave(adminCtx(), "P", nil)
	assert.ErrorIs(t, err, apperror.ErrUnavailable)

	still, err := f.patients.List(context.Background(), identity.PatientFilter{PractitionerID: "P"})
	require.NoError(t, err)
	assert.Len(t, still, 3)
	assert.Equal(t, int64(0), f.log.Len())
}

func TestAutoAssignOnLeave_RestrictedPool(t *testing.T) {
	f := newFixture(t)
	f.staff(t, "P", auth.RolePractitioner, true)
	f.staff(t, "Q", auth.RolePractitioner, true)
	f.staff(t, "R", auth.RolePractitioner, true)
	f.patientsFor(t, "", "P", 2)

	res, err := f.svc.AutoAssignOnLeave(adminCtx(), "P", []string{"R", "P"})
	require.NoError(t, err)
	for _, r := range res.Reassigned {
		assert.Equal(t, "R", r.NewPractitionerID)
	}

	f.patientsFor(t, "", "P", 1)
	_, err = f.svc.AutoAssignOnLeave(adminCtx(), "P", []string{})
	assert.ErrorIs(t, err, apperror.ErrUnavailable)
}

func TestAutoAssignOnLeave_UnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.AutoAssignOnLeave(adminCtx(), "ghost", nil)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

// -- Roster and availability --

func (f *fixture) approvedLeave(t *testing.T, userID, from, to string) *Leave {
	t.Helper()
	l := &Leave{ID: "leave-" + userID + from, UserID: userID, UserRole: auth.RolePractitioner,
		FromDate: day(from), ToDate: day(to), Status: LeaveApproved}
	require.NoError(t, f.leaves.Create(context.Background(), l))
	return l
}

func TestGetOnCallRoster(t *testing.T) {
	f := newFixture(t)
	f.staff(t, "D1", auth.RoleDoctor, true)
	f.staff(t, "D2", auth.RoleDoctor, true)
	f.staff(t, "P1", auth.RolePractitioner, true)
	f.staff(t, "P2", auth.RolePractitioner, true)
	f.staff(t, "P3", auth.RolePractitioner, false)
	f.patientsFor(t, "D1", "P2", 2)
	f.approvedLeave(t, "D2", "2026-03-01", "2026-03-05")
	f.approvedLeave(t, "P1", "2026-03-05", "2026-03-06")
	require.NoError(t, f.leaves.Create(context.Background(), &Leave{
		ID: "pending", UserID: "P2", FromDate: day("2026-03-01"), ToDate: day("2026-03-31"), Status: LeavePending,
	}))

	roster, err := f.svc.GetOnCallRoster(context.Background(), day("2026-03-05").Add(15*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "2026-03-05", roster.Date)
	require.Len(t, roster.AvailableDoctors, 1)
	assert.Equal(t, "D1", roster.AvailableDoctors[0].ID)
	assert.Equal(t, 2, roster.AvailableDoctors[0].Load)
	require.Len(t, roster.AvailablePractitioners, 1)
	assert.Equal(t, "P2", roster.AvailablePractitioners[0].ID)
	assert.Equal(t, 2, roster.AvailablePractitioners[0].Load)

	roster, err = f.svc.GetOnCallRoster(context.Background(), day("2026-03-07"))
	require.NoError(t, err)
	assert.Len(t, roster.AvailableDoctors, 2)
	assert.Len(t, roster.AvailablePractitioners, 2)
}

func TestGetPractitionerAvailability(t *testing.T) {
	f := newFixture(t)
	f.staff(t, "P1", auth.RolePractitioner, true)
	f.staff(t, "P2", auth.RolePractitioner, true)
	f.staff(t, "P3", auth.RolePractitioner, true)
	f.approvedLeave(t, "P1", "2026-03-10", "2026-03-12")
	f.approvedLeave(t, "P2", "2026-03-01", "2026-03-04")

	tests := []struct {
		name       string
		start, end string
		available  map[string]bool
	}{
		{"touching start edge", "2026-03-12", "2026-03-20", map[string]bool{"P1": false, "P2": true, "P3": true}},
		{"touching end edge", "2026-02-20", "2026-03-01", map[string]bool{"P1": true, "P2": false, "P3": true}},
		{"between leaves", "2026-03-05", "2026-03-09", map[string]bool{"P1": true, "P2": true, "P3": true}},
		{"spanning both", "2026-02-01", "2026-04-01", map[string]bool{"P1": false, "P2": false, "P3": true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := f.svc.GetPractitionerAvailability(context.Background(), day(tt.start), day(tt.end))
			require.NoError(t, err)
			require.Len(t, out, 3)
			for _, a := range out {
				assert.Equal(t, tt.available[a.PractitionerID], a.Available, a.PractitionerID)
				assert.Equal(t, !a.Available, len(a.ConflictingLeaves) > 0)
			}
		})
	}

	_, err := f.svc.GetPractitionerAvailability(context.Background(), day("2026-03-02"), day("2026-03-01"))
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

// -- Leave workflow --

func TestRequestLeave(t *testing.T) {
	f := newFixture(t)
	f.staff(t, "P1", auth.RolePractitioner, true)
	ctx := auth.WithIdentity(context.Background(), "P1", auth.RolePractitioner)

	l, err := f.svc.RequestLeave(ctx, LeaveInput{FromDate: "2026-03-01", ToDate: "2026-03-03", Reason: "family"})
	require.NoError(t, err)
	assert.Equal(t, LeavePending, l.Status)
	assert.Equal(t, auth.RolePractitioner, l.UserRole)
	assert.Contains(t, f.notifier.sent, sent{to: "role:admin", kind: notification.KindLeaveRequested})

	_, err = f.svc.RequestLeave(ctx, LeaveInput{FromDate: "2026-03-05", ToDate: "2026-03-01"})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = f.svc.RequestLeave(ctx, LeaveInput{UserID: "someone-else", FromDate: "2026-03-01", ToDate: "2026-03-01"})
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestApproveLeave_ReassignsPractitionerPatients(t *testing.T) {
	f := newFixture(t)
	f.staff(t, "P1", auth.RolePractitioner, true)
	f.staff(t, "P2", auth.RolePractitioner, true)
	f.patientsFor(t, "", "P1", 2)
	l, err := f.svc.RequestLeave(auth.WithIdentity(context.Background(), "P1", auth.RolePractitioner),
		LeaveInput{FromDate: "2026-03-01", ToDate: "2026-03-03"})
	require.NoError(t, err)

	decision, err := f.svc.ApproveLeave(adminCtx(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, LeaveApproved, decision.Leave.Status)
	assert.Equal(t, "admin-1", decision.Leave.ReviewedBy)
	require.NotNil(t, decision.Reassignment)
	assert.Len(t, decision.Reassignment.Reassigned, 2)
	assert.Empty(t, decision.ReassignmentError)

	_, err = f.svc.ApproveLeave(adminCtx(), l.ID)
	assert.ErrorIs(t, err, apperror.ErrConflict)
	_, err = f.svc.RejectLeave(adminCtx(), l.ID)
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestApproveLeave_NoCoverFlagsEmergency(t *testing.T) {
	f := newFixture(t)
	f.staff(t, "P1", auth.RolePractitioner, true)
	f.patientsFor(t, "", "P1", 2)
	l, err := f.svc.RequestLeave(auth.WithIdentity(context.Background(), "P1", auth.RolePractitioner),
		LeaveInput{FromDate: "2026-03-01", ToDate: "2026-03-03"})
	require.NoError(t, err)

	decision, err := f.svc.ApproveLeave(adminCtx(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, LeaveApproved, decision.Leave.Status)
	assert.True(t, decision.Leave.EmergencyCoverRequired)
	assert.NotEmpty(t, decision.ReassignmentError)
	assert.Contains(t, f.notifier.sent, sent{to: "role:admin", kind: notification.KindEmergencyCoverRequired})

	stored, err := f.leaves.GetByID(context.Background(), l.ID)
	require.NoError(t, err)
	assert.True(t, stored.EmergencyCoverRequired)

	still, err := f.patients.List(context.Background(), identity.PatientFilter{PractitionerID: "P1"})
	require.NoError(t, err)
	assert.Len(t, still, 2)
}

func TestApproveLeave_DoctorHasNoReassignment(t *testing.T) {
	f := newFixture(t)
	f.staff(t, "D1", auth.RoleDoctor, true)
	l, err := f.svc.RequestLeave(auth.WithIdentity(context.Background(), "D1", auth.RoleDoctor),
		LeaveInput{FromDate: "2026-03-01", ToDate: "2026-03-01"})
	require.NoError(t, err)

	decision, err := f.svc.ApproveLeave(adminCtx(), l.ID)
	require.NoError(t, err)
	assert.Nil(t, decision.Reassignment)
	assert.False(t, decision.Leave.EmergencyCoverRequired)
}

func TestRejectLeave(t *testing.T) {
	f := newFixture(t)
	f.staff(t, "R1", auth.RoleReception, true)
	l, err := f.svc.RequestLeave(auth.WithIdentity(context.Background(), "R1", auth.RoleReception),
		LeaveInput{FromDate: "2026-03-01", ToDate: "2026-03-02"})
	require.NoError(t, err)

	got, err := f.svc.RejectLeave(adminCtx(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, LeaveRejected, got.Status)
	assert.Contains(t, f.notifier.sent, sent{to: "R1", kind: notification.KindLeaveRejected})

	_, err = f.svc.RejectLeave(adminCtx(), "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	list, err := f.svc.ListLeaves(context.Background(), LeaveFilter{Status: LeaveRejected})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
