package therapy

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/ayurclinic/clinic/internal/platform/apperror"
)

type repoMemory struct {
	mu        sync.RWMutex
	order     []string
	therapies map[string]*Therapy
}

func NewRepoMemory() Repository {
	return &repoMemory{therapies: make(map[string]*Therapy)}
}

func copyTherapy(t *Therapy) *Therapy {
	cp := *t
	cp.Herbs = slices.Clone(t.Herbs)
	cp.Sessions = nil
	return &cp
}

func (r *repoMemory) Create(_ context.Context, t *Therapy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	r.therapies[t.ID] = copyTherapy(t)
	r.order = append(r.order, t.ID)
	return nil
}

func (r *repoMemory) GetByID(_ context.Context, id string) (*Therapy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.therapies[id]
	if !ok {
		return nil, apperror.NotFound("therapy", id)
	}
	return copyTherapy(t), nil
}

// GetForUpdate has no row lock to take in memory; writers race as they do
// on any in-memory record.
func (r *repoMemory) GetForUpdate(ctx context.Context, id string) (*Therapy, error) {
	return r.GetByID(ctx, id)
}

func (r *repoMemory) Update(_ context.Context, t *Therapy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.therapies[t.ID]
	if !ok {
		return apperror.NotFound("therapy", t.ID)
	}
	t.UpdatedAt = time.Now().UTC()
	cp := copyTherapy(t)
	cp.PatientID, cp.DoctorID, cp.Type = existing.PatientID, existing.DoctorID, existing.Type
	cp.StartDate, cp.DurationDays, cp.CreatedAt = existing.StartDate, existing.DurationDays, existing.CreatedAt
	r.therapies[t.ID] = cp
	return nil
}

func (r *repoMemory) List(_ context.Context, f Filter) ([]*Therapy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Therapy
	for _, id := range r.order {
		if t := r.therapies[id]; f.Matches(t) {
			out = append(out, copyTherapy(t))
		}
	}
	return out, nil
}

func (r *repoMemory) ReassignActive(_ context.Context, patientID, from, to string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	moved := 0
	now := time.Now().UTC()
	for _, t := range r.therapies {
		if t.PatientID == patientID && t.PrimaryPractitionerID == from && Active(t.Status) {
			t.PrimaryPractitionerID = to
			t.UpdatedAt = now
			moved++
		}
	}
	return moved, nil
}

type sessionRepoMemory struct {
	mu       sync.RWMutex
	sessions []*Session
}

func NewSessionRepoMemory() SessionRepository {
	return &sessionRepoMemory{}
}

func copySession(s *Session) *Session {
	cp := *s
	cp.Attachments = slices.Clone(s.Attachments)
	cp.Symptoms = slices.Clone(s.Symptoms)
	if s.Vitals != nil {
		v := *s.Vitals
		cp.Vitals = &v
	}
	return &cp
}

func (r *sessionRepoMemory) Create(_ context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.CreatedAt = time.Now().UTC()
	r.sessions = append(r.sessions, copySession(s))
	return nil
}

func (r *sessionRepoMemory) ListByTherapy(_ context.Context, therapyID string) ([]*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Session
	for _, s := range r.sessions {
		if s.TherapyID == therapyID {
			out = append(out, copySession(s))
		}
	}
	return out, nil
}
