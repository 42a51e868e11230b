package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ayurclinic/clinic/internal/platform/apperror"
)

// In-memory repositories back STORE_DRIVER=memory and the package tests.
// Insertion order is enumeration order.

type userRepoMemory struct {
	mu    sync.RWMutex
	order []string
	users map[string]*User
}

func NewUserRepoMemory() UserRepository {
	return &userRepoMemory{users: make(map[string]*User)}
}

func (r *userRepoMemory) Create(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return apperror.Conflict("email %s is already registered", u.Email)
		}
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	cp := *u
	r.users[u.ID] = &cp
	r.order = append(r.order, u.ID)
	return nil
}

func (r *userRepoMemory) GetByID(_ context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (r *userRepoMemory) GetByEmail(_ context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (r *userRepoMemory) Update(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.users[u.ID]
	if !ok {
		return apperror.NotFound("user", u.ID)
	}
	u.UpdatedAt = time.Now().UTC()
	cp := *u
	cp.Email, cp.Role, cp.CreatedAt = existing.Email, existing.Role, existing.CreatedAt
	r.users[u.ID] = &cp
	return nil
}

func (r *userRepoMemory) filter(keep func(*User) bool) []*User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*User
	for _, id := range r.order {
		if u := r.users[id]; keep(u) {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out
}

func (r *userRepoMemory) List(_ context.Context, role string) ([]*User, error) {
	return r.filter(func(u *User) bool { return role == "" || u.Role == role }), nil
}

func (r *userRepoMemory) ListEnabledByRole(_ context.Context, role string) ([]*User, error) {
	return r.filter(func(u *User) bool { return u.Role == role && u.Enabled }), nil
}

type patientRepoMemory struct {
	mu       sync.RWMutex
	order    []string
	patients map[string]*Patient
}

func NewPatientRepoMemory() PatientRepository {
	return &patientRepoMemory{patients: make(map[string]*Patient)}
}

func (r *patientRepoMemory) Create(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	cp := *p
	r.patients[p.ID] = &cp
	r.order = append(r.order, p.ID)
	return nil
}

func (r *patientRepoMemory) GetByID(_ context.Context, id string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, apperror.NotFound("patient", id)
	}
	cp := *p
	return &cp, nil
}

func (r *patientRepoMemory) Update(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.patients[p.ID]
	if !ok {
		return apperror.NotFound("patient", p.ID)
	}
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	cp.CreatedAt = existing.CreatedAt
	r.patients[p.ID] = &cp
	return nil
}

func (r *patientRepoMemory) List(_ context.Context, f PatientFilter) ([]*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Patient
	for _, id := range r.order {
		p := r.patients[id]
		if f.DoctorID != "" && p.AssignedDoctorID != f.DoctorID {
			continue
		}
		if f.PractitionerID != "" && p.AssignedPractitionerID != f.PractitionerID {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (r *patientRepoMemory) loads(key func(*Patient) string) map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int)
	for _, p := range r.patients {
		if id := key(p); id != "" {
			out[id]++
		}
	}
	return out
}

func (r *patientRepoMemory) DoctorLoads(_ context.Context) (map[string]int, error) {
	return r.loads(func(p *Patient) string { return p.AssignedDoctorID }), nil
}

func (r *patientRepoMemory) PractitionerLoads(_ context.Context) (map[string]int, error) {
	return r.loads(func(p *Patient) string { return p.AssignedPractitionerID }), nil
}
