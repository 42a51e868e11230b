package identity

import (
	"context"
)

// UserRepository returns apperror.ErrNotFound for missing users and
// apperror.ErrConflict for a duplicate email. Listings are in enumeration
// order: created_at, then id.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	List(ctx context.Context, role string) ([]*User, error)
	ListEnabledByRole(ctx context.Context, role string) ([]*User, error)
}

// PatientRepository returns apperror.ErrNotFound for missing patients.
// Listings are ordered by created_at, then id.
type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	List(ctx context.Context, f PatientFilter) ([]*Patient, error)
	// DoctorLoads and PractitionerLoads count patients per assigned staff id.
	DoctorLoads(ctx context.Context) (map[string]int, error)
	PractitionerLoads(ctx context.Context) (map[string]int, error)
}
