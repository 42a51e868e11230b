package therapy

import "context"

// Repository returns apperror.ErrNotFound for missing therapies. Listings
// are ordered by created_at, then id.
type Repository interface {
	Create(ctx context.Context, t *Therapy) error
	GetByID(ctx context.Context, id string) (*Therapy, error)
	// GetForUpdate reads t and holds it against concurrent writers until
	// the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (*Therapy, error)
	Update(ctx context.Context, t *Therapy) error
	List(ctx context.Context, f Filter) ([]*Therapy, error)
	// ReassignActive moves the SCHEDULED and ONGOING therapies of patientID
	// whose primary practitioner is from over to to, returning how many moved.
	ReassignActive(ctx context.Context, patientID, from, to string) (int, error)
}

// SessionRepository stores sessions. They are never modified once created.
type SessionRepository interface {
	Create(ctx context.Context, s *Session) error
	ListByTherapy(ctx context.Context, therapyID string) ([]*Session, error)
}
