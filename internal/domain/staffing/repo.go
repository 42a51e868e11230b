package staffing

import (
	"context"
	"time"
)

// LeaveRepository returns apperror.ErrNotFound for missing leaves. Listings
// are ordered by from_date, then created_at.
type LeaveRepository interface {
	Create(ctx context.Context, l *Leave) error
	GetByID(ctx context.Context, id string) (*Leave, error)
	GetForUpdate(ctx context.Context, id string) (*Leave, error)
	Update(ctx context.Context, l *Leave) error
	List(ctx context.Context, f LeaveFilter) ([]*Leave, error)
	// ListApprovedOverlapping returns APPROVED leaves with
	// to_date >= start and from_date <= end.
	ListApprovedOverlapping(ctx context.Context, start, end time.Time) ([]*Leave, error)
}
