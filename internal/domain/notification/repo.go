package notification

import "context"

// Repository stores notifications. Listings are newest first.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]*Notification, error)
	// MarkRead returns apperror.ErrNotFound unless id belongs to userID.
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
}
