package notification

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayurclinic/clinic/internal/platform/apperror"
	"github.com/ayurclinic/clinic/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

func (r *repoPG) Create(ctx context.Context, n *Notification) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO notifications (id, user_id, kind, title, message, read)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		n.ID, n.UserID, n.Kind, n.Title, n.Message, n.Read,
	).Scan(&n.CreatedAt)
}

func (r *repoPG) ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]*Notification, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, user_id, kind, title, message, read, created_at FROM notifications
		WHERE user_id = $1 AND (NOT $2 OR NOT read)
		ORDER BY created_at DESC, id`, userID, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()
	var out []*Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

func (r *repoPG) MarkRead(ctx context.Context, userID, id string) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification %s read: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("notification", id)
	}
	return nil
}

func (r *repoPG) MarkAllRead(ctx context.Context, userID string) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE notifications SET read = TRUE WHERE user_id = $1 AND NOT read`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
