package staffing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayurclinic/clinic/internal/platform/apperror"
	"github.com/ayurclinic/clinic/internal/platform/db"
)

type leaveRepoPG struct{ pool *pgxpool.Pool }

func NewLeaveRepoPG(pool *pgxpool.Pool) LeaveRepository { return &leaveRepoPG{pool: pool} }

func (r *leaveRepoPG) conn(ctx context.Context) db.Querier {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

const leaveCols = `id, user_id, user_role, from_date, to_date, reason, status,
	emergency_cover_required, reviewed_by, reviewed_at, created_at`

func (r *leaveRepoPG) scanLeave(row pgx.Row) (*Leave, error) {
	var l Leave
	err := row.Scan(&l.ID, &l.UserID, &l.UserRole, &l.FromDate, &l.ToDate, &l.Reason, &l.Status,
		&l.EmergencyCoverRequired, &l.ReviewedBy, &l.ReviewedAt, &l.CreatedAt)
	return &l, err
}

func (r *leaveRepoPG) Create(ctx context.Context, l *Leave) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO leaves (id, user_id, user_role, from_date, to_date, reason, status, emergency_cover_required)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at`,
		l.ID, l.UserID, l.UserRole, l.FromDate, l.ToDate, l.Reason, l.Status, l.EmergencyCoverRequired,
	).Scan(&l.CreatedAt)
}

func (r *leaveRepoPG) get(ctx context.Context, id, suffix string) (*Leave, error) {
	l, err := r.scanLeave(r.conn(ctx).QueryRow(ctx, `SELECT `+leaveCols+` FROM leaves WHERE id = $1`+suffix, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("leave", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get leave %s: %w", id, err)
	}
	return l, nil
}

func (r *leaveRepoPG) GetByID(ctx context.Context, id string) (*Leave, error) {
	return r.get(ctx, id, "")
}

func (r *leaveRepoPG) GetForUpdate(ctx context.Context, id string) (*Leave, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *leaveRepoPG) Update(ctx context.Context, l *Leave) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE leaves SET status=$2, emergency_cover_required=$3, reviewed_by=$4, reviewed_at=$5
		WHERE id = $1`,
		l.ID, l.Status, l.EmergencyCoverRequired, l.ReviewedBy, l.ReviewedAt)
	if err != nil {
		return fmt.Errorf("update leave %s: %w", l.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("leave", l.ID)
	}
	return nil
}

func (r *leaveRepoPG) list(ctx context.Context, query string, args ...any) ([]*Leave, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list leaves: %w", err)
	}
	defer rows.Close()
	var out []*Leave
	for rows.Next() {
		l, err := r.scanLeave(rows)
		if err != nil {
			return nil, fmt.Errorf("scan leave: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *leaveRepoPG) List(ctx context.Context, f LeaveFilter) ([]*Leave, error) {
	return r.list(ctx, `
		SELECT `+leaveCols+` FROM leaves
		WHERE ($1 = '' OR user_id = $1) AND ($2 = '' OR status = $2)
		ORDER BY from_date, created_at`, f.UserID, f.Status)
}

func (r *leaveRepoPG) ListApprovedOverlapping(ctx context.Context, start, end time.Time) ([]*Leave, error) {
	return r.list(ctx, `
		SELECT `+leaveCols+` FROM leaves
		WHERE status = 'APPROVED' AND to_date >= $1::date AND from_date <= $2::date
		ORDER BY from_date, created_at`, start, end)
}
