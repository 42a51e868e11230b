package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore keeps the chain in the audit_log table. It always writes through
// the pool, never through a record-store transaction carried in ctx, so a
// rolled-back mutation cannot take a chained entry with it.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const auditCols = `seq, id, user_id, user_role, action, resource_id, details, timestamp, hash`

func (s *PGStore) scan(row pgx.Row) (*Entry, error) {
	var e Entry
	if err := row.Scan(&e.Seq, &e.ID, &e.UserID, &e.UserRole, &e.Action, &e.ResourceID,
		&e.Details, &e.Timestamp, &e.Hash); err != nil {
		return nil, err
	}
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Timestamp = e.Timestamp.UTC()
	return &e, nil
}

func (s *PGStore) Append(ctx context.Context, e *Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_log (`+auditCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.Seq, e.ID, e.UserID, e.UserRole, e.Action, e.ResourceID, e.Details, e.Timestamp, e.Hash)
	if err != nil {
		return fmt.Errorf("insert audit_log seq %d: %w", e.Seq, err)
	}
	return nil
}

func (s *PGStore) Last(ctx context.Context) (*Entry, error) {
	e, err := s.scan(s.pool.QueryRow(ctx, `SELECT `+auditCols+` FROM audit_log ORDER BY seq DESC LIMIT 1`))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read audit tail: %w", err)
	}
	return e, nil
}

func (s *PGStore) List(ctx context.Context, f Filter) ([]*Entry, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if f.StartDate != nil {
		add("timestamp >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		add("timestamp <= $%d", *f.EndDate)
	}

	query := `SELECT ` + auditCols + ` FROM audit_log`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY seq`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit_log: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := s.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit_log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PGStore) Truncate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE audit_log`); err != nil {
		return fmt.Errorf("truncate audit_log: %w", err)
	}
	return nil
}
