package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const txKey contextKey = "db_tx"

// Querier is the subset of pgx shared by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx.
// Postgres repositories run every statement through one.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// QuerierFromContext returns the transaction opened by PGTransactor.InTx, or
// nil when the call is not running inside one.
func QuerierFromContext(ctx context.Context) Querier {
	tx, _ := ctx.Value(txKey).(pgx.Tx)
	if tx == nil {
		return nil
	}
	return tx
}

// Transactor runs fn so that every repository call made with the ctx it
// receives commits or rolls back together.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PGTransactor opens a pgx transaction and carries it in the context.
type PGTransactor struct {
	pool *pgxpool.Pool
}

func NewPGTransactor(pool *pgxpool.Pool) *PGTransactor {
	return &PGTransactor{pool: pool}
}

// InTx joins an enclosing transaction when ctx already carries one.
func (t *PGTransactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if QuerierFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(context.WithValue(ctx, txKey, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// NopTransactor runs fn directly. It backs the in-memory store driver, whose
// repositories apply each write immediately.
type NopTransactor struct{}

func (NopTransactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
