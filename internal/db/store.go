package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/MacJediWizard/licensee-manager/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so the same query
// code serves reads outside a transaction and writes inside one.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// txStore implements store.Tx on top of a pgx transaction.
type txStore struct {
	q querier
}

var (
	_ store.Store = (*DB)(nil)
	_ store.Tx    = (*txStore)(nil)
)

// notFound converts pgx.ErrNoRows into store.ErrNotFound.
func notFound(err error, what string, id int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", what, id, store.ErrNotFound)
	}
	return fmt.Errorf("get %s %d: %w", what, id, err)
}

// conditionalMiss decides whether a zero-row conditional update was caused by
// a missing row or a stale version.
func conditionalMiss(ctx context.Context, q querier, table string, id int64) error {
	var exists bool
	err := q.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM "+table+" WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check %s %d exists: %w", table, id, err)
	}
	if !exists {
		return fmt.Errorf("%s %d: %w", table, id, store.ErrNotFound)
	}
	return fmt.Errorf("%s %d: %w", table, id, store.ErrConflict)
}
