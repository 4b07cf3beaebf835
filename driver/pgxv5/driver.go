// Package pgxv5 provides a pgx/v5 driver implementation for ctxoffload.
//
// This is the recommended driver for the PostgreSQL blob backend.
//
// Usage:
//
//	pool, _ := pgxpool.New(ctx, databaseURL)
//	backend := storage.NewSQLBackend(pgxv5.New(pool), "")
package pgxv5

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/youssefsiam38/ctxoffload/driver"
)

// Driver implements driver.Driver for pgx/v5.
type Driver struct {
	pool *pgxpool.Pool
}

// New creates a new pgx/v5 driver with the given connection pool.
func New(pool *pgxpool.Pool) *Driver {
	return &Driver{pool: pool}
}

// GetExecutor returns an executor for non-transactional operations.
func (d *Driver) GetExecutor() driver.Executor {
	return &Executor{pool: d.pool}
}

// PoolIsSet returns true if the driver has a database pool configured.
func (d *Driver) PoolIsSet() bool {
	return d.pool != nil
}

// QuoteIdentifier quotes name using pgx identifier sanitisation.
func (d *Driver) QuoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// Pool returns the underlying pgxpool.Pool for advanced usage.
func (d *Driver) Pool() *pgxpool.Pool {
	return d.pool
}

// Executor wraps pgxpool.Pool for non-transactional operations.
type Executor struct {
	pool *pgxpool.Pool
}

// Exec executes a query that doesn't return rows.
func (e *Executor) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	result, err := e.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// QueryRow executes a query that returns at most one row.
func (e *Executor) QueryRow(ctx context.Context, sql string, args ...any) driver.Row {
	return &rowWrapper{row: e.pool.QueryRow(ctx, sql, args...)}
}

// rowWrapper translates pgx.ErrNoRows into driver.ErrNoRows.
type rowWrapper struct {
	row pgx.Row
}

func (r *rowWrapper) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return driver.ErrNoRows
	}
	return err
}

// Compile-time check
var _ driver.Driver = (*Driver)(nil)
