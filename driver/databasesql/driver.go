// Package databasesql provides a database/sql driver implementation for ctxoffload.
//
// The package registers lib/pq, so callers can open connections with
// sql.Open("postgres", connStr).
package databasesql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/youssefsiam38/ctxoffload/driver"
)

// Driver implements driver.Driver using database/sql.
type Driver struct {
	db *sql.DB
}

// New creates a new database/sql driver using the provided connection.
func New(db *sql.DB) *Driver {
	return &Driver{db: db}
}

// Open opens a PostgreSQL connection through lib/pq and wraps it in a Driver.
func Open(connStr string) (*Driver, error) {
	connector, err := pq.NewConnector(connStr)
	if err != nil {
		return nil, err
	}
	return New(sql.OpenDB(connector)), nil
}

// GetExecutor returns an executor for non-transactional operations.
func (d *Driver) GetExecutor() driver.Executor {
	return &Executor{db: d.db}
}

// PoolIsSet returns true if the driver has a database connection configured.
func (d *Driver) PoolIsSet() bool {
	return d.db != nil
}

// QuoteIdentifier quotes name using lib/pq.
func (d *Driver) QuoteIdentifier(name string) string {
	return pq.QuoteIdentifier(name)
}

// DB returns the underlying database connection.
func (d *Driver) DB() *sql.DB {
	return d.db
}

// Close closes the underlying connection.
func (d *Driver) Close() error {
	return d.db.Close()
}

// Executor wraps *sql.DB for non-transactional operations.
type Executor struct {
	db *sql.DB
}

// Exec executes a query that doesn't return rows.
func (e *Executor) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := e.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// QueryRow executes a query that returns at most one row.
func (e *Executor) QueryRow(ctx context.Context, query string, args ...any) driver.Row {
	return &rowWrapper{row: e.db.QueryRowContext(ctx, query, args...)}
}

// rowWrapper translates sql.ErrNoRows into driver.ErrNoRows.
type rowWrapper struct {
	row *sql.Row
}

func (r *rowWrapper) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return driver.ErrNoRows
	}
	return err
}

// Compile-time check
var _ driver.Driver = (*Driver)(nil)
