// Package driver provides database driver abstractions for ctxoffload.
//
// This package defines the interfaces that database drivers must implement
// to back storage.SQLBackend. It enables support for multiple database
// backends (pgx/v5, database/sql) behind one SQL implementation.
package driver

import "errors"

// ErrNoRows is returned by Row.Scan when a query matched no rows. Drivers
// translate their native sentinel (pgx.ErrNoRows, sql.ErrNoRows) into it.
var ErrNoRows = errors.New("no rows in result set")

// Driver provides database operations for the SQL blob backend.
//
// Implementations should be created using the driver-specific New() functions:
//   - github.com/youssefsiam38/ctxoffload/driver/pgxv5.New(pool)
//   - github.com/youssefsiam38/ctxoffload/driver/databasesql.New(db)
type Driver interface {
	// GetExecutor returns an executor for non-transactional operations.
	// The returned Executor uses the underlying connection pool.
	GetExecutor() Executor

	// PoolIsSet returns true if the driver has a database pool configured.
	PoolIsSet() bool

	// QuoteIdentifier quotes a table or column name for safe interpolation
	// into SQL text.
	QuoteIdentifier(name string) string
}
