package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/youssefsiam38/ctxoffload/driver"
)

// DefaultObjectTable is the table used by SQLBackend when none is configured
const DefaultObjectTable = "ctxoffload_objects"

// SQLBackend stores blob objects in a PostgreSQL table through a driver.Driver
type SQLBackend struct {
	driver driver.Driver
	table  string
}

// NewSQLBackend creates a SQLBackend. An empty table uses DefaultObjectTable.
func NewSQLBackend(d driver.Driver, table string) *SQLBackend {
	if table == "" {
		table = DefaultObjectTable
	}
	return &SQLBackend{driver: d, table: table}
}

// Migrate creates the object table if it does not exist.
func (b *SQLBackend) Migrate(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			name         TEXT PRIMARY KEY,
			content_type TEXT NOT NULL DEFAULT '',
			body         BYTEA NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`, b.driver.QuoteIdentifier(b.table))

	if _, err := b.driver.GetExecutor().Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create object table: %w", err)
	}
	return nil
}

// Put implements Backend. The upsert makes create-or-overwrite atomic.
func (b *SQLBackend) Put(ctx context.Context, name string, body []byte, contentType string) (string, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (name, content_type, body, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (name) DO UPDATE
		SET content_type = EXCLUDED.content_type,
		    body = EXCLUDED.body,
		    updated_at = NOW()
	`, b.driver.QuoteIdentifier(b.table))

	if body == nil {
		body = []byte{}
	}
	if _, err := b.driver.GetExecutor().Exec(ctx, query, name, contentType, body); err != nil {
		return "", fmt.Errorf("failed to store object: %w", err)
	}
	return "", nil
}

// Open implements Backend. The body is loaded in one query and served from memory.
func (b *SQLBackend) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	query := fmt.Sprintf(`SELECT body FROM %s WHERE name = $1`, b.driver.QuoteIdentifier(b.table))

	var body []byte
	err := b.driver.GetExecutor().QueryRow(ctx, query, name).Scan(&body)
	if errors.Is(err, driver.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load object: %w", err)
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

// DeleteBefore implements Expirer. Objects are aged by their last write.
func (b *SQLBackend) DeleteBefore(ctx context.Context, horizon time.Time) (int, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE updated_at < $1`, b.driver.QuoteIdentifier(b.table))

	n, err := b.driver.GetExecutor().Exec(ctx, query, horizon)
	if err != nil {
		return 0, fmt.Errorf("failed to delete objects: %w", err)
	}
	return int(n), nil
}
