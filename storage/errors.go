package storage

import (
	"errors"
	"fmt"
)

// Sentinel errors for storage operations.
var (
	// ErrInvalidURI indicates a malformed or unsupported storage identifier.
	ErrInvalidURI = errors.New("invalid storage uri")

	// ErrUnsupported indicates the adapter lacks a capability the caller needs.
	ErrUnsupported = errors.New("operation not supported by storage adapter")

	// ErrInvalidKey indicates a key that cannot be addressed safely.
	ErrInvalidKey = errors.New("invalid storage key")

	// ErrObjectNotFound indicates the addressed object does not exist.
	ErrObjectNotFound = errors.New("object not found")
)

// StorageError provides structured error context for storage operations.
type StorageError struct {
	// Op is the operation that failed (e.g., "Write", "ReadText", "Resolve")
	Op string

	// Identity is the storage identity if known
	Identity string

	// Key is the object key if applicable
	Key string

	// Err is the underlying error
	Err error
}

// Error returns a formatted error message.
func (e *StorageError) Error() string {
	msg := fmt.Sprintf("storage %s failed", e.Op)
	if e.Identity != "" {
		msg += fmt.Sprintf(" on %s", e.Identity)
	}
	if e.Key != "" {
		msg += fmt.Sprintf(" for key %q", e.Key)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new StorageError with the given operation and underlying error.
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// WithIdentity sets the storage identity and returns the error for chaining.
func (e *StorageError) WithIdentity(identity string) *StorageError {
	e.Identity = identity
	return e
}

// WithKey sets the object key and returns the error for chaining.
func (e *StorageError) WithKey(key string) *StorageError {
	e.Key = key
	return e
}
