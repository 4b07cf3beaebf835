package compaction

import (
	"errors"
	"fmt"
)

// Sentinel errors for compaction operations.
var (
	// ErrInvalidConfig indicates invalid compaction configuration.
	ErrInvalidConfig = errors.New("invalid compaction configuration")

	// ErrStorageError indicates writing an offloaded payload failed.
	ErrStorageError = errors.New("storage operation failed")

	// ErrSerialization indicates a structured tool output could not be serialised.
	ErrSerialization = errors.New("failed to serialize tool output")

	// ErrInvalidBoundary indicates a boundary string that cannot be parsed.
	ErrInvalidBoundary = errors.New("invalid compaction boundary")

	// ErrTokenCountingFailed indicates token counting failed.
	ErrTokenCountingFailed = errors.New("token counting failed")
)

// CompactionError provides structured error context for compaction operations.
type CompactionError struct {
	// Op is the operation that failed (e.g., "Compact", "Offload")
	Op string

	// MessageIndex is the transcript position being processed, or -1
	MessageIndex int

	// Err is the underlying error
	Err error

	// Context holds additional key-value pairs for debugging
	Context map[string]any
}

// Error returns a formatted error message.
func (e *CompactionError) Error() string {
	msg := fmt.Sprintf("compaction %s failed", e.Op)
	if e.MessageIndex >= 0 {
		msg += fmt.Sprintf(" at message %d", e.MessageIndex)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *CompactionError) Unwrap() error {
	return e.Err
}

// NewCompactionError creates a new CompactionError with the given operation and underlying error.
func NewCompactionError(op string, err error) *CompactionError {
	return &CompactionError{
		Op:           op,
		MessageIndex: -1,
		Err:          err,
		Context:      make(map[string]any),
	}
}

// WithMessage sets the message index on the error and returns the error for chaining.
func (e *CompactionError) WithMessage(index int) *CompactionError {
	e.MessageIndex = index
	return e
}

// WithContext adds a key-value pair to the error context and returns the error for chaining.
func (e *CompactionError) WithContext(key string, value any) *CompactionError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WrapError wraps an error with operation context. If err is nil, returns nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewCompactionError(op, err)
}
