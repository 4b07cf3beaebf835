package ctxoffload

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrInvalidConfig is returned when the client configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrCompactionAborted is returned when a before-compaction hook refuses a pass
	ErrCompactionAborted = errors.New("compaction aborted by hook")

	// ErrHookFailed is returned when an after-compaction or tool hook fails
	ErrHookFailed = errors.New("hook failed")
)

// ClientError represents an error with additional context
type ClientError struct {
	Op      string         // Operation that failed
	Err     error          // Underlying error
	Context map[string]any // Additional context
}

// Error implements the error interface
func (e *ClientError) Error() string {
	return fmt.Sprintf("ctxoffload: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *ClientError) Unwrap() error {
	return e.Err
}

// WithContext adds additional context to the error
func (e *ClientError) WithContext(key string, value any) *ClientError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// NewClientError creates a new ClientError
func NewClientError(op string, err error) *ClientError {
	return &ClientError{
		Op:  op,
		Err: err,
	}
}
