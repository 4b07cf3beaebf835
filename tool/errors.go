package tool

import (
	"errors"
	"fmt"
)

// Sentinel errors for tool registration and execution.
var (
	// ErrInvalidTool indicates a tool that cannot be registered.
	ErrInvalidTool = errors.New("invalid tool")

	// ErrDuplicateTool indicates a name that is already registered.
	ErrDuplicateTool = errors.New("tool already registered")

	// ErrToolNotFound indicates a call to an unregistered tool.
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidInput indicates input that does not match the tool schema.
	ErrInvalidInput = errors.New("invalid tool input")

	// ErrTimeout indicates the tool did not finish before the executor deadline.
	ErrTimeout = errors.New("tool execution timeout")

	// ErrCanceled indicates the caller canceled the tool call.
	ErrCanceled = errors.New("tool execution canceled")
)

// ToolError provides structured error context for tool operations.
type ToolError struct {
	// Op is the operation that failed (e.g., "Register", "Execute", "Validate")
	Op string

	// Tool is the tool name if known
	Tool string

	// Err is the underlying error
	Err error
}

// Error returns a formatted error message.
func (e *ToolError) Error() string {
	msg := fmt.Sprintf("tool %s failed", e.Op)
	if e.Tool != "" {
		msg = fmt.Sprintf("tool %s failed for %s", e.Op, e.Tool)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *ToolError) Unwrap() error {
	return e.Err
}

// NewToolError creates a new ToolError.
func NewToolError(op, tool string, err error) *ToolError {
	return &ToolError{Op: op, Tool: tool, Err: err}
}
