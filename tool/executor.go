package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/youssefsiam38/ctxoffload/types"
)

// DefaultTimeout bounds a single tool call unless SetDefaultTimeout changes it
const DefaultTimeout = 30 * time.Second

// Executor runs tool calls against a Registry. Input is validated against
// the tool schema before the tool sees it.
type Executor struct {
	registry       *Registry
	validator      *Validator
	defaultTimeout time.Duration
}

// NewExecutor creates a new tool executor
func NewExecutor(registry *Registry) *Executor {
	return &Executor{
		registry:       registry,
		validator:      NewValidator(),
		defaultTimeout: DefaultTimeout,
	}
}

// SetDefaultTimeout sets the per-call timeout. Zero or negative values
// restore DefaultTimeout.
func (e *Executor) SetDefaultTimeout(timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	e.defaultTimeout = timeout
}

// Timeout returns the per-call timeout
func (e *Executor) Timeout() time.Duration {
	return e.defaultTimeout
}

// ToolCallRequest is one tool call to execute
type ToolCallRequest struct {
	ID       string
	ToolName string
	Input    json.RawMessage
}

// ExecuteResult represents the result of a tool execution
type ExecuteResult struct {
	ID       string
	ToolName string
	Input    json.RawMessage
	Output   string
	Error    error
	Duration time.Duration
}

// Part converts the result into a transcript tool-result part. Failed calls
// carry the error text and are flagged IsError.
func (r *ExecuteResult) Part() types.Part {
	text := r.Output
	if r.Error != nil && text == "" {
		text = r.Error.Error()
	}
	part := types.ToolResultPart(r.ID, r.ToolName, types.TextOutput(text))
	part.IsError = r.Error != nil
	return part
}

// Execute runs a single tool call
func (e *Executor) Execute(ctx context.Context, toolName string, input json.RawMessage) *ExecuteResult {
	return e.execute(ctx, ToolCallRequest{ToolName: toolName, Input: input})
}

func (e *Executor) execute(ctx context.Context, call ToolCallRequest) *ExecuteResult {
	start := time.Now()
	result := &ExecuteResult{
		ID:       call.ID,
		ToolName: call.ToolName,
		Input:    call.Input,
	}

	t, exists := e.registry.Get(call.ToolName)
	if !exists {
		result.Error = NewToolError("Execute", call.ToolName, ErrToolNotFound)
		return result
	}

	input := call.Input
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	if err := e.validator.ValidateInput(t.InputSchema(), input); err != nil {
		result.Error = NewToolError("Validate", call.ToolName, err)
		return result
	}

	execCtx, cancel := context.WithTimeout(ctx, e.defaultTimeout)
	defer cancel()

	output, err := t.Execute(execCtx, input)
	result.Output = output
	result.Duration = time.Since(start)

	switch {
	case errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		result.Error = NewToolError("Execute", call.ToolName, fmt.Errorf("%w after %v", ErrTimeout, e.defaultTimeout))
	case ctx.Err() != nil:
		result.Error = NewToolError("Execute", call.ToolName, fmt.Errorf("%w: %w", ErrCanceled, ctx.Err()))
	case err != nil:
		result.Error = NewToolError("Execute", call.ToolName, err)
	}
	return result
}

// ExecuteMultiple runs calls one after another, in order
func (e *Executor) ExecuteMultiple(ctx context.Context, calls []ToolCallRequest) []*ExecuteResult {
	results := make([]*ExecuteResult, len(calls))
	for i, call := range calls {
		results[i] = e.execute(ctx, call)
	}
	return results
}

// ExecuteParallel runs calls concurrently. Results keep the order of calls.
func (e *Executor) ExecuteParallel(ctx context.Context, calls []ToolCallRequest) []*ExecuteResult {
	if len(calls) == 0 {
		return []*ExecuteResult{}
	}

	results := make([]*ExecuteResult, len(calls))
	var wg sync.WaitGroup

	wg.Add(len(calls))
	for i, call := range calls {
		go func(idx int, c ToolCallRequest) {
			defer wg.Done()
			results[idx] = e.execute(ctx, c)
		}(i, call)
	}

	wg.Wait()
	return results
}

// ExecuteBatch runs calls in parallel or sequentially
func (e *Executor) ExecuteBatch(ctx context.Context, calls []ToolCallRequest, parallel bool) []*ExecuteResult {
	if parallel {
		return e.ExecuteParallel(ctx, calls)
	}
	return e.ExecuteMultiple(ctx, calls)
}

// CallsFromMessage collects the tool-call parts of an assistant message
func CallsFromMessage(msg types.Message) ([]ToolCallRequest, error) {
	var calls []ToolCallRequest
	for _, part := range msg.Parts {
		if part.Type != types.PartTypeToolCall {
			continue
		}

		input, err := rawInput(part.Input)
		if err != nil {
			return nil, NewToolError("Decode", part.ToolName, fmt.Errorf("%w: %w", ErrInvalidInput, err))
		}
		calls = append(calls, ToolCallRequest{ID: part.ToolCallID, ToolName: part.ToolName, Input: input})
	}
	return calls, nil
}

// ResultsMessage builds the tool message answering a set of calls
func ResultsMessage(results []*ExecuteResult) types.Message {
	parts := make([]types.Part, 0, len(results))
	for _, r := range results {
		parts = append(parts, r.Part())
	}
	return types.NewPartsMessage(types.RoleTool, parts...)
}

func rawInput(input any) (json.RawMessage, error) {
	switch v := input.(type) {
	case nil:
		return json.RawMessage(`{}`), nil
	case json.RawMessage:
		return v, nil
	case []byte:
		return json.RawMessage(v), nil
	case string:
		return json.RawMessage(v), nil
	default:
		return json.Marshal(v)
	}
}

// ValidateInput validates tool input against its schema
func (e *Executor) ValidateInput(toolName string, input json.RawMessage) error {
	t, exists := e.registry.Get(toolName)
	if !exists {
		return NewToolError("Validate", toolName, ErrToolNotFound)
	}
	return e.validator.ValidateInput(t.InputSchema(), input)
}
