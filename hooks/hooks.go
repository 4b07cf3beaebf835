// Package hooks lets callers observe compaction passes and tool calls.
//
// Hooks run synchronously in registration order. A hook returning an error
// stops the remaining hooks of that kind; for BeforeCompaction it also
// aborts the compaction.
package hooks

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/youssefsiam38/ctxoffload/compaction"
	"github.com/youssefsiam38/ctxoffload/types"
)

// BeforeCompactionHook is called before a transcript is compacted
type BeforeCompactionHook func(ctx context.Context, messages []types.Message) error

// AfterCompactionHook is called after a compaction pass, including skipped ones
type AfterCompactionHook func(ctx context.Context, result *compaction.Result) error

// ToolCallHook is called after a tool is executed
// Parameters: ctx, toolName, input, output, error
type ToolCallHook func(ctx context.Context, toolName string, input json.RawMessage, output string, err error) error

// UnknownKeyHook is called when a read or search is refused because the key
// was never written or surfaced under that storage
type UnknownKeyHook func(ctx context.Context, toolName string, key string) error

// Registry holds all registered hooks
type Registry struct {
	mu               sync.RWMutex
	beforeCompaction []BeforeCompactionHook
	afterCompaction  []AfterCompactionHook
	toolCall         []ToolCallHook
	unknownKey       []UnknownKeyHook
}

// NewRegistry creates a new hook registry
func NewRegistry() *Registry {
	return &Registry{}
}

// OnBeforeCompaction registers a hook to be called before compaction
func (r *Registry) OnBeforeCompaction(hook BeforeCompactionHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beforeCompaction = append(r.beforeCompaction, hook)
}

// OnAfterCompaction registers a hook to be called after compaction
func (r *Registry) OnAfterCompaction(hook AfterCompactionHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.afterCompaction = append(r.afterCompaction, hook)
}

// OnToolCall registers a hook to be called when a tool is executed
func (r *Registry) OnToolCall(hook ToolCallHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toolCall = append(r.toolCall, hook)
}

// OnUnknownKey registers a hook to be called when a read is refused
func (r *Registry) OnUnknownKey(hook UnknownKeyHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unknownKey = append(r.unknownKey, hook)
}

// snapshot copies a hook slice so hooks run without holding the lock
func snapshot[T any](r *Registry, field func(*Registry) []T) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hooks := field(r)
	out := make([]T, len(hooks))
	copy(out, hooks)
	return out
}

// TriggerBeforeCompaction calls all registered before-compaction hooks
func (r *Registry) TriggerBeforeCompaction(ctx context.Context, messages []types.Message) error {
	for _, hook := range snapshot(r, func(r *Registry) []BeforeCompactionHook { return r.beforeCompaction }) {
		if err := hook(ctx, messages); err != nil {
			return err
		}
	}
	return nil
}

// TriggerAfterCompaction calls all registered after-compaction hooks
func (r *Registry) TriggerAfterCompaction(ctx context.Context, result *compaction.Result) error {
	for _, hook := range snapshot(r, func(r *Registry) []AfterCompactionHook { return r.afterCompaction }) {
		if err := hook(ctx, result); err != nil {
			return err
		}
	}
	return nil
}

// TriggerToolCall calls all registered tool-call hooks
func (r *Registry) TriggerToolCall(ctx context.Context, toolName string, input json.RawMessage, output string, err error) error {
	for _, hook := range snapshot(r, func(r *Registry) []ToolCallHook { return r.toolCall }) {
		if hookErr := hook(ctx, toolName, input, output, err); hookErr != nil {
			return hookErr
		}
	}
	return nil
}

// TriggerUnknownKey calls all registered unknown-key hooks
func (r *Registry) TriggerUnknownKey(ctx context.Context, toolName, key string) error {
	for _, hook := range snapshot(r, func(r *Registry) []UnknownKeyHook { return r.unknownKey }) {
		if err := hook(ctx, toolName, key); err != nil {
			return err
		}
	}
	return nil
}
