package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/youssefsiam38/ctxoffload/types"
)

func echoTool(name string) Tool {
	return NewFuncTool(
		name,
		"Echoes the key",
		ToolSchema{
			Type:       "object",
			Properties: map[string]PropertyDef{"key": {Type: "string", MinLength: Int(1)}},
			Required:   []string{"key"},
		},
		func(ctx context.Context, input json.RawMessage) (string, error) {
			var params struct {
				Key string `json:"key"`
			}
			if err := json.Unmarshal(input, &params); err != nil {
				return "", err
			}
			return "echo:" + params.Key, nil
		},
	)
}

func TestExecuteParallel_NoRaceCondition(t *testing.T) {
	registry := NewRegistry()

	var counter int32
	counterTool := NewFuncTool(
		"counter",
		"Increments counter",
		ToolSchema{Type: "object", Properties: map[string]PropertyDef{}},
		func(ctx context.Context, input json.RawMessage) (string, error) {
			n := atomic.AddInt32(&counter, 1)
			time.Sleep(time.Millisecond * time.Duration(1+n%5))
			return "done", nil
		},
	)
	if err := registry.Register(counterTool); err != nil {
		t.Fatalf("Failed to register tool: %v", err)
	}

	executor := NewExecutor(registry)

	numCalls := 50
	calls := make([]ToolCallRequest, numCalls)
	for i := range calls {
		calls[i] = ToolCallRequest{
			ID:       fmt.Sprintf("call-%d", i),
			ToolName: "counter",
			Input:    json.RawMessage(`{}`),
		}
	}

	results := executor.ExecuteParallel(context.Background(), calls)

	if len(results) != numCalls {
		t.Fatalf("Expected %d results, got %d", numCalls, len(results))
	}
	for i, r := range results {
		if r == nil {
			t.Errorf("Result %d is nil", i)
			continue
		}
		if r.Error != nil {
			t.Errorf("Result %d has error: %v", i, r.Error)
		}
		if r.ID != calls[i].ID {
			t.Errorf("Result %d has ID %q, want %q", i, r.ID, calls[i].ID)
		}
	}
	if atomic.LoadInt32(&counter) != int32(numCalls) {
		t.Errorf("Expected counter %d, got %d", numCalls, counter)
	}
}

func TestExecuteParallel_EmptyCalls(t *testing.T) {
	executor := NewExecutor(NewRegistry())

	results := executor.ExecuteParallel(context.Background(), []ToolCallRequest{})
	if len(results) != 0 {
		t.Errorf("Expected 0 results, got %d", len(results))
	}
}

func slowTool() Tool {
	return NewFuncTool(
		"slow",
		"A slow tool",
		ToolSchema{Type: "object", Properties: map[string]PropertyDef{}},
		func(ctx context.Context, input json.RawMessage) (string, error) {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(5 * time.Second):
				return "done", nil
			}
		},
	)
}

func TestExecute_Timeout(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(slowTool()); err != nil {
		t.Fatalf("Failed to register tool: %v", err)
	}

	executor := NewExecutor(registry)
	executor.SetDefaultTimeout(50 * time.Millisecond)

	result := executor.Execute(context.Background(), "slow", nil)
	if !errors.Is(result.Error, ErrTimeout) {
		t.Errorf("Expected ErrTimeout, got %v", result.Error)
	}
}

func TestExecute_CallerCanceled(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(slowTool()); err != nil {
		t.Fatalf("Failed to register tool: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := NewExecutor(registry).Execute(ctx, "slow", json.RawMessage(`{}`))
	if !errors.Is(result.Error, ErrCanceled) {
		t.Errorf("Expected ErrCanceled, got %v", result.Error)
	}
	if !errors.Is(result.Error, context.Canceled) {
		t.Errorf("Expected context.Canceled in chain, got %v", result.Error)
	}
}

func TestExecutor_SetDefaultTimeout(t *testing.T) {
	executor := NewExecutor(NewRegistry())
	if executor.Timeout() != DefaultTimeout {
		t.Errorf("Expected default timeout %v, got %v", DefaultTimeout, executor.Timeout())
	}

	executor.SetDefaultTimeout(time.Second)
	if executor.Timeout() != time.Second {
		t.Errorf("Expected 1s, got %v", executor.Timeout())
	}

	executor.SetDefaultTimeout(0)
	if executor.Timeout() != DefaultTimeout {
		t.Errorf("Expected zero to restore default, got %v", executor.Timeout())
	}
}

func TestExecute_ToolNotFound(t *testing.T) {
	executor := NewExecutor(NewRegistry())

	result := executor.Execute(context.Background(), "nonexistent", json.RawMessage(`{}`))
	if !errors.Is(result.Error, ErrToolNotFound) {
		t.Errorf("Expected ErrToolNotFound, got %v", result.Error)
	}
}

func TestExecute_InvalidInputSkipsTool(t *testing.T) {
	registry := NewRegistry()

	var called bool
	strict := NewFuncTool(
		"strict",
		"Requires a key",
		ToolSchema{
			Type:       "object",
			Properties: map[string]PropertyDef{"key": {Type: "string"}},
			Required:   []string{"key"},
		},
		func(ctx context.Context, input json.RawMessage) (string, error) {
			called = true
			return "ok", nil
		},
	)
	if err := registry.Register(strict); err != nil {
		t.Fatalf("Failed to register tool: %v", err)
	}

	result := NewExecutor(registry).Execute(context.Background(), "strict", json.RawMessage(`{"key": 5}`))
	if !errors.Is(result.Error, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", result.Error)
	}
	if called {
		t.Error("Expected tool not to run on invalid input")
	}
}

func TestExecuteBatch_Sequential(t *testing.T) {
	registry := NewRegistry()

	var order []int
	orderTool := NewFuncTool(
		"order",
		"Records execution order",
		ToolSchema{Type: "object", Properties: map[string]PropertyDef{
			"id": {Type: "integer"},
		}},
		func(ctx context.Context, input json.RawMessage) (string, error) {
			var params struct{ ID int }
			if err := json.Unmarshal(input, &params); err != nil {
				return "", err
			}
			order = append(order, params.ID)
			return "ok", nil
		},
	)
	if err := registry.Register(orderTool); err != nil {
		t.Fatalf("Failed to register tool: %v", err)
	}

	calls := []ToolCallRequest{
		{ID: "1", ToolName: "order", Input: json.RawMessage(`{"id": 1}`)},
		{ID: "2", ToolName: "order", Input: json.RawMessage(`{"id": 2}`)},
		{ID: "3", ToolName: "order", Input: json.RawMessage(`{"id": 3}`)},
	}

	results := NewExecutor(registry).ExecuteBatch(context.Background(), calls, false)
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	if len(order) != 3 {
		t.Fatalf("Expected 3 executions, got %v", order)
	}
	for i, id := range []int{1, 2, 3} {
		if order[i] != id {
			t.Errorf("Expected order[%d] = %d, got %d", i, id, order[i])
		}
	}
}

func TestExecuteResult_Part(t *testing.T) {
	tests := []struct {
		name      string
		result    ExecuteResult
		wantText  string
		wantError bool
	}{
		{
			name:     "success",
			result:   ExecuteResult{ID: "c1", ToolName: "readFile", Output: "hello"},
			wantText: "hello",
		},
		{
			name:      "error without output",
			result:    ExecuteResult{ID: "c2", ToolName: "readFile", Error: errors.New("boom")},
			wantText:  "boom",
			wantError: true,
		},
		{
			name:      "error keeps output",
			result:    ExecuteResult{ID: "c3", ToolName: "readFile", Output: "partial", Error: errors.New("boom")},
			wantText:  "partial",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			part := tt.result.Part()
			if part.Type != types.PartTypeToolResult {
				t.Fatalf("Expected tool-result part, got %q", part.Type)
			}
			if part.ToolCallID != tt.result.ID || part.ToolName != tt.result.ToolName {
				t.Errorf("Unexpected call identity: %+v", part)
			}
			text, ok := part.Output.TextValue()
			if !ok || text != tt.wantText {
				t.Errorf("Output = %q, want %q", text, tt.wantText)
			}
			if part.IsError != tt.wantError {
				t.Errorf("IsError = %v, want %v", part.IsError, tt.wantError)
			}
		})
	}
}

func TestCallsFromMessage_RoundTrip(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(echoTool("echo")); err != nil {
		t.Fatalf("Failed to register tool: %v", err)
	}

	msg := types.NewPartsMessage(types.RoleAssistant,
		types.TextPart("let me look"),
		types.ToolCallPart("c1", "echo", map[string]any{"key": "a.txt"}),
		types.ToolCallPart("c2", "echo", json.RawMessage(`{"key":"b.txt"}`)),
	)

	calls, err := CallsFromMessage(msg)
	if err != nil {
		t.Fatalf("CallsFromMessage failed: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("Expected 2 calls, got %d", len(calls))
	}

	reply := ResultsMessage(NewExecutor(registry).ExecuteMultiple(context.Background(), calls))
	if reply.Role != types.RoleTool || len(reply.Parts) != 2 {
		t.Fatalf("Unexpected reply: %+v", reply)
	}
	for i, want := range []string{"echo:a.txt", "echo:b.txt"} {
		text, _ := reply.Parts[i].Output.TextValue()
		if text != want {
			t.Errorf("part %d = %q, want %q", i, text, want)
		}
	}
}
