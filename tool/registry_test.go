package tool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestRegistry_Register(t *testing.T) {
	tests := []struct {
		name    string
		tool    Tool
		wantErr error
	}{
		{name: "valid", tool: echoTool("echo")},
		{name: "nil", tool: nil, wantErr: ErrInvalidTool},
		{name: "empty name", tool: echoTool(""), wantErr: ErrInvalidTool},
		{
			name: "non-object schema",
			tool: NewFuncTool("bad", "bad", ToolSchema{Type: "array"}, func(context.Context, json.RawMessage) (string, error) {
				return "", nil
			}),
			wantErr: ErrInvalidTool,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRegistry().Register(tt.tool)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRegistry_Duplicate(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(echoTool("echo")); err != nil {
		t.Fatalf("Failed to register tool: %v", err)
	}

	err := registry.Register(echoTool("echo"))
	if !errors.Is(err, ErrDuplicateTool) {
		t.Errorf("Expected ErrDuplicateTool, got %v", err)
	}
	var toolErr *ToolError
	if !errors.As(err, &toolErr) || toolErr.Tool != "echo" {
		t.Errorf("Expected ToolError naming the tool, got %v", err)
	}
}

func TestRegistry_ListIsSorted(t *testing.T) {
	registry := NewRegistry()
	if err := registry.RegisterAll(echoTool("zeta"), echoTool("alpha"), echoTool("mid")); err != nil {
		t.Fatalf("RegisterAll failed: %v", err)
	}

	names := registry.List()
	want := []string{"alpha", "mid", "zeta"}
	if len(names) != len(want) {
		t.Fatalf("List() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
	if registry.Count() != 3 || !registry.Has("mid") || registry.Has("missing") {
		t.Error("Unexpected Count/Has results")
	}
}

func TestRegistry_ToAnthropicTools(t *testing.T) {
	registry := NewRegistry()
	if err := registry.RegisterAll(echoTool("b"), echoTool("a")); err != nil {
		t.Fatalf("RegisterAll failed: %v", err)
	}

	params := registry.ToAnthropicTools()
	if len(params) != 2 || params[0].Name != "a" || params[1].Name != "b" {
		t.Fatalf("Unexpected tool params: %+v", params)
	}
	if params[0].Description.Value != "Echoes the key" {
		t.Errorf("Unexpected description: %q", params[0].Description.Value)
	}
	if len(params[0].InputSchema.Required) != 1 || params[0].InputSchema.Required[0] != "key" {
		t.Errorf("Unexpected required fields: %v", params[0].InputSchema.Required)
	}

	props, ok := params[0].InputSchema.Properties.(map[string]any)
	if !ok {
		t.Fatalf("Expected map properties, got %T", params[0].InputSchema.Properties)
	}
	key, ok := props["key"].(map[string]any)
	if !ok || key["type"] != "string" || key["minLength"] != 1 {
		t.Errorf("Unexpected key property: %v", props["key"])
	}

	unions := registry.ToAnthropicToolUnions()
	if len(unions) != 2 || unions[0].OfTool == unions[1].OfTool {
		t.Fatal("Expected distinct union entries")
	}
	if unions[0].OfTool.Name != "a" || unions[1].OfTool.Name != "b" {
		t.Errorf("Unexpected union order: %q, %q", unions[0].OfTool.Name, unions[1].OfTool.Name)
	}
}

func TestRegistry_Execute(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(echoTool("echo")); err != nil {
		t.Fatalf("Failed to register tool: %v", err)
	}

	out, err := registry.Execute(context.Background(), "echo", json.RawMessage(`{"key":"x"}`))
	if err != nil || out != "echo:x" {
		t.Errorf("Execute() = %q, %v", out, err)
	}

	if _, err := registry.Execute(context.Background(), "missing", nil); !errors.Is(err, ErrToolNotFound) {
		t.Errorf("Expected ErrToolNotFound, got %v", err)
	}
}
