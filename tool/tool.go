// Package tool defines the contract for tools an agent can call, a registry
// that exposes them to the Anthropic API and an executor that runs calls with
// schema validation and a per-call timeout.
package tool

import (
	"context"
	"encoding/json"
)

// Tool is implemented by everything that can be offered to the model.
type Tool interface {
	// Name is the name the model uses in tool_use blocks
	Name() string

	// Description tells the model when to call the tool
	Description() string

	// InputSchema describes the accepted input. Type must be "object".
	InputSchema() ToolSchema

	// Execute runs the tool. The returned string becomes the tool result
	// text; a non-nil error marks the result as an error.
	Execute(ctx context.Context, input json.RawMessage) (string, error)
}

// ToolSchema is the JSON Schema subset used for tool inputs
type ToolSchema struct {
	Type       string                 `json:"type"`
	Properties map[string]PropertyDef `json:"properties"`
	Required   []string               `json:"required,omitempty"`
}

// PropertyDef describes one input property
type PropertyDef struct {
	// Type is the JSON Schema type (string, number, integer, boolean, array, object)
	Type string `json:"type"`

	Description string `json:"description,omitempty"`

	// Enum restricts string values
	Enum []string `json:"enum,omitempty"`

	// Items describes array elements
	Items *PropertyDef `json:"items,omitempty"`

	// Properties describes nested object fields
	Properties map[string]PropertyDef `json:"properties,omitempty"`

	Minimum *float64 `json:"minimum,omitempty"`
	Maximum *float64 `json:"maximum,omitempty"`

	// MinLength and MaxLength count characters, not bytes
	MinLength *int `json:"minLength,omitempty"`
	MaxLength *int `json:"maxLength,omitempty"`
}

// Int returns a pointer to n, for MinLength and MaxLength
func Int(n int) *int {
	return &n
}

// Float returns a pointer to f, for Minimum and Maximum
func Float(f float64) *float64 {
	return &f
}

type funcTool struct {
	name        string
	description string
	schema      ToolSchema
	fn          func(context.Context, json.RawMessage) (string, error)
}

func (t *funcTool) Name() string            { return t.name }
func (t *funcTool) Description() string     { return t.description }
func (t *funcTool) InputSchema() ToolSchema { return t.schema }

func (t *funcTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	return t.fn(ctx, input)
}

// NewFuncTool creates a Tool from a function
func NewFuncTool(
	name string,
	description string,
	schema ToolSchema,
	fn func(context.Context, json.RawMessage) (string, error),
) Tool {
	return &funcTool{
		name:        name,
		description: description,
		schema:      schema,
		fn:          fn,
	}
}
