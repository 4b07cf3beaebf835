package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
)

// Registry holds the tools offered to the model, keyed by name.
// It is safe for concurrent use.
type Registry struct {
	tools map[string]Tool
	mu    sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool. Names must be unique and schemas must describe an object.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return NewToolError("Register", "", fmt.Errorf("%w: tool cannot be nil", ErrInvalidTool))
	}

	name := t.Name()
	if name == "" {
		return NewToolError("Register", "", fmt.Errorf("%w: name cannot be empty", ErrInvalidTool))
	}
	if schema := t.InputSchema(); schema.Type != "object" {
		return NewToolError("Register", name, fmt.Errorf("%w: schema type must be 'object', got %q", ErrInvalidTool, schema.Type))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return NewToolError("Register", name, ErrDuplicateTool)
	}
	r.tools[name] = t
	return nil
}

// RegisterAll adds several tools, stopping at the first failure
func (r *Registry) RegisterAll(tools ...Tool) error {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, exists := r.tools[name]
	return t, exists
}

// Has checks if a tool is registered
func (r *Registry) Has(name string) bool {
	_, exists := r.Get(name)
	return exists
}

// List returns the registered tool names in sorted order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tools
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Execute runs a tool by name without validation or timeout; see Executor
// for both.
func (r *Registry) Execute(ctx context.Context, name string, input json.RawMessage) (string, error) {
	t, exists := r.Get(name)
	if !exists {
		return "", NewToolError("Execute", name, ErrToolNotFound)
	}
	return t.Execute(ctx, input)
}

// ToAnthropicTools converts the registered tools to Anthropic tool
// parameters, ordered by name so request bodies are stable.
func (r *Registry) ToAnthropicTools() []anthropic.ToolParam {
	names := r.List()
	params := make([]anthropic.ToolParam, 0, len(names))
	for _, name := range names {
		if t, ok := r.Get(name); ok {
			params = append(params, toolParam(t))
		}
	}
	return params
}

// ToAnthropicToolUnions converts the registered tools to union parameters,
// the form MessageNewParams.Tools expects.
func (r *Registry) ToAnthropicToolUnions() []anthropic.ToolUnionParam {
	params := r.ToAnthropicTools()
	unions := make([]anthropic.ToolUnionParam, len(params))
	for i := range params {
		unions[i] = anthropic.ToolUnionParam{OfTool: &params[i]}
	}
	return unions
}

func toolParam(t Tool) anthropic.ToolParam {
	schema := t.InputSchema()

	properties := make(map[string]any, len(schema.Properties))
	for name, def := range schema.Properties {
		properties[name] = propertyMap(def)
	}

	inputSchema := anthropic.ToolInputSchemaParam{
		Type:       constant.Object("object"),
		Properties: properties,
	}
	if len(schema.Required) > 0 {
		inputSchema.Required = schema.Required
	}

	return anthropic.ToolParam{
		Name:        t.Name(),
		Description: anthropic.String(t.Description()),
		InputSchema: inputSchema,
	}
}

func propertyMap(def PropertyDef) map[string]any {
	prop := map[string]any{"type": def.Type}

	if def.Description != "" {
		prop["description"] = def.Description
	}
	if len(def.Enum) > 0 {
		prop["enum"] = def.Enum
	}
	if def.Minimum != nil {
		prop["minimum"] = *def.Minimum
	}
	if def.Maximum != nil {
		prop["maximum"] = *def.Maximum
	}
	if def.MinLength != nil {
		prop["minLength"] = *def.MinLength
	}
	if def.MaxLength != nil {
		prop["maxLength"] = *def.MaxLength
	}
	if def.Items != nil {
		prop["items"] = propertyMap(*def.Items)
	}
	if len(def.Properties) > 0 {
		nested := make(map[string]any, len(def.Properties))
		for key, nestedDef := range def.Properties {
			nested[key] = propertyMap(nestedDef)
		}
		prop["properties"] = nested
	}
	return prop
}
