package tool

import (
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf8"
)

// Validator checks tool input against a ToolSchema. Every failure wraps
// ErrInvalidInput.
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateInput validates input against a tool's schema. Unknown fields are
// allowed and null values pass every check.
func (v *Validator) ValidateInput(schema ToolSchema, input json.RawMessage) error {
	if schema.Type != "object" {
		return fmt.Errorf("%w: schema type must be 'object', got '%s'", ErrInvalidInput, schema.Type)
	}

	var fields map[string]any
	if err := json.Unmarshal(input, &fields); err != nil {
		return fmt.Errorf("%w: input is not a JSON object: %v", ErrInvalidInput, err)
	}

	for _, required := range schema.Required {
		if _, exists := fields[required]; !exists {
			return fmt.Errorf("%w: missing required field: %s", ErrInvalidInput, required)
		}
	}

	for name, def := range schema.Properties {
		value, exists := fields[name]
		if !exists {
			continue
		}
		if err := v.validateProperty(name, def, value); err != nil {
			return err
		}
	}
	return nil
}

func invalid(name, format string, args ...any) error {
	return fmt.Errorf("%w: field '%s': %s", ErrInvalidInput, name, fmt.Sprintf(format, args...))
}

func (v *Validator) validateProperty(name string, def PropertyDef, value any) error {
	if value == nil {
		return nil
	}

	if err := validateType(name, def.Type, value); err != nil {
		return err
	}

	if len(def.Enum) > 0 {
		s, ok := value.(string)
		if !ok {
			return invalid(name, "expected string for enum validation, got %T", value)
		}
		if !slices.Contains(def.Enum, s) {
			return invalid(name, "value '%s' not in allowed values %v", s, def.Enum)
		}
	}

	switch def.Type {
	case "number", "integer":
		n, ok := value.(float64)
		if !ok {
			return invalid(name, "cannot convert %T to a number", value)
		}
		if def.Minimum != nil && n < *def.Minimum {
			return invalid(name, "value %v is less than minimum %v", n, *def.Minimum)
		}
		if def.Maximum != nil && n > *def.Maximum {
			return invalid(name, "value %v exceeds maximum %v", n, *def.Maximum)
		}

	case "string":
		length := utf8.RuneCountInString(value.(string))
		if def.MinLength != nil && length < *def.MinLength {
			return invalid(name, "string length %d is less than minimum %d", length, *def.MinLength)
		}
		if def.MaxLength != nil && length > *def.MaxLength {
			return invalid(name, "string length %d exceeds maximum %d", length, *def.MaxLength)
		}

	case "array":
		if def.Items == nil {
			return nil
		}
		for i, item := range value.([]any) {
			if err := v.validateProperty(fmt.Sprintf("%s[%d]", name, i), *def.Items, item); err != nil {
				return err
			}
		}

	case "object":
		obj := value.(map[string]any)
		for propName, propDef := range def.Properties {
			if propVal, exists := obj[propName]; exists {
				if err := v.validateProperty(name+"."+propName, propDef, propVal); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// validateType checks value against a JSON Schema type. Values come from
// encoding/json, so numbers are always float64.
func validateType(name, expected string, value any) error {
	switch expected {
	case "string":
		if _, ok := value.(string); !ok {
			return invalid(name, "expected string, got %T", value)
		}
	case "number":
		if _, ok := value.(float64); !ok {
			return invalid(name, "expected number, got %T", value)
		}
	case "integer":
		n, ok := value.(float64)
		if !ok {
			return invalid(name, "expected integer, got %T", value)
		}
		if n != float64(int64(n)) {
			return invalid(name, "expected integer, got float %v", n)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return invalid(name, "expected boolean, got %T", value)
		}
	case "array":
		if _, ok := value.([]any); !ok {
			return invalid(name, "expected array, got %T", value)
		}
	case "object":
		if _, ok := value.(map[string]any); !ok {
			return invalid(name, "expected object, got %T", value)
		}
	}
	return nil
}
