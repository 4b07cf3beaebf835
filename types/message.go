package types

import (
	"encoding/json"
	"fmt"
)

// Role represents the message role
type Role string

const (
	// RoleSystem represents a system message
	RoleSystem Role = "system"

	// RoleUser represents a user message
	RoleUser Role = "user"

	// RoleAssistant represents an assistant message
	RoleAssistant Role = "assistant"

	// RoleTool represents a message carrying tool results
	RoleTool Role = "tool"
)

// Message is one transcript turn.
//
// Content is either plain text (Parts is nil) or an ordered list of parts.
// On the wire the "content" field is a JSON string in the first case and a
// JSON array in the second. A message decoded from null or missing content
// has neither and carries no text.
type Message struct {
	Role  Role
	Text  string
	Parts []Part

	// set when the content is a string, including the empty string
	textSet bool
}

// NewTextMessage creates a message whose content is plain text
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Text: text, textSet: true}
}

// NewPartsMessage creates a message whose content is a list of parts
func NewPartsMessage(role Role, parts ...Part) Message {
	if parts == nil {
		parts = []Part{}
	}
	return Message{Role: role, Parts: parts}
}

// IsPlainText reports whether the content is a plain string
func (m Message) IsPlainText() bool {
	return m.Parts == nil
}

// HasText reports whether the message carries literal text content: either
// plain-text content or at least one text part. Null or missing content has
// no text.
func (m Message) HasText() bool {
	if m.Parts == nil {
		return m.textSet || m.Text != ""
	}
	for _, p := range m.Parts {
		if p.Type == PartTypeText {
			return true
		}
	}
	return false
}

// Clone returns a copy of the message whose part slice can be modified
// without affecting the original.
func (m Message) Clone() Message {
	c := m
	if m.Parts != nil {
		c.Parts = make([]Part, len(m.Parts))
		copy(c.Parts, m.Parts)
	}
	return c
}

type messageJSON struct {
	Role    Role            `json:"role"`
	Content json.RawMessage `json:"content"`
}

// MarshalJSON implements json.Marshaler
func (m Message) MarshalJSON() ([]byte, error) {
	var content []byte
	var err error
	switch {
	case m.Parts == nil && !m.HasText():
		content = []byte("null")
	case m.Parts == nil:
		content, err = json.Marshal(m.Text)
	default:
		content, err = json.Marshal(m.Parts)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(messageJSON{Role: m.Role, Content: content})
}

// UnmarshalJSON implements json.Unmarshaler
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw messageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.Role = raw.Role
	m.Text = ""
	m.Parts = nil
	m.textSet = false

	if len(raw.Content) == 0 || string(raw.Content) == "null" {
		return nil
	}

	switch raw.Content[0] {
	case '"':
		if err := json.Unmarshal(raw.Content, &m.Text); err != nil {
			return err
		}
		m.textSet = true
		return nil
	case '[':
		parts := []Part{}
		if err := json.Unmarshal(raw.Content, &parts); err != nil {
			return fmt.Errorf("invalid content parts: %w", err)
		}
		m.Parts = parts
		return nil
	default:
		return fmt.Errorf("content must be a string or an array of parts")
	}
}

// PartType represents the type of a content part
type PartType string

const (
	// PartTypeText represents text content
	PartTypeText PartType = "text"

	// PartTypeToolCall represents a tool invocation requested by the model
	PartTypeToolCall PartType = "tool-call"

	// PartTypeToolResult represents the output of a tool invocation
	PartTypeToolResult PartType = "tool-result"
)

// Part represents a piece of content in a message
type Part struct {
	Type PartType `json:"type"`

	// Text content
	Text string `json:"text,omitempty"`

	// Tool call and tool result content
	ToolCallID string      `json:"toolCallId,omitempty"`
	ToolName   string      `json:"toolName,omitempty"`
	Input      any         `json:"input,omitempty"`
	Output     *ToolOutput `json:"output,omitempty"`
	IsError    bool        `json:"isError,omitempty"`
}

// TextPart creates a text part
func TextPart(text string) Part {
	return Part{Type: PartTypeText, Text: text}
}

// ToolCallPart creates a tool-call part
func ToolCallPart(callID, toolName string, input any) Part {
	return Part{Type: PartTypeToolCall, ToolCallID: callID, ToolName: toolName, Input: input}
}

// ToolResultPart creates a tool-result part
func ToolResultPart(callID, toolName string, output *ToolOutput) Part {
	return Part{Type: PartTypeToolResult, ToolCallID: callID, ToolName: toolName, Output: output}
}

// OutputKind tags a tool output as structured data or text
type OutputKind string

const (
	// OutputKindJSON marks structured output
	OutputKindJSON OutputKind = "json"

	// OutputKindText marks text output
	OutputKindText OutputKind = "text"
)

// ToolOutput is the payload of a tool-result part.
// For OutputKindText, Value holds a string.
type ToolOutput struct {
	Kind  OutputKind `json:"type"`
	Value any        `json:"value"`
}

// JSONOutput creates a structured tool output
func JSONOutput(value any) *ToolOutput {
	return &ToolOutput{Kind: OutputKindJSON, Value: value}
}

// TextOutput creates a text tool output
func TextOutput(text string) *ToolOutput {
	return &ToolOutput{Kind: OutputKindText, Value: text}
}

// TextValue returns the text of a text output
func (o *ToolOutput) TextValue() (string, bool) {
	if o == nil || o.Kind != OutputKindText {
		return "", false
	}
	s, ok := o.Value.(string)
	return s, ok
}
