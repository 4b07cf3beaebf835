package anthropic

import (
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/youssefsiam38/ctxoffload/types"
)

// ConvertToAnthropicMessages converts transcript messages to Anthropic message parameters.
//
// Tool messages become user turns carrying tool_result blocks. Consecutive
// turns with the same role are merged, as the Messages API requires
// alternating roles.
func ConvertToAnthropicMessages(messages []types.Message) []anthropic.MessageParam {
	params := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		// Skip system messages (handled separately)
		if msg.Role == types.RoleSystem {
			continue
		}

		role := anthropic.MessageParamRoleUser
		if msg.Role == types.RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}

		var blocks []anthropic.ContentBlockParamUnion
		if msg.IsPlainText() {
			if msg.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Text))
			}
		} else {
			for _, part := range msg.Parts {
				if block, ok := convertPart(part); ok {
					blocks = append(blocks, block)
				}
			}
		}
		if len(blocks) == 0 {
			continue
		}

		if n := len(params); n > 0 && params[n-1].Role == role {
			params[n-1].Content = append(params[n-1].Content, blocks...)
			continue
		}
		params = append(params, anthropic.MessageParam{Role: role, Content: blocks})
	}

	return params
}

// convertPart converts a single part
func convertPart(part types.Part) (anthropic.ContentBlockParamUnion, bool) {
	switch part.Type {
	case types.PartTypeText:
		if part.Text == "" {
			return anthropic.ContentBlockParamUnion{}, false
		}
		return anthropic.NewTextBlock(part.Text), true

	case types.PartTypeToolCall:
		// Ensure input is a valid object (API requires a dictionary, not null)
		input := part.Input
		if input == nil {
			input = map[string]any{}
		}
		return anthropic.NewToolUseBlock(part.ToolCallID, input, part.ToolName), true

	case types.PartTypeToolResult:
		return anthropic.NewToolResultBlock(part.ToolCallID, OutputText(part.Output), part.IsError), true
	}

	return anthropic.ContentBlockParamUnion{}, false
}

// OutputText renders a tool output as the text sent to the model.
// Structured values are encoded as JSON.
func OutputText(output *types.ToolOutput) string {
	if output == nil {
		return ""
	}
	if text, ok := output.TextValue(); ok {
		return text
	}
	if s, ok := output.Value.(string); ok {
		return s
	}
	data, err := json.Marshal(output.Value)
	if err != nil {
		return ""
	}
	return string(data)
}

// ConvertFromAnthropicMessages converts Anthropic message parameters to transcript messages.
//
// User turns are split so tool_result blocks land in tool messages and any
// other content stays in user messages, preserving order. Tool names for
// results are recovered from the tool_use blocks that precede them.
func ConvertFromAnthropicMessages(params []anthropic.MessageParam) []types.Message {
	toolNames := make(map[string]string)
	messages := make([]types.Message, 0, len(params))

	for _, param := range params {
		if param.Role == anthropic.MessageParamRoleAssistant {
			parts := make([]types.Part, 0, len(param.Content))
			for _, block := range param.Content {
				switch {
				case block.OfText != nil:
					parts = append(parts, types.TextPart(block.OfText.Text))
				case block.OfToolUse != nil:
					toolNames[block.OfToolUse.ID] = block.OfToolUse.Name
					parts = append(parts, types.ToolCallPart(block.OfToolUse.ID, block.OfToolUse.Name, block.OfToolUse.Input))
				}
			}
			messages = append(messages, types.NewPartsMessage(types.RoleAssistant, parts...))
			continue
		}

		var (
			current types.Role
			parts   []types.Part
		)
		flush := func() {
			if len(parts) > 0 {
				messages = append(messages, types.NewPartsMessage(current, parts...))
			}
			parts = nil
		}

		for _, block := range param.Content {
			var (
				role types.Role
				part types.Part
			)
			switch {
			case block.OfToolResult != nil:
				res := block.OfToolResult
				role = types.RoleTool
				part = types.ToolResultPart(res.ToolUseID, toolNames[res.ToolUseID], types.TextOutput(toolResultText(res)))
				part.IsError = res.IsError.Value
			case block.OfText != nil:
				role = types.RoleUser
				part = types.TextPart(block.OfText.Text)
			default:
				continue
			}

			if role != current {
				flush()
				current = role
			}
			parts = append(parts, part)
		}
		flush()
	}

	return messages
}

// toolResultText joins the text content of a tool_result block
func toolResultText(res *anthropic.ToolResultBlockParam) string {
	var sb strings.Builder
	for _, c := range res.Content {
		if c.OfText != nil {
			sb.WriteString(c.OfText.Text)
		}
	}
	return sb.String()
}

// ExtractTextContent extracts all text from a message
func ExtractTextContent(msg types.Message) string {
	if msg.IsPlainText() {
		return msg.Text
	}
	var sb strings.Builder
	for _, part := range msg.Parts {
		if part.Type == types.PartTypeText {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}
