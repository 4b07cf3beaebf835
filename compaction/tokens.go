package compaction

import (
	"github.com/youssefsiam38/ctxoffload/internal/anthropic"
	"github.com/youssefsiam38/ctxoffload/types"
)

// ApproximateTokens provides fast estimation without an API call.
// Uses ~4 characters per token with a minimum of 1 for non-empty text.
func ApproximateTokens(content string) int {
	if len(content) == 0 {
		return 0
	}
	return (len(content) + 3) / 4
}

// EstimateMessageTokens estimates tokens for a single message using character approximation.
func EstimateMessageTokens(msg types.Message) int {
	// Overhead for message structure (~4 tokens for role, etc.)
	total := 4

	if msg.IsPlainText() {
		return total + ApproximateTokens(msg.Text)
	}

	for _, part := range msg.Parts {
		switch part.Type {
		case types.PartTypeText:
			total += ApproximateTokens(part.Text)
		case types.PartTypeToolCall:
			// Tool name + ID overhead
			total += ApproximateTokens(part.ToolName) + 10
			if part.Input != nil {
				total += ApproximateTokens(anthropic.OutputText(types.JSONOutput(part.Input)))
			}
		case types.PartTypeToolResult:
			total += 10 + ApproximateTokens(anthropic.OutputText(part.Output))
		}
	}

	return total
}

// SumTokens estimates the total tokens across messages
func SumTokens(messages []types.Message) int {
	total := 0
	for _, msg := range messages {
		total += EstimateMessageTokens(msg)
	}
	return total
}
