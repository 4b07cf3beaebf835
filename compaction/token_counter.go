package compaction

import (
	"context"
	"fmt"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicconv "github.com/youssefsiam38/ctxoffload/internal/anthropic"
	"github.com/youssefsiam38/ctxoffload/types"
)

// TokenCounter counts transcript tokens using the Claude token counting API
// with a character-based approximation fallback.
type TokenCounter struct {
	client *anthropic.Client
	model  string

	mu       sync.Mutex
	fallback bool // set once the API failed; later calls approximate
}

// TokenCountResult contains the result of a token count operation.
type TokenCountResult struct {
	// TotalTokens is the total token count for all messages.
	TotalTokens int

	// UsedAPI indicates whether the Claude API was used (true) or the
	// character-based approximation fallback was used (false).
	UsedAPI bool

	// PerMessage contains the estimated token count per message.
	// Only populated when using the fallback approximation.
	PerMessage []int
}

// NewTokenCounter creates a new TokenCounter. A nil client approximates only.
func NewTokenCounter(client *anthropic.Client, model string) *TokenCounter {
	return &TokenCounter{
		client: client,
		model:  model,
	}
}

// CountTokens counts the tokens in the given messages.
// It first attempts to use the Claude API for accurate counting,
// falling back to approximation if the API is unavailable.
func (tc *TokenCounter) CountTokens(ctx context.Context, messages []types.Message) (*TokenCountResult, error) {
	if tc.useAPI() {
		result, err := tc.countWithAPI(ctx, messages)
		if err == nil {
			return result, nil
		}
		tc.mu.Lock()
		tc.fallback = true
		tc.mu.Unlock()
	}

	return countWithApproximation(messages), nil
}

func (tc *TokenCounter) useAPI() bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.client != nil && tc.model != "" && !tc.fallback
}

// countWithAPI uses the Claude token counting API.
func (tc *TokenCounter) countWithAPI(ctx context.Context, messages []types.Message) (*TokenCountResult, error) {
	params := anthropicconv.ConvertToAnthropicMessages(messages)
	if len(params) == 0 {
		return &TokenCountResult{TotalTokens: 0, UsedAPI: true}, nil
	}

	result, err := tc.client.Messages.CountTokens(ctx, anthropic.MessageCountTokensParams{
		Model:    anthropic.Model(tc.model),
		Messages: params,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenCountingFailed, err)
	}

	return &TokenCountResult{
		TotalTokens: int(result.InputTokens),
		UsedAPI:     true,
	}, nil
}

// countWithApproximation uses character-based estimation (~4 chars per token).
func countWithApproximation(messages []types.Message) *TokenCountResult {
	perMessage := make([]int, len(messages))
	total := 0

	for i, msg := range messages {
		tokens := EstimateMessageTokens(msg)
		perMessage[i] = tokens
		total += tokens
	}

	return &TokenCountResult{
		TotalTokens: total,
		UsedAPI:     false,
		PerMessage:  perMessage,
	}
}
