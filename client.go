package ctxoffload

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/youssefsiam38/ctxoffload/compaction"
	"github.com/youssefsiam38/ctxoffload/hooks"
	convert "github.com/youssefsiam38/ctxoffload/internal/anthropic"
	"github.com/youssefsiam38/ctxoffload/knownkeys"
	"github.com/youssefsiam38/ctxoffload/storage"
	"github.com/youssefsiam38/ctxoffload/tool"
	"github.com/youssefsiam38/ctxoffload/tool/builtin"
	"github.com/youssefsiam38/ctxoffload/types"
)

// Version is the current ctxoffload version
const Version = "0.1.0"

// Client ties a storage adapter, the known-key registry, the compaction
// engine and the read/search tools together. It is safe for concurrent use.
type Client struct {
	config    Config
	adapter   storage.Adapter
	resolver  *storage.Resolver
	compactor *compaction.Compactor
	tools     *tool.Registry
	executor  *tool.Executor
	counter   *compaction.TokenCounter
}

// New creates a client.
//
// Example:
//
//	client, err := ctxoffload.New(ctxoffload.Config{StorageURI: "file:///tmp/offload"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	compacted, result, err := client.Compact(ctx, messages)
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, NewClientError("New", err)
	}
	cfg.applyDefaults()

	resolver := &storage.Resolver{BaseDir: cfg.BaseDir, Blob: cfg.BlobBackend}

	adapter := cfg.Adapter
	if adapter == nil {
		resolved, err := resolver.Resolve(cfg.StorageURI)
		if err != nil {
			return nil, NewClientError("New", fmt.Errorf("%w: %w", ErrInvalidConfig, err)).
				WithContext("storage_uri", cfg.StorageURI)
		}
		adapter = resolved
	}

	compactor, err := compaction.New(&compaction.Config{
		Strategy:        compaction.StrategyWriteToolResults,
		Boundary:        cfg.Boundary,
		Adapter:         adapter,
		Serializer:      cfg.Serializer,
		ReaderToolNames: readerNames(cfg.ReaderToolNames),
		KnownKeys:       cfg.KnownKeys,
		Logger:          cfg.Logger,
	})
	if err != nil {
		return nil, NewClientError("New", fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}

	builtins, err := builtin.Tools(builtin.Options{
		Adapter:   adapter,
		Resolver:  resolver,
		KnownKeys: cfg.KnownKeys,
	})
	if err != nil {
		return nil, NewClientError("New", err)
	}
	registry := tool.NewRegistry()
	if err := registry.RegisterAll(builtins...); err != nil {
		return nil, NewClientError("New", err)
	}

	executor := tool.NewExecutor(registry)
	executor.SetDefaultTimeout(cfg.ToolTimeout)

	return &Client{
		config:    cfg,
		adapter:   adapter,
		resolver:  resolver,
		compactor: compactor,
		tools:     registry,
		executor:  executor,
		counter:   compaction.NewTokenCounter(cfg.AnthropicClient, cfg.Model),
	}, nil
}

// Adapter returns the storage adapter compaction writes to
func (c *Client) Adapter() storage.Adapter {
	return c.adapter
}

// KnownKeys returns the registry shared by compaction and the tools
func (c *Client) KnownKeys() *knownkeys.Registry {
	return c.config.KnownKeys
}

// Hooks returns the hook registry
func (c *Client) Hooks() *hooks.Registry {
	return c.config.Hooks
}

// ReaderToolNames returns the tool names treated as reader tools
func (c *Client) ReaderToolNames() []string {
	return append([]string{}, c.compactor.Config().ReaderToolNames...)
}

// Compact rewrites the tool results of messages.
//
// The input slice is never modified. When a write fails the partially
// compacted transcript is returned together with the error.
func (c *Client) Compact(ctx context.Context, messages []types.Message, opts ...CompactOption) ([]types.Message, *compaction.Result, error) {
	compactor, err := c.compactorFor(opts)
	if err != nil {
		return messages, nil, err
	}

	if err := c.config.Hooks.TriggerBeforeCompaction(ctx, messages); err != nil {
		return messages, nil, NewClientError("Compact", fmt.Errorf("%w: %w", ErrCompactionAborted, err))
	}

	out, result, err := compactor.Compact(ctx, messages)
	if err != nil {
		return out, result, NewClientError("Compact", err)
	}

	if err := c.config.Hooks.TriggerAfterCompaction(ctx, result); err != nil {
		return out, result, NewClientError("Compact", fmt.Errorf("%w: %w", ErrHookFailed, err))
	}
	return out, result, nil
}

// CompactAnthropic compacts a transcript in Anthropic request form. Rewritten
// tool_result blocks keep their tool_use IDs and carry the reference text.
func (c *Client) CompactAnthropic(ctx context.Context, params []anthropic.MessageParam, opts ...CompactOption) ([]anthropic.MessageParam, *compaction.Result, error) {
	out, result, err := c.Compact(ctx, convert.ConvertFromAnthropicMessages(params), opts...)
	return convert.ConvertToAnthropicMessages(out), result, err
}

// Stats reports what Compact would do without writing anything
func (c *Client) Stats(messages []types.Message, opts ...CompactOption) (*compaction.Stats, error) {
	compactor, err := c.compactorFor(opts)
	if err != nil {
		return nil, err
	}
	return compactor.Stats(messages)
}

// CountTokens counts the tokens of messages, using the Anthropic API when a
// client is configured
func (c *Client) CountTokens(ctx context.Context, messages []types.Message) (*compaction.TokenCountResult, error) {
	return c.counter.CountTokens(ctx, messages)
}

func (c *Client) compactorFor(opts []CompactOption) (*compaction.Compactor, error) {
	if len(opts) == 0 {
		return c.compactor, nil
	}

	base := c.compactor.Config()
	cfg := *base
	cfg.ReaderToolNames = append([]string{}, base.ReaderToolNames...)
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	compactor, err := compaction.New(&cfg)
	if err != nil {
		return nil, NewClientError("Compact", fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}
	return compactor, nil
}

// RegisterTool adds a tool that ExecuteTool and RunToolCalls can dispatch to
func (c *Client) RegisterTool(t tool.Tool) error {
	if err := c.tools.Register(t); err != nil {
		return NewClientError("RegisterTool", err)
	}
	return nil
}

// Tools returns the registered tools, readFile and grepAndSearchFile included
func (c *Client) Tools() []tool.Tool {
	names := c.tools.List()
	out := make([]tool.Tool, 0, len(names))
	for _, name := range names {
		if t, ok := c.tools.Get(name); ok {
			out = append(out, t)
		}
	}
	return out
}

// ToolRegistry returns the tool registry
func (c *Client) ToolRegistry() *tool.Registry {
	return c.tools
}

// AnthropicTools returns the registered tools as Anthropic request parameters
func (c *Client) AnthropicTools() []anthropic.ToolUnionParam {
	return c.tools.ToAnthropicToolUnions()
}

// ExecuteTool runs one tool call and fires the tool hooks
func (c *Client) ExecuteTool(ctx context.Context, name string, input json.RawMessage) (*tool.ExecuteResult, error) {
	result := c.executor.Execute(ctx, name, input)
	if err := c.observe(ctx, result); err != nil {
		return result, err
	}
	return result, nil
}

// RunToolCalls executes the tool calls of an assistant message and returns
// the tool message answering them. Calls run concurrently; result parts keep
// the order of the calls. Tool failures become error results, not errors.
func (c *Client) RunToolCalls(ctx context.Context, msg types.Message) (types.Message, error) {
	calls, err := tool.CallsFromMessage(msg)
	if err != nil {
		return types.Message{}, NewClientError("RunToolCalls", err)
	}

	results := c.executor.ExecuteParallel(ctx, calls)
	for _, result := range results {
		if err := c.observe(ctx, result); err != nil {
			return types.Message{}, err
		}
	}
	return tool.ResultsMessage(results), nil
}

func (c *Client) observe(ctx context.Context, result *tool.ExecuteResult) error {
	if err := c.config.Hooks.TriggerToolCall(ctx, result.ToolName, result.Input, result.Output, result.Error); err != nil {
		return NewClientError("ToolCall", fmt.Errorf("%w: %w", ErrHookFailed, err)).
			WithContext("tool", result.ToolName)
	}

	if result.Error != nil {
		return nil
	}
	key, ok := builtin.RefusedKey(result.ToolName, result.Output)
	if !ok {
		return nil
	}
	if err := c.config.Hooks.TriggerUnknownKey(ctx, result.ToolName, key); err != nil {
		return NewClientError("ToolCall", fmt.Errorf("%w: %w", ErrHookFailed, err)).
			WithContext("tool", result.ToolName)
	}
	return nil
}
