package ctxoffload

import (
	"fmt"
	"slices"

	"github.com/youssefsiam38/ctxoffload/compaction"
	"github.com/youssefsiam38/ctxoffload/storage"
)

// CompactOption overrides client settings for a single Compact call
type CompactOption func(*compaction.Config) error

// WithBoundary sets the compaction window for one call
func WithBoundary(boundary compaction.Boundary) CompactOption {
	return func(c *compaction.Config) error {
		c.Boundary = boundary
		return nil
	}
}

// WithSerializer sets the serializer for structured outputs for one call
func WithSerializer(serializer compaction.Serializer) CompactOption {
	return func(c *compaction.Config) error {
		if serializer == nil {
			return NewClientError("WithSerializer", ErrInvalidConfig).
				WithContext("reason", "serializer must not be nil")
		}
		c.Serializer = serializer
		return nil
	}
}

// WithReaderToolNames adds reader tool names for one call. The defaults and
// the client's configured names stay in effect.
func WithReaderToolNames(names ...string) CompactOption {
	return func(c *compaction.Config) error {
		for _, name := range names {
			if name == "" {
				return NewClientError("WithReaderToolNames", ErrInvalidConfig).
					WithContext("reason", "reader tool names must not be empty")
			}
		}
		merged := append([]string{}, c.ReaderToolNames...)
		for _, name := range names {
			if !slices.Contains(merged, name) {
				merged = append(merged, name)
			}
		}
		c.ReaderToolNames = merged
		return nil
	}
}

// WithAdapter writes this call's payloads to adapter instead of the
// client's. Keys are still registered in the client's registry.
func WithAdapter(adapter storage.Adapter) CompactOption {
	return func(c *compaction.Config) error {
		if adapter == nil {
			return NewClientError("WithAdapter", ErrInvalidConfig).
				WithContext("reason", "adapter must not be nil")
		}
		c.Adapter = adapter
		return nil
	}
}

// WithStrategy selects the compaction strategy for one call
func WithStrategy(strategy compaction.Strategy) CompactOption {
	return func(c *compaction.Config) error {
		if strategy != compaction.StrategyWriteToolResults {
			return NewClientError("WithStrategy", fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, strategy))
		}
		c.Strategy = strategy
		return nil
	}
}
