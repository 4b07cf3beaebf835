package hooks

import (
	"context"
	"encoding/json"
	"log"

	"github.com/youssefsiam38/ctxoffload/compaction"
	"github.com/youssefsiam38/ctxoffload/types"
)

const previewLength = 100

func preview(s string) string {
	if len(s) > previewLength {
		return s[:previewLength] + "..."
	}
	return s
}

// LoggingHooks provides built-in logging hooks for observability
type LoggingHooks struct {
	logger *log.Logger
}

// NewLoggingHooks creates logging hooks with the provided logger
func NewLoggingHooks(logger *log.Logger) *LoggingHooks {
	return &LoggingHooks{logger: logger}
}

// DefaultLoggingHooks creates logging hooks with default logger
func DefaultLoggingHooks() *LoggingHooks {
	return &LoggingHooks{logger: log.Default()}
}

// Register attaches every hook to r
func (h *LoggingHooks) Register(r *Registry) {
	r.OnBeforeCompaction(h.BeforeCompaction)
	r.OnAfterCompaction(h.AfterCompaction)
	r.OnToolCall(h.ToolCall)
	r.OnUnknownKey(h.UnknownKey)
}

// BeforeCompaction logs the transcript size
func (h *LoggingHooks) BeforeCompaction(ctx context.Context, messages []types.Message) error {
	h.logger.Printf("[ctxoffload] Compacting transcript of %d messages", len(messages))
	return nil
}

// AfterCompaction logs the outcome of a pass
func (h *LoggingHooks) AfterCompaction(ctx context.Context, result *compaction.Result) error {
	if result.Skipped {
		h.logger.Printf("[ctxoffload] Compaction skipped: transcript does not end with an assistant text turn")
		return nil
	}
	h.logger.Printf("[ctxoffload] Compaction complete: %d offloaded (%d bytes, ~%d tokens saved), %d references, window [%d, %d)",
		len(result.Offloads), result.BytesOffloaded, result.TokensSaved, len(result.References),
		result.Window.Start, result.Window.EndExclusive)
	return nil
}

// ToolCall logs tool execution
func (h *LoggingHooks) ToolCall(ctx context.Context, toolName string, input json.RawMessage, output string, err error) error {
	if err != nil {
		h.logger.Printf("[ctxoffload] Tool '%s' failed: %v", toolName, err)
		return nil
	}
	h.logger.Printf("[ctxoffload] Tool '%s' succeeded: %s", toolName, preview(output))
	return nil
}

// UnknownKey logs refused reads
func (h *LoggingHooks) UnknownKey(ctx context.Context, toolName, key string) error {
	h.logger.Printf("[ctxoffload] Tool '%s' refused unknown key %q", toolName, key)
	return nil
}

// VerboseLoggingHooks provides detailed logging for debugging
type VerboseLoggingHooks struct {
	logger *log.Logger
}

// NewVerboseLoggingHooks creates verbose logging hooks
func NewVerboseLoggingHooks(logger *log.Logger) *VerboseLoggingHooks {
	return &VerboseLoggingHooks{logger: logger}
}

// Register attaches every hook to r
func (h *VerboseLoggingHooks) Register(r *Registry) {
	r.OnBeforeCompaction(h.BeforeCompaction)
	r.OnAfterCompaction(h.AfterCompaction)
	r.OnToolCall(h.ToolCall)
}

// BeforeCompaction logs every message role
func (h *VerboseLoggingHooks) BeforeCompaction(ctx context.Context, messages []types.Message) error {
	h.logger.Printf("[ctxoffload][VERBOSE] === Compacting %d messages ===", len(messages))
	for i, msg := range messages {
		h.logger.Printf("[ctxoffload][VERBOSE] Message %d: role=%s parts=%d", i, msg.Role, len(msg.Parts))
	}
	return nil
}

// AfterCompaction logs every offload and reference
func (h *VerboseLoggingHooks) AfterCompaction(ctx context.Context, result *compaction.Result) error {
	h.logger.Printf("[ctxoffload][VERBOSE] === Compaction Complete ===")
	h.logger.Printf("[ctxoffload][VERBOSE] Strategy: %s", result.Strategy)
	h.logger.Printf("[ctxoffload][VERBOSE] Skipped: %v", result.Skipped)
	for _, o := range result.Offloads {
		h.logger.Printf("[ctxoffload][VERBOSE] Offloaded message %d part %d (%s, %d bytes) to %s",
			o.MessageIndex, o.PartIndex, o.ToolName, o.Bytes, o.Path)
	}
	for _, ref := range result.References {
		h.logger.Printf("[ctxoffload][VERBOSE] Reference at message %d part %d: storage=%q key=%q",
			ref.MessageIndex, ref.PartIndex, ref.Storage, ref.Key)
	}
	h.logger.Printf("[ctxoffload][VERBOSE] Duration: %v", result.Duration)
	return nil
}

// ToolCall logs detailed tool execution information
func (h *VerboseLoggingHooks) ToolCall(ctx context.Context, toolName string, input json.RawMessage, output string, err error) error {
	h.logger.Printf("[ctxoffload][VERBOSE] === Tool Call: %s ===", toolName)
	h.logger.Printf("[ctxoffload][VERBOSE] Input: %s", string(input))
	if err != nil {
		h.logger.Printf("[ctxoffload][VERBOSE] Error: %v", err)
	} else {
		h.logger.Printf("[ctxoffload][VERBOSE] Output: %s", output)
	}
	return nil
}

// MetricsHooks collects metrics for monitoring
type MetricsHooks struct {
	OnMetric func(name string, value float64, tags map[string]string)
}

// NewMetricsHooks creates metrics collection hooks
func NewMetricsHooks(onMetric func(string, float64, map[string]string)) *MetricsHooks {
	return &MetricsHooks{OnMetric: onMetric}
}

// Register attaches every hook to r
func (h *MetricsHooks) Register(r *Registry) {
	r.OnAfterCompaction(h.AfterCompaction)
	r.OnToolCall(h.ToolCall)
	r.OnUnknownKey(h.UnknownKey)
}

// ToolCall records tool execution metrics
func (h *MetricsHooks) ToolCall(ctx context.Context, toolName string, input json.RawMessage, output string, err error) error {
	tags := map[string]string{"tool": toolName}
	if err != nil {
		h.OnMetric("ctxoffload.tool.error", 1, tags)
	} else {
		h.OnMetric("ctxoffload.tool.success", 1, tags)
	}
	return nil
}

// UnknownKey counts refused reads
func (h *MetricsHooks) UnknownKey(ctx context.Context, toolName, key string) error {
	h.OnMetric("ctxoffload.tool.unknown_key", 1, map[string]string{"tool": toolName})
	return nil
}

// AfterCompaction records compaction metrics
func (h *MetricsHooks) AfterCompaction(ctx context.Context, result *compaction.Result) error {
	tags := map[string]string{"strategy": string(result.Strategy)}
	if result.Skipped {
		h.OnMetric("ctxoffload.compaction.skipped", 1, tags)
		return nil
	}

	h.OnMetric("ctxoffload.compaction.offloads", float64(len(result.Offloads)), tags)
	h.OnMetric("ctxoffload.compaction.references", float64(len(result.References)), tags)
	h.OnMetric("ctxoffload.compaction.bytes_offloaded", float64(result.BytesOffloaded), tags)
	h.OnMetric("ctxoffload.compaction.tokens_saved", float64(result.TokensSaved), tags)
	h.OnMetric("ctxoffload.compaction.duration_ms", float64(result.Duration.Milliseconds()), tags)
	return nil
}
