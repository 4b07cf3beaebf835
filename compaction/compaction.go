package compaction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/youssefsiam38/ctxoffload/storage"
	"github.com/youssefsiam38/ctxoffload/types"
)

// Logger interface for compaction logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a no-op implementation of Logger.
type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}

// Offload describes a tool result whose payload was written to storage.
type Offload struct {
	MessageIndex int    `json:"messageIndex"`
	PartIndex    int    `json:"partIndex"`
	ToolCallID   string `json:"toolCallId,omitempty"`
	ToolName     string `json:"toolName,omitempty"`
	Key          string `json:"key"`
	Path         string `json:"path"`
	URL          string `json:"url,omitempty"`
	Bytes        int    `json:"bytes"`
}

// Reference describes a reader tool result that was collapsed to a reference.
type Reference struct {
	MessageIndex int    `json:"messageIndex"`
	PartIndex    int    `json:"partIndex"`
	ToolCallID   string `json:"toolCallId,omitempty"`
	ToolName     string `json:"toolName,omitempty"`
	Storage      string `json:"storage,omitempty"`
	Key          string `json:"key,omitempty"`
	FileName     string `json:"fileName,omitempty"`
}

// Result contains the outcome of a compaction operation.
type Result struct {
	// Strategy is the strategy that was used.
	Strategy Strategy `json:"strategy"`

	// Skipped is true when the transcript did not end with an assistant
	// text turn and was returned unchanged.
	Skipped bool `json:"skipped"`

	// Window is the range of messages that was eligible for rewriting.
	Window Window `json:"window"`

	// Offloads lists the payloads written to storage, in transcript order.
	Offloads []Offload `json:"offloads"`

	// References lists the reader results collapsed to references.
	References []Reference `json:"references"`

	// BytesOffloaded is the total size of the written payloads.
	BytesOffloaded int `json:"bytesOffloaded"`

	// TokensSaved approximates the context tokens removed.
	TokensSaved int `json:"tokensSaved"`

	// Duration is how long the compaction took.
	Duration time.Duration `json:"duration"`
}

// Stats describes what a compaction of a transcript would do, without writing.
type Stats struct {
	// TotalMessages is the number of messages in the transcript.
	TotalMessages int `json:"totalMessages"`

	// TotalTokens is the estimated token count of the transcript.
	TotalTokens int `json:"totalTokens"`

	// Concluded reports whether the transcript ends with an assistant text turn.
	Concluded bool `json:"concluded"`

	// Window is the range of messages eligible for rewriting.
	Window Window `json:"window"`

	// ToolResults is the number of tool-result parts inside the window.
	ToolResults int `json:"toolResults"`

	// OffloadCandidates is the number of payloads that would be written.
	OffloadCandidates int `json:"offloadCandidates"`

	// ReaderResults is the number of reader results that would be collapsed.
	ReaderResults int `json:"readerResults"`

	// CandidateBytes is the total size of the payloads that would be written.
	CandidateBytes int `json:"candidateBytes"`

	// CandidateTokens approximates the tokens held by those payloads.
	CandidateTokens int `json:"candidateTokens"`
}

// Compactor rewrites tool results in a transcript, offloading their payloads
// to storage. It is safe for concurrent use; each Compact call is sequential.
type Compactor struct {
	config  *Config
	logger  Logger
	readers map[string]struct{}
}

// New creates a new Compactor with the given configuration.
func New(config *Config) (*Compactor, error) {
	if config == nil {
		return nil, NewCompactionError("New", fmt.Errorf("%w: config is required", ErrInvalidConfig))
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, NewCompactionError("New", err)
	}

	readers := make(map[string]struct{}, len(config.ReaderToolNames))
	for _, name := range config.ReaderToolNames {
		readers[name] = struct{}{}
	}

	return &Compactor{
		config:  config,
		logger:  config.Logger,
		readers: readers,
	}, nil
}

// Config returns the compactor's configuration.
func (c *Compactor) Config() *Config {
	return c.config
}

// IsReaderTool reports whether results of the named tool are references into storage.
func (c *Compactor) IsReaderTool(name string) bool {
	_, ok := c.readers[name]
	return ok
}

// Compact rewrites the tool results inside the compaction window and returns
// the new transcript. The input slice and its messages are not modified.
//
// Nothing is rewritten unless the final message is an assistant turn with
// text. When a write fails, compaction stops: the transcript rewritten so far
// is returned together with the error.
func (c *Compactor) Compact(ctx context.Context, messages []types.Message) ([]types.Message, *Result, error) {
	start := time.Now()

	out := make([]types.Message, len(messages))
	copy(out, messages)

	result := &Result{
		Strategy:   c.config.Strategy,
		Offloads:   []Offload{},
		References: []Reference{},
	}

	if !EndsWithAssistantText(messages) {
		c.logger.Debug("transcript not concluded by assistant text, skipping", "messages", len(messages))
		result.Skipped = true
		result.Duration = time.Since(start)
		return out, result, nil
	}

	window := ResolveWindow(messages, c.config.Boundary)
	result.Window = window

	c.logger.Info("starting compaction",
		"messages", len(messages),
		"boundary", c.config.Boundary.String(),
		"window_start", window.Start,
		"window_end", window.EndExclusive,
		"storage", c.config.Adapter.Identity(),
	)

	end := min(window.EndExclusive, len(messages)-1)
	for i := window.Start; i < end; i++ {
		msg := out[i]
		if msg.Role != types.RoleTool || msg.IsPlainText() {
			continue
		}

		cloned := false
		for j, part := range messages[i].Parts {
			if part.Type != types.PartTypeToolResult || part.Output == nil {
				continue
			}

			var replacement string
			if c.IsReaderTool(part.ToolName) {
				ref := c.reference(part)
				ref.MessageIndex, ref.PartIndex = i, j
				result.References = append(result.References, ref)
				replacement = referenceText(ref)
			} else {
				content, ok, err := c.payload(part.Output)
				if err != nil {
					result.Duration = time.Since(start)
					return out, result, NewCompactionError("Serialize", fmt.Errorf("%w: %w", ErrSerialization, err)).
						WithMessage(i).
						WithContext("tool_call_id", part.ToolCallID)
				}
				if !ok {
					continue
				}

				offload, err := c.offload(ctx, content)
				if err != nil {
					c.logger.Error("failed to offload tool result",
						"message_index", i,
						"tool_call_id", part.ToolCallID,
						"error", err,
					)
					result.Duration = time.Since(start)
					return out, result, NewCompactionError("Offload", fmt.Errorf("%w: %w", ErrStorageError, err)).
						WithMessage(i).
						WithContext("tool_call_id", part.ToolCallID).
						WithContext("storage", c.config.Adapter.Identity())
				}
				offload.MessageIndex, offload.PartIndex = i, j
				offload.ToolCallID, offload.ToolName = part.ToolCallID, part.ToolName

				replacement = writtenText(c.config.Adapter.Identity(), offload)
				result.Offloads = append(result.Offloads, offload)
				result.BytesOffloaded += offload.Bytes
				if saved := ApproximateTokens(content) - ApproximateTokens(replacement); saved > 0 {
					result.TokensSaved += saved
				}

				c.logger.Debug("offloaded tool result",
					"message_index", i,
					"tool_name", part.ToolName,
					"key", offload.Key,
					"bytes", offload.Bytes,
				)
			}

			if !cloned {
				msg = msg.Clone()
				out[i] = msg
				cloned = true
			}
			msg.Parts[j].Output = types.TextOutput(replacement)
		}
	}

	result.Duration = time.Since(start)

	c.logger.Info("compaction complete",
		"offloads", len(result.Offloads),
		"references", len(result.References),
		"bytes_offloaded", result.BytesOffloaded,
		"tokens_saved", result.TokensSaved,
		"duration_ms", result.Duration.Milliseconds(),
	)

	return out, result, nil
}

// Stats reports what Compact would do with messages without touching storage.
func (c *Compactor) Stats(messages []types.Message) (*Stats, error) {
	stats := &Stats{
		TotalMessages: len(messages),
		TotalTokens:   SumTokens(messages),
		Concluded:     EndsWithAssistantText(messages),
	}
	if !stats.Concluded {
		return stats, nil
	}

	stats.Window = ResolveWindow(messages, c.config.Boundary)
	end := min(stats.Window.EndExclusive, len(messages)-1)
	for i := stats.Window.Start; i < end; i++ {
		msg := messages[i]
		if msg.Role != types.RoleTool {
			continue
		}
		for _, part := range msg.Parts {
			if part.Type != types.PartTypeToolResult || part.Output == nil {
				continue
			}
			stats.ToolResults++

			if c.IsReaderTool(part.ToolName) {
				stats.ReaderResults++
				continue
			}
			content, ok, err := c.payload(part.Output)
			if err != nil {
				return nil, NewCompactionError("Stats", fmt.Errorf("%w: %w", ErrSerialization, err)).WithMessage(i)
			}
			if ok {
				stats.OffloadCandidates++
				stats.CandidateBytes += len(content)
				stats.CandidateTokens += ApproximateTokens(content)
			}
		}
	}
	return stats, nil
}

// EndsWithAssistantText reports whether the final message is an assistant turn with text.
func EndsWithAssistantText(messages []types.Message) bool {
	if len(messages) == 0 {
		return false
	}
	last := messages[len(messages)-1]
	return last.Role == types.RoleAssistant && last.HasText()
}

// payload returns the text to persist for a tool output. ok is false when
// there is nothing to write.
func (c *Compactor) payload(output *types.ToolOutput) (string, bool, error) {
	var content string
	switch output.Kind {
	case types.OutputKindJSON:
		if output.Value == nil {
			return "", false, nil
		}
		if s, ok := output.Value.(string); ok {
			content = s
		} else {
			serialized, err := c.config.Serializer(output.Value)
			if err != nil {
				return "", false, err
			}
			content = serialized
		}
	case types.OutputKindText:
		content, _ = output.TextValue()
	}
	return content, content != "", nil
}

// offload writes content under a fresh key and registers it
func (c *Compactor) offload(ctx context.Context, content string) (Offload, error) {
	adapter := c.config.Adapter
	key := adapter.ResolveKey(uuid.NewString() + ".txt")

	res, err := adapter.Write(ctx, storage.WriteParams{
		Key:         key,
		Body:        []byte(content),
		ContentType: storage.ContentTypeText,
	})
	if err != nil {
		return Offload{}, err
	}

	var url string
	if res != nil {
		if res.Key != "" {
			key = res.Key
		}
		url = res.URL
	}

	identity := adapter.Identity()
	c.config.KnownKeys.Register(identity, key)

	return Offload{
		Key:   key,
		Path:  storage.FormatPath(identity, key),
		URL:   url,
		Bytes: len(content),
	}, nil
}

// reference extracts the storage location a reader result points at and
// registers it.
func (c *Compactor) reference(part types.Part) Reference {
	ref := Reference{ToolCallID: part.ToolCallID, ToolName: part.ToolName}

	fields := outputFields(part.Output)
	if s, ok := fields["fileName"].(string); ok {
		ref.FileName = s
	}
	if s, ok := fields["key"].(string); ok {
		ref.Key = s
	}
	if s, ok := fields["storage"].(string); ok && s != "" {
		ref.Storage = storage.CanonicalIdentity(s)
	}

	if ref.Storage != "" && ref.Key != "" {
		c.config.KnownKeys.Register(ref.Storage, ref.Key)
	}
	return ref
}

// outputFields returns the top-level object of a reader output. Text outputs
// holding a JSON object are decoded.
func outputFields(output *types.ToolOutput) map[string]any {
	if output == nil {
		return nil
	}

	if output.Kind == types.OutputKindText {
		text, ok := output.TextValue()
		if !ok || !strings.HasPrefix(strings.TrimSpace(text), "{") {
			return nil
		}
		var fields map[string]any
		if err := json.Unmarshal([]byte(text), &fields); err != nil {
			return nil
		}
		return fields
	}

	switch v := output.Value.(type) {
	case map[string]any:
		return v
	case nil, string:
		return nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		var fields map[string]any
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil
		}
		return fields
	}
}

func referenceText(ref Reference) string {
	if ref.Storage != "" && ref.Key != "" {
		return fmt.Sprintf("Read from storage: %s. Key: %s", storage.FormatPath(ref.Storage, ref.Key), ref.Key)
	}
	name := ref.FileName
	if name == "" {
		name = "<unknown>"
	}
	return "Read from file: " + name
}

func writtenText(identity string, o Offload) string {
	target := "storage"
	if storage.IsLocalIdentity(identity) {
		target = "file"
	}
	return fmt.Sprintf("Written to %s: %s. Key: %s. Use the read/search tools to inspect its contents.", target, o.Path, o.Key)
}
