package ctxoffload

import (
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/youssefsiam38/ctxoffload/compaction"
	"github.com/youssefsiam38/ctxoffload/hooks"
	"github.com/youssefsiam38/ctxoffload/knownkeys"
	"github.com/youssefsiam38/ctxoffload/storage"
	"github.com/youssefsiam38/ctxoffload/tool"
)

// DefaultModel is used for token counting when Config.Model is empty
const DefaultModel = "claude-sonnet-4-5-20250929"

// Config configures a Client.
//
// Example:
//
//	client, err := ctxoffload.New(ctxoffload.Config{
//	    StorageURI: "file:///var/lib/agent/offload",
//	    Boundary:   compaction.EntireConversation(),
//	})
type Config struct {
	// StorageURI selects where payloads are written: "", "file:///abs/dir",
	// "blob:" or "blob://namespace". Ignored when Adapter is set.
	StorageURI string

	// Adapter is a ready storage adapter. Takes precedence over StorageURI.
	Adapter storage.Adapter

	// BlobBackend backs blob: URIs, both for StorageURI and for storage
	// arguments passed to the read and search tools
	BlobBackend storage.Backend

	// BaseDir is the file storage root for an empty StorageURI.
	// Defaults to the working directory.
	BaseDir string

	// Boundary selects the compaction window. Zero value: since the last
	// user or assistant text turn.
	Boundary compaction.Boundary

	// Serializer renders structured tool outputs. Defaults to indented JSON.
	Serializer compaction.Serializer

	// ReaderToolNames adds tool names whose results are treated as references
	// to stored payloads. readFile and grepAndSearchFile are always included.
	ReaderToolNames []string

	// KnownKeys is shared by compaction and the read tools. A fresh registry
	// is created when nil.
	KnownKeys *knownkeys.Registry

	// Logger receives structured logs. *slog.Logger satisfies it.
	Logger compaction.Logger

	// Hooks observes compaction passes and tool calls
	Hooks *hooks.Registry

	// ToolTimeout bounds each tool call. Default: tool.DefaultTimeout.
	ToolTimeout time.Duration

	// AnthropicClient enables exact token counting. Without it, counts are approximated.
	AnthropicClient *anthropic.Client

	// Model is used for token counting. Default: DefaultModel.
	Model string
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.ToolTimeout < 0 {
		return fmt.Errorf("%w: ToolTimeout must not be negative", ErrInvalidConfig)
	}
	for _, name := range c.ReaderToolNames {
		if name == "" {
			return fmt.Errorf("%w: reader tool names must not be empty", ErrInvalidConfig)
		}
	}
	return nil
}

// applyDefaults fills zero values
func (c *Config) applyDefaults() {
	if c.KnownKeys == nil {
		c.KnownKeys = knownkeys.New()
	}
	if c.Hooks == nil {
		c.Hooks = hooks.NewRegistry()
	}
	if c.Serializer == nil {
		c.Serializer = compaction.JSONSerializer
	}
	if c.ToolTimeout == 0 {
		c.ToolTimeout = tool.DefaultTimeout
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
}

// readerNames merges extra names into the default reader tool names
func readerNames(extra []string) []string {
	names := compaction.DefaultReaderToolNames()
	seen := make(map[string]struct{}, len(names)+len(extra))
	for _, name := range names {
		seen[name] = struct{}{}
	}
	for _, name := range extra {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}
