package builtin

import (
	"context"
	"encoding/json"

	"github.com/youssefsiam38/ctxoffload/storage"
	"github.com/youssefsiam38/ctxoffload/tool"
)

const searchDescription = `Search a tool result that was moved to storage during this conversation and return the matching lines with their 1-based line numbers.

Use the key and storage from a "Written to file" or "Written to storage" note. Only keys written or read earlier in this conversation can be searched. The pattern is a regular expression without slashes; flags may contain i, m and s.`

// SearchInput is the input accepted by grepAndSearchFile
type SearchInput struct {
	Key     string `json:"key"`
	Storage string `json:"storage,omitempty"`
	Pattern string `json:"pattern"`
	Flags   string `json:"flags,omitempty"`
}

// SearchTool searches offloaded payloads line by line
type SearchTool struct {
	opts Options
}

// NewSearchTool creates the grepAndSearchFile tool
func NewSearchTool(opts Options) (*SearchTool, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &SearchTool{opts: opts}, nil
}

func (t *SearchTool) Name() string        { return SearchToolName }
func (t *SearchTool) Description() string { return searchDescription }

func (t *SearchTool) InputSchema() tool.ToolSchema {
	return tool.ToolSchema{
		Type: "object",
		Properties: map[string]tool.PropertyDef{
			"key": {
				Type:        "string",
				Description: "Storage key to search (no scheme), exactly as shown after \"Key:\".",
				MinLength:   tool.Int(1),
			},
			"storage": {
				Type:        "string",
				Description: "Storage URI used when the key was written. Omit to use the default storage.",
			},
			"pattern": {
				Type:        "string",
				Description: "Regular expression (without slashes)",
				MinLength:   tool.Int(1),
			},
			"flags": {
				Type:        "string",
				Description: "Regex flags, e.g. i, m or s (optional)",
			},
		},
		Required: []string{"key", "pattern"},
	}
}

// Execute implements tool.Tool
func (t *SearchTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var in SearchInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", err
	}
	return render(t.Search(ctx, in))
}

// Search runs a pattern search and reports the outcome as a tagged result
func (t *SearchTool) Search(ctx context.Context, in SearchInput) *SearchResult {
	result := &SearchResult{Key: in.Key, Pattern: in.Pattern, Flags: in.Flags}

	pattern, err := storage.CompilePattern(in.Pattern, in.Flags)
	if err != nil {
		result.Status = StatusInvalidPattern
		result.Content = "Invalid regex: " + err.Error()
		return result
	}

	adapter, err := t.opts.adapter(in.Storage)
	if err != nil {
		result.Status = StatusInvalidStorage
		result.Content = storageMessage("searching", err)
		return result
	}

	if !t.opts.KnownKeys.IsKnown(adapter.Identity(), in.Key) {
		result.Status = StatusUnknownKey
		result.Content = unknownKeyMessage(in.Key)
		return result
	}

	matches, err := storage.Grep(ctx, adapter, in.Key, pattern)
	if err != nil {
		result.Status = failureStatus(err)
		result.Content = storageMessage("searching", err)
		return result
	}

	result.Status = StatusOK
	result.Storage = adapter.Identity()
	result.Matches = matches
	if len(matches) == 0 {
		result.Content = "No lines matched."
	}
	return result
}

// Tools creates both built-in tools
func Tools(opts Options) ([]tool.Tool, error) {
	read, err := NewReadFileTool(opts)
	if err != nil {
		return nil, err
	}
	search, err := NewSearchTool(opts)
	if err != nil {
		return nil, err
	}
	return []tool.Tool{read, search}, nil
}
