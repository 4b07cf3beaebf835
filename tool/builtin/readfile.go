package builtin

import (
	"context"
	"encoding/json"

	"github.com/youssefsiam38/ctxoffload/storage"
	"github.com/youssefsiam38/ctxoffload/tool"
)

const readFileDescription = `Read the full text of a tool result that was moved to storage during this conversation.

Use the key and storage from a "Written to file" or "Written to storage" note. Only keys written or read earlier in this conversation can be read; arbitrary paths are rejected. For large payloads prefer grepAndSearchFile.`

// ReadInput is the input accepted by readFile
type ReadInput struct {
	Key     string `json:"key"`
	Storage string `json:"storage,omitempty"`
}

// ReadFileTool reads offloaded payloads
type ReadFileTool struct {
	opts Options
}

// NewReadFileTool creates the readFile tool
func NewReadFileTool(opts Options) (*ReadFileTool, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &ReadFileTool{opts: opts}, nil
}

func (t *ReadFileTool) Name() string        { return ReadFileToolName }
func (t *ReadFileTool) Description() string { return readFileDescription }

func (t *ReadFileTool) InputSchema() tool.ToolSchema {
	return tool.ToolSchema{
		Type: "object",
		Properties: map[string]tool.PropertyDef{
			"key": {
				Type:        "string",
				Description: "Storage key to read (no scheme), exactly as shown after \"Key:\".",
				MinLength:   tool.Int(1),
			},
			"storage": {
				Type:        "string",
				Description: "Storage URI such as file:///abs/dir or blob://namespace. Omit to use the default storage.",
			},
		},
		Required: []string{"key"},
	}
}

// Execute implements tool.Tool
func (t *ReadFileTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var in ReadInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", err
	}
	return render(t.Read(ctx, in))
}

// Read performs a read and reports the outcome as a tagged result
func (t *ReadFileTool) Read(ctx context.Context, in ReadInput) *ReadResult {
	adapter, err := t.opts.adapter(in.Storage)
	if err != nil {
		return &ReadResult{Status: StatusInvalidStorage, Key: in.Key, Content: storageMessage("reading", err)}
	}

	if !t.opts.KnownKeys.IsKnown(adapter.Identity(), in.Key) {
		return &ReadResult{Status: StatusUnknownKey, Key: in.Key, Content: unknownKeyMessage(in.Key)}
	}

	if !storage.CanRead(adapter) {
		return &ReadResult{
			Status:  StatusUnsupported,
			Key:     in.Key,
			Content: "No read method found in storage adapter. Are you sure the storage is correct? If yes, " + retryHint,
		}
	}

	content, err := storage.ReadText(ctx, adapter, in.Key)
	if err != nil {
		return &ReadResult{Status: failureStatus(err), Key: in.Key, Content: storageMessage("reading", err)}
	}

	return &ReadResult{
		Status:  StatusOK,
		Storage: adapter.Identity(),
		Key:     in.Key,
		Content: content,
	}
}
