package ctxoffload

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/youssefsiam38/ctxoffload/compaction"
	"github.com/youssefsiam38/ctxoffload/storage"
	"github.com/youssefsiam38/ctxoffload/tool"
	"github.com/youssefsiam38/ctxoffload/tool/builtin"
	"github.com/youssefsiam38/ctxoffload/types"
)

func transcript(payload string) []types.Message {
	return []types.Message{
		types.NewTextMessage(types.RoleUser, "what is in the report?"),
		types.NewPartsMessage(types.RoleAssistant, types.ToolCallPart("c1", "fetchReport", map[string]any{})),
		types.NewPartsMessage(types.RoleTool, types.ToolResultPart("c1", "fetchReport", types.TextOutput(payload))),
		types.NewTextMessage(types.RoleAssistant, "The report lists three incidents."),
	}
}

func newBlobClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	if cfg.BlobBackend == nil {
		cfg.BlobBackend = storage.NewMemoryBackend()
	}
	if cfg.StorageURI == "" && cfg.Adapter == nil {
		cfg.StorageURI = "blob://reports"
	}
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return client
}

func TestNew_StorageSelection(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name         string
		cfg          Config
		wantIdentity string
		wantErr      error
	}{
		{name: "empty uri uses base dir", cfg: Config{BaseDir: dir}, wantIdentity: "file://" + dir},
		{name: "file uri", cfg: Config{StorageURI: "file://" + dir}, wantIdentity: "file://" + dir},
		{name: "blob namespace", cfg: Config{StorageURI: "blob:/reports", BlobBackend: storage.NewMemoryBackend()}, wantIdentity: "blob://reports"},
		{name: "blob root", cfg: Config{StorageURI: "blob:", BlobBackend: storage.NewMemoryBackend()}, wantIdentity: "blob:"},
		{name: "blob without backend", cfg: Config{StorageURI: "blob://reports"}, wantErr: storage.ErrInvalidURI},
		{name: "unknown scheme", cfg: Config{StorageURI: "s3://bucket"}, wantErr: storage.ErrInvalidURI},
		{name: "relative file path", cfg: Config{StorageURI: "file:relative/dir"}, wantErr: storage.ErrInvalidURI},
		{name: "negative timeout", cfg: Config{BaseDir: dir, ToolTimeout: -1}, wantErr: ErrInvalidConfig},
		{name: "empty reader name", cfg: Config{BaseDir: dir, ReaderToolNames: []string{""}}, wantErr: ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected %v, got %v", tt.wantErr, err)
				}
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("Expected configuration errors to wrap ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if got := client.Adapter().Identity(); got != tt.wantIdentity {
				t.Errorf("Identity() = %q, want %q", got, tt.wantIdentity)
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	client := newBlobClient(t, Config{})

	if client.KnownKeys() == nil || client.Hooks() == nil {
		t.Fatal("Expected registry and hooks defaults")
	}
	if client.executor.Timeout() != tool.DefaultTimeout {
		t.Errorf("Expected default tool timeout, got %v", client.executor.Timeout())
	}

	names := client.ToolRegistry().List()
	if len(names) != 2 || names[0] != builtin.SearchToolName || names[1] != builtin.ReadFileToolName {
		t.Errorf("Unexpected built-in tools: %v", names)
	}
	if len(client.AnthropicTools()) != 2 || len(client.Tools()) != 2 {
		t.Error("Expected both built-in tools to be exposed")
	}
}

func TestNew_ReaderToolNamesAreAdditive(t *testing.T) {
	client := newBlobClient(t, Config{ReaderToolNames: []string{"myReader", "readFile"}})

	got := client.ReaderToolNames()
	want := []string{"readFile", "grepAndSearchFile", "myReader"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("ReaderToolNames() = %v, want %v", got, want)
	}
}

func TestCompact_OffloadThenRead(t *testing.T) {
	ctx := context.Background()
	client := newBlobClient(t, Config{})

	payload := "incident 1\nincident 2\nincident 3"
	messages := transcript(payload)

	compacted, result, err := client.Compact(ctx, messages)
	if err != nil {
		t.Fatalf("Compact failed: %v", err)
	}
	if len(result.Offloads) != 1 {
		t.Fatalf("Expected one offload, got %+v", result.Offloads)
	}
	key := result.Offloads[0].Key

	text, _ := compacted[2].Parts[0].Output.TextValue()
	want := "Written to storage: blob://reports/" + key + ". Key: " + key + ". Use the read/search tools to inspect its contents."
	if text != want {
		t.Errorf("reference = %q, want %q", text, want)
	}
	if original, _ := messages[2].Parts[0].Output.TextValue(); original != payload {
		t.Error("Expected the input transcript to be left untouched")
	}
	if !client.KnownKeys().IsKnown("blob://reports", key) {
		t.Error("Expected the written key to be registered")
	}

	input, _ := json.Marshal(map[string]string{"key": key})
	res, err := client.ExecuteTool(ctx, builtin.ReadFileToolName, input)
	if err != nil {
		t.Fatalf("ExecuteTool failed: %v", err)
	}
	var read builtin.ReadResult
	if err := json.Unmarshal([]byte(res.Output), &read); err != nil {
		t.Fatalf("Unexpected output %q: %v", res.Output, err)
	}
	if read.Status != builtin.StatusOK || read.Content != payload {
		t.Errorf("Unexpected read result: %+v", read)
	}
}

func TestCompact_WithOptions(t *testing.T) {
	ctx := context.Background()
	client := newBlobClient(t, Config{})

	messages := []types.Message{
		types.NewTextMessage(types.RoleUser, "q"),
		types.NewPartsMessage(types.RoleTool, types.ToolResultPart("c1", "old", types.JSONOutput(map[string]any{"rows": 3}))),
		types.NewTextMessage(types.RoleUser, "q2"),
		types.NewPartsMessage(types.RoleTool, types.ToolResultPart("c2", "myReader", types.JSONOutput(map[string]any{"storage": "blob://reports", "key": "x.txt"}))),
		types.NewTextMessage(types.RoleAssistant, "a"),
	}

	var serialized []any
	_, result, err := client.Compact(ctx, messages,
		WithBoundary(compaction.EntireConversation()),
		WithReaderToolNames("myReader"),
		WithSerializer(func(v any) (string, error) {
			serialized = append(serialized, v)
			return "custom", nil
		}),
	)
	if err != nil {
		t.Fatalf("Compact failed: %v", err)
	}
	if len(result.Offloads) != 1 || len(result.References) != 1 {
		t.Fatalf("Expected one offload and one reference, got %+v", result)
	}
	if len(serialized) != 1 {
		t.Errorf("Expected the custom serializer to run once, got %d", len(serialized))
	}
	if !client.KnownKeys().IsKnown("blob://reports", "x.txt") {
		t.Error("Expected the reader reference to be registered")
	}

	// Options do not leak into later calls.
	_, result, err = client.Compact(ctx, messages)
	if err != nil {
		t.Fatalf("second Compact failed: %v", err)
	}
	if result.Window.Start != 3 {
		t.Errorf("Expected default boundary window start 3, got %+v", result.Window)
	}
	if len(result.Offloads) != 1 || len(result.References) != 0 {
		t.Errorf("Expected myReader to be a writer again, got %+v", result)
	}
}

func TestCompact_InvalidOptions(t *testing.T) {
	client := newBlobClient(t, Config{})

	tests := []struct {
		name string
		opt  CompactOption
	}{
		{name: "nil serializer", opt: WithSerializer(nil)},
		{name: "empty reader", opt: WithReaderToolNames("")},
		{name: "nil adapter", opt: WithAdapter(nil)},
		{name: "unknown strategy", opt: WithStrategy("summarize")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			messages := transcript("x")
			out, _, err := client.Compact(context.Background(), messages, tt.opt)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Expected ErrInvalidConfig, got %v", err)
			}
			if len(out) != len(messages) {
				t.Error("Expected the input to be returned")
			}
		})
	}
}

func TestCompact_Hooks(t *testing.T) {
	ctx := context.Background()
	client := newBlobClient(t, Config{})

	var after *compaction.Result
	client.Hooks().OnAfterCompaction(func(ctx context.Context, result *compaction.Result) error {
		after = result
		return nil
	})

	if _, _, err := client.Compact(ctx, transcript("payload")); err != nil {
		t.Fatalf("Compact failed: %v", err)
	}
	if after == nil || len(after.Offloads) != 1 {
		t.Fatalf("Expected after hook to see the result, got %+v", after)
	}

	client.Hooks().OnBeforeCompaction(func(ctx context.Context, messages []types.Message) error {
		return errors.New("not now")
	})
	_, result, err := client.Compact(ctx, transcript("payload"))
	if !errors.Is(err, ErrCompactionAborted) {
		t.Fatalf("Expected ErrCompactionAborted, got %v", err)
	}
	if result != nil {
		t.Error("Expected nothing to run after an aborted pass")
	}
}

func TestCompact_SkipsUnconcludedTranscript(t *testing.T) {
	client := newBlobClient(t, Config{})

	messages := transcript("payload")[:3]
	out, result, err := client.Compact(context.Background(), messages)
	if err != nil {
		t.Fatalf("Compact failed: %v", err)
	}
	if !result.Skipped || len(result.Offloads) != 0 {
		t.Errorf("Expected a skipped pass, got %+v", result)
	}
	if text, _ := out[2].Parts[0].Output.TextValue(); text != "payload" {
		t.Errorf("Expected tool output untouched, got %q", text)
	}
}

func TestExecuteTool_UnknownKeyHook(t *testing.T) {
	ctx := context.Background()
	client := newBlobClient(t, Config{})

	var refused string
	client.Hooks().OnUnknownKey(func(ctx context.Context, toolName, key string) error {
		refused = key
		return nil
	})

	res, err := client.ExecuteTool(ctx, builtin.SearchToolName, json.RawMessage(`{"key":"../secrets.txt","pattern":"."}`))
	if err != nil {
		t.Fatalf("ExecuteTool failed: %v", err)
	}
	if builtin.ParseStatus(res.Output) != builtin.StatusUnknownKey {
		t.Errorf("Expected unknown_key, got %q", res.Output)
	}
	if refused != "../secrets.txt" {
		t.Errorf("Expected hook to receive the key, got %q", refused)
	}
}

func TestExecuteTool_UnknownKeyHookIgnoresOtherTools(t *testing.T) {
	ctx := context.Background()
	client := newBlobClient(t, Config{})

	lookalike := tool.NewFuncTool("lookup", "Returns a tagged result",
		tool.ToolSchema{Type: "object", Properties: map[string]tool.PropertyDef{}},
		func(ctx context.Context, input json.RawMessage) (string, error) {
			return `{"status":"unknown_key","key":"a.txt"}`, nil
		})
	if err := client.RegisterTool(lookalike); err != nil {
		t.Fatalf("RegisterTool failed: %v", err)
	}

	fired := 0
	client.Hooks().OnUnknownKey(func(ctx context.Context, toolName, key string) error {
		fired++
		return nil
	})

	if _, err := client.ExecuteTool(ctx, "lookup", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("ExecuteTool failed: %v", err)
	}
	if fired != 0 {
		t.Errorf("Expected no unknown-key hook for a custom tool, fired %d times", fired)
	}
}

func TestRunToolCalls(t *testing.T) {
	ctx := context.Background()
	client := newBlobClient(t, Config{})

	_, result, err := client.Compact(ctx, transcript("alpha\nbeta"))
	if err != nil {
		t.Fatalf("Compact failed: %v", err)
	}
	key := result.Offloads[0].Key

	var calls int
	client.Hooks().OnToolCall(func(ctx context.Context, name string, input json.RawMessage, output string, err error) error {
		calls++
		return nil
	})

	assistant := types.NewPartsMessage(types.RoleAssistant,
		types.TextPart("Searching."),
		types.ToolCallPart("r1", builtin.SearchToolName, map[string]any{"key": key, "pattern": "beta"}),
		types.ToolCallPart("r2", "missingTool", map[string]any{}),
	)
	reply, err := client.RunToolCalls(ctx, assistant)
	if err != nil {
		t.Fatalf("RunToolCalls failed: %v", err)
	}
	if reply.Role != types.RoleTool || len(reply.Parts) != 2 {
		t.Fatalf("Unexpected reply: %+v", reply)
	}
	if calls != 2 {
		t.Errorf("Expected 2 tool hook calls, got %d", calls)
	}

	first := reply.Parts[0]
	text, _ := first.Output.TextValue()
	if first.ToolCallID != "r1" || first.IsError || builtin.ParseStatus(text) != builtin.StatusOK {
		t.Errorf("Unexpected search part: %+v", first)
	}
	if !strings.Contains(text, `"lineNumber":2`) {
		t.Errorf("Expected the match on line 2, got %s", text)
	}
	if !reply.Parts[1].IsError {
		t.Error("Expected the unknown tool to produce an error result")
	}
}

func TestCompactAnthropic(t *testing.T) {
	ctx := context.Background()
	client := newBlobClient(t, Config{})

	params := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock("fetch it")),
		anthropic.NewAssistantMessage(anthropic.NewToolUseBlock("tu1", map[string]any{"id": 7}, "fetchReport")),
		anthropic.NewUserMessage(anthropic.NewToolResultBlock("tu1", "large payload", false)),
		anthropic.NewAssistantMessage(anthropic.NewTextBlock("done")),
	}

	out, result, err := client.CompactAnthropic(ctx, params)
	if err != nil {
		t.Fatalf("CompactAnthropic failed: %v", err)
	}
	if len(out) != 4 || len(result.Offloads) != 1 {
		t.Fatalf("Unexpected output: %d messages, %+v", len(out), result.Offloads)
	}

	block := out[2].Content[0].OfToolResult
	if block == nil || block.ToolUseID != "tu1" {
		t.Fatalf("Expected the tool_result block to survive, got %+v", out[2].Content[0])
	}
	if len(block.Content) != 1 || block.Content[0].OfText == nil ||
		!strings.HasPrefix(block.Content[0].OfText.Text, "Written to storage: blob://reports/") {
		t.Errorf("Unexpected tool_result content: %+v", block.Content)
	}
}

func TestStatsAndCountTokens(t *testing.T) {
	client := newBlobClient(t, Config{})
	messages := transcript(strings.Repeat("x", 400))

	stats, err := client.Stats(messages)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if !stats.Concluded || stats.OffloadCandidates != 1 || stats.CandidateBytes != 400 || stats.CandidateTokens != 100 {
		t.Errorf("Unexpected stats: %+v", stats)
	}

	count, err := client.CountTokens(context.Background(), messages)
	if err != nil {
		t.Fatalf("CountTokens failed: %v", err)
	}
	if count.UsedAPI || count.TotalTokens != compaction.SumTokens(messages) {
		t.Errorf("Expected approximate count, got %+v", count)
	}
}

func TestClientError(t *testing.T) {
	err := NewClientError("Compact", ErrInvalidConfig).WithContext("reason", "x")
	if err.Error() != "ctxoffload: Compact: invalid configuration" {
		t.Errorf("Unexpected message: %q", err.Error())
	}
	if !errors.Is(err, ErrInvalidConfig) || err.Context["reason"] != "x" {
		t.Error("Expected wrapped error and context")
	}
}
