package builtin

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/youssefsiam38/ctxoffload/compaction"
	"github.com/youssefsiam38/ctxoffload/knownkeys"
	"github.com/youssefsiam38/ctxoffload/storage"
	"github.com/youssefsiam38/ctxoffload/tool"
	"github.com/youssefsiam38/ctxoffload/types"
)

type fixture struct {
	adapter *storage.BlobAdapter
	backend *storage.MemoryBackend
	keys    *knownkeys.Registry
	opts    Options
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	backend := storage.NewMemoryBackend()
	adapter, err := storage.NewBlobAdapter(storage.BlobOptions{Namespace: "reports", Backend: backend})
	if err != nil {
		t.Fatalf("NewBlobAdapter failed: %v", err)
	}
	keys := knownkeys.New()

	return &fixture{
		adapter: adapter,
		backend: backend,
		keys:    keys,
		opts: Options{
			Adapter:   adapter,
			Resolver:  &storage.Resolver{Blob: backend},
			KnownKeys: keys,
		},
	}
}

// put writes body under key and optionally registers it
func (f *fixture) put(t *testing.T, key, body string, register bool) {
	t.Helper()
	_, err := f.adapter.Write(context.Background(), storage.WriteParams{Key: key, Body: []byte(body), ContentType: storage.ContentTypeText})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if register {
		f.keys.Register(f.adapter.Identity(), key)
	}
}

// countingAdapter records reads so tests can prove the registry gate runs first
type countingAdapter struct {
	storage.Adapter
	reads int
}

func (a *countingAdapter) ReadText(ctx context.Context, key string) (string, error) {
	a.reads++
	return storage.ReadText(ctx, a.Adapter, key)
}

func TestNewTools_RequireDependencies(t *testing.T) {
	f := newFixture(t)

	if _, err := NewReadFileTool(Options{KnownKeys: f.keys}); err == nil {
		t.Error("Expected error without adapter")
	}
	if _, err := NewSearchTool(Options{Adapter: f.adapter}); err == nil {
		t.Error("Expected error without registry")
	}

	tools, err := Tools(f.opts)
	if err != nil {
		t.Fatalf("Tools failed: %v", err)
	}
	if len(tools) != 2 || tools[0].Name() != "readFile" || tools[1].Name() != "grepAndSearchFile" {
		t.Errorf("Unexpected tools: %v", tools)
	}
}

func TestReadFile(t *testing.T) {
	tests := []struct {
		name        string
		input       ReadInput
		wantStatus  Status
		wantContent string
	}{
		{name: "known key default storage", input: ReadInput{Key: "a.txt"}, wantStatus: StatusOK, wantContent: "alpha"},
		{name: "known key explicit storage", input: ReadInput{Key: "a.txt", Storage: "blob://reports"}, wantStatus: StatusOK, wantContent: "alpha"},
		{name: "non-canonical storage", input: ReadInput{Key: "a.txt", Storage: "blob:/reports"}, wantStatus: StatusOK, wantContent: "alpha"},
		{name: "unregistered key", input: ReadInput{Key: "secret.txt"}, wantStatus: StatusUnknownKey},
		{name: "known key other namespace", input: ReadInput{Key: "a.txt", Storage: "blob://other"}, wantStatus: StatusUnknownKey},
		{name: "bad storage uri", input: ReadInput{Key: "a.txt", Storage: "s3://bucket"}, wantStatus: StatusInvalidStorage},
		{name: "registered but missing", input: ReadInput{Key: "gone.txt"}, wantStatus: StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.put(t, "a.txt", "alpha", true)
			f.put(t, "secret.txt", "do not read", false)
			f.keys.Register(f.adapter.Identity(), "gone.txt")

			read, err := NewReadFileTool(f.opts)
			if err != nil {
				t.Fatalf("NewReadFileTool failed: %v", err)
			}

			got := read.Read(context.Background(), tt.input)
			if got.Status != tt.wantStatus {
				t.Fatalf("Status = %q, want %q (content %q)", got.Status, tt.wantStatus, got.Content)
			}
			if got.Key != tt.input.Key {
				t.Errorf("Key = %q, want %q", got.Key, tt.input.Key)
			}
			if tt.wantStatus == StatusOK {
				if got.Content != tt.wantContent {
					t.Errorf("Content = %q, want %q", got.Content, tt.wantContent)
				}
				if got.Storage != "blob://reports" {
					t.Errorf("Storage = %q, want blob://reports", got.Storage)
				}
				return
			}
			if got.Storage != "" {
				t.Errorf("Expected no storage on failure, got %q", got.Storage)
			}
			if got.Content == "" {
				t.Error("Expected a message for the agent")
			}
		})
	}
}

func TestReadFile_UnknownKeyNeverReads(t *testing.T) {
	f := newFixture(t)
	f.put(t, "secret.txt", "do not read", false)

	counting := &countingAdapter{Adapter: f.adapter}
	read, err := NewReadFileTool(Options{Adapter: counting, KnownKeys: f.keys})
	if err != nil {
		t.Fatalf("NewReadFileTool failed: %v", err)
	}

	got := read.Read(context.Background(), ReadInput{Key: "secret.txt"})
	if got.Status != StatusUnknownKey {
		t.Fatalf("Status = %q, want %q", got.Status, StatusUnknownKey)
	}
	if counting.reads != 0 {
		t.Errorf("Expected no reads, got %d", counting.reads)
	}
	if !strings.Contains(got.Content, "make the original tool call again") {
		t.Errorf("Expected retry guidance, got %q", got.Content)
	}
}

type sinkAdapter struct{}

func (sinkAdapter) Write(_ context.Context, p storage.WriteParams) (*storage.WriteResult, error) {
	return &storage.WriteResult{Key: p.Key}, nil
}
func (sinkAdapter) ResolveKey(name string) string { return storage.SanitizeName(name) }
func (sinkAdapter) Identity() string              { return "custom:sink" }

func TestReadFile_Unsupported(t *testing.T) {
	keys := knownkeys.New()
	keys.Register("custom:sink", "a.txt")

	read, err := NewReadFileTool(Options{Adapter: sinkAdapter{}, KnownKeys: keys})
	if err != nil {
		t.Fatalf("NewReadFileTool failed: %v", err)
	}

	got := read.Read(context.Background(), ReadInput{Key: "a.txt", Storage: "custom:sink"})
	if got.Status != StatusUnsupported {
		t.Errorf("Status = %q, want %q", got.Status, StatusUnsupported)
	}
}

func TestSearch(t *testing.T) {
	body := "first line\nERROR: disk full\r\nok\rerror again"

	tests := []struct {
		name       string
		input      SearchInput
		wantStatus Status
		wantLines  []int
	}{
		{name: "case sensitive", input: SearchInput{Key: "log.txt", Pattern: "ERROR"}, wantStatus: StatusOK, wantLines: []int{2}},
		{name: "ignore case", input: SearchInput{Key: "log.txt", Pattern: "error", Flags: "i"}, wantStatus: StatusOK, wantLines: []int{2, 4}},
		{name: "global flag ignored", input: SearchInput{Key: "log.txt", Pattern: "ok", Flags: "g"}, wantStatus: StatusOK, wantLines: []int{3}},
		{name: "no match", input: SearchInput{Key: "log.txt", Pattern: "panic"}, wantStatus: StatusOK},
		{name: "invalid pattern", input: SearchInput{Key: "log.txt", Pattern: "("}, wantStatus: StatusInvalidPattern},
		{name: "invalid flag", input: SearchInput{Key: "log.txt", Pattern: "x", Flags: "q"}, wantStatus: StatusInvalidPattern},
		{name: "unknown key", input: SearchInput{Key: "other.txt", Pattern: "x"}, wantStatus: StatusUnknownKey},
		{name: "bad storage", input: SearchInput{Key: "log.txt", Storage: "ftp://x", Pattern: "x"}, wantStatus: StatusInvalidStorage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.put(t, "log.txt", body, true)
			f.put(t, "other.txt", "x", false)

			search, err := NewSearchTool(f.opts)
			if err != nil {
				t.Fatalf("NewSearchTool failed: %v", err)
			}

			got := search.Search(context.Background(), tt.input)
			if got.Status != tt.wantStatus {
				t.Fatalf("Status = %q, want %q (content %q)", got.Status, tt.wantStatus, got.Content)
			}
			if got.Pattern != tt.input.Pattern || got.Flags != tt.input.Flags {
				t.Errorf("Expected pattern and flags echoed, got %q %q", got.Pattern, got.Flags)
			}
			if len(got.Matches) != len(tt.wantLines) {
				t.Fatalf("Matches = %+v, want lines %v", got.Matches, tt.wantLines)
			}
			for i, line := range tt.wantLines {
				if got.Matches[i].LineNumber != line {
					t.Errorf("match %d on line %d, want %d", i, got.Matches[i].LineNumber, line)
				}
			}
			if tt.wantStatus != StatusOK && got.Storage != "" {
				t.Errorf("Expected no storage on failure, got %q", got.Storage)
			}
		})
	}
}

func TestExecute_RendersTaggedJSON(t *testing.T) {
	f := newFixture(t)
	f.put(t, "a.txt", "alpha", true)

	tools, err := Tools(f.opts)
	if err != nil {
		t.Fatalf("Tools failed: %v", err)
	}
	registry := tool.NewRegistry()
	if err := registry.RegisterAll(tools...); err != nil {
		t.Fatalf("RegisterAll failed: %v", err)
	}
	executor := tool.NewExecutor(registry)

	res := executor.Execute(context.Background(), ReadFileToolName, json.RawMessage(`{"key":"a.txt"}`))
	if res.Error != nil {
		t.Fatalf("Execute failed: %v", res.Error)
	}
	if ParseStatus(res.Output) != StatusOK {
		t.Errorf("Expected ok status, got %q", res.Output)
	}

	res = executor.Execute(context.Background(), SearchToolName, json.RawMessage(`{"key":"nope.txt","pattern":"a"}`))
	if res.Error != nil {
		t.Fatalf("Expected a result, not an error: %v", res.Error)
	}
	if ParseStatus(res.Output) != StatusUnknownKey {
		t.Errorf("Expected unknown_key status, got %q", res.Output)
	}

	res = executor.Execute(context.Background(), SearchToolName, json.RawMessage(`{"key":"a.txt"}`))
	if !errors.Is(res.Error, tool.ErrInvalidInput) {
		t.Errorf("Expected missing pattern to fail validation, got %v", res.Error)
	}

	if ParseStatus("not json") != "" {
		t.Error("Expected empty status for free text")
	}
}

func TestReadResults_AreCompactedAsReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	compactor, err := compaction.New(&compaction.Config{
		Adapter:   f.adapter,
		Boundary:  compaction.EntireConversation(),
		KnownKeys: f.keys,
	})
	if err != nil {
		t.Fatalf("compaction.New failed: %v", err)
	}

	transcript := []types.Message{
		types.NewTextMessage(types.RoleUser, "fetch it"),
		types.NewPartsMessage(types.RoleAssistant, types.ToolCallPart("c1", "fetch", map[string]any{})),
		types.NewPartsMessage(types.RoleTool, types.ToolResultPart("c1", "fetch", types.TextOutput("line one\nneedle here"))),
		types.NewTextMessage(types.RoleAssistant, "fetched"),
	}
	_, result, err := compactor.Compact(ctx, transcript)
	if err != nil {
		t.Fatalf("Compact failed: %v", err)
	}
	if len(result.Offloads) != 1 {
		t.Fatalf("Expected one offload, got %+v", result.Offloads)
	}
	key := result.Offloads[0].Key

	search, err := NewSearchTool(f.opts)
	if err != nil {
		t.Fatalf("NewSearchTool failed: %v", err)
	}
	found := search.Search(ctx, SearchInput{Key: key, Pattern: "needle"})
	if found.Status != StatusOK || len(found.Matches) != 1 || found.Matches[0].LineNumber != 2 {
		t.Fatalf("Unexpected search result: %+v", found)
	}

	rendered, err := render(found)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	again := append(transcript,
		types.NewPartsMessage(types.RoleAssistant, types.ToolCallPart("c2", SearchToolName, map[string]any{"key": key})),
		types.NewPartsMessage(types.RoleTool, types.ToolResultPart("c2", SearchToolName, types.TextOutput(rendered))),
		types.NewTextMessage(types.RoleAssistant, "found it"),
	)
	compacted, result, err := compactor.Compact(ctx, again)
	if err != nil {
		t.Fatalf("second Compact failed: %v", err)
	}
	if len(result.References) != 1 {
		t.Fatalf("Expected one reference, got %+v", result.References)
	}

	text, _ := compacted[5].Parts[0].Output.TextValue()
	want := "Read from storage: blob://reports/" + key + ". Key: " + key
	if text != want {
		t.Errorf("reference text = %q, want %q", text, want)
	}
}

func TestFailedReads_AreNotRegistered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	compactor, err := compaction.New(&compaction.Config{Adapter: f.adapter, KnownKeys: f.keys})
	if err != nil {
		t.Fatalf("compaction.New failed: %v", err)
	}

	read, err := NewReadFileTool(f.opts)
	if err != nil {
		t.Fatalf("NewReadFileTool failed: %v", err)
	}
	rendered, err := render(read.Read(ctx, ReadInput{Key: "guess.txt"}))
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	transcript := []types.Message{
		types.NewTextMessage(types.RoleUser, "read guess.txt"),
		types.NewPartsMessage(types.RoleAssistant, types.ToolCallPart("c1", ReadFileToolName, map[string]any{"key": "guess.txt"})),
		types.NewPartsMessage(types.RoleTool, types.ToolResultPart("c1", ReadFileToolName, types.TextOutput(rendered))),
		types.NewTextMessage(types.RoleAssistant, "it is not there"),
	}
	if _, _, err := compactor.Compact(ctx, transcript); err != nil {
		t.Fatalf("Compact failed: %v", err)
	}

	if f.keys.IsKnown(f.adapter.Identity(), "guess.txt") {
		t.Error("Expected a failed read not to register its key")
	}
}

func TestRefusedKey(t *testing.T) {
	tests := []struct {
		name     string
		toolName string
		text     string
		wantKey  string
		wantOK   bool
	}{
		{name: "read refusal", toolName: ReadFileToolName, text: `{"status":"unknown_key","key":"a.txt","content":"..."}`, wantKey: "a.txt", wantOK: true},
		{name: "search refusal", toolName: SearchToolName, text: `{"status":"unknown_key","key":"b.txt","pattern":"x","flags":""}`, wantKey: "b.txt", wantOK: true},
		{name: "successful read", toolName: ReadFileToolName, text: `{"status":"ok","storage":"blob:","key":"a.txt","content":"hi"}`},
		{name: "refusal without key", toolName: ReadFileToolName, text: `{"status":"unknown_key","key":""}`},
		{name: "not json", toolName: SearchToolName, text: "Error: boom"},
		{name: "other tool", toolName: "lookup", text: `{"status":"unknown_key","key":"a.txt"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, ok := RefusedKey(tt.toolName, tt.text)
			if key != tt.wantKey || ok != tt.wantOK {
				t.Errorf("RefusedKey() = (%q, %v), want (%q, %v)", key, ok, tt.wantKey, tt.wantOK)
			}
		})
	}
}
