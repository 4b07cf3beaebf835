// Package compaction keeps agent transcripts lean by moving tool-result
// payloads out of the context and into storage.
//
// # Strategy
//
// The only strategy, StrategyWriteToolResults, walks the tool messages inside
// the compaction window. For every tool-result part it either:
//
//   - writes the payload to the configured storage.Adapter under a fresh
//     "<uuid>.txt" key and replaces it with
//     "Written to file: <path>. Key: <key>. Use the read/search tools to inspect its contents.", or
//   - for results of reader tools (readFile and grepAndSearchFile by
//     default), replaces the content with "Read from storage: <path>. Key: <key>"
//     without writing anything.
//
// Every key written or surfaced is recorded in a knownkeys.Registry, which the
// read and search tools consult before touching storage.
//
// # Boundaries
//
// The window never includes the final message, and nothing is rewritten unless
// that message is an assistant turn with text:
//
//   - SinceLastText (default): only what follows the latest user or assistant text turn.
//   - EntireConversation: everything before the final message.
//   - FirstNMessages(n): everything except the final message and the n before it.
//
// # Usage
//
//	adapter, _ := storage.NewFileAdapter(storage.FileOptions{BaseDir: "/var/lib/agent"})
//	compactor, err := compaction.New(&compaction.Config{
//	    Adapter:  adapter,
//	    Boundary: compaction.EntireConversation(),
//	})
//	if err != nil {
//	    return err
//	}
//	compacted, result, err := compactor.Compact(ctx, messages)
//
// # Token Counting
//
// Result.TokensSaved uses a character-based approximation (~4 characters per
// token). TokenCounter uses Claude's token counting API when a client is
// available and falls back to the same approximation.
package compaction
