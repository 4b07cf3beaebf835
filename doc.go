// Package ctxoffload keeps agent transcripts lean by moving large tool
// results into storage and leaving a short reference in their place.
//
// # Key Features
//
//   - Offloads tool-result payloads to local files, an in-memory namespace,
//     PostgreSQL or Google Cloud Storage
//   - Boundary policies choosing which part of the transcript is rewritten
//   - readFile and grepAndSearchFile tools so the model can inspect what was offloaded
//   - A known-key registry that stops those tools from reading anything the
//     session did not write or surface
//   - Hooks for logging and metrics
//
// # Quick Start
//
//	client, err := ctxoffload.New(ctxoffload.Config{
//	    StorageURI: "file:///var/lib/agent/offload",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// After the model answered with text:
//	compacted, result, err := client.Compact(ctx, messages)
//
// Every tool result in the window becomes
//
//	Written to file: file:///var/lib/agent/offload:<uuid>.txt. Key: <uuid>.txt. Use the read/search tools to inspect its contents.
//
// # Tools
//
// Offer the built-in tools to the model and answer its tool calls:
//
//	history, _, err := client.CompactAnthropic(ctx, history)
//	params := anthropic.MessageNewParams{
//	    Model:     anthropic.ModelClaudeSonnet4_5,
//	    MaxTokens: 4096,
//	    Messages:  history,
//	    Tools:     client.AnthropicTools(),
//	}
//	reply, err := client.RunToolCalls(ctx, assistantMessage)
//
// # Boundaries
//
// The default boundary only rewrites what follows the latest user or
// assistant text turn. Use compaction.EntireConversation() or
// compaction.FirstNMessages(n) for broader passes, per client or per call
// with WithBoundary. The final message is never rewritten, and nothing is
// rewritten unless it is an assistant text turn.
package ctxoffload
