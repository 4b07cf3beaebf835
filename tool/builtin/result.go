// Package builtin provides the readFile and grepAndSearchFile tools, which
// let an agent inspect payloads that compaction moved to storage.
//
// Both tools consult a knownkeys.Registry before touching storage and only
// read keys that compaction wrote or a previous read surfaced. Problems the
// agent can recover from (unknown keys, bad patterns, bad storage URIs) are
// reported as tagged results instead of errors, with text telling the agent
// to repeat the original tool call.
package builtin

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/youssefsiam38/ctxoffload/knownkeys"
	"github.com/youssefsiam38/ctxoffload/storage"
)

// Tool names, matching the default reader tool names of the compaction engine
const (
	ReadFileToolName = "readFile"
	SearchToolName   = "grepAndSearchFile"
)

// Status tags a tool result
type Status string

const (
	StatusOK             Status = "ok"
	StatusUnknownKey     Status = "unknown_key"
	StatusInvalidPattern Status = "invalid_pattern"
	StatusInvalidStorage Status = "invalid_storage"
	StatusUnsupported    Status = "unsupported"
	StatusError          Status = "error"
)

const retryHint = "make the original tool call again with the same arguments instead of relying on readFile or grepAndSearchFile."

// ReadResult is the payload returned by readFile.
//
// Storage is only set on success, so compaction registers a key only after
// a read actually succeeded.
type ReadResult struct {
	Status  Status `json:"status"`
	Storage string `json:"storage,omitempty"`
	Key     string `json:"key"`
	Content string `json:"content"`
}

// SearchResult is the payload returned by grepAndSearchFile
type SearchResult struct {
	Status  Status          `json:"status"`
	Storage string          `json:"storage,omitempty"`
	Key     string          `json:"key"`
	Pattern string          `json:"pattern"`
	Flags   string          `json:"flags"`
	Matches []storage.Match `json:"matches,omitempty"`
	Content string          `json:"content,omitempty"`
}

// Options configures the built-in tools
type Options struct {
	// Adapter serves calls that omit the storage argument. Required.
	Adapter storage.Adapter

	// Resolver turns storage arguments into adapters. Defaults to a Resolver
	// without a blob backend rooted at the working directory.
	Resolver *storage.Resolver

	// KnownKeys gates every read. Required.
	KnownKeys *knownkeys.Registry
}

func (o Options) validate() error {
	if o.Adapter == nil {
		return errors.New("builtin: adapter is required")
	}
	if o.KnownKeys == nil {
		return errors.New("builtin: known-key registry is required")
	}
	return nil
}

func (o Options) adapter(uri string) (storage.Adapter, error) {
	if uri == "" || storage.CanonicalIdentity(uri) == o.Adapter.Identity() {
		return o.Adapter, nil
	}
	resolver := o.Resolver
	if resolver == nil {
		resolver = &storage.Resolver{}
	}
	return resolver.Resolve(uri)
}

// ParseStatus extracts the status tag from a rendered result. Text that is
// not a result yields the empty status.
func ParseStatus(text string) Status {
	var tagged struct {
		Status Status `json:"status"`
	}
	if err := json.Unmarshal([]byte(text), &tagged); err != nil {
		return ""
	}
	return tagged.Status
}

// RefusedKey returns the key named by an unknown_key result of the readFile
// or grepAndSearchFile tool. ok is false for any other tool or result.
func RefusedKey(toolName, text string) (key string, ok bool) {
	var status Status
	switch toolName {
	case ReadFileToolName:
		var r ReadResult
		if err := json.Unmarshal([]byte(text), &r); err != nil {
			return "", false
		}
		status, key = r.Status, r.Key
	case SearchToolName:
		var r SearchResult
		if err := json.Unmarshal([]byte(text), &r); err != nil {
			return "", false
		}
		status, key = r.Status, r.Key
	default:
		return "", false
	}
	if status != StatusUnknownKey || key == "" {
		return "", false
	}
	return key, true
}

func render(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode tool result: %w", err)
	}
	return string(data), nil
}

func unknownKeyMessage(key string) string {
	return fmt.Sprintf("Key %q was not written or read in this conversation under this storage. Are you sure the key and storage are correct? If yes, %s", key, retryHint)
}

func storageMessage(action string, err error) string {
	return fmt.Sprintf("Error %s file: %v. Are you sure the storage is correct? If yes, %s", action, err, retryHint)
}

// failureStatus maps a storage error to a result status
func failureStatus(err error) Status {
	switch {
	case errors.Is(err, storage.ErrInvalidURI):
		return StatusInvalidStorage
	case errors.Is(err, storage.ErrUnsupported):
		return StatusUnsupported
	default:
		return StatusError
	}
}
