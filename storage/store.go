// Package storage defines the adapter contract used to persist compacted
// tool outputs and to read them back.
//
// An Adapter always supports writing and key resolution. Reading is an
// optional capability exposed through the TextReader and StreamReader
// interfaces; use CanReadText, CanStream and CanRead to query it instead of
// type-asserting at call sites.
//
// Two adapters are provided:
//
//   - FileAdapter stores objects under a local base directory
//     (identity "file:///abs/dir").
//   - BlobAdapter stores objects in a remote namespace backed by a Backend
//     (identity "blob:" for the root namespace, "blob://<namespace>" otherwise).
//     Backends exist for an in-process map, PostgreSQL (see the driver
//     packages) and Google Cloud Storage.
package storage

import (
	"context"
	"io"
)

// ContentTypeText is the content type of every compacted payload
const ContentTypeText = "text/plain"

// WriteParams describes an object to write
type WriteParams struct {
	// Key is the resolved storage key (see Adapter.ResolveKey)
	Key string

	// Body is the object content
	Body []byte

	// ContentType is optional
	ContentType string
}

// WriteResult describes a written object
type WriteResult struct {
	// Key is the effective key the object was stored under
	Key string

	// URL locates the object when the adapter can describe it, empty otherwise
	URL string
}

// Adapter is the capability set every storage destination provides
type Adapter interface {
	// Write stores an object, creating intermediate structure as needed.
	// Writing an existing key overwrites it.
	Write(ctx context.Context, params WriteParams) (*WriteResult, error)

	// ResolveKey turns a raw object name into a key. Separators are
	// normalised to "/", parent-directory segments are dropped and the
	// adapter's prefix is applied.
	ResolveKey(name string) string

	// Identity returns the stable storage identity, e.g. "file:///data" or
	// "blob://reports". It partitions the known-key registry and is used to
	// format display paths.
	Identity() string
}

// TextReader is implemented by adapters that can read an object as text
type TextReader interface {
	ReadText(ctx context.Context, key string) (string, error)
}

// StreamReader is implemented by adapters that can stream an object
type StreamReader interface {
	OpenReadStream(ctx context.Context, key string) (io.ReadCloser, error)
}

// CanReadText reports whether a supports ReadText
func CanReadText(a Adapter) bool {
	_, ok := a.(TextReader)
	return ok
}

// CanStream reports whether a supports OpenReadStream
func CanStream(a Adapter) bool {
	_, ok := a.(StreamReader)
	return ok
}

// CanRead reports whether a exposes at least one read capability. Adapters
// without one cannot back the read and search tools.
func CanRead(a Adapter) bool {
	return CanReadText(a) || CanStream(a)
}

// ReadText reads an object as text using whichever read capability the
// adapter exposes, preferring ReadText.
func ReadText(ctx context.Context, a Adapter, key string) (string, error) {
	if r, ok := a.(TextReader); ok {
		return r.ReadText(ctx, key)
	}
	if r, ok := a.(StreamReader); ok {
		rc, err := r.OpenReadStream(ctx, key)
		if err != nil {
			return "", err
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return "", NewStorageError("ReadText", err).
				WithIdentity(a.Identity()).
				WithKey(key)
		}
		return string(data), nil
	}
	return "", NewStorageError("ReadText", ErrUnsupported).
		WithIdentity(a.Identity()).
		WithKey(key)
}
