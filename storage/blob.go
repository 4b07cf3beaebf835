package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// BlobScheme is the URI scheme of the remote namespace family
const BlobScheme = "blob"

// Backend is the object service behind a BlobAdapter. Put must give atomic
// create-or-overwrite semantics for a name.
type Backend interface {
	// Put stores body under name and returns a URL for the object when the
	// backend can describe one.
	Put(ctx context.Context, name string, body []byte, contentType string) (string, error)

	// Open streams the object stored under name. Missing objects yield an
	// error wrapping ErrObjectNotFound.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// Expirer is implemented by backends that can delete objects by age
type Expirer interface {
	// DeleteBefore removes objects last written before horizon and returns
	// how many were removed.
	DeleteBefore(ctx context.Context, horizon time.Time) (int, error)
}

// BlobOptions configures a BlobAdapter
type BlobOptions struct {
	// Namespace scopes every object; empty means the root namespace
	Namespace string

	// Prefix is an optional key prefix applied by ResolveKey
	Prefix string

	// Backend stores the objects (required)
	Backend Backend
}

// BlobAdapter stores objects in a namespace of a remote object service
type BlobAdapter struct {
	namespace string
	prefix    string
	backend   Backend
}

// NewBlobAdapter creates a BlobAdapter
func NewBlobAdapter(opts BlobOptions) (*BlobAdapter, error) {
	if opts.Backend == nil {
		return nil, NewStorageError("NewBlobAdapter",
			fmt.Errorf("%w: no blob backend configured", ErrInvalidURI))
	}
	namespace, err := cleanNamespace(opts.Namespace)
	if err != nil {
		return nil, NewStorageError("NewBlobAdapter", err)
	}
	return &BlobAdapter{
		namespace: namespace,
		prefix:    SanitizeName(opts.Prefix),
		backend:   opts.Backend,
	}, nil
}

// Namespace returns the adapter namespace ("" for the root namespace)
func (a *BlobAdapter) Namespace() string {
	return a.namespace
}

// ResolveKey implements Adapter
func (a *BlobAdapter) ResolveKey(name string) string {
	return joinKey(a.prefix, SanitizeName(name))
}

// Identity implements Adapter
func (a *BlobAdapter) Identity() string {
	if a.namespace == "" {
		return BlobScheme + ":"
	}
	return BlobScheme + "://" + a.namespace
}

// Write implements Adapter
func (a *BlobAdapter) Write(ctx context.Context, params WriteParams) (*WriteResult, error) {
	if err := checkKey(params.Key); err != nil {
		return nil, NewStorageError("Write", err).WithIdentity(a.Identity()).WithKey(params.Key)
	}

	url, err := a.backend.Put(ctx, a.objectName(params.Key), params.Body, params.ContentType)
	if err != nil {
		return nil, NewStorageError("Write", err).WithIdentity(a.Identity()).WithKey(params.Key)
	}
	return &WriteResult{Key: params.Key, URL: url}, nil
}

// ReadText implements TextReader
func (a *BlobAdapter) ReadText(ctx context.Context, key string) (string, error) {
	rc, err := a.OpenReadStream(ctx, key)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", NewStorageError("ReadText", err).WithIdentity(a.Identity()).WithKey(key)
	}
	return string(data), nil
}

// OpenReadStream implements StreamReader
func (a *BlobAdapter) OpenReadStream(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := checkKey(key); err != nil {
		return nil, NewStorageError("OpenReadStream", err).WithIdentity(a.Identity()).WithKey(key)
	}

	rc, err := a.backend.Open(ctx, a.objectName(key))
	if err != nil {
		return nil, NewStorageError("OpenReadStream", err).WithIdentity(a.Identity()).WithKey(key)
	}
	return rc, nil
}

// objectName is the backend name of key within the adapter namespace
func (a *BlobAdapter) objectName(key string) string {
	if a.namespace == "" {
		return key
	}
	return a.namespace + "/" + key
}

// cleanNamespace trims slashes and rejects traversal segments
func cleanNamespace(namespace string) (string, error) {
	namespace = strings.Trim(namespace, "/")
	if namespace == "" {
		return "", nil
	}
	if SanitizeName(namespace) != namespace {
		return "", fmt.Errorf("%w: invalid namespace %q", ErrInvalidURI, namespace)
	}
	return namespace, nil
}

// Compile-time checks
var (
	_ Adapter      = (*BlobAdapter)(nil)
	_ TextReader   = (*BlobAdapter)(nil)
	_ StreamReader = (*BlobAdapter)(nil)

	_ Expirer = (*MemoryBackend)(nil)
	_ Expirer = (*SQLBackend)(nil)
	_ Expirer = (*GCSBackend)(nil)
)
