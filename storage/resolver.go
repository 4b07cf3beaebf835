package storage

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Resolver turns storage URIs into adapters
type Resolver struct {
	// BaseDir is used when the URI is empty. Defaults to the working directory.
	BaseDir string

	// Blob backs every blob: URI. Blob URIs fail to resolve when nil.
	Blob Backend
}

// Resolve returns the adapter for uri.
//
// Accepted forms:
//
//	""                         file storage at BaseDir
//	file:///abs/dir            file storage at /abs/dir
//	blob: blob:/ blob:// blob:///   root blob namespace
//	blob://ns blob:///ns blob:/ns   blob namespace "ns"
func (r *Resolver) Resolve(uri string) (Adapter, error) {
	if uri == "" {
		baseDir := r.BaseDir
		if baseDir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return nil, NewStorageError("Resolve", fmt.Errorf("%w: %v", ErrInvalidURI, err))
			}
			baseDir = wd
		}
		abs, err := filepath.Abs(baseDir)
		if err != nil {
			return nil, NewStorageError("Resolve", fmt.Errorf("%w: %v", ErrInvalidURI, err))
		}
		return NewFileAdapter(FileOptions{BaseDir: abs})
	}

	scheme, _, ok := strings.Cut(uri, ":")
	if !ok {
		return nil, NewStorageError("Resolve", fmt.Errorf("%w: unsupported storage uri %q", ErrInvalidURI, uri))
	}

	switch strings.ToLower(scheme) {
	case FileScheme:
		dir, err := ParseFileURI(uri)
		if err != nil {
			return nil, NewStorageError("Resolve", err)
		}
		return NewFileAdapter(FileOptions{BaseDir: dir})
	case BlobScheme:
		namespace, err := ParseBlobURI(uri)
		if err != nil {
			return nil, NewStorageError("Resolve", err)
		}
		if r.Blob == nil {
			return nil, NewStorageError("Resolve",
				fmt.Errorf("%w: no blob backend configured for %q", ErrInvalidURI, uri))
		}
		return NewBlobAdapter(BlobOptions{Namespace: namespace, Backend: r.Blob})
	default:
		return nil, NewStorageError("Resolve", fmt.Errorf("%w: unsupported storage uri %q", ErrInvalidURI, uri))
	}
}

// ParseFileURI returns the absolute directory named by a file: URI.
// Only empty or "localhost" hosts are accepted.
func ParseFileURI(uri string) (string, error) {
	rest, ok := cutSchemeFold(uri, FileScheme)
	if !ok {
		return "", fmt.Errorf("%w: not a file uri %q", ErrInvalidURI, uri)
	}

	if strings.HasPrefix(rest, "//") {
		host, path, _ := strings.Cut(rest[2:], "/")
		if host != "" && !strings.EqualFold(host, "localhost") {
			return "", fmt.Errorf("%w: file uri host %q is not local", ErrInvalidURI, host)
		}
		rest = "/" + path
	}

	dir, err := url.PathUnescape(rest)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	dir = filepath.FromSlash(dir)
	if !filepath.IsAbs(dir) {
		return "", fmt.Errorf("%w: file uri must name an absolute directory, got %q", ErrInvalidURI, uri)
	}
	return filepath.Clean(dir), nil
}

// ParseBlobURI returns the namespace named by a blob: URI ("" for the root)
func ParseBlobURI(uri string) (string, error) {
	rest, ok := cutSchemeFold(uri, BlobScheme)
	if !ok {
		return "", fmt.Errorf("%w: not a blob uri %q", ErrInvalidURI, uri)
	}
	if strings.ContainsAny(rest, "?#") {
		return "", fmt.Errorf("%w: blob uri may not carry a query or fragment: %q", ErrInvalidURI, uri)
	}
	return cleanNamespace(strings.TrimLeft(rest, "/"))
}

// FileURIFromBaseDir returns the file: URI for dir, made absolute first
func FileURIFromBaseDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	return FileScheme + "://" + filepath.ToSlash(abs), nil
}

func cutSchemeFold(uri, scheme string) (string, bool) {
	if len(uri) <= len(scheme) || uri[len(scheme)] != ':' {
		return "", false
	}
	if !strings.EqualFold(uri[:len(scheme)], scheme) {
		return "", false
	}
	return uri[len(scheme)+1:], true
}

// CanonicalIdentity maps a storage URI to the identity an adapter resolved
// from it would report, so "blob:/ns" and "blob://ns" compare equal. Other
// strings are returned unchanged.
func CanonicalIdentity(uri string) string {
	if namespace, err := ParseBlobURI(uri); err == nil {
		if namespace == "" {
			return BlobScheme + ":"
		}
		return BlobScheme + "://" + namespace
	}
	if dir, err := ParseFileURI(uri); err == nil {
		return FileScheme + "://" + filepath.ToSlash(dir)
	}
	return uri
}
