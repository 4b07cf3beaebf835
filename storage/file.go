package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// FileScheme is the URI scheme of local file storage
const FileScheme = "file"

// FileOptions configures a FileAdapter
type FileOptions struct {
	// BaseDir is the absolute root directory (required)
	BaseDir string

	// Prefix is an optional sub-directory applied to every resolved key
	Prefix string
}

// FileAdapter stores objects as files under a base directory
type FileAdapter struct {
	baseDir string
	prefix  string
}

// NewFileAdapter creates a FileAdapter. BaseDir must be absolute.
func NewFileAdapter(opts FileOptions) (*FileAdapter, error) {
	if opts.BaseDir == "" || !filepath.IsAbs(opts.BaseDir) {
		return nil, NewStorageError("NewFileAdapter",
			fmt.Errorf("%w: base directory must be absolute, got %q", ErrInvalidURI, opts.BaseDir))
	}
	return &FileAdapter{
		baseDir: filepath.Clean(opts.BaseDir),
		prefix:  SanitizeName(opts.Prefix),
	}, nil
}

// BaseDir returns the root directory
func (a *FileAdapter) BaseDir() string {
	return a.baseDir
}

// ResolveKey implements Adapter
func (a *FileAdapter) ResolveKey(name string) string {
	return joinKey(a.prefix, SanitizeName(name))
}

// Identity implements Adapter
func (a *FileAdapter) Identity() string {
	return FileScheme + "://" + filepath.ToSlash(a.baseDir)
}

// Write implements Adapter. The file is written to a temporary sibling and
// renamed into place so concurrent readers never observe a partial object.
func (a *FileAdapter) Write(ctx context.Context, params WriteParams) (*WriteResult, error) {
	fullPath, err := a.path(params.Key)
	if err != nil {
		return nil, NewStorageError("Write", err).WithIdentity(a.Identity()).WithKey(params.Key)
	}
	if err := ctx.Err(); err != nil {
		return nil, NewStorageError("Write", err).WithIdentity(a.Identity()).WithKey(params.Key)
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, NewStorageError("Write", fmt.Errorf("failed to create directory: %w", err)).
			WithIdentity(a.Identity()).WithKey(params.Key)
	}

	tmp, err := os.CreateTemp(dir, ".ctxoffload-*")
	if err != nil {
		return nil, NewStorageError("Write", fmt.Errorf("failed to create temp file: %w", err)).
			WithIdentity(a.Identity()).WithKey(params.Key)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(params.Body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, NewStorageError("Write", fmt.Errorf("failed to write file: %w", err)).
			WithIdentity(a.Identity()).WithKey(params.Key)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return nil, NewStorageError("Write", fmt.Errorf("failed to close file: %w", err)).
			WithIdentity(a.Identity()).WithKey(params.Key)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return nil, NewStorageError("Write", err).WithIdentity(a.Identity()).WithKey(params.Key)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		os.Remove(tmpName)
		return nil, NewStorageError("Write", fmt.Errorf("failed to move file into place: %w", err)).
			WithIdentity(a.Identity()).WithKey(params.Key)
	}

	u := url.URL{Scheme: FileScheme, Path: filepath.ToSlash(fullPath)}
	return &WriteResult{Key: params.Key, URL: u.String()}, nil
}

// ReadText implements TextReader
func (a *FileAdapter) ReadText(ctx context.Context, key string) (string, error) {
	fullPath, err := a.path(key)
	if err != nil {
		return "", NewStorageError("ReadText", err).WithIdentity(a.Identity()).WithKey(key)
	}
	if err := ctx.Err(); err != nil {
		return "", NewStorageError("ReadText", err).WithIdentity(a.Identity()).WithKey(key)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", NewStorageError("ReadText", notFound(err)).WithIdentity(a.Identity()).WithKey(key)
	}
	return string(data), nil
}

// OpenReadStream implements StreamReader
func (a *FileAdapter) OpenReadStream(ctx context.Context, key string) (io.ReadCloser, error) {
	fullPath, err := a.path(key)
	if err != nil {
		return nil, NewStorageError("OpenReadStream", err).WithIdentity(a.Identity()).WithKey(key)
	}
	if err := ctx.Err(); err != nil {
		return nil, NewStorageError("OpenReadStream", err).WithIdentity(a.Identity()).WithKey(key)
	}

	f, err := os.Open(fullPath)
	if err != nil {
		return nil, NewStorageError("OpenReadStream", notFound(err)).WithIdentity(a.Identity()).WithKey(key)
	}
	return f, nil
}

// path maps a key to a file path inside the base directory
func (a *FileAdapter) path(key string) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	full := filepath.Join(a.baseDir, filepath.FromSlash(key))
	root := a.baseDir
	if !strings.HasSuffix(root, string(filepath.Separator)) {
		root += string(filepath.Separator)
	}
	if !strings.HasPrefix(full, root) {
		return "", ErrInvalidKey
	}
	return full, nil
}

func notFound(err error) error {
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrObjectNotFound, err)
	}
	return err
}

// Compile-time checks
var (
	_ Adapter      = (*FileAdapter)(nil)
	_ TextReader   = (*FileAdapter)(nil)
	_ StreamReader = (*FileAdapter)(nil)
)
