package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// MemoryBackend keeps objects in process memory. It is useful for tests and
// for short-lived hosts that do not need durable storage.
type MemoryBackend struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	body        []byte
	contentType string
	updatedAt   time.Time
}

// NewMemoryBackend creates an empty MemoryBackend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{objects: make(map[string]memoryObject)}
}

// Put implements Backend
func (b *MemoryBackend) Put(ctx context.Context, name string, body []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	stored := make([]byte, len(body))
	copy(stored, body)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[name] = memoryObject{body: stored, contentType: contentType, updatedAt: time.Now()}
	return "", nil
}

// Open implements Backend
func (b *MemoryBackend) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, ok := b.objects[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, name)
	}
	return io.NopCloser(bytes.NewReader(obj.body)), nil
}

// ContentType returns the content type stored with name
func (b *MemoryBackend) ContentType(name string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, ok := b.objects[name]
	return obj.contentType, ok
}

// Len returns the number of stored objects
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}

// DeleteBefore implements Expirer
func (b *MemoryBackend) DeleteBefore(ctx context.Context, horizon time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	count := 0
	for name, obj := range b.objects {
		if obj.updatedAt.Before(horizon) {
			delete(b.objects, name)
			count++
		}
	}
	return count, nil
}
