// Package knownkeys tracks which storage keys were produced or surfaced in a
// session.
//
// Read and search tools consult a Registry before touching a storage adapter
// and reject any key that was never written by compaction or referenced by a
// previous read, which blocks arbitrary-path probing by the model.
//
// The registry is in-memory and append-only. Entries are never pruned and are
// lost when the process exits.
package knownkeys

import (
	"sort"
	"sync"
)

// Registry maps a storage identity to the set of keys known under it.
// It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	keys map[string]map[string]struct{}
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		keys: make(map[string]map[string]struct{}),
	}
}

// Register records key as known under identity. Registering the same pair
// twice is a no-op; empty values are ignored.
func (r *Registry) Register(identity, key string) {
	if identity == "" || key == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.keys[identity]
	if !ok {
		set = make(map[string]struct{})
		r.keys[identity] = set
	}
	set[key] = struct{}{}
}

// IsKnown reports whether key was registered under identity
func (r *Registry) IsKnown(identity, key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.keys[identity]
	if !ok {
		return false
	}
	_, ok = set[key]
	return ok
}

// Keys returns the sorted keys registered under identity
func (r *Registry) Keys(identity string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.keys[identity]
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// All returns every registered key across identities, sorted and deduplicated
func (r *Registry) All() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, set := range r.keys {
		for key := range set {
			seen[key] = struct{}{}
		}
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Identities returns the sorted storage identities with at least one key
func (r *Registry) Identities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.keys))
	for id := range r.keys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
