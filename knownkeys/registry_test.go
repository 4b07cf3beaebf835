package knownkeys

import (
	"fmt"
	"sync"
	"testing"
)

func TestRegistry_RegisterAndIsKnown(t *testing.T) {
	r := New()

	r.Register("file:///tmp", "k1")

	if !r.IsKnown("file:///tmp", "k1") {
		t.Error("Expected k1 to be known under file:///tmp")
	}
	if r.IsKnown("file:///other", "k1") {
		t.Error("Key must not leak across storage identities")
	}
	if r.IsKnown("file:///tmp", "k2") {
		t.Error("Unregistered key reported as known")
	}
}

func TestRegistry_IgnoresEmpty(t *testing.T) {
	r := New()

	r.Register("", "k1")
	r.Register("blob:", "")

	if len(r.Identities()) != 0 {
		t.Errorf("Expected no identities, got %v", r.Identities())
	}
}

func TestRegistry_Idempotent(t *testing.T) {
	r := New()

	r.Register("blob:", "a.txt")
	r.Register("blob:", "a.txt")

	if keys := r.Keys("blob:"); len(keys) != 1 {
		t.Errorf("Expected 1 key, got %v", keys)
	}
}

func TestRegistry_KeysAndAll(t *testing.T) {
	r := New()

	r.Register("blob://ns", "b.txt")
	r.Register("blob://ns", "a.txt")
	r.Register("file:///tmp", "a.txt")
	r.Register("file:///tmp", "c.txt")

	keys := r.Keys("blob://ns")
	if len(keys) != 2 || keys[0] != "a.txt" || keys[1] != "b.txt" {
		t.Errorf("Keys() = %v, want [a.txt b.txt]", keys)
	}

	all := r.All()
	if len(all) != 3 || all[0] != "a.txt" || all[2] != "c.txt" {
		t.Errorf("All() = %v, want [a.txt b.txt c.txt]", all)
	}

	if keys := r.Keys("blob:"); len(keys) != 0 {
		t.Errorf("Expected no keys for unknown identity, got %v", keys)
	}

	ids := r.Identities()
	if len(ids) != 2 || ids[0] != "blob://ns" {
		t.Errorf("Identities() = %v", ids)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", n)
			r.Register("blob:", key)
			if !r.IsKnown("blob:", key) {
				t.Errorf("key %s not known after Register", key)
			}
			_ = r.All()
		}(i)
	}
	wg.Wait()

	if keys := r.Keys("blob:"); len(keys) != 50 {
		t.Errorf("Expected 50 keys, got %d", len(keys))
	}
}
