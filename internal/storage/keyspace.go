package storage

import (
	"sort"
	"sync"
	"time"
)

// StoredValue is a value and its optional deadline.
type StoredValue struct {
	Value  string
	Expiry time.Time
}

// HasExpiry reports whether the value carries a deadline.
func (v StoredValue) HasExpiry() bool {
	return !v.Expiry.IsZero()
}

// ExpiredAt reports whether the value is logically absent at now.
func (v StoredValue) ExpiredAt(now time.Time) bool {
	return v.HasExpiry() && now.After(v.Expiry)
}

// keyspace is a map guarded by a single RWMutex. Reads share the lock;
// writes and whole-map operations take it exclusively.
type keyspace struct {
	mu    sync.RWMutex
	items map[string]StoredValue
	now   func() time.Time
}

func newKeyspace(now func() time.Time) *keyspace {
	return &keyspace{
		items: make(map[string]StoredValue),
		now:   now,
	}
}

func (k *keyspace) get(key string) (string, bool) {
	now := k.now()

	k.mu.RLock()
	v, ok := k.items[key]
	k.mu.RUnlock()

	if !ok || v.ExpiredAt(now) {
		return "", false
	}
	return v.Value, true
}

func (k *keyspace) set(key, value string, expiry time.Time) {
	k.mu.Lock()
	k.items[key] = StoredValue{Value: value, Expiry: expiry}
	k.mu.Unlock()
}

// keys returns the live keys accepted by match, sorted.
func (k *keyspace) keys(match func(string) bool) []string {
	now := k.now()

	k.mu.RLock()
	out := make([]string, 0, len(k.items))
	for key, v := range k.items {
		if v.ExpiredAt(now) || !match(key) {
			continue
		}
		out = append(out, key)
	}
	k.mu.RUnlock()

	sort.Strings(out)
	return out
}

// replace swaps in a new map. Callers hold no lock.
func (k *keyspace) replace(items map[string]StoredValue) {
	k.mu.Lock()
	k.items = items
	k.mu.Unlock()
}

func (k *keyspace) len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.items)
}

func (k *keyspace) compact(now time.Time) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	removed := 0
	for key, v := range k.items {
		if v.ExpiredAt(now) {
			delete(k.items, key)
			removed++
		}
	}
	return removed
}
