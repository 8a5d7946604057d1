// Package ttl provides the expiring map shared by the in-process cache and session stores.
package ttl

import (
	"sync"
	"time"
)

// Clock returns the current time. Stores take one so tests can move time forward.
type Clock func() time.Time

type item[V any] struct {
	value   V
	stamped time.Time
}

// Map is a mutex-guarded map whose entries expire ttl after they were last stamped.
// Expired entries are evicted lazily on Get or in bulk on Sweep.
type Map[V any] struct {
	mu    sync.Mutex
	items map[string]item[V]
	ttl   time.Duration
	now   Clock
}

// New creates a Map. A nil clock means time.Now.
func New[V any](ttl time.Duration, clock Clock) *Map[V] {
	if clock == nil {
		clock = time.Now
	}
	return &Map[V]{
		items: make(map[string]item[V]),
		ttl:   ttl,
		now:   clock,
	}
}

// Get returns the value and the time it was stamped. A stale entry is removed and reported absent.
func (m *Map[V]) Get(key string) (V, time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[key]
	if !ok {
		var zero V
		return zero, time.Time{}, false
	}
	if m.expired(it, m.now()) {
		delete(m.items, key)
		var zero V
		return zero, time.Time{}, false
	}
	return it.value, it.stamped, true
}

// Put stores value stamped with the current time and returns the number of entries held.
func (m *Map[V]) Put(key string, value V) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = item[V]{value: value, stamped: m.now()}
	return len(m.items)
}

// Delete removes key and reports whether a live entry was present.
func (m *Map[V]) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[key]
	if !ok {
		return false
	}
	delete(m.items, key)
	return !m.expired(it, m.now())
}

// Sweep removes every expired entry and returns how many were removed.
func (m *Map[V]) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for k, it := range m.items {
		if m.expired(it, now) {
			delete(m.items, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries held, including any not yet swept.
func (m *Map[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Age is "older than ttl", so an entry exactly ttl old is still live.
func (m *Map[V]) expired(it item[V], now time.Time) bool {
	return m.ttl > 0 && now.Sub(it.stamped) > m.ttl
}
