// Package kvtest provides an in-memory kv.Client for tests.
package kvtest

import (
	"context"
	"errors"
	"path"
	"sync"
	"time"
)

// ErrDown is returned by every call once Fail is set.
var ErrDown = errors.New("kvtest: connection refused")

// Fake is an in-memory kv.Client. It records the ttl of each Set but never expires keys.
type Fake struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	fail bool
}

// New creates an empty Fake.
func New() *Fake {
	return &Fake{
		data: make(map[string]string),
		ttls: make(map[string]time.Duration),
	}
}

// Fail makes subsequent calls return ErrDown.
func (f *Fake) Fail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

// TTL returns the expiry passed with the last Set of key.
func (f *Fake) TTL(key string) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ttls[key]
}

// Keys returns a snapshot of stored keys.
func (f *Fake) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.data))
	for k := range f.data {
		keys = append(keys, k)
	}
	return keys
}

func (f *Fake) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", false, ErrDown
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *Fake) Set(_ context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return ErrDown
	}
	f.data[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *Fake) Del(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return false, ErrDown
	}
	_, ok := f.data[key]
	delete(f.data, key)
	delete(f.ttls, key)
	return ok, nil
}

func (f *Fake) Count(_ context.Context, pattern string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return 0, ErrDown
	}
	n := 0
	for k := range f.data {
		if ok, _ := path.Match(pattern, k); ok {
			n++
		}
	}
	return n, nil
}
