// Package cache deduplicates model calls by remembering suggestions per fingerprint.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Habeeb00/msghelp/internal/kv"
	"github.com/Habeeb00/msghelp/internal/ttl"
)

const (
	DefaultTTL       = 600 * time.Second
	DefaultSoftLimit = 100
)

// Entry is an immutable cached suggestion.
type Entry struct {
	Key        string    `json:"key"`
	Suggestion string    `json:"suggestion"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store is the cache contract. Operations never fail; a backend error reads as a miss.
type Store interface {
	Get(ctx context.Context, fingerprint string) (string, bool)
	Put(ctx context.Context, fingerprint, suggestion string)
	// Sweep removes expired entries and returns how many were removed.
	Sweep(ctx context.Context) int
	Len(ctx context.Context) int
}

// MemoryCache is the in-process cache.
type MemoryCache struct {
	entries   *ttl.Map[Entry]
	softLimit int
	now       ttl.Clock
	logger    *slog.Logger
}

// Option configures a MemoryCache.
type Option func(*MemoryCache)

// WithClock replaces time.Now.
func WithClock(clock ttl.Clock) Option {
	return func(c *MemoryCache) { c.now = clock }
}

// WithSoftLimit sets the entry count above which a Put triggers a sweep.
func WithSoftLimit(n int) Option {
	return func(c *MemoryCache) { c.softLimit = n }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *MemoryCache) { c.logger = logger }
}

// NewMemoryCache creates an in-process cache whose entries live for ttl.
func NewMemoryCache(entryTTL time.Duration, opts ...Option) *MemoryCache {
	c := &MemoryCache{
		softLimit: DefaultSoftLimit,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.entries = ttl.New[Entry](entryTTL, c.now)
	return c
}

// Get implements Store.
func (c *MemoryCache) Get(_ context.Context, fingerprint string) (string, bool) {
	e, _, ok := c.entries.Get(fingerprint)
	if !ok {
		return "", false
	}
	return e.Suggestion, true
}

// Put implements Store. Exceeding the soft limit sweeps immediately; there is no size eviction.
func (c *MemoryCache) Put(_ context.Context, fingerprint, suggestion string) {
	n := c.entries.Put(fingerprint, Entry{
		Key:        fingerprint,
		Suggestion: suggestion,
		CreatedAt:  c.now(),
	})
	if c.softLimit > 0 && n > c.softLimit {
		removed := c.entries.Sweep()
		c.logger.Debug("cache over soft limit, swept", "entries", n, "removed", removed)
	}
}

// Sweep implements Store.
func (c *MemoryCache) Sweep(_ context.Context) int {
	return c.entries.Sweep()
}

// Len implements Store.
func (c *MemoryCache) Len(_ context.Context) int {
	return c.entries.Len()
}

// RedisCache keeps entries in Redis and lets Redis expire them.
type RedisCache struct {
	client kv.Client
	prefix string
	ttl    time.Duration
	now    ttl.Clock
	logger *slog.Logger
}

// NewRedisCache creates a Redis-backed cache. Keys are prefix + "cache:" + fingerprint.
func NewRedisCache(client kv.Client, prefix string, entryTTL time.Duration, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{
		client: client,
		prefix: prefix + "cache:",
		ttl:    entryTTL,
		now:    time.Now,
		logger: logger,
	}
}

func (c *RedisCache) key(fingerprint string) string {
	return c.prefix + fingerprint
}

// Get implements Store.
func (c *RedisCache) Get(ctx context.Context, fingerprint string) (string, bool) {
	val, ok, err := c.client.Get(ctx, c.key(fingerprint))
	if err != nil {
		c.logger.Warn("cache get failed", "error", err)
		return "", false
	}
	if !ok {
		return "", false
	}

	var e Entry
	if err := json.Unmarshal([]byte(val), &e); err != nil {
		c.logger.Warn("cache entry unreadable", "key", fingerprint, "error", err)
		return "", false
	}
	return e.Suggestion, true
}

// Put implements Store.
func (c *RedisCache) Put(ctx context.Context, fingerprint, suggestion string) {
	data, err := json.Marshal(Entry{Key: fingerprint, Suggestion: suggestion, CreatedAt: c.now()})
	if err != nil {
		c.logger.Warn("cache entry marshal failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, c.key(fingerprint), string(data), c.ttl); err != nil {
		c.logger.Warn("cache put failed", "error", err)
	}
}

// Sweep implements Store. Redis expires keys itself, so there is nothing to remove.
func (c *RedisCache) Sweep(_ context.Context) int {
	return 0
}

// Len implements Store.
func (c *RedisCache) Len(ctx context.Context) int {
	n, err := c.client.Count(ctx, c.prefix+"*")
	if err != nil {
		c.logger.Warn("cache count failed", "error", err)
		return 0
	}
	return n
}
