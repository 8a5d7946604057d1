package memory

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Habeeb00/msghelp/internal/kv"
	"github.com/Habeeb00/msghelp/internal/ttl"
)

// RedisStore implements Store using Redis.
type RedisStore struct {
	client kv.Client
	prefix string
	ttl    time.Duration // Session TTL, refreshed on every Put
	now    ttl.Clock
	logger *slog.Logger
}

// NewRedisStore creates a new Redis-backed session store.
func NewRedisStore(client kv.Client, prefix string, sessionTTL time.Duration, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{
		client: client,
		prefix: prefix + "session:",
		ttl:    sessionTTL,
		now:    time.Now,
		logger: logger,
	}
}

// sessionKey generates Redis key for a session.
func (r *RedisStore) sessionKey(sessionID string) string {
	return r.prefix + sessionID
}

// Get loads a session from Redis.
func (r *RedisStore) Get(ctx context.Context, sessionID string) (*Entry, bool) {
	data, ok, err := r.client.Get(ctx, r.sessionKey(sessionID))
	if err != nil {
		r.logger.Warn("failed to load session from Redis", "session_id", sessionID, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		r.logger.Warn("failed to parse session data", "session_id", sessionID, "error", err)
		return nil, false
	}

	// Idle past the TTL counts as gone even if Redis has not expired the key yet
	if r.ttl > 0 && r.now().Sub(entry.LastActivity) > r.ttl {
		r.Delete(ctx, sessionID)
		return nil, false
	}

	return &entry, true
}

// Put saves session data to Redis with TTL.
func (r *RedisStore) Put(ctx context.Context, sessionID string, state State) {
	entry := Entry{
		SessionID:    sessionID,
		State:        state,
		LastActivity: r.now(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		r.logger.Warn("failed to marshal session", "session_id", sessionID, "error", err)
		return
	}

	if err := r.client.Set(ctx, r.sessionKey(sessionID), string(data), r.ttl); err != nil {
		r.logger.Warn("failed to save session to Redis", "session_id", sessionID, "error", err)
	}
}

// Delete removes a session from Redis.
func (r *RedisStore) Delete(ctx context.Context, sessionID string) bool {
	found, err := r.client.Del(ctx, r.sessionKey(sessionID))
	if err != nil {
		r.logger.Warn("failed to clear session", "session_id", sessionID, "error", err)
		return false
	}
	return found
}

// Sweep is a no-op; Redis expires idle sessions itself.
func (r *RedisStore) Sweep(_ context.Context) int {
	return 0
}

// Len counts session keys.
func (r *RedisStore) Len(ctx context.Context) int {
	n, err := r.client.Count(ctx, r.prefix+"*")
	if err != nil {
		r.logger.Warn("failed to count sessions", "error", err)
		return 0
	}
	return n
}
