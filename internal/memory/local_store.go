package memory

import (
	"context"
	"time"

	"github.com/Habeeb00/msghelp/internal/ttl"
)

// LocalStore keeps sessions in process memory.
type LocalStore struct {
	sessions *ttl.Map[State]
}

// NewLocalStore creates an in-process session store. A nil clock means time.Now.
func NewLocalStore(sessionTTL time.Duration, clock ttl.Clock) *LocalStore {
	return &LocalStore{sessions: ttl.New[State](sessionTTL, clock)}
}

// Get implements Store.
func (s *LocalStore) Get(_ context.Context, sessionID string) (*Entry, bool) {
	state, stamped, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, false
	}
	return &Entry{SessionID: sessionID, State: state, LastActivity: stamped}, true
}

// Put implements Store.
func (s *LocalStore) Put(_ context.Context, sessionID string, state State) {
	s.sessions.Put(sessionID, state)
}

// Delete implements Store.
func (s *LocalStore) Delete(_ context.Context, sessionID string) bool {
	return s.sessions.Delete(sessionID)
}

// Sweep implements Store.
func (s *LocalStore) Sweep(_ context.Context) int {
	return s.sessions.Sweep()
}

// Len implements Store.
func (s *LocalStore) Len(_ context.Context) int {
	return s.sessions.Len()
}
