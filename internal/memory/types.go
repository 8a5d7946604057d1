// Package memory keeps per-session state that expires after a period of inactivity.
package memory

import (
	"context"
	"time"

	"github.com/Habeeb00/msghelp/internal/models"
)

// DefaultTTL is how long a session lives after its last activity.
const DefaultTTL = time.Hour

// State is the last pipeline result kept for a session.
type State struct {
	Variant      string                    `json:"variant"`
	ModelUsed    string                    `json:"model_used"`
	Turns        []models.ConversationTurn `json:"turns"`
	Suggestion   string                    `json:"suggestion"`
	Summary      string                    `json:"summary,omitempty"`
	RequestCount int                       `json:"request_count"`
}

// Entry is a session as held by a Store.
type Entry struct {
	SessionID    string    `json:"session_id"`
	State        State     `json:"state"`
	LastActivity time.Time `json:"last_activity"`
}

// Store defines the interface for session storage.
// Operations never fail: backend errors are logged and read as absence.
type Store interface {
	// Get returns the session, or false if it is missing or idle longer than the TTL.
	Get(ctx context.Context, sessionID string) (*Entry, bool)

	// Put creates or overwrites the session and stamps its last activity.
	Put(ctx context.Context, sessionID string, state State)

	// Delete removes the session and reports whether it existed.
	Delete(ctx context.Context, sessionID string) bool

	// Sweep removes idle sessions and returns how many were removed.
	Sweep(ctx context.Context) int

	// Len returns the number of sessions held.
	Len(ctx context.Context) int
}
