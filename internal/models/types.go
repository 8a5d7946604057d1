package models

import "time"

// Role hints attached to captured chat messages
const (
	RoleHintIncoming = "incoming"
	RoleHintOutgoing = "outgoing"
)

// Turn roles consumed by the model gateway
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single captured chat message. Immutable once received.
type Message struct {
	Text      string `json:"text"`
	RoleHint  string `json:"type"` // "incoming" or "outgoing"
	Timestamp int64  `json:"timestamp"`
}

// ContextWindow holds prior messages ordered newest-first, as sent by the caller.
type ContextWindow []Message

// ConversationTurn is the normalized unit sent to the model.
type ConversationTurn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// SuggestRequest is the inbound suggestion request (HTTP and NATS)
type SuggestRequest struct {
	Message   Message       `json:"message"`
	Context   ContextWindow `json:"context"`
	Variant   string        `json:"variant,omitempty"`
	SessionID string        `json:"session_id,omitempty"`
}

// SuggestResponse is returned for a successful suggestion
type SuggestResponse struct {
	Suggestion string `json:"suggestion"`
	SessionID  string `json:"session_id"`
	Cached     bool   `json:"cached"`
	ModelUsed  string `json:"model_used"`
}

// ClearSessionResponse reports whether a session existed when it was cleared
type ClearSessionResponse struct {
	SessionID string `json:"session_id"`
	Found     bool   `json:"found"`
	Message   string `json:"message"`
}

// SessionInfoResponse summarizes the state kept for a session
type SessionInfoResponse struct {
	SessionID      string    `json:"session_id"`
	LastActivity   time.Time `json:"last_activity"`
	Variant        string    `json:"variant"`
	ModelUsed      string    `json:"model_used"`
	TurnCount      int       `json:"turn_count"`
	RequestCount   int       `json:"request_count"`
	ContextSummary string    `json:"context_summary,omitempty"`
	LastSuggestion string    `json:"last_suggestion"`
}

// HealthResponse reports live store sizes
type HealthResponse struct {
	Status         string `json:"status"`
	ActiveSessions int    `json:"active_sessions"`
	CachedEntries  int    `json:"cached_entries"`
}

// ServiceInfo is served at the root endpoint
type ServiceInfo struct {
	Service        string            `json:"service"`
	Status         string            `json:"status"`
	Models         map[string]string `json:"models"`
	ActiveSessions int               `json:"active_sessions"`
}

// ErrorResponse is the wire shape for failures
type ErrorResponse struct {
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	UserMessage  string `json:"user_message,omitempty"`
}

// Status constants
const (
	StatusHealthy = "healthy"
	StatusRunning = "running"
)

// Error codes
const (
	ErrorValidation     = "VALIDATION_ERROR"
	ErrorRateLimited    = "RATE_LIMITED"
	ErrorLLMTimeout     = "LLM_API_TIMEOUT"
	ErrorLLMFailed      = "LLM_API_FAILED"
	ErrorParseError     = "PARSE_ERROR"
	ErrorSessionMissing = "SESSION_NOT_FOUND"
)
