package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Habeeb00/msghelp/internal/cache"
	"github.com/Habeeb00/msghelp/internal/conversation"
	"github.com/Habeeb00/msghelp/internal/llm"
	"github.com/Habeeb00/msghelp/internal/memory"
	"github.com/Habeeb00/msghelp/internal/models"
	"github.com/Habeeb00/msghelp/internal/pipeline"
	"github.com/Habeeb00/msghelp/internal/telemetry"
	"github.com/Habeeb00/msghelp/internal/worker"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// DefaultContextWindow is the largest context accepted when none is configured
const DefaultContextWindow = 4

// ErrSessionNotFound is returned by SessionInfo for a missing or expired session
var ErrSessionNotFound = errors.New("session not found")

// ValidationError rejects a request before any stage runs
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Runner executes the suggestion pipeline
type Runner interface {
	Run(ctx context.Context, input pipeline.Input) (*pipeline.Result, error)
}

// Submitter accepts background work
type Submitter interface {
	Submit(t worker.Task)
}

// Recorder receives handler-level metrics
type Recorder interface {
	RecordSuggestion(variant, outcome string)
	RecordCacheLookup(hit bool)
	SetStoreSizes(sessions, cached int)
}

type noopRecorder struct{}

func (noopRecorder) RecordSuggestion(string, string) {}
func (noopRecorder) RecordCacheLookup(bool)          {}
func (noopRecorder) SetStoreSizes(int, int)          {}

// inlineSubmitter runs tasks synchronously
type inlineSubmitter struct{}

func (inlineSubmitter) Submit(t worker.Task) { t.Run() }

// SuggestHandler binds the cache, the session store and the pipeline together
type SuggestHandler struct {
	cache          cache.Store
	sessions       memory.Store
	runner         Runner
	variants       llm.VariantTable
	writer         Submitter
	metrics        Recorder
	logger         *slog.Logger
	service        string
	defaultVariant string
	contextWindow  int
	coalesce       bool
	inflight       singleflight.Group
	newSessionID   func() string
}

// Option configures a SuggestHandler
type Option func(*SuggestHandler)

// WithWriter sets where cache and session writes are dispatched
func WithWriter(s Submitter) Option {
	return func(h *SuggestHandler) { h.writer = s }
}

// WithMetrics sets the metrics recorder
func WithMetrics(r Recorder) Option {
	return func(h *SuggestHandler) { h.metrics = r }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(h *SuggestHandler) { h.logger = logger }
}

// WithContextWindow sets the maximum number of context messages
func WithContextWindow(n int) Option {
	return func(h *SuggestHandler) { h.contextWindow = n }
}

// WithDefaultVariant sets the variant used when a request names none
func WithDefaultVariant(name string) Option {
	return func(h *SuggestHandler) { h.defaultVariant = name }
}

// WithCoalescing shares one pipeline run between concurrent requests with the same fingerprint
func WithCoalescing(on bool) Option {
	return func(h *SuggestHandler) { h.coalesce = on }
}

// WithServiceName sets the name reported by Info
func WithServiceName(name string) Option {
	return func(h *SuggestHandler) { h.service = name }
}

// WithSessionIDGenerator replaces uuid.NewString
func WithSessionIDGenerator(fn func() string) Option {
	return func(h *SuggestHandler) { h.newSessionID = fn }
}

// NewSuggestHandler creates a handler. Without WithWriter, writes run inline.
func NewSuggestHandler(c cache.Store, sessions memory.Store, runner Runner, variants llm.VariantTable, opts ...Option) *SuggestHandler {
	h := &SuggestHandler{
		cache:         c,
		sessions:      sessions,
		runner:        runner,
		variants:      variants,
		writer:        inlineSubmitter{},
		metrics:       noopRecorder{},
		logger:        slog.Default(),
		service:       "msghelp",
		contextWindow: DefaultContextWindow,
		newSessionID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Suggest returns a reply suggestion for the request, from the cache when possible
func (h *SuggestHandler) Suggest(ctx context.Context, request *models.SuggestRequest) (*models.SuggestResponse, error) {
	log := telemetry.RequestLogger(ctx, h.logger, "suggest")

	variantName := request.Variant
	if variantName == "" {
		variantName = h.defaultVariant
	}
	variant, err := h.validate(request, variantName)
	if err != nil {
		h.metrics.RecordSuggestion(variantName, telemetry.OutcomeRejected)
		log.Info("request rejected", "variant", variantName, "error", err)
		return nil, err
	}

	sessionID := request.SessionID
	if sessionID == "" {
		sessionID = h.newSessionID()
	}
	log = log.With("session_id", sessionID, "variant", variant.Name)

	prior, _ := h.sessions.Get(ctx, sessionID)
	requestCount := 1
	if prior != nil {
		requestCount = prior.State.RequestCount + 1
	}

	fingerprint := cache.Fingerprint(variant.Name, request.Message, request.Context)
	if suggestion, ok := h.cache.Get(ctx, fingerprint); ok {
		h.metrics.RecordCacheLookup(true)
		h.metrics.RecordSuggestion(variant.Name, telemetry.OutcomeCached)
		log.Debug("cache hit", "fingerprint", fingerprint)

		h.writeSession(ctx, sessionID, memory.State{
			Variant:      variant.Name,
			ModelUsed:    variant.Model,
			Turns:        conversation.Build(request.Message, request.Context),
			Suggestion:   suggestion,
			RequestCount: requestCount,
		})
		return &models.SuggestResponse{
			Suggestion: suggestion,
			SessionID:  sessionID,
			Cached:     true,
			ModelUsed:  variant.Model,
		}, nil
	}
	h.metrics.RecordCacheLookup(false)

	// The model call outlives an abandoned caller; the provider client timeout bounds it.
	result, err := h.run(context.WithoutCancel(ctx), fingerprint, pipeline.Input{
		Current: request.Message,
		Context: request.Context,
		Variant: variant.Name,
	})
	if err != nil {
		h.metrics.RecordSuggestion(variant.Name, telemetry.OutcomeFailed)
		log.Warn("suggestion failed", "error", err)
		return nil, err
	}

	response := &models.SuggestResponse{
		Suggestion: result.Suggestion,
		SessionID:  sessionID,
		Cached:     false,
		ModelUsed:  variant.Model,
	}

	h.writeCache(ctx, fingerprint, result.Suggestion)
	h.writeSession(ctx, sessionID, memory.State{
		Variant:      variant.Name,
		ModelUsed:    variant.Model,
		Turns:        result.Turns,
		Suggestion:   result.Suggestion,
		Summary:      result.Summary,
		RequestCount: requestCount,
	})

	h.metrics.RecordSuggestion(variant.Name, telemetry.OutcomeGenerated)
	log.Info("suggestion generated", "turns", len(result.Turns))
	return response, nil
}

func (h *SuggestHandler) validate(request *models.SuggestRequest, variantName string) (llm.Variant, error) {
	if strings.TrimSpace(request.Message.Text) == "" {
		return llm.Variant{}, &ValidationError{Field: "message.text", Reason: "must not be empty"}
	}
	if len(request.Context) > h.contextWindow {
		return llm.Variant{}, &ValidationError{
			Field:  "context",
			Reason: fmt.Sprintf("holds %d messages, at most %d allowed", len(request.Context), h.contextWindow),
		}
	}
	variant, err := h.variants.Lookup(variantName)
	if err != nil {
		return llm.Variant{}, &ValidationError{Field: "variant", Reason: err.Error(), Err: err}
	}
	return variant, nil
}

func (h *SuggestHandler) run(ctx context.Context, fingerprint string, input pipeline.Input) (*pipeline.Result, error) {
	if !h.coalesce {
		return h.runner.Run(ctx, input)
	}
	v, err, shared := h.inflight.Do(fingerprint, func() (any, error) {
		return h.runner.Run(ctx, input)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		h.logger.Debug("shared in-flight pipeline run", "fingerprint", fingerprint)
	}
	return v.(*pipeline.Result), nil
}

// writeCache hands the cache write to the background writer
func (h *SuggestHandler) writeCache(ctx context.Context, fingerprint, suggestion string) {
	bg := context.WithoutCancel(ctx)
	h.writer.Submit(worker.Task{Name: "cache.put", Run: func() {
		h.cache.Put(bg, fingerprint, suggestion)
	}})
}

// writeSession overwrites the session with the state of the request just answered
func (h *SuggestHandler) writeSession(ctx context.Context, sessionID string, state memory.State) {
	bg := context.WithoutCancel(ctx)
	h.writer.Submit(worker.Task{Name: "session.put", Run: func() {
		h.sessions.Put(bg, sessionID, state)
	}})
}

// ClearSession deletes a session; clearing an absent session is not an error
func (h *SuggestHandler) ClearSession(ctx context.Context, sessionID string) *models.ClearSessionResponse {
	found := h.sessions.Delete(ctx, sessionID)
	message := "Session cleared"
	if !found {
		message = "Session not found"
	}
	telemetry.RequestLogger(ctx, h.logger, "clear_session").Info(message, "session_id", sessionID)
	return &models.ClearSessionResponse{SessionID: sessionID, Found: found, Message: message}
}

// SessionInfo reports what is kept for a session
func (h *SuggestHandler) SessionInfo(ctx context.Context, sessionID string) (*models.SessionInfoResponse, error) {
	entry, ok := h.sessions.Get(ctx, sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return &models.SessionInfoResponse{
		SessionID:      sessionID,
		LastActivity:   entry.LastActivity,
		Variant:        entry.State.Variant,
		ModelUsed:      entry.State.ModelUsed,
		TurnCount:      len(entry.State.Turns),
		RequestCount:   entry.State.RequestCount,
		ContextSummary: entry.State.Summary,
		LastSuggestion: entry.State.Suggestion,
	}, nil
}

// Health sweeps both stores so the counts only include live entries
func (h *SuggestHandler) Health(ctx context.Context) *models.HealthResponse {
	h.sessions.Sweep(ctx)
	h.cache.Sweep(ctx)
	sessions := h.sessions.Len(ctx)
	cached := h.cache.Len(ctx)
	h.metrics.SetStoreSizes(sessions, cached)

	return &models.HealthResponse{
		Status:         models.StatusHealthy,
		ActiveSessions: sessions,
		CachedEntries:  cached,
	}
}

// Info describes the service and the model behind each variant
func (h *SuggestHandler) Info(ctx context.Context) *models.ServiceInfo {
	h.sessions.Sweep(ctx)
	bound := make(map[string]string, len(h.variants))
	for name, v := range h.variants {
		bound[name] = v.Model
	}
	return &models.ServiceInfo{
		Service:        h.service,
		Status:         models.StatusRunning,
		Models:         bound,
		ActiveSessions: h.sessions.Len(ctx),
	}
}

// Variants returns the configured variant table
func (h *SuggestHandler) Variants() llm.VariantTable {
	return h.variants
}
