package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Habeeb00/msghelp/internal/handlers"
	"github.com/Habeeb00/msghelp/internal/models"
	"github.com/Habeeb00/msghelp/internal/prompts"
	"github.com/Habeeb00/msghelp/internal/telemetry"
)

// RequestIDHeader carries the correlation id in and out
const RequestIDHeader = "X-Request-ID"

const maxBodyBytes = 1 << 20

// HTTPServer exposes the suggestion handler over HTTP.
type HTTPServer struct {
	handler *handlers.SuggestHandler
	mux     *http.ServeMux
	server  *http.Server
	logger  *slog.Logger
	metrics http.Handler
}

// HTTPOption configures the HTTPServer.
type HTTPOption func(*HTTPServer)

// WithHTTPLogger sets the logger.
func WithHTTPLogger(logger *slog.Logger) HTTPOption {
	return func(s *HTTPServer) { s.logger = logger }
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) HTTPOption {
	return func(s *HTTPServer) { s.metrics = h }
}

// NewHTTPServer creates the HTTP server and registers its routes.
func NewHTTPServer(handler *handlers.SuggestHandler, opts ...HTTPOption) *HTTPServer {
	s := &HTTPServer{
		handler: handler,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /suggest-reply", s.suggestWithVariant(prompts.VariantFineTuned))
	mux.HandleFunc("POST /suggest-reply-general", s.suggestWithVariant(prompts.VariantGeneral))
	mux.HandleFunc("POST /v1/suggest", s.suggestWithVariant(""))
	mux.HandleFunc("DELETE /session/{id}", s.handleClearSession)
	mux.HandleFunc("GET /session/{id}/context", s.handleSessionInfo)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	s.mux = mux
	s.server = &http.Server{
		Handler:           s.requestIDMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler for use with httptest or custom servers.
func (s *HTTPServer) Handler() http.Handler {
	return s.requestIDMiddleware(s.mux)
}

// ListenAndServe starts the HTTP server.
func (s *HTTPServer) ListenAndServe(addr string) error {
	s.server.Addr = addr
	s.logger.Info("http server starting", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server. A later ListenAndServe returns http.ErrServerClosed.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := telemetry.WithCorrelationID(r.Context(), r.Header.Get(RequestIDHeader))
		w.Header().Set(RequestIDHeader, telemetry.CorrelationID(ctx))

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		telemetry.RequestLogger(ctx, s.logger, "http").Debug("request served",
			"method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// suggestWithVariant pins the variant for the legacy endpoints; an empty name defers to the body.
func (s *HTTPServer) suggestWithVariant(variant string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.SuggestRequest
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, parseError(err.Error()))
			return
		}
		if variant != "" {
			req.Variant = variant
		}

		resp, err := s.handler.Suggest(r.Context(), &req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *HTTPServer) handleClearSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.handler.ClearSession(r.Context(), r.PathValue("id")))
}

func (s *HTTPServer) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.handler.SessionInfo(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.handler.Health(r.Context()))
}

func (s *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.handler.Info(r.Context()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status, body := errorResponse(err)
	writeJSON(w, status, body)
}
