package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Habeeb00/msghelp/internal/config"
	"github.com/Habeeb00/msghelp/internal/handlers"
	"github.com/Habeeb00/msghelp/internal/models"
	"github.com/Habeeb00/msghelp/internal/telemetry"
	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"
)

// Subject suffixes under the configured prefix
const (
	SubjectSuggest      = "suggest"
	SubjectSessionClear = "session.clear"
	SubjectSessionInfo  = "session.info"
	SubjectHealth       = "health"
)

// DefaultNATSConcurrency bounds in-flight NATS requests when none is configured
const DefaultNATSConcurrency = 16

// SessionRequest addresses a session over NATS
type SessionRequest struct {
	SessionID string `json:"session_id"`
}

// NATSTransport serves the handler over NATS request/reply. Messages are handled on their own
// goroutines, at most NatsConcurrency at a time.
type NATSTransport struct {
	conn     *nats.Conn
	config   *config.Config
	handler  *handlers.SuggestHandler
	logger   *slog.Logger
	subs     []*nats.Subscription
	inflight *errgroup.Group
}

// newInflight returns a group admitting at most limit concurrent requests
func newInflight(limit int) *errgroup.Group {
	if limit <= 0 {
		limit = DefaultNATSConcurrency
	}
	g := new(errgroup.Group)
	g.SetLimit(limit)
	return g
}

func NewNATSTransport(cfg *config.Config, handler *handlers.SuggestHandler, logger *slog.Logger) (*NATSTransport, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(cfg.NatsURL,
		nats.Name(cfg.ServiceName),
		nats.Timeout(cfg.NatsTimeout),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1), // Infinite reconnects
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("connected to nats", "url", cfg.NatsURL)

	return &NATSTransport{
		conn:     conn,
		config:   cfg,
		handler:  handler,
		logger:   logger,
		inflight: newInflight(cfg.NatsConcurrency),
	}, nil
}

func (nt *NATSTransport) subject(suffix string) string {
	return nt.config.NatsSubjectPrefix + "." + suffix
}

// Start subscribes every subject in the service's queue group so replicas share the load.
func (nt *NATSTransport) Start() error {
	for _, suffix := range []string{SubjectSuggest, SubjectSessionClear, SubjectSessionInfo, SubjectHealth} {
		subject := nt.subject(suffix)
		sub, err := nt.conn.QueueSubscribe(subject, nt.config.ServiceName, nt.handleRequest)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		nt.subs = append(nt.subs, sub)
		nt.logger.Info("subscribed", "subject", subject)
	}
	return nil
}

func (nt *NATSTransport) handleRequest(msg *nats.Msg) {
	ctx := telemetry.WithCorrelationID(context.Background(), msg.Header.Get(RequestIDHeader))
	nt.dispatch(ctx, msg.Subject, msg.Data, msg.Respond)
}

// dispatch runs one request in the inflight group. It blocks while the group is full, which
// leaves further messages queued on the subscription.
func (nt *NATSTransport) dispatch(ctx context.Context, subject string, data []byte, respond func([]byte) error) {
	nt.inflight.Go(func() error {
		reply := nt.handleMessage(ctx, subject, data)
		if err := respond(reply); err != nil {
			telemetry.RequestLogger(ctx, nt.logger, "nats").Warn("failed to send response",
				"subject", subject, "error", err)
		}
		return nil
	})
}

// handleMessage decodes one request, runs it and returns the encoded reply
func (nt *NATSTransport) handleMessage(ctx context.Context, subject string, data []byte) []byte {
	suffix := strings.TrimPrefix(subject, nt.config.NatsSubjectPrefix+".")

	switch suffix {
	case SubjectSuggest:
		var req models.SuggestRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nt.encode(ctx, parseError(err.Error()))
		}
		resp, err := nt.handler.Suggest(ctx, &req)
		if err != nil {
			_, body := errorResponse(err)
			return nt.encode(ctx, body)
		}
		return nt.encode(ctx, resp)

	case SubjectSessionClear, SubjectSessionInfo:
		var req SessionRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nt.encode(ctx, parseError(err.Error()))
		}
		if req.SessionID == "" {
			return nt.encode(ctx, parseError("session_id is required"))
		}
		if suffix == SubjectSessionClear {
			return nt.encode(ctx, nt.handler.ClearSession(ctx, req.SessionID))
		}
		info, err := nt.handler.SessionInfo(ctx, req.SessionID)
		if err != nil {
			_, body := errorResponse(err)
			return nt.encode(ctx, body)
		}
		return nt.encode(ctx, info)

	case SubjectHealth:
		return nt.encode(ctx, nt.handler.Health(ctx))

	default:
		return nt.encode(ctx, parseError("unknown subject "+subject))
	}
}

func (nt *NATSTransport) encode(ctx context.Context, v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		telemetry.RequestLogger(ctx, nt.logger, "nats").Error("failed to marshal response", "error", err)
		return []byte(`{"error_code":"` + models.ErrorParseError + `","error_message":"failed to encode response"}`)
	}
	return data
}

// Close stops the subscriptions, waits for in-flight requests to reply, then drains the
// connection.
func (nt *NATSTransport) Close() error {
	for _, sub := range nt.subs {
		if err := sub.Drain(); err != nil {
			nt.logger.Warn("nats subscription drain", "subject", sub.Subject, "error", err)
		}
	}
	nt.waitDrained()
	_ = nt.inflight.Wait()

	if nt.conn == nil {
		return nil
	}
	if err := nt.conn.Drain(); err != nil {
		nt.conn.Close()
		return fmt.Errorf("nats drain: %w", err)
	}
	nt.logger.Info("nats connection closed")
	return nil
}

// waitDrained waits until every subscription has delivered its pending messages, bounded by
// NatsTimeout.
func (nt *NATSTransport) waitDrained() {
	deadline := time.Now().Add(nt.config.NatsTimeout)
	for _, sub := range nt.subs {
		for sub.IsValid() && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
	}
}
