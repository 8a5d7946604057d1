package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Habeeb00/msghelp/internal/janitor"
	"github.com/Habeeb00/msghelp/internal/transport"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, and the NATS responder when NATS_URL is set",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides HTTP_ADDR)")
	return cmd
}

func serve(ctx context.Context, addr string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	log := a.logger
	if addr == "" {
		addr = a.cfg.HTTPAddr
	}
	log.Info("starting msghelp", "service", a.cfg.ServiceName, "store", a.cfg.StoreBackend,
		"context_window", a.cfg.ContextWindow)

	sweeper, err := janitor.New(a.cfg.SweepSchedule, map[string]janitor.Sweeper{
		"cache":    a.cache,
		"sessions": a.sessions,
	}, log)
	if err != nil {
		return err
	}
	sweeper.Start()
	defer sweeper.Stop()

	var nt *transport.NATSTransport
	if a.cfg.NatsURL != "" {
		nt, err = transport.NewNATSTransport(a.cfg, a.handler, log)
		if err != nil {
			return err
		}
		if err := nt.Start(); err != nil {
			_ = nt.Close()
			return err
		}
	}

	httpServer := transport.NewHTTPServer(a.handler,
		transport.WithHTTPLogger(log),
		transport.WithMetricsHandler(a.metrics.Handler()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if nt != nil {
		g.Go(func() error {
			<-gctx.Done()
			return nt.Close()
		})
	}

	err = g.Wait()
	health := a.handler.Health(context.Background())
	log.Info("msghelp stopped", "active_sessions", health.ActiveSessions, "cached_entries", health.CachedEntries)
	return err
}
