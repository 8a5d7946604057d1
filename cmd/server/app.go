package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Habeeb00/msghelp/internal/cache"
	"github.com/Habeeb00/msghelp/internal/config"
	"github.com/Habeeb00/msghelp/internal/handlers"
	"github.com/Habeeb00/msghelp/internal/kv"
	"github.com/Habeeb00/msghelp/internal/llm"
	"github.com/Habeeb00/msghelp/internal/memory"
	"github.com/Habeeb00/msghelp/internal/pipeline"
	"github.com/Habeeb00/msghelp/internal/prompts"
	"github.com/Habeeb00/msghelp/internal/telemetry"
	"github.com/Habeeb00/msghelp/internal/worker"
)

// app holds every long-lived component of a running service
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	cache    cache.Store
	sessions memory.Store
	writer   *worker.Queue
	handler  *handlers.SuggestHandler
	redis    *kv.RedisClient
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := telemetry.NewLogger(os.Stdout, telemetry.ParseLevel(cfg.LogLevel), cfg.LogFormat, cfg.ServiceName)
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger, metrics: telemetry.NewMetrics()}

	switch cfg.StoreBackend {
	case config.BackendRedis:
		client, err := kv.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.redis = client
		a.cache = cache.NewRedisCache(client, cfg.RedisPrefix, cfg.CacheTTL, logger)
		a.sessions = memory.NewRedisStore(client, cfg.RedisPrefix, cfg.SessionTTL, logger)
		logger.Info("using redis stores", "prefix", cfg.RedisPrefix)
	default:
		a.cache = cache.NewMemoryCache(cfg.CacheTTL,
			cache.WithSoftLimit(cfg.CacheSoftLimit),
			cache.WithLogger(logger),
		)
		a.sessions = memory.NewLocalStore(cfg.SessionTTL, nil)
	}

	variants, err := cfg.Variants()
	if err != nil {
		a.close()
		return nil, err
	}
	gateway, err := llm.NewLangchainGateway(variants, cfg.Providers().NewModel, logger)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize model gateway: %w", err)
	}
	for _, name := range variants.Names() {
		v := variants[name]
		logger.Info("variant ready", "variant", name, "provider", v.Provider, "model", v.Model)
	}

	orchestrator := pipeline.New(
		llm.NewInstrumented(gateway, a.metrics.RecordGatewayCall),
		cfg.Params(),
		pipeline.WithSummarizer(gateway, cfg.SummaryThreshold),
		pipeline.WithLogger(logger),
	)

	a.writer = worker.New(cfg.WriterWorkers, cfg.WriterQueue,
		worker.WithLogger(logger),
		worker.WithOverflowHook(a.metrics.RecordWriterOverflow),
	)

	a.handler = handlers.NewSuggestHandler(a.cache, a.sessions, orchestrator, variants,
		handlers.WithWriter(a.writer),
		handlers.WithMetrics(a.metrics),
		handlers.WithLogger(logger),
		handlers.WithContextWindow(cfg.ContextWindow),
		handlers.WithDefaultVariant(prompts.VariantFineTuned),
		handlers.WithCoalescing(cfg.CoalesceInflight),
		handlers.WithServiceName(cfg.ServiceName),
	)
	return a, nil
}

// close drains pending writes before releasing the store connection
func (a *app) close() {
	if a.writer != nil {
		a.writer.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("error closing redis", "error", err)
		}
	}
}
