package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Suggestion outcomes
const (
	OutcomeGenerated = "generated"
	OutcomeCached    = "cached"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// Metrics holds the service collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	suggestions    *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	gatewayCalls   *prometheus.CounterVec
	gatewayLatency *prometheus.HistogramVec
	writerOverflow prometheus.Counter
	activeSessions prometheus.Gauge
	cachedEntries  prometheus.Gauge
}

// NewMetrics creates and registers every collector
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		suggestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "msghelp_suggestions_total",
			Help: "Suggestion requests by variant and outcome.",
		}, []string{"variant", "outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "msghelp_cache_lookups_total",
			Help: "Suggestion cache lookups by result.",
		}, []string{"result"}),
		gatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "msghelp_gateway_calls_total",
			Help: "Upstream model calls by variant and status.",
		}, []string{"variant", "status"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "msghelp_gateway_duration_seconds",
			Help:    "Latency of upstream model calls.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"variant"}),
		writerOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "msghelp_writer_overflow_total",
			Help: "Background writes that found the queue full.",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "msghelp_active_sessions",
			Help: "Live sessions at the last health check.",
		}),
		cachedEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "msghelp_cached_entries",
			Help: "Live cache entries at the last health check.",
		}),
	}

	m.registry.MustRegister(
		m.suggestions,
		m.cacheLookups,
		m.gatewayCalls,
		m.gatewayLatency,
		m.writerOverflow,
		m.activeSessions,
		m.cachedEntries,
		collectors.NewGoCollector(),
	)
	return m
}

// RecordSuggestion counts one finished suggestion request
func (m *Metrics) RecordSuggestion(variant, outcome string) {
	m.suggestions.WithLabelValues(variant, outcome).Inc()
}

// RecordCacheLookup counts a hit or a miss
func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// RecordGatewayCall counts an upstream call and observes its latency
func (m *Metrics) RecordGatewayCall(variant, status string, d time.Duration) {
	m.gatewayCalls.WithLabelValues(variant, status).Inc()
	m.gatewayLatency.WithLabelValues(variant).Observe(d.Seconds())
}

// RecordWriterOverflow counts a queue-full event
func (m *Metrics) RecordWriterOverflow(string) {
	m.writerOverflow.Inc()
}

// SetStoreSizes updates the live size gauges
func (m *Metrics) SetStoreSizes(sessions, cached int) {
	m.activeSessions.Set(float64(sessions))
	m.cachedEntries.Set(float64(cached))
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
