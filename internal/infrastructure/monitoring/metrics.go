// Package monitoring provides Prometheus metrics and OpenTelemetry tracing
package monitoring

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/alchemorsel/pantrychef/internal/application/prompt"
)

// Metrics handles Prometheus metrics collection on a private registry
type Metrics struct {
	logger   *zap.Logger
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	promptExecutions *prometheus.CounterVec
	promptDuration   *prometheus.HistogramVec

	historyFailures prometheus.Counter
}

// NewMetrics creates and registers every collector
func NewMetrics(logger *zap.Logger) *Metrics {
	m := &Metrics{
		logger:   logger.Named("metrics"),
		registry: prometheus.NewRegistry(),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		promptExecutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prompt_executions_total",
				Help: "Prompt executions by outcome",
			},
			[]string{"prompt", "outcome"},
		),
		promptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "prompt_duration_seconds",
				Help:    "Prompt execution time including the repair attempt",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 45, 90},
			},
			[]string{"prompt"},
		),
		historyFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "history_write_failures_total",
				Help: "Generation history records that could not be stored",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.promptExecutions,
		m.promptDuration,
		m.historyFailures,
	)
	return m
}

var _ prompt.Observer = (*Metrics)(nil)

// ObservePrompt records one prompt execution
func (m *Metrics) ObservePrompt(name string, outcome prompt.Outcome, elapsed time.Duration) {
	m.promptExecutions.WithLabelValues(name, string(outcome)).Inc()
	m.promptDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}

// RecordHistoryFailure counts a history record the API could not store
func (m *Metrics) RecordHistoryFailure() {
	m.historyFailures.Inc()
}

// RegisterDB exports connection pool statistics of db
func (m *Metrics) RegisterDB(name string, db *sql.DB) {
	if err := m.registry.Register(collectors.NewDBStatsCollector(db, name)); err != nil {
		m.logger.Warn("Failed to register database collector", zap.String("db", name), zap.Error(err))
	}
}

// Registry exposes the registry for tests and custom collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request count and latency per chi route pattern
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
