// Package metrics provides Prometheus metrics for the stoplookup client.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Registry is the Prometheus registry for this metrics instance
	Registry *prometheus.Registry

	// Backend request metrics
	ClientRequestsTotal   *prometheus.CounterVec
	ClientRequestDuration *prometheus.HistogramVec

	// Selection metrics
	SelectionErrorsTotal *prometheus.CounterVec
	StaleResultsTotal    prometheus.Counter

	// logger for error reporting
	logger *slog.Logger

	mu     sync.Mutex
	server *http.Server
}

// New creates and registers all application metrics with a new registry.
func New() *Metrics {
	return NewWithLogger(nil)
}

// NewWithLogger creates metrics with a logger for error reporting.
func NewWithLogger(logger *slog.Logger) *Metrics {
	registry := prometheus.NewRegistry()

	clientRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stoplookup_client_requests_total",
			Help: "Total number of requests sent to the transit backend",
		},
		[]string{"endpoint", "status"},
	)

	clientRequestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stoplookup_client_request_duration_seconds",
			Help:    "Transit backend request latency distribution",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	selectionErrorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stoplookup_selection_errors_total",
			Help: "Selections rejected because the entered text matched no offered option",
		},
		[]string{"kind"},
	)

	staleResultsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stoplookup_stale_results_total",
		Help: "Fetch results dropped because the selection changed while they were in flight",
	})

	registry.MustRegister(
		clientRequestsTotal,
		clientRequestDuration,
		selectionErrorsTotal,
		staleResultsTotal,
	)

	return &Metrics{
		Registry:              registry,
		ClientRequestsTotal:   clientRequestsTotal,
		ClientRequestDuration: clientRequestDuration,
		SelectionErrorsTotal:  selectionErrorsTotal,
		StaleResultsTotal:     staleResultsTotal,
		logger:                logger,
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve starts a /metrics listener on addr in the background. It returns
// once the listener is bound so callers learn about port conflicts early.
// Call Shutdown() to stop it.
func (m *Metrics) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	m.mu.Lock()
	m.server = srv
	m.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if m.logger != nil {
				m.logger.Error("metrics listener stopped", "error", err)
			}
		}
	}()
	return nil
}

// Shutdown stops the metrics listener if one was started.
// This method is safe to call multiple times.
func (m *Metrics) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	srv := m.server
	m.server = nil
	m.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
