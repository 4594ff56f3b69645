package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sourcer_search_requests_total",
			Help: "Total number of web search API calls by outcome",
		},
		[]string{"outcome"},
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sourcer_search_duration_seconds",
			Help:    "Duration of web search API calls in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	CandidatesExtractedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sourcer_candidates_extracted_total",
			Help: "Total supplier candidates extracted from search results after dedup",
		},
	)

	RegistryLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sourcer_registry_lookups_total",
			Help: "Total registry lookups by operation and record status",
		},
		[]string{"operation", "status"},
	)

	RegistryCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sourcer_registry_cache_total",
			Help: "Registry cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	ValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sourcer_validations_total",
			Help: "Total company validations by validation status",
		},
		[]string{"status"},
	)

	EnrichmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sourcer_enrichments_total",
			Help: "Total supplier page enrichments by outcome",
		},
		[]string{"outcome"},
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sourcer_runs_total",
			Help: "Total sourcing pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sourcer_run_duration_seconds",
			Help:    "Duration of sourcing pipeline runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
	)
)

// RecordSearch updates the search metrics for one API call.
func RecordSearch(outcome string, d time.Duration) {
	SearchRequestsTotal.WithLabelValues(outcome).Inc()
	SearchDuration.Observe(d.Seconds())
}

// RecordLookup counts one registry lookup.
func RecordLookup(operation, status string) {
	RegistryLookupsTotal.WithLabelValues(operation, status).Inc()
}

// RecordRun updates the run metrics for one pipeline run.
func RecordRun(outcome string, d time.Duration) {
	RunsTotal.WithLabelValues(outcome).Inc()
	RunDuration.Observe(d.Seconds())
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", srv.Addr, "err", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
