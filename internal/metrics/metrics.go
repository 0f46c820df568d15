// Package metrics exposes Prometheus instrumentation for the discovery
// pipeline and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	candidatesCollectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radar_candidates_collected_total",
			Help: "Total number of candidate tools collected, labeled by source.",
		},
		[]string{"source"},
	)

	sourceFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radar_source_failures_total",
			Help: "Total number of failed source fetches, labeled by source.",
		},
		[]string{"source"},
	)

	enrichmentCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radar_enrichment_calls_total",
			Help: "Total number of enrichment batches, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	toolsPersistedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radar_tools_persisted_total",
			Help: "Total number of tools processed by persistence, labeled by result.",
		},
		[]string{"result"},
	)

	runDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "radar_run_duration_seconds",
			Help:    "Histogram of full pipeline run durations, labeled by status.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"status"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// ObserveCollected records candidates collected from one source.
func ObserveCollected(source string, count int) {
	if count > 0 {
		candidatesCollectedTotal.WithLabelValues(source).Add(float64(count))
	}
}

// ObserveSourceFailure records a failed source fetch.
func ObserveSourceFailure(source string) {
	sourceFailuresTotal.WithLabelValues(source).Inc()
}

// ObserveEnrichment records an enrichment batch outcome. Outcome is
// "remote" when the provider response was used and "fallback" when
// heuristics filled in.
func ObserveEnrichment(outcome string) {
	enrichmentCallsTotal.WithLabelValues(outcome).Inc()
}

// ObservePersisted records persistence results for a completed batch.
func ObservePersisted(inserted, duplicate, failed int) {
	toolsPersistedTotal.WithLabelValues("inserted").Add(float64(inserted))
	toolsPersistedTotal.WithLabelValues("duplicate").Add(float64(duplicate))
	toolsPersistedTotal.WithLabelValues("failed").Add(float64(failed))
}

// ObserveRun records a finished pipeline run.
func ObserveRun(status string, duration time.Duration) {
	runDurationSeconds.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveHTTPRequest records metrics for an HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler returns the standard Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}
		ObserveHTTPRequest(r.Method, routePattern, ww.statusCode, time.Since(start))
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}
