package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/atleaf/atleaf/pkg/release"
)

const (
	outcomeOK       = "ok"
	outcomeError    = "error"
	outcomeMismatch = "mismatch"
)

// Metrics holds all Prometheus metrics for the API. All methods are
// safe on a nil receiver; a nil *Metrics disables instrumentation.
type Metrics struct {
	// HTTP request metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec

	// Leaf decode metrics
	leafDecodesTotal       *prometheus.CounterVec
	hashVerificationsTotal *prometheus.CounterVec
	cachedLeaves           prometheus.Gauge

	// API key authentication metrics
	authRequestsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics. It must be
// called at most once per process; promauto panics on re-registration.
func NewMetrics() *Metrics {
	m := &Metrics{
		// HTTP request metrics
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atleaf_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "atleaf_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		httpRequestsInFlight: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "atleaf_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"method", "endpoint"},
		),

		// Leaf decode metrics
		leafDecodesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atleaf_leaf_decodes_total",
				Help: "Total number of leaf decode attempts",
			},
			[]string{"outcome"},
		),

		hashVerificationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atleaf_hash_verifications_total",
				Help: "Total number of raw payload hash verifications",
			},
			[]string{"outcome"},
		),

		cachedLeaves: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "atleaf_cached_leaves",
				Help: "Number of leaves in the local cache",
			},
		),

		// Authentication metrics
		authRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atleaf_auth_requests_total",
				Help: "Total number of authentication attempts",
			},
			[]string{"status"},
		),
	}

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	statusCodeStr := strconv.Itoa(statusCode)

	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCodeStr).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordDecode records a single leaf decode attempt
func (m *Metrics) RecordDecode(success bool) {
	if m == nil {
		return
	}
	outcome := outcomeOK
	if !success {
		outcome = outcomeError
	}
	m.leafDecodesTotal.WithLabelValues(outcome).Inc()
}

// RecordScan folds a batch scan's counters into the decode and hash
// verification metrics
func (m *Metrics) RecordScan(stats release.ScanStats) {
	if m == nil {
		return
	}
	m.leafDecodesTotal.WithLabelValues(outcomeOK).Add(float64(stats.Decoded))
	m.leafDecodesTotal.WithLabelValues(outcomeError).Add(float64(stats.Failed))
	m.hashVerificationsTotal.WithLabelValues(outcomeOK).Add(float64(stats.HashesVerified))
	m.hashVerificationsTotal.WithLabelValues(outcomeMismatch).Add(float64(stats.HashMismatches))
}

// UpdateCachedLeaves updates the cached leaves gauge
func (m *Metrics) UpdateCachedLeaves(count int) {
	if m == nil {
		return
	}
	m.cachedLeaves.Set(float64(count))
}

// RecordAuthRequest records an authentication attempt
func (m *Metrics) RecordAuthRequest(success bool) {
	if m == nil {
		return
	}
	status := outcomeOK
	if !success {
		status = outcomeError
	}
	m.authRequestsTotal.WithLabelValues(status).Inc()
}

// InstrumentHandler instruments an HTTP handler with metrics
func (m *Metrics) InstrumentHandler(method, endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	if m == nil {
		return handler
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Record request in flight
		gauge := m.httpRequestsInFlight.WithLabelValues(method, endpoint)
		gauge.Inc()
		defer gauge.Dec()

		// Create response writer wrapper to capture status code
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		// Call the original handler
		handler(rw, r)

		// Record metrics
		duration := time.Since(start)
		m.RecordHTTPRequest(method, endpoint, rw.statusCode, duration)
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
