// Package metrics holds the Prometheus collectors for store operations,
// export sessions and the inspection API. A nil *Metrics is valid and records
// nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Rebind reasons
const (
	ReasonSave   = "save"
	ReasonLoad   = "load"
	ReasonSetUID = "set_uid"
	ReasonExport = "export"
	ReasonRevert = "revert"
)

// Metrics holds all Prometheus metrics for respack
type Metrics struct {
	// Store operation metrics
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	uidRebindsTotal   *prometheus.CounterVec

	// Export metrics
	remapsActive prometheus.Gauge

	// HTTP request metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New creates all metrics and registers them on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "respack_operations_total",
				Help: "Total number of store operations",
			},
			[]string{"op", "format", "status"},
		),

		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "respack_operation_duration_seconds",
				Help:    "Store operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op", "format"},
		),

		uidRebindsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "respack_uid_rebinds_total",
				Help: "Total number of UID registry bindings written",
			},
			[]string{"reason"},
		),

		remapsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "respack_export_remaps_active",
				Help: "Number of UIDs currently redirected to export artifacts",
			},
		),

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "respack_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "respack_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
	}
}

// RecordOperation records one store operation on a file of the given format
func (m *Metrics) RecordOperation(op, format string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := statusSuccess
	if err != nil {
		status = statusError
	}

	m.operationsTotal.WithLabelValues(op, format, status).Inc()
	m.operationDuration.WithLabelValues(op, format).Observe(duration.Seconds())
}

// RecordRebind counts a registry binding
func (m *Metrics) RecordRebind(reason string) {
	if m == nil {
		return
	}
	m.uidRebindsTotal.WithLabelValues(reason).Inc()
}

// SetRemapsActive reports the size of the export rollback log
func (m *Metrics) SetRemapsActive(n int) {
	if m == nil {
		return
	}
	m.remapsActive.Set(float64(n))
}

// RemapsActive exposes the export rollback gauge
func (m *Metrics) RemapsActive() prometheus.Gauge {
	if m == nil {
		return nil
	}
	return m.remapsActive
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// InstrumentHandler wraps handler so every request is counted and timed
func (m *Metrics) InstrumentHandler(method, endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	if m == nil {
		return handler
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(rw, r)

		m.RecordHTTPRequest(method, endpoint, rw.statusCode, time.Since(start))
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
