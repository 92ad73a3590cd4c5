package api

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

// Metrics holds all Prometheus metrics for the API
type Metrics struct {
	// HTTP request metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec

	// Codec metrics
	codecOperationsTotal *prometheus.CounterVec
	imageBytes           *prometheus.HistogramVec
	skippedAtomsTotal    prometheus.Counter

	// Inventory metrics
	inventoryOperationsTotal   *prometheus.CounterVec
	inventoryOperationDuration *prometheus.HistogramVec
	inventoryImages            prometheus.Gauge

	// API key authentication metrics
	authRequestsTotal *prometheus.CounterVec

	// Health check metrics
	healthChecksTotal *prometheus.CounterVec
}

// NewMetrics creates all Prometheus metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		// HTTP request metrics
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hatrom_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hatrom_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		httpRequestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hatrom_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"method", "endpoint"},
		),

		// Codec metrics
		codecOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hatrom_codec_operations_total",
				Help: "Total number of image decode and encode operations",
			},
			[]string{"operation", "status"},
		),

		imageBytes: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hatrom_image_bytes",
				Help:    "Size of decoded and encoded images in bytes",
				Buckets: prometheus.ExponentialBuckets(64, 2, 11),
			},
			[]string{"operation"},
		),

		skippedAtomsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "hatrom_skipped_atoms_total",
				Help: "Total number of undersized or empty atoms dropped while decoding",
			},
		),

		// Inventory metrics
		inventoryOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hatrom_inventory_operations_total",
				Help: "Total number of inventory operations",
			},
			[]string{"operation", "status"},
		),

		inventoryOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hatrom_inventory_operation_duration_seconds",
				Help:    "Inventory operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		inventoryImages: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "hatrom_inventory_images",
				Help: "Number of images in the inventory at the last listing",
			},
		),

		// Authentication metrics
		authRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hatrom_auth_requests_total",
				Help: "Total number of authentication requests",
			},
			[]string{"status"},
		),

		// Health check metrics
		healthChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hatrom_health_checks_total",
				Help: "Total number of health checks",
			},
			[]string{"status"},
		),
	}

	return m
}

func statusLabel(success bool) string {
	if success {
		return statusSuccess
	}
	return statusError
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	statusCodeStr := strconv.Itoa(statusCode)

	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCodeStr).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordCodecOperation records a decode or encode of an image of size bytes
func (m *Metrics) RecordCodecOperation(operation string, success bool, size int) {
	m.codecOperationsTotal.WithLabelValues(operation, statusLabel(success)).Inc()
	if success {
		m.imageBytes.WithLabelValues(operation).Observe(float64(size))
	}
}

// RecordSkippedAtoms counts atoms dropped during a decode
func (m *Metrics) RecordSkippedAtoms(n int) {
	m.skippedAtomsTotal.Add(float64(n))
}

// RecordInventoryOperation records an inventory operation
func (m *Metrics) RecordInventoryOperation(operation string, success bool, duration time.Duration) {
	m.inventoryOperationsTotal.WithLabelValues(operation, statusLabel(success)).Inc()
	m.inventoryOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateInventoryStats updates the stored image gauge
func (m *Metrics) UpdateInventoryStats(images int) {
	m.inventoryImages.Set(float64(images))
}

// RecordAuthRequest records an authentication request
func (m *Metrics) RecordAuthRequest(success bool) {
	m.authRequestsTotal.WithLabelValues(statusLabel(success)).Inc()
}

// RecordHealthCheck records a health check
func (m *Metrics) RecordHealthCheck(success bool) {
	m.healthChecksTotal.WithLabelValues(statusLabel(success)).Inc()
}

// InstrumentHandler instruments an HTTP handler with metrics
func (m *Metrics) InstrumentHandler(method, endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Record request in flight
		gauge := m.httpRequestsInFlight.WithLabelValues(method, endpoint)
		gauge.Inc()
		defer gauge.Dec()

		// Create response writer wrapper to capture status code
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(rw, r)

		m.RecordHTTPRequest(method, endpoint, rw.statusCode, time.Since(start))
	}
}

// InstrumentAuthMiddleware instruments the authentication middleware
func (m *Metrics) InstrumentAuthMiddleware(next func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hasAPIKey := r.Header.Get("X-API-Key") != ""

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next(h).ServeHTTP(rw, r)

			if hasAPIKey {
				m.RecordAuthRequest(rw.statusCode != http.StatusUnauthorized)
			}
		})
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
