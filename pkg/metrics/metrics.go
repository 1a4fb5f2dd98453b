package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Analytics metrics
	ComputationsTotal      *prometheus.CounterVec
	ComputationDuration    *prometheus.HistogramVec
	ComputationsInProgress prometheus.Gauge
	StaleRequests          prometheus.Counter
	RecordsMalformed       *prometheus.CounterVec
	RecordsDropped         *prometheus.CounterVec

	// Event store metrics
	StoreReads        *prometheus.CounterVec
	StoreReadDuration *prometheus.HistogramVec
	StoreReadFailures *prometheus.CounterVec

	// Credential cache metrics
	CredentialCache *prometheus.CounterVec
}

// New registers the collectors with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the collectors with reg. Tests pass a fresh
// registry so collectors are not registered twice.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		ComputationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_computations_total",
				Help: "Total number of analytics computations",
			},
			[]string{"view", "status"},
		),

		ComputationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analytics_computation_duration_seconds",
				Help:    "Analytics computation duration in seconds, reads included",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"view"},
		),

		ComputationsInProgress: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "analytics_computations_in_progress",
				Help: "Number of analytics computations currently in progress",
			},
		),

		StaleRequests: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "analytics_stale_requests_total",
				Help: "Total number of results discarded because a newer request superseded them",
			},
		),

		RecordsMalformed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_records_malformed_total",
				Help: "Total number of records coerced to a safe default",
			},
			[]string{"source", "error_type"},
		),

		RecordsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_records_dropped_total",
				Help: "Total number of records dated outside the requested range",
			},
			[]string{"source"},
		),

		StoreReads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "event_store_reads_total",
				Help: "Total number of event store reads",
			},
			[]string{"query", "status"},
		),

		StoreReadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "event_store_read_duration_seconds",
				Help:    "Event store read duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"query"},
		),

		StoreReadFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "event_store_read_failures_total",
				Help: "Total number of event store read failures",
			},
			[]string{"query", "error_type"},
		),

		CredentialCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credential_cache_lookups_total",
				Help: "Credential status cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

// HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// Analytics computation metrics
func (m *Metrics) RecordComputation(view, status string, duration time.Duration) {
	m.ComputationsTotal.WithLabelValues(view, status).Inc()
	m.ComputationDuration.WithLabelValues(view).Observe(duration.Seconds())
}

func (m *Metrics) RecordStaleRequest() {
	m.StaleRequests.Inc()
}

// Records coerced to a sentinel date or zero spend
func (m *Metrics) RecordMalformed(source, errorType string) {
	m.RecordsMalformed.WithLabelValues(source, errorType).Inc()
}

func (m *Metrics) RecordDropped(source string, count int) {
	if count > 0 {
		m.RecordsDropped.WithLabelValues(source).Add(float64(count))
	}
}

// Event store read metrics
func (m *Metrics) RecordStoreRead(query, status string, duration time.Duration) {
	m.StoreReads.WithLabelValues(query, status).Inc()
	m.StoreReadDuration.WithLabelValues(query).Observe(duration.Seconds())
}

// Event store failure metrics
func (m *Metrics) RecordStoreFailure(query, errorType string) {
	m.StoreReadFailures.WithLabelValues(query, errorType).Inc()
}

func (m *Metrics) RecordCredentialCache(result string) {
	m.CredentialCache.WithLabelValues(result).Inc()
}

func (m *Metrics) IncComputationsInProgress() {
	m.ComputationsInProgress.Inc()
}

func (m *Metrics) DecComputationsInProgress() {
	m.ComputationsInProgress.Dec()
}

// HTTP requests in flight counter
func (m *Metrics) IncHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// HTTP requests in flight counter
func (m *Metrics) DecHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}
