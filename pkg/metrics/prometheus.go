// Package metrics provides Prometheus metrics for the cxdiag diagnostic service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Recalculation outcomes used as label values.
const (
	OutcomeSuccess  = "success"
	OutcomeNoCorpus = "no_corpus"
	OutcomeFailure  = "failure"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Diagnostic metrics
	diagnosticsSubmitted prometheus.Counter
	diagnosticsCompleted prometheus.Counter
	diagnosticsDeleted   prometheus.Counter
	totalDiagnostics     prometheus.Gauge
	scoreObserved        prometheus.Histogram

	// Benchmark metrics
	recalculations        *prometheus.CounterVec
	recalculationDuration prometheus.Histogram
	dimensionsUpdated     prometheus.Gauge
	lastRecalculationUnix prometheus.Gauge

	// Trigger queue metrics
	triggerEnqueued  prometheus.Counter
	triggerCoalesced prometheus.Counter
	triggerQueueSize prometheus.Gauge

	// Store metrics
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec
	errorRateByType     *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "cxdiag",
		subsystem:        "diagnostic",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string { return m.metricPrefix + n }

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	constLabels := prometheus.Labels(m.customLabels)

	m.diagnosticsSubmitted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("submitted_total"),
		Help: "Total number of diagnostic submissions stored",
	})
	m.diagnosticsCompleted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("completed_total"),
		Help: "Total number of submissions that reached the full questionnaire length",
	})
	m.diagnosticsDeleted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("deleted_total"),
		Help: "Total number of diagnostics deleted by administrators",
	})
	m.totalDiagnostics = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("stored"),
		Help: "Number of diagnostics currently stored",
	})
	m.scoreObserved = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name:    m.name("overall_score"),
		Help:    "Distribution of submitted overall scores",
		Buckets: []float64{1, 1.5, 2, 2.5, 3, 3.5, 4, 4.5, 5},
	})

	m.recalculations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "benchmark", ConstLabels: constLabels,
		Name: m.name("recalculations_total"),
		Help: "Benchmark recalculation runs by outcome",
	}, []string{"outcome"})
	m.recalculationDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "benchmark", ConstLabels: constLabels,
		Name:    m.name("recalculation_duration_milliseconds"),
		Help:    "Benchmark recalculation duration in milliseconds",
		Buckets: m.histogramBuckets,
	})
	m.dimensionsUpdated = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "benchmark", ConstLabels: constLabels,
		Name: m.name("dimensions_updated"),
		Help: "Dimensions upserted by the last successful recalculation",
	})
	m.lastRecalculationUnix = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "benchmark", ConstLabels: constLabels,
		Name: m.name("last_recalculation_unixtime"),
		Help: "Unix time of the last successful recalculation",
	})

	m.triggerEnqueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "trigger", ConstLabels: constLabels,
		Name: m.name("enqueued_total"),
		Help: "Recalculation triggers accepted by the queue",
	})
	m.triggerCoalesced = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "trigger", ConstLabels: constLabels,
		Name: m.name("coalesced_total"),
		Help: "Recalculation triggers folded into an already pending run",
	})
	m.triggerQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "trigger", ConstLabels: constLabels,
		Name: m.name("queue_size"),
		Help: "Pending recalculation triggers",
	})

	m.storeLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "store", ConstLabels: constLabels,
		Name:    m.name("operation_duration_milliseconds"),
		Help:    "Store operation latency in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"op"})
	m.storeErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "store", ConstLabels: constLabels,
		Name: m.name("errors_total"),
		Help: "Store operation failures",
	}, []string{"op"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "http", ConstLabels: constLabels,
		Name: m.name("requests_total"),
		Help: "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "http", ConstLabels: constLabels,
		Name:    m.name("request_duration_milliseconds"),
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "http", ConstLabels: constLabels,
		Name: m.name("errors_by_endpoint_total"),
		Help: "HTTP errors by endpoint, method and error type",
	}, []string{"endpoint", "method", "error_type"})
	m.errorRateByType = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "http", ConstLabels: constLabels,
		Name: m.name("errors_by_type_total"),
		Help: "HTTP errors by error type and severity",
	}, []string{"error_type", "severity"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "system", ConstLabels: constLabels,
		Name: m.name("memory_usage_bytes"),
		Help: "Allocated heap bytes",
	})
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "system", ConstLabels: constLabels,
		Name: m.name("goroutines"),
		Help: "Number of goroutines",
	})
}

// Diagnostic Metrics Functions.

// RecordDiagnosticSubmitted increments the submission counter and observes the score.
func RecordDiagnosticSubmitted(score float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.diagnosticsSubmitted.Inc()
	globalManager.scoreObserved.Observe(score)
}

// RecordDiagnosticCompleted increments the completed counter.
func RecordDiagnosticCompleted() {
	if globalManager.enabled {
		globalManager.diagnosticsCompleted.Inc()
	}
}

// RecordDiagnosticDeleted increments the deletion counter.
func RecordDiagnosticDeleted() {
	if globalManager.enabled {
		globalManager.diagnosticsDeleted.Inc()
	}
}

// UpdateTotalDiagnostics sets the stored diagnostics gauge.
func UpdateTotalDiagnostics(count int) {
	if globalManager.enabled {
		globalManager.totalDiagnostics.Set(float64(count))
	}
}

// Benchmark Metrics Functions.

// RecordRecalculation records one aggregator run.
func RecordRecalculation(outcome string, durationMs float64, dimensionsUpdated int) {
	if !globalManager.enabled {
		return
	}
	globalManager.recalculations.WithLabelValues(outcome).Inc()
	globalManager.recalculationDuration.Observe(durationMs)
	if outcome == OutcomeSuccess {
		globalManager.dimensionsUpdated.Set(float64(dimensionsUpdated))
		globalManager.lastRecalculationUnix.Set(float64(time.Now().Unix()))
	}
}

// Trigger Metrics Functions.

// RecordTriggerEnqueued increments the accepted trigger counter.
func RecordTriggerEnqueued() {
	if globalManager.enabled {
		globalManager.triggerEnqueued.Inc()
	}
}

// RecordTriggerCoalesced increments the coalesced trigger counter.
func RecordTriggerCoalesced() {
	if globalManager.enabled {
		globalManager.triggerCoalesced.Inc()
	}
}

// UpdateTriggerQueueSize sets the pending trigger gauge.
func UpdateTriggerQueueSize(size int) {
	if globalManager.enabled {
		globalManager.triggerQueueSize.Set(float64(size))
	}
}

// Store Metrics Functions.

// RecordStoreOperation records latency for a store operation and counts failures.
func RecordStoreOperation(op string, latencyMs float64, err error) {
	if !globalManager.enabled {
		return
	}
	globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
	if err != nil {
		globalManager.storeErrors.WithLabelValues(op).Inc()
	}
}

// HTTP Metrics Functions.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if globalManager.enabled {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
	}
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if globalManager.enabled {
		globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
	}
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	if globalManager.enabled {
		globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
	}
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	if globalManager.enabled {
		globalManager.systemMemoryUsage.Set(float64(bytes))
	}
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	if globalManager.enabled {
		globalManager.systemGoroutineCount.Set(float64(count))
	}
}

// RefreshInterval returns how often gauge updaters should run.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
