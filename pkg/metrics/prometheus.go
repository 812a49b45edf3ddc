// Package metrics provides Prometheus metrics for the funnel runtime.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the funnel runtime.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Attribution and navigation
	attributionInjections prometheus.Counter
	firstAccessWrites     prometheus.Counter
	navigations           *prometheus.CounterVec

	// Storage boundary
	storageErrors *prometheus.CounterVec

	// Tracking pixel
	pixelEnqueued    prometheus.Counter
	pixelDuplicates  prometheus.Counter
	pixelDropped     *prometheus.CounterVec
	pixelSent        prometheus.Counter
	pixelFailed      *prometheus.CounterVec
	pixelSendLatency prometheus.Histogram

	// Queue and workers
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	workerCount      prometheus.Gauge
	workerErrors     prometheus.Counter

	// Quiz
	quizTransitions *prometheus.CounterVec
	quizCompletions prometheus.Counter

	// Ops HTTP endpoint
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // avoids default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "funnel",
		subsystem:        "runtime",
		histogramBuckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of collectors
	auto := promauto.With(m.registry)

	m.attributionInjections = m.counter("attribution_template_injections_total",
		"Number of page loads where the default campaign template was injected")
	m.firstAccessWrites = m.counter("attribution_first_access_writes_total",
		"Number of first-access timestamps written to storage")
	m.navigations = m.counterVec("navigations_total",
		"In-app navigations by outcome", "outcome")

	m.storageErrors = m.counterVec("storage_errors_total",
		"Swallowed durable storage failures by operation", "op")

	m.pixelEnqueued = m.counter("pixel_events_enqueued_total",
		"Page-view pixel events accepted for dispatch")
	m.pixelDuplicates = m.counter("pixel_events_duplicate_total",
		"Page-view pixel events ignored because the view already fired")
	m.pixelDropped = m.counterVec("pixel_events_dropped_total",
		"Page-view pixel events dropped before dispatch", "reason")
	m.pixelSent = m.counter("pixel_requests_sent_total",
		"Pixel requests delivered to an endpoint")
	m.pixelFailed = m.counterVec("pixel_requests_failed_total",
		"Pixel requests that failed", "reason")
	m.pixelSendLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "pixel_send_latency_milliseconds",
		Help:      "Latency of one pixel request in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.queueSize = m.gauge("queue_size", "Current number of pending pixel events")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum number of pending pixel events")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (size / capacity)")
	m.workerCount = m.gauge("worker_count", "Number of pixel dispatch workers")
	m.workerErrors = m.counter("worker_errors_total", "Errors observed by pixel dispatch workers")

	m.quizTransitions = m.counterVec("quiz_transitions_total",
		"Quiz state machine transitions by kind", "kind")
	m.quizCompletions = m.counter("quiz_completions_total",
		"Quizzes that reached the post-quiz route")

	m.httpRequests = m.counterVec("http_requests_total",
		"Ops endpoint requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "Ops endpoint request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.httpErrors = m.counterVec("http_errors_total",
		"Ops endpoint error responses by endpoint and error type", "endpoint", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordAttributionInjection counts a default-template injection.
func RecordAttributionInjection() { globalManager.attributionInjections.Inc() }

// RecordFirstAccessWrite counts a first-access timestamp write.
func RecordFirstAccessWrite() { globalManager.firstAccessWrites.Inc() }

// RecordNavigation counts a navigation with outcome "ok" or "error".
func RecordNavigation(outcome string) { globalManager.navigations.WithLabelValues(outcome).Inc() }

// RecordStorageError counts a swallowed storage failure for op ("get", "set").
func RecordStorageError(op string) { globalManager.storageErrors.WithLabelValues(op).Inc() }

// RecordPixelEnqueued counts an accepted pixel event.
func RecordPixelEnqueued() { globalManager.pixelEnqueued.Inc() }

// RecordPixelDuplicate counts a pixel event suppressed by the view dedupe.
func RecordPixelDuplicate() { globalManager.pixelDuplicates.Inc() }

// RecordPixelDropped counts a pixel event dropped for reason.
func RecordPixelDropped(reason string) { globalManager.pixelDropped.WithLabelValues(reason).Inc() }

// RecordPixelSent counts a delivered pixel request.
func RecordPixelSent() { globalManager.pixelSent.Inc() }

// RecordPixelFailed counts a failed pixel request.
func RecordPixelFailed(reason string) { globalManager.pixelFailed.WithLabelValues(reason).Inc() }

// RecordPixelSendLatency records the latency of one pixel request.
func RecordPixelSendLatency(latencyMs float64) { globalManager.pixelSendLatency.Observe(latencyMs) }

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(ratio float64) { globalManager.queueUtilization.Set(ratio) }

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordWorkerError counts a worker error.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// RecordQuizTransition counts a quiz transition ("select", "advance", "retreat", "exit").
func RecordQuizTransition(kind string) { globalManager.quizTransitions.WithLabelValues(kind).Inc() }

// RecordQuizCompletion counts a finished quiz.
func RecordQuizCompletion() { globalManager.quizCompletions.Inc() }

// RecordHTTPRequest counts an ops endpoint request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records an ops endpoint request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordHTTPError counts an ops endpoint error response.
func RecordHTTPError(endpoint, errorType string) {
	globalManager.httpErrors.WithLabelValues(endpoint, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap allocation gauge.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
