// Package metrics provides Prometheus metrics for the oarbit rating service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the oarbit service.
type Manager struct {
	namespace          string
	subsystem          string
	latencyBuckets     []float64
	ratingDeltaBuckets []float64
	enabled            bool
	constLabels        map[string]string
	registry           prometheus.Registerer

	// Session graph writes
	sessionsCreated prometheus.Counter
	piecesCreated   prometheus.Counter
	boatsCreated    prometheus.Counter
	assignmentsSet  prometheus.Counter

	// Rating engine
	sessionsProcessed  prometheus.Counter
	processingRejected prometheus.Counter
	processingLatency  prometheus.Histogram
	comparisons        prometheus.Counter
	ratingDelta        prometheus.Histogram
	ratedAthletes      prometheus.Gauge

	// Persistence
	indexPublishDuration prometheus.Histogram
	storeLatency         *prometheus.HistogramVec

	// Preview and validation
	projections      *prometheus.CounterVec
	validationIssues *prometheus.CounterVec

	// Orchestration
	orchestratorSteps *prometheus.CounterVec

	// Processing queue and worker
	queueDepth    prometheus.Gauge
	queueCapacity prometheus.Gauge
	queueRejected prometheus.Counter
	workerErrors  prometheus.Counter
	workerLatency prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
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
		namespace:          "oarbit",
		subsystem:          "seatrace",
		latencyBuckets:     prometheus.DefBuckets,
		ratingDeltaBuckets: DeltaBuckets(32),
		enabled:            true,
		constLabels:        make(map[string]string),
		registry:           prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
		Buckets:     buckets,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.sessionsCreated = auto.NewCounter(m.counterOpts("sessions_created_total", "Sessions created"))
	m.piecesCreated = auto.NewCounter(m.counterOpts("pieces_created_total", "Pieces created"))
	m.boatsCreated = auto.NewCounter(m.counterOpts("boats_created_total", "Boats created"))
	m.assignmentsSet = auto.NewCounter(m.counterOpts("assignments_set_total", "Seat assignments written"))

	m.sessionsProcessed = auto.NewCounter(m.counterOpts("sessions_processed_total", "Sessions run through the rating engine"))
	m.processingRejected = auto.NewCounter(m.counterOpts("processing_rejected_total", "Automatic processing triggers refused because the session was already processed"))
	m.processingLatency = auto.NewHistogram(m.histogramOpts("processing_latency_milliseconds", "Time spent processing a session in milliseconds", m.latencyBuckets))
	m.comparisons = auto.NewCounter(m.counterOpts("race_outcomes_total", "Athlete race outcomes derived from finish times"))
	m.ratingDelta = auto.NewHistogram(m.histogramOpts("rating_delta", "Distribution of applied rating deltas", m.ratingDeltaBuckets))
	m.ratedAthletes = auto.NewGauge(m.gaugeOpts("rated_athletes", "Athletes holding a rating"))

	m.indexPublishDuration = auto.NewHistogram(m.histogramOpts("index_publish_milliseconds", "Time to rebuild the ranked rating snapshot in milliseconds", m.latencyBuckets))
	m.storeLatency = auto.NewHistogramVec(m.histogramOpts("store_latency_milliseconds", "SQLite store operation latency in milliseconds", m.latencyBuckets), []string{"operation"})

	m.projections = auto.NewCounterVec(m.counterOpts("projections_total", "Ranking previews by result"), []string{"result"})
	m.validationIssues = auto.NewCounterVec(m.counterOpts("validation_issues_total", "Validation findings by severity and code"), []string{"severity", "code"})

	m.orchestratorSteps = auto.NewCounterVec(m.counterOpts("orchestrator_steps_total", "Session submission steps by kind and outcome"), []string{"step", "outcome"})

	m.queueDepth = auto.NewGauge(m.gaugeOpts("queue_depth", "Processing jobs waiting in the queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Processing queue capacity"))
	m.queueRejected = auto.NewCounter(m.counterOpts("queue_rejected_total", "Processing jobs refused by the queue"))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Processing jobs that failed in the worker"))
	m.workerLatency = auto.NewHistogram(m.histogramOpts("worker_latency_milliseconds", "Worker time per processing job in milliseconds", m.latencyBuckets))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.latencyBuckets), []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(m.counterOpts("errors_total", "Errors by component and type"), []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_bytes", "Allocated heap bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutines", "Live goroutines"))
}

// GetRegistry returns the registry backing the package-level recorders.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Manager methods. Each is a no-op when the manager is disabled.

func (m *Manager) RecordSessionCreated() {
	if m.enabled {
		m.sessionsCreated.Inc()
	}
}

func (m *Manager) RecordPieceCreated() {
	if m.enabled {
		m.piecesCreated.Inc()
	}
}

func (m *Manager) RecordBoatCreated() {
	if m.enabled {
		m.boatsCreated.Inc()
	}
}

func (m *Manager) RecordAssignmentsSet(n int) {
	if m.enabled && n > 0 {
		m.assignmentsSet.Add(float64(n))
	}
}

func (m *Manager) RecordSessionProcessed(latencyMs float64) {
	if m.enabled {
		m.sessionsProcessed.Inc()
		m.processingLatency.Observe(latencyMs)
	}
}

func (m *Manager) RecordProcessingRejected() {
	if m.enabled {
		m.processingRejected.Inc()
	}
}

func (m *Manager) RecordComparisons(n int) {
	if m.enabled && n > 0 {
		m.comparisons.Add(float64(n))
	}
}

func (m *Manager) ObserveRatingDelta(delta float64) {
	if m.enabled {
		m.ratingDelta.Observe(delta)
	}
}

func (m *Manager) UpdateRatedAthletes(n int) {
	if m.enabled {
		m.ratedAthletes.Set(float64(n))
	}
}

func (m *Manager) RecordIndexPublishDuration(ms float64) {
	if m.enabled {
		m.indexPublishDuration.Observe(ms)
	}
}

func (m *Manager) RecordStoreLatency(operation string, ms float64) {
	if m.enabled {
		m.storeLatency.WithLabelValues(operation).Observe(ms)
	}
}

func (m *Manager) RecordProjection(available bool) {
	if !m.enabled {
		return
	}
	result := "available"
	if !available {
		result = "unavailable"
	}
	m.projections.WithLabelValues(result).Inc()
}

func (m *Manager) RecordValidationIssue(severity, code string) {
	if m.enabled {
		m.validationIssues.WithLabelValues(severity, code).Inc()
	}
}

func (m *Manager) RecordOrchestratorStep(step, outcome string) {
	if m.enabled {
		m.orchestratorSteps.WithLabelValues(step, outcome).Inc()
	}
}

func (m *Manager) UpdateQueueDepth(n int) {
	if m.enabled {
		m.queueDepth.Set(float64(n))
	}
}

func (m *Manager) UpdateQueueCapacity(n int) {
	if m.enabled {
		m.queueCapacity.Set(float64(n))
	}
}

func (m *Manager) RecordQueueRejected() {
	if m.enabled {
		m.queueRejected.Inc()
	}
}

func (m *Manager) RecordWorkerError() {
	if m.enabled {
		m.workerErrors.Inc()
	}
}

func (m *Manager) RecordWorkerLatency(ms float64) {
	if m.enabled {
		m.workerLatency.Observe(ms)
	}
}

func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string) {
	if m.enabled {
		m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

func (m *Manager) RecordHTTPRequestDuration(endpoint, method, statusCode string, ms float64) {
	if m.enabled {
		m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(ms)
	}
}

func (m *Manager) RecordErrorByComponent(component, errorType string) {
	if m.enabled {
		m.errorsByComponent.WithLabelValues(component, errorType).Inc()
	}
}

func (m *Manager) UpdateSystemMemoryUsage(bytes uint64) {
	if m.enabled {
		m.systemMemoryUsage.Set(float64(bytes))
	}
}

func (m *Manager) UpdateSystemGoroutineCount(n int) {
	if m.enabled {
		m.systemGoroutineCount.Set(float64(n))
	}
}

// Package-level recorders delegate to the global manager.

func RecordSessionCreated()                { globalManager.RecordSessionCreated() }
func RecordPieceCreated()                  { globalManager.RecordPieceCreated() }
func RecordBoatCreated()                   { globalManager.RecordBoatCreated() }
func RecordAssignmentsSet(n int)           { globalManager.RecordAssignmentsSet(n) }
func RecordSessionProcessed(ms float64)    { globalManager.RecordSessionProcessed(ms) }
func RecordProcessingRejected()            { globalManager.RecordProcessingRejected() }
func RecordComparisons(n int)              { globalManager.RecordComparisons(n) }
func ObserveRatingDelta(delta float64)     { globalManager.ObserveRatingDelta(delta) }
func UpdateRatedAthletes(n int)            { globalManager.UpdateRatedAthletes(n) }
func RecordIndexPublishDuration(ms float64) { globalManager.RecordIndexPublishDuration(ms) }
func RecordStoreLatency(operation string, ms float64) {
	globalManager.RecordStoreLatency(operation, ms)
}
func RecordProjection(available bool)      { globalManager.RecordProjection(available) }
func RecordValidationIssue(sev, code string) { globalManager.RecordValidationIssue(sev, code) }
func RecordOrchestratorStep(step, outcome string) {
	globalManager.RecordOrchestratorStep(step, outcome)
}
func UpdateQueueDepth(n int)          { globalManager.UpdateQueueDepth(n) }
func UpdateQueueCapacity(n int)       { globalManager.UpdateQueueCapacity(n) }
func RecordQueueRejected()            { globalManager.RecordQueueRejected() }
func RecordWorkerError()              { globalManager.RecordWorkerError() }
func RecordWorkerLatency(ms float64)  { globalManager.RecordWorkerLatency(ms) }
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode)
}
func RecordHTTPRequestDuration(endpoint, method, statusCode string, ms float64) {
	globalManager.RecordHTTPRequestDuration(endpoint, method, statusCode, ms)
}
func RecordErrorByComponent(component, errorType string) {
	globalManager.RecordErrorByComponent(component, errorType)
}
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.UpdateSystemMemoryUsage(bytes) }
func UpdateSystemGoroutineCount(n int)     { globalManager.UpdateSystemGoroutineCount(n) }
