package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// defaultLatencyBuckets cover quick renders up to multi-minute exports (ms).
var defaultLatencyBuckets = []float64{5, 25, 100, 250, 1000, 2500, 10000, 30000, 120000, 600000} //nolint:gochecknoglobals // constant slice

// Manager owns all Prometheus collectors for the service.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	constLabels    prometheus.Labels
	registry       prometheus.Registerer

	// Export jobs
	jobsSubmitted  prometheus.Counter
	jobsRejected   *prometheus.CounterVec
	jobsCompleted  prometheus.Counter
	jobsFailed     prometheus.Counter
	jobsByStatus   *prometheus.GaugeVec
	renderLatency  prometheus.Histogram
	uploadLatency  prometheus.Histogram
	exportedPixels prometheus.Counter
	exportedBytes  prometheus.Counter

	// Archive reads
	scenesRead        prometheus.Counter
	sceneMaskedRatio  prometheus.Histogram
	regionLoads       *prometheus.CounterVec
	compositeRequests prometheus.Counter

	// Queue
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueued    prometheus.Counter
	queueDequeued    prometheus.Counter
	queueRejected    prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerBusy              prometheus.Gauge
	workerProcessingLatency prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// Process
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "geocomp",
		subsystem:      "export",
		latencyBuckets: defaultLatencyBuckets,
		registry:       prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.jobsSubmitted = m.counter("jobs_submitted_total", "Export jobs accepted for asynchronous processing")
	m.jobsRejected = m.counterVec("jobs_rejected_total", "Export submissions rejected before queueing", "reason")
	m.jobsCompleted = m.counter("jobs_completed_total", "Export jobs that delivered an output file")
	m.jobsFailed = m.counter("jobs_failed_total", "Export jobs that failed while running")
	m.jobsByStatus = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "jobs",
		Help: "Current number of export jobs by status", ConstLabels: m.constLabels,
	}, []string{"status"})
	m.renderLatency = m.histogram("render_latency_milliseconds", "Composite render time per job", m.latencyBuckets)
	m.uploadLatency = m.histogram("upload_latency_milliseconds", "Output upload time per job", m.latencyBuckets)
	m.exportedPixels = m.counter("exported_pixels_total", "Pixels written to export outputs (all bands)")
	m.exportedBytes = m.counter("exported_bytes_total", "Bytes uploaded to export destinations")

	m.scenesRead = m.counter("scenes_read_total", "Scenes materialised from archives during reduction")
	m.sceneMaskedRatio = m.histogram("scene_masked_ratio", "Fraction of pixels removed by the cloud mask per scene",
		[]float64{0.05, 0.1, 0.25, 0.5, 0.75, 0.9, 1})
	m.regionLoads = m.counterVec("region_loads_total", "Region lookups against the asset catalog", "result")
	m.compositeRequests = m.counter("composite_requests_total", "Composite pipelines built")

	m.queueSize = m.gauge("queue_size", "Current number of queued export jobs")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum number of queued export jobs")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue size divided by capacity")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Jobs added to the queue")
	m.queueDequeued = m.counter("queue_dequeued_total", "Jobs taken off the queue by workers")
	m.queueRejected = m.counter("queue_rejected_total", "Enqueue attempts refused (full, closed or cancelled)")

	m.workerCount = m.gauge("worker_count", "Number of export workers")
	m.workerBusy = m.gauge("worker_busy", "Number of workers currently running a job")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "End-to-end job processing time", m.latencyBuckets)

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "http_request_duration_milliseconds",
		Help: "HTTP request duration in milliseconds", Buckets: m.latencyBuckets, ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "HTTP errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Allocated heap bytes")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause", prometheus.DefBuckets)
}

// Export jobs.

// RecordJobSubmitted counts an accepted export job.
func RecordJobSubmitted() { globalManager.jobsSubmitted.Inc() }

// RecordJobRejected counts a submission refused before queueing.
func RecordJobRejected(reason string) { globalManager.jobsRejected.WithLabelValues(reason).Inc() }

// RecordJobCompleted counts a successful export.
func RecordJobCompleted() { globalManager.jobsCompleted.Inc() }

// RecordJobFailed counts a failed export.
func RecordJobFailed() { globalManager.jobsFailed.Inc() }

// UpdateJobsByStatus sets the number of jobs in a given status.
func UpdateJobsByStatus(status string, count int) {
	globalManager.jobsByStatus.WithLabelValues(status).Set(float64(count))
}

// RecordRenderLatency observes composite render time.
func RecordRenderLatency(latencyMs float64) { globalManager.renderLatency.Observe(latencyMs) }

// RecordUploadLatency observes upload time.
func RecordUploadLatency(latencyMs float64) { globalManager.uploadLatency.Observe(latencyMs) }

// RecordExportedPixels adds to the exported pixel counter.
func RecordExportedPixels(n int64) { globalManager.exportedPixels.Add(float64(n)) }

// RecordExportedBytes adds to the exported byte counter.
func RecordExportedBytes(n int64) { globalManager.exportedBytes.Add(float64(n)) }

// Archive reads.

// RecordSceneRead counts a materialised scene and the share of pixels its mask removed.
func RecordSceneRead(maskedRatio float64) {
	globalManager.scenesRead.Inc()
	globalManager.sceneMaskedRatio.Observe(maskedRatio)
}

// RecordRegionLoad counts a region lookup with its result ("ok", "not_found", "error").
func RecordRegionLoad(result string) { globalManager.regionLoads.WithLabelValues(result).Inc() }

// RecordCompositeRequest counts a built composite pipeline.
func RecordCompositeRequest() { globalManager.compositeRequests.Inc() }

// Queue.

// UpdateQueueSize sets the current queue length.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets queue utilisation in [0,1].
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue counts an enqueued job.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue counts a dequeued job.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueRejected counts a refused enqueue.
func RecordQueueRejected() { globalManager.queueRejected.Inc() }

// Workers.

// UpdateWorkerCount sets the number of workers.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// WorkerBusy adjusts the busy worker gauge by delta.
func WorkerBusy(delta int) { globalManager.workerBusy.Add(float64(delta)) }

// RecordWorkerProcessingLatency observes end-to-end job time.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// HTTP.

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes an HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// Errors.

// RecordErrorByComponent counts an error raised by a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint counts an HTTP error.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// Process.

// UpdateSystemMemoryUsage sets allocated heap bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime observes average GC pause in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
