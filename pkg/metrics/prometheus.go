// Package metrics provides Prometheus metrics for the ladder service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the ladder service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Timeline writes
	contestsRecorded    prometheus.Counter
	contestsEdited      prometheus.Counter
	adjustmentsRecorded prometheus.Counter
	eventsDeleted       *prometheus.CounterVec
	requestsDuplicate   prometheus.Counter

	// Rebuild engine
	rebuilds          *prometheus.CounterVec
	rebuildDuration   prometheus.Histogram
	eventsReplayed    prometheus.Counter
	eventsSkipped     *prometheus.CounterVec
	ranksChanged      prometheus.Counter
	rebuildsCoalesced prometheus.Counter
	normalizations    prometheus.Counter

	// Roster
	competitorsTotal  prometheus.Gauge
	competitorsActive prometheus.Gauge

	// Rebuild queue
	queueDepth     prometheus.Gauge
	queueCapacity  prometheus.Gauge
	queueRejected  prometheus.Counter
	queueWaitDelay prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by the package-level helpers

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // shared exposition registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "scrappers",
		subsystem:        "ladder",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
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

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.contestsRecorded = auto.NewCounter(m.counterOpts("contests_recorded_total",
		"Total number of contests appended to the timeline"))
	m.contestsEdited = auto.NewCounter(m.counterOpts("contests_edited_total",
		"Total number of historical contests whose score was edited"))
	m.adjustmentsRecorded = auto.NewCounter(m.counterOpts("adjustments_recorded_total",
		"Total number of manual adjustments appended to the timeline"))
	m.eventsDeleted = auto.NewCounterVec(m.counterOpts("events_deleted_total",
		"Total number of timeline events retracted, by kind"), []string{"kind"})
	m.requestsDuplicate = auto.NewCounter(m.counterOpts("requests_duplicate_total",
		"Total number of write requests answered from an idempotency key"))

	m.rebuilds = auto.NewCounterVec(m.counterOpts("rebuilds_total",
		"Total number of rebuild runs, by result"), []string{"result"})
	m.rebuildDuration = auto.NewHistogram(m.histogramOpts("rebuild_duration_milliseconds",
		"Wall time of a full rebuild in milliseconds"))
	m.eventsReplayed = auto.NewCounter(m.counterOpts("events_replayed_total",
		"Total number of timeline events applied during replays"))
	m.eventsSkipped = auto.NewCounterVec(m.counterOpts("events_skipped_total",
		"Total number of timeline events skipped during replays, by reason"), []string{"reason"})
	m.ranksChanged = auto.NewCounter(m.counterOpts("ranks_changed_total",
		"Total number of competitor rank changes committed by rebuilds"))
	m.rebuildsCoalesced = auto.NewCounter(m.counterOpts("rebuilds_coalesced_total",
		"Total number of rebuild requests satisfied by another request's run"))
	m.normalizations = auto.NewCounter(m.counterOpts("normalizations_total",
		"Total number of normalization repairs executed"))

	m.competitorsTotal = auto.NewGauge(m.gaugeOpts("competitors_total",
		"Number of competitors on the roster, inactive included"))
	m.competitorsActive = auto.NewGauge(m.gaugeOpts("competitors_active",
		"Number of active competitors shown on the leaderboard"))

	m.queueDepth = auto.NewGauge(m.gaugeOpts("rebuild_queue_depth",
		"Current number of pending rebuild requests"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("rebuild_queue_capacity",
		"Maximum number of pending rebuild requests"))
	m.queueRejected = auto.NewCounter(m.counterOpts("rebuild_queue_rejected_total",
		"Total number of rebuild requests rejected because the queue was full"))
	m.queueWaitDelay = auto.NewHistogram(m.histogramOpts("rebuild_queue_wait_milliseconds",
		"Time a rebuild request spent queued before a worker picked it up"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total",
		"Total number of errors by component"), []string{"component", "error_type"})
	m.errorRateByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total",
		"Total number of errors by endpoint"), []string{"endpoint", "method", "error_type"})
}

// RecordContestRecorded increments the recorded contests counter.
func RecordContestRecorded() { globalManager.contestsRecorded.Inc() }

// RecordContestEdited increments the edited contests counter.
func RecordContestEdited() { globalManager.contestsEdited.Inc() }

// RecordAdjustmentRecorded increments the manual adjustments counter.
func RecordAdjustmentRecorded() { globalManager.adjustmentsRecorded.Inc() }

// RecordEventDeleted increments the deleted events counter for kind.
func RecordEventDeleted(kind string) { globalManager.eventsDeleted.WithLabelValues(kind).Inc() }

// RecordDuplicateRequest increments the idempotent replay counter.
func RecordDuplicateRequest() { globalManager.requestsDuplicate.Inc() }

// RecordRebuild records one rebuild run.
func RecordRebuild(success bool, durationMs float64, replayed, changed int) {
	result := "success"
	if !success {
		result = "failure"
	}
	globalManager.rebuilds.WithLabelValues(result).Inc()
	globalManager.rebuildDuration.Observe(durationMs)
	globalManager.eventsReplayed.Add(float64(replayed))
	globalManager.ranksChanged.Add(float64(changed))
}

// RecordEventSkipped increments the skipped events counter for reason.
func RecordEventSkipped(reason string) { globalManager.eventsSkipped.WithLabelValues(reason).Inc() }

// RecordRebuildsCoalesced adds n requests that shared another request's run.
func RecordRebuildsCoalesced(n int) { globalManager.rebuildsCoalesced.Add(float64(n)) }

// RecordNormalization increments the normalization counter.
func RecordNormalization() { globalManager.normalizations.Inc() }

// UpdateCompetitors sets the roster gauges.
func UpdateCompetitors(total, active int) {
	globalManager.competitorsTotal.Set(float64(total))
	globalManager.competitorsActive.Set(float64(active))
}

// UpdateQueueDepth sets the current rebuild queue depth.
func UpdateQueueDepth(depth int) { globalManager.queueDepth.Set(float64(depth)) }

// UpdateQueueCapacity sets the rebuild queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueRejected increments the rejected rebuild requests counter.
func RecordQueueRejected() { globalManager.queueRejected.Inc() }

// RecordQueueWait records how long a request waited in the queue.
func RecordQueueWait(waitMs float64) { globalManager.queueWaitDelay.Observe(waitMs) }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
