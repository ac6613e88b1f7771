// Package metrics provides Prometheus metrics for the Strata score engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the engine.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Write path
	scoresSaved   prometheus.Counter
	batchesSaved  prometheus.Counter
	scoresDeleted prometheus.Counter

	// Read path
	hotDrift     prometheus.Counter
	coldFallback prometheus.Counter

	// Maintenance
	migratedEntries prometheus.Counter
	retentionSweeps prometheus.Counter
	trackedGames    prometheus.Gauge

	// Tier op latency in seconds, labeled by operation
	hotOpDuration  *prometheus.HistogramVec
	coldOpDuration *prometheus.HistogramVec

	// HTTP surface
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
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
		namespace:        "strata",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	factory := promauto.With(m.registry)

	m.scoresSaved = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "engine",
		Name: "scores_saved_total", Help: "Scores written through the orchestrator.",
	})
	m.batchesSaved = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "engine",
		Name: "batches_saved_total", Help: "Batch writes through the orchestrator.",
	})
	m.scoresDeleted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "engine",
		Name: "scores_deleted_total", Help: "Single-score deletions.",
	})
	m.hotDrift = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "store",
		Name: "hot_drift_total", Help: "Rank index ids observed without a record body.",
	})
	m.coldFallback = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "engine",
		Name: "cold_fallback_total", Help: "Reads answered by the cold tier after a hot miss or failure.",
	})
	m.migratedEntries = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "maintenance",
		Name: "migrated_entries_total", Help: "Entries demoted from the hot to the cold tier.",
	})
	m.retentionSweeps = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "maintenance",
		Name: "retention_sweeps_total", Help: "Retention enforcement runs.",
	})
	m.trackedGames = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "maintenance",
		Name: "tracked_games", Help: "Games seen by the last maintenance sweep.",
	})
	m.hotOpDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "store",
		Name: "hot_op_duration_seconds", Help: "Hot tier operation latency.",
		Buckets: m.histogramBuckets,
	}, []string{"op"})
	m.coldOpDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "store",
		Name: "cold_op_duration_seconds", Help: "Cold tier operation latency.",
		Buckets: m.histogramBuckets,
	}, []string{"op"})
	m.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "http",
		Name: "requests_total", Help: "HTTP requests by endpoint and status.",
	}, []string{"endpoint", "method", "status"})
	m.httpRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "http",
		Name: "request_duration_seconds", Help: "HTTP request latency by endpoint.",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method"})
}

// GetRegistry returns the registry backing the global manager, for serving
// on the health endpoint.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Package-level helpers operating on the global manager.

// RecordScoreSaved counts one write-through save.
func RecordScoreSaved() {
	if globalManager.enabled {
		globalManager.scoresSaved.Inc()
	}
}

// RecordBatchSaved counts one batch write.
func RecordBatchSaved() {
	if globalManager.enabled {
		globalManager.batchesSaved.Inc()
	}
}

// RecordScoreDeleted counts one deletion.
func RecordScoreDeleted() {
	if globalManager.enabled {
		globalManager.scoresDeleted.Inc()
	}
}

// RecordHotDrift counts a rank entry with no matching record.
func RecordHotDrift() {
	if globalManager.enabled {
		globalManager.hotDrift.Inc()
	}
}

// RecordColdFallback counts a read that fell through to the cold tier.
func RecordColdFallback() {
	if globalManager.enabled {
		globalManager.coldFallback.Inc()
	}
}

// RecordMigratedEntries counts entries demoted to the cold tier.
func RecordMigratedEntries(n int) {
	if globalManager.enabled && n > 0 {
		globalManager.migratedEntries.Add(float64(n))
	}
}

// RecordRetentionSweep counts one retention enforcement run.
func RecordRetentionSweep() {
	if globalManager.enabled {
		globalManager.retentionSweeps.Inc()
	}
}

// UpdateTrackedGames sets the games-seen gauge.
func UpdateTrackedGames(n int) {
	if globalManager.enabled {
		globalManager.trackedGames.Set(float64(n))
	}
}

// ObserveHotOp records the elapsed time of a hot tier operation.
// Call as: defer metrics.ObserveHotOp("save", time.Now()).
func ObserveHotOp(op string, start time.Time) {
	if globalManager.enabled {
		globalManager.hotOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

// ObserveColdOp records the elapsed time of a cold tier operation.
func ObserveColdOp(op string, start time.Time) {
	if globalManager.enabled {
		globalManager.coldOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

// RecordHTTPRequest counts one request by endpoint, method and status.
func RecordHTTPRequest(endpoint, method, status string) {
	if globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
	}
}

// RecordHTTPRequestDuration records request latency in seconds.
func RecordHTTPRequestDuration(endpoint, method string, seconds float64) {
	if globalManager.enabled {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method).Observe(seconds)
	}
}
