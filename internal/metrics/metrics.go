// Package metrics provides Prometheus metrics for treekv
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for treekv
type Metrics struct {
	// Tree operation metrics
	TreeOperationsTotal   *prometheus.CounterVec
	TreeOperationDuration *prometheus.HistogramVec
	TreeFlushesTotal      *prometheus.CounterVec

	// Transaction metrics
	TxnAttemptsTotal  prometheus.Counter
	TxnConflictsTotal prometheus.Counter
	TxnAbortsTotal    prometheus.Counter
	TxnCommitsTotal   prometheus.Counter
	TxnDuration       prometheus.Histogram

	// Engine metrics
	EnginePagesFlushed prometheus.Gauge
	EngineTreesOpen    prometheus.Gauge

	// Server metrics
	ServerUptimeSeconds prometheus.Gauge
	ServerStartTime     time.Time
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	m := &Metrics{
		ServerStartTime: time.Now(),
	}

	m.TreeOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treekv_tree_operations_total",
			Help: "Total number of tree operations by key-space and status",
		},
		[]string{"keyspace", "operation", "status"},
	)

	m.TreeOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "treekv_tree_operation_duration_seconds",
			Help:    "Duration of tree operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"keyspace", "operation"},
	)

	m.TreeFlushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treekv_tree_flushes_total",
			Help: "Total number of durability flushes issued",
		},
		[]string{"tree"},
	)

	m.TxnAttemptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "treekv_txn_attempts_total",
			Help: "Total number of transaction closure invocations, including retries",
		},
	)

	m.TxnConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "treekv_txn_conflicts_total",
			Help: "Total number of transaction conflict signals observed",
		},
	)

	m.TxnAbortsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "treekv_txn_aborts_total",
			Help: "Total number of transactions aborted with a caller error",
		},
	)

	m.TxnCommitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "treekv_txn_commits_total",
			Help: "Total number of transactions committed successfully",
		},
	)

	m.TxnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "treekv_txn_duration_seconds",
			Help:    "Duration of a full transaction call, including retries",
			Buckets: prometheus.DefBuckets,
		},
	)

	m.EnginePagesFlushed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "treekv_engine_pages_flushed",
			Help: "Number of pages flushed to disk across open trees",
		},
	)

	m.EngineTreesOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "treekv_engine_trees_open",
			Help: "Number of physical trees currently open",
		},
	)

	m.ServerUptimeSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "treekv_server_uptime_seconds",
			Help: "Process uptime in seconds",
		},
	)

	go m.updateUptime()

	return m
}

// updateUptime periodically updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.ServerUptimeSeconds.Set(time.Since(m.ServerStartTime).Seconds())
	}
}

// RecordTreeOperation records a tree operation with its status
func (m *Metrics) RecordTreeOperation(keyspace, operation, status string, duration time.Duration) {
	m.TreeOperationsTotal.WithLabelValues(keyspace, operation, status).Inc()
	m.TreeOperationDuration.WithLabelValues(keyspace, operation).Observe(duration.Seconds())
}

// RecordFlush records a durability flush on a named tree
func (m *Metrics) RecordFlush(tree string) {
	m.TreeFlushesTotal.WithLabelValues(tree).Inc()
}

// RecordTxn records the outcome of one txn() call, including internal retries
func (m *Metrics) RecordTxn(attempts int, conflicts int, committed bool, duration time.Duration) {
	m.TxnAttemptsTotal.Add(float64(attempts))
	m.TxnConflictsTotal.Add(float64(conflicts))
	if committed {
		m.TxnCommitsTotal.Inc()
	} else {
		m.TxnAbortsTotal.Inc()
	}
	m.TxnDuration.Observe(duration.Seconds())
}

// UpdateEngineStats updates gauge metrics describing the engine's current state
func (m *Metrics) UpdateEngineStats(pagesFlushed int64, treesOpen int) {
	m.EnginePagesFlushed.Set(float64(pagesFlushed))
	m.EngineTreesOpen.Set(float64(treesOpen))
}
