// Package observability holds the Prometheus metrics for point logging and
// the sync engine. Metrics are registered on the default registry and served
// by the API server on /metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Point Metrics ──────────────────────────────────────────────────────────

// PointsLogged tracks logged points by outcome.
var PointsLogged = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rally",
	Subsystem: "points",
	Name:      "logged_total",
	Help:      "Total points logged, by outcome.",
}, []string{"outcome"})

// PointsUndone tracks undo operations that removed a point.
var PointsUndone = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "rally",
	Subsystem: "points",
	Name:      "undone_total",
	Help:      "Total points removed by undo.",
})

// ─── Point Log Metrics ──────────────────────────────────────────────────────

// PointLogDecodeDrops tracks malformed records skipped while loading.
var PointLogDecodeDrops = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "rally",
	Subsystem: "pointlog",
	Name:      "decode_drops_total",
	Help:      "Malformed point records dropped while loading the local log.",
})

// PointLogIOErrors tracks local read/write failures by operation.
var PointLogIOErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rally",
	Subsystem: "pointlog",
	Name:      "io_errors_total",
	Help:      "Local point log I/O failures, by operation.",
}, []string{"op"})

// ─── Sync Metrics ───────────────────────────────────────────────────────────

// SyncQueueDepth tracks jobs waiting for the remote worker.
var SyncQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "rally",
	Subsystem: "sync",
	Name:      "queue_depth",
	Help:      "Remote jobs waiting in the sync queue.",
})

// SyncJobsDropped tracks jobs discarded because the queue was full.
var SyncJobsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rally",
	Subsystem: "sync",
	Name:      "jobs_dropped_total",
	Help:      "Remote jobs dropped because the sync queue was full, by op.",
}, []string{"op"})

// SyncRemoteOps tracks remote calls by op and result.
var SyncRemoteOps = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rally",
	Subsystem: "sync",
	Name:      "remote_ops_total",
	Help:      "Remote store calls, by op and result (ok|error).",
}, []string{"op", "result"})

// RemoteDecodeDrops tracks remote rows skipped because they did not decode.
var RemoteDecodeDrops = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "rally",
	Subsystem: "sync",
	Name:      "remote_decode_drops_total",
	Help:      "Malformed remote point rows dropped while fetching a snapshot.",
})

// SyncMergeSize tracks the number of records produced by each merge.
var SyncMergeSize = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "rally",
	Subsystem: "sync",
	Name:      "merge_records",
	Help:      "Records in the merged point log after a remote refresh.",
	Buckets:   []float64{0, 10, 25, 50, 100, 250, 500, 1000},
})

// ResultLabel maps an error to the result label used by SyncRemoteOps.
func ResultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
