// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HttpRequestsTotal counts handled HTTP requests.
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of http requests handled by the service.",
		},
		[]string{"path", "method", "code"},
	)

	// BackgroundTasksTotal counts finished deferred tasks by outcome (success/failed).
	BackgroundTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "background_tasks_total",
			Help: "Total number of deferred tasks executed after a response.",
		},
		[]string{"task_name", "status"},
	)

	// BackgroundTaskDuration observes how long deferred tasks run.
	BackgroundTaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "background_task_duration_seconds",
			Help:    "Run time of deferred tasks.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"task_name"},
	)

	// BackgroundBatchesDropped counts request batches rejected because the queue was full.
	BackgroundBatchesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "background_batches_dropped_total",
			Help: "Deferred task batches dropped because the queue was full or stopped.",
		},
	)

	// BackgroundQueueDepth reports batches waiting for a worker.
	BackgroundQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "background_queue_depth",
			Help: "Number of deferred task batches waiting for a worker.",
		},
	)

	// ExecutionRecordsPruned counts execution records removed by the retention job.
	ExecutionRecordsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "execution_records_pruned_total",
			Help: "Execution records deleted by the history pruner.",
		},
	)

	// RateLimitDecisions counts rate limiter outcomes (allowed/denied).
	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_decisions_total",
			Help: "Rate limiter decisions by outcome.",
		},
		[]string{"outcome"},
	)
)
