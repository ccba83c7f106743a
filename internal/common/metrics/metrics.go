// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evaluator_worker_runs_total",
			Help: "Worker runs by kind and terminal status",
		},
		[]string{"worker_kind", "status"},
	)

	WorkerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "evaluator_worker_duration_seconds",
			Help:    "Duration of a worker run in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"worker_kind"},
	)

	OutputWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evaluator_output_write_failures_total",
			Help: "Worker output rows that could not be persisted",
		},
		[]string{"worker_kind"},
	)

	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evaluator_pipeline_runs_total",
			Help: "Pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	PipelinesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "evaluator_pipelines_active",
			Help: "Pipelines currently between fan-out and aggregation",
		},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "evaluator_queue_depth",
			Help: "Sessions waiting for a dispatcher",
		},
	)

	SoftTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "evaluator_soft_timeouts_total",
			Help: "Pipelines that crossed the soft time limit",
		},
	)

	NarrativeCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evaluator_narrative_calls_total",
			Help: "Narrative provider calls by provider and status",
		},
		[]string{"provider", "status"},
	)

	NarrativeFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evaluator_narrative_fallbacks_total",
			Help: "Insights produced by the deterministic fallback",
		},
		[]string{"worker_kind"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evaluator_events_published_total",
			Help: "Pipeline events by sink and status",
		},
		[]string{"sink", "status"},
	)
)
