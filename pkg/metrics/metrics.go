// Package metrics provides Prometheus instrumentation for flowgate components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for flowgate components.
type Registry struct {
	// Rate Limiting Metrics
	RateLimitRequests  *prometheus.CounterVec
	RateLimitAllowed   *prometheus.CounterVec
	RateLimitDenied    *prometheus.CounterVec
	RateLimitWaitTime  *prometheus.HistogramVec
	RateLimitRemaining *prometheus.GaugeVec

	// Backpressure Metrics
	BackpressureSubmitted *prometheus.CounterVec
	BackpressureRejected  *prometheus.CounterVec
	BackpressureDropped   *prometheus.CounterVec
	BackpressureBuffered  *prometheus.GaugeVec
	BackpressureActive    *prometheus.GaugeVec

	// Bulkhead Metrics
	BulkheadExecutions *prometheus.CounterVec
	BulkheadRejections *prometheus.CounterVec
	BulkheadWaitTime   *prometheus.HistogramVec
	BulkheadActive     *prometheus.GaugeVec

	// Priority Queue Metrics
	QueueSubmitted     *prometheus.CounterVec
	QueueCompleted     *prometheus.CounterVec
	QueueDropped       *prometheus.CounterVec
	QueueBoosted       *prometheus.CounterVec
	QueueWaitTime      *prometheus.HistogramVec
	QueueExecutionTime *prometheus.HistogramVec
	QueueDepth         *prometheus.GaugeVec
	QueueActiveWorkers *prometheus.GaugeVec

	// Synchronization Primitive Metrics
	SyncAcquisitions *prometheus.CounterVec
	SyncContentions  *prometheus.CounterVec
	SyncWaiters      *prometheus.GaugeVec
}

// DefaultRegistry is the default metrics registry used by flowgate components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		// Rate Limiting Metrics
		RateLimitRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flowgate",
				Subsystem: "ratelimit",
				Name:      "requests_total",
				Help:      "Total number of rate limit requests",
			},
			[]string{"strategy", "limiter_name"},
		),

		RateLimitAllowed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flowgate",
				Subsystem: "ratelimit",
				Name:      "allowed_total",
				Help:      "Total number of allowed requests",
			},
			[]string{"strategy", "limiter_name"},
		),

		RateLimitDenied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flowgate",
				Subsystem: "ratelimit",
				Name:      "denied_total",
				Help:      "Total number of denied requests",
			},
			[]string{"strategy", "limiter_name"},
		),

		RateLimitWaitTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "flowgate",
				Subsystem: "ratelimit",
				Name:      "wait_duration_seconds",
				Help:      "Time spent waiting for rate limit approval",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"strategy", "limiter_name"},
		),

		RateLimitRemaining: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "flowgate",
				Subsystem: "ratelimit",
				Name:      "remaining",
				Help:      "Number of calls remaining in the current window",
			},
			[]string{"strategy", "limiter_name"},
		),

		// Backpressure Metrics
		BackpressureSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flowgate",
				Subsystem: "backpressure",
				Name:      "submitted_total",
				Help:      "Total number of submissions to backpressure controllers",
			},
			[]string{"strategy", "controller_name"},
		),

		BackpressureRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flowgate",
				Subsystem: "backpressure",
				Name:      "rejected_total",
				Help:      "Total number of submissions rejected under pressure",
			},
			[]string{"strategy", "controller_name"},
		),

		BackpressureDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flowgate",
				Subsystem: "backpressure",
				Name:      "dropped_total",
				Help:      "Total number of buffered items evicted",
			},
			[]string{"strategy", "controller_name"},
		),

		BackpressureBuffered: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "flowgate",
				Subsystem: "backpressure",
				Name:      "buffered",
				Help:      "Number of submissions currently buffered",
			},
			[]string{"controller_name"},
		),

		BackpressureActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "flowgate",
				Subsystem: "backpressure",
				Name:      "active",
				Help:      "Number of submissions currently executing",
			},
			[]string{"controller_name"},
		),

		// Bulkhead Metrics
		BulkheadExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flowgate",
				Subsystem: "bulkhead",
				Name:      "executions_total",
				Help:      "Total number of calls executed through bulkhead pools",
			},
			[]string{"bulkhead_name"},
		),

		BulkheadRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flowgate",
				Subsystem: "bulkhead",
				Name:      "rejections_total",
				Help:      "Total number of calls rejected by saturated pools",
			},
			[]string{"bulkhead_name"},
		),

		BulkheadWaitTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "flowgate",
				Subsystem: "bulkhead",
				Name:      "wait_duration_seconds",
				Help:      "Time spent waiting for a pool slot",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"bulkhead_name"},
		),

		BulkheadActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "flowgate",
				Subsystem: "bulkhead",
				Name:      "active",
				Help:      "Number of calls currently holding a pool slot",
			},
			[]string{"bulkhead_name"},
		),

		// Priority Queue Metrics
		QueueSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flowgate",
				Subsystem: "priorityqueue",
				Name:      "submitted_total",
				Help:      "Total number of items submitted",
			},
			[]string{"executor_name"},
		),

		QueueCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flowgate",
				Subsystem: "priorityqueue",
				Name:      "completed_total",
				Help:      "Total number of items executed to completion",
			},
			[]string{"executor_name"},
		),

		QueueDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flowgate",
				Subsystem: "priorityqueue",
				Name:      "dropped_total",
				Help:      "Total number of items dropped by overflow policy",
			},
			[]string{"executor_name"},
		),

		QueueBoosted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flowgate",
				Subsystem: "priorityqueue",
				Name:      "boosted_total",
				Help:      "Total number of starvation priority boosts applied",
			},
			[]string{"executor_name"},
		),

		QueueWaitTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "flowgate",
				Subsystem: "priorityqueue",
				Name:      "wait_duration_seconds",
				Help:      "Time items spent queued before execution",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"executor_name"},
		),

		QueueExecutionTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "flowgate",
				Subsystem: "priorityqueue",
				Name:      "execution_duration_seconds",
				Help:      "Time spent executing items",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"executor_name"},
		),

		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "flowgate",
				Subsystem: "priorityqueue",
				Name:      "depth",
				Help:      "Number of items currently queued",
			},
			[]string{"executor_name"},
		),

		QueueActiveWorkers: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "flowgate",
				Subsystem: "priorityqueue",
				Name:      "active_workers",
				Help:      "Number of items currently executing",
			},
			[]string{"executor_name"},
		),

		// Synchronization Primitive Metrics
		SyncAcquisitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flowgate",
				Subsystem: "sync",
				Name:      "acquisitions_total",
				Help:      "Total number of successful acquisitions",
			},
			[]string{"primitive", "name"},
		),

		SyncContentions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flowgate",
				Subsystem: "sync",
				Name:      "contentions_total",
				Help:      "Total number of acquisitions that had to wait",
			},
			[]string{"primitive", "name"},
		),

		SyncWaiters: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "flowgate",
				Subsystem: "sync",
				Name:      "waiters",
				Help:      "Number of callers currently waiting",
			},
			[]string{"primitive", "name"},
		),
	}
}
