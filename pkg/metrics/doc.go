// Package metrics provides Prometheus instrumentation for flowgate components.
//
// This package enables monitoring and observability for flowgate's rate
// limiting, backpressure, bulkhead, priority queue, and synchronization
// components through Prometheus metrics.
//
// # Quick Start
//
// Enable metrics by using the metrics-enabled constructors:
//
//	// Rate limiter with metrics
//	limiter, err := ratelimit.NewWithMetrics(100, time.Second, "api_requests")
//
//	// Bulkhead with metrics
//	bh, err := bulkhead.NewWithMetrics(10, "db_calls")
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":8080", nil))
//
// # Custom Registry
//
// Use a custom Prometheus registry for isolation:
//
//	registry := prometheus.NewRegistry()
//	config := metrics.Config{
//		Enabled:  true,
//		Registry: registry,
//	}
//
//	limiter, err := ratelimit.NewWithConfigAndMetrics(
//		ratelimit.Config{MaxCalls: 100, Window: time.Second},
//		"custom_limiter",
//		config,
//	)
//
// # Available Metrics
//
// ## Rate Limiting Metrics
//
//   - flowgate_ratelimit_requests_total: Total number of rate limit requests
//   - flowgate_ratelimit_allowed_total: Total number of allowed requests
//   - flowgate_ratelimit_denied_total: Total number of denied requests
//   - flowgate_ratelimit_wait_duration_seconds: Time spent waiting for approval
//   - flowgate_ratelimit_remaining: Calls remaining in the current window
//
// ## Backpressure Metrics
//
//   - flowgate_backpressure_submitted_total: Total submissions
//   - flowgate_backpressure_rejected_total: Submissions rejected under pressure
//   - flowgate_backpressure_dropped_total: Buffered items evicted
//   - flowgate_backpressure_buffered: Submissions currently buffered
//   - flowgate_backpressure_active: Submissions currently executing
//
// ## Bulkhead Metrics
//
//   - flowgate_bulkhead_executions_total: Calls executed through pools
//   - flowgate_bulkhead_rejections_total: Calls rejected by saturated pools
//   - flowgate_bulkhead_wait_duration_seconds: Time waiting for a pool slot
//   - flowgate_bulkhead_active: Calls currently holding a pool slot
//
// ## Priority Queue Metrics
//
//   - flowgate_priorityqueue_submitted_total: Items submitted
//   - flowgate_priorityqueue_completed_total: Items executed to completion
//   - flowgate_priorityqueue_dropped_total: Items dropped by overflow policy
//   - flowgate_priorityqueue_boosted_total: Starvation priority boosts applied
//   - flowgate_priorityqueue_wait_duration_seconds: Time queued before execution
//   - flowgate_priorityqueue_execution_duration_seconds: Execution time
//   - flowgate_priorityqueue_depth: Items currently queued
//   - flowgate_priorityqueue_active_workers: Items currently executing
//
// ## Synchronization Metrics
//
//   - flowgate_sync_acquisitions_total: Successful acquisitions
//   - flowgate_sync_contentions_total: Acquisitions that had to wait
//   - flowgate_sync_waiters: Callers currently waiting
//
// # Labels
//
// Metrics include relevant labels for filtering and aggregation:
//
//   - strategy: Limiter or controller strategy name
//   - limiter_name, controller_name, bulkhead_name, executor_name:
//     User-provided instance names
//   - primitive: Synchronization primitive kind (e.g., "semaphore", "mutex")
//
// # Runtime Control
//
// Components implementing the Instrumentable interface support runtime control:
//
//	limiter.DisableMetrics()            // Stop collecting metrics
//	limiter.EnableMetrics(config)       // Re-enable with new config
//	enabled := limiter.MetricsEnabled() // Check current state
//
// # Performance
//
// Metrics are updated only when operations occur; there are no background
// goroutines or timers, and updates are skipped entirely when disabled.
package metrics
