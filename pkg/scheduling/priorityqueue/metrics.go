package priorityqueue

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	gferrors "github.com/vnykmshr/flowgate/pkg/common/errors"
	"github.com/vnykmshr/flowgate/pkg/metrics"
)

// MetricsExecutor wraps an Executor with Prometheus metrics collection.
type MetricsExecutor struct {
	executor Executor
	name     string
	registry *metrics.Registry
	enabled  bool
	results  chan Result
}

// NewWithMetrics creates a new executor with metrics enabled.
func NewWithMetrics(maxConcurrent, queueSize int, name string) (Executor, error) {
	// Use a separate registry for each metrics-enabled component to avoid conflicts
	registry := prometheus.NewRegistry()
	config := metrics.Config{
		Enabled:  true,
		Registry: registry,
	}

	return NewWithConfigAndMetrics(Config{
		MaxConcurrent: maxConcurrent,
		QueueSize:     queueSize,
	}, name, config)
}

// NewWithConfigAndMetrics creates a new executor with custom config and metrics.
func NewWithConfigAndMetrics(config Config, name string, metricsConfig metrics.Config) (Executor, error) {
	base, err := NewWithConfig(config)
	if err != nil {
		return nil, err
	}

	if !metricsConfig.Enabled {
		return base, nil
	}

	registry := metrics.DefaultRegistry
	if metricsConfig.Registry != nil {
		registry = metrics.NewRegistry(metricsConfig.Registry)
	}

	me := &MetricsExecutor{
		executor: base,
		name:     name,
		registry: registry,
		enabled:  true,
		results:  make(chan Result, config.QueueSize+config.MaxConcurrent),
	}
	go me.forward()
	return me, nil
}

// forward relays results from the wrapped executor, recording completion
// and timing metrics as each result passes through.
func (me *MetricsExecutor) forward() {
	for r := range me.executor.Results() {
		if me.enabled {
			switch {
			case errors.Is(r.Error, gferrors.ErrCancelled):
				me.registry.QueueDropped.WithLabelValues(me.name).Inc()
			default:
				me.registry.QueueCompleted.WithLabelValues(me.name).Inc()
				me.registry.QueueExecutionTime.WithLabelValues(me.name).Observe(r.Duration.Seconds())
			}
			if r.Boosted {
				me.registry.QueueBoosted.WithLabelValues(me.name).Inc()
			}
			me.registry.QueueWaitTime.WithLabelValues(me.name).Observe(r.Waited.Seconds())
		}
		me.results <- r
	}
	close(me.results)
}

// Submit queues task through the underlying executor, recording the
// submission and queue depth.
func (me *MetricsExecutor) Submit(ctx context.Context, task Task) (uuid.UUID, error) {
	id, err := me.executor.Submit(ctx, task)

	if me.enabled {
		me.registry.QueueSubmitted.WithLabelValues(me.name).Inc()
		me.registry.QueueDepth.WithLabelValues(me.name).Set(float64(me.executor.QueueLength()))
		me.registry.QueueActiveWorkers.WithLabelValues(me.name).Set(float64(me.executor.ActiveCount()))
	}

	return id, err
}

// Results returns the instrumented results channel.
func (me *MetricsExecutor) Results() <-chan Result {
	return me.results
}

// Shutdown shuts down the underlying executor.
func (me *MetricsExecutor) Shutdown() <-chan struct{} {
	return me.executor.Shutdown()
}

// QueueLength returns the number of tasks currently queued.
func (me *MetricsExecutor) QueueLength() int { return me.executor.QueueLength() }

// ActiveCount returns the number of tasks currently executing.
func (me *MetricsExecutor) ActiveCount() int { return me.executor.ActiveCount() }

// EnableMetrics enables metrics collection.
func (me *MetricsExecutor) EnableMetrics(config metrics.Config) error {
	me.enabled = config.Enabled
	if config.Registry != nil {
		me.registry = metrics.NewRegistry(config.Registry)
	}
	return nil
}

// DisableMetrics disables metrics collection.
func (me *MetricsExecutor) DisableMetrics() {
	me.enabled = false
}

// MetricsEnabled returns true if metrics are currently enabled.
func (me *MetricsExecutor) MetricsEnabled() bool {
	return me.enabled
}
