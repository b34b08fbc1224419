package bulkhead

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vnykmshr/flowgate/pkg/metrics"
)

// MetricsBulkhead wraps a Bulkhead with Prometheus metrics collection.
type MetricsBulkhead struct {
	bulkhead Bulkhead
	name     string
	registry *metrics.Registry
	enabled  bool
}

// NewWithMetrics creates a new bulkhead with metrics enabled.
func NewWithMetrics(poolSize int, name string) (Bulkhead, error) {
	// Use a separate registry for each metrics-enabled component to avoid conflicts
	registry := prometheus.NewRegistry()
	config := metrics.Config{
		Enabled:  true,
		Registry: registry,
	}

	return NewWithConfigAndMetrics(Config{PoolSize: poolSize}, name, config)
}

// NewWithConfigAndMetrics creates a new bulkhead with custom config and metrics.
func NewWithConfigAndMetrics(config Config, name string, metricsConfig metrics.Config) (Bulkhead, error) {
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

	return &MetricsBulkhead{
		bulkhead: base,
		name:     name,
		registry: registry,
		enabled:  true,
	}, nil
}

// Execute runs task through the underlying bulkhead, recording wait time
// and the execution or rejection outcome.
func (mb *MetricsBulkhead) Execute(ctx context.Context, task func() error) error {
	if !mb.enabled {
		return mb.bulkhead.Execute(ctx, task)
	}

	start := time.Now()
	ran := false
	err := mb.bulkhead.Execute(ctx, func() error {
		ran = true
		mb.registry.BulkheadWaitTime.WithLabelValues(mb.name).Observe(time.Since(start).Seconds())
		mb.registry.BulkheadActive.WithLabelValues(mb.name).Inc()
		defer mb.registry.BulkheadActive.WithLabelValues(mb.name).Dec()
		return task()
	})

	if ran {
		mb.registry.BulkheadExecutions.WithLabelValues(mb.name).Inc()
	} else {
		mb.registry.BulkheadRejections.WithLabelValues(mb.name).Inc()
	}
	return err
}

// TryExecute runs task if a slot is free, recording the outcome.
func (mb *MetricsBulkhead) TryExecute(task func() error) error {
	ran := false
	err := mb.bulkhead.TryExecute(func() error {
		ran = true
		return task()
	})
	if mb.enabled {
		if ran {
			mb.registry.BulkheadExecutions.WithLabelValues(mb.name).Inc()
		} else {
			mb.registry.BulkheadRejections.WithLabelValues(mb.name).Inc()
		}
	}
	return err
}

// PoolSize returns the number of pools.
func (mb *MetricsBulkhead) PoolSize() int { return mb.bulkhead.PoolSize() }

// AvailablePools returns the number of pools with a free slot.
func (mb *MetricsBulkhead) AvailablePools() int { return mb.bulkhead.AvailablePools() }

// PoolAvailable reports whether pool i has a free slot.
func (mb *MetricsBulkhead) PoolAvailable(i int) bool { return mb.bulkhead.PoolAvailable(i) }

// EnableMetrics enables metrics collection.
func (mb *MetricsBulkhead) EnableMetrics(config metrics.Config) error {
	mb.enabled = config.Enabled
	if config.Registry != nil {
		mb.registry = metrics.NewRegistry(config.Registry)
	}
	return nil
}

// DisableMetrics disables metrics collection.
func (mb *MetricsBulkhead) DisableMetrics() {
	mb.enabled = false
}

// MetricsEnabled returns true if metrics are currently enabled.
func (mb *MetricsBulkhead) MetricsEnabled() bool {
	return mb.enabled
}
