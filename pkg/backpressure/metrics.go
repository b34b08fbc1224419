package backpressure

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	gferrors "github.com/vnykmshr/flowgate/pkg/common/errors"
	"github.com/vnykmshr/flowgate/pkg/metrics"
)

// MetricsController wraps a Controller with Prometheus metrics collection.
type MetricsController struct {
	controller Controller
	name       string
	strategy   string
	registry   *metrics.Registry
	enabled    bool
}

// NewWithMetrics creates a new Drop-strategy controller with metrics enabled.
func NewWithMetrics(maxConcurrent, bufferSize int, name string) (Controller, error) {
	// Use a separate registry for each metrics-enabled component to avoid conflicts
	registry := prometheus.NewRegistry()
	config := metrics.Config{
		Enabled:  true,
		Registry: registry,
	}

	return NewWithConfigAndMetrics(Config{
		MaxConcurrent: maxConcurrent,
		BufferSize:    bufferSize,
	}, name, config)
}

// NewWithConfigAndMetrics creates a new controller with custom config and metrics.
func NewWithConfigAndMetrics(config Config, name string, metricsConfig metrics.Config) (Controller, error) {
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

	return &MetricsController{
		controller: base,
		name:       name,
		strategy:   config.Strategy.String(),
		registry:   registry,
		enabled:    true,
	}, nil
}

// Execute submits fn through the underlying controller, recording the
// submission and its outcome.
func (mc *MetricsController) Execute(ctx context.Context, fn func() error) error {
	if !mc.enabled {
		return mc.controller.Execute(ctx, fn)
	}

	mc.registry.BackpressureSubmitted.WithLabelValues(mc.strategy, mc.name).Inc()

	err := mc.controller.Execute(ctx, func() error {
		mc.registry.BackpressureActive.WithLabelValues(mc.name).Inc()
		defer mc.registry.BackpressureActive.WithLabelValues(mc.name).Dec()
		return fn()
	})

	switch {
	case errors.Is(err, gferrors.ErrCapacityExceeded):
		mc.registry.BackpressureRejected.WithLabelValues(mc.strategy, mc.name).Inc()
	case errors.Is(err, gferrors.ErrCancelled):
		mc.registry.BackpressureDropped.WithLabelValues(mc.strategy, mc.name).Inc()
	}
	mc.registry.BackpressureBuffered.WithLabelValues(mc.name).Set(float64(mc.controller.BufferSize()))

	return err
}

// BufferSize returns the current number of queued submissions.
func (mc *MetricsController) BufferSize() int { return mc.controller.BufferSize() }

// ActiveExecutions returns the number of executions in flight.
func (mc *MetricsController) ActiveExecutions() int { return mc.controller.ActiveExecutions() }

// IsUnderPressure reports whether every execution slot is taken.
func (mc *MetricsController) IsUnderPressure() bool { return mc.controller.IsUnderPressure() }

// Strategy returns the underlying controller's strategy.
func (mc *MetricsController) Strategy() Strategy { return mc.controller.Strategy() }

// EnableMetrics enables metrics collection.
func (mc *MetricsController) EnableMetrics(config metrics.Config) error {
	mc.enabled = config.Enabled
	if config.Registry != nil {
		mc.registry = metrics.NewRegistry(config.Registry)
	}
	return nil
}

// DisableMetrics disables metrics collection.
func (mc *MetricsController) DisableMetrics() {
	mc.enabled = false
}

// MetricsEnabled returns true if metrics are currently enabled.
func (mc *MetricsController) MetricsEnabled() bool {
	return mc.enabled
}
