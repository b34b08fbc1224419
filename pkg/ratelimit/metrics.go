package ratelimit

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vnykmshr/flowgate/pkg/metrics"
)

// MetricsLimiter wraps a Limiter with Prometheus metrics collection.
type MetricsLimiter struct {
	limiter  Limiter
	name     string
	strategy string
	registry *metrics.Registry
	enabled  bool
}

// NewWithMetrics creates a new token bucket limiter with metrics enabled.
func NewWithMetrics(maxCalls int, window time.Duration, name string) (Limiter, error) {
	// Use a separate registry for each metrics-enabled component to avoid conflicts
	registry := prometheus.NewRegistry()
	config := metrics.Config{
		Enabled:  true,
		Registry: registry,
	}

	return NewWithConfigAndMetrics(Config{MaxCalls: maxCalls, Window: window}, name, config)
}

// NewWithConfigAndMetrics creates a new limiter with custom config and metrics.
func NewWithConfigAndMetrics(config Config, name string, metricsConfig metrics.Config) (Limiter, error) {
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

	return &MetricsLimiter{
		limiter:  base,
		name:     name,
		strategy: base.Strategy().String(),
		registry: registry,
		enabled:  true,
	}, nil
}

// Allow reports whether a call may proceed now, recording the outcome.
func (ml *MetricsLimiter) Allow() bool {
	allowed := ml.limiter.Allow()

	if ml.enabled {
		ml.registry.RateLimitRequests.WithLabelValues(ml.strategy, ml.name).Inc()
		if allowed {
			ml.registry.RateLimitAllowed.WithLabelValues(ml.strategy, ml.name).Inc()
		} else {
			ml.registry.RateLimitDenied.WithLabelValues(ml.strategy, ml.name).Inc()
		}
		ml.registry.RateLimitRemaining.WithLabelValues(ml.strategy, ml.name).Set(float64(ml.limiter.Remaining()))
	}

	return allowed
}

// Wait blocks until a call may proceed, recording the wait duration.
func (ml *MetricsLimiter) Wait(ctx context.Context) error {
	start := time.Now()

	if ml.enabled {
		ml.registry.RateLimitRequests.WithLabelValues(ml.strategy, ml.name).Inc()
	}

	err := ml.limiter.Wait(ctx)

	if ml.enabled {
		ml.registry.RateLimitWaitTime.WithLabelValues(ml.strategy, ml.name).Observe(time.Since(start).Seconds())

		if err == nil {
			ml.registry.RateLimitAllowed.WithLabelValues(ml.strategy, ml.name).Inc()
		} else {
			ml.registry.RateLimitDenied.WithLabelValues(ml.strategy, ml.name).Inc()
		}
		ml.registry.RateLimitRemaining.WithLabelValues(ml.strategy, ml.name).Set(float64(ml.limiter.Remaining()))
	}

	return err
}

// Execute waits for admission and runs fn.
func (ml *MetricsLimiter) Execute(ctx context.Context, fn func() error) error {
	if err := ml.Wait(ctx); err != nil {
		return err
	}
	return fn()
}

// Remaining returns the number of calls currently admissible.
func (ml *MetricsLimiter) Remaining() int {
	remaining := ml.limiter.Remaining()
	if ml.enabled {
		ml.registry.RateLimitRemaining.WithLabelValues(ml.strategy, ml.name).Set(float64(remaining))
	}
	return remaining
}

// Reset restores the limiter to its freshly constructed state.
func (ml *MetricsLimiter) Reset() {
	ml.limiter.Reset()
}

// Close releases the underlying limiter's resources.
func (ml *MetricsLimiter) Close() error {
	return ml.limiter.Close()
}

// Strategy returns the underlying limiter's strategy.
func (ml *MetricsLimiter) Strategy() Strategy {
	return ml.limiter.Strategy()
}

// EnableMetrics enables metrics collection.
func (ml *MetricsLimiter) EnableMetrics(config metrics.Config) error {
	ml.enabled = config.Enabled
	if config.Registry != nil {
		ml.registry = metrics.NewRegistry(config.Registry)
	}
	return nil
}

// DisableMetrics disables metrics collection.
func (ml *MetricsLimiter) DisableMetrics() {
	ml.enabled = false
}

// MetricsEnabled returns true if metrics are currently enabled.
func (ml *MetricsLimiter) MetricsEnabled() bool {
	return ml.enabled
}
