package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/vnykmshr/flowgate/pkg/common/clock"
	gferrors "github.com/vnykmshr/flowgate/pkg/common/errors"
	"github.com/vnykmshr/flowgate/pkg/common/validation"
)

// Strategy selects the admission behavior of a Limiter.
type Strategy int

const (
	// TokenBucket refills MaxCalls tokens at each window boundary and
	// allows bursts up to the full allowance.
	TokenBucket Strategy = iota

	// LeakyBucket admits exactly one call per Window/MaxCalls interval,
	// smoothing bursts into a uniform outflow.
	LeakyBucket

	// FixedWindow counts calls in a trailing window and blocks or
	// rejects at MaxCalls until the oldest call ages out.
	FixedWindow

	// SlidingWindow is FixedWindow with a boundary guard on recomputed
	// wait times.
	SlidingWindow
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case TokenBucket:
		return "token_bucket"
	case LeakyBucket:
		return "leaky_bucket"
	case FixedWindow:
		return "fixed_window"
	case SlidingWindow:
		return "sliding_window"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Limiter gates calls at a configured rate. Implementations are safe for
// concurrent use.
type Limiter interface {
	// Allow reports whether a call may proceed now, consuming one
	// admission if so. It never blocks.
	Allow() bool

	// Wait blocks until a call may proceed or ctx ends. A deadline
	// expiring during the wait returns ErrTimeout; waiting on a closed
	// limiter returns ErrClosed.
	Wait(ctx context.Context) error

	// Execute waits for admission and then runs fn, returning fn's
	// error. fn is not run if admission fails.
	Execute(ctx context.Context, fn func() error) error

	// Remaining returns the number of calls currently admissible
	// without waiting.
	Remaining() int

	// Reset restores the limiter to its freshly constructed state.
	Reset()

	// Close releases background resources. Waiting callers are
	// released with ErrClosed. Closing is idempotent.
	Close() error

	// Strategy returns the limiter's admission strategy.
	Strategy() Strategy
}

// Config holds configuration options for creating a Limiter. A Config is
// immutable once the limiter is constructed.
type Config struct {
	// MaxCalls is the admission allowance per Window. Must be positive.
	MaxCalls int

	// Window is the period over which MaxCalls applies. Must be
	// positive.
	Window time.Duration

	// Strategy selects the admission behavior. Defaults to TokenBucket.
	Strategy Strategy

	// Clock provides the time source. Defaults to the system clock.
	Clock clock.Clock
}

// New creates a token bucket limiter allowing maxCalls per window.
func New(maxCalls int, window time.Duration) (Limiter, error) {
	return NewWithConfig(Config{MaxCalls: maxCalls, Window: window})
}

// NewWithConfig creates a limiter from the given configuration.
func NewWithConfig(cfg Config) (Limiter, error) {
	if err := validation.ValidatePositive("ratelimit", "maxCalls", cfg.MaxCalls); err != nil {
		return nil, err
	}
	if err := validation.ValidatePositiveDuration("ratelimit", "window", cfg.Window); err != nil {
		return nil, err
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.SystemClock{}
	}

	switch cfg.Strategy {
	case TokenBucket:
		return newTokenBucket(cfg), nil
	case LeakyBucket:
		return newLeakyBucket(cfg), nil
	case FixedWindow:
		return newWindowLimiter(cfg, 0), nil
	case SlidingWindow:
		return newWindowLimiter(cfg, boundaryGuard), nil
	default:
		return nil, gferrors.NewValidationError("ratelimit", "strategy", cfg.Strategy,
			"unknown strategy").WithHint("use TokenBucket, LeakyBucket, FixedWindow, or SlidingWindow")
	}
}

// boundaryGuard pads sliding-window wait times so a retrying caller never
// recomputes at the exact instant the oldest timestamp expires, which
// could admit two callers for one freed slot.
const boundaryGuard = time.Millisecond
