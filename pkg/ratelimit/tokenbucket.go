package ratelimit

import (
	"context"
	"sync"
	"time"

	gfcontext "github.com/vnykmshr/flowgate/pkg/common/context"
	gferrors "github.com/vnykmshr/flowgate/pkg/common/errors"
)

// tokenBucket refills its full allowance at window boundaries. Between
// boundaries it permits bursts up to MaxCalls.
type tokenBucket struct {
	mu         sync.Mutex
	cfg        Config
	tokens     int
	lastRefill time.Time
	closed     bool
}

func newTokenBucket(cfg Config) *tokenBucket {
	return &tokenBucket{
		cfg:        cfg,
		tokens:     cfg.MaxCalls,
		lastRefill: cfg.Clock.Now(),
	}
}

// refillLocked restores the allowance when at least one full window has
// elapsed. lastRefill advances by whole window multiples so boundaries
// never drift relative to construction time.
func (tb *tokenBucket) refillLocked(now time.Time) {
	elapsed := now.Sub(tb.lastRefill)
	if elapsed < tb.cfg.Window {
		return
	}
	tb.tokens = tb.cfg.MaxCalls
	tb.lastRefill = tb.lastRefill.Add(elapsed - elapsed%tb.cfg.Window)
}

func (tb *tokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked(tb.cfg.Clock.Now())
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

func (tb *tokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		if tb.closed {
			tb.mu.Unlock()
			return gferrors.ErrClosed
		}
		now := tb.cfg.Clock.Now()
		tb.refillLocked(now)
		if tb.tokens > 0 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}
		next := tb.lastRefill.Add(tb.cfg.Window)
		tb.mu.Unlock()

		if err := sleepUntil(ctx, next.Sub(now)); err != nil {
			return err
		}
	}
}

func (tb *tokenBucket) Execute(ctx context.Context, fn func() error) error {
	if err := tb.Wait(ctx); err != nil {
		return err
	}
	return fn()
}

func (tb *tokenBucket) Remaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked(tb.cfg.Clock.Now())
	return tb.tokens
}

func (tb *tokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.cfg.MaxCalls
	tb.lastRefill = tb.cfg.Clock.Now()
}

func (tb *tokenBucket) Close() error {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.closed = true
	return nil
}

func (tb *tokenBucket) Strategy() Strategy {
	return TokenBucket
}

// sleepUntil blocks for d or until ctx ends, mapping a deadline expiry to
// ErrTimeout. A non-positive d yields immediately so retry loops make
// progress even when the computed wait has already passed.
func sleepUntil(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return gfcontext.Cause(ctx)
		default:
			return nil
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return gfcontext.Cause(ctx)
	}
}
