package ratelimit

import (
	"context"
	"sync"
	"time"

	gferrors "github.com/vnykmshr/flowgate/pkg/common/errors"
)

// windowLimiter counts admissions against a trailing window of
// timestamps. With a zero guard it is the fixed-window strategy; the
// sliding-window strategy adds a small guard to every recomputed wait so
// retries never race the expiry boundary.
type windowLimiter struct {
	mu     sync.Mutex
	cfg    Config
	guard  time.Duration
	stamps []time.Time
	closed bool
}

func newWindowLimiter(cfg Config, guard time.Duration) *windowLimiter {
	return &windowLimiter{
		cfg:    cfg,
		guard:  guard,
		stamps: make([]time.Time, 0, cfg.MaxCalls),
	}
}

// trimLocked drops timestamps that have aged out of the trailing window.
func (wl *windowLimiter) trimLocked(now time.Time) {
	cutoff := now.Add(-wl.cfg.Window)
	i := 0
	for i < len(wl.stamps) && !wl.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		wl.stamps = append(wl.stamps[:0], wl.stamps[i:]...)
	}
}

func (wl *windowLimiter) Allow() bool {
	wl.mu.Lock()
	defer wl.mu.Unlock()

	now := wl.cfg.Clock.Now()
	wl.trimLocked(now)
	if len(wl.stamps) < wl.cfg.MaxCalls {
		wl.stamps = append(wl.stamps, now)
		return true
	}
	return false
}

func (wl *windowLimiter) Wait(ctx context.Context) error {
	// The wait is recomputed each pass rather than derived from the
	// first observation: other callers may claim the freed slot first.
	for {
		wl.mu.Lock()
		if wl.closed {
			wl.mu.Unlock()
			return gferrors.ErrClosed
		}
		now := wl.cfg.Clock.Now()
		wl.trimLocked(now)
		if len(wl.stamps) < wl.cfg.MaxCalls {
			wl.stamps = append(wl.stamps, now)
			wl.mu.Unlock()
			return nil
		}
		oldest := wl.stamps[len(wl.stamps)-wl.cfg.MaxCalls]
		wait := oldest.Add(wl.cfg.Window).Sub(now) + wl.guard
		wl.mu.Unlock()

		if err := sleepUntil(ctx, wait); err != nil {
			return err
		}
	}
}

func (wl *windowLimiter) Execute(ctx context.Context, fn func() error) error {
	if err := wl.Wait(ctx); err != nil {
		return err
	}
	return fn()
}

func (wl *windowLimiter) Remaining() int {
	wl.mu.Lock()
	defer wl.mu.Unlock()

	wl.trimLocked(wl.cfg.Clock.Now())
	return wl.cfg.MaxCalls - len(wl.stamps)
}

func (wl *windowLimiter) Reset() {
	wl.mu.Lock()
	defer wl.mu.Unlock()
	wl.stamps = wl.stamps[:0]
}

func (wl *windowLimiter) Close() error {
	wl.mu.Lock()
	defer wl.mu.Unlock()
	wl.closed = true
	return nil
}

func (wl *windowLimiter) Strategy() Strategy {
	if wl.guard > 0 {
		return SlidingWindow
	}
	return FixedWindow
}
