// Package latch provides a single-use countdown latch: a counter that
// only decreases and releases all waiters permanently when it hits zero.
package latch

import (
	"context"
	"sync"

	gfcontext "github.com/vnykmshr/flowgate/pkg/common/context"
	gferrors "github.com/vnykmshr/flowgate/pkg/common/errors"
	"github.com/vnykmshr/flowgate/pkg/common/validation"
)

// Latch counts down from an initial value to zero. Once satisfied it
// stays satisfied; latches are not reusable.
type Latch interface {
	// CountDown decrements the counter. It returns ErrUnderflow if the
	// latch is already at zero. Reaching zero runs the OnComplete
	// action and then releases every waiter.
	CountDown() error

	// Await blocks until the latch is satisfied. It returns
	// (true, nil) when satisfied, immediately so if the count is already
	// zero, and (false, nil) when the context deadline expires first,
	// leaving the count untouched. A plain cancellation returns
	// (false, ctx.Err()).
	Await(ctx context.Context) (bool, error)

	// Count returns the remaining count.
	Count() int

	// IsComplete reports whether the latch has reached zero.
	IsComplete() bool
}

// Config holds configuration options for creating a Latch.
type Config struct {
	// Count is the number of CountDown calls required. Must be positive.
	Count int

	// OnComplete, if set, runs exactly once when the count reaches
	// zero, before the waiters resume.
	OnComplete func()
}

type latch struct {
	mu        sync.Mutex
	cfg       Config
	remaining int
	done      chan struct{}
}

// New creates a latch requiring count countdowns.
func New(count int) (Latch, error) {
	return NewWithConfig(Config{Count: count})
}

// NewWithConfig creates a latch from the given configuration.
func NewWithConfig(cfg Config) (Latch, error) {
	if err := validation.ValidatePositive("latch", "count", cfg.Count); err != nil {
		return nil, err
	}
	return &latch{
		cfg:       cfg,
		remaining: cfg.Count,
		done:      make(chan struct{}),
	}, nil
}

func (l *latch) CountDown() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.remaining == 0 {
		return gferrors.ErrUnderflow
	}

	l.remaining--
	if l.remaining == 0 {
		if l.cfg.OnComplete != nil {
			l.cfg.OnComplete()
		}
		close(l.done)
	}
	return nil
}

func (l *latch) Await(ctx context.Context) (bool, error) {
	select {
	case <-l.done:
		return true, nil
	default:
	}

	select {
	case <-l.done:
		return true, nil
	case <-ctx.Done():
		if gfcontext.IsTimedOut(ctx) {
			return false, nil
		}
		return false, ctx.Err()
	}
}

func (l *latch) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remaining
}

func (l *latch) IsComplete() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remaining == 0
}
