// Package mutex provides a one-permit lock with ownership tracking, a
// blocked-caller callback, and scoped execution via Synchronized.
package mutex

import (
	"context"
	"errors"
	"sync"
	"time"

	gfcontext "github.com/vnykmshr/flowgate/pkg/common/context"
	gferrors "github.com/vnykmshr/flowgate/pkg/common/errors"
	"github.com/vnykmshr/flowgate/pkg/sync/waitqueue"
)

// Lock is a mutual-exclusion lock with FIFO handoff to waiters.
type Lock interface {
	// Acquire obtains the lock, blocking until it is free. A deadline
	// expiring during the wait returns ErrTimeout.
	Acquire(ctx context.Context) error

	// TryAcquire obtains the lock without blocking.
	TryAcquire() bool

	// Release frees the lock. It panics if the lock is not held.
	Release()

	// IsLocked reports whether the lock is currently held.
	IsLocked() bool

	// QueueLength returns the number of callers waiting for the lock.
	QueueLength() int

	// Synchronized runs body while holding the lock, releasing it on
	// every exit path including panics. If AcquireTimeout elapses and
	// ProceedOnTimeout is set, body runs without the lock.
	Synchronized(ctx context.Context, body func() error) error
}

// Config holds configuration options for creating a Lock.
type Config struct {
	// AcquireTimeout bounds the wait inside Synchronized. Zero means
	// wait as long as the caller's context allows.
	AcquireTimeout time.Duration

	// ProceedOnTimeout makes Synchronized run the body WITHOUT the
	// lock when the acquire times out, instead of failing. This trades
	// mutual exclusion for progress; leave it false unless the body is
	// safe to run unguarded.
	ProceedOnTimeout bool

	// OnBlocked, if set, is called each time a caller must wait.
	OnBlocked func()
}

type lock struct {
	mu      sync.Mutex
	cfg     Config
	owned   bool
	waiters *waitqueue.Queue
}

// New creates a Lock with default configuration.
func New() Lock {
	return NewWithConfig(Config{})
}

// NewWithConfig creates a Lock from the given configuration.
func NewWithConfig(cfg Config) Lock {
	return &lock{
		cfg:     cfg,
		waiters: waitqueue.New(waitqueue.FIFO),
	}
}

func (l *lock) Acquire(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return gfcontext.Cause(ctx)
	default:
	}

	l.mu.Lock()
	if !l.owned && l.waiters.Len() == 0 {
		l.owned = true
		l.mu.Unlock()
		return nil
	}

	w := l.waiters.Push(0)
	l.mu.Unlock()

	if l.cfg.OnBlocked != nil {
		l.cfg.OnBlocked()
	}

	select {
	case <-w.Ready():
		// Ownership was handed over by the releaser.
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		if w.Granted() {
			l.mu.Unlock()
			return nil
		}
		l.waiters.Remove(w)
		l.mu.Unlock()
		return gfcontext.Cause(ctx)
	}
}

func (l *lock) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.owned && l.waiters.Len() == 0 {
		l.owned = true
		return true
	}
	return false
}

func (l *lock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.owned {
		panic("mutex: release of unlocked lock")
	}

	// Hand the lock directly to the oldest waiter; owned stays true.
	if l.waiters.PopGrant() != nil {
		return
	}
	l.owned = false
}

func (l *lock) IsLocked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owned
}

func (l *lock) QueueLength() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.waiters.Len()
}

func (l *lock) Synchronized(ctx context.Context, body func() error) error {
	acquireCtx := ctx
	if l.cfg.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, l.cfg.AcquireTimeout)
		defer cancel()
	}

	if err := l.Acquire(acquireCtx); err != nil {
		if errors.Is(err, gferrors.ErrTimeout) && l.cfg.ProceedOnTimeout {
			// Explicit escape hatch: run unguarded.
			return body()
		}
		return err
	}
	defer l.Release()
	return body()
}
