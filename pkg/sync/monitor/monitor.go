// Package monitor provides a mutex paired with predicate conditions.
// Callers hold the monitor lock, wait while a predicate is true, and are
// woken by Notify or NotifyAll; the predicate is always re-checked under
// the lock after a wake, so spurious wakeups are harmless.
package monitor

import (
	"context"
	"sync"

	gfcontext "github.com/vnykmshr/flowgate/pkg/common/context"
	"github.com/vnykmshr/flowgate/pkg/sync/mutex"
	"github.com/vnykmshr/flowgate/pkg/sync/waitqueue"
)

// Monitor combines a lock with condition waiting.
type Monitor interface {
	// Enter acquires the monitor lock.
	Enter(ctx context.Context) error

	// TryEnter acquires the monitor lock without blocking.
	TryEnter() bool

	// Exit releases the monitor lock.
	Exit()

	// IsLocked reports whether the monitor lock is held.
	IsLocked() bool

	// WaitWhile suspends the caller while pred returns true. The caller
	// must hold the monitor lock; WaitWhile releases it while suspended
	// and re-acquires it before re-checking pred and before returning.
	// It returns (true, nil) once the predicate clears, (false, nil)
	// when the context deadline expires first, and (false, err) when
	// the context is canceled outright.
	WaitWhile(ctx context.Context, pred func() bool) (bool, error)

	// Notify wakes the oldest waiting caller, if any.
	Notify()

	// NotifyAll wakes every waiting caller.
	NotifyAll()

	// WaitingCount returns the number of suspended callers.
	WaitingCount() int
}

// Config holds configuration options for creating a Monitor.
type Config struct {
	// OnBlocked is forwarded to the underlying lock.
	OnBlocked func()
}

type monitor struct {
	lock mutex.Lock

	cmu  sync.Mutex
	cond *waitqueue.Queue
}

// New creates a Monitor with default configuration.
func New() Monitor {
	return NewWithConfig(Config{})
}

// NewWithConfig creates a Monitor from the given configuration.
func NewWithConfig(cfg Config) Monitor {
	return &monitor{
		lock: mutex.NewWithConfig(mutex.Config{OnBlocked: cfg.OnBlocked}),
		cond: waitqueue.New(waitqueue.FIFO),
	}
}

func (m *monitor) Enter(ctx context.Context) error {
	return m.lock.Acquire(ctx)
}

func (m *monitor) TryEnter() bool {
	return m.lock.TryAcquire()
}

func (m *monitor) Exit() {
	m.lock.Release()
}

func (m *monitor) IsLocked() bool {
	return m.lock.IsLocked()
}

func (m *monitor) WaitWhile(ctx context.Context, pred func() bool) (bool, error) {
	for pred() {
		// Register on a fresh condition handle before dropping the
		// monitor lock, so a notify in the gap cannot be missed.
		m.cmu.Lock()
		w := m.cond.Push(0)
		m.cmu.Unlock()

		m.lock.Release()

		timedOut := false
		var cause error
		select {
		case <-w.Ready():
		case <-ctx.Done():
			m.cmu.Lock()
			if !w.Granted() {
				m.cond.Remove(w)
				if gfcontext.IsTimedOut(ctx) {
					timedOut = true
				} else {
					cause = ctx.Err()
				}
			}
			m.cmu.Unlock()
		}

		// Re-acquire before returning in every case: the caller holds
		// the monitor around WaitWhile and will Exit afterwards.
		if err := m.lock.Acquire(context.Background()); err != nil {
			return false, err
		}
		if timedOut {
			return false, nil
		}
		if cause != nil {
			return false, cause
		}
	}
	return true, nil
}

func (m *monitor) Notify() {
	m.cmu.Lock()
	defer m.cmu.Unlock()
	m.cond.PopGrant()
}

func (m *monitor) NotifyAll() {
	m.cmu.Lock()
	defer m.cmu.Unlock()
	m.cond.GrantAll()
}

func (m *monitor) WaitingCount() int {
	m.cmu.Lock()
	defer m.cmu.Unlock()
	return m.cond.Len()
}
