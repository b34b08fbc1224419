// Package semaphore provides a counting semaphore with configurable wake
// ordering (FIFO, LIFO, or priority) and direct permit handoff to waiters.
package semaphore

import (
	"context"
	"sync"

	gfcontext "github.com/vnykmshr/flowgate/pkg/common/context"
	"github.com/vnykmshr/flowgate/pkg/common/validation"
	"github.com/vnykmshr/flowgate/pkg/sync/waitqueue"
)

// Semaphore bounds the number of callers holding a permit at once.
// A released permit is handed directly to the next waiter per the
// configured queue mode, so waiting callers are never overtaken by
// new arrivals.
type Semaphore interface {
	// Acquire obtains one permit, blocking until one is available.
	// A context deadline expiring during the wait returns ErrTimeout;
	// a plain cancellation returns the context's error. In either case
	// the wait entry is removed and no permit is held.
	Acquire(ctx context.Context) error

	// AcquireWithPriority is Acquire with an explicit ordering key for
	// Priority mode queues. Outside Priority mode the key is ignored
	// and ordering degrades to arrival order.
	AcquireWithPriority(ctx context.Context, priority float64) error

	// TryAcquire obtains a permit without blocking. It respects queue
	// order: it fails while earlier callers are waiting even if a
	// permit is technically free.
	TryAcquire() bool

	// Release returns one permit. It panics if called without a
	// matching acquire; callers must pair the two, typically via With.
	Release()

	// With runs body while holding a permit, releasing it on every
	// exit path including panics.
	With(ctx context.Context, body func() error) error

	// Capacity returns the total number of permits.
	Capacity() int

	// Available returns the number of unheld permits.
	Available() int

	// QueueLength returns the number of callers currently waiting.
	QueueLength() int
}

// Config holds configuration options for creating a Semaphore.
type Config struct {
	// Capacity is the number of permits. Must be positive.
	Capacity int

	// Mode governs the order in which waiters are resumed.
	Mode waitqueue.Mode

	// OnWaiting, if set, is called each time a caller must suspend
	// because no permit is available.
	OnWaiting func()
}

type semaphore struct {
	mu      sync.Mutex
	cfg     Config
	held    int
	waiters *waitqueue.Queue
}

// New creates a FIFO semaphore with the given capacity.
func New(capacity int) (Semaphore, error) {
	return NewWithConfig(Config{Capacity: capacity, Mode: waitqueue.FIFO})
}

// NewWithConfig creates a semaphore from the given configuration.
func NewWithConfig(cfg Config) (Semaphore, error) {
	if err := validation.ValidatePositive("semaphore", "capacity", cfg.Capacity); err != nil {
		return nil, err
	}
	return &semaphore{
		cfg:     cfg,
		waiters: waitqueue.New(cfg.Mode),
	}, nil
}

func (s *semaphore) Acquire(ctx context.Context) error {
	return s.AcquireWithPriority(ctx, 0)
}

func (s *semaphore) AcquireWithPriority(ctx context.Context, priority float64) error {
	select {
	case <-ctx.Done():
		return gfcontext.Cause(ctx)
	default:
	}

	s.mu.Lock()

	// Fast path: a free permit and nobody queued ahead of us.
	if s.held < s.cfg.Capacity && s.waiters.Len() == 0 {
		s.held++
		s.mu.Unlock()
		return nil
	}

	// Slow path: register before suspending so a release between our
	// check and our wait cannot be missed.
	w := s.waiters.Push(priority)
	s.mu.Unlock()

	if s.cfg.OnWaiting != nil {
		s.cfg.OnWaiting()
	}

	select {
	case <-w.Ready():
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		if w.Granted() {
			// The handoff won the race against cancellation; the
			// permit is ours, so the acquire succeeded.
			s.mu.Unlock()
			return nil
		}
		s.waiters.Remove(w)
		s.mu.Unlock()
		return gfcontext.Cause(ctx)
	}
}

func (s *semaphore) TryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.held < s.cfg.Capacity && s.waiters.Len() == 0 {
		s.held++
		return true
	}
	return false
}

func (s *semaphore) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.held <= 0 {
		panic("semaphore: release without matching acquire")
	}

	// Hand the permit directly to the next waiter; the held count is
	// unchanged because ownership transfers rather than returning to
	// the pool.
	if s.waiters.PopGrant() != nil {
		return
	}
	s.held--
}

func (s *semaphore) With(ctx context.Context, body func() error) error {
	if err := s.Acquire(ctx); err != nil {
		return err
	}
	defer s.Release()
	return body()
}

func (s *semaphore) Capacity() int {
	return s.cfg.Capacity
}

func (s *semaphore) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Capacity - s.held
}

func (s *semaphore) QueueLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiters.Len()
}
