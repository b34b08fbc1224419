// Package bulkhead isolates callers into independent single-slot execution
// pools so one saturated dependency cannot drain capacity from the rest.
//
// Each pool is a one-permit semaphore. Calls are spread across pools by a
// round-robin counter; a call blocked on its pool waits only for that pool,
// never for capacity held elsewhere.
package bulkhead

import (
	"context"
	"sync/atomic"
	"time"

	gferrors "github.com/vnykmshr/flowgate/pkg/common/errors"
	"github.com/vnykmshr/flowgate/pkg/common/validation"
	"github.com/vnykmshr/flowgate/pkg/sync/semaphore"
	"github.com/vnykmshr/flowgate/pkg/sync/waitqueue"
)

// Bulkhead executes tasks inside isolated capacity pools.
type Bulkhead interface {
	// Execute runs task while holding a slot in one of the pools. The
	// slot is released on every exit path including panics. Waiting
	// for a slot respects ctx and the configured AcquireTimeout; on
	// expiry the task is not run and ErrTimeout is returned.
	Execute(ctx context.Context, task func() error) error

	// TryExecute runs task only if a slot in the selected pool is
	// immediately free; otherwise it returns ErrCapacityExceeded
	// without running the task.
	TryExecute(task func() error) error

	// PoolSize returns the number of pools.
	PoolSize() int

	// AvailablePools returns the number of pools with a free slot.
	AvailablePools() int

	// PoolAvailable reports whether pool i has a free slot.
	PoolAvailable(i int) bool
}

// Config holds configuration options for creating a Bulkhead.
type Config struct {
	// PoolSize is the number of isolated single-slot pools, and thus
	// the total execution capacity. Must be positive.
	PoolSize int

	// QueueSize is an advisory bound on waiters per pool. It is
	// reported to callbacks and metrics but not enforced; isolation
	// between pools is the hard guarantee.
	QueueSize int

	// AcquireTimeout bounds the wait for a pool slot when the caller's
	// context carries no earlier deadline. Zero means wait as long as
	// ctx allows.
	AcquireTimeout time.Duration

	// OnBlocked, if set, is called with the pool index each time a
	// caller must wait for that pool's slot.
	OnBlocked func(pool int)
}

type bulkhead struct {
	cfg   Config
	pools []semaphore.Semaphore
	next  atomic.Uint64
}

// New creates a bulkhead with poolSize isolated pools.
func New(poolSize int) (Bulkhead, error) {
	return NewWithConfig(Config{PoolSize: poolSize})
}

// NewWithConfig creates a bulkhead from the given configuration.
func NewWithConfig(cfg Config) (Bulkhead, error) {
	if err := validation.ValidatePositive("bulkhead", "poolSize", cfg.PoolSize); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegativeInt("bulkhead", "queueSize", cfg.QueueSize); err != nil {
		return nil, err
	}
	if cfg.AcquireTimeout < 0 {
		return nil, gferrors.NewValidationError("bulkhead", "acquireTimeout", cfg.AcquireTimeout,
			"must not be negative").WithHint("use zero to wait for the caller's context only")
	}

	b := &bulkhead{cfg: cfg}
	b.pools = make([]semaphore.Semaphore, cfg.PoolSize)
	for i := range b.pools {
		pool := i
		semCfg := semaphore.Config{Capacity: 1, Mode: waitqueue.FIFO}
		if cfg.OnBlocked != nil {
			semCfg.OnWaiting = func() { cfg.OnBlocked(pool) }
		}
		sem, err := semaphore.NewWithConfig(semCfg)
		if err != nil {
			return nil, err
		}
		b.pools[i] = sem
	}
	return b, nil
}

func (b *bulkhead) Execute(ctx context.Context, task func() error) error {
	if b.cfg.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.AcquireTimeout)
		defer cancel()
	}
	return b.pick().With(ctx, task)
}

func (b *bulkhead) TryExecute(task func() error) error {
	sem := b.pick()
	if !sem.TryAcquire() {
		return gferrors.ErrCapacityExceeded
	}
	defer sem.Release()
	return task()
}

// pick assigns the next pool round-robin. Distribution, not load, decides
// placement; a blocked caller stays bound to its pool.
func (b *bulkhead) pick() semaphore.Semaphore {
	n := b.next.Add(1) - 1
	return b.pools[n%uint64(len(b.pools))]
}

func (b *bulkhead) PoolSize() int {
	return len(b.pools)
}

func (b *bulkhead) AvailablePools() int {
	free := 0
	for _, p := range b.pools {
		if p.Available() > 0 {
			free++
		}
	}
	return free
}

func (b *bulkhead) PoolAvailable(i int) bool {
	if i < 0 || i >= len(b.pools) {
		return false
	}
	return b.pools[i].Available() > 0
}
