package ratelimit

import (
	"container/list"
	"context"
	"sync"
	"time"

	gfcontext "github.com/vnykmshr/flowgate/pkg/common/context"
	gferrors "github.com/vnykmshr/flowgate/pkg/common/errors"
)

// leakyBucket admits exactly one call per drip interval. A background
// ticker drains queued waiters in FIFO order; between waiters, at most
// one admission accumulates, so bursts never form.
type leakyBucket struct {
	mu        sync.Mutex
	cfg       Config
	interval  time.Duration
	available bool
	waiters   *list.List // of chan error, buffered(1)
	ticker    *time.Ticker
	stop      chan struct{}
	closed    bool
}

func newLeakyBucket(cfg Config) *leakyBucket {
	interval := cfg.Window / time.Duration(cfg.MaxCalls)
	if interval <= 0 {
		interval = time.Nanosecond
	}
	lb := &leakyBucket{
		cfg:       cfg,
		interval:  interval,
		available: true,
		waiters:   list.New(),
		ticker:    time.NewTicker(interval),
		stop:      make(chan struct{}),
	}
	go lb.drain()
	return lb
}

func (lb *leakyBucket) drain() {
	for {
		select {
		case <-lb.ticker.C:
			lb.drip()
		case <-lb.stop:
			return
		}
	}
}

// drip hands one admission to the oldest waiter, or banks it if nobody
// is queued. At most one admission is banked; further drips are lost,
// which is what keeps the egress rate uniform.
func (lb *leakyBucket) drip() {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if lb.closed {
		return
	}
	if front := lb.waiters.Front(); front != nil {
		lb.waiters.Remove(front)
		front.Value.(chan error) <- nil
		return
	}
	lb.available = true
}

func (lb *leakyBucket) Allow() bool {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if lb.closed || !lb.available || lb.waiters.Len() > 0 {
		return false
	}
	lb.available = false
	return true
}

func (lb *leakyBucket) Wait(ctx context.Context) error {
	lb.mu.Lock()
	if lb.closed {
		lb.mu.Unlock()
		return gferrors.ErrClosed
	}
	if lb.available && lb.waiters.Len() == 0 {
		lb.available = false
		lb.mu.Unlock()
		return nil
	}
	ch := make(chan error, 1)
	elem := lb.waiters.PushBack(ch)
	lb.mu.Unlock()

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		lb.mu.Lock()
		select {
		case err := <-ch:
			// A drip or close reached us before we could withdraw.
			lb.mu.Unlock()
			return err
		default:
		}
		lb.waiters.Remove(elem)
		lb.mu.Unlock()
		return gfcontext.Cause(ctx)
	}
}

func (lb *leakyBucket) Execute(ctx context.Context, fn func() error) error {
	if err := lb.Wait(ctx); err != nil {
		return err
	}
	return fn()
}

func (lb *leakyBucket) Remaining() int {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if lb.closed || !lb.available || lb.waiters.Len() > 0 {
		return 0
	}
	return 1
}

func (lb *leakyBucket) Reset() {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if lb.closed {
		return
	}
	lb.available = true
	lb.ticker.Reset(lb.interval)
}

func (lb *leakyBucket) Close() error {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if lb.closed {
		return nil
	}
	lb.closed = true
	lb.ticker.Stop()
	close(lb.stop)
	for front := lb.waiters.Front(); front != nil; front = lb.waiters.Front() {
		lb.waiters.Remove(front)
		front.Value.(chan error) <- gferrors.ErrClosed
	}
	return nil
}

func (lb *leakyBucket) Strategy() Strategy {
	return LeakyBucket
}
