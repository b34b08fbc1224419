// Package backpressure bounds concurrent executions and applies a
// configurable overflow policy when demand exceeds capacity.
//
// A controller admits at most MaxConcurrent executions at once. Excess
// submissions are buffered, rejected, sampled, or throttled per the
// configured Strategy; a finishing execution hands its slot directly to
// the oldest buffered submission.
package backpressure

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	gfcontext "github.com/vnykmshr/flowgate/pkg/common/context"
	gferrors "github.com/vnykmshr/flowgate/pkg/common/errors"
	"github.com/vnykmshr/flowgate/pkg/common/validation"
)

// Strategy selects the overflow behavior once all execution slots are
// taken.
type Strategy int

const (
	// Drop buffers excess submissions and rejects new ones once the
	// buffer is also full.
	Drop Strategy = iota

	// DropOldest buffers excess submissions; when the buffer is full
	// the oldest buffered submission is evicted with ErrCancelled to
	// make room for the new one.
	DropOldest

	// Buffer queues excess submissions in a pure bounded queue and
	// rejects only when the queue is full. Nothing queued is dropped.
	Buffer

	// Sample admits excess submissions with probability SampleRate and
	// rejects the rest. Under capacity every submission is admitted.
	Sample

	// Throttle blocks the submitter until buffer space frees. Nothing
	// admitted is ever dropped.
	Throttle

	// Error rejects immediately at capacity with no buffering at all.
	Error
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case Drop:
		return "drop"
	case DropOldest:
		return "drop_oldest"
	case Buffer:
		return "buffer"
	case Sample:
		return "sample"
	case Throttle:
		return "throttle"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Controller admits, queues, or rejects executions per its strategy.
type Controller interface {
	// Execute runs fn when a slot is available, queueing or rejecting
	// per the strategy. fn's error is returned as-is; admission
	// failures return ErrCapacityExceeded, eviction before execution
	// returns ErrCancelled, and a deadline expiring while queued
	// returns ErrTimeout.
	Execute(ctx context.Context, fn func() error) error

	// BufferSize returns the current number of queued submissions.
	BufferSize() int

	// ActiveExecutions returns the number of executions in flight.
	ActiveExecutions() int

	// IsUnderPressure reports whether every execution slot is taken.
	IsUnderPressure() bool

	// Strategy returns the controller's overflow strategy.
	Strategy() Strategy
}

// Config holds configuration options for creating a Controller.
type Config struct {
	// MaxConcurrent is the number of simultaneous executions. Must be
	// positive.
	MaxConcurrent int

	// BufferSize bounds the queue of waiting submissions. Must be
	// positive for strategies that depend on buffering; Drop accepts
	// zero (reject as soon as the slots fill) and Error ignores it.
	BufferSize int

	// Strategy selects the overflow behavior. Defaults to Drop.
	Strategy Strategy

	// SampleRate is the admission probability used by the Sample
	// strategy. Must be in [0, 1].
	SampleRate float64

	// Rand supplies the randomness for Sample decisions. Defaults to
	// math/rand. Tests inject a deterministic source here.
	Rand func() float64

	// OnOverflow, if set, fires when the Drop or Error strategy rejects
	// a submission because both the slots and the buffer are exhausted.
	// Buffer-full and sampling rejections do not fire it; the Buffer
	// strategy reports through OnBufferFull instead.
	OnOverflow func()

	// OnBufferFull, if set, fires when an enqueue fills the buffer to
	// capacity.
	OnBufferFull func()

	// OnItemDropped, if set, fires when DropOldest evicts a buffered
	// submission.
	OnItemDropped func()
}

// pendingCall is a buffered submission. A finishing execution grants the
// oldest pendingCall its slot directly; eviction delivers an error
// through the same handle.
type pendingCall struct {
	ready   chan struct{}
	granted bool
	err     error
}

type controller struct {
	mu     sync.Mutex
	cfg    Config
	active int
	buffer *list.List // of *pendingCall
	space  *list.List // of chan struct{}, Throttle submitters waiting for buffer room
	randF  func() float64
}

// New creates a Drop-strategy controller.
func New(maxConcurrent, bufferSize int) (Controller, error) {
	return NewWithConfig(Config{MaxConcurrent: maxConcurrent, BufferSize: bufferSize})
}

// NewWithConfig creates a controller from the given configuration.
func NewWithConfig(cfg Config) (Controller, error) {
	if err := validation.ValidatePositive("backpressure", "maxConcurrent", cfg.MaxConcurrent); err != nil {
		return nil, err
	}
	switch cfg.Strategy {
	case Error:
		// Never buffers; BufferSize is ignored.
	case Drop:
		// A zero buffer is legal: rejection then happens the instant
		// the slots fill.
		if err := validation.ValidateNonNegativeInt("backpressure", "bufferSize", cfg.BufferSize); err != nil {
			return nil, err
		}
	default:
		if err := validation.ValidatePositive("backpressure", "bufferSize", cfg.BufferSize); err != nil {
			return nil, err
		}
	}
	if cfg.Strategy == Sample {
		if err := validation.ValidateUnitInterval("backpressure", "sampleRate", cfg.SampleRate); err != nil {
			return nil, err
		}
	}
	switch cfg.Strategy {
	case Drop, DropOldest, Buffer, Sample, Throttle, Error:
	default:
		return nil, gferrors.NewValidationError("backpressure", "strategy", cfg.Strategy,
			"unknown strategy").WithHint("use Drop, DropOldest, Buffer, Sample, Throttle, or Error")
	}

	randF := cfg.Rand
	if randF == nil {
		randF = rand.Float64
	}
	return &controller{
		cfg:    cfg,
		buffer: list.New(),
		space:  list.New(),
		randF:  randF,
	}, nil
}

func (c *controller) Execute(ctx context.Context, fn func() error) error {
	select {
	case <-ctx.Done():
		return gfcontext.Cause(ctx)
	default:
	}

	c.mu.Lock()

	// Capacity available and nobody queued ahead: run now.
	if c.active < c.cfg.MaxConcurrent && c.buffer.Len() == 0 {
		c.active++
		c.mu.Unlock()
		return c.run(fn)
	}

	p, err := c.admitLocked(ctx)
	if err != nil {
		c.mu.Unlock()
		overflow := c.cfg.Strategy == Drop || c.cfg.Strategy == Error
		if overflow && c.cfg.OnOverflow != nil && errors.Is(err, gferrors.ErrCapacityExceeded) {
			c.cfg.OnOverflow()
		}
		return err
	}
	c.mu.Unlock()

	select {
	case <-p.ready:
		if p.err != nil {
			return p.err
		}
		return c.run(fn)
	case <-ctx.Done():
		c.mu.Lock()
		if p.granted {
			c.mu.Unlock()
			if p.err != nil {
				return p.err
			}
			// The slot handoff won the race; run rather than leak it.
			return c.run(fn)
		}
		c.removeLocked(p)
		c.mu.Unlock()
		return gfcontext.Cause(ctx)
	}
}

// admitLocked applies the overflow strategy and, when the submission is
// accepted, enqueues it. Called with the mutex held and capacity
// exhausted (or earlier submissions queued).
func (c *controller) admitLocked(ctx context.Context) (*pendingCall, error) {
	switch c.cfg.Strategy {
	case Error:
		return nil, gferrors.ErrCapacityExceeded

	case Drop:
		if c.buffer.Len() >= c.cfg.BufferSize {
			return nil, gferrors.ErrCapacityExceeded
		}
		return c.enqueueLocked(), nil

	case DropOldest:
		if c.buffer.Len() >= c.cfg.BufferSize {
			c.evictOldestLocked()
		}
		return c.enqueueLocked(), nil

	case Buffer:
		if c.buffer.Len() >= c.cfg.BufferSize {
			return nil, gferrors.ErrCapacityExceeded
		}
		p := c.enqueueLocked()
		if c.buffer.Len() == c.cfg.BufferSize && c.cfg.OnBufferFull != nil {
			c.cfg.OnBufferFull()
		}
		return p, nil

	case Sample:
		if c.randF() >= c.cfg.SampleRate {
			return nil, gferrors.ErrCapacityExceeded
		}
		if c.buffer.Len() >= c.cfg.BufferSize {
			return nil, gferrors.ErrCapacityExceeded
		}
		return c.enqueueLocked(), nil

	case Throttle:
		for c.buffer.Len() >= c.cfg.BufferSize {
			if err := c.waitForSpaceLocked(ctx); err != nil {
				return nil, err
			}
		}
		// The mutex was released while waiting, so the buffer may have
		// drained entirely. An empty buffer means no finishing task will
		// grant us a slot; claim a free one directly instead of queueing.
		if c.active < c.cfg.MaxConcurrent && c.buffer.Len() == 0 {
			c.active++
			p := &pendingCall{granted: true, ready: make(chan struct{})}
			close(p.ready)
			return p, nil
		}
		return c.enqueueLocked(), nil

	default:
		return nil, gferrors.ErrCapacityExceeded
	}
}

func (c *controller) enqueueLocked() *pendingCall {
	p := &pendingCall{ready: make(chan struct{})}
	c.buffer.PushBack(p)
	return p
}

// evictOldestLocked fails the oldest buffered submission with
// ErrCancelled to make room.
func (c *controller) evictOldestLocked() {
	front := c.buffer.Front()
	if front == nil {
		return
	}
	c.buffer.Remove(front)
	p := front.Value.(*pendingCall)
	p.granted = true
	p.err = gferrors.ErrCancelled
	close(p.ready)
	if c.cfg.OnItemDropped != nil {
		c.cfg.OnItemDropped()
	}
}

// waitForSpaceLocked suspends a Throttle submitter until a buffer slot
// frees. The mutex is released while waiting and re-held on return.
func (c *controller) waitForSpaceLocked(ctx context.Context) error {
	ch := make(chan struct{}, 1)
	elem := c.space.PushBack(ch)
	c.mu.Unlock()

	select {
	case <-ch:
		c.mu.Lock()
		return nil
	case <-ctx.Done():
		c.mu.Lock()
		select {
		case <-ch:
			// Signalled concurrently with cancellation; pass the
			// signal on so it is not lost.
			c.signalSpaceLocked()
		default:
			c.space.Remove(elem)
		}
		return gfcontext.Cause(ctx)
	}
}

// signalSpaceLocked wakes one Throttle submitter waiting for buffer room.
func (c *controller) signalSpaceLocked() {
	if front := c.space.Front(); front != nil {
		c.space.Remove(front)
		front.Value.(chan struct{}) <- struct{}{}
	}
}

// removeLocked withdraws a cancelled submission from the buffer.
func (c *controller) removeLocked(p *pendingCall) {
	for e := c.buffer.Front(); e != nil; e = e.Next() {
		if e.Value.(*pendingCall) == p {
			c.buffer.Remove(e)
			c.signalSpaceLocked()
			return
		}
	}
}

// run executes fn in an acquired slot, releasing it on every exit path.
func (c *controller) run(fn func() error) error {
	defer c.finish()
	return fn()
}

// finish releases a slot. If submissions are buffered the slot passes
// directly to the oldest one instead of returning to the pool.
func (c *controller) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if front := c.buffer.Front(); front != nil {
		c.buffer.Remove(front)
		p := front.Value.(*pendingCall)
		p.granted = true
		close(p.ready)
		c.signalSpaceLocked()
		return
	}
	c.active--
}

func (c *controller) BufferSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.Len()
}

func (c *controller) ActiveExecutions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *controller) IsUnderPressure() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active >= c.cfg.MaxConcurrent
}

func (c *controller) Strategy() Strategy {
	return c.cfg.Strategy
}
