// Package priorityqueue provides a bounded priority-ordered task executor.
//
// Submitted tasks are assigned a priority by a caller-supplied extractor
// and queued in descending priority order, ties broken by arrival. Up to
// MaxConcurrent workers drain the queue. When the queue is full an
// overflow policy decides between evicting the lowest-priority item,
// rejecting the new one, or blocking for space. Items that wait longer
// than StarvationThreshold receive a one-time priority boost equal to
// their wait in milliseconds, bounding worst-case latency for
// low-priority work under sustained high-priority load.
package priorityqueue

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vnykmshr/flowgate/pkg/common/clock"
	gfcontext "github.com/vnykmshr/flowgate/pkg/common/context"
	gferrors "github.com/vnykmshr/flowgate/pkg/common/errors"
	"github.com/vnykmshr/flowgate/pkg/common/validation"
)

// Task represents a unit of work that can be executed by a worker.
type Task interface {
	// Execute runs the task with the given context.
	// It should respect context cancellation and return any error encountered.
	Execute(ctx context.Context) error
}

// TaskFunc is a function type that implements the Task interface.
type TaskFunc func(ctx context.Context) error

// Execute implements the Task interface for TaskFunc.
func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Result represents the outcome of a submitted task.
type Result struct {
	// ID is the identifier assigned at submission.
	ID uuid.UUID

	// Task is the original task that was submitted.
	Task Task

	// Priority is the task's effective priority at dispatch, including
	// any starvation boost.
	Priority float64

	// Boosted reports whether the starvation boost was applied.
	Boosted bool

	// Error is the task's execution error, or ErrCancelled if the task
	// was evicted before running.
	Error error

	// Waited is how long the task sat in the queue.
	Waited time.Duration

	// Duration is how long the task took to execute.
	Duration time.Duration

	// WorkerID identifies which worker executed the task. Dropped
	// tasks carry -1.
	WorkerID int
}

// OverflowPolicy governs behavior when a task is submitted to a full queue.
type OverflowPolicy int

const (
	// DropLowestPriority evicts the queued item with the lowest
	// priority if the new task outranks it, otherwise rejects the new
	// task.
	DropLowestPriority OverflowPolicy = iota

	// DropNew always rejects the new task.
	DropNew

	// ErrorOnFull rejects the new task with ErrCapacityExceeded.
	ErrorOnFull

	// WaitForSpace blocks the submitter until room frees or its
	// context ends.
	WaitForSpace
)

// String returns the policy name.
func (p OverflowPolicy) String() string {
	switch p {
	case DropLowestPriority:
		return "drop_lowest_priority"
	case DropNew:
		return "drop_new"
	case ErrorOnFull:
		return "error_on_full"
	case WaitForSpace:
		return "wait_for_space"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Executor runs submitted tasks in priority order with bounded
// concurrency.
type Executor interface {
	// Submit queues task for execution and returns its assigned ID.
	// On a full queue the overflow policy applies; a rejected
	// submission returns ErrCapacityExceeded and a shut-down executor
	// returns ErrClosed.
	Submit(ctx context.Context, task Task) (uuid.UUID, error)

	// Results returns the channel of task outcomes, including results
	// for evicted tasks. The channel closes after Shutdown completes.
	Results() <-chan Result

	// Shutdown stops intake, drains queued tasks, and closes Results.
	// The returned channel closes when the drain is complete.
	Shutdown() <-chan struct{}

	// QueueLength returns the number of tasks currently queued.
	QueueLength() int

	// ActiveCount returns the number of tasks currently executing.
	ActiveCount() int
}

// Config holds configuration options for creating an Executor.
type Config struct {
	// MaxConcurrent is the number of workers. Must be positive.
	MaxConcurrent int

	// QueueSize bounds the number of queued tasks. Must be positive.
	QueueSize int

	// Priority extracts a task's priority at submission. Nil assigns
	// every task priority zero, making the queue effectively FIFO.
	Priority func(task Task) float64

	// OnQueueFull selects the overflow policy. Defaults to
	// DropLowestPriority.
	OnQueueFull OverflowPolicy

	// StarvationThreshold is how long an item may wait before its
	// one-time priority boost. Zero disables boosting, preserving
	// exact strict-priority order.
	StarvationThreshold time.Duration

	// PollInterval is how often a WaitForSpace submitter re-checks the
	// queue. Defaults to 10ms.
	PollInterval time.Duration

	// Clock provides the time source for wait measurement. Defaults to
	// the system clock.
	Clock clock.Clock

	// OnItemDropped, if set, fires when an item is evicted, with the
	// item's ID and its priority at eviction.
	OnItemDropped func(id uuid.UUID, priority float64)

	// OnStarvationBoost, if set, fires when an item's boost is
	// applied, with the item's ID and the boost amount.
	OnStarvationBoost func(id uuid.UUID, boost float64)
}

const defaultPollInterval = 10 * time.Millisecond

// item is a queued task.
type item struct {
	id         uuid.UUID
	task       Task
	priority   float64
	seq        uint64
	enqueuedAt time.Time
	boosted    bool
}

type executor struct {
	cfg Config

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []*item
	seq      uint64
	active   int
	shutdown bool

	results      chan Result
	workerWg     sync.WaitGroup
	shutdownOnce sync.Once
	done         chan struct{}
}

// New creates an executor with maxConcurrent workers and a queue bounded
// at queueSize, using the DropLowestPriority overflow policy.
func New(maxConcurrent, queueSize int) (Executor, error) {
	return NewWithConfig(Config{MaxConcurrent: maxConcurrent, QueueSize: queueSize})
}

// NewWithConfig creates an executor from the given configuration.
func NewWithConfig(cfg Config) (Executor, error) {
	if err := validation.ValidatePositive("priorityqueue", "maxConcurrent", cfg.MaxConcurrent); err != nil {
		return nil, err
	}
	if err := validation.ValidatePositive("priorityqueue", "queueSize", cfg.QueueSize); err != nil {
		return nil, err
	}
	if cfg.StarvationThreshold < 0 {
		return nil, gferrors.NewValidationError("priorityqueue", "starvationThreshold", cfg.StarvationThreshold,
			"must not be negative").WithHint("use zero to disable starvation boosting")
	}
	switch cfg.OnQueueFull {
	case DropLowestPriority, DropNew, ErrorOnFull, WaitForSpace:
	default:
		return nil, gferrors.NewValidationError("priorityqueue", "onQueueFull", cfg.OnQueueFull,
			"unknown overflow policy")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.SystemClock{}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	e := &executor{
		cfg:   cfg,
		queue: make([]*item, 0, cfg.QueueSize),
		// Buffered so workers and evictions never block on an
		// unconsumed results channel.
		results: make(chan Result, cfg.QueueSize+cfg.MaxConcurrent),
		done:    make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)

	for i := 0; i < cfg.MaxConcurrent; i++ {
		e.workerWg.Add(1)
		go e.worker(i)
	}
	return e, nil
}

func (e *executor) Submit(ctx context.Context, task Task) (uuid.UUID, error) {
	if task == nil {
		return uuid.Nil, gferrors.NewValidationError("priorityqueue", "task", nil, "must not be nil")
	}
	select {
	case <-ctx.Done():
		return uuid.Nil, gfcontext.Cause(ctx)
	default:
	}

	priority := 0.0
	if e.cfg.Priority != nil {
		priority = e.cfg.Priority(task)
	}
	id := uuid.New()

	e.mu.Lock()
	for {
		if e.shutdown {
			e.mu.Unlock()
			return uuid.Nil, gferrors.ErrClosed
		}
		if len(e.queue) < e.cfg.QueueSize {
			e.insertLocked(&item{
				id:         id,
				task:       task,
				priority:   priority,
				enqueuedAt: e.cfg.Clock.Now(),
			})
			e.cond.Signal()
			e.mu.Unlock()
			return id, nil
		}

		switch e.cfg.OnQueueFull {
		case DropNew, ErrorOnFull:
			e.mu.Unlock()
			return uuid.Nil, gferrors.ErrCapacityExceeded

		case DropLowestPriority:
			tail := e.queue[len(e.queue)-1]
			if priority <= tail.priority {
				e.mu.Unlock()
				return uuid.Nil, gferrors.ErrCapacityExceeded
			}
			e.removeLocked(tail)
			e.mu.Unlock()
			e.reportDrop(tail)
			e.mu.Lock()
			// Loop re-checks: the freed slot admits the new item.

		case WaitForSpace:
			e.mu.Unlock()
			if err := sleepPoll(ctx, e.cfg.PollInterval); err != nil {
				return uuid.Nil, err
			}
			e.mu.Lock()
		}
	}
}

// insertLocked places it into the queue keeping descending priority
// order, ties by arrival.
func (e *executor) insertLocked(it *item) {
	e.seq++
	it.seq = e.seq
	pos := sort.Search(len(e.queue), func(i int) bool {
		return e.queue[i].priority < it.priority
	})
	e.queue = append(e.queue, nil)
	copy(e.queue[pos+1:], e.queue[pos:])
	e.queue[pos] = it
}

// removeLocked takes it out of the queue without reporting.
func (e *executor) removeLocked(it *item) {
	for i, q := range e.queue {
		if q == it {
			e.queue = append(e.queue[:i], e.queue[i+1:]...)
			return
		}
	}
}

// reportDrop surfaces an eviction through the results channel and the
// drop callback. Called without the mutex held.
func (e *executor) reportDrop(it *item) {
	e.sendResult(Result{
		ID:       it.id,
		Task:     it.task,
		Priority: it.priority,
		Boosted:  it.boosted,
		Error:    gferrors.ErrCancelled,
		Waited:   e.cfg.Clock.Now().Sub(it.enqueuedAt),
		WorkerID: -1,
	})
	if e.cfg.OnItemDropped != nil {
		e.cfg.OnItemDropped(it.id, it.priority)
	}
}

// sendResult delivers a result without blocking forever on an
// unconsumed channel.
func (e *executor) sendResult(r Result) {
	select {
	case e.results <- r:
	case <-time.After(100 * time.Millisecond):
		// Result delivery timed out, which is acceptable during shutdown
	}
}

// boostStarvedLocked applies the one-time priority boost to items that
// have waited past the threshold and re-sorts if anything changed.
func (e *executor) boostStarvedLocked(now time.Time) {
	if e.cfg.StarvationThreshold <= 0 {
		return
	}
	changed := false
	for _, it := range e.queue {
		waited := now.Sub(it.enqueuedAt)
		if it.boosted || waited <= e.cfg.StarvationThreshold {
			continue
		}
		boost := float64(waited.Milliseconds())
		it.priority += boost
		it.boosted = true
		changed = true
		if e.cfg.OnStarvationBoost != nil {
			e.cfg.OnStarvationBoost(it.id, boost)
		}
	}
	if changed {
		sort.Slice(e.queue, func(i, j int) bool {
			if e.queue[i].priority != e.queue[j].priority {
				return e.queue[i].priority > e.queue[j].priority
			}
			return e.queue[i].seq < e.queue[j].seq
		})
	}
}

func (e *executor) worker(id int) {
	defer e.workerWg.Done()

	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.shutdown {
			e.cond.Wait()
		}
		if len(e.queue) == 0 && e.shutdown {
			e.mu.Unlock()
			return
		}

		e.boostStarvedLocked(e.cfg.Clock.Now())
		it := e.queue[0]
		e.queue = e.queue[1:]
		e.active++
		e.mu.Unlock()

		e.execute(id, it)

		e.mu.Lock()
		e.active--
		e.mu.Unlock()
	}
}

// execute runs one task with panic recovery, mirroring worker behavior:
// a panic becomes the task's error, never a crashed worker.
func (e *executor) execute(workerID int, it *item) {
	start := time.Now()
	waited := e.cfg.Clock.Now().Sub(it.enqueuedAt)
	var err error

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v\nStack trace:\n%s", r, debug.Stack())
		}
		e.sendResult(Result{
			ID:       it.id,
			Task:     it.task,
			Priority: it.priority,
			Boosted:  it.boosted,
			Error:    err,
			Waited:   waited,
			Duration: time.Since(start),
			WorkerID: workerID,
		})
	}()

	err = it.task.Execute(context.Background())
}

func (e *executor) Results() <-chan Result {
	return e.results
}

func (e *executor) Shutdown() <-chan struct{} {
	e.shutdownOnce.Do(func() {
		e.mu.Lock()
		e.shutdown = true
		e.mu.Unlock()
		e.cond.Broadcast()

		go func() {
			e.workerWg.Wait()
			close(e.results)
			close(e.done)
		}()
	})
	return e.done
}

func (e *executor) QueueLength() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

func (e *executor) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// sleepPoll waits one poll interval or until ctx ends.
func sleepPoll(ctx context.Context, interval time.Duration) error {
	timer := time.NewTimer(interval)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return gfcontext.Cause(ctx)
	}
}
