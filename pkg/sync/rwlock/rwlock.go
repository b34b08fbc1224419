// Package rwlock provides a readers-XOR-writer lock with an optional
// writer-priority mode. Writers drain one at a time; once no writer is
// runnable, all queued readers are released in one batch.
package rwlock

import (
	"context"
	"sync"

	gfcontext "github.com/vnykmshr/flowgate/pkg/common/context"
	"github.com/vnykmshr/flowgate/pkg/sync/waitqueue"
)

// RWLock allows any number of concurrent readers or exactly one writer,
// never both.
type RWLock interface {
	// RLock acquires a read hold. With WriterPriority set, new readers
	// also wait while any writer is queued, guaranteeing writer
	// progress under read-heavy load.
	RLock(ctx context.Context) error

	// RUnlock releases a read hold. It panics without a matching RLock.
	RUnlock()

	// Lock acquires the write hold, waiting for all readers to drain.
	Lock(ctx context.Context) error

	// Unlock releases the write hold. It panics if no writer holds it.
	Unlock()

	// ReaderCount returns the number of active read holds.
	ReaderCount() int

	// IsWriting reports whether a writer holds the lock.
	IsWriting() bool

	// QueuedReaders returns the number of readers waiting.
	QueuedReaders() int

	// QueuedWriters returns the number of writers waiting.
	QueuedWriters() int
}

// Config holds configuration options for creating an RWLock.
type Config struct {
	// WriterPriority blocks new readers while a writer is queued.
	// When false, read throughput is maximized at the risk of writer
	// starvation.
	WriterPriority bool
}

type rwLock struct {
	mu      sync.Mutex
	cfg     Config
	readers int
	writing bool
	readq   *waitqueue.Queue
	writeq  *waitqueue.Queue
}

// New creates an RWLock with default configuration (no writer priority).
func New() RWLock {
	return NewWithConfig(Config{})
}

// NewWithConfig creates an RWLock from the given configuration.
func NewWithConfig(cfg Config) RWLock {
	return &rwLock{
		cfg:    cfg,
		readq:  waitqueue.New(waitqueue.FIFO),
		writeq: waitqueue.New(waitqueue.FIFO),
	}
}

func (rw *rwLock) RLock(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return gfcontext.Cause(ctx)
	default:
	}

	rw.mu.Lock()
	if rw.canReadLocked() {
		rw.readers++
		rw.mu.Unlock()
		return nil
	}

	w := rw.readq.Push(0)
	rw.mu.Unlock()

	select {
	case <-w.Ready():
		// The releaser already counted us as an active reader.
		return nil
	case <-ctx.Done():
		rw.mu.Lock()
		if w.Granted() {
			rw.mu.Unlock()
			return nil
		}
		rw.readq.Remove(w)
		rw.mu.Unlock()
		return gfcontext.Cause(ctx)
	}
}

func (rw *rwLock) RUnlock() {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.readers <= 0 {
		panic("rwlock: RUnlock without matching RLock")
	}
	rw.readers--
	rw.dispatchLocked()
}

func (rw *rwLock) Lock(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return gfcontext.Cause(ctx)
	default:
	}

	rw.mu.Lock()
	if !rw.writing && rw.readers == 0 && rw.writeq.Len() == 0 {
		rw.writing = true
		rw.mu.Unlock()
		return nil
	}

	w := rw.writeq.Push(0)
	rw.mu.Unlock()

	select {
	case <-w.Ready():
		return nil
	case <-ctx.Done():
		rw.mu.Lock()
		if w.Granted() {
			rw.mu.Unlock()
			return nil
		}
		rw.writeq.Remove(w)
		// Giving up may unblock parked readers in writer-priority mode.
		rw.dispatchLocked()
		rw.mu.Unlock()
		return gfcontext.Cause(ctx)
	}
}

func (rw *rwLock) Unlock() {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if !rw.writing {
		panic("rwlock: Unlock without matching Lock")
	}
	rw.writing = false
	rw.dispatchLocked()
}

// canReadLocked is the reader admission rule: no active writer, and in
// writer-priority mode no queued writer either.
func (rw *rwLock) canReadLocked() bool {
	if rw.writing {
		return false
	}
	if rw.cfg.WriterPriority && rw.writeq.Len() > 0 {
		return false
	}
	return true
}

// dispatchLocked re-evaluates the queues after any release. Writers are
// served one at a time; when no writer is runnable, every queued reader
// wakes together.
func (rw *rwLock) dispatchLocked() {
	if rw.writing {
		return
	}
	if rw.readers == 0 && rw.writeq.Len() > 0 {
		rw.writeq.PopGrant()
		rw.writing = true
		return
	}
	if rw.cfg.WriterPriority && rw.writeq.Len() > 0 {
		// Readers stay parked behind the queued writer.
		return
	}
	for rw.readq.Len() > 0 {
		rw.readq.PopGrant()
		rw.readers++
	}
}

func (rw *rwLock) ReaderCount() int {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.readers
}

func (rw *rwLock) IsWriting() bool {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.writing
}

func (rw *rwLock) QueuedReaders() int {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.readq.Len()
}

func (rw *rwLock) QueuedWriters() int {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.writeq.Len()
}
