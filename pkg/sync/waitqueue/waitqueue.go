// Package waitqueue provides the ordered collection of suspended callers
// underlying flowgate's synchronization primitives. Each waiter holds a
// resume handle; granting a waiter resumes exactly that caller.
//
// A Queue performs no locking of its own. The owning primitive serializes
// all queue access under its own mutex, which is also what makes the
// granted-versus-removed race on cancellation resolvable: both sides
// observe the waiter's state under the same lock.
package waitqueue

import (
	"sort"
	"time"
)

// Mode governs waiter insertion and removal order.
type Mode int

const (
	// FIFO serves waiters in strict arrival order.
	FIFO Mode = iota

	// LIFO serves the most recently arrived waiter first.
	LIFO

	// Priority serves the highest-priority waiter first, with arrival
	// order breaking ties.
	Priority
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case FIFO:
		return "fifo"
	case LIFO:
		return "lifo"
	case Priority:
		return "priority"
	default:
		return "unknown"
	}
}

// Waiter represents one suspended caller. It is owned by the queue that
// holds it until it is granted or removed; it is never shared.
type Waiter struct {
	seq        int64
	priority   float64
	enqueuedAt time.Time
	ready      chan struct{}
	granted    bool
}

// Ready returns the channel closed when the waiter is granted.
func (w *Waiter) Ready() <-chan struct{} {
	return w.ready
}

// Granted reports whether the waiter has been granted. Must be read under
// the owning primitive's lock.
func (w *Waiter) Granted() bool {
	return w.granted
}

// Priority returns the waiter's ordering priority.
func (w *Waiter) Priority() float64 {
	return w.priority
}

// EnqueuedAt returns the time the waiter was registered.
func (w *Waiter) EnqueuedAt() time.Time {
	return w.enqueuedAt
}

// Queue is an ordered collection of waiters.
type Queue struct {
	mode    Mode
	nextSeq int64
	waiters []*Waiter
}

// New creates a queue with the given mode.
func New(mode Mode) *Queue {
	return &Queue{mode: mode}
}

// Mode returns the queue's ordering mode.
func (q *Queue) Mode() Mode {
	return q.mode
}

// Len returns the number of registered waiters.
func (q *Queue) Len() int {
	return len(q.waiters)
}

// Push registers a new waiter with the given priority and returns it.
// Priority is ignored outside Priority mode.
func (q *Queue) Push(priority float64) *Waiter {
	w := &Waiter{
		seq:        q.nextSeq,
		priority:   priority,
		enqueuedAt: time.Now(),
		ready:      make(chan struct{}),
	}
	q.nextSeq++

	if q.mode == Priority {
		// Insert before the first strictly lower-priority waiter, so
		// equal priorities keep arrival order.
		idx := sort.Search(len(q.waiters), func(i int) bool {
			return q.waiters[i].priority < priority
		})
		q.waiters = append(q.waiters, nil)
		copy(q.waiters[idx+1:], q.waiters[idx:])
		q.waiters[idx] = w
		return w
	}

	q.waiters = append(q.waiters, w)
	return w
}

// Peek returns the waiter that would be served next, or nil.
func (q *Queue) Peek() *Waiter {
	if len(q.waiters) == 0 {
		return nil
	}
	if q.mode == LIFO {
		return q.waiters[len(q.waiters)-1]
	}
	return q.waiters[0]
}

// Pop removes and returns the next waiter per the queue mode, or nil.
// The waiter is not granted; callers that want to resume it use PopGrant.
func (q *Queue) Pop() *Waiter {
	if len(q.waiters) == 0 {
		return nil
	}
	var w *Waiter
	if q.mode == LIFO {
		w = q.waiters[len(q.waiters)-1]
		q.waiters = q.waiters[:len(q.waiters)-1]
	} else {
		w = q.waiters[0]
		copy(q.waiters, q.waiters[1:])
		q.waiters = q.waiters[:len(q.waiters)-1]
	}
	return w
}

// Grant marks the waiter granted and resumes its caller.
func (q *Queue) Grant(w *Waiter) {
	if w.granted {
		return
	}
	w.granted = true
	close(w.ready)
}

// PopGrant removes the next waiter and resumes it. Returns the granted
// waiter, or nil if the queue is empty.
func (q *Queue) PopGrant() *Waiter {
	w := q.Pop()
	if w != nil {
		q.Grant(w)
	}
	return w
}

// GrantAll resumes every registered waiter and empties the queue.
// Returns the number of waiters released.
func (q *Queue) GrantAll() int {
	n := len(q.waiters)
	for _, w := range q.waiters {
		q.Grant(w)
	}
	q.waiters = q.waiters[:0]
	return n
}

// Remove unregisters a waiter that gave up (timeout or cancellation).
// Returns false if the waiter is no longer queued, which means it was
// already popped and possibly granted.
func (q *Queue) Remove(w *Waiter) bool {
	for i, cur := range q.waiters {
		if cur == w {
			copy(q.waiters[i:], q.waiters[i+1:])
			q.waiters = q.waiters[:len(q.waiters)-1]
			return true
		}
	}
	return false
}
