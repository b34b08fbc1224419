/*
Package sync groups flowgate's low-level synchronization primitives.

  - waitqueue: Ordered queue of resumable waiters shared by the primitives
  - semaphore: Counting semaphore with FIFO/LIFO/priority wake ordering
  - mutex: Lock with ownership tracking, blocked callback, and scoped execution
  - monitor: Mutex plus predicate conditions (WaitWhile/Notify/NotifyAll)
  - barrier: N-party rendezvous, optionally cyclic, broken on timeout
  - latch: Single-use countdown latch
  - rwlock: Multiple readers XOR one writer, optional writer priority

All primitives follow the same waiting discipline: a caller is registered
in the relevant wait structure before it suspends, wake-ups transfer the
resource directly to the woken caller, and a timed-out or canceled wait
entry is always removed so nothing dangles and no permit leaks.
*/
package sync
