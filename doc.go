/*
Package flowgate provides composable flow-control primitives for bounding,
sequencing, and admitting concurrent work.

Synchronization Primitives (pkg/sync):
  - semaphore: Counting semaphore with FIFO/LIFO/priority wake ordering
  - mutex: Lock with ownership tracking and scoped execution
  - monitor: Mutex plus predicate conditions (WaitWhile/Notify/NotifyAll)
  - barrier: N-party rendezvous, optionally cyclic
  - latch: Single-use countdown latch
  - rwlock: Readers-XOR-writer lock with optional writer priority

Admission Control:
  - ratelimit: Token bucket, leaky bucket, fixed and sliding window
  - backpressure: Bounded concurrency with six overflow strategies
  - resilience/bulkhead: Round-robin pool isolation
  - scheduling/priorityqueue: Priority executor with starvation prevention

Example usage:

	import (
		"github.com/vnykmshr/flowgate/pkg/backpressure"
		"github.com/vnykmshr/flowgate/pkg/ratelimit"
	)

	limiter, _ := ratelimit.New(100, time.Second, ratelimit.TokenBucket)
	ctrl, _ := backpressure.New(10, 50, backpressure.Buffer)

	err := ctrl.Execute(ctx, func(ctx context.Context) error {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		return handle(ctx)
	})

All primitives are safe for concurrent use, accept contexts on blocking
operations, and release held resources on every exit path, including
timeouts and cancellation.
*/
package flowgate
