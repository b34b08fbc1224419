// Package ratelimit provides call-rate limiting with four interchangeable
// strategies behind a single Limiter interface.
//
// All strategies share one configuration shape: at most MaxCalls calls per
// Window. They differ in how admissions are spread across the window:
//
//   - TokenBucket refills the full allowance at window boundaries and
//     permits bursts up to MaxCalls.
//   - LeakyBucket admits callers at a strictly uniform rate of one call
//     every Window/MaxCalls, queueing the rest in FIFO order.
//   - FixedWindow counts calls against a trailing window and rejects or
//     delays once the count reaches MaxCalls.
//   - SlidingWindow behaves like FixedWindow with a small guard added to
//     wait times so a caller never lands exactly on the expiry boundary.
//
// Limiters are safe for concurrent use. Allow is the non-blocking probe,
// Wait blocks until admission or context expiry, and Execute combines Wait
// with running a function.
//
//	limiter, err := ratelimit.New(100, time.Second)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer limiter.Close()
//
//	if err := limiter.Execute(ctx, callBackend); err != nil {
//		log.Printf("rate limited: %v", err)
//	}
package ratelimit
