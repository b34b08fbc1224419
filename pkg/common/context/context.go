// Package context provides small helpers for interpreting context state
// in flowgate's blocking primitives.
package context

import (
	"context"
	"errors"

	gferrors "github.com/vnykmshr/flowgate/pkg/common/errors"
)

// IsCanceled returns true if the context has been canceled
func IsCanceled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// IsTimedOut returns true if the context was canceled due to a deadline
func IsTimedOut(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.DeadlineExceeded)
}

// Cause translates a finished context into the library error taxonomy:
// a deadline expiry becomes ErrTimeout, a plain cancellation surfaces as
// the context's own error. Callers use it when a wait ends because the
// context fired.
func Cause(ctx context.Context) error {
	if IsTimedOut(ctx) {
		return gferrors.ErrTimeout
	}
	return ctx.Err()
}
