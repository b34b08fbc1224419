package latch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vnykmshr/flowgate/internal/testutil"
	gferrors "github.com/vnykmshr/flowgate/pkg/common/errors"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		count   int
		wantErr bool
	}{
		{"valid", 3, false},
		{"one", 1, false},
		{"zero", 0, true},
		{"negative", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.count)
			if tt.wantErr {
				testutil.AssertErrorIs(t, err, gferrors.ErrInvalidConfiguration)
				return
			}
			testutil.AssertNoError(t, err)
			testutil.AssertEqual(t, l.Count(), tt.count)
			testutil.AssertEqual(t, l.IsComplete(), false)
		})
	}
}

func TestExactCountdown(t *testing.T) {
	l, err := New(3)
	testutil.AssertNoError(t, err)

	testutil.AssertNoError(t, l.CountDown())
	testutil.AssertEqual(t, l.Count(), 2)
	testutil.AssertEqual(t, l.IsComplete(), false)

	testutil.AssertNoError(t, l.CountDown())
	testutil.AssertNoError(t, l.CountDown())
	testutil.AssertEqual(t, l.Count(), 0)
	testutil.AssertEqual(t, l.IsComplete(), true)

	// A fourth countdown underflows.
	testutil.AssertErrorIs(t, l.CountDown(), gferrors.ErrUnderflow)
}

func TestAwaitReleasesAllWaiters(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	var completions atomic.Int32
	l, err := NewWithConfig(Config{
		Count:      2,
		OnComplete: func() { completions.Add(1) },
	})
	testutil.AssertNoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.Await(ctx)
			if err != nil || !ok {
				t.Errorf("await = (%v, %v), want (true, nil)", ok, err)
			}
		}()
	}

	testutil.AssertNoError(t, l.CountDown())
	testutil.AssertNoError(t, l.CountDown())
	wg.Wait()

	testutil.AssertEqual(t, completions.Load(), int32(1))
}

func TestAwaitImmediateWhenComplete(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	l, err := New(1)
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, l.CountDown())

	ok, err := l.Await(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, ok, true)
}

func TestAwaitTimeoutLeavesCountUntouched(t *testing.T) {
	l, err := New(2)
	testutil.AssertNoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	ok, err := l.Await(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, ok, false)
	testutil.AssertEqual(t, l.Count(), 2)
}

func TestAwaitCancel(t *testing.T) {
	l, err := New(1)
	testutil.AssertNoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := l.Await(ctx)
	testutil.AssertEqual(t, ok, false)
	testutil.AssertErrorIs(t, err, context.Canceled)
}

func TestConcurrentCountdown(t *testing.T) {
	const count = 20
	l, err := New(count)
	testutil.AssertNoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.CountDown(); err != nil {
				t.Errorf("countdown: %v", err)
			}
		}()
	}
	wg.Wait()

	testutil.AssertEqual(t, l.Count(), 0)
	testutil.AssertEqual(t, l.IsComplete(), true)
}
