package semaphore

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vnykmshr/flowgate/internal/testutil"
	gferrors "github.com/vnykmshr/flowgate/pkg/common/errors"
	"github.com/vnykmshr/flowgate/pkg/sync/waitqueue"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		wantErr  bool
	}{
		{"valid", 3, false},
		{"one", 1, false},
		{"zero", 0, true},
		{"negative", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sem, err := New(tt.capacity)
			if tt.wantErr {
				testutil.AssertErrorIs(t, err, gferrors.ErrInvalidConfiguration)
				if sem != nil {
					t.Error("expected nil semaphore on error")
				}
				return
			}
			testutil.AssertNoError(t, err)
			testutil.AssertEqual(t, sem.Capacity(), tt.capacity)
			testutil.AssertEqual(t, sem.Available(), tt.capacity)
		})
	}
}

func TestAcquireRelease(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	sem, err := New(2)
	testutil.AssertNoError(t, err)

	testutil.AssertNoError(t, sem.Acquire(ctx))
	testutil.AssertNoError(t, sem.Acquire(ctx))
	testutil.AssertEqual(t, sem.Available(), 0)

	sem.Release()
	testutil.AssertEqual(t, sem.Available(), 1)
	sem.Release()
	testutil.AssertEqual(t, sem.Available(), 2)
}

func TestPermitAccounting(t *testing.T) {
	// available + outstanding acquisitions == capacity at quiescence.
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	sem, err := New(5)
	testutil.AssertNoError(t, err)

	for i := 1; i <= 5; i++ {
		testutil.AssertNoError(t, sem.Acquire(ctx))
		testutil.AssertEqual(t, sem.Available()+i, sem.Capacity())
	}
	for i := 4; i >= 0; i-- {
		sem.Release()
		testutil.AssertEqual(t, sem.Available()+i, sem.Capacity())
	}
}

func TestTryAcquire(t *testing.T) {
	sem, err := New(1)
	testutil.AssertNoError(t, err)

	if !sem.TryAcquire() {
		t.Fatal("first TryAcquire should succeed")
	}
	if sem.TryAcquire() {
		t.Fatal("second TryAcquire should fail at capacity")
	}
	sem.Release()
	if !sem.TryAcquire() {
		t.Fatal("TryAcquire should succeed after release")
	}
}

func TestAcquireTimeout(t *testing.T) {
	sem, err := New(1)
	testutil.AssertNoError(t, err)

	testutil.AssertNoError(t, sem.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = sem.Acquire(ctx)
	testutil.AssertErrorIs(t, err, gferrors.ErrTimeout)

	// The timed-out wait entry must be gone and the permit unleaked.
	testutil.AssertEqual(t, sem.QueueLength(), 0)
	sem.Release()
	testutil.AssertEqual(t, sem.Available(), 1)
}

func TestAcquireCancel(t *testing.T) {
	sem, err := New(1)
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, sem.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = sem.Acquire(ctx)
	testutil.AssertErrorIs(t, err, context.Canceled)
}

func TestFIFOWakeOrder(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	sem, err := New(1)
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, sem.Acquire(ctx))

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := sem.Acquire(ctx); err != nil {
				t.Errorf("acquire %d: %v", id, err)
				return
			}
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			sem.Release()
		}(i)
		// Serialize arrival so FIFO order is observable.
		testutil.Eventually(t, func() bool { return sem.QueueLength() == i+1 },
			time.Second, "waiter not queued")
	}

	sem.Release()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i, id := range order {
		testutil.AssertEqual(t, id, i)
	}
}

func TestPriorityWakeOrder(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	sem, err := NewWithConfig(Config{Capacity: 1, Mode: waitqueue.Priority})
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, sem.Acquire(ctx))

	var mu sync.Mutex
	var order []float64
	var wg sync.WaitGroup

	priorities := []float64{1, 5, 3}
	for i, p := range priorities {
		wg.Add(1)
		go func(p float64) {
			defer wg.Done()
			if err := sem.AcquireWithPriority(ctx, p); err != nil {
				t.Errorf("acquire p=%v: %v", p, err)
				return
			}
			mu.Lock()
			order = append(order, p)
			mu.Unlock()
			sem.Release()
		}(p)
		testutil.Eventually(t, func() bool { return sem.QueueLength() == i+1 },
			time.Second, "waiter not queued")
	}

	sem.Release()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	want := []float64{5, 3, 1}
	for i := range want {
		testutil.AssertEqual(t, order[i], want[i])
	}
}

func TestOnWaitingCallback(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	var mu sync.Mutex
	waited := 0
	sem, err := NewWithConfig(Config{
		Capacity: 1,
		Mode:     waitqueue.FIFO,
		OnWaiting: func() {
			mu.Lock()
			waited++
			mu.Unlock()
		},
	})
	testutil.AssertNoError(t, err)

	testutil.AssertNoError(t, sem.Acquire(ctx))

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := sem.Acquire(ctx); err != nil {
			t.Errorf("acquire: %v", err)
			return
		}
		sem.Release()
	}()

	testutil.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return waited == 1
	}, time.Second, "OnWaiting not fired")

	sem.Release()
	<-done
}

func TestWithReleasesOnError(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	sem, err := New(1)
	testutil.AssertNoError(t, err)

	wantErr := gferrors.NewOperationError("test", "body", gferrors.ErrClosed)
	err = sem.With(ctx, func() error { return wantErr })
	testutil.AssertErrorIs(t, err, gferrors.ErrClosed)
	testutil.AssertEqual(t, sem.Available(), 1)
}

func TestWithReleasesOnPanic(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	sem, err := New(1)
	testutil.AssertNoError(t, err)

	func() {
		defer func() { _ = recover() }()
		_ = sem.With(ctx, func() error { panic("boom") })
	}()

	testutil.AssertEqual(t, sem.Available(), 1)
}

func TestReleaseWithoutAcquirePanics(t *testing.T) {
	sem, err := New(1)
	testutil.AssertNoError(t, err)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on unmatched release")
		}
	}()
	sem.Release()
}

func TestConcurrencyBound(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	const capacity = 4
	sem, err := New(capacity)
	testutil.AssertNoError(t, err)

	var probe testutil.ConcurrencyProbe
	var g errgroup.Group
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			return sem.With(ctx, func() error {
				probe.Enter()
				defer probe.Exit()
				time.Sleep(time.Millisecond)
				return nil
			})
		})
	}
	testutil.AssertNoError(t, g.Wait())

	if probe.Max() > capacity {
		t.Errorf("observed %d concurrent holders, capacity %d", probe.Max(), capacity)
	}
	testutil.AssertEqual(t, probe.Total(), 50)
	testutil.AssertEqual(t, sem.Available(), capacity)
}
