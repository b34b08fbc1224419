package priorityqueue

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vnykmshr/flowgate/internal/testutil"
	gferrors "github.com/vnykmshr/flowgate/pkg/common/errors"
)

// prioTask carries its own priority for the extractor to read.
type prioTask struct {
	priority float64
	name     string
	fn       func(ctx context.Context) error
}

func (t *prioTask) Execute(ctx context.Context) error {
	if t.fn != nil {
		return t.fn(ctx)
	}
	return nil
}

func byTaskPriority(task Task) float64 {
	return task.(*prioTask).priority
}

// startGatedExecutor creates a single-worker executor whose worker is
// pinned on a gated task, so subsequent submissions accumulate in the
// queue in a deterministic state.
func startGatedExecutor(t *testing.T, cfg Config) (Executor, *testutil.Gate) {
	t.Helper()
	cfg.Priority = byTaskPriority
	e, err := NewWithConfig(cfg)
	testutil.AssertNoError(t, err)

	gate := testutil.NewGate()
	running := make(chan struct{})
	_, err = e.Submit(context.Background(), &prioTask{
		priority: 1000,
		name:     "pin",
		fn: func(ctx context.Context) error {
			close(running)
			return gate.Wait(context.Background())
		},
	})
	testutil.AssertNoError(t, err)
	<-running
	return e, gate
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{MaxConcurrent: 2, QueueSize: 4}, false},
		{"valid with threshold", Config{MaxConcurrent: 1, QueueSize: 1, StarvationThreshold: time.Second}, false},
		{"zero workers", Config{MaxConcurrent: 0, QueueSize: 4}, true},
		{"zero queue", Config{MaxConcurrent: 1, QueueSize: 0}, true},
		{"negative threshold", Config{MaxConcurrent: 1, QueueSize: 1, StarvationThreshold: -time.Second}, true},
		{"unknown policy", Config{MaxConcurrent: 1, QueueSize: 1, OnQueueFull: OverflowPolicy(42)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewWithConfig(tt.cfg)
			if tt.wantErr {
				testutil.AssertErrorIs(t, err, gferrors.ErrInvalidConfiguration)
				return
			}
			testutil.AssertNoError(t, err)
			<-e.Shutdown()
		})
	}
}

func TestSubmitAndExecute(t *testing.T) {
	e, err := New(2, 4)
	testutil.AssertNoError(t, err)

	id, err := e.Submit(context.Background(), TaskFunc(func(ctx context.Context) error {
		return nil
	}))
	testutil.AssertNoError(t, err)
	if id == uuid.Nil {
		t.Fatal("submission should be assigned a non-nil ID")
	}

	select {
	case r := <-e.Results():
		testutil.AssertEqual(t, id, r.ID)
		testutil.AssertNoError(t, r.Error)
	case <-time.After(testutil.TestTimeout):
		t.Fatal("result not delivered")
	}
	<-e.Shutdown()
}

func TestSubmitNilTask(t *testing.T) {
	e, err := New(1, 1)
	testutil.AssertNoError(t, err)
	defer func() { <-e.Shutdown() }()

	_, err = e.Submit(context.Background(), nil)
	testutil.AssertErrorIs(t, err, gferrors.ErrInvalidConfiguration)
}

func TestPriorityOrder(t *testing.T) {
	e, gate := startGatedExecutor(t, Config{MaxConcurrent: 1, QueueSize: 8})
	defer func() { <-e.Shutdown() }()
	ctx := context.Background()

	var mu sync.Mutex
	var order []string
	record := func(name string) func(context.Context) error {
		return func(ctx context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	for _, spec := range []struct {
		name     string
		priority float64
	}{{"low", 1}, {"high", 5}, {"mid", 3}} {
		_, err := e.Submit(ctx, &prioTask{priority: spec.priority, name: spec.name, fn: record(spec.name)})
		testutil.AssertNoError(t, err)
	}
	testutil.AssertEqual(t, 3, e.QueueLength())

	gate.Open()
	testutil.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	}, testutil.TestTimeout, "queued tasks should all run")

	mu.Lock()
	testutil.AssertEqual(t, "high,mid,low", strings.Join(order, ","))
	mu.Unlock()
}

func TestEqualPriorityIsFIFO(t *testing.T) {
	e, gate := startGatedExecutor(t, Config{MaxConcurrent: 1, QueueSize: 8})
	defer func() { <-e.Shutdown() }()
	ctx := context.Background()

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"a", "b", "c"} {
		n := name
		_, err := e.Submit(ctx, &prioTask{priority: 2, name: n, fn: func(ctx context.Context) error {
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			return nil
		}})
		testutil.AssertNoError(t, err)
	}

	gate.Open()
	testutil.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	}, testutil.TestTimeout, "queued tasks should all run")

	mu.Lock()
	testutil.AssertEqual(t, "a,b,c", strings.Join(order, ","))
	mu.Unlock()
}

func TestDropLowestPriorityEvicts(t *testing.T) {
	var droppedMu sync.Mutex
	var droppedIDs []uuid.UUID
	e, gate := startGatedExecutor(t, Config{
		MaxConcurrent: 1,
		QueueSize:     2,
		OnItemDropped: func(id uuid.UUID, priority float64) {
			droppedMu.Lock()
			droppedIDs = append(droppedIDs, id)
			droppedMu.Unlock()
		},
	})
	defer func() { <-e.Shutdown() }()
	ctx := context.Background()

	_, err := e.Submit(ctx, &prioTask{priority: 5, name: "keep"})
	testutil.AssertNoError(t, err)
	lowID, err := e.Submit(ctx, &prioTask{priority: 1, name: "victim"})
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, 2, e.QueueLength())

	// Lower than the tail: the new submission is the one rejected.
	_, err = e.Submit(ctx, &prioTask{priority: 0, name: "too-low"})
	testutil.AssertErrorIs(t, err, gferrors.ErrCapacityExceeded)

	// Higher than the tail: the tail is evicted to make room.
	midID, err := e.Submit(ctx, &prioTask{priority: 3, name: "mid"})
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, 2, e.QueueLength())

	droppedMu.Lock()
	testutil.AssertEqual(t, 1, len(droppedIDs))
	testutil.AssertEqual(t, lowID, droppedIDs[0])
	droppedMu.Unlock()

	// The eviction surfaces as a cancelled result.
	select {
	case r := <-e.Results():
		testutil.AssertEqual(t, lowID, r.ID)
		testutil.AssertErrorIs(t, r.Error, gferrors.ErrCancelled)
		testutil.AssertEqual(t, -1, r.WorkerID)
	case <-time.After(testutil.TestTimeout):
		t.Fatal("eviction result not delivered")
	}

	gate.Open()
	_ = midID
}

func TestDropNewAndErrorReject(t *testing.T) {
	for _, policy := range []OverflowPolicy{DropNew, ErrorOnFull} {
		t.Run(policy.String(), func(t *testing.T) {
			e, gate := startGatedExecutor(t, Config{
				MaxConcurrent: 1,
				QueueSize:     1,
				OnQueueFull:   policy,
			})
			defer func() { <-e.Shutdown() }()
			ctx := context.Background()

			_, err := e.Submit(ctx, &prioTask{priority: 1})
			testutil.AssertNoError(t, err)

			// Even a higher-priority submission is rejected.
			_, err = e.Submit(ctx, &prioTask{priority: 99})
			testutil.AssertErrorIs(t, err, gferrors.ErrCapacityExceeded)
			testutil.AssertEqual(t, 1, e.QueueLength())
			gate.Open()
		})
	}
}

func TestWaitForSpaceBlocksUntilRoom(t *testing.T) {
	e, gate := startGatedExecutor(t, Config{
		MaxConcurrent: 1,
		QueueSize:     1,
		OnQueueFull:   WaitForSpace,
	})
	defer func() { <-e.Shutdown() }()
	ctx := context.Background()

	_, err := e.Submit(ctx, &prioTask{priority: 1})
	testutil.AssertNoError(t, err)

	submitted := make(chan error, 1)
	go func() {
		_, err := e.Submit(ctx, &prioTask{priority: 2})
		submitted <- err
	}()

	select {
	case <-submitted:
		t.Fatal("submission should block while the queue is full")
	case <-time.After(50 * time.Millisecond):
	}

	// The pinned task finishes, the worker pops the queue, and the
	// blocked submitter finds room.
	gate.Open()
	select {
	case err := <-submitted:
		testutil.AssertNoError(t, err)
	case <-time.After(testutil.TestTimeout):
		t.Fatal("blocked submission never admitted")
	}
}

func TestWaitForSpaceTimeout(t *testing.T) {
	e, gate := startGatedExecutor(t, Config{
		MaxConcurrent: 1,
		QueueSize:     1,
		OnQueueFull:   WaitForSpace,
	})
	defer func() { <-e.Shutdown() }()

	_, err := e.Submit(context.Background(), &prioTask{priority: 1})
	testutil.AssertNoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = e.Submit(ctx, &prioTask{priority: 2})
	testutil.AssertErrorIs(t, err, gferrors.ErrTimeout)
	gate.Open()
}

func TestStarvationBoost(t *testing.T) {
	clk := testutil.NewMockClock(time.Unix(1000, 0))
	var boostMu sync.Mutex
	var boosts []float64
	e, gate := startGatedExecutor(t, Config{
		MaxConcurrent:       1,
		QueueSize:           8,
		StarvationThreshold: 100 * time.Millisecond,
		Clock:               clk,
		OnStarvationBoost: func(id uuid.UUID, boost float64) {
			boostMu.Lock()
			boosts = append(boosts, boost)
			boostMu.Unlock()
		},
	})
	defer func() { <-e.Shutdown() }()
	ctx := context.Background()

	var mu sync.Mutex
	var order []string
	record := func(name string) func(context.Context) error {
		return func(ctx context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	// A low-priority item waits past the threshold...
	_, err := e.Submit(ctx, &prioTask{priority: 1, name: "starved", fn: record("starved")})
	testutil.AssertNoError(t, err)
	clk.Advance(10 * time.Second)

	// ...while fresh high-priority work keeps arriving.
	_, err = e.Submit(ctx, &prioTask{priority: 50, name: "fresh", fn: record("fresh")})
	testutil.AssertNoError(t, err)

	gate.Open()
	testutil.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	}, testutil.TestTimeout, "queued tasks should all run")

	// The 10s wait boosts the starved item by 10000, past priority 50.
	mu.Lock()
	testutil.AssertEqual(t, "starved,fresh", strings.Join(order, ","))
	mu.Unlock()

	boostMu.Lock()
	testutil.AssertEqual(t, 1, len(boosts))
	testutil.AssertEqual(t, 10000.0, boosts[0])
	boostMu.Unlock()
}

func TestBoostAppliedOnce(t *testing.T) {
	clk := testutil.NewMockClock(time.Unix(1000, 0))
	boostCount := 0
	var boostMu sync.Mutex
	e, gate := startGatedExecutor(t, Config{
		MaxConcurrent:       1,
		QueueSize:           8,
		StarvationThreshold: 100 * time.Millisecond,
		Clock:               clk,
		OnStarvationBoost: func(id uuid.UUID, boost float64) {
			boostMu.Lock()
			boostCount++
			boostMu.Unlock()
		},
	})
	ctx := context.Background()

	done := make(chan struct{}, 8)
	// Two starved items; each must be boosted exactly once even though
	// multiple dispatches rescan the queue.
	for i := 0; i < 2; i++ {
		_, err := e.Submit(ctx, &prioTask{priority: 1, fn: func(ctx context.Context) error {
			done <- struct{}{}
			return nil
		}})
		testutil.AssertNoError(t, err)
	}
	clk.Advance(time.Second)

	gate.Open()
	<-done
	<-done
	<-e.Shutdown()

	boostMu.Lock()
	testutil.AssertEqual(t, 2, boostCount)
	boostMu.Unlock()
}

func TestStrictOrderWithoutThreshold(t *testing.T) {
	clk := testutil.NewMockClock(time.Unix(1000, 0))
	e, gate := startGatedExecutor(t, Config{
		MaxConcurrent: 1,
		QueueSize:     8,
		Clock:         clk,
	})
	defer func() { <-e.Shutdown() }()
	ctx := context.Background()

	var mu sync.Mutex
	var order []string

	_, err := e.Submit(ctx, &prioTask{priority: 1, name: "old-low", fn: func(ctx context.Context) error {
		mu.Lock()
		order = append(order, "old-low")
		mu.Unlock()
		return nil
	}})
	testutil.AssertNoError(t, err)

	// However long the low-priority item waits, with boosting disabled
	// strict priority order holds.
	clk.Advance(time.Hour)
	_, err = e.Submit(ctx, &prioTask{priority: 2, name: "fresh-high", fn: func(ctx context.Context) error {
		mu.Lock()
		order = append(order, "fresh-high")
		mu.Unlock()
		return nil
	}})
	testutil.AssertNoError(t, err)

	gate.Open()
	testutil.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	}, testutil.TestTimeout, "queued tasks should all run")

	mu.Lock()
	testutil.AssertEqual(t, "fresh-high,old-low", strings.Join(order, ","))
	mu.Unlock()
}

func TestShutdownDrainsQueue(t *testing.T) {
	e, gate := startGatedExecutor(t, Config{MaxConcurrent: 1, QueueSize: 8})
	ctx := context.Background()

	var completed sync.WaitGroup
	completed.Add(3)
	for i := 0; i < 3; i++ {
		_, err := e.Submit(ctx, &prioTask{priority: 1, fn: func(ctx context.Context) error {
			completed.Done()
			return nil
		}})
		testutil.AssertNoError(t, err)
	}

	gate.Open()
	done := e.Shutdown()
	select {
	case <-done:
	case <-time.After(testutil.TestTimeout):
		t.Fatal("shutdown did not complete")
	}
	completed.Wait()

	// Intake is closed and the results channel drains to closed.
	_, err := e.Submit(ctx, &prioTask{priority: 1})
	testutil.AssertErrorIs(t, err, gferrors.ErrClosed)

	deadline := time.After(testutil.TestTimeout)
	for {
		select {
		case _, ok := <-e.Results():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("results channel never closed")
		}
	}
}

func TestPanicBecomesResultError(t *testing.T) {
	e, err := New(1, 2)
	testutil.AssertNoError(t, err)

	id, err := e.Submit(context.Background(), TaskFunc(func(ctx context.Context) error {
		panic("task exploded")
	}))
	testutil.AssertNoError(t, err)

	select {
	case r := <-e.Results():
		testutil.AssertEqual(t, id, r.ID)
		if r.Error == nil || !strings.Contains(r.Error.Error(), "task panicked") {
			t.Fatalf("expected panic error, got %v", r.Error)
		}
	case <-time.After(testutil.TestTimeout):
		t.Fatal("panic result not delivered")
	}

	// The worker survived and keeps serving.
	id2, err := e.Submit(context.Background(), TaskFunc(func(ctx context.Context) error { return nil }))
	testutil.AssertNoError(t, err)
	select {
	case r := <-e.Results():
		testutil.AssertEqual(t, id2, r.ID)
		testutil.AssertNoError(t, r.Error)
	case <-time.After(testutil.TestTimeout):
		t.Fatal("post-panic result not delivered")
	}
	<-e.Shutdown()
}
