package testutil

import (
	"context"
	"sync"
	"time"
)

// MockClock implements the clock.Clock interface for testing with
// controllable time. This is used across rate limiter and starvation
// tests to avoid actual time delays.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockClock creates a new MockClock starting at the given time.
// If zero time is provided, uses current time.
func NewMockClock(start time.Time) *MockClock {
	if start.IsZero() {
		start = time.Now()
	}
	return &MockClock{now: start}
}

// Now returns the current mock time.
func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the mock clock forward by the given duration.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Set sets the mock clock to a specific time.
func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// ConcurrencyProbe tracks how many callers are inside a critical section
// simultaneously, recording the high-water mark. Tests use it to verify
// that controllers never admit more than their configured capacity.
type ConcurrencyProbe struct {
	mu      sync.Mutex
	current int
	max     int
	total   int
}

// Enter records one caller entering the probed section.
func (p *ConcurrencyProbe) Enter() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current++
	p.total++
	if p.current > p.max {
		p.max = p.current
	}
}

// Exit records one caller leaving the probed section.
func (p *ConcurrencyProbe) Exit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current--
}

// Max returns the highest number of simultaneous callers observed.
func (p *ConcurrencyProbe) Max() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.max
}

// Total returns the total number of Enter calls.
func (p *ConcurrencyProbe) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// Gate is a manually released blocker for holding tasks in flight during
// tests. A task calls Wait; the test calls Open to let all waiters through.
type Gate struct {
	once sync.Once
	ch   chan struct{}
}

// NewGate creates a closed Gate.
func NewGate() *Gate {
	return &Gate{ch: make(chan struct{})}
}

// Wait blocks until the gate opens or the context finishes.
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Open releases all current and future waiters. Safe to call repeatedly.
func (g *Gate) Open() {
	g.once.Do(func() { close(g.ch) })
}
