// Package barrier provides an N-party rendezvous point, optionally
// cyclic, with an optional action run by the last arriving party.
package barrier

import (
	"context"
	"sync"

	gfcontext "github.com/vnykmshr/flowgate/pkg/common/context"
	gferrors "github.com/vnykmshr/flowgate/pkg/common/errors"
	"github.com/vnykmshr/flowgate/pkg/common/validation"
)

// Barrier blocks arriving parties until the configured number have
// arrived, then releases them all at once. A timeout while waiting
// breaks the barrier: the remaining waiters fail with ErrTimeout and
// later arrivals fail with ErrBroken until Reset.
type Barrier interface {
	// Await blocks until all parties have arrived. The party that
	// completes the rendezvous runs the configured Action before any
	// waiter resumes.
	Await(ctx context.Context) error

	// Reset forces the barrier back to its initial waiting state.
	// Parties currently suspended are released with ErrBroken.
	Reset()

	// Parties returns the configured party count.
	Parties() int

	// Arrived returns the number of parties waiting in the current cycle.
	Arrived() int

	// IsBroken reports whether the barrier is broken.
	IsBroken() bool
}

// Config holds configuration options for creating a Barrier.
type Config struct {
	// Parties is the number of arrivals per rendezvous. Must be positive.
	Parties int

	// Cyclic makes the barrier reusable: after a release it returns to
	// waiting. A non-cyclic barrier breaks after its single release.
	Cyclic bool

	// Action, if set, runs exactly once per rendezvous, on the last
	// arriving party, before the waiters resume.
	Action func()
}

// generation is one rendezvous cycle. Waiters capture the generation
// they joined; release closes its channel with the outcome already set,
// so late wakes always see the right result.
type generation struct {
	release chan struct{}
	err     error
}

type barrier struct {
	mu      sync.Mutex
	cfg     Config
	arrived int
	broken  bool
	gen     *generation
}

// New creates a barrier for the given number of parties.
func New(parties int) (Barrier, error) {
	return NewWithConfig(Config{Parties: parties})
}

// NewWithConfig creates a barrier from the given configuration.
func NewWithConfig(cfg Config) (Barrier, error) {
	if err := validation.ValidatePositive("barrier", "parties", cfg.Parties); err != nil {
		return nil, err
	}
	return &barrier{
		cfg: cfg,
		gen: &generation{release: make(chan struct{})},
	}, nil
}

func (b *barrier) Await(ctx context.Context) error {
	b.mu.Lock()
	if b.broken {
		b.mu.Unlock()
		return gferrors.ErrBroken
	}

	b.arrived++
	if b.arrived == b.cfg.Parties {
		// Rendezvous complete: run the action, then release everyone.
		if b.cfg.Action != nil {
			b.cfg.Action()
		}
		g := b.gen
		b.arrived = 0
		if !b.cfg.Cyclic {
			b.broken = true
		}
		b.gen = &generation{release: make(chan struct{})}
		close(g.release)
		b.mu.Unlock()
		return nil
	}

	g := b.gen
	b.mu.Unlock()

	select {
	case <-g.release:
		return g.err
	case <-ctx.Done():
		b.mu.Lock()
		select {
		case <-g.release:
			// Released while we were giving up; honor the outcome.
			b.mu.Unlock()
			return g.err
		default:
		}
		// Break the barrier for everyone in this generation.
		b.broken = true
		b.arrived = 0
		g.err = gferrors.ErrTimeout
		b.gen = &generation{release: make(chan struct{})}
		close(g.release)
		b.mu.Unlock()
		return gfcontext.Cause(ctx)
	}
}

func (b *barrier) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.arrived > 0 {
		g := b.gen
		g.err = gferrors.ErrBroken
		b.gen = &generation{release: make(chan struct{})}
		close(g.release)
	}
	b.arrived = 0
	b.broken = false
}

func (b *barrier) Parties() int {
	return b.cfg.Parties
}

func (b *barrier) Arrived() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.arrived
}

func (b *barrier) IsBroken() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.broken
}
