package ratelimit

import (
	"testing"
	"time"

	"github.com/vnykmshr/flowgate/internal/testutil"
	gferrors "github.com/vnykmshr/flowgate/pkg/common/errors"
)

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid token bucket", Config{MaxCalls: 10, Window: time.Second}, false},
		{"valid leaky bucket", Config{MaxCalls: 10, Window: time.Second, Strategy: LeakyBucket}, false},
		{"valid fixed window", Config{MaxCalls: 10, Window: time.Second, Strategy: FixedWindow}, false},
		{"valid sliding window", Config{MaxCalls: 10, Window: time.Second, Strategy: SlidingWindow}, false},
		{"zero max calls", Config{MaxCalls: 0, Window: time.Second}, true},
		{"negative max calls", Config{MaxCalls: -5, Window: time.Second}, true},
		{"zero window", Config{MaxCalls: 10, Window: 0}, true},
		{"negative window", Config{MaxCalls: 10, Window: -time.Second}, true},
		{"unknown strategy", Config{MaxCalls: 10, Window: time.Second, Strategy: Strategy(42)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewWithConfig(tt.cfg)
			if tt.wantErr {
				testutil.AssertErrorIs(t, err, gferrors.ErrInvalidConfiguration)
				return
			}
			testutil.AssertNoError(t, err)
			defer func() { _ = l.Close() }()
			testutil.AssertEqual(t, tt.cfg.Strategy, l.Strategy())
		})
	}
}

func TestStrategyString(t *testing.T) {
	tests := []struct {
		strategy Strategy
		want     string
	}{
		{TokenBucket, "token_bucket"},
		{LeakyBucket, "leaky_bucket"},
		{FixedWindow, "fixed_window"},
		{SlidingWindow, "sliding_window"},
		{Strategy(42), "strategy(42)"},
	}
	for _, tt := range tests {
		testutil.AssertEqual(t, tt.want, tt.strategy.String())
	}
}

func TestNewDefaultsToTokenBucket(t *testing.T) {
	l, err := New(5, time.Second)
	testutil.AssertNoError(t, err)
	defer func() { _ = l.Close() }()
	testutil.AssertEqual(t, TokenBucket, l.Strategy())
	testutil.AssertEqual(t, 5, l.Remaining())
}
