// Package clock abstracts time for flowgate components so that rate
// limiters and starvation tracking can be tested deterministically.
package clock

import "time"

// Clock provides the current time. It can be mocked for testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}
