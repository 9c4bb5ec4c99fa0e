package reality

import "time"

// Clock abstracts wall time so deadline checks, drift timestamps, and
// activity windows are controllable in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the system wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }
