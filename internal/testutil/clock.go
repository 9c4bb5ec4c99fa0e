package testutil

import (
	"sync"
	"time"
)

// ManualClock is a controllable wall clock for tests.
//
// Deadline checks, drift timestamps, and activity windows all read the
// clock through the reality.Clock interface, so a test that advances a
// ManualClock exercises time-dependent behavior without sleeping.
//
// Thread-safety: all methods are safe for concurrent use via internal
// mutex.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a clock frozen at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current frozen time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d. Negative d moves it backward;
// tests use that to simulate clock skew.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to an absolute time.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
