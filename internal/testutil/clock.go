package testutil

import (
	"sync"
	"time"
)

// FakeClock is a manually advanced clock for deterministic scheduler tests.
//
// It satisfies loop.Clock. Time only moves when the test calls Set or Advance.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeClock struct {
	mu  sync.Mutex
	now time.Duration
}

// NewFakeClock creates a clock reading start.
func NewFakeClock(start time.Duration) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new time.
func (c *FakeClock) Advance(d time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
	return c.now
}

// Set moves the clock to t. Moving backwards is allowed; the scheduler
// clamps negative deltas.
func (c *FakeClock) Set(t time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
