package testutil

import (
	"sync"
	"time"
)

// Clock is a manually advanced time source for tests.
//
// Components that accept a `func() time.Time` time source take
// clock.Now, which lets a test advance time explicitly instead of
// sleeping. The same scenario then produces identical timings on every
// run.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

// NewClock creates a Clock starting at a fixed reference instant.
func NewClock() *Clock {
	return &Clock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

// NewClockAt creates a Clock starting at the given instant.
func NewClockAt(t time.Time) *Clock {
	return &Clock{t: t}
}

// Now returns the current instant without advancing.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
