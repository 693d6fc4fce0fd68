// Package testutil provides deterministic substitutes for the wall
// clock used across engine tests.
package testutil

import (
	"sync"
	"time"
)

// Clock is a thread-safe deterministic clock for tests. Each call to
// Now returns a timestamp one step after the previous one, so code
// that orders entries by time sees a strict, reproducible order.
type Clock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

// NewClock creates a clock starting at start. Each Now call advances
// it by step. A zero step defaults to one second.
func NewClock(start time.Time, step time.Duration) *Clock {
	if step == 0 {
		step = time.Second
	}
	return &Clock{t: start, step: step}
}

// Now returns the current timestamp and advances the clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.t
	c.t = c.t.Add(c.step)
	return t
}

// Advance moves the clock forward without producing a timestamp.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// Peek returns the timestamp the next Now call will produce.
func (c *Clock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}
