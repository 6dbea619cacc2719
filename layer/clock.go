package layer

import (
	"sync"
	"time"
)

// Clock supplies the frame time layers throttle and animate against.
type Clock interface {
	Now() time.Duration
}

// SystemClock measures wall time since it was created.
type SystemClock struct{ start time.Time }

// NewSystemClock returns a clock starting at zero now.
func NewSystemClock() *SystemClock { return &SystemClock{start: time.Now()} }

// Now implements Clock.
func (c *SystemClock) Now() time.Duration { return time.Since(c.start) }

// ManualClock only moves when told to. Headless runs and tests use it.
type ManualClock struct {
	mu  sync.Mutex
	now time.Duration
}

// Now implements Clock.
func (c *ManualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Duration) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}
