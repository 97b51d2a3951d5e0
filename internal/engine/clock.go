package engine

import (
	"sync/atomic"
	"time"
)

// Clock supplies the current time to time::now.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock returns a settable instant. Safe for concurrent use.
type FixedClock struct {
	nanos atomic.Int64
}

// NewFixedClock creates a clock stopped at t.
func NewFixedClock(t time.Time) *FixedClock {
	c := &FixedClock{}
	c.Set(t)
	return c
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.nanos.Store(t.UnixNano())
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.nanos.Add(int64(d))
}

func (c *FixedClock) Now() time.Time {
	return time.Unix(0, c.nanos.Load()).UTC()
}
