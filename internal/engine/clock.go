package engine

import (
	"fmt"
	"time"
)

// TimeSource is the clock the scheduler reads once per tick.
type TimeSource interface {
	ElapsedTime() time.Duration // Sim time since the epoch
	DeltaTime() time.Duration   // Sim time covered by the current tick
}

// Clock is a monotonic sim clock advanced exactly once per host tick.
type Clock struct {
	elapsed time.Duration
	delta   time.Duration
}

// NewClock returns a clock starting at elapsed.
func NewClock(elapsed time.Duration) *Clock {
	return &Clock{elapsed: elapsed}
}

func (c *Clock) ElapsedTime() time.Duration { return c.elapsed }
func (c *Clock) DeltaTime() time.Duration   { return c.delta }

// Advance moves the clock forward by d. Negative steps are ignored.
func (c *Clock) Advance(d time.Duration) {
	if d < 0 {
		d = 0
	}
	c.delta = d
	c.elapsed += d
}

// SimTime renders elapsed sim time as days and clock time.
func SimTime(elapsed time.Duration) string {
	days := int(elapsed / (24 * time.Hour))
	rem := elapsed % (24 * time.Hour)
	h := int(rem / time.Hour)
	m := int(rem % time.Hour / time.Minute)
	s := rem % time.Minute
	return fmt.Sprintf("Day %d, %d:%02d:%06.3f", days+1, h, m, s.Seconds())
}
