package engine

import "time"

// Gate allows at most one firing per interval of sim time. Its deadline
// starts at the epoch, so the first evaluation always fires.
//
// A stalled host gets one firing when it resumes, never a catch-up burst:
// the next deadline is measured from now, not from the deadline that was
// missed, so the effective period stretches when ticks run late.
type Gate struct {
	next time.Duration
}

// Tick reports whether the gate is due at now, and if so arms the next
// deadline at now+interval.
func (g *Gate) Tick(now, interval time.Duration) bool {
	if now < g.next {
		return false
	}
	g.next = now + interval
	return true
}

// Next returns the earliest time the gate will fire again.
func (g *Gate) Next() time.Duration {
	return g.next
}

// Countdown is the decrementing form of Gate, driven by per-tick deltas
// instead of absolute time. It starts expired.
type Countdown struct {
	remaining time.Duration
}

// Tick subtracts delta and reports whether the countdown expired, resetting
// it to interval when it does.
func (c *Countdown) Tick(delta, interval time.Duration) bool {
	c.remaining -= delta
	if c.remaining > 0 {
		return false
	}
	c.remaining = interval
	return true
}

// Remaining returns the sim time left before the next firing.
func (c *Countdown) Remaining() time.Duration {
	return c.remaining
}
