// Package engine provides the tick loop, the root scheduler and the
// cadence-gated transform systems it drives.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/talgya/crossroads/internal/ecs"
)

// Engine drives the simulation forward on a fixed sim timestep.
type Engine struct {
	World     *ecs.World
	Scheduler *Scheduler
	Clock     *Clock
	Interval  time.Duration // Sim time per tick, also the real-time pacing at speed 1

	// OnTick runs after every tick, once deferred work has been joined.
	// It holds the world lock, so it may read and mutate freely.
	OnTick func(f Frame)

	mu    sync.RWMutex
	tick  uint64
	speed float64 // Multiplier: 1.0 = real-time, 0 = paused
}

// NewEngine creates an engine with default settings over w.
func NewEngine(w *ecs.World) *Engine {
	return &Engine{
		World:     w,
		Scheduler: NewScheduler(w),
		Clock:     NewClock(0),
		Interval:  100 * time.Millisecond,
		speed:     1.0,
	}
}

// Tick returns the number of ticks run so far.
func (e *Engine) Tick() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tick
}

// SetTick restores the tick counter, e.g. after loading saved state.
func (e *Engine) SetTick(t uint64) {
	e.mu.Lock()
	e.tick = t
	e.mu.Unlock()
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.speed
}

// SetSpeed changes the speed multiplier. Zero pauses.
func (e *Engine) SetSpeed(s float64) {
	if s < 0 {
		s = 0
	}
	e.mu.Lock()
	e.speed = s
	e.mu.Unlock()
}

// Run starts the simulation loop. Blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	slog.Info("simulation engine started", "tick", e.Tick(), "speed", e.Speed())

	for ctx.Err() == nil {
		speed := e.Speed()
		if speed <= 0 {
			// Paused — sleep briefly and check again.
			sleep(ctx, 100*time.Millisecond)
			continue
		}

		start := time.Now()

		e.Step()

		// Sleep for the remainder of the tick interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / speed)
		if elapsed < target {
			sleep(ctx, target-elapsed)
		}
	}

	slog.Info("simulation engine stopped", "tick", e.Tick(), "sim_time", SimTime(e.Clock.ElapsedTime()))
}

// Step advances the simulation by one tick: advance the clock, run the
// scheduler, join deferred work, then call OnTick.
func (e *Engine) Step() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tick++
	e.Clock.Advance(e.Interval)
	e.Scheduler.Update(e.Clock)
	e.Scheduler.Complete()

	if e.OnTick != nil {
		e.OnTick(e.frame())
	}
}

// Frame is the world as seen between two ticks.
type Frame struct {
	World   *ecs.World
	Tick    uint64
	Elapsed time.Duration
	Armed   bool
}

func (e *Engine) frame() Frame {
	return Frame{
		World:   e.World,
		Tick:    e.tick,
		Elapsed: e.Clock.ElapsedTime(),
		Armed:   e.Scheduler.Armed(),
	}
}

// View runs fn with shared access to the world between ticks.
func (e *Engine) View(fn func(f Frame)) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn(e.frame())
}

// Do runs fn with exclusive access to the world between ticks.
func (e *Engine) Do(fn func(f Frame)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Scheduler.Complete()
	fn(e.frame())
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
