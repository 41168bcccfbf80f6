package engine

import (
	"log/slog"

	"github.com/talgya/crossroads/internal/config"
	"github.com/talgya/crossroads/internal/ecs"
)

// Scheduler is the root gate. Subsystems registered with it run in
// registration order, and only on ticks where the world holds a
// config.Simulation singleton.
type Scheduler struct {
	world   *ecs.World
	systems []Subsystem
	armed   bool
	tick    uint64
}

// NewScheduler creates a scheduler reading toggles from w.
func NewScheduler(w *ecs.World) *Scheduler {
	return &Scheduler{world: w}
}

// Register appends sub to the run order.
func (s *Scheduler) Register(sub Subsystem) {
	s.systems = append(s.systems, sub)
	slog.Info("subsystem registered", "system", sub.Name(), "order", len(s.systems))
}

// Systems returns the registered subsystems in run order.
func (s *Scheduler) Systems() []Subsystem {
	return s.systems
}

// Armed reports whether the last Update found the toggle singleton.
func (s *Scheduler) Armed() bool {
	return s.armed
}

// Update runs one tick. Without the toggle singleton nothing runs; with it,
// every enabled subsystem gets the same snapshot of clock and toggles.
func (s *Scheduler) Update(clock TimeSource) {
	s.tick++

	cfg, ok := ecs.TryGet[config.Simulation](s.world)
	if ok != s.armed {
		s.armed = ok
		if ok {
			slog.Debug("scheduler armed", "tick", s.tick)
		} else {
			slog.Debug("scheduler blocked: no simulation config", "tick", s.tick)
		}
	}
	if !ok {
		return
	}

	tc := TickContext{
		Tick:   s.tick,
		Now:    clock.ElapsedTime(),
		Delta:  clock.DeltaTime(),
		Config: cfg,
	}
	for _, sub := range s.systems {
		if !sub.Enabled(tc.Config) {
			continue
		}
		sub.Update(tc)
	}
}

// Complete is the synchronization point: it returns once every subsystem's
// deferred work has finished.
func (s *Scheduler) Complete() {
	for _, sub := range s.systems {
		sub.Complete()
	}
}
