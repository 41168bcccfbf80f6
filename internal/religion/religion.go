// Package religion evolves each religion's influence and stability over
// sim time. Religions never read one another.
package religion

import (
	"time"

	"github.com/talgya/crossroads/internal/config"
	"github.com/talgya/crossroads/internal/ecs"
	"github.com/talgya/crossroads/internal/engine"
)

// Attributes is the per-religion state record.
type Attributes struct {
	Influence float64 `json:"influence" db:"influence"` // 0.0–1.0
	Stability float64 `json:"stability" db:"stability"` // 0.0–1.0
	Growth    float64 `json:"growth" db:"growth"`       // Read-only rate, ≥ 0
	Decline   float64 `json:"decline" db:"decline"`     // Read-only rate, ≥ 0
}

const (
	influenceToStability = 0.1
	declineToStability   = 0.2
)

// Apply advances a by dt seconds. Both outputs are computed from the same
// pre-update snapshot and clamped to [0, 1].
func Apply(a *Attributes, dt float64) {
	in := *a
	a.Influence = clamp01(in.Influence + in.Growth*dt - in.Decline*dt)
	a.Stability = clamp01(in.Stability + (in.Influence*influenceToStability-in.Decline*declineToStability)*dt)
}

// clamp01 also maps NaN to 0 so one bad input cannot poison later ticks.
func clamp01(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v >= 0:
		return v
	default:
		return 0
	}
}

// Options configures the religion system.
type Options struct {
	Interval time.Duration
	Workers  int
}

// NewSystem returns the religion update system. Its fan-out is deferred and
// joined at the scheduler's synchronization point.
func NewSystem(w *ecs.World, opts Options) *engine.TransformSystem[Attributes] {
	return engine.NewTransformSystem(w, engine.TransformOptions[Attributes]{
		Name:     "religion",
		Interval: opts.Interval,
		Mode:     engine.Deferred,
		Workers:  opts.Workers,
		Enabled: func(cfg config.Simulation) bool {
			return cfg.EnableReligionSystem
		},
		Transform: Apply,
	})
}

// Summary aggregates religion state for reporting.
type Summary struct {
	Count         int     `json:"count"`
	MeanInfluence float64 `json:"mean_influence"`
	MeanStability float64 `json:"mean_stability"`
	Dominant      uint64  `json:"dominant,omitempty"` // Entity with the highest influence
}

// Summarize reads every religion record. Call it between ticks.
func Summarize(w *ecs.World) Summary {
	var s Summary
	best := -1.0
	ecs.Query[Attributes](w).ForEach(func(e ecs.Entity, a *Attributes) {
		s.Count++
		s.MeanInfluence += a.Influence
		s.MeanStability += a.Stability
		if a.Influence > best {
			best = a.Influence
			s.Dominant = uint64(e)
		}
	})
	if s.Count > 0 {
		s.MeanInfluence /= float64(s.Count)
		s.MeanStability /= float64(s.Count)
	}
	return s
}
