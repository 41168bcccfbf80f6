package engine

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/talgya/crossroads/internal/config"
	"github.com/talgya/crossroads/internal/ecs"
)

// TickContext is the per-tick snapshot handed to every subsystem. Config is
// read from the world once per tick so no transform sees a mid-tick change.
type TickContext struct {
	Tick   uint64
	Now    time.Duration
	Delta  time.Duration
	Config config.Simulation
}

// Subsystem is one unit of scheduled work.
type Subsystem interface {
	Name() string
	// Enabled reports whether the subsystem's feature toggle is on.
	Enabled(cfg config.Simulation) bool
	// Update runs the subsystem for one tick. It must not panic.
	Update(tc TickContext)
	// Complete joins any deferred work from earlier updates.
	Complete()
}

// TransformOptions configures a TransformSystem.
type TransformOptions[T any] struct {
	Name     string
	Interval time.Duration
	Mode     DispatchMode
	Workers  int
	With     []ecs.Kind // Extra kinds an entity must carry to be selected

	Enabled   func(config.Simulation) bool
	Transform func(a *T, dt float64)
}

// TransformSystem applies a per-entity transform to every T record, at most
// once per Interval of sim time. Transforms receive the tick's delta in
// seconds and must touch only the record they are given.
type TransformSystem[T any] struct {
	name     string
	interval time.Duration

	enabled   func(config.Simulation) bool
	transform func(*T, float64)

	selector   *ecs.Selector[T]
	gate       Gate
	dispatcher *Dispatcher

	runs    atomic.Int64
	applied atomic.Int64
}

// NewTransformSystem builds the selector once and wires it to a gate and a
// dispatcher.
func NewTransformSystem[T any](w *ecs.World, opts TransformOptions[T]) *TransformSystem[T] {
	return &TransformSystem[T]{
		name:       opts.Name,
		interval:   opts.Interval,
		enabled:    opts.Enabled,
		transform:  opts.Transform,
		selector:   ecs.Query[T](w, opts.With...),
		dispatcher: NewDispatcher(opts.Mode, opts.Workers),
	}
}

func (s *TransformSystem[T]) Name() string { return s.name }

func (s *TransformSystem[T]) Enabled(cfg config.Simulation) bool {
	return s.enabled == nil || s.enabled(cfg)
}

// Update fires the transform when the gate is due.
func (s *TransformSystem[T]) Update(tc TickContext) {
	if !s.gate.Tick(tc.Now, s.interval) {
		return
	}
	s.runs.Add(1)

	dt := tc.Delta.Seconds()
	next := s.gate.Next()
	s.dispatcher.Dispatch(func(workers int) {
		n := s.selector.ForEachParallel(workers, func(_ ecs.Entity, a *T) {
			s.transform(a, dt)
		})
		s.applied.Add(int64(n))
		slog.Debug("subsystem ran",
			"system", s.name,
			"tick", tc.Tick,
			"entities", n,
			"next", next,
		)
	})
}

func (s *TransformSystem[T]) Complete() {
	s.dispatcher.Complete()
}

// Interval returns the minimum sim time between firings.
func (s *TransformSystem[T]) Interval() time.Duration { return s.interval }

// Mode returns how the system's fan-out is joined.
func (s *TransformSystem[T]) Mode() DispatchMode { return s.dispatcher.Mode }

// Runs returns how many times the gate has fired.
func (s *TransformSystem[T]) Runs() int64 { return s.runs.Load() }

// Applied returns the total number of per-entity transform applications
// from completed dispatches.
func (s *TransformSystem[T]) Applied() int64 { return s.applied.Load() }

// InFlight reports whether a deferred dispatch is still unjoined.
func (s *TransformSystem[T]) InFlight() bool { return s.dispatcher.InFlight() }
