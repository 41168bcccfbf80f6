package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/crossroads/internal/config"
	"github.com/talgya/crossroads/internal/ecs"
)

type level struct{ Value float64 }
type marker struct{}

// recorder is a subsystem that logs what it saw.
type recorder struct {
	name  string
	flag  func(config.Simulation) bool
	log   *[]string
	seen  []TickContext
	joins int
}

func (r *recorder) Name() string { return r.name }
func (r *recorder) Enabled(cfg config.Simulation) bool {
	return r.flag == nil || r.flag(cfg)
}
func (r *recorder) Update(tc TickContext) {
	r.seen = append(r.seen, tc)
	*r.log = append(*r.log, r.name)
}
func (r *recorder) Complete() { r.joins++ }

func resourceFlag(c config.Simulation) bool { return c.EnableResourceSystem }
func religionFlag(c config.Simulation) bool { return c.EnableReligionSystem }

func TestSchedulerBlockedWithoutConfig(t *testing.T) {
	w := ecs.NewWorld()
	s := NewScheduler(w)
	var order []string
	r := &recorder{name: "a", log: &order}
	s.Register(r)

	clock := NewClock(0)
	clock.Advance(time.Second)
	s.Update(clock)
	assert.False(t, s.Armed())
	assert.Empty(t, r.seen)

	config.Publish(w, &config.Simulation{})
	s.Update(clock)
	assert.True(t, s.Armed())
	assert.Len(t, r.seen, 1)

	config.Publish(w, nil)
	s.Update(clock)
	assert.False(t, s.Armed(), "level-triggered: config can disappear again")
	assert.Len(t, r.seen, 1)
}

func TestSchedulerOrderAndSnapshot(t *testing.T) {
	w := ecs.NewWorld()
	config.Publish(w, &config.Simulation{EnableReligionSystem: true, EnableResourceSystem: true})

	s := NewScheduler(w)
	var order []string
	first := &recorder{name: "religion", flag: religionFlag, log: &order}
	second := &recorder{name: "resource", flag: resourceFlag, log: &order}
	s.Register(first)
	s.Register(second)
	require.Len(t, s.Systems(), 2)

	clock := NewClock(0)
	clock.Advance(200 * time.Millisecond)
	s.Update(clock)
	s.Complete()

	assert.Equal(t, []string{"religion", "resource"}, order)
	require.Len(t, first.seen, 1)
	assert.Equal(t, first.seen[0], second.seen[0], "both see the same snapshot")
	assert.Equal(t, 200*time.Millisecond, first.seen[0].Now)
	assert.Equal(t, 200*time.Millisecond, first.seen[0].Delta)
	assert.True(t, first.seen[0].Config.EnableResourceSystem)
	assert.Equal(t, 1, first.joins)
	assert.Equal(t, 1, second.joins)
}

func TestSchedulerSkipsDisabledSubsystem(t *testing.T) {
	w := ecs.NewWorld()
	config.Publish(w, &config.Simulation{EnableReligionSystem: true})

	s := NewScheduler(w)
	var order []string
	s.Register(&recorder{name: "religion", flag: religionFlag, log: &order})
	s.Register(&recorder{name: "resource", flag: resourceFlag, log: &order})

	s.Update(NewClock(0))
	assert.Equal(t, []string{"religion"}, order)
}

func newLevelSystem(w *ecs.World, interval time.Duration, mode DispatchMode) *TransformSystem[level] {
	return NewTransformSystem(w, TransformOptions[level]{
		Name:     "level",
		Interval: interval,
		Mode:     mode,
		Workers:  4,
		Enabled:  resourceFlag,
		Transform: func(l *level, dt float64) {
			l.Value += dt
		},
	})
}

func TestTransformSystemGatedByInterval(t *testing.T) {
	w := ecs.NewWorld()
	for i := 0; i < 10; i++ {
		ecs.Add(w, w.Spawn(), level{})
	}
	config.Publish(w, &config.Simulation{EnableResourceSystem: true})

	sys := newLevelSystem(w, time.Second, Synchronous)
	s := NewScheduler(w)
	s.Register(sys)

	clock := NewClock(0)
	for i := 0; i < 30; i++ { // 3s of 100ms ticks
		clock.Advance(100 * time.Millisecond)
		s.Update(clock)
		s.Complete()
	}

	assert.Equal(t, int64(3), sys.Runs())
	assert.Equal(t, int64(30), sys.Applied())
	assert.Equal(t, time.Second, sys.Interval())
	assert.Equal(t, Synchronous, sys.Mode())

	ecs.Query[level](w).ForEach(func(_ ecs.Entity, l *level) {
		assert.InDelta(t, 0.3, l.Value, 1e-9, "transform gets the tick delta, not the interval")
	})
}

func TestTransformSystemToggleNoBurst(t *testing.T) {
	w := ecs.NewWorld()
	ecs.Add(w, w.Spawn(), level{})
	config.Publish(w, &config.Simulation{EnableResourceSystem: true})

	sys := newLevelSystem(w, 500*time.Millisecond, Synchronous)
	s := NewScheduler(w)
	s.Register(sys)

	clock := NewClock(0)
	step := func(n int) {
		for i := 0; i < n; i++ {
			clock.Advance(100 * time.Millisecond)
			s.Update(clock)
			s.Complete()
		}
	}

	step(10) // fires at 0.1s and 0.6s
	require.Equal(t, int64(2), sys.Runs())
	applied := sys.Applied()

	config.Publish(w, &config.Simulation{EnableResourceSystem: false})
	step(50)
	assert.Equal(t, applied, sys.Applied(), "nothing applied while disabled")

	config.Publish(w, &config.Simulation{EnableResourceSystem: true})
	step(1)
	assert.Equal(t, int64(3), sys.Runs(), "one firing on resume, no catch-up")
	step(4)
	assert.Equal(t, int64(3), sys.Runs(), "then back on the gate's cadence")
	step(1)
	assert.Equal(t, int64(4), sys.Runs())
}

func TestTransformSystemDeferredJoinedBeforeNextDispatch(t *testing.T) {
	w := ecs.NewWorld()
	for i := 0; i < 500; i++ {
		ecs.Add(w, w.Spawn(), level{})
	}
	config.Publish(w, &config.Simulation{EnableResourceSystem: true})

	sys := newLevelSystem(w, 100*time.Millisecond, Deferred)
	s := NewScheduler(w)
	s.Register(sys)

	clock := NewClock(0)
	for i := 0; i < 5; i++ {
		clock.Advance(100 * time.Millisecond)
		s.Update(clock) // no Complete between ticks: Dispatch joins the prior job
	}
	assert.True(t, sys.InFlight())
	s.Complete()
	assert.False(t, sys.InFlight())
	assert.Equal(t, int64(2500), sys.Applied())
}

func TestTransformSystemWithExtraKinds(t *testing.T) {
	w := ecs.NewWorld()
	tagged := w.Spawn()
	ecs.Add(w, tagged, level{})
	ecs.Add(w, tagged, marker{})
	plain := w.Spawn()
	ecs.Add(w, plain, level{})
	config.Publish(w, &config.Simulation{})

	sys := NewTransformSystem(w, TransformOptions[level]{
		Name:      "tagged",
		Interval:  time.Second,
		With:      []ecs.Kind{ecs.KindOf[marker]()},
		Transform: func(l *level, _ float64) { l.Value = 1 },
	})
	s := NewScheduler(w)
	s.Register(sys)
	s.Update(NewClock(0))
	s.Complete()

	a, _ := ecs.Get[level](w, tagged)
	b, _ := ecs.Get[level](w, plain)
	assert.Equal(t, 1.0, a.Value)
	assert.Equal(t, 0.0, b.Value)
	assert.True(t, sys.Enabled(config.Simulation{}), "no toggle means always enabled")
}

func TestTransformSystemEmptySelectorIsNoop(t *testing.T) {
	w := ecs.NewWorld()
	config.Publish(w, &config.Simulation{EnableResourceSystem: true})
	sys := newLevelSystem(w, time.Second, Deferred)
	s := NewScheduler(w)
	s.Register(sys)

	assert.NotPanics(t, func() {
		s.Update(NewClock(0))
		s.Complete()
	})
	assert.Equal(t, int64(1), sys.Runs())
	assert.Equal(t, int64(0), sys.Applied())
}
