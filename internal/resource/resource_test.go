package resource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/crossroads/internal/config"
	"github.com/talgya/crossroads/internal/ecs"
	"github.com/talgya/crossroads/internal/engine"
)

func TestApplyRegeneratesMetalOnly(t *testing.T) {
	metal := Attributes{Kind: Metal, Amount: 10}
	Apply(&metal, DefaultRegenerationRate, 2.0)
	assert.InDelta(t, 10.2, metal.Amount, 1e-12)

	for _, k := range []Kind{Wood, Stone, Grain, Gold} {
		other := Attributes{Kind: k, Amount: 10}
		Apply(&other, DefaultRegenerationRate, 2.0)
		assert.Equal(t, 10.0, other.Amount, "kind %s", k)
	}
}

func TestApplyIsMonotonic(t *testing.T) {
	a := Attributes{Kind: Metal}
	prev := a.Amount
	for i := 0; i < 100; i++ {
		Apply(&a, DefaultRegenerationRate, 0.016)
		require.GreaterOrEqual(t, a.Amount, prev)
		prev = a.Amount
	}
}

func TestKindStrings(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	k, err := ParseKind("METAL")
	require.NoError(t, err)
	assert.Equal(t, Metal, k)

	_, err = ParseKind("mithril")
	assert.Error(t, err)
	assert.Equal(t, "kind(9)", Kind(9).String())
}

func TestSystemConfigToggle(t *testing.T) {
	w := ecs.NewWorld()
	metal := w.Spawn()
	ecs.Add(w, metal, Attributes{Kind: Metal, Amount: 10})
	wood := w.Spawn()
	ecs.Add(w, wood, Attributes{Kind: Wood, Amount: 10})

	sys := NewSystem(w, Options{Interval: time.Second, RegenerationRate: DefaultRegenerationRate, Workers: 2})
	assert.Equal(t, "resource", sys.Name())
	assert.Equal(t, engine.Synchronous, sys.Mode())

	eng := engine.NewEngine(w)
	eng.Interval = time.Second
	eng.Scheduler.Register(sys)

	// No config at all: blocked.
	eng.Step()
	assert.Equal(t, int64(0), sys.Applied())

	config.Publish(w, &config.Simulation{EnableResourceSystem: true})
	eng.Step()
	eng.Step()
	assert.Equal(t, int64(2), sys.Runs())

	config.Publish(w, &config.Simulation{EnableResourceSystem: false})
	applied := sys.Applied()
	for i := 0; i < 5; i++ {
		eng.Step()
	}
	assert.Equal(t, applied, sys.Applied())

	config.Publish(w, &config.Simulation{EnableResourceSystem: true})
	eng.Step()
	assert.Equal(t, int64(3), sys.Runs())

	m, _ := ecs.Get[Attributes](w, metal)
	assert.InDelta(t, 10.3, m.Amount, 1e-9)
	wd, _ := ecs.Get[Attributes](w, wood)
	assert.Equal(t, 10.0, wd.Amount)
}

func TestTotals(t *testing.T) {
	w := ecs.NewWorld()
	ecs.Add(w, w.Spawn(), Attributes{Kind: Metal, Amount: 1.5})
	ecs.Add(w, w.Spawn(), Attributes{Kind: Metal, Amount: 2})
	ecs.Add(w, w.Spawn(), Attributes{Kind: Gold, Amount: 4})

	totals := Totals(w)
	assert.InDelta(t, 3.5, totals[Metal], 1e-12)
	assert.Equal(t, 4.0, totals[Gold])
	assert.Zero(t, totals[Wood])
}
