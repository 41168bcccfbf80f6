package ecs

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct{ N int }
type tag struct{}
type settings struct{ On bool }

func TestSpawnAddGet(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()
	require.NotZero(t, e)

	Add(w, e, counter{N: 3})
	c, ok := Get[counter](w, e)
	require.True(t, ok)
	assert.Equal(t, 3, c.N)

	c.N = 7
	c2, _ := Get[counter](w, e)
	assert.Equal(t, 7, c2.N, "Get returns a pointer into the store")

	Add(w, e, counter{N: 1})
	assert.Equal(t, 1, Count[counter](w), "re-adding replaces instead of duplicating")
}

func TestAddToMissingEntityIsNoop(t *testing.T) {
	w := NewWorld()
	Add(w, Entity(99), counter{N: 1})
	assert.Equal(t, 0, Count[counter](w))
}

func TestRemoveSwapsLastRecord(t *testing.T) {
	w := NewWorld()
	var es []Entity
	for i := 0; i < 4; i++ {
		e := w.Spawn()
		Add(w, e, counter{N: i})
		es = append(es, e)
	}

	Remove[counter](w, es[1])
	assert.Equal(t, 3, Count[counter](w))
	_, ok := Get[counter](w, es[1])
	assert.False(t, ok)

	for i, e := range es {
		if i == 1 {
			continue
		}
		c, ok := Get[counter](w, e)
		require.True(t, ok)
		assert.Equal(t, i, c.N)
	}
}

func TestDestroyClearsAllKinds(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()
	Add(w, e, counter{})
	Add(w, e, tag{})

	w.Destroy(e)
	assert.False(t, w.Alive(e))
	assert.Equal(t, 0, Count[counter](w))
	assert.Equal(t, 0, Count[tag](w))
	assert.Equal(t, 0, w.Len())
}

func TestSingletons(t *testing.T) {
	w := NewWorld()
	_, ok := TryGet[settings](w)
	assert.False(t, ok)

	SetSingleton(w, settings{On: true})
	got, ok := TryGet[settings](w)
	require.True(t, ok)
	assert.True(t, got.On)

	got.On = false
	again, _ := TryGet[settings](w)
	assert.True(t, again.On, "TryGet returns a copy")

	RemoveSingleton[settings](w)
	_, ok = TryGet[settings](w)
	assert.False(t, ok)
}

func TestSelectorReflectsMembershipChanges(t *testing.T) {
	w := NewWorld()
	sel := Query[counter](w)
	assert.Equal(t, 0, sel.Len(), "no store yet")

	a := w.Spawn()
	Add(w, a, counter{})
	assert.Equal(t, 1, sel.Len())

	b := w.Spawn()
	Add(w, b, counter{})
	assert.Equal(t, 2, sel.Len())

	w.Destroy(a)
	assert.Equal(t, 1, sel.Len())
}

func TestSelectorRequiresAllKinds(t *testing.T) {
	w := NewWorld()
	both := w.Spawn()
	Add(w, both, counter{N: 1})
	Add(w, both, tag{})
	only := w.Spawn()
	Add(w, only, counter{N: 2})

	sel := Query[counter](w, KindOf[tag]())
	var seen []Entity
	sel.ForEach(func(e Entity, c *counter) {
		seen = append(seen, e)
	})
	assert.Equal(t, []Entity{both}, seen)

	missing := Query[counter](w, KindOf[settings]())
	assert.Equal(t, 0, missing.Len(), "required kind with no store matches nothing")
}

func TestForEachParallelVisitsEachOnce(t *testing.T) {
	w := NewWorld()
	const n = 1000
	for i := 0; i < n; i++ {
		Add(w, w.Spawn(), counter{})
	}

	sel := Query[counter](w)
	for _, workers := range []int{0, 1, 3, 8, 64} {
		sel.ForEachParallel(workers, func(_ Entity, c *counter) {
			c.N++
		})
	}

	var values []int
	sel.ForEach(func(_ Entity, c *counter) {
		values = append(values, c.N)
	})
	require.Len(t, values, n)
	sort.Ints(values)
	assert.Equal(t, 5, values[0])
	assert.Equal(t, 5, values[n-1])
}

func TestForEachParallelEmpty(t *testing.T) {
	w := NewWorld()
	Add(w, w.Spawn(), tag{})
	called := false
	Query[counter](w).ForEachParallel(4, func(Entity, *counter) { called = true })
	assert.False(t, called)
}
