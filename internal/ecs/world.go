// Package ecs provides the entity store the simulation runs on: entities,
// per-kind attribute stores, process-wide singletons and standing queries.
package ecs

import (
	"reflect"
	"sync"
)

// Entity is an opaque handle. Zero is never issued.
type Entity uint64

// Kind identifies an attribute record type.
type Kind struct {
	t reflect.Type
}

// KindOf returns the Kind for attribute type T.
func KindOf[T any]() Kind {
	return Kind{t: reflect.TypeOf((*T)(nil)).Elem()}
}

// String returns the Go type name of the kind.
func (k Kind) String() string {
	if k.t == nil {
		return "<nil>"
	}
	return k.t.String()
}

// storage is the type-erased view of a Store used for membership checks
// and entity teardown.
type storage interface {
	has(e Entity) bool
	remove(e Entity)
	len() int
}

// World owns entities and their attribute records.
//
// Entity and attribute mutation is not synchronized: callers must not spawn,
// destroy, add or remove while a selector dispatch is running. Singletons
// are guarded and may be published from any goroutine.
type World struct {
	next     Entity
	entities map[Entity]struct{}
	stores   map[Kind]storage

	singletonMu sync.RWMutex
	singletons  map[reflect.Type]any
}

// NewWorld creates an empty world.
func NewWorld() *World {
	return &World{
		entities:   make(map[Entity]struct{}),
		stores:     make(map[Kind]storage),
		singletons: make(map[reflect.Type]any),
	}
}

// Spawn creates a new entity with no attributes.
func (w *World) Spawn() Entity {
	w.next++
	w.entities[w.next] = struct{}{}
	return w.next
}

// Destroy removes an entity and every attribute record it owns.
func (w *World) Destroy(e Entity) {
	if _, ok := w.entities[e]; !ok {
		return
	}
	delete(w.entities, e)
	for _, s := range w.stores {
		s.remove(e)
	}
}

// Alive reports whether e exists.
func (w *World) Alive(e Entity) bool {
	_, ok := w.entities[e]
	return ok
}

// Len returns the number of live entities.
func (w *World) Len() int {
	return len(w.entities)
}

func storeFor[T any](w *World, create bool) *Store[T] {
	k := KindOf[T]()
	if s, ok := w.stores[k]; ok {
		return s.(*Store[T])
	}
	if !create {
		return nil
	}
	s := newStore[T]()
	w.stores[k] = s
	return s
}

// Add attaches v to e. It replaces an existing record of the same kind and
// is a no-op for entities that do not exist.
func Add[T any](w *World, e Entity, v T) {
	if !w.Alive(e) {
		return
	}
	storeFor[T](w, true).set(e, v)
}

// Remove detaches the T record from e, if any.
func Remove[T any](w *World, e Entity) {
	if s := storeFor[T](w, false); s != nil {
		s.remove(e)
	}
}

// Get returns a pointer to e's T record. The pointer is invalidated by any
// later Add or Remove of the same kind.
func Get[T any](w *World, e Entity) (*T, bool) {
	s := storeFor[T](w, false)
	if s == nil {
		return nil, false
	}
	return s.get(e)
}

// Count returns how many entities carry a T record.
func Count[T any](w *World) int {
	s := storeFor[T](w, false)
	if s == nil {
		return 0
	}
	return s.len()
}

// ── Singletons ────────────────────────────────────────────────────────

// SetSingleton installs or replaces the process-wide T value.
func SetSingleton[T any](w *World, v T) {
	w.singletonMu.Lock()
	w.singletons[reflect.TypeOf((*T)(nil)).Elem()] = v
	w.singletonMu.Unlock()
}

// TryGet returns a copy of the T singleton and whether it exists.
func TryGet[T any](w *World) (T, bool) {
	w.singletonMu.RLock()
	v, ok := w.singletons[reflect.TypeOf((*T)(nil)).Elem()]
	w.singletonMu.RUnlock()
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// RemoveSingleton deletes the T singleton, if present.
func RemoveSingleton[T any](w *World) {
	w.singletonMu.Lock()
	delete(w.singletons, reflect.TypeOf((*T)(nil)).Elem())
	w.singletonMu.Unlock()
}
