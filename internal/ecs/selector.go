package ecs

import (
	"golang.org/x/sync/errgroup"
)

// minChunk keeps tiny partitions from costing more in goroutine overhead
// than the work they carry.
const minChunk = 64

// Selector is a standing query for entities carrying a T record and every
// extra kind named at construction. It holds no membership snapshot: each
// evaluation reflects the world as it is at that moment.
//
// A Selector must not be evaluated concurrently with itself.
type Selector[T any] struct {
	world *World
	with  []Kind

	matches []int // reused scratch of dense indices
}

// Query builds a selector over T records, restricted to entities that also
// carry every kind in with.
func Query[T any](w *World, with ...Kind) *Selector[T] {
	self := KindOf[T]()
	filtered := make([]Kind, 0, len(with))
	for _, k := range with {
		if k != self {
			filtered = append(filtered, k)
		}
	}
	return &Selector[T]{world: w, with: filtered}
}

// Len evaluates the selector and returns the number of matches.
func (s *Selector[T]) Len() int {
	store := storeFor[T](s.world, false)
	if store == nil {
		return 0
	}
	return len(s.evaluate(store))
}

// ForEach calls fn for every matching entity on the calling goroutine and
// returns how many it visited.
func (s *Selector[T]) ForEach(fn func(Entity, *T)) int {
	store := storeFor[T](s.world, false)
	if store == nil {
		return 0
	}
	matches := s.evaluate(store)
	for _, idx := range matches {
		fn(store.dense[idx], &store.data[idx])
	}
	return len(matches)
}

// ForEachParallel calls fn for every matching entity, splitting the matches
// into disjoint contiguous chunks run on up to workers goroutines. It returns
// the number visited once every chunk has finished. fn must only touch the
// record it is given.
func (s *Selector[T]) ForEachParallel(workers int, fn func(Entity, *T)) int {
	store := storeFor[T](s.world, false)
	if store == nil {
		return 0
	}
	matches := s.evaluate(store)
	n := len(matches)
	if n == 0 {
		return 0
	}

	chunk := (n + workers - 1) / max(workers, 1)
	if chunk < minChunk {
		chunk = minChunk
	}
	if workers <= 1 || chunk >= n {
		for _, idx := range matches {
			fn(store.dense[idx], &store.data[idx])
		}
		return n
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for start := 0; start < n; start += chunk {
		part := matches[start:min(start+chunk, n)]
		g.Go(func() error {
			for _, idx := range part {
				fn(store.dense[idx], &store.data[idx])
			}
			return nil
		})
	}
	_ = g.Wait()
	return n
}

func (s *Selector[T]) evaluate(store *Store[T]) []int {
	s.matches = s.matches[:0]

	var others []storage
	for _, k := range s.with {
		o, ok := s.world.stores[k]
		if !ok {
			return s.matches
		}
		others = append(others, o)
	}

next:
	for idx, e := range store.dense {
		for _, o := range others {
			if !o.has(e) {
				continue next
			}
		}
		s.matches = append(s.matches, idx)
	}
	return s.matches
}
