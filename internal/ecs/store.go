package ecs

// Store is a sparse set of T records: a dense slice of data with a parallel
// slice of owning entities, indexed by a sparse map.
type Store[T any] struct {
	sparse map[Entity]int
	dense  []Entity
	data   []T
}

func newStore[T any]() *Store[T] {
	return &Store[T]{sparse: make(map[Entity]int)}
}

func (s *Store[T]) set(e Entity, v T) {
	if idx, ok := s.sparse[e]; ok {
		s.data[idx] = v
		return
	}
	s.sparse[e] = len(s.data)
	s.dense = append(s.dense, e)
	s.data = append(s.data, v)
}

func (s *Store[T]) get(e Entity) (*T, bool) {
	idx, ok := s.sparse[e]
	if !ok {
		return nil, false
	}
	return &s.data[idx], true
}

func (s *Store[T]) has(e Entity) bool {
	_, ok := s.sparse[e]
	return ok
}

// remove swaps the last record into the removed slot.
func (s *Store[T]) remove(e Entity) {
	idx, ok := s.sparse[e]
	if !ok {
		return
	}

	last := len(s.data) - 1
	if idx != last {
		moved := s.dense[last]
		s.data[idx] = s.data[last]
		s.dense[idx] = moved
		s.sparse[moved] = idx
	}

	var zero T
	s.data[last] = zero
	s.data = s.data[:last]
	s.dense = s.dense[:last]
	delete(s.sparse, e)
}

func (s *Store[T]) len() int {
	return len(s.dense)
}
