package utils

type Set[T comparable] struct {
	data map[T]struct{}
}

func NewSet[T comparable]() *Set[T] {
	return &Set[T]{
		data: make(map[T]struct{}),
	}
}

func (s *Set[T]) Add(val T) {
	s.data[val] = struct{}{}
}

func (s *Set[T]) Has(val T) bool {
	_, ok := s.data[val]
	return ok
}

func (s *Set[T]) Size() int {
	return len(s.data)
}
