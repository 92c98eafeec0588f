package set

// Set is a minimal generic set used for currency universes.
type Set[T comparable] map[T]struct{}

func FromSlice[T comparable](items []T) Set[T] {
	result := make(Set[T], len(items))
	for _, item := range items {
		result[item] = struct{}{}
	}
	return result
}

func (s Set[T]) Include(value T) bool {
	_, found := s[value]
	return found
}

func (s Set[T]) Insert(value T) {
	s[value] = struct{}{}
}

func (s Set[T]) Slice() []T {
	result := make([]T, 0, len(s))
	for item := range s {
		result = append(result, item)
	}
	return result
}

func (s Set[T]) Len() int {
	return len(s)
}
