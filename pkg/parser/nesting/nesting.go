package nesting

// Stack holds the constructs enclosing the current parse position, innermost
// on top.
type Stack[T any] struct {
	a []T
}

// New creates a new stack instance
func New[T any](elm ...T) *Stack[T] {
	return &Stack[T]{a: append([]T(nil), elm...)}
}

// Push adds an element to the top of the stack
func (s *Stack[T]) Push(elm T) {
	s.a = append(s.a, elm)
}

// Pop removes and returns the top element of the stack
func (s *Stack[T]) Pop() (T, bool) {
	var elm T
	if len(s.a) == 0 {
		return elm, false
	}

	elm = s.a[len(s.a)-1]
	s.a = s.a[:len(s.a)-1]
	return elm, true
}

// Peek returns the top element of the stack without removing it
func (s *Stack[T]) Peek() (T, bool) {
	var elm T
	if len(s.a) == 0 {
		return elm, false
	}
	return s.a[len(s.a)-1], true
}

// Get the size of the stack
func (s *Stack[T]) Size() int {
	return len(s.a)
}

// Depth returns the distance from the top to the innermost element matching
// fn, 0 being the top itself
func (s *Stack[T]) Depth(fn func(T) bool) (int, bool) {
	for i := len(s.a) - 1; i >= 0; i-- {
		if fn(s.a[i]) {
			return len(s.a) - 1 - i, true
		}
	}
	return 0, false
}
