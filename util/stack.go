// Package util provides a collection of domain-agnostic utility functions and cross-platform helpers.
package util

// Stack is a LIFO container used for view navigation history.
type Stack[T any] struct {
	items []T
}

// Push places an element on top of the stack.
func (s *Stack[T]) Push(item T) {
	s.items = append(s.items, item)
}

// Pop removes and returns the top element. Popping an empty stack yields
// the zero value.
func (s *Stack[T]) Pop() (item T) {
	n := len(s.items)
	if n == 0 {
		return
	}

	item = s.items[n-1]
	s.items = s.items[:n-1]
	return
}

// Peek returns the top element without removing it.
func (s *Stack[T]) Peek() (item T) {
	if n := len(s.items); n > 0 {
		item = s.items[n-1]
	}
	return
}

// Len reports how many elements the stack holds.
func (s *Stack[T]) Len() int {
	return len(s.items)
}
