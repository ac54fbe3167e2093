package bench

import "unsafe"

// SliceStack is a stack over one contiguous slice, grown by append. It is the
// baseline the segmented stack is measured against.
type SliceStack[T any] struct {
    elements []T
}

func NewSliceStack[T any]() *SliceStack[T] {
    return &SliceStack[T]{elements: make([]T, 0)}
}

func (s *SliceStack[T]) Push(element T) {
    s.elements = append(s.elements, element)
}

func (s *SliceStack[T]) Pop() (v T, ok bool) {
    var zero T
    n := len(s.elements)
    if n == 0 {
        return zero, false
    }

    v = s.elements[n-1]
    s.elements[n-1] = zero
    s.elements = s.elements[:n-1]
    return v, true
}

func (s *SliceStack[T]) Top() (v T, ok bool) {
    if len(s.elements) == 0 {
        return v, false
    }
    return s.elements[len(s.elements)-1], true
}

func (s *SliceStack[T]) Len() int {
    return len(s.elements)
}

func (s *SliceStack[T]) Capacity() int {
    return cap(s.elements)
}

func (s *SliceStack[T]) ApproximateMemoryUse() uintptr {
    var zero T
    return unsafe.Sizeof(*s) + uintptr(cap(s.elements))*unsafe.Sizeof(zero)
}

func (s *SliceStack[T]) Values() []T {
    return append([]T(nil), s.elements...)
}
