package stack

import (
    "fmt"
    "github.com/aleph-zero/segstack/alloc"
)

// copyFrom fills the empty stack s with src's elements. The first group gets
// at least capacity slots. When everything fits in one group the elements go
// straight into it, copied in bulk on the heap allocator and constructed one
// by one on any other. Otherwise they are pushed one at a time under groups of
// the maximum size. On failure s is left empty.
func (s *Stack[T]) copyFrom(src *Stack[T], capacity int) error {
    if src == s {
        panic(ErrSelfReference)
    }
    if src.size == 0 {
        if capacity == 0 {
            return nil
        }
        return s.initialize(capacity)
    }

    if src.size <= s.policy.max {
        if err := s.initialize(max(capacity, src.size)); err != nil {
            return err
        }
        if _, ok := s.elements.(alloc.Heap[T]); ok {
            n := 0
            src.each(func(segment []T) bool {
                n += copy(s.cur.block[n:], segment)
                return true
            })
            s.cur.top = n - 1
            s.size = n
            return nil
        }
        return s.constructFrom(src)
    }

    if err := s.initialize(s.policy.max); err != nil {
        return err
    }
    var err error
    src.each(func(segment []T) bool {
        for _, v := range segment {
            if err = s.Push(v); err != nil {
                return false
            }
        }
        return true
    })
    if err != nil {
        s.Clear()
        return err
    }
    return nil
}

// constructFrom fills the freshly initialized first group of s with src's
// elements through the element allocator. The group must hold them all.
func (s *Stack[T]) constructFrom(src *Stack[T]) error {
    var err error
    src.each(func(segment []T) bool {
        for _, v := range segment {
            if err = s.elements.Construct(&s.cur.block[s.cur.top+1], v); err != nil {
                return false
            }
            s.cur.top++
            s.size++
        }
        return true
    })
    if err != nil {
        s.Clear()
        return fmt.Errorf("constructing element: %w", err)
    }
    return nil
}

// adopt takes over other's storage and state. s must hold no storage.
func (s *Stack[T]) adopt(other *Stack[T]) {
    *s = *other
    other.reset()
}

// Clone returns a copy of s using the same allocators and growth policy.
func (s *Stack[T]) Clone() (*Stack[T], error) {
    return s.CloneWithAllocator(s.elements)
}

// CloneWithAllocator returns a copy of s whose elements live in storage from a.
func (s *Stack[T]) CloneWithAllocator(a alloc.Allocator[T]) (*Stack[T], error) {
    clone := s.emptyLike(a)
    if err := clone.copyFrom(s, 0); err != nil {
        return nil, fmt.Errorf("copying stack: %w", err)
    }
    return clone, nil
}

// Move returns a stack that owns everything s owned, in constant time. s is
// left empty and usable, with its allocators and policy intact.
func (s *Stack[T]) Move() *Stack[T] {
    moved := &Stack[T]{}
    *moved = *s
    s.reset()
    return moved
}

// MoveWithAllocator moves s into a stack whose storage comes from a. Storage
// cannot change hands between allocators, so the elements are copied and s is
// cleared. If the copy fails s is unchanged.
func (s *Stack[T]) MoveWithAllocator(a alloc.Allocator[T]) (*Stack[T], error) {
    moved, err := s.CloneWithAllocator(a)
    if err != nil {
        return nil, err
    }
    s.Clear()
    return moved, nil
}

// Assign replaces the contents of s with a copy of src, taking src's
// allocators and policy. If the copy fails s is unchanged.
func (s *Stack[T]) Assign(src *Stack[T]) error {
    if src == s {
        panic(ErrSelfReference)
    }
    clone, err := src.Clone()
    if err != nil {
        return err
    }
    s.Clear()
    s.adopt(clone)
    return nil
}

// AssignMove replaces the contents of s with those of src and leaves src empty.
func (s *Stack[T]) AssignMove(src *Stack[T]) {
    if src == s {
        panic(ErrSelfReference)
    }
    s.Clear()
    s.adopt(src.Move())
}

// Swap exchanges the contents, allocators and policies of s and other.
func (s *Stack[T]) Swap(other *Stack[T]) {
    *s, *other = *other, *s
}

func Swap[T any](a, b *Stack[T]) {
    a.Swap(b)
}

// Equal reports whether a and b hold equal elements in the same order.
// Comparing a stack with itself is a caller error.
func Equal[T comparable](a, b *Stack[T]) bool {
    return EqualFunc(a, b, func(x, y T) bool { return x == y })
}

func NotEqual[T comparable](a, b *Stack[T]) bool {
    return !Equal(a, b)
}

// EqualFunc is like Equal but compares elements with eq. It walks both group
// lists in lockstep and stops at the first mismatch.
func EqualFunc[T any](a, b *Stack[T], eq func(T, T) bool) bool {
    if a == b {
        panic(ErrSelfReference)
    }
    if a.size != b.size {
        return false
    }
    if a.size == 0 {
        return true
    }

    var (
        rest  []T
        equal = true
    )
    segments := b.segments()
    a.each(func(segment []T) bool {
        for _, v := range segment {
            for len(rest) == 0 {
                rest, segments = segments[0], segments[1:]
            }
            if !eq(v, rest[0]) {
                equal = false
                return false
            }
            rest = rest[1:]
        }
        return true
    })
    return equal
}

func (s *Stack[T]) segments() [][]T {
    var segments [][]T
    s.each(func(segment []T) bool {
        segments = append(segments, segment)
        return true
    })
    return segments
}
