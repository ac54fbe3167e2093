// Package stack implements a segmented LIFO container.
//
// A Stack grows by linking fixed-capacity groups of element storage instead of
// reallocating one contiguous buffer. Each new group is as large as everything
// pushed so far, up to the maximum group size, so growth is geometric without
// ever copying elements. A pointer returned by Top stays valid until that
// element is popped.
//
// Groups emptied by Pop are kept and reused by later pushes. Storage is only
// handed back by Clear, TrimTrailingGroups, ShrinkToFit and the other
// capacity operations.
//
// A Stack is not safe for concurrent use. Distinct stacks share no state.
package stack

import (
    "fmt"
    "github.com/aleph-zero/segstack/alloc"
    "reflect"
)

type Stack[T any] struct {
    elements alloc.Allocator[T]
    groups   alloc.Allocator[Group[T]]
    arena    arena[T]
    first    groupID
    cur      cursor[T]
    size     int
    policy   policy
    trivial  bool
}

// New returns an empty stack backed by the heap.
func New[T any](options ...Option) *Stack[T] {
    return NewWithAllocator[T](nil, nil, options...)
}

// NewWithAllocator returns an empty stack whose element storage comes from
// elements and whose group records come from groups. Either may be nil to use
// the heap.
func NewWithAllocator[T any](elements alloc.Allocator[T], groups alloc.Allocator[Group[T]], options ...Option) *Stack[T] {
    if elements == nil {
        elements = alloc.Heap[T]{}
    }
    if groups == nil {
        groups = alloc.Heap[Group[T]]{}
    }
    return &Stack[T]{
        elements: elements,
        groups:   groups,
        first:    noGroup,
        cur:      emptyCursor[T](),
        policy:   newPolicy[T](NewConfig(options...)),
        trivial:  trivial(reflect.TypeFor[T]()),
    }
}

// emptyLike returns an empty stack sharing s's allocators and policy.
func (s *Stack[T]) emptyLike(elements alloc.Allocator[T]) *Stack[T] {
    return &Stack[T]{
        elements: elements,
        groups:   s.groups,
        first:    noGroup,
        cur:      emptyCursor[T](),
        policy:   s.policy,
        trivial:  s.trivial,
    }
}

// initialize allocates the first group. The stack must hold no storage.
func (s *Stack[T]) initialize(capacity int) error {
    id, err := s.allocateGroup(capacity, noGroup)
    if err != nil {
        return err
    }
    s.first = id
    s.enter(id, -1)
    return nil
}

// Push places v on top of the stack. If storage or construction fails the
// error is returned and the stack is exactly as it was.
func (s *Stack[T]) Push(v T) error {
    return s.place(func(slot *T) error {
        return s.elements.Construct(slot, v)
    })
}

// Emplace places the value built by fn on top of the stack. fn runs only once
// a slot is available; if it fails nothing is pushed.
func (s *Stack[T]) Emplace(fn func() (T, error)) error {
    return s.place(func(slot *T) error {
        v, err := fn()
        if err != nil {
            return err
        }
        return s.elements.Construct(slot, v)
    })
}

// place finds the slot above the top, constructs into it and only then commits
// the new top.
func (s *Stack[T]) place(construct func(*T) error) error {
    switch {
    case s.cur.initialized() && !s.cur.full():
        if err := construct(&s.cur.block[s.cur.top+1]); err != nil {
            return fmt.Errorf("constructing element: %w", err)
        }
        s.cur.top++

    case s.cur.initialized():
        next, fresh := s.group(s.cur.group).next, false
        if next == noGroup {
            var err error
            if next, err = s.allocateGroup(s.policy.next(s.size), s.cur.group); err != nil {
                return err
            }
            fresh = true
        }
        if err := construct(&s.group(next).elements[0]); err != nil {
            if fresh {
                s.releaseGroup(next)
            }
            return fmt.Errorf("constructing element: %w", err)
        }
        s.enter(next, 0)

    default:
        if err := s.initialize(s.policy.min); err != nil {
            return err
        }
        if err := construct(&s.cur.block[0]); err != nil {
            s.release()
            return fmt.Errorf("constructing element: %w", err)
        }
        s.cur.top = 0
    }

    s.size++
    return nil
}

// Top returns the element on top of the stack. The pointer stays valid until
// the element is popped. Top panics with ErrEmpty on an empty stack.
func (s *Stack[T]) Top() *T {
    if s.size == 0 {
        panic(ErrEmpty)
    }
    return &s.cur.block[s.cur.top]
}

// Peek returns a copy of the top element, and false if the stack is empty.
func (s *Stack[T]) Peek() (v T, ok bool) {
    if s.size == 0 {
        return v, false
    }
    return s.cur.block[s.cur.top], true
}

// Pop removes the top element. Pop panics with ErrEmpty on an empty stack.
// The group it leaves behind is kept for reuse.
func (s *Stack[T]) Pop() {
    if s.size == 0 {
        panic(ErrEmpty)
    }

    if !s.trivial {
        s.elements.Destroy(&s.cur.block[s.cur.top])
    }

    s.size--
    if s.size == 0 || s.cur.top != 0 {
        s.cur.top--
        return
    }

    // first slot of a group that is not the first one
    prev := s.group(s.cur.group).prev
    s.enter(prev, s.group(prev).end)
}

func (s *Stack[T]) Empty() bool {
    return s.size == 0
}

func (s *Stack[T]) Len() int {
    return s.size
}

// MaxSize is the most elements the element allocator can address.
func (s *Stack[T]) MaxSize() int {
    return s.elements.MaxSize()
}

// Allocator returns the element allocator.
func (s *Stack[T]) Allocator() alloc.Allocator[T] {
    return s.elements
}

// Clear destroys every element and hands all storage back to the allocators.
// The growth policy is kept.
func (s *Stack[T]) Clear() {
    if s.size != 0 && !s.trivial {
        s.each(func(segment []T) bool {
            for i := range segment {
                s.elements.Destroy(&segment[i])
            }
            return true
        })
    }
    s.release()
}

// release frees every group without touching elements.
func (s *Stack[T]) release() {
    for id := s.arena.last(); id != noGroup; id = s.arena.last() {
        s.releaseGroup(id)
    }
    s.reset()
}

// reset forgets all storage. Callers either freed it or handed it elsewhere.
func (s *Stack[T]) reset() {
    s.arena = arena[T]{}
    s.first = noGroup
    s.cur = emptyCursor[T]()
    s.size = 0
}

// each calls fn with the live part of every group, bottom to top, until fn
// returns false.
func (s *Stack[T]) each(fn func(segment []T) bool) {
    if s.size == 0 {
        return
    }
    if !s.cur.initialized() {
        violation(Corrupted, fmt.Sprintf("stack holds %d elements but no storage", s.size))
    }
    for id := s.first; ; {
        g := s.group(id)
        if id == s.cur.group {
            fn(g.elements[:s.cur.top+1])
            return
        }
        if !fn(g.elements) {
            return
        }
        id = g.next
    }
}

// Values returns a copy of the elements from bottom to top.
func (s *Stack[T]) Values() []T {
    values := make([]T, 0, s.size)
    s.each(func(segment []T) bool {
        values = append(values, segment...)
        return true
    })
    return values
}

// trivial reports whether values of type t hold no references, in which case
// destroying them is a no-op.
func trivial(t reflect.Type) bool {
    switch t.Kind() {
    case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
        reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
        reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
        return true
    case reflect.Array:
        return t.Len() == 0 || trivial(t.Elem())
    case reflect.Struct:
        for i := 0; i < t.NumField(); i++ {
            if !trivial(t.Field(i).Type) {
                return false
            }
        }
        return true
    default:
        return false
    }
}
