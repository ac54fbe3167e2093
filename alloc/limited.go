package alloc

import (
    "fmt"
    "sync"
)

// Limited wraps another allocator with a budget of slots. Allocations that
// would exceed the budget fail with ErrOutOfMemory. It can also be told to
// fail constructs after a number of successful ones.
type Limited[T any] struct {
    lock       sync.Mutex
    base       Allocator[T]
    remaining  int
    constructs int
}

// NewLimited returns an allocator that serves at most slots live slots from base.
// A nil base means Heap.
func NewLimited[T any](base Allocator[T], slots int) *Limited[T] {
    if base == nil {
        base = Heap[T]{}
    }
    return &Limited[T]{
        base:       base,
        remaining:  slots,
        constructs: -1,
    }
}

// FailConstructAfter makes every Construct after the next n fail with
// ErrConstruct. A negative n removes the limit.
func (l *Limited[T]) FailConstructAfter(n int) {
    l.lock.Lock()
    defer l.lock.Unlock()
    l.constructs = n
}

// Remaining reports how many slots may still be allocated.
func (l *Limited[T]) Remaining() int {
    l.lock.Lock()
    defer l.lock.Unlock()
    return l.remaining
}

func (l *Limited[T]) Allocate(n int, hint []T) ([]T, error) {
    l.lock.Lock()
    defer l.lock.Unlock()

    if n > l.remaining {
        return nil, fmt.Errorf("allocating %d slots with %d remaining: %w", n, l.remaining, ErrOutOfMemory)
    }
    block, err := l.base.Allocate(n, hint)
    if err != nil {
        return nil, err
    }
    l.remaining -= n
    return block, nil
}

func (l *Limited[T]) Deallocate(block []T) {
    l.lock.Lock()
    defer l.lock.Unlock()

    l.remaining += len(block)
    l.base.Deallocate(block)
}

func (l *Limited[T]) Construct(slot *T, v T) error {
    l.lock.Lock()
    if l.constructs == 0 {
        l.lock.Unlock()
        return ErrConstruct
    }
    if l.constructs > 0 {
        l.constructs--
    }
    l.lock.Unlock()
    return l.base.Construct(slot, v)
}

func (l *Limited[T]) Destroy(slot *T) {
    l.base.Destroy(slot)
}

func (l *Limited[T]) MaxSize() int {
    return min(l.base.MaxSize(), l.Remaining())
}
