package alloc

import "fmt"

// Heap allocates blocks from the Go heap. It is the default allocator.
type Heap[T any] struct{}

func (Heap[T]) Allocate(n int, _ []T) ([]T, error) {
    if n <= 0 || n > MaxSlots[T]() {
        return nil, fmt.Errorf("allocating %d slots: %w", n, ErrOutOfMemory)
    }
    return make([]T, n), nil
}

// Deallocate drops the block; the garbage collector reclaims it once the
// caller holds no further references.
func (Heap[T]) Deallocate([]T) {}

func (Heap[T]) Construct(slot *T, v T) error {
    *slot = v
    return nil
}

// Destroy zeroes the slot so anything it referenced can be collected.
func (Heap[T]) Destroy(slot *T) {
    var zero T
    *slot = zero
}

func (Heap[T]) MaxSize() int {
    return MaxSlots[T]()
}
