package alloc

import "sync/atomic"

// Stats is a point-in-time view of a Counting allocator.
type Stats struct {
    Blocks      int64 `json:"blocks"`
    Slots       int64 `json:"slots"`
    Allocations int64 `json:"allocations"`
    Constructed int64 `json:"constructed"`
    Destroyed   int64 `json:"destroyed"`
}

// Counting forwards to another allocator and keeps live and cumulative counters.
// Blocks and Slots count what is currently allocated. Containers skip Destroy
// for element types that hold no pointers, so Destroyed can trail Constructed.
type Counting[T any] struct {
    base        Allocator[T]
    blocks      atomic.Int64
    slots       atomic.Int64
    allocations atomic.Int64
    constructed atomic.Int64
    destroyed   atomic.Int64
}

func NewCounting[T any](base Allocator[T]) *Counting[T] {
    if base == nil {
        base = Heap[T]{}
    }
    return &Counting[T]{base: base}
}

func (c *Counting[T]) Allocate(n int, hint []T) ([]T, error) {
    block, err := c.base.Allocate(n, hint)
    if err != nil {
        return nil, err
    }
    c.blocks.Add(1)
    c.slots.Add(int64(len(block)))
    c.allocations.Add(1)
    return block, nil
}

func (c *Counting[T]) Deallocate(block []T) {
    c.blocks.Add(-1)
    c.slots.Add(-int64(len(block)))
    c.base.Deallocate(block)
}

func (c *Counting[T]) Construct(slot *T, v T) error {
    if err := c.base.Construct(slot, v); err != nil {
        return err
    }
    c.constructed.Add(1)
    return nil
}

func (c *Counting[T]) Destroy(slot *T) {
    c.destroyed.Add(1)
    c.base.Destroy(slot)
}

func (c *Counting[T]) MaxSize() int {
    return c.base.MaxSize()
}

func (c *Counting[T]) Stats() Stats {
    return Stats{
        Blocks:      c.blocks.Load(),
        Slots:       c.slots.Load(),
        Allocations: c.allocations.Load(),
        Constructed: c.constructed.Load(),
        Destroyed:   c.destroyed.Load(),
    }
}
