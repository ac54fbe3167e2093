package telemetry

import (
    "context"
    "github.com/aleph-zero/segstack/alloc"
    "go.opentelemetry.io/otel/attribute"
    "go.opentelemetry.io/otel/metric"
)

// MeteredAllocator forwards to another allocator and records how many blocks
// and slots are held, and how many allocations failed, tagged with the owning
// stack's name.
type MeteredAllocator[T any] struct {
    base    alloc.Allocator[T]
    metrics *Metrics
    attrs   metric.MeasurementOption
}

func NewMeteredAllocator[T any](base alloc.Allocator[T], metrics *Metrics, stack string) *MeteredAllocator[T] {
    return &MeteredAllocator[T]{
        base:    base,
        metrics: metrics,
        attrs:   metric.WithAttributes(attribute.String("stack", stack)),
    }
}

func (m *MeteredAllocator[T]) Allocate(n int, hint []T) ([]T, error) {
    ctx := context.Background()
    block, err := m.base.Allocate(n, hint)
    if err != nil {
        m.metrics.allocFailures.Add(ctx, 1, m.attrs)
        return nil, err
    }
    m.metrics.allocBlocks.Add(ctx, 1, m.attrs)
    m.metrics.allocSlots.Add(ctx, int64(len(block)), m.attrs)
    return block, nil
}

func (m *MeteredAllocator[T]) Deallocate(block []T) {
    ctx := context.Background()
    m.metrics.allocBlocks.Add(ctx, -1, m.attrs)
    m.metrics.allocSlots.Add(ctx, -int64(len(block)), m.attrs)
    m.base.Deallocate(block)
}

func (m *MeteredAllocator[T]) Construct(slot *T, v T) error {
    return m.base.Construct(slot, v)
}

func (m *MeteredAllocator[T]) Destroy(slot *T) {
    m.base.Destroy(slot)
}

func (m *MeteredAllocator[T]) MaxSize() int {
    return m.base.MaxSize()
}
