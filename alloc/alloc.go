// Package alloc defines the allocation capability used by segstack containers.
//
// A container never calls make or new for element storage directly. It asks an
// Allocator for a block of raw slots, constructs values into those slots one at
// a time, and destroys and deallocates them when it is done. Swapping the
// allocator lets callers bound memory, inject failures or meter usage.
package alloc

import (
    "errors"
    "math"
    "unsafe"
)

var (
    // ErrOutOfMemory is returned by Allocate when a block cannot be obtained.
    ErrOutOfMemory = errors.New("out of memory")

    // ErrConstruct is returned by Construct when a value cannot be placed into a slot.
    ErrConstruct = errors.New("construct failed")
)

// Allocator hands out blocks of slots for values of type T.
//
// Allocate returns a block of exactly n zeroed slots. hint is the block
// previously handed out to the same owner and may be used for locality; it
// may be nil. Deallocate returns a block obtained from Allocate. Construct
// places v into a slot and Destroy releases whatever the slot holds; neither
// changes the block itself.
type Allocator[T any] interface {
    Allocate(n int, hint []T) ([]T, error)
    Deallocate(block []T)
    Construct(slot *T, v T) error
    Destroy(slot *T)
    MaxSize() int
}

// MaxSlots is the largest block that can be addressed for values of type T.
func MaxSlots[T any]() int {
    var zero T
    size := unsafe.Sizeof(zero)
    if size == 0 {
        return math.MaxInt
    }
    return int(uintptr(math.MaxInt) / size)
}
