package stack

import "unsafe"

// policy decides how large each newly allocated group is.
type policy struct {
    min int
    max int
}

// defaultMinGroupSize sizes the first group so the bookkeeping of the stack and
// one group is small next to the elements it holds.
func defaultMinGroupSize[T any]() int {
    var (
        zero     T
        s        Stack[T]
        g        Group[T]
        overhead = (unsafe.Sizeof(s) + unsafe.Sizeof(g)) * 2
        size     = unsafe.Sizeof(zero)
    )
    if size == 0 || size*8 > overhead {
        return 8
    }
    return int(overhead/size) + 1
}

func newPolicy[T any](cfg *Config) policy {
    p := policy{min: cfg.MinGroupSize, max: cfg.MaxGroupSize}
    if p.max == 0 {
        p.max = MaxGroupSize
    }
    if p.min == 0 {
        p.min = min(defaultMinGroupSize[T](), p.max)
    }
    mustValidateGroupSizes(p.min, p.max)
    return p
}

// next is the capacity of the group that follows once size elements are live:
// the stack doubles, up to max.
func (p policy) next(size int) int {
    return min(size, p.max)
}

// clamp bounds a requested first group capacity by the policy.
func (p policy) clamp(n int) int {
    return min(max(n, p.min), p.max)
}
