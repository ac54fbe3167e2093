package stack

import (
    "fmt"
    "unsafe"
)

// Capacity is the number of slots across every group, live or not.
func (s *Stack[T]) Capacity() int {
    total := 0
    for id := s.first; id != noGroup; id = s.group(id).next {
        total += s.group(id).capacity()
    }
    return total
}

// ApproximateMemoryUse is the size in bytes of the stack, its group records
// and every slot they own.
func (s *Stack[T]) ApproximateMemoryUse() uintptr {
    var (
        zero T
        g    Group[T]
    )
    use := unsafe.Sizeof(*s)
    for id := s.first; id != noGroup; id = s.group(id).next {
        use += uintptr(s.group(id).capacity())*unsafe.Sizeof(zero) + unsafe.Sizeof(g)
    }
    return use
}

// GroupSizes returns the growth policy.
func (s *Stack[T]) GroupSizes() (min, max int) {
    return s.policy.min, s.policy.max
}

// Reserve makes room for at least n elements, capped at the maximum group
// size and the allocator's limit. On a stack that has never allocated, the
// first group is created with that capacity. Otherwise, if n exceeds the
// current capacity, storage is rebuilt around one group of n slots. n below
// MinGroupSize is a caller error.
func (s *Stack[T]) Reserve(n int) error {
    if n < MinGroupSize {
        violation(InvalidReserve, fmt.Sprintf("reserve of %d is below %d", n, MinGroupSize))
    }
    n = min(n, s.policy.max, s.elements.MaxSize())

    switch {
    case !s.cur.initialized():
        return s.initialize(n)
    case n <= s.Capacity():
        return nil
    default:
        return s.rebuild(n)
    }
}

// ShrinkToFit rebuilds storage so that capacity matches the number of
// elements, as far as the group size bounds allow. An empty stack gives all
// of its storage back.
func (s *Stack[T]) ShrinkToFit() error {
    switch {
    case !s.cur.initialized() || s.size == s.Capacity():
        return nil
    case s.size == 0:
        s.Clear()
        return nil
    case s.fitted() >= s.Capacity():
        s.TrimTrailingGroups()
        return nil
    default:
        return s.rebuild(max(s.size, MinGroupSize))
    }
}

// fitted is the capacity a rebuild would end up with. No group is smaller than
// MinGroupSize.
func (s *Stack[T]) fitted() int {
    if s.size <= s.policy.max {
        return max(s.size, MinGroupSize)
    }
    return (s.size + s.policy.max - 1) / s.policy.max * s.policy.max
}

// ChangeGroupSizes replaces the growth policy and trims trailing groups. If
// the first group is now smaller than min, or the current group larger than
// max, storage is rebuilt under the new policy; otherwise existing groups are
// left alone and the policy only shapes future growth. Invalid sizes are a
// caller error.
func (s *Stack[T]) ChangeGroupSizes(min, max int) error {
    mustValidateGroupSizes(min, max)

    previous := s.policy
    s.policy = policy{min: min, max: max}
    if !s.cur.initialized() {
        return nil
    }

    if s.group(s.first).capacity() < min || s.group(s.cur.group).capacity() > max {
        // rebuilding drops the trailing groups along with the rest
        if err := s.rebuild(s.policy.clamp(s.size)); err != nil {
            s.policy = previous
            return err
        }
        return nil
    }
    s.TrimTrailingGroups()
    return nil
}

func (s *Stack[T]) ChangeMinimumGroupSize(min int) error {
    return s.ChangeGroupSizes(min, s.policy.max)
}

func (s *Stack[T]) ChangeMaximumGroupSize(max int) error {
    return s.ChangeGroupSizes(s.policy.min, max)
}

// TrimTrailingGroups frees the groups above the current one, left behind by
// earlier pops. Live elements are untouched.
func (s *Stack[T]) TrimTrailingGroups() {
    if !s.cur.initialized() {
        return
    }
    for id := s.arena.last(); id != s.cur.group; id = s.arena.last() {
        s.releaseGroup(id)
    }
}

// rebuild copies the elements into fresh storage whose first group has
// capacity slots and adopts it. If the copy fails s is unchanged.
func (s *Stack[T]) rebuild(capacity int) error {
    rebuilt := s.emptyLike(s.elements)
    if err := rebuilt.copyFrom(s, capacity); err != nil {
        return fmt.Errorf("rebuilding stack: %w", err)
    }
    s.Clear()
    s.adopt(rebuilt)
    return nil
}
