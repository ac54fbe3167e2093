package stack

// cursor locates the logical top. block is the current group's storage, top
// and end index into it. top is -1 when the stack is empty but storage is
// allocated; group is noGroup when no storage is allocated at all.
type cursor[T any] struct {
    group groupID
    block []T
    top   int
    end   int
}

func emptyCursor[T any]() cursor[T] {
    return cursor[T]{group: noGroup, top: -1, end: -1}
}

func (s *Stack[T]) enter(id groupID, top int) {
    g := s.group(id)
    s.cur = cursor[T]{group: id, block: g.elements, top: top, end: g.end}
}

func (c *cursor[T]) initialized() bool {
    return c.group != noGroup
}

func (c *cursor[T]) full() bool {
    return c.top == c.end
}
