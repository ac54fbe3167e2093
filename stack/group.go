package stack

import "fmt"

// groupID is a handle to a group record held in a stack's arena.
type groupID int

const noGroup groupID = -1

// Group is the record kept for every block of element storage. It is exported
// so a custom group allocator can be supplied through NewWithAllocator; its
// contents are owned by the Stack.
//
// A group does not know which of its slots are live, the cursor does.
type Group[T any] struct {
    elements []T
    end      int // index of the last slot, not one past it
    next     groupID
    prev     groupID
}

func (g *Group[T]) capacity() int {
    return g.end + 1
}

// arena holds group records by handle. Groups are only ever linked after the
// tail and trimmed from the tail, so list order and arena order agree.
type arena[T any] struct {
    records [][]Group[T]
}

func (a *arena[T]) get(id groupID) *Group[T] {
    return &a.records[id][0]
}

func (a *arena[T]) push(record []Group[T]) groupID {
    a.records = append(a.records, record)
    return groupID(len(a.records) - 1)
}

func (a *arena[T]) last() groupID {
    return groupID(len(a.records) - 1)
}

func (a *arena[T]) pop() []Group[T] {
    n := len(a.records) - 1
    record := a.records[n]
    a.records[n] = nil
    a.records = a.records[:n]
    return record
}

func (s *Stack[T]) group(id groupID) *Group[T] {
    return s.arena.get(id)
}

// allocateGroup obtains a block of capacity slots and a record for it, and
// links the record after prev. Nothing is constructed in the block. On failure
// whatever was obtained is handed back and the stack is unchanged.
func (s *Stack[T]) allocateGroup(capacity int, prev groupID) (groupID, error) {
    var hint []T
    if prev != noGroup {
        hint = s.group(prev).elements
    }

    elements, err := s.elements.Allocate(capacity, hint)
    if err != nil {
        return noGroup, fmt.Errorf("allocating group of %d elements: %w", capacity, err)
    }

    record, err := s.groups.Allocate(1, nil)
    if err != nil {
        s.elements.Deallocate(elements)
        return noGroup, fmt.Errorf("allocating group record: %w", err)
    }

    g := Group[T]{elements: elements, end: len(elements) - 1, next: noGroup, prev: prev}
    if err := s.groups.Construct(&record[0], g); err != nil {
        s.groups.Deallocate(record)
        s.elements.Deallocate(elements)
        return noGroup, fmt.Errorf("constructing group record: %w", err)
    }

    id := s.arena.push(record)
    if prev != noGroup {
        s.group(prev).next = id
    }
    return id, nil
}

// releaseGroup unlinks and frees the last group in the list. Live elements in
// it must already have been destroyed.
func (s *Stack[T]) releaseGroup(id groupID) {
    if id != s.arena.last() {
        violation(Corrupted, fmt.Sprintf("releasing group %d which is not the last group", id))
    }

    g := s.group(id)
    elements := g.elements
    if g.prev != noGroup {
        s.group(g.prev).next = noGroup
    }

    record := s.arena.pop()
    s.groups.Destroy(&record[0])
    s.groups.Deallocate(record)
    s.elements.Deallocate(elements)
}
