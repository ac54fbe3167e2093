package registry

import (
    "context"
    "encoding/json"
    "errors"
    "github.com/aleph-zero/segstack/alloc"
    "github.com/aleph-zero/segstack/stack"
    "github.com/google/go-cmp/cmp"
    "github.com/google/go-cmp/cmp/cmpopts"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "os"
    "path/filepath"
    "testing"
)

func TestServiceProvider_CreateAndGet(t *testing.T) {
    reg := NewService(NewConfig(WithDirectory(t.TempDir())))
    ctx := context.Background()

    info, err := reg.Create(ctx, "s1", 4, 16)
    require.NoError(t, err)
    assert.NotEmpty(t, info.ID)

    expected := &Info{ID: info.ID, Name: "s1", MinGroupSize: 4, MaxGroupSize: 16}
    got, err := reg.Get("s1")
    require.NoError(t, err)
    if diff := cmp.Diff(expected, got, cmpopts.IgnoreFields(Info{}, "MemoryUse")); diff != "" {
        t.Errorf("stack info does not match (-expected, +received):\n%s", diff)
    }

    _, err = reg.Create(ctx, "s1", 0, 0)
    assert.ErrorIs(t, err, Error{ErrorCode: StackExists})

    _, err = reg.Get("missing")
    assert.ErrorIs(t, err, Error{ErrorCode: NoSuchStack})
}

func TestServiceProvider_CreateGroupSizes(t *testing.T) {
    tests := []struct {
        name     string
        config   *Config
        min, max int
        err      bool
        expected [2]int
    }{
        {name: "explicit", config: NewConfig(), min: 5, max: 50, expected: [2]int{5, 50}},
        {name: "registry defaults", config: NewConfig(WithGroupSizes(6, 60)), expected: [2]int{6, 60}},
        {name: "max only", config: NewConfig(), max: 3, expected: [2]int{3, 3}},
        {name: "min below floor", config: NewConfig(), min: 2, max: 10, err: true},
        {name: "min above max", config: NewConfig(), min: 20, max: 10, err: true},
    }

    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            reg := NewService(tt.config)
            info, err := reg.Create(context.Background(), "s", tt.min, tt.max)
            if tt.err {
                assert.ErrorIs(t, err, Error{ErrorCode: InvalidGroupSizes})
                assert.Empty(t, reg.List())
                return
            }
            require.NoError(t, err)
            assert.Equal(t, tt.expected, [2]int{info.MinGroupSize, info.MaxGroupSize})
        })
    }
}

func TestServiceProvider_PushPopTop(t *testing.T) {
    reg := NewService(NewConfig())
    ctx := context.Background()

    _, err := reg.Create(ctx, "s", 3, 8)
    require.NoError(t, err)

    for _, v := range []string{`1`, `"two"`, `{"three":3}`, `[4]`} {
        _, err = reg.Push(ctx, "s", json.RawMessage(v))
        require.NoError(t, err)
    }

    top, err := reg.Top(ctx, "s")
    require.NoError(t, err)
    assert.JSONEq(t, `[4]`, string(top))

    var popped []string
    for i := 0; i < 4; i++ {
        v, info, err := reg.Pop(ctx, "s")
        require.NoError(t, err)
        assert.Equal(t, 3-i, info.Size)
        popped = append(popped, string(v))
    }
    assert.Equal(t, []string{`[4]`, `{"three":3}`, `"two"`, `1`}, popped)

    _, _, err = reg.Pop(ctx, "s")
    assert.ErrorIs(t, err, Error{ErrorCode: EmptyStack})
    assert.ErrorIs(t, err, stack.ErrEmpty)

    _, err = reg.Top(ctx, "s")
    assert.ErrorIs(t, err, Error{ErrorCode: EmptyStack})

    _, err = reg.Push(ctx, "missing", json.RawMessage(`1`))
    assert.ErrorIs(t, err, Error{ErrorCode: NoSuchStack})
}

func TestServiceProvider_Capacity(t *testing.T) {
    reg := NewService(NewConfig())
    ctx := context.Background()

    _, err := reg.Create(ctx, "s", 4, 64)
    require.NoError(t, err)

    _, err = reg.Reserve(ctx, "s", 2)
    assert.ErrorIs(t, err, Error{ErrorCode: InvalidArgument})

    info, err := reg.Reserve(ctx, "s", 40)
    require.NoError(t, err)
    assert.Equal(t, 40, info.Capacity)

    for i := 0; i < 10; i++ {
        _, err = reg.Push(ctx, "s", json.RawMessage(`0`))
        require.NoError(t, err)
    }

    info, err = reg.ShrinkToFit(ctx, "s")
    require.NoError(t, err)
    assert.Equal(t, 10, info.Size)
    assert.Equal(t, 10, info.Capacity)

    info, err = reg.ChangeGroupSizes(ctx, "s", 3, 5)
    require.NoError(t, err)
    assert.Equal(t, 3, info.MinGroupSize)
    assert.Equal(t, 5, info.MaxGroupSize)
    assert.Equal(t, 10, info.Size)

    _, err = reg.ChangeGroupSizes(ctx, "s", 1, 5)
    assert.ErrorIs(t, err, Error{ErrorCode: InvalidGroupSizes})

    info, err = reg.Clear(ctx, "s")
    require.NoError(t, err)
    assert.Zero(t, info.Size)
    assert.Zero(t, info.Capacity)

    info, err = reg.Trim(ctx, "s")
    require.NoError(t, err)
    assert.Zero(t, info.Capacity)
}

func TestServiceProvider_MaxSlots(t *testing.T) {
    reg := NewService(NewConfig(WithMaxSlots(8)))
    ctx := context.Background()

    _, err := reg.Create(ctx, "s", 4, 4)
    require.NoError(t, err)

    for i := 0; i < 8; i++ {
        _, err = reg.Push(ctx, "s", json.RawMessage(`0`))
        require.NoError(t, err)
    }

    _, err = reg.Push(ctx, "s", json.RawMessage(`0`))
    assert.ErrorIs(t, err, Error{ErrorCode: StorageExhausted})
    assert.True(t, errors.Is(err, alloc.ErrOutOfMemory))

    info, err := reg.Get("s")
    require.NoError(t, err)
    assert.Equal(t, 8, info.Size)
    assert.Equal(t, 8, info.Capacity)
}

func TestServiceProvider_SlotBudget(t *testing.T) {
    ctx := context.Background()

    t.Run("default budget", func(t *testing.T) {
        reg := NewService(NewConfig())
        info, err := reg.Create(ctx, "s", 0, 0)
        require.NoError(t, err)
        assert.Equal(t, DefaultMaxSlots, info.MaxGroupSize)

        _, err = reg.Reserve(ctx, "s", 1_000_000_000_000)
        assert.ErrorIs(t, err, Error{ErrorCode: StorageExhausted})
        assert.ErrorIs(t, err, alloc.ErrOutOfMemory)

        info, err = reg.Get("s")
        require.NoError(t, err)
        assert.Zero(t, info.Capacity)
    })

    tests := []struct {
        name     string
        min, max int
    }{
        {name: "minimum above budget", min: 1_000_000_000_000},
        {name: "maximum above budget", min: 3, max: 1_000_000_000_000},
        {name: "both above budget", min: 1 << 40, max: 1 << 41},
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            reg := NewService(NewConfig(WithMaxSlots(64)))
            _, err := reg.Create(ctx, "s", tt.min, tt.max)
            assert.ErrorIs(t, err, Error{ErrorCode: InvalidGroupSizes})
            assert.Empty(t, reg.List())

            _, err = reg.Create(ctx, "s", 3, 8)
            require.NoError(t, err)
            _, err = reg.Push(ctx, "s", json.RawMessage(`1`))
            require.NoError(t, err)

            max := tt.max
            if max == 0 {
                max = tt.min
            }
            _, err = reg.ChangeGroupSizes(ctx, "s", 3, max)
            assert.ErrorIs(t, err, Error{ErrorCode: InvalidGroupSizes})

            info, err := reg.Get("s")
            require.NoError(t, err)
            assert.Equal(t, [3]int{1, 3, 8}, [3]int{info.Size, info.MinGroupSize, info.MaxGroupSize})
        })
    }

    t.Run("non-positive budget selects the default", func(t *testing.T) {
        reg := NewService(NewConfig(WithMaxSlots(0)))
        info, err := reg.Create(ctx, "s", 0, 0)
        require.NoError(t, err)
        assert.Equal(t, DefaultMaxSlots, info.MaxGroupSize)
    })
}

func TestServiceProvider_Drop(t *testing.T) {
    reg := NewService(NewConfig())
    ctx := context.Background()

    _, err := reg.Create(ctx, "a", 0, 0)
    require.NoError(t, err)
    _, err = reg.Create(ctx, "b", 0, 0)
    require.NoError(t, err)

    require.NoError(t, reg.Drop(ctx, "a"))
    assert.ErrorIs(t, reg.Drop(ctx, "a"), Error{ErrorCode: NoSuchStack})

    infos := reg.List()
    require.Len(t, infos, 1)
    assert.Equal(t, "b", infos[0].Name)
}

func TestServiceProvider_PersistAndOpen(t *testing.T) {
    dir := t.TempDir()
    ctx := context.Background()

    reg := NewService(NewConfig(WithDirectory(dir)))
    require.NoError(t, reg.Open())
    assert.Empty(t, reg.List())

    values := []string{`1`, `"two"`, `{"three":3}`, `[4,5]`, `null`}
    created, err := reg.Create(ctx, "s1", 3, 100)
    require.NoError(t, err)
    for _, v := range values {
        _, err = reg.Push(ctx, "s1", json.RawMessage(v))
        require.NoError(t, err)
    }
    _, err = reg.Create(ctx, "s2", 0, 0)
    require.NoError(t, err)

    require.NoError(t, reg.Persist())
    _, err = os.Stat(filepath.Join(dir, filename))
    require.NoError(t, err)

    // read newly persisted registry into a new service
    reg2 := NewService(NewConfig(WithDirectory(dir)))
    require.NoError(t, reg2.Open())

    if diff := cmp.Diff(reg.List(), reg2.List(), cmpopts.IgnoreFields(Info{}, "Capacity", "MemoryUse")); diff != "" {
        t.Errorf("stack info does not match (-expected, +received):\n%s", diff)
    }

    info, err := reg2.Get("s1")
    require.NoError(t, err)
    assert.Equal(t, created.ID, info.ID)

    for i := len(values) - 1; i >= 0; i-- {
        v, _, err := reg2.Pop(ctx, "s1")
        require.NoError(t, err)
        assert.JSONEq(t, values[i], string(v))
    }
}

func TestServiceProvider_OpenCorrupt(t *testing.T) {
    dir := t.TempDir()
    require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte("{not json"), 0644))

    reg := NewService(NewConfig(WithDirectory(dir)))
    assert.Error(t, reg.Open())
}

func TestServiceProvider_OpenMissingRecord(t *testing.T) {
    dir := t.TempDir()
    require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(`{"stacks":{"a":null}}`), 0644))

    reg := NewService(NewConfig(WithDirectory(dir)))
    err := reg.Open()
    require.Error(t, err)
    assert.Contains(t, err.Error(), "restoring stack a")
    assert.Empty(t, reg.List())
}
