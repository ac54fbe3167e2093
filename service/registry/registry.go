package registry

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "github.com/aleph-zero/segstack/alloc"
    "github.com/aleph-zero/segstack/stack"
    "github.com/aleph-zero/segstack/telemetry"
    log "github.com/go-chi/httplog/v2"
    "github.com/google/uuid"
    "go.opentelemetry.io/otel/attribute"
    "go.opentelemetry.io/otel/trace"
    "os"
    "path/filepath"
    "sort"
    "sync"
)

const filename = "registry.json"

type Service interface {
    Open() error
    Persist() error
    Create(ctx context.Context, name string, minGroupSize, maxGroupSize int) (*Info, error)
    Drop(ctx context.Context, name string) error
    Get(name string) (*Info, error)
    List() []*Info
    Push(ctx context.Context, name string, value json.RawMessage) (*Info, error)
    Pop(ctx context.Context, name string) (json.RawMessage, *Info, error)
    Top(ctx context.Context, name string) (json.RawMessage, error)
    Reserve(ctx context.Context, name string, n int) (*Info, error)
    ShrinkToFit(ctx context.Context, name string) (*Info, error)
    ChangeGroupSizes(ctx context.Context, name string, minGroupSize, maxGroupSize int) (*Info, error)
    Trim(ctx context.Context, name string) (*Info, error)
    Clear(ctx context.Context, name string) (*Info, error)
}

type ServiceProvider struct {
    config  *Config
    metrics *telemetry.Metrics
    lock    sync.RWMutex
    entries map[string]*entry
}

// NewService returns an empty registry. Telemetry must already be set up, the
// allocator instruments are bound to the meter provider installed at this point.
func NewService(config *Config) Service {
    return &ServiceProvider{
        config:  config,
        metrics: telemetry.NewMetrics(),
        entries: make(map[string]*entry),
    }
}

// Info describes a stack held by the registry.
type Info struct {
    ID           string  `json:"id"`
    Name         string  `json:"name"`
    Size         int     `json:"size"`
    Capacity     int     `json:"capacity"`
    MinGroupSize int     `json:"min_group_size"`
    MaxGroupSize int     `json:"max_group_size"`
    MemoryUse    uintptr `json:"memory_use"`
}

type entry struct {
    lock  sync.Mutex
    id    string
    name  string
    stack *stack.Stack[json.RawMessage]
}

// info must be called with e.lock held.
func (e *entry) info() *Info {
    min, max := e.stack.GroupSizes()
    return &Info{
        ID:           e.id,
        Name:         e.name,
        Size:         e.stack.Len(),
        Capacity:     e.stack.Capacity(),
        MinGroupSize: min,
        MaxGroupSize: max,
        MemoryUse:    e.stack.ApproximateMemoryUse(),
    }
}

func (s *ServiceProvider) newEntry(id, name string, minGroupSize, maxGroupSize int) (*entry, error) {
    slots := s.config.slots()
    if minGroupSize == 0 {
        minGroupSize = s.config.MinGroupSize
    }
    if maxGroupSize == 0 {
        maxGroupSize = s.config.MaxGroupSize
    }
    if maxGroupSize == 0 {
        maxGroupSize = slots
    }

    // a zero minimum falls through to the stack's own default
    lower := minGroupSize
    if lower == 0 {
        lower = stack.MinGroupSize
    }
    if err := s.validateGroupSizes(name, lower, maxGroupSize); err != nil {
        return nil, err
    }
    options := []stack.Option{stack.WithGroupSizes(minGroupSize, maxGroupSize)}

    limited := alloc.NewLimited[json.RawMessage](alloc.Heap[json.RawMessage]{}, slots)
    metered := telemetry.NewMeteredAllocator[json.RawMessage](limited, s.metrics, name)

    return &entry{
        id:    id,
        name:  name,
        stack: stack.NewWithAllocator[json.RawMessage](metered, nil, options...),
    }, nil
}

// validateGroupSizes checks min and max against the stack bounds and the slot
// budget, so the stack itself never sees a size it would panic on or one no
// allocation could satisfy.
func (s *ServiceProvider) validateGroupSizes(name string, min, max int) error {
    err := stack.ValidateGroupSizes(min, max)
    if err == nil && max > s.config.slots() {
        err = fmt.Errorf("maximum group size %d exceeds the budget of %d slots", max, s.config.slots())
    }
    if err != nil {
        return Error{
            ErrorCode: InvalidGroupSizes,
            Message:   fmt.Sprintf("invalid group sizes for stack %s: %v", name, err),
            Err:       err,
        }
    }
    return nil
}

func (s *ServiceProvider) lookup(name string) (*entry, error) {
    s.lock.RLock()
    defer s.lock.RUnlock()

    e, ok := s.entries[name]
    if !ok {
        return nil, Error{
            ErrorCode: NoSuchStack,
            Message:   fmt.Sprintf("stack %s does not exist", name),
        }
    }
    return e, nil
}

// Open loads the registry file from the data directory. A missing file leaves
// the registry empty.
func (s *ServiceProvider) Open() error {
    s.lock.Lock()
    defer s.lock.Unlock()

    data, err := os.ReadFile(filepath.Join(s.config.Directory, filename))
    if errors.Is(err, os.ErrNotExist) {
        return nil
    }
    if err != nil {
        return fmt.Errorf("opening registry: %w", err)
    }

    var snap snapshot
    if err = json.Unmarshal(data, &snap); err != nil {
        return fmt.Errorf("unmarshalling registry: %w", err)
    }

    entries := make(map[string]*entry, len(snap.Stacks))
    for name, ss := range snap.Stacks {
        if ss == nil {
            return fmt.Errorf("restoring stack %s: missing stack record", name)
        }
        e, err := s.newEntry(ss.ID, name, ss.MinGroupSize, ss.MaxGroupSize)
        if err != nil {
            return fmt.Errorf("restoring stack %s: %w", name, err)
        }
        if len(ss.Values) >= stack.MinGroupSize {
            if err = e.stack.Reserve(len(ss.Values)); err != nil {
                return fmt.Errorf("restoring stack %s: %w", name, err)
            }
        }
        for _, v := range ss.Values {
            if err = e.stack.Push(v); err != nil {
                return fmt.Errorf("restoring stack %s: %w", name, err)
            }
        }
        entries[name] = e
    }
    s.entries = entries
    return nil
}

// Persist writes every stack, bottom to top, to the registry file.
func (s *ServiceProvider) Persist() error {
    s.lock.RLock()
    snap := snapshot{Stacks: make(map[string]*stackSnapshot, len(s.entries))}
    for name, e := range s.entries {
        e.lock.Lock()
        min, max := e.stack.GroupSizes()
        snap.Stacks[name] = &stackSnapshot{
            ID:           e.id,
            MinGroupSize: min,
            MaxGroupSize: max,
            Values:       e.stack.Values(),
        }
        e.lock.Unlock()
    }
    s.lock.RUnlock()

    data, err := json.MarshalIndent(snap, "", "  ")
    if err != nil {
        return fmt.Errorf("marshalling registry: %w", err)
    }

    if err = os.MkdirAll(s.config.Directory, 0755); err != nil {
        return fmt.Errorf("persisting registry: %w", err)
    }
    if err = os.WriteFile(filepath.Join(s.config.Directory, filename), data, 0644); err != nil {
        return fmt.Errorf("persisting registry: %w", err)
    }
    return nil
}

func (s *ServiceProvider) Create(ctx context.Context, name string, minGroupSize, maxGroupSize int) (*Info, error) {
    ctx, span := telemetry.StartSpan(ctx, "registry.Create", trace.WithAttributes(attribute.String("stack.name", name)))
    defer span.End()

    e, err := s.newEntry(uuid.NewString(), name, minGroupSize, maxGroupSize)
    if err != nil {
        log.LogEntry(ctx).Error("Unable to create stack", "stack", name, "error", err)
        return nil, err
    }

    s.lock.Lock()
    defer s.lock.Unlock()

    if _, ok := s.entries[name]; ok {
        log.LogEntry(ctx).Error("Stack already exists", "stack", name)
        return nil, Error{
            ErrorCode: StackExists,
            Message:   fmt.Sprintf("stack %s already exists", name),
        }
    }
    s.entries[name] = e
    log.LogEntry(ctx).Info("Created stack", "stack", name, "id", e.id)
    return e.info(), nil
}

func (s *ServiceProvider) Drop(ctx context.Context, name string) error {
    ctx, span := telemetry.StartSpan(ctx, "registry.Drop", trace.WithAttributes(attribute.String("stack.name", name)))
    defer span.End()

    s.lock.Lock()
    e, ok := s.entries[name]
    if !ok {
        s.lock.Unlock()
        return Error{
            ErrorCode: NoSuchStack,
            Message:   fmt.Sprintf("stack %s does not exist", name),
        }
    }
    delete(s.entries, name)
    s.lock.Unlock()

    e.lock.Lock()
    defer e.lock.Unlock()
    e.stack.Clear()
    log.LogEntry(ctx).Info("Dropped stack", "stack", name, "id", e.id)
    return nil
}

func (s *ServiceProvider) Get(name string) (*Info, error) {
    e, err := s.lookup(name)
    if err != nil {
        return nil, err
    }
    e.lock.Lock()
    defer e.lock.Unlock()
    return e.info(), nil
}

func (s *ServiceProvider) List() []*Info {
    s.lock.RLock()
    entries := make([]*entry, 0, len(s.entries))
    for _, e := range s.entries {
        entries = append(entries, e)
    }
    s.lock.RUnlock()

    infos := make([]*Info, 0, len(entries))
    for _, e := range entries {
        e.lock.Lock()
        infos = append(infos, e.info())
        e.lock.Unlock()
    }
    sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
    return infos
}

// with runs fn against the named stack under its lock inside a span.
func (s *ServiceProvider) with(ctx context.Context, op, name string, fn func(context.Context, *entry) error) (*Info, error) {
    ctx, span := telemetry.StartSpan(ctx, "registry."+op, trace.WithAttributes(attribute.String("stack.name", name)))
    defer span.End()

    e, err := s.lookup(name)
    if err != nil {
        return nil, err
    }

    e.lock.Lock()
    defer e.lock.Unlock()

    if err = fn(ctx, e); err != nil {
        log.LogEntry(ctx).Error("Stack operation failed", "op", op, "stack", name, "error", err)
        return nil, err
    }
    info := e.info()
    telemetry.SetAttributes(span,
        attribute.Int("stack.size", info.Size),
        attribute.Int("stack.capacity", info.Capacity))
    return info, nil
}

func (s *ServiceProvider) Push(ctx context.Context, name string, value json.RawMessage) (*Info, error) {
    return s.with(ctx, "Push", name, func(_ context.Context, e *entry) error {
        if err := e.stack.Push(value); err != nil {
            return exhausted(name, err)
        }
        return nil
    })
}

func (s *ServiceProvider) Pop(ctx context.Context, name string) (json.RawMessage, *Info, error) {
    var value json.RawMessage
    info, err := s.with(ctx, "Pop", name, func(_ context.Context, e *entry) error {
        v, ok := e.stack.Peek()
        if !ok {
            return empty(name)
        }
        value = v
        e.stack.Pop()
        return nil
    })
    if err != nil {
        return nil, nil, err
    }
    return value, info, nil
}

func (s *ServiceProvider) Top(ctx context.Context, name string) (json.RawMessage, error) {
    var value json.RawMessage
    _, err := s.with(ctx, "Top", name, func(_ context.Context, e *entry) error {
        v, ok := e.stack.Peek()
        if !ok {
            return empty(name)
        }
        value = v
        return nil
    })
    if err != nil {
        return nil, err
    }
    return value, nil
}

func (s *ServiceProvider) Reserve(ctx context.Context, name string, n int) (*Info, error) {
    return s.with(ctx, "Reserve", name, func(_ context.Context, e *entry) error {
        if n < stack.MinGroupSize {
            return Error{
                ErrorCode: InvalidArgument,
                Message:   fmt.Sprintf("reserve of %d is below %d", n, stack.MinGroupSize),
            }
        }
        if slots := s.config.slots(); n > slots {
            return Error{
                ErrorCode: StorageExhausted,
                Message:   fmt.Sprintf("reserve of %d exceeds the budget of %d slots for stack %s", n, slots, name),
                Err:       alloc.ErrOutOfMemory,
            }
        }
        if err := e.stack.Reserve(n); err != nil {
            return exhausted(name, err)
        }
        return nil
    })
}

func (s *ServiceProvider) ShrinkToFit(ctx context.Context, name string) (*Info, error) {
    return s.with(ctx, "ShrinkToFit", name, func(_ context.Context, e *entry) error {
        if err := e.stack.ShrinkToFit(); err != nil {
            return exhausted(name, err)
        }
        return nil
    })
}

func (s *ServiceProvider) ChangeGroupSizes(ctx context.Context, name string, minGroupSize, maxGroupSize int) (*Info, error) {
    return s.with(ctx, "ChangeGroupSizes", name, func(_ context.Context, e *entry) error {
        if err := s.validateGroupSizes(name, minGroupSize, maxGroupSize); err != nil {
            return err
        }
        if err := e.stack.ChangeGroupSizes(minGroupSize, maxGroupSize); err != nil {
            return exhausted(name, err)
        }
        return nil
    })
}

func (s *ServiceProvider) Trim(ctx context.Context, name string) (*Info, error) {
    return s.with(ctx, "Trim", name, func(_ context.Context, e *entry) error {
        e.stack.TrimTrailingGroups()
        return nil
    })
}

func (s *ServiceProvider) Clear(ctx context.Context, name string) (*Info, error) {
    return s.with(ctx, "Clear", name, func(_ context.Context, e *entry) error {
        e.stack.Clear()
        return nil
    })
}

func empty(name string) error {
    return Error{
        ErrorCode: EmptyStack,
        Message:   fmt.Sprintf("stack %s is empty", name),
        Err:       stack.ErrEmpty,
    }
}

func exhausted(name string, err error) error {
    return Error{
        ErrorCode: StorageExhausted,
        Message:   fmt.Sprintf("stack %s: %v", name, err),
        Err:       err,
    }
}

/* *** Persistence *** */

type snapshot struct {
    Stacks map[string]*stackSnapshot `json:"stacks"`
}

type stackSnapshot struct {
    ID           string            `json:"id"`
    MinGroupSize int               `json:"min_group_size"`
    MaxGroupSize int               `json:"max_group_size"`
    Values       []json.RawMessage `json:"values"`
}

/* *** Registry Config *** */

// DefaultMaxSlots is the per-stack slot budget used when none is configured.
const DefaultMaxSlots = 1 << 22

type Config struct {
    Directory    string
    MinGroupSize int
    MaxGroupSize int
    MaxSlots     int
}

type Option func(*Config)

func NewConfig(options ...Option) *Config {
    cfg := &Config{MaxSlots: DefaultMaxSlots}
    for _, option := range options {
        option(cfg)
    }
    return cfg
}

func (c *Config) slots() int {
    if c.MaxSlots <= 0 {
        return DefaultMaxSlots
    }
    return c.MaxSlots
}

func WithDirectory(directory string) Option {
    return func(config *Config) {
        config.Directory = directory
    }
}

// WithGroupSizes sets the group sizes used for stacks created without their own.
func WithGroupSizes(min, max int) Option {
    return func(config *Config) {
        config.MinGroupSize = min
        config.MaxGroupSize = max
    }
}

// WithMaxSlots caps the element slots each stack may hold allocated. Zero or
// less selects DefaultMaxSlots.
func WithMaxSlots(slots int) Option {
    return func(config *Config) {
        config.MaxSlots = slots
    }
}

/* *** Errors *** */

type ErrorCode int

const (
    _ ErrorCode = iota
    StackExists
    NoSuchStack
    EmptyStack
    InvalidGroupSizes
    InvalidArgument
    StorageExhausted
)

type Error struct {
    ErrorCode ErrorCode
    Message   string
    Err       error
}

func (e Error) Error() string {
    return e.Message
}

func (e Error) Unwrap() error {
    return e.Err
}

func (e Error) Is(target error) bool {
    if other, ok := target.(Error); ok {
        ignoreErrorCode := other.ErrorCode == 0
        ignoreMessage := other.Message == ""
        matchErrorCode := other.ErrorCode == e.ErrorCode
        matchMessage := other.Message == e.Message

        return matchMessage && matchErrorCode || matchMessage && ignoreErrorCode || ignoreMessage && matchErrorCode
    }
    return false
}
