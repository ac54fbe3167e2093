// Package bench drives a push/pop workload against the segmented stack and a
// slice-backed baseline and reports throughput and memory footprint.
package bench

import (
    "context"
    "fmt"
    "github.com/aleph-zero/segstack/alloc"
    "github.com/aleph-zero/segstack/stack"
    "golang.org/x/sync/errgroup"
    "io"
    "math/rand"
    "text/tabwriter"
    "time"
)

const (
    Segmented = "segmented"
    Slice     = "slice"
)

/* *** Bench Config *** */

type Config struct {
    Workers      int
    Operations   int
    PopRatio     float64
    MinGroupSize int
    MaxGroupSize int
    Seed         int64
}

type Option func(*Config)

func NewConfig(options ...Option) *Config {
    cfg := &Config{
        Workers:    4,
        Operations: 1_000_000,
        PopRatio:   0.4,
        Seed:       1,
    }
    for _, option := range options {
        option(cfg)
    }
    return cfg
}

func WithWorkers(workers int) Option {
    return func(c *Config) {
        c.Workers = workers
    }
}

func WithOperations(operations int) Option {
    return func(c *Config) {
        c.Operations = operations
    }
}

// WithPopRatio sets the probability that an operation is a pop.
func WithPopRatio(ratio float64) Option {
    return func(c *Config) {
        c.PopRatio = ratio
    }
}

// WithGroupSizes sets the segmented stack's group sizes. Zero keeps the default.
func WithGroupSizes(min, max int) Option {
    return func(c *Config) {
        c.MinGroupSize = min
        c.MaxGroupSize = max
    }
}

func WithSeed(seed int64) Option {
    return func(c *Config) {
        c.Seed = seed
    }
}

func (c *Config) validate() error {
    switch {
    case c.Workers < 1:
        return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
    case c.Operations < 0:
        return fmt.Errorf("operations must not be negative, got %d", c.Operations)
    case c.PopRatio < 0 || c.PopRatio >= 1:
        return fmt.Errorf("pop ratio must be in [0, 1), got %g", c.PopRatio)
    }
    if c.MinGroupSize != 0 || c.MaxGroupSize != 0 {
        lower, upper := c.MinGroupSize, c.MaxGroupSize
        if lower == 0 {
            lower = stack.MinGroupSize
        }
        if upper == 0 {
            upper = stack.MaxGroupSize
        }
        return stack.ValidateGroupSizes(lower, upper)
    }
    return nil
}

/* *** Workloads *** */

// workload is one worker's private stack.
type workload interface {
    push(v int) error
    pop() bool
    len() int
    capacity() int
    memoryUse() uintptr
    allocations() int64
    checksum() int
}

type segmented struct {
    counting *alloc.Counting[int]
    stack    *stack.Stack[int]
}

func newSegmented(cfg *Config) workload {
    counting := alloc.NewCounting[int](alloc.Heap[int]{})
    return &segmented{
        counting: counting,
        stack: stack.NewWithAllocator[int](counting, nil,
            stack.WithGroupSizes(cfg.MinGroupSize, cfg.MaxGroupSize)),
    }
}

func (s *segmented) push(v int) error { return s.stack.Push(v) }

func (s *segmented) pop() bool {
    if s.stack.Empty() {
        return false
    }
    s.stack.Pop()
    return true
}

func (s *segmented) len() int           { return s.stack.Len() }
func (s *segmented) capacity() int      { return s.stack.Capacity() }
func (s *segmented) memoryUse() uintptr { return s.stack.ApproximateMemoryUse() }
func (s *segmented) allocations() int64 { return s.counting.Stats().Allocations }
func (s *segmented) checksum() int      { return sum(s.stack.Values()) }

type baseline struct {
    stack   *SliceStack[int]
    grows   int64
    lastCap int
}

func newBaseline(*Config) workload {
    return &baseline{stack: NewSliceStack[int]()}
}

// push counts a growth whenever append moved to a larger backing array.
func (b *baseline) push(v int) error {
    b.stack.Push(v)
    if c := b.stack.Capacity(); c != b.lastCap {
        b.grows++
        b.lastCap = c
    }
    return nil
}

func (b *baseline) pop() bool {
    _, ok := b.stack.Pop()
    return ok
}

func (b *baseline) len() int           { return b.stack.Len() }
func (b *baseline) capacity() int      { return b.stack.Capacity() }
func (b *baseline) memoryUse() uintptr { return b.stack.ApproximateMemoryUse() }
func (b *baseline) allocations() int64 { return b.grows }
func (b *baseline) checksum() int      { return sum(b.stack.Values()) }

/* *** Runner *** */

type Result struct {
    Name         string
    Workers      int
    Operations   int
    Elapsed      time.Duration
    OpsPerSecond float64
    WorkerP50    time.Duration
    WorkerMax    time.Duration
    MeanSize     float64
    MeanCapacity float64
    MemoryUse    uintptr
    Allocations  int64
    Checksum     int
}

type workerResult struct {
    elapsed     time.Duration
    size        int
    capacity    int
    memoryUse   uintptr
    allocations int64
    checksum    int
}

// Run executes the workload once per implementation. Worker i of every
// implementation replays the same operation sequence, so their final contents
// must agree; a mismatch is reported as an error.
func Run(ctx context.Context, cfg *Config) ([]Result, error) {
    if err := cfg.validate(); err != nil {
        return nil, fmt.Errorf("invalid bench config: %w", err)
    }

    implementations := []struct {
        name string
        new  func(*Config) workload
    }{
        {name: Segmented, new: newSegmented},
        {name: Slice, new: newBaseline},
    }

    results := make([]Result, 0, len(implementations))
    for _, impl := range implementations {
        result, err := run(ctx, cfg, impl.name, impl.new)
        if err != nil {
            return nil, fmt.Errorf("running %s workload: %w", impl.name, err)
        }
        results = append(results, result)
    }

    for _, r := range results[1:] {
        if r.Checksum != results[0].Checksum {
            return results, fmt.Errorf("%s checksum %d does not match %s checksum %d",
                r.Name, r.Checksum, results[0].Name, results[0].Checksum)
        }
    }
    return results, nil
}

func run(ctx context.Context, cfg *Config, name string, newWorkload func(*Config) workload) (Result, error) {
    workers := make([]workerResult, cfg.Workers)
    g, ctx := errgroup.WithContext(ctx)

    start := time.Now()
    for i := range workers {
        g.Go(func() error {
            w := newWorkload(cfg)
            r := rand.New(rand.NewSource(cfg.Seed + int64(i)))

            began := time.Now()
            for op := 0; op < cfg.Operations; op++ {
                if op&1023 == 0 {
                    if err := ctx.Err(); err != nil {
                        return err
                    }
                }
                if r.Float64() < cfg.PopRatio && w.pop() {
                    continue
                }
                if err := w.push(r.Intn(1 << 20)); err != nil {
                    return fmt.Errorf("worker %d: %w", i, err)
                }
            }

            workers[i] = workerResult{
                elapsed:     time.Since(began),
                size:        w.len(),
                capacity:    w.capacity(),
                memoryUse:   w.memoryUse(),
                allocations: w.allocations(),
                checksum:    w.checksum(),
            }
            return nil
        })
    }
    if err := g.Wait(); err != nil {
        return Result{}, err
    }
    elapsed := time.Since(start)

    var (
        durations  = make([]time.Duration, len(workers))
        sizes      = make([]int, len(workers))
        capacities = make([]int, len(workers))
        memory     = make([]uintptr, len(workers))
        allocs     = make([]int64, len(workers))
        checksums  = make([]int, len(workers))
    )
    for i, w := range workers {
        durations[i] = w.elapsed
        sizes[i] = w.size
        capacities[i] = w.capacity
        memory[i] = w.memoryUse
        allocs[i] = w.allocations
        checksums[i] = w.checksum
    }

    total := cfg.Workers * cfg.Operations
    return Result{
        Name:         name,
        Workers:      cfg.Workers,
        Operations:   total,
        Elapsed:      elapsed,
        OpsPerSecond: float64(total) / max(elapsed.Seconds(), 1e-9),
        WorkerP50:    percentile(durations, 50),
        WorkerMax:    maximum(durations),
        MeanSize:     mean(sizes),
        MeanCapacity: mean(capacities),
        MemoryUse:    sum(memory),
        Allocations:  sum(allocs),
        Checksum:     sum(checksums),
    }, nil
}

// Report writes results as an aligned table.
func Report(w io.Writer, results []Result) error {
    tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
    fmt.Fprintln(tw, "impl\tworkers\tops\telapsed\tops/s\tp50 worker\tmax worker\tmean size\tmean cap\tmemory\tallocs\t")
    for _, r := range results {
        fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%.0f\t%s\t%s\t%.1f\t%.1f\t%d\t%d\t\n",
            r.Name, r.Workers, r.Operations, r.Elapsed.Round(time.Microsecond), r.OpsPerSecond,
            r.WorkerP50.Round(time.Microsecond), r.WorkerMax.Round(time.Microsecond),
            r.MeanSize, r.MeanCapacity, r.MemoryUse, r.Allocations)
    }
    return tw.Flush()
}
