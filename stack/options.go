package stack

import (
    "fmt"
    "math"
)

const (
    // MinGroupSize is the smallest capacity a growth policy may ask for.
    MinGroupSize = 3

    // MaxGroupSize is the largest capacity a growth policy may ask for. A new
    // group can be as large as everything allocated before it, so the bound is
    // half the addressable range.
    MaxGroupSize = math.MaxInt / 2
)

/* *** Stack Config *** */

// Config holds the growth policy a Stack is created with. Zero values select
// the defaults.
type Config struct {
    MinGroupSize int
    MaxGroupSize int
}

type Option func(*Config)

func NewConfig(options ...Option) *Config {
    cfg := &Config{}
    for _, option := range options {
        option(cfg)
    }
    return cfg
}

func WithGroupSizes(min, max int) Option {
    return func(c *Config) {
        c.MinGroupSize = min
        c.MaxGroupSize = max
    }
}

func WithMinGroupSize(min int) Option {
    return func(c *Config) {
        c.MinGroupSize = min
    }
}

func WithMaxGroupSize(max int) Option {
    return func(c *Config) {
        c.MaxGroupSize = max
    }
}

// ValidateGroupSizes reports whether min and max form a usable growth policy.
func ValidateGroupSizes(min, max int) error {
    switch {
    case min < MinGroupSize:
        return Error{ErrorCode: InvalidGroupSizes, Message: fmt.Sprintf("minimum group size %d is below %d", min, MinGroupSize)}
    case min > max:
        return Error{ErrorCode: InvalidGroupSizes, Message: fmt.Sprintf("minimum group size %d exceeds maximum %d", min, max)}
    case max > MaxGroupSize:
        return Error{ErrorCode: InvalidGroupSizes, Message: fmt.Sprintf("maximum group size %d exceeds %d", max, MaxGroupSize)}
    }
    return nil
}

func mustValidateGroupSizes(min, max int) {
    if err := ValidateGroupSizes(min, max); err != nil {
        panic(err)
    }
}
