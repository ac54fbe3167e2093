package client

import (
    "context"
    "errors"
    "fmt"
    "github.com/aleph-zero/segstack/telemetry"
    "github.com/chzyer/readline"
    "io"
    "log/slog"
    "os"
    "path/filepath"
    "strings"
)

const (
    serviceName       = "segstack-cli"
    serviceVersion    = "0.0.1"
    readlineConfigDir = ".config/segstack"
)

var collectorURL = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")

type Config struct {
    RemoteAddr string
    RemotePort int
}

type Option func(*Config)

func NewConfig(options ...Option) *Config {
    cfg := &Config{}
    for _, option := range options {
        option(cfg)
    }
    return cfg
}

func WithRemoteAddr(addr string) Option {
    return func(cfg *Config) {
        cfg.RemoteAddr = addr
    }
}

func WithRemotePort(port uint16) Option {
    return func(cfg *Config) {
        cfg.RemotePort = int(port)
    }
}

func (c *Config) baseURL() string {
    return fmt.Sprintf("http://%s:%d", c.RemoteAddr, c.RemotePort)
}

func Bootstrap(config *Config) {
    ctx := context.Background()
    logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
        Level: slog.LevelInfo,
    }))
    slog.SetDefault(logger)

    rl, err := setupReadline()
    if err != nil {
        slog.Error("Error setting up readline config", "error", err)
        return
    }
    defer rl.Close()

    shutdown, err := telemetry.New(serviceName, serviceVersion, collectorURL)
    if err != nil {
        slog.Error("Error initializing telemetry", "error", err)
        shutdown = func() {}
    }
    defer shutdown()

    client := NewClient(config.baseURL())

    for {
        line, err := rl.Readline()
        if errors.Is(err, readline.ErrInterrupt) {
            if len(line) == 0 {
                break
            } else {
                continue
            }
        } else if err == io.EOF {
            break
        }

        line = strings.TrimSpace(line)
        if line == "" {
            continue
        }
        if line == "exit" || line == "quit" {
            break
        }

        out, err := client.Execute(ctx, line)
        if err != nil {
            fmt.Fprintf(rl.Stderr(), "error: %s\n", err)
            continue
        }
        fmt.Fprintln(rl.Stdout(), out)
    }
}

func setupReadline() (rl *readline.Instance, err error) {
    home, err := os.UserHomeDir()
    if err != nil {
        return nil, err
    }

    dir := filepath.Join(home, readlineConfigDir)
    err = os.MkdirAll(dir, 0750)
    if err != nil {
        return nil, err
    }

    return readline.NewEx(&readline.Config{
        Prompt:            "\033[31msegstack> \033[0m ",
        HistoryFile:       filepath.Join(dir, "segstack.history"),
        AutoComplete:      completer,
        InterruptPrompt:   "^C",
        EOFPrompt:         "exit",
        HistorySearchFold: true,
    })
}

var completer = readline.NewPrefixCompleter(
    readline.PcItem("create"),
    readline.PcItem("drop"),
    readline.PcItem("push"),
    readline.PcItem("pop"),
    readline.PcItem("top"),
    readline.PcItem("info"),
    readline.PcItem("list"),
    readline.PcItem("reserve"),
    readline.PcItem("shrink"),
    readline.PcItem("trim"),
    readline.PcItem("clear"),
    readline.PcItem("groups"),
    readline.PcItem("persist"),
    readline.PcItem("help"),
    readline.PcItem("exit"),
)
