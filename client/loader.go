package client

import (
    "bufio"
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "github.com/aleph-zero/segstack/telemetry"
    "io"
    "log/slog"
    "net/url"
    "os"
)

const batchSize = 3000

type LoaderConfig struct {
    ClientConfig *Config
    Stack        string
    Filename     string
}

type LoaderOption func(*LoaderConfig)

func NewLoaderConfig(options ...LoaderOption) *LoaderConfig {
    cfg := &LoaderConfig{}
    for _, option := range options {
        option(cfg)
    }
    return cfg
}

func WithStack(stack string) LoaderOption {
    return func(cfg *LoaderConfig) {
        cfg.Stack = stack
    }
}

func WithFilename(filename string) LoaderOption {
    return func(cfg *LoaderConfig) {
        cfg.Filename = filename
    }
}

func WithClientConfig(clientConfig *Config) LoaderOption {
    return func(cfg *LoaderConfig) {
        cfg.ClientConfig = clientConfig
    }
}

// BootstrapLoader pushes every line of a newline delimited JSON file onto a
// stack, in file order.
func BootstrapLoader(config *LoaderConfig) {
    ctx := context.Background()
    shutdown, err := telemetry.New(serviceName, serviceVersion, collectorURL)
    if err != nil {
        slog.Error("Error initializing telemetry", "error", err)
        shutdown = func() {}
    }
    defer shutdown()

    file, err := os.Open(config.Filename)
    if err != nil {
        fmt.Printf("Error opening file '%s': %s\n", config.Filename, err)
        return
    }
    defer file.Close()

    client := NewClient(config.ClientConfig.baseURL())
    pushed, err := client.Load(ctx, config.Stack, file)
    if err != nil {
        fmt.Printf("Error loading stack %s: %s\n", config.Stack, err)
    }
    fmt.Printf("Pushed %d values onto %s\n", pushed, config.Stack)
}

// Load sends the values read from r to the stack in batches. Lines that are not
// valid JSON are skipped. It returns how many values the server accepted.
func (c *Client) Load(ctx context.Context, stack string, r io.Reader) (int, error) {
    scanner := bufio.NewScanner(r)
    scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

    var batch bytes.Buffer
    count, pushed := 0, 0

    flush := func() error {
        if count == 0 {
            return nil
        }
        n, err := c.submitBatch(ctx, stack, batch.Bytes())
        pushed += n
        batch.Reset()
        count = 0
        return err
    }

    for scanner.Scan() {
        line := bytes.TrimSpace(scanner.Bytes())
        if len(line) == 0 {
            continue
        }
        if !json.Valid(line) {
            slog.Warn("Skipping invalid JSON line", "line", string(line))
            continue
        }
        batch.Write(line)
        batch.WriteByte('\n')
        count++

        if count >= batchSize {
            if err := flush(); err != nil {
                return pushed, err
            }
        }
    }
    if err := scanner.Err(); err != nil {
        return pushed, fmt.Errorf("scanning input: %w", err)
    }
    return pushed, flush()
}

func (c *Client) submitBatch(ctx context.Context, stack string, batch []byte) (int, error) {
    out, err := c.submit(ctx, "load", "POST", "/stacks/"+url.PathEscape(stack)+"/bulk", string(batch))
    if err != nil {
        return 0, err
    }

    var response struct {
        Pushed int `json:"pushed"`
    }
    if err = json.Unmarshal([]byte(out), &response); err != nil {
        return 0, fmt.Errorf("decoding bulk response: %w", err)
    }
    return response.Pushed, nil
}
