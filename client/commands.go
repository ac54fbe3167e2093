package client

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
    "go.opentelemetry.io/otel"
    "go.opentelemetry.io/otel/attribute"
    "go.opentelemetry.io/otel/codes"
    "go.opentelemetry.io/otel/trace"
    "io"
    "net/http"
    "net/url"
    "strconv"
    "strings"
    "time"
)

const usage = `commands:
  create NAME [MIN MAX]   create a stack, optionally with group sizes
  drop NAME               drop a stack
  push NAME JSON          push a JSON value
  pop NAME                pop the top value
  top NAME                show the top value
  info NAME               show size and capacity
  list                    list stacks
  reserve NAME N          reserve capacity for N values
  shrink NAME             shrink capacity to fit
  trim NAME               free unused trailing groups
  clear NAME              remove every value
  groups NAME MIN MAX     change group sizes
  persist                 write the registry to disk`

// Client issues REPL commands against a segstack server.
type Client struct {
    baseURL string
    http    *http.Client
}

func NewClient(baseURL string) *Client {
    return &Client{
        baseURL: strings.TrimSuffix(baseURL, "/"),
        http: &http.Client{
            Transport: otelhttp.NewTransport(http.DefaultTransport),
            Timeout:   time.Second * 30,
        },
    }
}

// Execute runs one command line and returns the server's response formatted
// for display.
func (c *Client) Execute(ctx context.Context, line string) (string, error) {
    command, rest := next(line)
    switch command {
    case "help":
        return usage, nil
    case "list":
        return c.submit(ctx, command, http.MethodGet, "/stacks", "")
    case "persist":
        return c.submit(ctx, command, http.MethodPost, "/persist", "")
    }

    name, rest := next(rest)
    if name == "" {
        return "", fmt.Errorf("%s: missing stack name", command)
    }
    path := "/stacks/" + url.PathEscape(name)

    switch command {
    case "create":
        body := ""
        if rest != "" {
            sizes, err := ints(rest, "MIN", "MAX")
            if err != nil {
                return "", fmt.Errorf("create: %w", err)
            }
            body = fmt.Sprintf(`{"min_group_size":%d,"max_group_size":%d}`, sizes[0], sizes[1])
        }
        return c.submit(ctx, command, http.MethodPut, path, body)
    case "drop":
        return c.submit(ctx, command, http.MethodDelete, path, "")
    case "push":
        if !json.Valid([]byte(rest)) {
            return "", fmt.Errorf("push: %q is not a JSON value", rest)
        }
        return c.submit(ctx, command, http.MethodPost, path+"/push", rest)
    case "pop":
        return c.submit(ctx, command, http.MethodPost, path+"/pop", "")
    case "top":
        return c.submit(ctx, command, http.MethodGet, path+"/top", "")
    case "info":
        return c.submit(ctx, command, http.MethodGet, path, "")
    case "reserve":
        n, err := ints(rest, "N")
        if err != nil {
            return "", fmt.Errorf("reserve: %w", err)
        }
        return c.submit(ctx, command, http.MethodPost, fmt.Sprintf("%s/reserve?n=%d", path, n[0]), "")
    case "shrink":
        return c.submit(ctx, command, http.MethodPost, path+"/shrink", "")
    case "trim":
        return c.submit(ctx, command, http.MethodPost, path+"/trim", "")
    case "clear":
        return c.submit(ctx, command, http.MethodPost, path+"/clear", "")
    case "groups":
        sizes, err := ints(rest, "MIN", "MAX")
        if err != nil {
            return "", fmt.Errorf("groups: %w", err)
        }
        return c.submit(ctx, command, http.MethodPost, fmt.Sprintf("%s/groups?min=%d&max=%d", path, sizes[0], sizes[1]), "")
    }
    return "", fmt.Errorf("unknown command %q, try help", command)
}

func (c *Client) submit(ctx context.Context, command, method, path, body string) (string, error) {
    tr := otel.Tracer(serviceName)
    traceCtx, span := tr.Start(ctx, "client."+command, trace.WithSpanKind(trace.SpanKindClient),
        trace.WithAttributes(attribute.String("http.path", path)))
    defer span.End()

    var reader io.Reader
    if body != "" {
        reader = strings.NewReader(body)
    }
    req, err := http.NewRequestWithContext(traceCtx, method, c.baseURL+path, reader)
    if err != nil {
        return "", err
    }
    if body != "" {
        req.Header.Set("Content-Type", "application/json")
    }

    res, err := c.http.Do(req)
    if err != nil {
        span.SetStatus(codes.Error, err.Error())
        return "", err
    }
    defer res.Body.Close()

    data, err := io.ReadAll(res.Body)
    if err != nil {
        return "", err
    }

    if res.StatusCode >= http.StatusBadRequest {
        span.SetStatus(codes.Error, res.Status)
        var failure struct {
            Error string `json:"error"`
        }
        if json.Unmarshal(data, &failure) == nil && failure.Error != "" {
            return "", errors.New(failure.Error)
        }
        return "", errors.New(res.Status)
    }
    if len(bytes.TrimSpace(data)) == 0 {
        return "ok", nil
    }

    var out bytes.Buffer
    if err = json.Indent(&out, bytes.TrimSpace(data), "", "  "); err != nil {
        return string(data), nil
    }
    return out.String(), nil
}

// next splits off the first whitespace separated word of s.
func next(s string) (string, string) {
    s = strings.TrimSpace(s)
    if i := strings.IndexAny(s, " \t"); i >= 0 {
        return s[:i], strings.TrimSpace(s[i+1:])
    }
    return s, ""
}

func ints(s string, names ...string) ([]int, error) {
    fields := strings.Fields(s)
    if len(fields) != len(names) {
        return nil, fmt.Errorf("expected %s", strings.Join(names, " "))
    }
    values := make([]int, len(fields))
    for i, f := range fields {
        v, err := strconv.Atoi(f)
        if err != nil {
            return nil, fmt.Errorf("%s: %w", names[i], err)
        }
        values[i] = v
    }
    return values, nil
}
