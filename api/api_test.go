package api

import (
    "encoding/json"
    "fmt"
    "github.com/aleph-zero/segstack/service/registry"
    "github.com/go-chi/chi/v5"
    "github.com/go-chi/render"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "io"
    "net/http"
    "net/http/httptest"
    "os"
    "path/filepath"
    "strings"
    "testing"
)

func TestStackHandler_Lifecycle(t *testing.T) {
    server := httptest.NewServer(initializeTestRouter(t, t.TempDir()))
    defer server.Close()

    status, body := do(t, server, http.MethodPut, "/stacks/s1", `{"min_group_size":3,"max_group_size":8}`)
    require.Equal(t, http.StatusCreated, status, body)
    info := decode[registry.Info](t, body)
    assert.Equal(t, "s1", info.Name)
    assert.Equal(t, 3, info.MinGroupSize)
    assert.Equal(t, 8, info.MaxGroupSize)

    status, body = do(t, server, http.MethodPut, "/stacks/s1", "")
    assert.Equal(t, http.StatusConflict, status, body)

    for _, v := range []string{`1`, `"two"`, `{"three":3}`} {
        status, body = do(t, server, http.MethodPost, "/stacks/s1/push", v)
        require.Equal(t, http.StatusOK, status, body)
    }
    assert.Equal(t, 3, decode[registry.Info](t, body).Size)

    status, body = do(t, server, http.MethodGet, "/stacks/s1/top", "")
    require.Equal(t, http.StatusOK, status, body)
    assert.JSONEq(t, `{"value":{"three":3}}`, body)

    status, body = do(t, server, http.MethodPost, "/stacks/s1/pop", "")
    require.Equal(t, http.StatusOK, status, body)
    popped := decode[PopResponse](t, body)
    assert.JSONEq(t, `{"three":3}`, string(popped.Value))
    assert.Equal(t, 2, popped.Info.Size)

    status, body = do(t, server, http.MethodGet, "/stacks", "")
    require.Equal(t, http.StatusOK, status, body)
    infos := decode[[]registry.Info](t, body)
    require.Len(t, infos, 1)
    assert.Equal(t, "s1", infos[0].Name)

    status, body = do(t, server, http.MethodDelete, "/stacks/s1", "")
    require.Equal(t, http.StatusNoContent, status, body)

    status, body = do(t, server, http.MethodGet, "/stacks/s1", "")
    assert.Equal(t, http.StatusNotFound, status, body)
}

func TestStackHandler_Errors(t *testing.T) {
    server := httptest.NewServer(initializeTestRouter(t, t.TempDir()))
    defer server.Close()

    status, body := do(t, server, http.MethodPut, "/stacks/s", "")
    require.Equal(t, http.StatusCreated, status, body)

    tests := []struct {
        name   string
        method string
        path   string
        body   string
        status int
    }{
        {name: "pop empty", method: http.MethodPost, path: "/stacks/s/pop", status: http.StatusConflict},
        {name: "top empty", method: http.MethodGet, path: "/stacks/s/top", status: http.StatusConflict},
        {name: "push invalid json", method: http.MethodPost, path: "/stacks/s/push", body: "{nope", status: http.StatusBadRequest},
        {name: "push missing stack", method: http.MethodPost, path: "/stacks/x/push", body: "1", status: http.StatusNotFound},
        {name: "reserve missing n", method: http.MethodPost, path: "/stacks/s/reserve", status: http.StatusBadRequest},
        {name: "reserve below floor", method: http.MethodPost, path: "/stacks/s/reserve?n=2", status: http.StatusBadRequest},
        {name: "invalid group sizes", method: http.MethodPost, path: "/stacks/s/groups?min=9&max=4", status: http.StatusBadRequest},
        {name: "create negative sizes", method: http.MethodPut, path: "/stacks/t", body: `{"min_group_size":-1}`, status: http.StatusBadRequest},
        {name: "reserve above budget", method: http.MethodPost, path: "/stacks/s/reserve?n=1000000000000", status: http.StatusInsufficientStorage},
        {name: "create minimum above budget", method: http.MethodPut, path: "/stacks/u", body: `{"min_group_size":1000000000000}`, status: http.StatusBadRequest},
        {name: "create maximum above budget", method: http.MethodPut, path: "/stacks/u", body: `{"max_group_size":1000000000000}`, status: http.StatusBadRequest},
        {name: "groups above budget", method: http.MethodPost, path: "/stacks/s/groups?min=3&max=1000000000000", status: http.StatusBadRequest},
    }

    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            status, body := do(t, server, tt.method, tt.path, tt.body)
            assert.Equal(t, tt.status, status, body)
            assert.Equal(t, http.StatusText(tt.status), decode[ErrResponse](t, body).StatusText)
        })
    }
}

func TestStackHandler_Capacity(t *testing.T) {
    server := httptest.NewServer(initializeTestRouter(t, t.TempDir()))
    defer server.Close()

    status, body := do(t, server, http.MethodPut, "/stacks/s", `{"min_group_size":4,"max_group_size":64}`)
    require.Equal(t, http.StatusCreated, status, body)

    status, body = do(t, server, http.MethodPost, "/stacks/s/reserve?n=32", "")
    require.Equal(t, http.StatusOK, status, body)
    assert.Equal(t, 32, decode[registry.Info](t, body).Capacity)

    status, body = do(t, server, http.MethodPost, "/stacks/s/bulk", "[1, 2, 3, 4, 5]")
    require.Equal(t, http.StatusOK, status, body)
    bulk := decode[BulkPushResponse](t, body)
    assert.Equal(t, 5, bulk.Pushed)
    assert.Equal(t, 5, bulk.Info.Size)

    status, body = do(t, server, http.MethodPost, "/stacks/s/shrink", "")
    require.Equal(t, http.StatusOK, status, body)
    assert.Equal(t, 5, decode[registry.Info](t, body).Capacity)

    status, body = do(t, server, http.MethodPost, "/stacks/s/groups?min=3&max=3", "")
    require.Equal(t, http.StatusOK, status, body)
    info := decode[registry.Info](t, body)
    assert.Equal(t, 5, info.Size)
    assert.Equal(t, 6, info.Capacity)

    status, body = do(t, server, http.MethodPost, "/stacks/s/trim", "")
    require.Equal(t, http.StatusOK, status, body)

    status, body = do(t, server, http.MethodPost, "/stacks/s/clear", "")
    require.Equal(t, http.StatusOK, status, body)
    info = decode[registry.Info](t, body)
    assert.Zero(t, info.Size)
    assert.Zero(t, info.Capacity)
}

func TestRegistryHandler_Persist(t *testing.T) {
    dir := t.TempDir()
    server := httptest.NewServer(initializeTestRouter(t, dir))
    defer server.Close()

    status, body := do(t, server, http.MethodPut, "/stacks/s", "")
    require.Equal(t, http.StatusCreated, status, body)
    status, body = do(t, server, http.MethodPost, "/stacks/s/bulk", `"a" "b"`)
    require.Equal(t, http.StatusOK, status, body)

    status, body = do(t, server, http.MethodPost, "/persist", "")
    require.Equal(t, http.StatusNoContent, status, body)

    data, err := os.ReadFile(filepath.Join(dir, "registry.json"))
    require.NoError(t, err)
    assert.Contains(t, string(data), `"values"`)
}

func TestProcessJsonStream(t *testing.T) {
    tests := []struct {
        name     string
        body     string
        expected []string
        err      bool
    }{
        {name: "array", body: ` [1, "a", {"b":2}]`, expected: []string{`1`, `"a"`, `{"b":2}`}},
        {name: "stream", body: "{\"a\":1}\n{\"a\":2}\n", expected: []string{`{"a":1}`, `{"a":2}`}},
        {name: "scalars", body: `true null 3`, expected: []string{`true`, `null`, `3`}},
        {name: "empty", body: "  ", err: true},
        {name: "truncated array", body: `[1, 2`, err: true},
    }

    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
            var values []string
            err := ProcessJsonStream(req, func(v json.RawMessage) error {
                values = append(values, string(v))
                return nil
            })
            if tt.err {
                assert.Error(t, err)
                return
            }
            require.NoError(t, err)
            assert.Equal(t, tt.expected, values)
        })
    }
}

func do(t *testing.T, server *httptest.Server, method, path, body string) (int, string) {
    t.Helper()
    var reader io.Reader
    if body != "" {
        reader = strings.NewReader(body)
    }
    req, err := http.NewRequest(method, fmt.Sprintf("%s%s", server.URL, path), reader)
    require.NoError(t, err)

    res, err := server.Client().Do(req)
    require.NoError(t, err)
    defer res.Body.Close()

    data, err := io.ReadAll(res.Body)
    require.NoError(t, err)
    return res.StatusCode, string(data)
}

func decode[T any](t *testing.T, body string) T {
    t.Helper()
    var v T
    require.NoError(t, json.Unmarshal([]byte(body), &v), body)
    return v
}

func initializeTestRouter(t *testing.T, dir string) chi.Router {
    router := chi.NewRouter()
    router.Use(render.SetContentType(render.ContentTypeJSON))

    reg := registry.NewService(registry.NewConfig(registry.WithDirectory(dir)))
    require.NoError(t, reg.Open())

    stacks := NewStackHandler(reg)
    router.Mount("/stacks", stacks.Routes())

    handler := NewRegistryHandler(reg)
    router.Post("/persist", handler.Persist)

    return router
}
