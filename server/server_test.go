package server

import (
    "github.com/aleph-zero/segstack/service/identity"
    "github.com/aleph-zero/segstack/service/registry"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "io"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
)

func TestNewRouter(t *testing.T) {
    reg := registry.NewService(registry.NewConfig(registry.WithDirectory(t.TempDir())))
    server := httptest.NewServer(NewRouter(NewLogger(), reg, identity.NewService("n1", "127.0.0.1", 1234, serviceVersion)))
    defer server.Close()

    tests := []struct {
        name   string
        method string
        path   string
        body   string
        status int
    }{
        {name: "heartbeat", method: http.MethodGet, path: "/heartbeat", status: http.StatusOK},
        {name: "identity", method: http.MethodGet, path: "/identity", status: http.StatusOK},
        {name: "create", method: http.MethodPut, path: "/stacks/s", status: http.StatusCreated},
        {name: "push", method: http.MethodPost, path: "/stacks/s/push", body: `{"a":1}`, status: http.StatusOK},
        {name: "top", method: http.MethodGet, path: "/stacks/s/top", status: http.StatusOK},
        {name: "list", method: http.MethodGet, path: "/stacks", status: http.StatusOK},
        {name: "persist", method: http.MethodPost, path: "/persist", status: http.StatusNoContent},
        {name: "unknown route", method: http.MethodGet, path: "/tables", status: http.StatusNotFound},
    }

    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            var body io.Reader
            if tt.body != "" {
                body = strings.NewReader(tt.body)
            }
            req, err := http.NewRequest(tt.method, server.URL+tt.path, body)
            require.NoError(t, err)

            res, err := server.Client().Do(req)
            require.NoError(t, err)
            defer res.Body.Close()

            assert.Equal(t, tt.status, res.StatusCode)
            if tt.status == http.StatusOK && tt.path != "/heartbeat" {
                assert.Contains(t, res.Header.Get("Content-Type"), "application/json")
            }
        })
    }
}

func TestNewConfig(t *testing.T) {
    cfg := NewConfig(WithNodeName("n1"), WithAddress("127.0.0.1"), WithPort(8080), WithPersistOnExit(true),
        WithRegistryConfig(registry.NewConfig(registry.WithDirectory("/tmp/segstack"))))

    assert.Equal(t, "n1", cfg.NodeName)
    assert.Equal(t, "127.0.0.1", cfg.Address)
    assert.Equal(t, uint16(8080), cfg.Port)
    assert.True(t, cfg.PersistOnExit)
    assert.Equal(t, "/tmp/segstack", cfg.RegistryConfig.Directory)
}
