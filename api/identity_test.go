package api

import (
    "github.com/aleph-zero/segstack/service/identity"
    "github.com/go-chi/chi/v5"
    "github.com/go-chi/render"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "net/http"
    "net/http/httptest"
    "testing"
)

func TestIdentityHandler_GetIdentity(t *testing.T) {
    router := chi.NewRouter()
    router.Use(render.SetContentType(render.ContentTypeJSON))
    handler := NewIdentityHandler(identity.NewService("node-1", "0.0.0.0", 1234, "0.0.1"))
    router.Get("/identity", handler.GetIdentity)

    server := httptest.NewServer(router)
    defer server.Close()

    status, body := do(t, server, http.MethodGet, "/identity", "")
    require.Equal(t, http.StatusOK, status, body)

    model := decode[identity.Model](t, body)
    assert.Equal(t, "node-1", model.Node)
    assert.Equal(t, uint16(1234), model.Port)
    assert.Equal(t, "0.0.1", model.Version)
    assert.False(t, model.Started.IsZero())
}
