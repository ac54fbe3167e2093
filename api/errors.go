package api

import (
    "errors"
    "github.com/aleph-zero/segstack/service/registry"
    "github.com/go-chi/render"
    "net/http"
)

type ErrResponse struct {
    Err            error `json:"-"`
    HTTPStatusCode int   `json:"-"`

    StatusText string `json:"status"`
    ErrorText  string `json:"error,omitempty"`
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
    render.Status(r, e.HTTPStatusCode)
    return nil
}

func newErrResponse(err error, status int) render.Renderer {
    return &ErrResponse{
        Err:            err,
        HTTPStatusCode: status,
        StatusText:     http.StatusText(status),
        ErrorText:      err.Error(),
    }
}

func ErrInvalidRequest(err error) render.Renderer {
    return newErrResponse(err, http.StatusBadRequest)
}

func ErrNotFound(err error) render.Renderer {
    return newErrResponse(err, http.StatusNotFound)
}

func ErrConflict(err error) render.Renderer {
    return newErrResponse(err, http.StatusConflict)
}

func ErrInsufficientStorage(err error) render.Renderer {
    return newErrResponse(err, http.StatusInsufficientStorage)
}

func ErrInternalServerError(err error) render.Renderer {
    return newErrResponse(err, http.StatusInternalServerError)
}

// ErrRegistry maps a registry error onto its HTTP response.
func ErrRegistry(err error) render.Renderer {
    switch {
    case errors.Is(err, registry.Error{ErrorCode: registry.NoSuchStack}):
        return ErrNotFound(err)
    case errors.Is(err, registry.Error{ErrorCode: registry.StackExists}),
        errors.Is(err, registry.Error{ErrorCode: registry.EmptyStack}):
        return ErrConflict(err)
    case errors.Is(err, registry.Error{ErrorCode: registry.InvalidGroupSizes}),
        errors.Is(err, registry.Error{ErrorCode: registry.InvalidArgument}):
        return ErrInvalidRequest(err)
    case errors.Is(err, registry.Error{ErrorCode: registry.StorageExhausted}):
        return ErrInsufficientStorage(err)
    }
    return ErrInternalServerError(err)
}
