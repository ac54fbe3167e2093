package api

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "github.com/aleph-zero/segstack/service/identity"
    "github.com/aleph-zero/segstack/service/registry"
    "github.com/go-chi/chi/v5"
    "github.com/go-chi/render"
    "io"
    "net/http"
    "strconv"
)

type contextKey string

const stackKey contextKey = "stack"

// StackContext stores the {name} URL parameter in the request context.
func StackContext(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        var name string
        if name = chi.URLParam(r, "name"); name == "" {
            render.Render(w, r, ErrInvalidRequest(errors.New("missing stack name")))
            return
        }
        ctx := context.WithValue(r.Context(), stackKey, name)
        next.ServeHTTP(w, r.WithContext(ctx))
    })
}

func stackName(r *http.Request) string {
    return r.Context().Value(stackKey).(string)
}

/* *** Stack API *** */

type StackHandler struct {
    service registry.Service
}

func NewStackHandler(svc registry.Service) StackHandler {
    return StackHandler{service: svc}
}

// Routes mounts the per-stack endpoints under /{name}.
func (h *StackHandler) Routes() chi.Router {
    r := chi.NewRouter()
    r.Get("/", h.List)
    r.Route("/{name}", func(r chi.Router) {
        r.Use(StackContext)
        r.Put("/", h.Create)
        r.Get("/", h.Get)
        r.Delete("/", h.Drop)
        r.Post("/push", h.Push)
        r.Post("/bulk", h.BulkPush)
        r.Post("/pop", h.Pop)
        r.Get("/top", h.Top)
        r.Post("/reserve", h.Reserve)
        r.Post("/shrink", h.ShrinkToFit)
        r.Post("/trim", h.Trim)
        r.Post("/clear", h.Clear)
        r.Post("/groups", h.ChangeGroupSizes)
    })
    return r
}

func (h *StackHandler) Create(w http.ResponseWriter, r *http.Request) {
    data := &CreateStackRequest{}
    if r.ContentLength != 0 {
        if err := render.Bind(r, data); err != nil {
            render.Render(w, r, ErrInvalidRequest(err))
            return
        }
    }

    info, err := h.service.Create(r.Context(), stackName(r), data.MinGroupSize, data.MaxGroupSize)
    if err != nil {
        render.Render(w, r, ErrRegistry(err))
        return
    }

    render.Status(r, http.StatusCreated)
    render.Render(w, r, &InfoResponse{info})
}

func (h *StackHandler) Get(w http.ResponseWriter, r *http.Request) {
    info, err := h.service.Get(stackName(r))
    if err != nil {
        render.Render(w, r, ErrRegistry(err))
        return
    }
    render.Render(w, r, &InfoResponse{info})
}

func (h *StackHandler) List(w http.ResponseWriter, r *http.Request) {
    infos := h.service.List()
    list := make([]render.Renderer, 0, len(infos))
    for _, info := range infos {
        list = append(list, &InfoResponse{info})
    }
    render.RenderList(w, r, list)
}

func (h *StackHandler) Drop(w http.ResponseWriter, r *http.Request) {
    if err := h.service.Drop(r.Context(), stackName(r)); err != nil {
        render.Render(w, r, ErrRegistry(err))
        return
    }
    render.NoContent(w, r)
}

func (h *StackHandler) Push(w http.ResponseWriter, r *http.Request) {
    defer r.Body.Close()
    data, err := io.ReadAll(r.Body)
    if err != nil {
        render.Render(w, r, ErrInvalidRequest(err))
        return
    }
    if !json.Valid(data) {
        render.Render(w, r, ErrInvalidRequest(errors.New("request body is not a JSON value")))
        return
    }

    info, err := h.service.Push(r.Context(), stackName(r), json.RawMessage(data))
    if err != nil {
        render.Render(w, r, ErrRegistry(err))
        return
    }
    render.Render(w, r, &InfoResponse{info})
}

// BulkPush pushes every value of a JSON array, or of a stream of JSON values,
// in order. Values pushed before a failure stay pushed.
func (h *StackHandler) BulkPush(w http.ResponseWriter, r *http.Request) {
    name := stackName(r)
    response := &BulkPushResponse{}
    processor := func(value json.RawMessage) error {
        info, err := h.service.Push(r.Context(), name, value)
        if err != nil {
            return err
        }
        response.Pushed++
        response.Info = info
        return nil
    }

    if err := ProcessJsonStream(r, processor); err != nil {
        var registryErr registry.Error
        if errors.As(err, &registryErr) {
            render.Render(w, r, ErrRegistry(err))
            return
        }
        render.Render(w, r, ErrInvalidRequest(err))
        return
    }

    if response.Info == nil {
        info, err := h.service.Get(name)
        if err != nil {
            render.Render(w, r, ErrRegistry(err))
            return
        }
        response.Info = info
    }
    render.Render(w, r, response)
}

func (h *StackHandler) Pop(w http.ResponseWriter, r *http.Request) {
    value, info, err := h.service.Pop(r.Context(), stackName(r))
    if err != nil {
        render.Render(w, r, ErrRegistry(err))
        return
    }
    render.Render(w, r, &PopResponse{Value: value, Info: info})
}

func (h *StackHandler) Top(w http.ResponseWriter, r *http.Request) {
    value, err := h.service.Top(r.Context(), stackName(r))
    if err != nil {
        render.Render(w, r, ErrRegistry(err))
        return
    }
    render.Render(w, r, &TopResponse{Value: value})
}

func (h *StackHandler) Reserve(w http.ResponseWriter, r *http.Request) {
    n, err := intParam(r, "n")
    if err != nil {
        render.Render(w, r, ErrInvalidRequest(err))
        return
    }
    h.respond(w, r)(h.service.Reserve(r.Context(), stackName(r), n))
}

func (h *StackHandler) ShrinkToFit(w http.ResponseWriter, r *http.Request) {
    h.respond(w, r)(h.service.ShrinkToFit(r.Context(), stackName(r)))
}

func (h *StackHandler) Trim(w http.ResponseWriter, r *http.Request) {
    h.respond(w, r)(h.service.Trim(r.Context(), stackName(r)))
}

func (h *StackHandler) Clear(w http.ResponseWriter, r *http.Request) {
    h.respond(w, r)(h.service.Clear(r.Context(), stackName(r)))
}

func (h *StackHandler) ChangeGroupSizes(w http.ResponseWriter, r *http.Request) {
    min, err := intParam(r, "min")
    if err != nil {
        render.Render(w, r, ErrInvalidRequest(err))
        return
    }
    max, err := intParam(r, "max")
    if err != nil {
        render.Render(w, r, ErrInvalidRequest(err))
        return
    }
    h.respond(w, r)(h.service.ChangeGroupSizes(r.Context(), stackName(r), min, max))
}

func (h *StackHandler) respond(w http.ResponseWriter, r *http.Request) func(*registry.Info, error) {
    return func(info *registry.Info, err error) {
        if err != nil {
            render.Render(w, r, ErrRegistry(err))
            return
        }
        render.Render(w, r, &InfoResponse{info})
    }
}

func intParam(r *http.Request, key string) (int, error) {
    value := r.URL.Query().Get(key)
    if value == "" {
        return 0, fmt.Errorf("missing query parameter %s", key)
    }
    n, err := strconv.Atoi(value)
    if err != nil {
        return 0, fmt.Errorf("query parameter %s: %w", key, err)
    }
    return n, nil
}

type CreateStackRequest struct {
    MinGroupSize int `json:"min_group_size,omitempty"`
    MaxGroupSize int `json:"max_group_size,omitempty"`
}

func (c *CreateStackRequest) Bind(r *http.Request) error {
    if c.MinGroupSize < 0 || c.MaxGroupSize < 0 {
        return errors.New("group sizes must not be negative")
    }
    return nil
}

type InfoResponse struct {
    *registry.Info
}

func (i *InfoResponse) Render(w http.ResponseWriter, r *http.Request) error {
    return nil
}

type PopResponse struct {
    Value json.RawMessage `json:"value"`
    Info  *registry.Info  `json:"info"`
}

func (p *PopResponse) Render(w http.ResponseWriter, r *http.Request) error {
    return nil
}

type TopResponse struct {
    Value json.RawMessage `json:"value"`
}

func (t *TopResponse) Render(w http.ResponseWriter, r *http.Request) error {
    return nil
}

type BulkPushResponse struct {
    Pushed int            `json:"pushed"`
    Info   *registry.Info `json:"info"`
}

func (b *BulkPushResponse) Render(w http.ResponseWriter, r *http.Request) error {
    return nil
}

/* *** Registry API *** */

type RegistryHandler struct {
    service registry.Service
}

func NewRegistryHandler(svc registry.Service) RegistryHandler {
    return RegistryHandler{service: svc}
}

func (h *RegistryHandler) Persist(w http.ResponseWriter, r *http.Request) {
    if err := h.service.Persist(); err != nil {
        render.Render(w, r, ErrInternalServerError(err))
        return
    }
    render.NoContent(w, r)
}

/* *** Identity API *** */

type IdentityHandler struct {
    service identity.Service
}

func NewIdentityHandler(svc identity.Service) IdentityHandler {
    return IdentityHandler{service: svc}
}

func (h *IdentityHandler) GetIdentity(w http.ResponseWriter, r *http.Request) {
    render.Render(w, r, &IdentityResponse{h.service.Identify()})
}

type IdentityResponse struct {
    identity.Model
}

func (i *IdentityResponse) Render(w http.ResponseWriter, r *http.Request) error {
    return nil
}
