package server

import (
    "context"
    "errors"
    "fmt"
    "github.com/aleph-zero/segstack/api"
    "github.com/aleph-zero/segstack/service/identity"
    "github.com/aleph-zero/segstack/service/registry"
    "github.com/aleph-zero/segstack/telemetry"
    "github.com/go-chi/chi/v5"
    "github.com/go-chi/chi/v5/middleware"
    "github.com/go-chi/httplog/v2"
    "github.com/go-chi/render"
    "github.com/riandyrn/otelchi"
    "log/slog"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"
)

const (
    serviceName    = "segstack"
    serviceVersion = "0.0.1"
)

var collectorURL = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")

/* *** Server Config *** */

type Config struct {
    NodeName       string
    Address        string
    Port           uint16
    PersistOnExit  bool
    RegistryConfig *registry.Config
}

type Option func(*Config)

func NewConfig(options ...Option) *Config {
    cfg := &Config{RegistryConfig: registry.NewConfig()}
    for _, option := range options {
        option(cfg)
    }
    return cfg
}

func WithNodeName(nodeName string) Option {
    return func(c *Config) {
        c.NodeName = nodeName
    }
}

func WithAddress(address string) Option {
    return func(c *Config) {
        c.Address = address
    }
}

func WithPort(port uint16) Option {
    return func(c *Config) {
        c.Port = port
    }
}

// WithPersistOnExit writes the registry to disk during shutdown.
func WithPersistOnExit(persist bool) Option {
    return func(c *Config) {
        c.PersistOnExit = persist
    }
}

func WithRegistryConfig(registryConfig *registry.Config) Option {
    return func(c *Config) {
        c.RegistryConfig = registryConfig
    }
}

// NewRouter wires the registry handlers behind the standard middleware.
func NewRouter(logger *httplog.Logger, reg registry.Service, ident identity.Service) chi.Router {
    router := chi.NewRouter()
    router.Use(middleware.Heartbeat("/heartbeat"))
    router.Use(otelchi.Middleware(serviceName, otelchi.WithChiRoutes(router)))
    router.Use(middleware.RequestID)
    router.Use(render.SetContentType(render.ContentTypeJSON))
    router.Use(httplog.RequestLogger(logger))

    {
        handler := api.NewIdentityHandler(ident)
        router.Get("/identity", handler.GetIdentity)
    }
    {
        handler := api.NewStackHandler(reg)
        router.Mount("/stacks", handler.Routes())
    }
    {
        handler := api.NewRegistryHandler(reg)
        router.Post("/persist", handler.Persist)
    }
    return router
}

func NewLogger() *httplog.Logger {
    return httplog.NewLogger(serviceName, httplog.Options{
        LogLevel:         slog.LevelInfo,
        MessageFieldName: "msg",
        JSON:             true,
        Concise:          true,
        RequestHeaders:   false,
        ResponseHeaders:  false,
    })
}

func Bootstrap(config *Config) {
    ctx, shutdown := context.WithTimeout(context.Background(), 10*time.Second)
    defer shutdown()

    logger := NewLogger()
    logger.InfoContext(ctx, "Bootstrapping server...", "config", config)

    /* *** Initialize Opentelemetry *** */
    shutdownTelemetry, err := telemetry.New(serviceName, serviceVersion, collectorURL)
    if err != nil {
        logger.ErrorContext(ctx, "Error initializing telemetry", "err", err)
        shutdownTelemetry = func() {}
    }
    defer shutdownTelemetry()

    /* *** Initialize services and handlers, and inject them into the api routes *** */
    reg := registry.NewService(config.RegistryConfig)
    if err := reg.Open(); err != nil {
        logger.ErrorContext(ctx, "Error opening registry", "err", err)
        os.Exit(1)
    }

    srv := http.Server{
        Addr:    fmt.Sprintf("%s:%d", config.Address, config.Port),
        Handler: NewRouter(logger, reg, identity.NewService(config.NodeName, config.Address, config.Port, serviceVersion)),
    }

    go func() {
        if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            logger.ErrorContext(ctx, "Error starting server", "err", err)
        }
        logger.InfoContext(ctx, "Server stopped accepting connections")
    }()

    sig := make(chan os.Signal, 1)
    signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
    <-sig

    if err := srv.Shutdown(ctx); err != nil {
        logger.ErrorContext(ctx, "Error shutting down server", "err", err)
        os.Exit(1)
    }
    if config.PersistOnExit {
        if err := reg.Persist(); err != nil {
            logger.ErrorContext(ctx, "Error persisting registry", "err", err)
            os.Exit(1)
        }
    }
    logger.InfoContext(ctx, "Server shutdown complete")
}
