package telemetry

import (
    "context"
    "go.opentelemetry.io/contrib/instrumentation/runtime"
    "go.opentelemetry.io/otel"
    "go.opentelemetry.io/otel/attribute"
    "go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
    "go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
    otelmetric "go.opentelemetry.io/otel/metric"
    "go.opentelemetry.io/otel/metric/noop"
    "go.opentelemetry.io/otel/propagation"
    "go.opentelemetry.io/otel/sdk/metric"
    "go.opentelemetry.io/otel/sdk/resource"
    sdktrace "go.opentelemetry.io/otel/sdk/trace"
    semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
    "go.opentelemetry.io/otel/trace"
    "os"
    "time"
)

const systemName = "segstack"

type IgnoreExporterErrorsHandler struct{}

func (IgnoreExporterErrorsHandler) Handle(err error) {}

// New installs global trace and meter providers exporting to collectorURL over
// OTLP/HTTP. An empty collectorURL leaves the no-op providers in place. The
// returned func flushes and shuts both down.
func New(service, version string, collectorURL string) (func(), error) {
    if collectorURL == "" {
        return func() {}, nil
    }
    ctx := context.Background()

    res, err := resource.New(
        ctx,
        resource.WithHost(),
        resource.WithContainer(),
        resource.WithAttributes(semconv.ServiceNameKey.String(service), semconv.ServiceVersion(version)))
    if err != nil {
        return nil, err
    }

    te, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(collectorURL), otlptracehttp.WithInsecure())
    if err != nil {
        return nil, err
    }

    tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(te), sdktrace.WithResource(res))
    otel.SetTracerProvider(tp)
    otel.SetTextMapPropagator(propagation.TraceContext{})

    me, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(collectorURL), otlpmetrichttp.WithInsecure())
    if err != nil {
        return nil, err
    }

    mp := metric.NewMeterProvider(
        metric.WithResource(res),
        metric.WithReader(metric.NewPeriodicReader(
            me,
            metric.WithProducer(runtime.NewProducer()),
            metric.WithInterval(60*time.Second))))

    // The new runtime metrics do not have sufficient data on gc count or pause time, cgo calls, heap objects, etc. So we use the old metrics.
    os.Setenv("OTEL_GO_X_DEPRECATED_RUNTIME_METRICS", "true")
    runtime.Start(runtime.WithMinimumReadMemStatsInterval(60 * time.Second))
    otel.SetMeterProvider(mp)

    // swallow otel errors so they don't spam stdout
    otel.SetErrorHandler(IgnoreExporterErrorsHandler{})

    return func() {
        _ = tp.Shutdown(context.Background())
        _ = mp.Shutdown(ctx)
    }, nil
}

func SetAttributes(span trace.Span, kv ...attribute.KeyValue) {
    for _, attr := range kv {
        span.SetAttributes(attr)
    }
}

func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
    opts = append(opts, trace.WithAttributes(attribute.String("db.system.name", systemName)))
    return otel.GetTracerProvider().Tracer(systemName).Start(ctx, name, opts...)
}

/* *** Instruments *** */

// Metrics holds the segstack instruments. Create it once, after New, and share
// it between every metered allocator.
type Metrics struct {
    allocBlocks   otelmetric.Int64UpDownCounter
    allocSlots    otelmetric.Int64UpDownCounter
    allocFailures otelmetric.Int64Counter
}

// NewMetrics creates the instruments from the global meter provider. If they
// cannot be created the error goes to the otel error handler and the returned
// instruments record nothing.
func NewMetrics() *Metrics {
    m, err := newMetrics(otel.Meter(systemName))
    if err != nil {
        otel.Handle(err)
        m, _ = newMetrics(noop.NewMeterProvider().Meter(systemName))
    }
    return m
}

func newMetrics(meter otelmetric.Meter) (*Metrics, error) {
    blocks, err := meter.Int64UpDownCounter("segstack.alloc.blocks",
        otelmetric.WithDescription("Groups of element storage currently allocated"), otelmetric.WithUnit("{block}"))
    if err != nil {
        return nil, err
    }
    slots, err := meter.Int64UpDownCounter("segstack.alloc.slots",
        otelmetric.WithDescription("Element slots currently allocated"), otelmetric.WithUnit("{slot}"))
    if err != nil {
        return nil, err
    }
    failures, err := meter.Int64Counter("segstack.alloc.failures",
        otelmetric.WithDescription("Allocation requests that could not be served"))
    if err != nil {
        return nil, err
    }
    return &Metrics{allocBlocks: blocks, allocSlots: slots, allocFailures: failures}, nil
}
