// Package tracing provides the daemon's shared OpenTelemetry tracer. Real
// tracing requires CONDUCTOR_OTEL_ENDPOINT (or an explicit Configure call)
// to be set; without it every span is a no-op.
package tracing

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	mu             sync.Mutex
	initDone       bool
	tracerProvider trace.TracerProvider = noop.NewTracerProvider()
	sdkProvider    *sdktrace.TracerProvider
)

// Configure wires a real OTLP/HTTP exporter when endpoint is non-empty. It
// is safe to call multiple times; only the first call with a non-empty
// endpoint has an effect. Call before the first Tracer lookup, typically
// from cmd/conductord's startup, the same soft-fail shape as an optional
// external dependency the daemon can run without.
func Configure(ctx context.Context, serviceName, endpoint string, sampleRatio float64) {
	mu.Lock()
	defer mu.Unlock()
	if initDone || strings.TrimSpace(endpoint) == "" {
		return
	}
	initDone = true

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(stripScheme(endpoint)),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		res = resource.Default()
	}

	sampler := sdktrace.AlwaysSample()
	if sampleRatio > 0 && sampleRatio < 1 {
		sampler = sdktrace.TraceIDRatioBased(sampleRatio)
	}

	sdkProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	tracerProvider = sdkProvider
	otel.SetTracerProvider(tracerProvider)
}

func stripScheme(endpoint string) string {
	for _, prefix := range []string{"https://", "http://"} {
		if strings.HasPrefix(endpoint, prefix) {
			return strings.TrimPrefix(endpoint, prefix)
		}
	}
	return endpoint
}

// Tracer returns a named tracer. No-op until Configure has run with a
// non-empty endpoint.
func Tracer(name string) trace.Tracer {
	mu.Lock()
	defer mu.Unlock()
	return tracerProvider.Tracer(name)
}

// Shutdown flushes pending spans, if a real exporter was configured.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	p := sdkProvider
	mu.Unlock()
	if p != nil {
		return p.Shutdown(ctx)
	}
	return nil
}
