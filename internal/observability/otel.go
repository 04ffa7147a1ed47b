package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

var tracer trace.Tracer

// InitTracer configures the global OpenTelemetry tracer provider to
// export spans via OTLP/gRPC to endpoint, tagging every span with
// serviceName. Call the returned shutdown func during graceful
// shutdown to flush any buffered spans.
func InitTracer(ctx context.Context, serviceName, endpoint string) (func(context.Context) error, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: create otlp exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	tracer = tp.Tracer(serviceName)

	return tp.Shutdown, nil
}

// GetTracer returns the package-level tracer, initialized by InitTracer.
func GetTracer() trace.Tracer {
	if tracer == nil {
		tracer = otel.Tracer("reservation-core")
	}
	return tracer
}

// StartSpan starts a span named name as a child of ctx.
func StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, name)
}

// AddSpanAttributes attaches key/value string attributes to span.
func AddSpanAttributes(span trace.Span, attrs map[string]string) {
	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kvs = append(kvs, attribute.String(k, v))
	}
	span.SetAttributes(kvs...)
}

// RecordError records err on span and marks it as errored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// EndSpan ends span, recording err if non-nil.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		RecordError(span, err)
	}
	span.End()
}

// TraceMethod wraps fn in a span named name, recording its duration,
// error, and a success attribute.
func TraceMethod(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := StartSpan(ctx, name)
	start := time.Now()
	err := fn(ctx)
	span.SetAttributes(
		attribute.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
		attribute.Bool("success", err == nil),
	)
	EndSpan(span, err)
	return err
}
