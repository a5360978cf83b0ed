// Package tracing opens OpenTelemetry spans for RPCs and for cache misses
// that reach a guarded dependency. Nothing is traced unless a TracingConfig
// is installed with WithOpenTelemetry.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const instrumentation = "github.com/Keksclan/rawrguild/tracing"

// TracingConfig selects the provider and propagator. Zero fields fall back to
// the otel globals.
type TracingConfig struct {
	TracerProvider trace.TracerProvider
	Propagators    propagation.TextMapPropagator
}

func (c *TracingConfig) tracer() trace.Tracer {
	if c.TracerProvider != nil {
		return c.TracerProvider.Tracer(instrumentation)
	}
	return otel.GetTracerProvider().Tracer(instrumentation)
}

func (c *TracingConfig) propagator() propagation.TextMapPropagator {
	if c.Propagators != nil {
		return c.Propagators
	}
	return otel.GetTextMapPropagator()
}

// Start opens an internal span. A nil config yields a no-op span so callers
// need no nil checks.
func (c *TracingConfig) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if c == nil {
		return ctx, noop.Span{}
	}
	return c.tracer().Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// Finish records err on span, if any, and ends it.
func Finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
