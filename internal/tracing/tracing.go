// Package tracing is a thin wrapper over the OpenTelemetry trace API.
// Callers that never install a tracer provider get the no-op tracer, so all
// span operations are safe when tracing is disabled.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/flarewatch/flarewatch"

// Tracer returns the process tracer for this module. With no provider
// installed this is the global no-op tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// WithSpan runs fn inside a span named name. The span is ended when fn
// returns; a non-nil error is recorded on the span and sets its status.
func WithSpan(ctx context.Context, name string, fn func(ctx context.Context, span trace.Span) error, attrs ...attribute.KeyValue) error {
	ctx, span := Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
	defer span.End()

	if err := fn(ctx, span); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
