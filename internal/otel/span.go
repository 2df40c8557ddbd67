// Package otel provides OpenTelemetry span helpers shared by the catalog services and stores.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys attached to catalog and auth spans.
const (
	AttrEntityUID      = attribute.Key("entity.uid")
	AttrEntityType     = attribute.Key("entity.type")
	AttrHasQuery       = attribute.Key("catalog.has_query")
	AttrProtocol       = attribute.Key("catalog.protocol")
	AttrPageSize       = attribute.Key("pagination.limit")
	AttrPageOffset     = attribute.Key("pagination.offset")
	AttrResultCount    = attribute.Key("result.count")
	AttrAuthOperation  = attribute.Key("auth.operation")
	AttrAuthGuest      = attribute.Key("auth.guest")
	AttrStorageBackend = attribute.Key("storage.backend")
)

// StartSpan starts a span on tracer, or returns the span already in ctx when
// tracer is nil.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records err as a span event and marks the span failed.
// The status text is always "operation failed"; details stay in the event.
// Nil spans and nil errors are ignored.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
