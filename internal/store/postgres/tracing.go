package postgres

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/matrixhub/catalog-server/internal/otel"
)

// TracerName is the instrumentation scope used for database spans
const TracerName = "github.com/matrixhub/catalog-server/store/postgres"

// AttrTable names the table a span operates on
const AttrTable = attribute.Key("db.sql.table")

// startSpan starts a span carrying db.system=postgresql.
// A nil tracer yields the span already present in ctx.
func startSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	table string,
	attrs ...attribute.KeyValue,
) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{semconv.DBSystemPostgreSQL, AttrTable.String(table)}, attrs...)
	return otel.StartSpan(ctx, tracer, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}
