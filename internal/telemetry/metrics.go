package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// CatalogMetricsMeterName is the instrumentation scope of catalog query instruments.
	CatalogMetricsMeterName = "github.com/matrixhub/catalog-server/catalog"

	// AuthMetricsMeterName is the instrumentation scope of authentication instruments.
	AuthMetricsMeterName = "github.com/matrixhub/catalog-server/auth"
)

// Catalog operations.
const (
	CatalogOperationList = "list"
	CatalogOperationGet  = "get"
)

// Auth operations.
const (
	AuthOperationLogin    = "login"
	AuthOperationRegister = "register"
	AuthOperationGuest    = "guest"
	AuthOperationProfile  = "profile"
	AuthOperationLogout   = "logout"
)

// Outcomes shared by catalog and auth instruments.
const (
	OutcomeSuccess = "success"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"

	CatalogOutcomeNotFound = "not_found"

	AuthOutcomeSuccess  = OutcomeSuccess
	AuthOutcomeRejected = "rejected"
	AuthOutcomeConflict = "conflict"
	AuthOutcomeInvalid  = OutcomeInvalid
	AuthOutcomeError    = OutcomeError
)

// CatalogMetrics holds the instruments for entity queries and catalog size.
type CatalogMetrics struct {
	queries     metric.Int64Counter
	duration    metric.Float64Histogram
	entityCount metric.Int64Gauge
}

// NewCatalogMetrics returns nil when provider is nil; every Record method is nil-safe.
func NewCatalogMetrics(provider metric.MeterProvider) (*CatalogMetrics, error) {
	if provider == nil {
		return nil, nil
	}
	meter := provider.Meter(CatalogMetricsMeterName)

	queries, err := meter.Int64Counter("catalog_entity_queries_total",
		metric.WithDescription("Entity catalog queries by operation and outcome"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("catalog_entity_query_duration_seconds",
		metric.WithDescription("Entity catalog query latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5),
	)
	if err != nil {
		return nil, err
	}
	entityCount, err := meter.Int64Gauge("catalog_entities",
		metric.WithDescription("Entities held by the catalog, by type"),
		metric.WithUnit("{entity}"),
	)
	if err != nil {
		return nil, err
	}

	return &CatalogMetrics{queries: queries, duration: duration, entityCount: entityCount}, nil
}

// RecordQuery counts one catalog query and its latency.
func (m *CatalogMetrics) RecordQuery(ctx context.Context, operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)
	m.queries.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordEntityCount sets the number of entities of one type.
func (m *CatalogMetrics) RecordEntityCount(ctx context.Context, entityType string, count int64) {
	if m == nil {
		return
	}
	m.entityCount.Record(ctx, count, metric.WithAttributes(attribute.String("type", entityType)))
}

// AuthMetrics counts authentication attempts.
type AuthMetrics struct {
	attempts metric.Int64Counter
}

// NewAuthMetrics returns nil when provider is nil.
func NewAuthMetrics(provider metric.MeterProvider) (*AuthMetrics, error) {
	if provider == nil {
		return nil, nil
	}
	attempts, err := provider.Meter(AuthMetricsMeterName).Int64Counter("catalog_auth_attempts_total",
		metric.WithDescription("Authentication attempts by operation and outcome"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}
	return &AuthMetrics{attempts: attempts}, nil
}

// RecordAttempt counts one authentication attempt.
func (m *AuthMetrics) RecordAttempt(ctx context.Context, operation, outcome string) {
	if m == nil {
		return
	}
	m.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}
