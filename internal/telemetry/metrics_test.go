package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newManualProvider(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return reader, mp
}

// collectMetric returns the named metric from the given scope.
func collectMetric(t *testing.T, reader *sdkmetric.ManualReader, scope, name string) metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		if sm.Scope.Name != scope {
			continue
		}
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m
			}
		}
	}
	t.Fatalf("metric %s not found in scope %s", name, scope)
	return metricdata.Metrics{}
}

func sumFor(t *testing.T, m metricdata.Metrics, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", m.Data)
	want := attribute.NewSet(attrs...)
	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&want) {
			return dp.Value
		}
	}
	return 0
}

func TestMetrics_NilProvider(t *testing.T) {
	t.Parallel()

	catalogMetrics, err := NewCatalogMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, catalogMetrics)

	authMetrics, err := NewAuthMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, authMetrics)

	// nil receivers are no-ops
	catalogMetrics.RecordQuery(context.Background(), CatalogOperationList, OutcomeSuccess, time.Millisecond)
	catalogMetrics.RecordEntityCount(context.Background(), "agent", 3)
	authMetrics.RecordAttempt(context.Background(), AuthOperationLogin, AuthOutcomeRejected)
}

func TestCatalogMetrics_RecordQuery(t *testing.T) {
	t.Parallel()

	reader, mp := newManualProvider(t)
	m, err := NewCatalogMetrics(mp)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordQuery(ctx, CatalogOperationList, OutcomeSuccess, 20*time.Millisecond)
	m.RecordQuery(ctx, CatalogOperationList, OutcomeSuccess, 30*time.Millisecond)
	m.RecordQuery(ctx, CatalogOperationGet, CatalogOutcomeNotFound, time.Millisecond)

	queries := collectMetric(t, reader, CatalogMetricsMeterName, "catalog_entity_queries_total")
	assert.Equal(t, int64(2), sumFor(t, queries,
		attribute.String("operation", "list"), attribute.String("outcome", "success")))
	assert.Equal(t, int64(1), sumFor(t, queries,
		attribute.String("operation", "get"), attribute.String("outcome", "not_found")))

	duration := collectMetric(t, reader, CatalogMetricsMeterName, "catalog_entity_query_duration_seconds")
	hist, ok := duration.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)
}

func TestCatalogMetrics_RecordEntityCount(t *testing.T) {
	t.Parallel()

	reader, mp := newManualProvider(t)
	m, err := NewCatalogMetrics(mp)
	require.NoError(t, err)

	m.RecordEntityCount(context.Background(), "tool", 4)
	m.RecordEntityCount(context.Background(), "tool", 7)

	gauge, ok := collectMetric(t, reader, CatalogMetricsMeterName, "catalog_entities").Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(7), gauge.DataPoints[0].Value)
}

func TestAuthMetrics_RecordAttempt(t *testing.T) {
	t.Parallel()

	reader, mp := newManualProvider(t)
	m, err := NewAuthMetrics(mp)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordAttempt(ctx, AuthOperationLogin, AuthOutcomeRejected)
	m.RecordAttempt(ctx, AuthOperationLogin, AuthOutcomeRejected)
	m.RecordAttempt(ctx, AuthOperationGuest, AuthOutcomeSuccess)

	attempts := collectMetric(t, reader, AuthMetricsMeterName, "catalog_auth_attempts_total")
	assert.Equal(t, int64(2), sumFor(t, attempts,
		attribute.String("operation", "login"), attribute.String("outcome", "rejected")))
	assert.Equal(t, int64(1), sumFor(t, attempts,
		attribute.String("operation", "guest"), attribute.String("outcome", "success")))
}
