package telemetry

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestNewTracerProvider(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tp, err := NewTracerProvider(ctx, nil)
	require.NoError(t, err)
	assert.IsType(t, tracenoop.TracerProvider{}, tp)

	tp, err = NewTracerProvider(ctx, &TracingConfig{Enabled: false})
	require.NoError(t, err)
	assert.IsType(t, tracenoop.TracerProvider{}, tp)

	tp, err = NewTracerProvider(ctx, &TracingConfig{Enabled: true, Sampling: 0.5},
		WithEndpoint(newCollector(t)), WithInsecure(true))
	require.NoError(t, err)
	sdkTP, ok := tp.(*sdktrace.TracerProvider)
	require.True(t, ok)
	require.NoError(t, sdkTP.Shutdown(ctx))
}

func TestNewMeterProvider(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mp, err := NewMeterProvider(ctx, nil)
	require.NoError(t, err)
	assert.IsType(t, metricnoop.MeterProvider{}, mp)

	mp, err = NewMeterProvider(ctx, &MetricsConfig{Enabled: true},
		WithEndpoint(newCollector(t)), WithInsecure(true))
	require.NoError(t, err)
	sdkMP, ok := mp.(*sdkmetric.MeterProvider)
	require.True(t, ok)
	_ = sdkMP.Shutdown(ctx)
}

func TestNewMeterProvider_Prometheus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg := prometheus.NewRegistry()

	mp, err := NewMeterProvider(ctx,
		&MetricsConfig{Enabled: true, Exporter: MetricsExporterPrometheus},
		WithPrometheusRegisterer(reg),
	)
	require.NoError(t, err)
	sdkMP, ok := mp.(*sdkmetric.MeterProvider)
	require.True(t, ok)
	t.Cleanup(func() { _ = sdkMP.Shutdown(ctx) })

	counter, err := mp.Meter("catalog-test").Int64Counter("catalog_test_events")
	require.NoError(t, err)
	counter.Add(ctx, 3)

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() == "catalog_test_events_total" {
			found = true
			require.NotEmpty(t, f.GetMetric())
			assert.InDelta(t, 3.0, f.GetMetric()[0].GetCounter().GetValue(), 0)
		}
	}
	assert.True(t, found)
}

func TestProviderOptions(t *testing.T) {
	t.Parallel()

	defaults := newProviderSettings(nil)
	assert.Equal(t, DefaultServiceName, defaults.serviceName)
	assert.Equal(t, "unknown", defaults.serviceVersion)
	assert.Equal(t, DefaultEndpoint, defaults.endpoint)
	assert.False(t, defaults.insecure)
	assert.Nil(t, defaults.registerer)

	reg := prometheus.NewRegistry()
	s := newProviderSettings([]ProviderOption{
		WithServiceName("catalog-edge"),
		WithServiceVersion("2.0.0"),
		WithEndpoint("collector:4318"),
		WithInsecure(true),
		WithPrometheusRegisterer(reg),
	})
	assert.Equal(t, "catalog-edge", s.serviceName)
	assert.Equal(t, "2.0.0", s.serviceVersion)
	assert.Equal(t, "collector:4318", s.endpoint)
	assert.True(t, s.insecure)
	assert.Same(t, reg, s.registerer)
}
