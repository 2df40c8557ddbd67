package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Getters(t *testing.T) {
	t.Parallel()

	empty := &Config{}
	assert.Equal(t, DefaultServiceName, empty.GetServiceName())
	assert.Equal(t, "unknown", empty.GetServiceVersion())
	assert.Equal(t, DefaultEndpoint, empty.GetEndpoint())
	assert.False(t, empty.GetInsecure())

	full := &Config{
		ServiceName:    "catalog-edge",
		ServiceVersion: "1.2.3",
		Endpoint:       "otel-collector:4318",
		Insecure:       true,
	}
	assert.Equal(t, "catalog-edge", full.GetServiceName())
	assert.Equal(t, "1.2.3", full.GetServiceVersion())
	assert.Equal(t, "otel-collector:4318", full.GetEndpoint())
	assert.True(t, full.GetInsecure())
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  *Config
		wantErr string
	}{
		{name: "nil config is valid", config: nil},
		{name: "disabled config is valid", config: &Config{Enabled: false, Tracing: &TracingConfig{Enabled: true, Sampling: 7}}},
		{name: "enabled without sections", config: &Config{Enabled: true}},
		{
			name: "valid full config",
			config: &Config{
				Enabled:  true,
				Tracing:  &TracingConfig{Enabled: true, Sampling: 0.5},
				Metrics:  &MetricsConfig{Enabled: true, Exporter: MetricsExporterPrometheus},
				Insecure: true,
			},
		},
		{
			name:    "sampling above one",
			config:  &Config{Enabled: true, Tracing: &TracingConfig{Enabled: true, Sampling: 1.5}},
			wantErr: "tracing: sampling must be between 0.0 and 1.0",
		},
		{
			name:    "negative sampling",
			config:  &Config{Enabled: true, Tracing: &TracingConfig{Enabled: true, Sampling: -0.1}},
			wantErr: "sampling must be between 0.0 and 1.0",
		},
		{
			name:   "disabled tracing ignores sampling",
			config: &Config{Enabled: true, Tracing: &TracingConfig{Enabled: false, Sampling: -1}},
		},
		{
			name:    "unknown metrics exporter",
			config:  &Config{Enabled: true, Metrics: &MetricsConfig{Enabled: true, Exporter: "statsd"}},
			wantErr: `metrics: unsupported exporter "statsd"`,
		},
		{
			name:   "disabled metrics ignores exporter",
			config: &Config{Enabled: true, Metrics: &MetricsConfig{Enabled: false, Exporter: "statsd"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.config.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTracingConfig_GetSampling(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, DefaultSampling, (&TracingConfig{Enabled: true}).GetSampling(), 0)
	assert.InDelta(t, 0.5, (&TracingConfig{Enabled: true, Sampling: 0.5}).GetSampling(), 0)
	assert.InDelta(t, 1.0, (&TracingConfig{Enabled: true, Sampling: 1}).GetSampling(), 0)
}

func TestMetricsConfig_GetExporter(t *testing.T) {
	t.Parallel()

	var nilCfg *MetricsConfig
	assert.Equal(t, MetricsExporterOTLP, nilCfg.GetExporter())
	assert.Equal(t, MetricsExporterOTLP, (&MetricsConfig{}).GetExporter())
	assert.Equal(t, MetricsExporterPrometheus, (&MetricsConfig{Exporter: "prometheus"}).GetExporter())
}

func TestMetricsConfig_ServesPrometheus(t *testing.T) {
	t.Parallel()

	var nilCfg *MetricsConfig
	assert.False(t, nilCfg.ServesPrometheus())
	assert.False(t, (&MetricsConfig{Exporter: MetricsExporterPrometheus}).ServesPrometheus())
	assert.False(t, (&MetricsConfig{Enabled: true}).ServesPrometheus())
	assert.True(t, (&MetricsConfig{Enabled: true, Exporter: MetricsExporterPrometheus}).ServesPrometheus())
}
