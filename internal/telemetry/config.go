// Package telemetry wires OpenTelemetry tracing and metrics for the catalog server.
// Traces are exported over OTLP; metrics are exported over OTLP or scraped by Prometheus.
package telemetry

import (
	"errors"
	"fmt"
)

// Defaults applied when the telemetry section leaves a field empty.
const (
	DefaultServiceName = "catalog-api"
	DefaultEndpoint    = "localhost:4318"
	DefaultSampling    = 0.05
)

// Metrics exporters.
const (
	MetricsExporterOTLP       = "otlp"
	MetricsExporterPrometheus = "prometheus"
)

// Config is the telemetry section of the server configuration. Nothing is
// initialized unless Enabled is set.
type Config struct {
	Enabled        bool   `yaml:"enabled"`
	ServiceName    string `yaml:"serviceName,omitempty"`
	ServiceVersion string `yaml:"serviceVersion,omitempty"`

	// Endpoint is the OTLP/HTTP collector as host:port; /v1/traces and
	// /v1/metrics are appended by the exporters.
	Endpoint string `yaml:"endpoint,omitempty"`
	Insecure bool   `yaml:"insecure,omitempty"`

	Tracing *TracingConfig `yaml:"tracing,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
}

// TracingConfig enables span export for catalog and auth operations
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
	// Sampling is the parent-based ratio in [0, 1]. Zero means DefaultSampling.
	Sampling float64 `yaml:"sampling,omitempty"`
}

// MetricsConfig enables the query, auth and entity count instruments
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter,omitempty"`
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// GetServiceName returns the resource service name
func (c *Config) GetServiceName() string { return orDefault(c.ServiceName, DefaultServiceName) }

// GetServiceVersion returns the resource service version, or "unknown"
func (c *Config) GetServiceVersion() string { return orDefault(c.ServiceVersion, "unknown") }

// GetEndpoint returns the collector endpoint
func (c *Config) GetEndpoint() string { return orDefault(c.Endpoint, DefaultEndpoint) }

// GetInsecure reports whether the collector is reached over plain HTTP
func (c *Config) GetInsecure() bool { return c.Insecure }

// GetSampling returns the sampling ratio
func (c *TracingConfig) GetSampling() float64 {
	if c.Sampling == 0 {
		return DefaultSampling
	}
	return c.Sampling
}

// GetExporter returns the metrics exporter, otlp unless set
func (c *MetricsConfig) GetExporter() string {
	if c == nil {
		return MetricsExporterOTLP
	}
	return orDefault(c.Exporter, MetricsExporterOTLP)
}

// ServesPrometheus reports whether /metrics should be mounted
func (c *MetricsConfig) ServesPrometheus() bool {
	return c != nil && c.Enabled && c.GetExporter() == MetricsExporterPrometheus
}

// Validate checks the enabled sections. A nil or disabled config is valid.
func (c *Config) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	var errs []error
	if err := c.Tracing.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}
	if err := c.Metrics.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("metrics: %w", err))
	}
	return errors.Join(errs...)
}

// Validate checks the sampling ratio when tracing is enabled
func (c *TracingConfig) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}
	if c.Sampling < 0 || c.Sampling > 1 {
		return fmt.Errorf("sampling must be between 0.0 and 1.0, got %f", c.Sampling)
	}
	return nil
}

// Validate checks the exporter name when metrics are enabled
func (c *MetricsConfig) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}
	switch c.GetExporter() {
	case MetricsExporterOTLP, MetricsExporterPrometheus:
		return nil
	default:
		return fmt.Errorf("unsupported exporter %q", c.Exporter)
	}
}
