package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// DefaultMetricsInterval is the OTLP push interval.
const DefaultMetricsInterval = 60 * time.Second

// ProviderOption configures NewTracerProvider and NewMeterProvider.
type ProviderOption func(*providerSettings)

type providerSettings struct {
	serviceName    string
	serviceVersion string
	endpoint       string
	insecure       bool
	registerer     prometheus.Registerer
}

func newProviderSettings(opts []ProviderOption) *providerSettings {
	s := &providerSettings{
		serviceName:    DefaultServiceName,
		serviceVersion: "unknown",
		endpoint:       DefaultEndpoint,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithServiceName sets the service.name resource attribute.
func WithServiceName(name string) ProviderOption {
	return func(s *providerSettings) { s.serviceName = name }
}

// WithServiceVersion sets the service.version resource attribute.
func WithServiceVersion(version string) ProviderOption {
	return func(s *providerSettings) { s.serviceVersion = version }
}

// WithEndpoint sets the OTLP collector host:port.
func WithEndpoint(endpoint string) ProviderOption {
	return func(s *providerSettings) { s.endpoint = endpoint }
}

// WithInsecure sends OTLP over plain HTTP.
func WithInsecure(insecure bool) ProviderOption {
	return func(s *providerSettings) { s.insecure = insecure }
}

// WithPrometheusRegisterer sets where the Prometheus exporter registers its collector.
// Defaults to prometheus.DefaultRegisterer.
func WithPrometheusRegisterer(reg prometheus.Registerer) ProviderOption {
	return func(s *providerSettings) { s.registerer = reg }
}

func (s *providerSettings) resource(ctx context.Context) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(s.serviceName),
			semconv.ServiceVersion(s.serviceVersion),
		),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// NewTracerProvider returns an SDK tracer provider exporting over OTLP/HTTP, or a
// no-op provider when cfg is nil or disabled. The SDK provider is installed globally
// together with the W3C trace context propagator; the caller owns its Shutdown.
func NewTracerProvider(ctx context.Context, cfg *TracingConfig, opts ...ProviderOption) (trace.TracerProvider, error) {
	if cfg == nil || !cfg.Enabled {
		slog.Info("Tracing disabled")
		return tracenoop.NewTracerProvider(), nil
	}
	s := newProviderSettings(opts)

	res, err := s.resource(ctx)
	if err != nil {
		return nil, err
	}

	exporterOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(s.endpoint)}
	if s.insecure {
		exporterOpts = append(exporterOpts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.GetSampling()))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if s.insecure {
		slog.Warn("Tracing uses an unencrypted OTLP connection", "endpoint", s.endpoint)
	}
	slog.Info("Tracing initialized", "endpoint", s.endpoint, "sampling_ratio", cfg.GetSampling())
	return tp, nil
}

// NewMeterProvider returns an SDK meter provider, or a no-op provider when cfg is nil
// or disabled. The reader is a Prometheus pull exporter or an OTLP periodic reader
// depending on cfg's exporter. The caller owns Shutdown.
func NewMeterProvider(ctx context.Context, cfg *MetricsConfig, opts ...ProviderOption) (metric.MeterProvider, error) {
	if cfg == nil || !cfg.Enabled {
		slog.Info("Metrics disabled")
		return metricnoop.NewMeterProvider(), nil
	}
	s := newProviderSettings(opts)

	res, err := s.resource(ctx)
	if err != nil {
		return nil, err
	}

	reader, err := s.metricsReader(ctx, cfg.GetExporter())
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)

	slog.Info("Metrics initialized", "exporter", cfg.GetExporter(), "endpoint", s.endpoint)
	return mp, nil
}

func (s *providerSettings) metricsReader(ctx context.Context, exporter string) (sdkmetric.Reader, error) {
	if exporter == MetricsExporterPrometheus {
		reg := s.registerer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		promExporter, err := otelprom.New(otelprom.WithRegisterer(reg))
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus metrics exporter: %w", err)
		}
		return promExporter, nil
	}

	exporterOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(s.endpoint)}
	if s.insecure {
		exporterOpts = append(exporterOpts, otlpmetrichttp.WithInsecure())
	}
	otlpExporter, err := otlpmetrichttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}
	return sdkmetric.NewPeriodicReader(otlpExporter, sdkmetric.WithInterval(DefaultMetricsInterval)), nil
}
