package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPMetricsMeterName is the instrumentation scope of the HTTP instruments.
const HTTPMetricsMeterName = "github.com/matrixhub/catalog-server/http"

// unknownRoute replaces the raw path when chi matched nothing, keeping label cardinality bounded.
const unknownRoute = "unknown_route"

var httpDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// HTTPMetrics records request counts, latencies and in-flight requests per route.
type HTTPMetrics struct {
	duration metric.Float64Histogram
	total    metric.Int64Counter
	inFlight metric.Int64UpDownCounter
}

// NewHTTPMetrics builds the HTTP instruments. A nil provider yields nil metrics,
// whose Middleware is a pass-through.
func NewHTTPMetrics(provider metric.MeterProvider) (*HTTPMetrics, error) {
	if provider == nil {
		return nil, nil
	}
	meter := provider.Meter(HTTPMetricsMeterName)

	duration, err := meter.Float64Histogram("catalog_http_request_duration_seconds",
		metric.WithDescription("Latency of catalog HTTP requests"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(httpDurationBuckets...),
	)
	if err != nil {
		return nil, err
	}
	total, err := meter.Int64Counter("catalog_http_requests_total",
		metric.WithDescription("Catalog HTTP requests served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}
	inFlight, err := meter.Int64UpDownCounter("catalog_http_active_requests",
		metric.WithDescription("Catalog HTTP requests currently being served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &HTTPMetrics{duration: duration, total: total, inFlight: inFlight}, nil
}

// Middleware wraps next with request instrumentation.
func (m *HTTPMetrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// the request context may be cancelled once ServeHTTP returns
		ctx := r.Context()
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		m.inFlight.Add(ctx, 1)
		next.ServeHTTP(ww, r)
		m.inFlight.Add(ctx, -1)

		attrs := metric.WithAttributes(
			attribute.String("method", r.Method),
			attribute.String("route", getRoutePattern(r)),
			attribute.String("status_code", strconv.Itoa(ww.Status())),
		)
		m.duration.Record(ctx, time.Since(started).Seconds(), attrs)
		m.total.Add(ctx, 1, attrs)
	})
}

// getRoutePattern returns the matched chi pattern such as /api/entities/{uid}.
func getRoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return unknownRoute
}

// MetricsMiddleware is NewHTTPMetrics followed by Middleware.
func MetricsMiddleware(provider metric.MeterProvider) (func(http.Handler) http.Handler, error) {
	m, err := NewHTTPMetrics(provider)
	if err != nil {
		return nil, err
	}
	return m.Middleware, nil
}
