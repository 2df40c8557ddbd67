// Package catalog implements service.CatalogService on top of an entity store
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"

	"github.com/matrixhub/catalog-server/internal/otel"
	"github.com/matrixhub/catalog-server/internal/service"
	"github.com/matrixhub/catalog-server/internal/telemetry"
)

// DefaultQueryTimeout bounds every store call when no timeout is configured
const DefaultQueryTimeout = 5 * time.Second

type options struct {
	store        service.EntityStore
	tracer       trace.Tracer
	metrics      *telemetry.CatalogMetrics
	queryTimeout time.Duration
	backend      string
}

// Option is a functional option for the catalog service
type Option func(*options) error

// WithEntityStore sets the store queried by the service. Required.
func WithEntityStore(store service.EntityStore) Option {
	return func(o *options) error {
		if store == nil {
			return errors.New("entity store is required")
		}
		o.store = store
		return nil
	}
}

// WithTracer enables spans for every operation
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		o.tracer = tracer
		return nil
	}
}

// WithMetrics records query counts and latencies
func WithMetrics(m *telemetry.CatalogMetrics) Option {
	return func(o *options) error {
		o.metrics = m
		return nil
	}
}

// WithQueryTimeout bounds each store call
func WithQueryTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return fmt.Errorf("query timeout must be positive, got %s", d)
		}
		o.queryTimeout = d
		return nil
	}
}

// WithBackendName labels spans with the storage backend, e.g. "postgres" or "file"
func WithBackendName(name string) Option {
	return func(o *options) error {
		o.backend = name
		return nil
	}
}

type catalogService struct {
	store        service.EntityStore
	tracer       trace.Tracer
	metrics      *telemetry.CatalogMetrics
	queryTimeout time.Duration
	backend      string
}

var _ service.CatalogService = (*catalogService)(nil)

// New creates a catalog service
func New(opts ...Option) (service.CatalogService, error) {
	o := &options{queryTimeout: DefaultQueryTimeout}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.store == nil {
		return nil, errors.New("entity store is required")
	}

	return &catalogService{
		store:        o.store,
		tracer:       o.tracer,
		metrics:      o.metrics,
		queryTimeout: o.queryTimeout,
		backend:      o.backend,
	}, nil
}

func (s *catalogService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.StartSpan(ctx, s.tracer, name,
		trace.WithAttributes(otel.AttrStorageBackend.String(s.backend)))
}

// CheckReadiness pings the entity store
func (s *catalogService) CheckReadiness(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		slog.WarnContext(ctx, "Entity store not ready", "error", err, "backend", s.backend)
		return fmt.Errorf("readiness check: %w", service.ErrStorageUnavailable)
	}
	return nil
}

// ListEntities validates the options and returns one ranked page of summaries
func (s *catalogService) ListEntities(ctx context.Context, opts ...service.ListOption) ([]service.EntitySummary, error) {
	ctx, span := s.startSpan(ctx, "catalogService.ListEntities")
	defer span.End()
	started := time.Now()

	o, err := service.NewListEntitiesOptions(opts...)
	if err != nil {
		otel.RecordError(span, err)
		s.metrics.RecordQuery(ctx, telemetry.CatalogOperationList, telemetry.OutcomeInvalid, time.Since(started))
		return nil, err
	}

	span.SetAttributes(
		otel.AttrPageSize.Int(o.Limit),
		otel.AttrPageOffset.Int(o.Offset),
		otel.AttrHasQuery.Bool(o.Query != ""),
	)
	if o.Type != "" {
		span.SetAttributes(otel.AttrEntityType.String(string(o.Type)))
	}
	if o.Protocol != "" {
		span.SetAttributes(otel.AttrProtocol.String(o.Protocol))
	}

	slog.DebugContext(ctx, "ListEntities query",
		"type", o.Type,
		"has_query", o.Query != "",
		"protocol", o.Protocol,
		"limit", o.Limit,
		"offset", o.Offset,
		"request_id", middleware.GetReqID(ctx))

	qctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	entities, err := s.store.ListEntities(qctx, *o)
	if err != nil {
		otel.RecordError(span, err)
		s.metrics.RecordQuery(ctx, telemetry.CatalogOperationList, telemetry.OutcomeError, time.Since(started))
		slog.ErrorContext(ctx, "Failed to list entities",
			"error", err,
			"operation", "list_entities",
			"request_id", middleware.GetReqID(ctx))
		return nil, fmt.Errorf("list entities: %w", service.ErrStorageUnavailable)
	}
	if entities == nil {
		entities = []service.EntitySummary{}
	}

	span.SetAttributes(otel.AttrResultCount.Int(len(entities)))
	s.metrics.RecordQuery(ctx, telemetry.CatalogOperationList, telemetry.OutcomeSuccess, time.Since(started))
	return entities, nil
}

// GetEntity returns the full projection of one entity
func (s *catalogService) GetEntity(ctx context.Context, uid string) (*service.Entity, error) {
	ctx, span := s.startSpan(ctx, "catalogService.GetEntity")
	defer span.End()
	started := time.Now()

	if uid == "" {
		err := service.NewValidationError("uid", "is required")
		otel.RecordError(span, err)
		s.metrics.RecordQuery(ctx, telemetry.CatalogOperationGet, telemetry.OutcomeInvalid, time.Since(started))
		return nil, err
	}
	span.SetAttributes(otel.AttrEntityUID.String(uid))

	qctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	entity, err := s.store.GetEntity(qctx, uid)
	switch {
	case errors.Is(err, service.ErrEntityNotFound):
		s.metrics.RecordQuery(ctx, telemetry.CatalogOperationGet, telemetry.CatalogOutcomeNotFound, time.Since(started))
		slog.DebugContext(ctx, "Entity not found", "uid", uid, "request_id", middleware.GetReqID(ctx))
		return nil, fmt.Errorf("entity %s: %w", uid, service.ErrEntityNotFound)
	case err != nil:
		otel.RecordError(span, err)
		s.metrics.RecordQuery(ctx, telemetry.CatalogOperationGet, telemetry.OutcomeError, time.Since(started))
		slog.ErrorContext(ctx, "Failed to get entity",
			"error", err,
			"uid", uid,
			"operation", "get_entity",
			"request_id", middleware.GetReqID(ctx))
		return nil, fmt.Errorf("get entity: %w", service.ErrStorageUnavailable)
	}

	span.SetAttributes(otel.AttrEntityType.String(string(entity.Type)))
	s.metrics.RecordQuery(ctx, telemetry.CatalogOperationGet, telemetry.OutcomeSuccess, time.Since(started))
	return entity, nil
}
