// Package postgres provides PostgreSQL implementations of the catalog stores
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/trace"

	"github.com/matrixhub/catalog-server/internal/otel"
	"github.com/matrixhub/catalog-server/internal/service"
)

const entityTable = "entity"

const listEntitiesSelect = `
SELECT uid, type, name, version, COALESCE(summary, ''),
       capabilities, frameworks, providers, quality_score
FROM entity`

const listEntitiesOrder = `
ORDER BY quality_score DESC, created_at DESC, uid ASC`

const getEntitySQL = `
SELECT uid, type, name, version, COALESCE(summary, ''), COALESCE(description, ''),
       capabilities, frameworks, providers, license, homepage, source_url,
       quality_score, release_ts, readme_blob_ref, created_at, updated_at,
       protocols, manifests
FROM entity
WHERE uid = $1`

const countByTypeSQL = `SELECT type, count(*) FROM entity GROUP BY type`

const upsertEntitySQL = `
INSERT INTO entity (
    uid, type, name, version, summary, description,
    capabilities, frameworks, providers, protocols, manifests,
    license, homepage, source_url, readme_blob_ref,
    quality_score, release_ts, created_at
) VALUES (
    $1, $2, $3, $4, $5, $6,
    $7, $8, $9, $10, $11,
    $12, $13, $14, $15,
    $16, $17, COALESCE($18, now())
)
ON CONFLICT (uid) DO UPDATE SET
    type = EXCLUDED.type,
    name = EXCLUDED.name,
    version = EXCLUDED.version,
    summary = EXCLUDED.summary,
    description = EXCLUDED.description,
    capabilities = EXCLUDED.capabilities,
    frameworks = EXCLUDED.frameworks,
    providers = EXCLUDED.providers,
    protocols = EXCLUDED.protocols,
    manifests = EXCLUDED.manifests,
    license = EXCLUDED.license,
    homepage = EXCLUDED.homepage,
    source_url = EXCLUDED.source_url,
    readme_blob_ref = EXCLUDED.readme_blob_ref,
    quality_score = EXCLUDED.quality_score,
    release_ts = EXCLUDED.release_ts`

// EntityStore reads and writes catalog rows in the entity table
type EntityStore struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

var (
	_ service.EntityStore   = (*EntityStore)(nil)
	_ service.EntityWriter  = (*EntityStore)(nil)
	_ service.EntityCounter = (*EntityStore)(nil)
)

// StoreOption configures a PostgreSQL store
type StoreOption func(*storeOptions)

type storeOptions struct {
	tracer trace.Tracer
}

// WithTracer enables span creation for every query
func WithTracer(tracer trace.Tracer) StoreOption {
	return func(o *storeOptions) {
		o.tracer = tracer
	}
}

// NewEntityStore creates an entity store over pool. The caller owns the pool.
func NewEntityStore(pool *pgxpool.Pool, opts ...StoreOption) (*EntityStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgx pool is required")
	}
	o := &storeOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return &EntityStore{pool: pool, tracer: o.tracer}, nil
}

// Ping checks that the database answers
func (s *EntityStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// ListEntities runs the filtered, ranked listing query
func (s *EntityStore) ListEntities(ctx context.Context, opts service.ListEntitiesOptions) ([]service.EntitySummary, error) {
	ctx, span := startSpan(ctx, s.tracer, "EntityStore.ListEntities", entityTable,
		otel.AttrPageSize.Int(opts.Limit),
		otel.AttrPageOffset.Int(opts.Offset),
	)
	defer span.End()

	query, args := buildListQuery(opts)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (service.EntitySummary, error) {
		var (
			e    service.EntitySummary
			kind string
		)
		if err := row.Scan(
			&e.UID, &kind, &e.Name, &e.Version, &e.Summary,
			&e.Capabilities, &e.Frameworks, &e.Providers, &e.Score,
		); err != nil {
			return e, err
		}
		e.Type = service.EntityType(kind)
		e.Capabilities = orEmpty(e.Capabilities)
		e.Frameworks = orEmpty(e.Frameworks)
		e.Providers = orEmpty(e.Providers)
		return e, nil
	})
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to scan entities: %w", err)
	}

	span.SetAttributes(otel.AttrResultCount.Int(len(results)))
	return results, nil
}

// buildListQuery assembles the WHERE clause for the non-empty filters in opts.
// Free text is matched with ILIKE against name or summary; protocol is matched
// against the jsonb text rendering of the protocol list.
func buildListQuery(opts service.ListEntitiesOptions) (string, []any) {
	var (
		conds []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if opts.Type != "" {
		conds = append(conds, "type = "+next(string(opts.Type)))
	}
	if opts.Query != "" {
		p := next(likePattern(opts.Query))
		conds = append(conds, "(name ILIKE "+p+" OR summary ILIKE "+p+")")
	}
	if opts.Protocol != "" {
		conds = append(conds, "protocols::text ILIKE "+next(likePattern(opts.Protocol)))
	}

	var b strings.Builder
	b.WriteString(listEntitiesSelect)
	if len(conds) > 0 {
		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	b.WriteString(listEntitiesOrder)
	b.WriteString("\nOFFSET " + next(opts.Offset))
	b.WriteString(" LIMIT " + next(opts.Limit))
	return b.String(), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern wraps s for a substring match with LIKE wildcards escaped
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// GetEntity returns the full row for uid
func (s *EntityStore) GetEntity(ctx context.Context, uid string) (*service.Entity, error) {
	ctx, span := startSpan(ctx, s.tracer, "EntityStore.GetEntity", entityTable,
		otel.AttrEntityUID.String(uid),
	)
	defer span.End()

	var (
		e    service.Entity
		kind string
	)
	err := s.pool.QueryRow(ctx, getEntitySQL, uid).Scan(
		&e.UID, &kind, &e.Name, &e.Version, &e.Summary, &e.Description,
		&e.Capabilities, &e.Frameworks, &e.Providers, &e.License, &e.Homepage, &e.SourceURL,
		&e.QualityScore, &e.ReleaseTS, &e.ReadmeBlobRef, &e.CreatedAt, &e.UpdatedAt,
		&e.Protocols, &e.Manifests,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, service.ErrEntityNotFound
	}
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to get entity %s: %w", uid, err)
	}

	e.Type = service.EntityType(kind)
	e.Capabilities = orEmpty(e.Capabilities)
	e.Frameworks = orEmpty(e.Frameworks)
	e.Providers = orEmpty(e.Providers)
	e.Protocols = orEmpty(e.Protocols)
	return &e, nil
}

// UpsertEntity inserts entity or replaces the row with the same uid.
// created_at of an existing row is preserved; updated_at is maintained by trigger.
func (s *EntityStore) UpsertEntity(ctx context.Context, entity *service.Entity) error {
	ctx, span := startSpan(ctx, s.tracer, "EntityStore.UpsertEntity", entityTable,
		otel.AttrEntityUID.String(entity.UID),
		otel.AttrEntityType.String(string(entity.Type)),
	)
	defer span.End()

	var createdAt *time.Time
	if !entity.CreatedAt.IsZero() {
		createdAt = &entity.CreatedAt
	}

	_, err := s.pool.Exec(ctx, upsertEntitySQL,
		entity.UID, string(entity.Type), entity.Name, entity.Version,
		nullIfEmpty(entity.Summary), nullIfEmpty(entity.Description),
		orEmpty(entity.Capabilities), orEmpty(entity.Frameworks), orEmpty(entity.Providers),
		orEmpty(entity.Protocols), entity.Manifests,
		entity.License, entity.Homepage, entity.SourceURL, entity.ReadmeBlobRef,
		entity.QualityScore, entity.ReleaseTS, createdAt,
	)
	if err != nil {
		otel.RecordError(span, err)
		return fmt.Errorf("failed to upsert entity %s: %w", entity.UID, err)
	}
	return nil
}

// CountByType counts rows per entity type
func (s *EntityStore) CountByType(ctx context.Context) (map[service.EntityType]int64, error) {
	ctx, span := startSpan(ctx, s.tracer, "EntityStore.CountByType", entityTable)
	defer span.End()

	rows, err := s.pool.Query(ctx, countByTypeSQL)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to count entities: %w", err)
	}

	counts := make(map[service.EntityType]int64)
	var (
		entityType string
		count      int64
	)
	_, err = pgx.ForEachRow(rows, []any{&entityType, &count}, func() error {
		counts[service.EntityType(entityType)] = count
		return nil
	})
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to count entities: %w", err)
	}
	return counts, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
