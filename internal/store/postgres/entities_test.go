package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/matrixhub/catalog-server/database"
	"github.com/matrixhub/catalog-server/internal/service"
)

func setupEntityStore(t *testing.T) (*EntityStore, *pgxpool.Pool) {
	t.Helper()

	pool := database.StartTestDatabase(context.Background(), t)

	store, err := NewEntityStore(pool)
	require.NoError(t, err)
	return store, pool
}

func seedEntities(t *testing.T, store *EntityStore, entities ...service.Entity) {
	t.Helper()
	for i := range entities {
		require.NoError(t, store.UpsertEntity(context.Background(), &entities[i]))
	}
}

func listUIDs(t *testing.T, store *EntityStore, opts service.ListEntitiesOptions) []string {
	t.Helper()
	got, err := store.ListEntities(context.Background(), opts)
	require.NoError(t, err)
	out := make([]string, len(got))
	for i, e := range got {
		out[i] = e.UID
	}
	return out
}

func TestEntityStore_Postgres(t *testing.T) {
	t.Parallel()

	store, _ := setupEntityStore(t)
	ctx := context.Background()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	license := "MIT"

	seedEntities(t, store,
		service.Entity{UID: "agent-1", Type: service.EntityTypeAgent, Name: "Echo", Version: "1.0.0",
			QualityScore: 50, CreatedAt: t0},
		service.Entity{UID: "agent-2", Type: service.EntityTypeAgent, Name: "Echo2", Version: "1.0.0",
			QualityScore: 50, CreatedAt: t0.Add(time.Hour)},
		service.Entity{UID: "tool-pct", Type: service.EntityTypeTool, Name: "100% Coverage", Version: "0.1.0",
			Summary: "snake_case helper", QualityScore: 10, CreatedAt: t0, License: &license,
			Protocols: []string{"mcp@0.1"}, Capabilities: []string{"lint"},
			Manifests: map[string]any{"mcp": map[string]any{"transport": "stdio"}}},
		service.Entity{UID: "mcp-db", Type: service.EntityTypeMCPServer, Name: "Database MCP", Version: "2.0.0",
			QualityScore: 90, CreatedAt: t0, Protocols: []string{"MCP@0.1", "a2a@1.0"}},
	)

	t.Run("tie break on created_at", func(t *testing.T) {
		assert.Equal(t, []string{"agent-2", "agent-1"},
			listUIDs(t, store, service.ListEntitiesOptions{Type: service.EntityTypeAgent, Limit: 20}))
	})

	t.Run("query with offset", func(t *testing.T) {
		assert.Equal(t, []string{"agent-1"},
			listUIDs(t, store, service.ListEntitiesOptions{Query: "echo", Limit: 1, Offset: 1}))
	})

	t.Run("global ordering", func(t *testing.T) {
		assert.Equal(t, []string{"mcp-db", "agent-2", "agent-1", "tool-pct"},
			listUIDs(t, store, service.ListEntitiesOptions{Limit: 20}))
	})

	t.Run("wildcards are literal", func(t *testing.T) {
		assert.Equal(t, []string{"tool-pct"},
			listUIDs(t, store, service.ListEntitiesOptions{Query: "100%", Limit: 20}))
		assert.Equal(t, []string{"tool-pct"},
			listUIDs(t, store, service.ListEntitiesOptions{Query: "e_c", Limit: 20}))
		assert.Empty(t, listUIDs(t, store, service.ListEntitiesOptions{Query: "o%e", Limit: 20}))
	})

	t.Run("protocol relaxed match", func(t *testing.T) {
		assert.Equal(t, []string{"mcp-db", "tool-pct"},
			listUIDs(t, store, service.ListEntitiesOptions{Protocol: "mcp", Limit: 20}))
		assert.Equal(t, []string{"mcp-db"},
			listUIDs(t, store, service.ListEntitiesOptions{Protocol: `0.1", "a2a`, Limit: 20}))
	})

	t.Run("get full projection", func(t *testing.T) {
		e, err := store.GetEntity(ctx, "tool-pct")
		require.NoError(t, err)
		assert.Equal(t, service.EntityTypeTool, e.Type)
		assert.Equal(t, []string{"lint"}, e.Capabilities)
		assert.Equal(t, []string{}, e.Frameworks)
		assert.Equal(t, "MIT", *e.License)
		assert.Nil(t, e.Homepage)
		assert.Equal(t, map[string]any{"transport": "stdio"}, e.Manifests["mcp"])
		assert.True(t, e.CreatedAt.Equal(t0))
		assert.False(t, e.UpdatedAt.Before(e.CreatedAt))
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := store.GetEntity(ctx, "missing-uid")
		assert.ErrorIs(t, err, service.ErrEntityNotFound)
	})

	t.Run("count by type", func(t *testing.T) {
		counts, err := store.CountByType(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[service.EntityType]int64{
			service.EntityTypeAgent:     2,
			service.EntityTypeTool:      1,
			service.EntityTypeMCPServer: 1,
		}, counts)
	})
}

func TestEntityStore_UpsertPreservesCreatedAt(t *testing.T) {
	t.Parallel()

	store, _ := setupEntityStore(t)
	ctx := context.Background()
	t0 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	seedEntities(t, store, service.Entity{UID: "agent-x", Type: service.EntityTypeAgent, Name: "X",
		Version: "1.0.0", CreatedAt: t0})

	require.NoError(t, store.UpsertEntity(ctx, &service.Entity{UID: "agent-x", Type: service.EntityTypeAgent,
		Name: "X v2", Version: "2.0.0", CreatedAt: t0.Add(24 * time.Hour)}))

	e, err := store.GetEntity(ctx, "agent-x")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", e.Version)
	assert.Equal(t, "X v2", e.Name)
	assert.True(t, e.CreatedAt.Equal(t0))
}

func TestEntityStore_Tracing(t *testing.T) {
	t.Parallel()

	_, pool := setupEntityStore(t)
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	store, err := NewEntityStore(pool, WithTracer(tp.Tracer(TracerName)))
	require.NoError(t, err)

	_, err = store.GetEntity(context.Background(), "missing-uid")
	require.ErrorIs(t, err, service.ErrEntityNotFound)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "EntityStore.GetEntity", spans[0].Name)

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "postgresql", attrs["db.system"])
	assert.Equal(t, "missing-uid", attrs["entity.uid"])
}

func TestBuildListQuery(t *testing.T) {
	t.Parallel()

	query, args := buildListQuery(service.ListEntitiesOptions{
		Type:     service.EntityTypeTool,
		Query:    "a_b",
		Protocol: "mcp",
		Limit:    5,
		Offset:   10,
	})

	assert.Contains(t, query, "type = $1")
	assert.Contains(t, query, "(name ILIKE $2 OR summary ILIKE $2)")
	assert.Contains(t, query, "protocols::text ILIKE $3")
	assert.Contains(t, query, "ORDER BY quality_score DESC, created_at DESC, uid ASC")
	assert.Contains(t, query, "OFFSET $4 LIMIT $5")
	assert.Equal(t, []any{"tool", `%a\_b%`, "%mcp%", 10, 5}, args)

	query, args = buildListQuery(service.ListEntitiesOptions{Limit: 20})
	assert.NotContains(t, query, "WHERE")
	assert.Equal(t, []any{0, 20}, args)
}

func TestNewEntityStore_NilPool(t *testing.T) {
	t.Parallel()

	_, err := NewEntityStore(nil)
	assert.Error(t, err)
}
