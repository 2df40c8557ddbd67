// Package inmemory provides in-process implementations of the catalog stores
package inmemory

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/matrixhub/catalog-server/internal/service"
)

// EntityLoader supplies the catalog rows served by the in-memory store
type EntityLoader interface {
	// Load returns every catalog row
	Load(ctx context.Context) ([]service.Entity, error)

	// Source describes where the rows come from, for logging
	Source() string
}

// EntityStore serves catalog rows from an immutable, pre-sorted snapshot.
// Reload swaps the snapshot atomically.
type EntityStore struct {
	mu     sync.RWMutex
	loader EntityLoader
	sorted []*service.Entity
	byUID  map[string]*service.Entity
}

var (
	_ service.EntityStore   = (*EntityStore)(nil)
	_ service.EntityCounter = (*EntityStore)(nil)
)

// NewEntityStore creates a store and performs the initial load
func NewEntityStore(ctx context.Context, loader EntityLoader) (*EntityStore, error) {
	if loader == nil {
		return nil, fmt.Errorf("entity loader is required")
	}

	s := &EntityStore{loader: loader}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// NewEntityStoreFromEntities creates a store over a fixed set of rows
func NewEntityStoreFromEntities(entities []service.Entity) *EntityStore {
	s := &EntityStore{}
	s.swap(entities)
	return s
}

// Reload replaces the snapshot with a fresh load from the loader.
// A store created from fixed rows keeps them. On error the previous snapshot stays.
func (s *EntityStore) Reload(ctx context.Context) error {
	if s.loader == nil {
		return nil
	}

	entities, err := s.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load entities from %s: %w", s.loader.Source(), err)
	}

	s.swap(entities)
	slog.Info("Loaded catalog entities", "source", s.loader.Source(), "count", len(entities))
	return nil
}

func (s *EntityStore) swap(entities []service.Entity) {
	sorted := make([]*service.Entity, 0, len(entities))
	byUID := make(map[string]*service.Entity, len(entities))
	for i := range entities {
		e := entities[i]
		sorted = append(sorted, &e)
		byUID[e.UID] = &e
	}
	slices.SortStableFunc(sorted, compareRank)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sorted = sorted
	s.byUID = byUID
}

// compareRank orders by quality score desc, created_at desc, uid asc
func compareRank(a, b *service.Entity) int {
	if c := cmp.Compare(b.QualityScore, a.QualityScore); c != 0 {
		return c
	}
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.UID, b.UID)
}

// Ping reports whether a snapshot has been loaded
func (s *EntityStore) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.byUID == nil {
		return fmt.Errorf("catalog not loaded")
	}
	return nil
}

// ListEntities filters the snapshot and applies offset/limit after ordering
func (s *EntityStore) ListEntities(ctx context.Context, opts service.ListEntitiesOptions) ([]service.EntitySummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	match := newMatcher(opts)
	results := make([]service.EntitySummary, 0, min(opts.Limit, len(s.sorted)))
	skipped := 0
	for _, e := range s.sorted {
		if !match(e) {
			continue
		}
		if skipped < opts.Offset {
			skipped++
			continue
		}
		if len(results) >= opts.Limit {
			break
		}
		results = append(results, e.ToSummary())
	}
	return results, nil
}

// GetEntity returns a copy of the entity with the given uid
func (s *EntityStore) GetEntity(ctx context.Context, uid string) (*service.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.byUID[uid]
	if !ok {
		return nil, service.ErrEntityNotFound
	}
	out := *e
	return &out, nil
}

// CountByType counts the snapshot rows per entity type
func (s *EntityStore) CountByType(ctx context.Context) (map[service.EntityType]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[service.EntityType]int64)
	for _, e := range s.sorted {
		counts[e.Type]++
	}
	return counts, nil
}

// newMatcher builds the conjunctive filter predicate for opts
func newMatcher(opts service.ListEntitiesOptions) func(*service.Entity) bool {
	query := strings.ToLower(opts.Query)
	protocol := strings.ToLower(opts.Protocol)

	return func(e *service.Entity) bool {
		if opts.Type != "" && e.Type != opts.Type {
			return false
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(e.Name), query) &&
			!strings.Contains(strings.ToLower(e.Summary), query) {
			return false
		}
		if protocol != "" && !strings.Contains(strings.ToLower(SerializeProtocols(e.Protocols)), protocol) {
			return false
		}
		return true
	}
}

// SerializeProtocols renders a protocol list the way PostgreSQL renders a jsonb
// array as text, so substring matches behave the same in both stores.
func SerializeProtocols(protocols []string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	parts := make([]string, 0, len(protocols))
	for _, p := range protocols {
		buf.Reset()
		if err := enc.Encode(p); err != nil {
			continue
		}
		parts = append(parts, strings.TrimSuffix(buf.String(), "\n"))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
