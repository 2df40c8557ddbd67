package service

import (
	"context"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=store.go EntityStore,EntityCounter,EntityWriter,CredentialStore

// EntityStore is the source of truth for catalog rows.
// Implementations return ErrEntityNotFound from GetEntity when no row matches;
// any other error is treated as a storage fault.
type EntityStore interface {
	// Ping checks connectivity with the underlying storage
	Ping(ctx context.Context) error

	// ListEntities returns summaries matching opts, ordered by quality score
	// descending, then created_at descending, then uid ascending
	ListEntities(ctx context.Context, opts ListEntitiesOptions) ([]EntitySummary, error)

	// GetEntity returns the entity with the given uid
	GetEntity(ctx context.Context, uid string) (*Entity, error)
}

// EntityCounter reports catalog size per entity type. Types without rows may be omitted.
type EntityCounter interface {
	CountByType(ctx context.Context) (map[EntityType]int64, error)
}

// EntityWriter persists catalog rows. It is used by the import tooling, never by the HTTP API.
type EntityWriter interface {
	// GetEntity returns the entity with the given uid or ErrEntityNotFound
	GetEntity(ctx context.Context, uid string) (*Entity, error)

	// UpsertEntity inserts the entity or replaces the row with the same uid
	UpsertEntity(ctx context.Context, entity *Entity) error
}

// CredentialStore maps user ids to credential records.
// Implementations return ErrUserNotFound from Get when no record exists.
type CredentialStore interface {
	// Get returns the credential record for id
	Get(ctx context.Context, id string) (*Credential, error)

	// InsertIfAbsent atomically stores cred unless a record with the same id exists.
	// It reports whether the record was inserted.
	InsertIfAbsent(ctx context.Context, cred *Credential) (bool, error)

	// List returns all credential records ordered by id
	List(ctx context.Context) ([]*Credential, error)
}
