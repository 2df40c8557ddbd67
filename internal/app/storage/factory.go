// Package storage creates the storage-dependent components of the catalog server.
// A factory builds the entity store and credential store as a family so both use
// the same backend.
package storage

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/matrixhub/catalog-server/internal/config"
	"github.com/matrixhub/catalog-server/internal/service"
)

//go:generate mockgen -destination=mocks/mock_factory.go -package=mocks -source=factory.go Factory

// Factory creates storage-dependent components as a family.
//
// The factory encapsulates the creation of:
// - EntityStore: serves catalog rows to the entity query service
// - CredentialStore: keeps the credential records of the auth session service
//
// It also owns the lifecycle of storage resources such as connection pools.
type Factory interface {
	// CreateEntityStore creates the entity store for this backend
	CreateEntityStore(ctx context.Context) (service.EntityStore, error)

	// CreateCredentialStore creates the credential store for this backend.
	// Repeated calls return the same store.
	CreateCredentialStore(ctx context.Context) (service.CredentialStore, error)

	// Backend names the storage type, for logs and metrics
	Backend() string

	// Cleanup releases any resources held by this factory.
	// Should be called when the application shuts down.
	Cleanup()
}

// Option configures a storage factory
type Option func(*factoryOptions)

type factoryOptions struct {
	tracer trace.Tracer
}

// WithTracer sets the tracer handed to the stores.
// If not set, stores only join spans already present in the context.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *factoryOptions) {
		o.tracer = tracer
	}
}

// NewStorageFactory creates a storage factory based on the configured storage type.
// Returns a DatabaseFactory for database storage and a SnapshotFactory for file, s3 or url storage.
func NewStorageFactory(ctx context.Context, cfg *config.Config, opts ...Option) (Factory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	switch cfg.GetStorageType() {
	case config.StorageTypeDatabase:
		return NewDatabaseFactory(ctx, cfg, opts...)
	case config.StorageTypeFile:
		return NewFileFactory(cfg)
	case config.StorageTypeS3:
		return NewS3Factory(ctx, cfg)
	case config.StorageTypeURL:
		return NewURLFactory(cfg, nil)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.GetStorageType())
	}
}

func applyOptions(opts []Option) *factoryOptions {
	o := &factoryOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
