package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/matrixhub/catalog-server/internal/config"
	"github.com/matrixhub/catalog-server/internal/httpclient"
	"github.com/matrixhub/catalog-server/internal/service"
	"github.com/matrixhub/catalog-server/internal/sources"
	"github.com/matrixhub/catalog-server/internal/store/inmemory"
)

// SnapshotFactory serves the catalog from a document loaded into memory and keeps
// credentials in memory. Credentials do not survive a restart.
type SnapshotFactory struct {
	backend     string
	loader      inmemory.EntityLoader
	credentials *inmemory.CredentialStore
}

var _ Factory = (*SnapshotFactory)(nil)

// NewFileFactory creates a factory over the local catalog file named by storage.file.path.
// The file is read by CreateEntityStore, not here.
func NewFileFactory(cfg *config.Config) (*SnapshotFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Storage.File == nil {
		return nil, fmt.Errorf("storage.file is required for file storage type")
	}

	loader, err := sources.NewFileLoader(cfg.Storage.File.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog file loader: %w", err)
	}

	slog.Info("Creating file-based storage factory", "path", cfg.Storage.File.Path)
	return newSnapshotFactory(config.StorageTypeFile, loader), nil
}

// NewS3Factory creates a factory over the catalog object named by storage.s3
func NewS3Factory(ctx context.Context, cfg *config.Config) (*SnapshotFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	s3cfg := cfg.Storage.S3
	if s3cfg == nil {
		return nil, fmt.Errorf("storage.s3 is required for s3 storage type")
	}

	loader, err := sources.NewS3Loader(ctx, sources.S3Location{
		Bucket:   s3cfg.Bucket,
		Key:      s3cfg.Key,
		Region:   s3cfg.Region,
		Endpoint: s3cfg.Endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog object loader: %w", err)
	}

	slog.Info("Creating s3-backed storage factory", "source", loader.Source())
	return newSnapshotFactory(config.StorageTypeS3, loader), nil
}

// NewURLFactory creates a factory over the catalog document served at storage.url.url.
// A nil client uses httpclient.NewDefaultClient.
func NewURLFactory(cfg *config.Config, client httpclient.Client) (*SnapshotFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	urlCfg := cfg.Storage.URL
	if urlCfg == nil {
		return nil, fmt.Errorf("storage.url is required for url storage type")
	}

	loader, err := sources.NewURLLoader(urlCfg.URL, client, urlCfg.GetTimeout())
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog url loader: %w", err)
	}

	slog.Info("Creating url-backed storage factory", "url", urlCfg.URL)
	return newSnapshotFactory(config.StorageTypeURL, loader), nil
}

func newSnapshotFactory(backend string, loader inmemory.EntityLoader) *SnapshotFactory {
	return &SnapshotFactory{
		backend:     backend,
		loader:      loader,
		credentials: inmemory.NewCredentialStore(),
	}
}

// Backend returns the configured storage type
func (f *SnapshotFactory) Backend() string {
	return f.backend
}

// CreateEntityStore loads and validates the catalog into an in-memory snapshot
func (f *SnapshotFactory) CreateEntityStore(ctx context.Context) (service.EntityStore, error) {
	slog.Debug("Creating in-memory entity store", "source", f.loader.Source())
	store, err := inmemory.NewEntityStore(ctx, f.loader)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return store, nil
}

// CreateCredentialStore returns the process-local credential store
func (f *SnapshotFactory) CreateCredentialStore(_ context.Context) (service.CredentialStore, error) {
	return f.credentials, nil
}

// Cleanup is a no-op for in-memory storage.
func (*SnapshotFactory) Cleanup() {
	slog.Debug("Cleaning up in-memory storage factory (no-op)")
}
