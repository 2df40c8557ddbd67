package app

import (
	"context"

	"github.com/matrixhub/catalog-server/internal/app/storage"
	"github.com/matrixhub/catalog-server/internal/service"
	"github.com/matrixhub/catalog-server/internal/telemetry"
)

// BackgroundTask runs alongside the HTTP server
type BackgroundTask interface {
	// Start blocks until ctx is done or Stop is called
	Start(ctx context.Context) error
	Stop() error
}

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Refresher reloads snapshot catalogs and publishes catalog size
	Refresher BackgroundTask

	// CatalogService serves entity queries
	CatalogService service.CatalogService

	// AuthService serves the demo login flows
	AuthService service.AuthService

	// Storage owns the store connections
	Storage storage.Factory

	// Telemetry owns the tracer and meter providers
	Telemetry *telemetry.Telemetry
}
