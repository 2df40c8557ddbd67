// Package app provides application lifecycle management for the catalog server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/matrixhub/catalog-server/internal/config"
)

// CatalogApp encapsulates all components needed to run the catalog API server
// It provides lifecycle management and graceful shutdown capabilities
type CatalogApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
}

// Start starts the background refresher and the HTTP server.
// This method blocks until the HTTP server stops or encounters an error
func (app *CatalogApp) Start() error {
	go func() {
		if err := app.components.Refresher.Start(app.ctx); err != nil {
			slog.Error("Catalog refresher failed", "error", err)
		}
	}()

	slog.Info("Server listening", "address", app.httpServer.Addr)
	if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Stop gracefully stops the application with the given timeout.
// In-flight requests finish before storage and telemetry are released.
func (app *CatalogApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down server...")

	if err := app.components.Refresher.Stop(); err != nil {
		slog.Error("Failed to stop catalog refresher", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
	}

	// Releases the storage factory
	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	if app.components.Telemetry != nil {
		if err := app.components.Telemetry.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	slog.Info("Server shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *CatalogApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server (useful for testing to get the actual port)
func (app *CatalogApp) GetHTTPServer() *http.Server {
	return app.httpServer
}

// Components returns the wired application components
func (app *CatalogApp) Components() *AppComponents {
	return app.components
}
