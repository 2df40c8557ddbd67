package app

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/matrixhub/catalog-server/internal/app"
)

const (
	flagAddress = "address"

	defaultGracefulTimeout = 30 * time.Second
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the catalog API server",
		Long: `Start the catalog API server.

The server requires a configuration file (--config) that selects the storage
backend (database, file or s3) and the authentication settings. Variables from
--env-file are loaded first so that secrets such as CATALOG_DATABASE_PASSWORD
can live outside the configuration file.

See the examples/ directory for sample configurations.`,
		RunE: runServe,
	}

	cmd.Flags().String(flagAddress, ":8080", "Address to listen on")
	addConfigFlags(cmd, false)
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	v, err := commandSettings(cmd)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	address := v.GetString(flagAddress)
	catalogApp, err := app.NewCatalogApp(ctx, app.WithConfig(cfg), app.WithAddress(address))
	if err != nil {
		return fmt.Errorf("failed to create catalog application: %w", err)
	}

	return serveUntilDone(ctx, catalogApp)
}

// server is the part of the catalog application driven by serve
type server interface {
	Start() error
	Stop(timeout time.Duration) error
}

// serveUntilDone runs srv until ctx is cancelled or the server fails, then stops it
func serveUntilDone(ctx context.Context, srv server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if stopErr := srv.Stop(defaultGracefulTimeout); stopErr != nil {
			slog.Error("Failed to release resources after server failure", "error", stopErr)
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down server...")
	if err := srv.Stop(defaultGracefulTimeout); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return err
	}

	if err := <-errCh; err != nil {
		return err
	}
	slog.Info("Server shutdown complete")
	return nil
}
