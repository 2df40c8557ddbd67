package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/matrixhub/catalog-server/internal/service"
	"github.com/matrixhub/catalog-server/internal/service/session"
)

// InitializeDemoUsers installs the demo accounts that are not yet present.
// Existing records are never touched, so it is safe to call on every startup.
func InitializeDemoUsers(ctx context.Context, store service.CredentialStore, hasher session.PasswordHasher) error {
	if store == nil {
		return fmt.Errorf("credential store is required")
	}
	if hasher == nil {
		return fmt.Errorf("password hasher is required")
	}

	slog.Info("Initializing demo users")

	created, err := session.SeedDemoUsers(ctx, store, hasher, session.DemoUsers)
	if err != nil {
		return fmt.Errorf("failed to seed demo users: %w", err)
	}

	if created == 0 {
		slog.Info("Demo users already present")
	} else {
		slog.Info(fmt.Sprintf("Initialized %d demo user%s", created, pluralize(created, "", "s")))
	}

	return nil
}

// pluralize returns singular or plural suffix based on count
func pluralize(count int, singular, plural string) string {
	if count == 1 {
		return singular
	}
	return plural
}
