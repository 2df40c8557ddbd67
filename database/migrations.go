// Package database embeds the schema migrations and the tooling to apply them.
package database

import (
	"embed"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // registers the pgx5:// scheme
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationsFromSource returns a migration source driver from the embedded migrations.
func migrationsFromSource() (source.Driver, error) {
	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	return d, nil
}

// Migrator is the subset of *migrate.Migrate used by the CLI.
type Migrator interface {
	Up() error
	Down() error
	Steps(int) error
	Version() (uint, bool, error)
	Close() (error, error)
}

var _ Migrator = (*migrate.Migrate)(nil)

// GetMigrate returns a migrate instance for the given postgres:// connection string.
// The caller must Close it.
func GetMigrate(connString string) (*migrate.Migrate, error) {
	d, err := migrationsFromSource()
	if err != nil {
		return nil, err
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, toMigrateURL(connString))
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// NewFromConnectionString returns a Migrator for the given connection string.
func NewFromConnectionString(connString string) (Migrator, error) {
	return GetMigrate(connString)
}

// toMigrateURL rewrites a libpq URL to the scheme served by the pgx v5 migrate driver.
func toMigrateURL(connString string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(connString, prefix); ok {
			return "pgx5://" + rest
		}
	}
	return connString
}
