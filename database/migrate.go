package database

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
)

// MigrateUp applies every pending migration. An up-to-date schema is not an error.
func MigrateUp(connString string) error {
	m, err := GetMigrate(connString)
	if err != nil {
		return err
	}
	defer closeMigrate(m)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// MigrateDown reverts numSteps migrations, or all of them when numSteps is zero.
func MigrateDown(connString string, numSteps uint) error {
	m, err := GetMigrate(connString)
	if err != nil {
		return err
	}
	defer closeMigrate(m)

	return ExecuteDown(m, numSteps)
}

// ExecuteDown reverts numSteps migrations on m, or all of them when numSteps is zero.
func ExecuteDown(m Migrator, numSteps uint) error {
	if numSteps == 0 {
		err := m.Down()
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to revert migrations: %w", err)
		}
		return nil
	}

	//nolint:gosec // numSteps is bounded by the number of embedded migrations
	if err := m.Steps(-int(numSteps)); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to revert %d migration(s): %w", numSteps, err)
	}
	return nil
}

// GetVersion returns the current schema version and whether it is dirty.
// A database with no applied migrations reports version 0.
func GetVersion(connString string) (uint, bool, error) {
	m, err := GetMigrate(connString)
	if err != nil {
		return 0, false, err
	}
	defer closeMigrate(m)

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read migration version: %w", err)
	}
	return version, dirty, nil
}

func closeMigrate(m Migrator) {
	srcErr, dbErr := m.Close()
	if srcErr != nil {
		slog.Warn("Failed to close migration source", "error", srcErr)
	}
	if dbErr != nil {
		slog.Warn("Failed to close migration database", "error", dbErr)
	}
}
