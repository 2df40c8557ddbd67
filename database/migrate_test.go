package database

import (
	"context"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := StartTestDatabase(ctx, t)

	connString := db.Config().ConnString()

	version, dirty, err := GetVersion(connString)
	require.NoError(t, err)
	assert.False(t, dirty)

	fnames, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)
	//nolint:gosec // small constant
	assert.Equal(t, uint(len(fnames)), version)

	require.NoError(t, MigrateDown(connString, 0))
	version, _, err = GetVersion(connString)
	require.NoError(t, err)
	assert.Zero(t, version)

	m, err := GetMigrate(connString)
	require.NoError(t, err)
	defer closeMigrate(m)

	for i := 1; i <= len(fnames); i++ {
		assert.NoError(t, m.Steps(i))
		assert.NoError(t, m.Steps(-i))
		assert.NoError(t, m.Steps(i))
		assert.NoError(t, m.Steps(-i))
	}

	require.NoError(t, MigrateUp(connString))
	require.NoError(t, MigrateUp(connString), "re-applying is a no-op")
}

func TestToMigrateURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"postgres://u:p@h:5432/db?sslmode=disable", "pgx5://u:p@h:5432/db?sslmode=disable"},
		{"postgresql://u@h/db", "pgx5://u@h/db"},
		{"pgx5://u@h/db", "pgx5://u@h/db"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, toMigrateURL(tt.in))
	}
}
