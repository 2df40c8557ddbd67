package database

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tclog "github.com/testcontainers/testcontainers-go/log"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// testPostgresImage matches the server version the migrations are written for
const testPostgresImage = "postgres:16-alpine"

type quietLogger struct{}

func (quietLogger) Printf(string, ...any) {}

var _ tclog.Logger = quietLogger{}

// StartTestDatabase runs a throwaway PostgreSQL container with the catalog schema
// migrated to the latest version. The pool and container are released when the
// test ends. Skipped under -short.
func StartTestDatabase(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("requires docker, skipped in short mode")
	}

	container, err := postgres.Run(ctx, testPostgresImage,
		postgres.WithDatabase("catalog_test"),
		postgres.WithUsername("catalog"),
		postgres.WithPassword("catalog"),
		postgres.BasicWaitStrategies(),
		tc.WithLogger(quietLogger{}),
	)
	tc.CleanupContainer(t, container)
	require.NoError(t, err)

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, MigrateUp(connString), "migrating test database")

	pool, err := pgxpool.New(ctx, connString)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}
