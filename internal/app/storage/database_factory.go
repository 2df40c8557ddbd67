package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/matrixhub/catalog-server/internal/config"
	"github.com/matrixhub/catalog-server/internal/service"
	"github.com/matrixhub/catalog-server/internal/store/postgres"
)

// pingAttemptTimeout bounds a single connectivity probe during startup
const pingAttemptTimeout = 2 * time.Second

// DatabaseFactory creates PostgreSQL-backed storage components over one shared pool.
type DatabaseFactory struct {
	pool *pgxpool.Pool
	opts *factoryOptions

	credOnce  sync.Once
	credStore *postgres.CredentialStore
	credDB    *sql.DB
	credErr   error
}

var _ Factory = (*DatabaseFactory)(nil)

// NewDatabaseFactory creates a new database-backed storage factory.
// It establishes a connection pool and waits, with exponential backoff, until
// the database answers or database.connectTimeout elapses.
func NewDatabaseFactory(ctx context.Context, cfg *config.Config, opts ...Option) (*DatabaseFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if cfg.Database == nil {
		return nil, fmt.Errorf("database configuration is required for database storage type")
	}

	slog.Info("Creating database-backed storage factory",
		"host", cfg.Database.Host,
		"database", cfg.Database.Database)

	pool, err := buildDatabaseConnectionPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := waitForDatabase(ctx, pool, cfg.Database.GetConnectTimeout()); err != nil {
		pool.Close()
		return nil, err
	}

	return newDatabaseFactoryFromPool(pool, opts...), nil
}

func newDatabaseFactoryFromPool(pool *pgxpool.Pool, opts ...Option) *DatabaseFactory {
	return &DatabaseFactory{pool: pool, opts: applyOptions(opts)}
}

// Backend returns config.StorageTypeDatabase
func (*DatabaseFactory) Backend() string {
	return config.StorageTypeDatabase
}

// CreateEntityStore creates a PostgreSQL entity store on the shared pool
func (d *DatabaseFactory) CreateEntityStore(_ context.Context) (service.EntityStore, error) {
	return d.newEntityStore()
}

// CreateEntityWriter creates the writer used by catalog imports
func (d *DatabaseFactory) CreateEntityWriter(_ context.Context) (service.EntityWriter, error) {
	return d.newEntityStore()
}

func (d *DatabaseFactory) newEntityStore() (*postgres.EntityStore, error) {
	slog.Debug("Creating database-backed entity store")
	return postgres.NewEntityStore(d.pool, d.storeOptions()...)
}

// CreateCredentialStore creates the users-table credential store. The *sql.DB
// wrapping the pool is closed by Cleanup.
func (d *DatabaseFactory) CreateCredentialStore(_ context.Context) (service.CredentialStore, error) {
	d.credOnce.Do(func() {
		slog.Debug("Creating database-backed credential store")
		d.credStore, d.credDB, d.credErr = postgres.NewCredentialStoreFromPool(d.pool, d.storeOptions()...)
	})
	if d.credErr != nil {
		return nil, fmt.Errorf("failed to create credential store: %w", d.credErr)
	}
	return d.credStore, nil
}

func (d *DatabaseFactory) storeOptions() []postgres.StoreOption {
	if d.opts.tracer == nil {
		return nil
	}
	return []postgres.StoreOption{postgres.WithTracer(d.opts.tracer)}
}

// Cleanup closes the credential *sql.DB and then the connection pool
func (d *DatabaseFactory) Cleanup() {
	if d.credDB != nil {
		if err := d.credDB.Close(); err != nil {
			slog.Warn("Failed to close credential database handle", "error", err)
		}
	}
	if d.pool != nil {
		slog.Info("Closing database connection pool")
		d.pool.Close()
	}
}

// buildDatabaseConnectionPool creates a database connection pool with proper configuration.
func buildDatabaseConnectionPool(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	connStr, err := cfg.GetConnectionString()
	if err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database connection string: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	}
	if lifetime := cfg.GetConnMaxLifetime(); lifetime > 0 {
		poolConfig.MaxConnLifetime = lifetime
	}

	// NewWithConfig does not connect; waitForDatabase does
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}

	slog.Info("Database connection pool created", "max_conns", poolConfig.MaxConns)
	return pool, nil
}

// waitForDatabase pings the pool until it answers or budget elapses
func waitForDatabase(ctx context.Context, pool *pgxpool.Pool, budget time.Duration) error {
	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		pingCtx, cancel := context.WithTimeout(ctx, pingAttemptTimeout)
		defer cancel()
		return struct{}{}, pool.Ping(pingCtx)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(budget),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.Warn("Database not reachable yet, retrying",
				"error", err,
				"retry_in", next.String())
		}),
	)
	if err != nil {
		return fmt.Errorf("database not reachable after %d attempts: %w", attempts, err)
	}

	slog.Info("Database connection established", "attempts", attempts)
	return nil
}
