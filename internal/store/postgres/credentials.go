package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/otel/trace"

	"github.com/matrixhub/catalog-server/internal/otel"
	"github.com/matrixhub/catalog-server/internal/service"
)

const usersTable = "users"

const (
	getUserSQL = `SELECT id, password_hash, name, role, email, avatar_url, created_at FROM users WHERE id = $1`

	insertUserSQL = `INSERT INTO users (id, password_hash, name, role, email, avatar_url, created_at)
VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7::timestamptz, now()))
ON CONFLICT (id) DO NOTHING`

	listUsersSQL = `SELECT id, password_hash, name, role, email, avatar_url, created_at FROM users ORDER BY id`
)

// CredentialStore keeps credential records in the users table
type CredentialStore struct {
	db     *sql.DB
	tracer trace.Tracer
}

var _ service.CredentialStore = (*CredentialStore)(nil)

// NewCredentialStore creates a credential store over db
func NewCredentialStore(db *sql.DB, opts ...StoreOption) (*CredentialStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sql db is required")
	}
	o := &storeOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return &CredentialStore{db: db, tracer: o.tracer}, nil
}

// NewCredentialStoreFromPool wraps pool in a *sql.DB and creates a credential store on it.
// Closing the returned *sql.DB does not close pool.
func NewCredentialStoreFromPool(pool *pgxpool.Pool, opts ...StoreOption) (*CredentialStore, *sql.DB, error) {
	if pool == nil {
		return nil, nil, fmt.Errorf("pgx pool is required")
	}
	db := stdlib.OpenDBFromPool(pool)
	store, err := NewCredentialStore(db, opts...)
	if err != nil {
		return nil, nil, err
	}
	return store, db, nil
}

// Get returns the record for id or service.ErrUserNotFound
func (s *CredentialStore) Get(ctx context.Context, id string) (*service.Credential, error) {
	ctx, span := startSpan(ctx, s.tracer, "CredentialStore.Get", usersTable)
	defer span.End()

	cred, err := scanCredential(s.db.QueryRowContext(ctx, getUserSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, service.ErrUserNotFound
	}
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return cred, nil
}

// InsertIfAbsent relies on the primary key to reject duplicates; a conflict
// affects zero rows and reports false.
func (s *CredentialStore) InsertIfAbsent(ctx context.Context, cred *service.Credential) (bool, error) {
	ctx, span := startSpan(ctx, s.tracer, "CredentialStore.InsertIfAbsent", usersTable)
	defer span.End()

	// a zero CreatedAt falls back to the database clock
	var createdAt *time.Time
	if !cred.CreatedAt.IsZero() {
		createdAt = &cred.CreatedAt
	}

	res, err := s.db.ExecContext(ctx, insertUserSQL,
		cred.ID, cred.PasswordHash, cred.Name, cred.Role, cred.Email, cred.AvatarURL, createdAt)
	if err != nil {
		otel.RecordError(span, err)
		return false, fmt.Errorf("failed to insert user: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		otel.RecordError(span, err)
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// List returns every record ordered by id
func (s *CredentialStore) List(ctx context.Context) ([]*service.Credential, error) {
	ctx, span := startSpan(ctx, s.tracer, "CredentialStore.List", usersTable)
	defer span.End()

	rows, err := s.db.QueryContext(ctx, listUsersSQL)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var out []*service.Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			otel.RecordError(span, err)
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, cred)
	}
	if err := rows.Err(); err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	span.SetAttributes(otel.AttrResultCount.Int(len(out)))
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*service.Credential, error) {
	var c service.Credential
	if err := row.Scan(&c.ID, &c.PasswordHash, &c.Name, &c.Role, &c.Email, &c.AvatarURL, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
