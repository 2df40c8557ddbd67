package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrixhub/catalog-server/internal/service"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

var userColumns = []string{"id", "password_hash", "name", "role", "email", "avatar_url", "created_at"}

func TestCredentialStore_Get(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		setup   func(sqlmock.Sqlmock)
		want    *service.Credential
		wantErr error
		fault   bool
	}{
		{
			name: "found",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta(getUserSQL)).WithArgs("demo").
					WillReturnRows(sqlmock.NewRows(userColumns).
						AddRow("demo", "$2a$10$hash", "Demo Agent", "Demo AI Agent", "[email protected]", "https://a/demo", now))
			},
			want: &service.Credential{
				ID: "demo", PasswordHash: "$2a$10$hash", Name: "Demo Agent", Role: "Demo AI Agent",
				Email: "[email protected]", AvatarURL: "https://a/demo", CreatedAt: now,
			},
		},
		{
			name: "absent",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta(getUserSQL)).WithArgs("demo").
					WillReturnRows(sqlmock.NewRows(userColumns))
			},
			wantErr: service.ErrUserNotFound,
		},
		{
			name: "driver failure",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta(getUserSQL)).WithArgs("demo").
					WillReturnError(errors.New("connection reset"))
			},
			fault: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db, mock := newMockDB(t)
			tt.setup(mock)
			store, err := NewCredentialStore(db)
			require.NoError(t, err)

			got, err := store.Get(context.Background(), "demo")
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.fault:
				require.Error(t, err)
				assert.NotErrorIs(t, err, service.ErrUserNotFound)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestCredentialStore_InsertIfAbsent(t *testing.T) {
	t.Parallel()

	registeredAt := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	cred := &service.Credential{
		ID: "new-agent", PasswordHash: "$2a$10$x", Name: "new-agent", Role: "AI Agent",
		Email: "[email protected]", AvatarURL: "https://api.dicebear.com/7.x/bottts/svg?seed=new-agent",
		CreatedAt: registeredAt,
	}

	tests := []struct {
		name     string
		result   driver.Result
		execErr  error
		inserted bool
		wantErr  bool
	}{
		{name: "inserted", result: sqlmock.NewResult(0, 1), inserted: true},
		{name: "conflict", result: sqlmock.NewResult(0, 0), inserted: false},
		{name: "exec failure", execErr: errors.New("timeout"), wantErr: true},
		{name: "rows affected failure", result: sqlmock.NewErrorResult(errors.New("no count")), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db, mock := newMockDB(t)
			exp := mock.ExpectExec(regexp.QuoteMeta(insertUserSQL)).
				WithArgs(cred.ID, cred.PasswordHash, cred.Name, cred.Role, cred.Email, cred.AvatarURL, &registeredAt)
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(tt.result)
			}

			store, err := NewCredentialStore(db)
			require.NoError(t, err)

			inserted, err := store.InsertIfAbsent(context.Background(), cred)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.inserted, inserted)
		})
	}
}

func TestCredentialStore_InsertIfAbsent_DatabaseClock(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta(insertUserSQL)).
		WithArgs("seeded", "h", "Seeded", "Demo AI Agent", "", "", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store, err := NewCredentialStore(db)
	require.NoError(t, err)

	inserted, err := store.InsertIfAbsent(context.Background(), &service.Credential{
		ID: "seeded", PasswordHash: "h", Name: "Seeded", Role: "Demo AI Agent",
	})
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestCredentialStore_List(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta(listUsersSQL)).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("CyberGuard", "h1", "CyberGuard AI", "Security Specialist", "", "", now).
			AddRow("demo", "h2", "Demo Agent", "Demo AI Agent", "", "", now))

	store, err := NewCredentialStore(db)
	require.NoError(t, err)

	got, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "CyberGuard", got[0].ID)
	assert.Equal(t, "demo", got[1].ID)
}

func TestNewCredentialStore_Nil(t *testing.T) {
	t.Parallel()

	_, err := NewCredentialStore(nil)
	assert.Error(t, err)

	_, _, err = NewCredentialStoreFromPool(nil)
	assert.Error(t, err)
}

func TestCredentialStore_PostgresUniqueness(t *testing.T) {
	t.Parallel()

	_, pool := setupEntityStore(t)
	store, db, err := NewCredentialStoreFromPool(pool)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	first := &service.Credential{ID: "agent-007", PasswordHash: "h1", Name: "agent-007", Role: "AI Agent"}
	second := &service.Credential{ID: "agent-007", PasswordHash: "h2", Name: "impostor", Role: "AI Agent"}

	ok, err := store.InsertIfAbsent(ctx, first)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.InsertIfAbsent(ctx, second)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.Get(ctx, "agent-007")
	require.NoError(t, err)
	assert.Equal(t, "h1", got.PasswordHash)
	assert.Equal(t, "agent-007", got.Name)
	assert.False(t, got.CreatedAt.IsZero())
}
