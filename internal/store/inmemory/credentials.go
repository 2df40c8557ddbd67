package inmemory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/matrixhub/catalog-server/internal/service"
)

// CredentialStore is a process-local credential map. Records do not survive restarts.
type CredentialStore struct {
	mu      sync.RWMutex
	records map[string]service.Credential
}

var _ service.CredentialStore = (*CredentialStore)(nil)

// NewCredentialStore creates an empty credential store
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{
		records: make(map[string]service.Credential),
	}
}

// Get returns a copy of the record for id
func (s *CredentialStore) Get(ctx context.Context, id string) (*service.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, service.ErrUserNotFound
	}
	return &rec, nil
}

// InsertIfAbsent checks and inserts under a single write lock
func (s *CredentialStore) InsertIfAbsent(ctx context.Context, cred *service.Credential) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[cred.ID]; exists {
		return false, nil
	}
	s.records[cred.ID] = *cred
	return true, nil
}

// List returns copies of all records ordered by id
func (s *CredentialStore) List(ctx context.Context) ([]*service.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]*service.Credential, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, &rec)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *service.Credential) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}
