// Package service provides the business contracts for the catalog API
package service

import (
	"context"
	"errors"
)

var (
	// ErrEntityNotFound is returned when an entity is not found
	ErrEntityNotFound = errors.New("entity not found")
	// ErrUserNotFound is returned when a user profile is not found
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned when a login attempt fails for any reason
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrAgentIDTaken is returned when registering an agent id that already exists
	ErrAgentIDTaken = errors.New("agent id already registered")
	// ErrStorageUnavailable is returned when the backing store fails or times out
	ErrStorageUnavailable = errors.New("storage unavailable")
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks -source=service.go CatalogService,AuthService

// CatalogService defines the read operations over the entity catalog
type CatalogService interface {
	// CheckReadiness checks if the backing store is reachable
	CheckReadiness(ctx context.Context) error

	// ListEntities returns a filtered, ranked and paginated view of the catalog
	ListEntities(ctx context.Context, opts ...ListOption) ([]EntitySummary, error)

	// GetEntity returns a single entity by its uid
	GetEntity(ctx context.Context, uid string) (*Entity, error)
}

// AuthService defines the demo authentication session operations
type AuthService interface {
	// Login verifies a username and password and issues a session
	Login(ctx context.Context, username, password string) (*Session, error)

	// Register creates a new credential record and issues a session for it
	Register(ctx context.Context, req RegisterRequest) (*Session, error)

	// Guest issues a session for a fresh, non-persisted guest identity
	Guest(ctx context.Context) (*Session, error)

	// Profile returns the public profile for a user id
	Profile(ctx context.Context, userID string) (*Profile, error)

	// Logout acknowledges a logout request
	Logout(ctx context.Context) Acknowledgement
}
