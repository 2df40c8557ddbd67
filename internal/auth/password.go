package auth

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordMismatch is returned by Compare when the password does not match the hash.
var ErrPasswordMismatch = errors.New("password does not match")

// dummyPassword is hashed once per hasher so unknown users cost a full comparison.
const dummyPassword = "catalog-dummy-password"

// BcryptHasher hashes and verifies passwords with bcrypt.
type BcryptHasher struct {
	cost int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewBcryptHasher returns a hasher using cost, or bcrypt.DefaultCost when cost is zero.
func NewBcryptHasher(cost int) (*BcryptHasher, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, cost)
	}
	return &BcryptHasher{cost: cost}, nil
}

// Hash returns the bcrypt hash of password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Compare returns nil when password matches hash and ErrPasswordMismatch when it does not.
// Malformed hashes are reported as other errors.
func (h *BcryptHasher) Compare(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrPasswordMismatch
	default:
		return fmt.Errorf("failed to compare password: %w", err)
	}
}

// CompareDummy spends the same work as Compare against a hash nobody owns.
// Used when the user does not exist so response time does not reveal it.
func (h *BcryptHasher) CompareDummy(password string) {
	h.dummyOnce.Do(func() {
		// GenerateFromPassword only fails on invalid cost, which the constructor rules out
		h.dummyHash, _ = bcrypt.GenerateFromPassword([]byte(dummyPassword), h.cost)
	})
	_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(password))
}
