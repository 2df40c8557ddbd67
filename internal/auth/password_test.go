package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestNewBcryptHasher(t *testing.T) {
	t.Parallel()

	h, err := NewBcryptHasher(0)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, h.cost)

	_, err = NewBcryptHasher(2)
	assert.Error(t, err)
	_, err = NewBcryptHasher(40)
	assert.Error(t, err)
}

func TestBcryptHasher_HashAndCompare(t *testing.T) {
	t.Parallel()

	h, err := NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)

	hash, err := h.Hash("password123")
	require.NoError(t, err)
	assert.NotContains(t, hash, "password123")

	again, err := h.Hash("password123")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "hashes are salted")

	assert.NoError(t, h.Compare(hash, "password123"))
	assert.ErrorIs(t, h.Compare(hash, "wrong"), ErrPasswordMismatch)

	err = h.Compare("not-a-bcrypt-hash", "password123")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPasswordMismatch)

	_, err = h.Hash(strings.Repeat("x", 73))
	assert.Error(t, err)
}

func TestBcryptHasher_CompareDummy(t *testing.T) {
	t.Parallel()

	h, err := NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)

	h.CompareDummy("anything")
	require.NotEmpty(t, h.dummyHash)
	first := string(h.dummyHash)

	h.CompareDummy("something else")
	assert.Equal(t, first, string(h.dummyHash), "dummy hash is computed once")

	cost, err := bcrypt.Cost(h.dummyHash)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}
