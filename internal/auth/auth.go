// Package auth issues and verifies catalog session tokens, hashes passwords and
// guards HTTP routes with bearer authentication and per-client throttling.
package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

//go:generate mockgen -destination=mocks/mock_token.go -package=mocks -source=auth.go TokenIssuer,TokenVerifier

// Subject is the identity a token is issued for.
type Subject struct {
	ID    string
	Name  string
	Role  string
	Guest bool
}

// TokenIssuer mints session tokens.
type TokenIssuer interface {
	IssueToken(ctx context.Context, subject Subject) (string, error)
}

// TokenVerifier checks a bearer token and returns its claims.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*Claims, error)
}

// Claims is the payload of a signed session token.
type Claims struct {
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
	Guest bool   `json:"guest"`
	jwt.RegisteredClaims
}

type claimsKey struct{}

// ContextWithClaims returns a copy of ctx carrying claims.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext returns the claims stored by the bearer middleware, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok && claims != nil
}
