package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/matrixhub/catalog-server/internal/config"
)

// OpaqueTokenBytes is the entropy of an opaque session token.
const OpaqueTokenBytes = 32

// MinSigningKeyLength is the shortest HS256 key accepted.
const MinSigningKeyLength = 32

// ErrInvalidToken is returned by VerifyToken for any token that does not verify.
var ErrInvalidToken = errors.New("invalid token")

// OpaqueIssuer mints random tokens that are never stored or re-validated.
type OpaqueIssuer struct {
	random io.Reader
}

// NewOpaqueIssuer returns an issuer reading from crypto/rand.
func NewOpaqueIssuer() *OpaqueIssuer {
	return &OpaqueIssuer{random: rand.Reader}
}

// IssueToken returns OpaqueTokenBytes random bytes, base64url encoded without padding.
func (o *OpaqueIssuer) IssueToken(_ context.Context, _ Subject) (string, error) {
	buf := make([]byte, OpaqueTokenBytes)
	if _, err := io.ReadFull(o.random, buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// JWTIssuer signs and verifies HS256 session tokens.
type JWTIssuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// JWTOption configures a JWTIssuer.
type JWTOption func(*JWTIssuer)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) JWTOption {
	return func(j *JWTIssuer) { j.now = now }
}

// NewJWTIssuer creates an HS256 issuer.
func NewJWTIssuer(key []byte, issuer string, ttl time.Duration, opts ...JWTOption) (*JWTIssuer, error) {
	if len(key) < MinSigningKeyLength {
		return nil, fmt.Errorf("signing key must be at least %d bytes", MinSigningKeyLength)
	}
	if issuer == "" {
		return nil, errors.New("issuer is required")
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	j := &JWTIssuer{key: key, issuer: issuer, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// IssueToken signs a token for subject with a fresh jti.
func (j *JWTIssuer) IssueToken(_ context.Context, subject Subject) (string, error) {
	now := j.now()
	claims := Claims{
		Name:  subject.Name,
		Role:  subject.Role,
		Guest: subject.Guest,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   subject.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken parses token, checking signature, algorithm, issuer and expiry.
// Every failure wraps ErrInvalidToken.
func (j *JWTIssuer) VerifyToken(_ context.Context, token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return j.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(j.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

// NewTokens builds the issuer for the configured token mode. The verifier is nil in
// opaque mode, where tokens are advisory.
func NewTokens(cfg *config.AuthConfig) (TokenIssuer, TokenVerifier, error) {
	switch mode := cfg.GetTokenMode(); mode {
	case config.TokenModeOpaque:
		return NewOpaqueIssuer(), nil, nil
	case config.TokenModeJWT:
		key, err := cfg.GetSigningKey()
		if err != nil {
			return nil, nil, err
		}
		j, err := NewJWTIssuer(key, cfg.GetJWTIssuer(), cfg.GetJWTTTL())
		if err != nil {
			return nil, nil, err
		}
		return j, j, nil
	default:
		return nil, nil, fmt.Errorf("unsupported token mode: %s", mode)
	}
}
