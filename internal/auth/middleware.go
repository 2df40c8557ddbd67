package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/matrixhub/catalog-server/internal/config"
)

// RFC 6750 section 3 error codes
const (
	errorCodeInvalidRequest = "invalid_request"
	errorCodeInvalidToken   = "invalid_token"
)

var errMissingBearer = errors.New("missing or malformed authorization header")

// bearerMiddleware verifies bearer tokens. When enforce is false a valid token still
// puts claims in the context but a missing or bad one is ignored.
type bearerMiddleware struct {
	verifier TokenVerifier
	realm    string
	enforce  bool
}

// NewAuthMiddleware builds the request authentication middleware for cfg.
// Opaque mode is a pass-through: its tokens cannot be verified. In jwt mode tokens are
// verified and, with cfg.Enforce set, required on every path outside DefaultPublicPaths
// and cfg.PublicPaths.
func NewAuthMiddleware(cfg *config.AuthConfig, verifier TokenVerifier) (func(http.Handler) http.Handler, error) {
	if cfg.GetTokenMode() != config.TokenModeJWT {
		slog.Info("auth: opaque tokens, requests are not authenticated")
		return passThrough, nil
	}
	if verifier == nil {
		return nil, fmt.Errorf("jwt token mode requires a token verifier")
	}

	m := &bearerMiddleware{verifier: verifier, realm: cfg.GetRealm(), enforce: cfg.Enforce}
	if !m.enforce {
		slog.Info("auth: jwt tokens verified when present")
		return m.Middleware, nil
	}

	publicPaths := append(append([]string{}, DefaultPublicPaths...), cfg.PublicPaths...)
	slog.Info("auth: jwt tokens required", "public_paths", publicPaths)
	return WrapWithPublicPaths(m.Middleware, publicPaths), nil
}

func passThrough(next http.Handler) http.Handler {
	return next
}

// Middleware authenticates the request.
func (m *bearerMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logAttrs := []any{
			"request_id", middleware.GetReqID(ctx),
			"remote_addr", r.RemoteAddr,
			"path", r.URL.Path,
		}

		token, err := extractBearerToken(r)
		if err != nil {
			if !m.enforce {
				next.ServeHTTP(w, r)
				return
			}
			slog.DebugContext(ctx, "Bearer token missing", logAttrs...)
			m.writeError(w, errorCodeInvalidRequest, err.Error())
			return
		}

		claims, err := m.verifier.VerifyToken(ctx, token)
		if err != nil {
			slog.InfoContext(ctx, "Token verification failed", append(logAttrs, "error", err)...)
			if !m.enforce {
				next.ServeHTTP(w, r)
				return
			}
			m.writeError(w, errorCodeInvalidToken, "token verification failed")
			return
		}

		slog.DebugContext(ctx, "Request authenticated", append(logAttrs, "subject", claims.Subject)...)
		next.ServeHTTP(w, r.WithContext(ContextWithClaims(ctx, claims)))
	})
}

func extractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", errMissingBearer
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errMissingBearer
	}
	return token, nil
}

// sanitizeHeaderValue strips CR and LF and escapes quotes so the value is safe
// inside a quoted-string header parameter.
func sanitizeHeaderValue(s string) string {
	if !strings.ContainsAny(s, "\r\n\"") {
		return s
	}
	s = strings.NewReplacer("\r", "", "\n", "").Replace(s)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// writeError writes a 401 with an RFC 6750 WWW-Authenticate challenge.
func (m *bearerMiddleware) writeError(w http.ResponseWriter, errCode, description string) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm="%s", error="%s", error_description="%s"`,
		sanitizeHeaderValue(m.realm), errCode, sanitizeHeaderValue(description)))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)

	if err := json.NewEncoder(w).Encode(map[string]string{"error": description}); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}
