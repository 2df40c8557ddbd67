package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/matrixhub/catalog-server/internal/api"
	"github.com/matrixhub/catalog-server/internal/auth"
	"github.com/matrixhub/catalog-server/internal/config"
	"github.com/matrixhub/catalog-server/internal/service"
	"github.com/matrixhub/catalog-server/internal/service/catalog"
	"github.com/matrixhub/catalog-server/internal/service/session"
	"github.com/matrixhub/catalog-server/internal/store/inmemory"
)

const signingKey = "0123456789abcdef0123456789abcdef"

type services struct {
	catalog service.CatalogService
	auth    service.AuthService
}

func newServices(t *testing.T, issuer auth.TokenIssuer) services {
	t.Helper()

	now := time.Now().UTC()
	entityStore := inmemory.NewEntityStoreFromEntities([]service.Entity{
		{UID: "agent-1", Type: service.EntityTypeAgent, Name: "Echo", Version: "1.0.0", QualityScore: 50, CreatedAt: now, UpdatedAt: now},
	})
	catalogSvc, err := catalog.New(catalog.WithEntityStore(entityStore))
	require.NoError(t, err)

	hasher, err := auth.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	credentials := inmemory.NewCredentialStore()
	_, err = session.SeedDemoUsers(context.Background(), credentials, hasher, session.DemoUsers)
	require.NoError(t, err)

	opts := []session.Option{session.WithCredentialStore(credentials), session.WithPasswordHasher(hasher)}
	if issuer != nil {
		opts = append(opts, session.WithTokenIssuer(issuer))
	}
	authSvc, err := session.New(opts...)
	require.NoError(t, err)

	return services{catalog: catalogSvc, auth: authSvc}
}

func request(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestNewServer_Routes(t *testing.T) {
	t.Parallel()

	svcs := newServices(t, nil)
	server := api.NewServer(svcs.catalog, svcs.auth,
		api.WithMiddlewares(middleware.RequestID, api.RequestIDHeader, api.LoggingMiddleware, middleware.Recoverer),
		api.WithAppInfo("Catalog", "test"),
	)

	tests := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{http.MethodGet, "/", "", http.StatusOK},
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/readiness", "", http.StatusOK},
		{http.MethodGet, "/version", "", http.StatusOK},
		{http.MethodGet, "/openapi.yaml", "", http.StatusOK},
		{http.MethodGet, "/openapi.json", "", http.StatusOK},
		{http.MethodGet, "/api/entities", "", http.StatusOK},
		{http.MethodGet, "/api/entities/agent-1", "", http.StatusOK},
		{http.MethodGet, "/api/entities/missing-uid", "", http.StatusNotFound},
		{http.MethodPost, "/api/auth/login", `{"username":"demo","password":"demo123"}`, http.StatusOK},
		{http.MethodPost, "/api/auth/guest", "", http.StatusOK},
		{http.MethodGet, "/api/auth/profile/demo", "", http.StatusOK},
		{http.MethodPost, "/api/auth/logout", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusNotFound},
		{http.MethodGet, "/entities", "", http.StatusNotFound},
		{http.MethodGet, "/no/such/route", "", http.StatusNotFound},
		{http.MethodDelete, "/api/entities/agent-1", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			t.Parallel()
			rr := request(t, server, tt.method, tt.path, tt.body, "")
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
			assert.NotEmpty(t, rr.Header().Get(middleware.RequestIDHeader))
		})
	}
}

func TestNewServer_MetricsHandler(t *testing.T) {
	t.Parallel()

	svcs := newServices(t, nil)
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("catalog_http_requests_total 1\n"))
	})
	server := api.NewServer(svcs.catalog, svcs.auth, api.WithMetricsHandler(metrics))

	rr := request(t, server, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "catalog_http_requests_total")
}

func TestNewServer_CredentialMiddlewares(t *testing.T) {
	t.Parallel()

	svcs := newServices(t, nil)
	limiter := auth.NewRateLimiter(0.001, 1)
	server := api.NewServer(svcs.catalog, svcs.auth, api.WithCredentialMiddlewares(limiter.Middleware))

	login := `{"username":"demo","password":"demo123"}`
	assert.Equal(t, http.StatusOK, request(t, server, http.MethodPost, "/api/auth/login", login, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, request(t, server, http.MethodPost, "/api/auth/login", login, "").Code)
	assert.Equal(t, http.StatusOK, request(t, server, http.MethodGet, "/api/entities", "", "").Code)
}

func TestNewServer_EnforcedJWT(t *testing.T) {
	t.Parallel()

	issuer, err := auth.NewJWTIssuer([]byte(signingKey), "catalog-test", time.Hour)
	require.NoError(t, err)
	svcs := newServices(t, issuer)

	authMw, err := auth.NewAuthMiddleware(&config.AuthConfig{TokenMode: config.TokenModeJWT, Enforce: true}, issuer)
	require.NoError(t, err)
	server := api.NewServer(svcs.catalog, svcs.auth, api.WithMiddlewares(authMw))

	rr := request(t, server, http.MethodGet, "/api/entities", "", "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Header().Get("WWW-Authenticate"), "Bearer")

	assert.Equal(t, http.StatusOK, request(t, server, http.MethodGet, "/health", "", "").Code)

	rr = request(t, server, http.MethodPost, "/api/auth/guest", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var sess service.Session
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sess))

	rr = request(t, server, http.MethodGet, "/api/entities", "", sess.AccessToken)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = request(t, server, http.MethodGet, "/api/auth/profile/"+sess.UserID, "", sess.AccessToken)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestLoggingMiddleware(t *testing.T) {
	t.Parallel()

	handler := api.LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)
}
