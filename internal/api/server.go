// Package api assembles the catalog REST API router.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matrixhub/catalog-server/internal/api/common"
	"github.com/matrixhub/catalog-server/internal/api/entities"
	"github.com/matrixhub/catalog-server/internal/api/sessions"
	"github.com/matrixhub/catalog-server/internal/api/system"
	"github.com/matrixhub/catalog-server/internal/service"
)

// APIPrefix is where the entity and auth routes are mounted
const APIPrefix = "/api"

// ServerOption configures the catalog API server
type ServerOption func(*serverConfig)

// serverConfig holds the server configuration
type serverConfig struct {
	middlewares           []func(http.Handler) http.Handler
	credentialMiddlewares []func(http.Handler) http.Handler
	metricsHandler        http.Handler
	app                   system.AppInfo
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithCredentialMiddlewares adds middleware to login and register only
func WithCredentialMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.credentialMiddlewares = append(cfg.credentialMiddlewares, mw...)
	}
}

// WithMetricsHandler serves handler at /metrics
func WithMetricsHandler(handler http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.metricsHandler = handler
	}
}

// WithAppInfo sets the name and environment reported at /
func WithAppInfo(name, environment string) ServerOption {
	return func(cfg *serverConfig) {
		cfg.app = system.AppInfo{Name: name, Environment: environment}
	}
}

// NewServer creates and configures the HTTP router with the given services and options
func NewServer(catalogSvc service.CatalogService, authSvc service.AuthService, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		common.WriteErrorResponse(w, "Not found", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		common.WriteErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	// Probes, version and API description live at the root
	r.Mount("/", system.Router(cfg.app, catalogSvc))

	if cfg.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.metricsHandler)
	}

	r.Route(APIPrefix, func(r chi.Router) {
		r.Mount("/entities", entities.Router(catalogSvc))
		r.Mount("/auth", sessions.Router(authSvc, sessions.WithCredentialMiddleware(cfg.credentialMiddlewares...)))
	})

	return r
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.DebugContext(r.Context(), "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// RequestIDHeader echoes the chi request id in the X-Request-Id response header.
// It must run after middleware.RequestID.
func RequestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}
