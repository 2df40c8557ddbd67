package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/matrixhub/catalog-server/internal/api"
	"github.com/matrixhub/catalog-server/internal/app/storage"
	"github.com/matrixhub/catalog-server/internal/auth"
	"github.com/matrixhub/catalog-server/internal/config"
	"github.com/matrixhub/catalog-server/internal/service"
	"github.com/matrixhub/catalog-server/internal/service/catalog"
	"github.com/matrixhub/catalog-server/internal/service/session"
	"github.com/matrixhub/catalog-server/internal/store/postgres"
	"github.com/matrixhub/catalog-server/internal/telemetry"
	"github.com/matrixhub/catalog-server/internal/versions"
)

const (
	defaultHTTPAddress    = ":8080"
	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second

	// tracerName is the instrumentation scope of service spans
	tracerName = "github.com/matrixhub/catalog-server"
)

// CatalogAppOptions is a function that configures the catalog app builder
type CatalogAppOptions func(*catalogAppConfig) error

// catalogAppConfig collects the builder inputs.
// Component overrides are primarily for testing.
type catalogAppConfig struct {
	config *config.Config

	storageFactory storage.Factory
	telemetry      *telemetry.Telemetry
	passwordHasher session.PasswordHasher

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration
}

// builtServices is what the service step hands to the HTTP step
type builtServices struct {
	catalog        service.CatalogService
	auth           service.AuthService
	entities       service.EntityStore
	catalogMetrics *telemetry.CatalogMetrics
	verifier       auth.TokenVerifier
}

func baseConfig(opts ...CatalogAppOptions) (*catalogAppConfig, error) {
	cfg := &catalogAppConfig{
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// NewCatalogApp wires storage, services, telemetry and the HTTP server from the configuration
func NewCatalogApp(
	ctx context.Context,
	opts ...CatalogAppOptions,
) (*CatalogApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}
	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if cfg.telemetry == nil {
		cfg.telemetry, err = telemetry.New(ctx, telemetry.WithTelemetryConfig(cfg.config.Telemetry))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
	}

	// Single decision point for database vs snapshot storage
	if cfg.storageFactory == nil {
		cfg.storageFactory, err = storage.NewStorageFactory(ctx, cfg.config,
			storage.WithTracer(cfg.telemetry.Tracer(postgres.TracerName)))
		if err != nil {
			return nil, fmt.Errorf("failed to create storage factory: %w", err)
		}
	}

	// Ensure cleanup happens on error
	var cleanupNeeded = true
	defer func() {
		if cleanupNeeded {
			cfg.storageFactory.Cleanup()
		}
	}()

	svcs, err := buildServiceComponents(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build service components: %w", err)
	}

	httpServer, err := buildHTTPServer(ctx, cfg, svcs)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)

	// Cleanup is now handled by the app, not in defer
	cleanupNeeded = false

	cancelFunc := func() {
		cfg.storageFactory.Cleanup()
		cancel()
	}

	return &CatalogApp{
		config: cfg.config,
		components: &AppComponents{
			Refresher:      newCatalogRefresher(svcs.entities, svcs.catalogMetrics, cfg.config.GetRefreshInterval()),
			CatalogService: svcs.catalog,
			AuthService:    svcs.auth,
			Storage:        cfg.storageFactory,
			Telemetry:      cfg.telemetry,
		},
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: cancelFunc,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) CatalogAppOptions {
	return func(cfg *catalogAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) CatalogAppOptions {
	return func(cfg *catalogAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return fmt.Errorf("address is not valid: %w", err)
		}
		if port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(net.JoinHostPort(host, port)); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares replaces the default request middleware chain
func WithMiddlewares(mw ...func(http.Handler) http.Handler) CatalogAppOptions {
	return func(cfg *catalogAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithRequestTimeout bounds the handling of a single request
func WithRequestTimeout(d time.Duration) CatalogAppOptions {
	return func(cfg *catalogAppConfig) error {
		if d <= 0 {
			return fmt.Errorf("request timeout must be positive, got %s", d)
		}
		cfg.requestTimeout = d
		return nil
	}
}

// WithStorageFactory allows injecting a custom storage factory (for testing)
func WithStorageFactory(f storage.Factory) CatalogAppOptions {
	return func(cfg *catalogAppConfig) error {
		cfg.storageFactory = f
		return nil
	}
}

// WithTelemetry allows injecting already-built providers
func WithTelemetry(t *telemetry.Telemetry) CatalogAppOptions {
	return func(cfg *catalogAppConfig) error {
		cfg.telemetry = t
		return nil
	}
}

// WithPasswordHasher overrides the bcrypt hasher built from auth.bcryptCost
func WithPasswordHasher(h session.PasswordHasher) CatalogAppOptions {
	return func(cfg *catalogAppConfig) error {
		cfg.passwordHasher = h
		return nil
	}
}

// buildServiceComponents builds the catalog and auth services over the factory's stores
func buildServiceComponents(
	ctx context.Context,
	b *catalogAppConfig,
) (*builtServices, error) {
	slog.Info("Initializing service components", "storage", b.storageFactory.Backend())

	entityStore, err := b.storageFactory.CreateEntityStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create entity store: %w", err)
	}
	credentialStore, err := b.storageFactory.CreateCredentialStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential store: %w", err)
	}

	meterProvider := b.telemetry.MeterProvider()
	catalogMetrics, err := telemetry.NewCatalogMetrics(meterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog metrics: %w", err)
	}
	authMetrics, err := telemetry.NewAuthMetrics(meterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth metrics: %w", err)
	}

	tracer := b.telemetry.Tracer(tracerName)
	queryTimeout := catalog.DefaultQueryTimeout
	if b.config.Database != nil {
		queryTimeout = b.config.Database.GetQueryTimeout()
	}

	catalogSvc, err := catalog.New(
		catalog.WithEntityStore(entityStore),
		catalog.WithTracer(tracer),
		catalog.WithMetrics(catalogMetrics),
		catalog.WithQueryTimeout(queryTimeout),
		catalog.WithBackendName(b.storageFactory.Backend()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog service: %w", err)
	}

	issuer, verifier, err := auth.NewTokens(b.config.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create token issuer: %w", err)
	}

	if b.passwordHasher == nil {
		b.passwordHasher, err = auth.NewBcryptHasher(b.config.Auth.GetBcryptCost())
		if err != nil {
			return nil, err
		}
	}

	authSvc, err := session.New(
		session.WithCredentialStore(credentialStore),
		session.WithTokenIssuer(issuer),
		session.WithPasswordHasher(b.passwordHasher),
		session.WithTracer(tracer),
		session.WithMetrics(authMetrics),
		session.WithQueryTimeout(queryTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth service: %w", err)
	}

	if b.config.Auth.ShouldSeedDemoUsers() {
		if err := InitializeDemoUsers(ctx, credentialStore, b.passwordHasher); err != nil {
			return nil, err
		}
	}

	slog.Info("Service components initialized successfully")
	return &builtServices{
		catalog:        catalogSvc,
		auth:           authSvc,
		entities:       entityStore,
		catalogMetrics: catalogMetrics,
		verifier:       verifier,
	}, nil
}

// buildHTTPServer builds the HTTP server with router and middleware
//
//nolint:unparam // we prefer having a similar interface
func buildHTTPServer(
	_ context.Context,
	b *catalogAppConfig,
	svcs *builtServices,
) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			api.RequestIDHeader,
			middleware.RealIP,
			api.LoggingMiddleware,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
		}
	}

	// Metrics and tracing go first to capture every request, including those rejected by auth
	metricsMiddleware, err := telemetry.MetricsMiddleware(b.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
	}
	observability := []func(http.Handler) http.Handler{
		telemetry.TracingMiddleware(b.telemetry.TracerProvider()),
	}
	if metricsMiddleware != nil {
		observability = append(observability, metricsMiddleware)
	}
	b.middlewares = append(observability, b.middlewares...)

	authMw, err := auth.NewAuthMiddleware(b.config.Auth, svcs.verifier)
	if err != nil {
		return nil, fmt.Errorf("failed to build auth middleware: %w", err)
	}
	b.middlewares = append(b.middlewares, authMw)

	serverOpts := []api.ServerOption{
		api.WithMiddlewares(b.middlewares...),
		api.WithAppInfo(b.config.GetAppName(), b.config.GetEnvironment()),
		api.WithMetricsHandler(b.telemetry.MetricsHandler()),
	}
	if rps, burst, ok := b.config.Auth.GetRateLimit(); ok {
		limiter := auth.NewRateLimiter(rps, burst)
		serverOpts = append(serverOpts, api.WithCredentialMiddlewares(limiter.Middleware))
		slog.Info("Login throttling enabled", "rps", rps, "burst", burst)
	}

	router := api.NewServer(svcs.catalog, svcs.auth, serverOpts...)

	server := &http.Server{
		Addr:              b.address,
		Handler:           router,
		ReadTimeout:       b.readTimeout,
		ReadHeaderTimeout: b.readTimeout,
		WriteTimeout:      b.writeTimeout,
		IdleTimeout:       b.idleTimeout,
	}

	slog.Info("HTTP server configured",
		"address", b.address,
		"version", versions.Get().Version)
	return server, nil
}
