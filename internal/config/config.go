// Package config provides configuration loading and management for the catalog server.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/matrixhub/catalog-server/internal/telemetry"
)

const (
	// StorageTypeDatabase serves the catalog and credentials from PostgreSQL
	StorageTypeDatabase = "database"

	// StorageTypeFile serves the catalog from a local file and keeps credentials in memory
	StorageTypeFile = "file"

	// StorageTypeS3 serves the catalog from an object in an S3-compatible bucket
	// and keeps credentials in memory
	StorageTypeS3 = "s3"

	// StorageTypeURL serves the catalog from a document fetched over HTTP(S)
	// and keeps credentials in memory
	StorageTypeURL = "url"
)

const (
	// TokenModeOpaque issues random tokens that are never re-validated
	TokenModeOpaque = "opaque"

	// TokenModeJWT issues HS256-signed tokens that the auth middleware can verify
	TokenModeJWT = "jwt"
)

// EnvPrefix is the prefix of every environment variable read by the server
const EnvPrefix = "CATALOG"

// Environment variables consulted for secrets
const (
	EnvDatabasePassword = "CATALOG_DATABASE_PASSWORD"
	EnvAuthSigningKey   = "CATALOG_AUTH_SIGNING_KEY"
)

const (
	defaultAppName        = "MatrixHub Catalog"
	defaultEnvironment    = "development"
	defaultSSLMode        = "require"
	defaultQueryTimeout   = 5 * time.Second
	defaultConnectTimeout = 10 * time.Second
	defaultJWTIssuer      = "catalog-api"
	defaultJWTTTL         = 24 * time.Hour
	defaultRealm          = "catalog"
	defaultRateLimitRPS   = 5.0
	defaultRateLimitBurst = 10
	defaultRefresh        = time.Minute
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// EvalSymlinks also cleans the path.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	App       *AppConfig        `yaml:"app,omitempty"`
	Storage   StorageConfig     `yaml:"storage"`
	Database  *DatabaseConfig   `yaml:"database,omitempty"`
	Auth      *AuthConfig       `yaml:"auth,omitempty"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// AppConfig carries the metadata reported by the root endpoint
type AppConfig struct {
	Name        string `yaml:"name,omitempty"`
	Environment string `yaml:"environment,omitempty"`
}

// StorageConfig selects the storage backend
type StorageConfig struct {
	// Type is "database" (default), "file", "s3" or "url"
	Type string `yaml:"type,omitempty"`

	// File is required when Type is "file"
	File *FileConfig `yaml:"file,omitempty"`

	// S3 is required when Type is "s3"
	S3 *S3Config `yaml:"s3,omitempty"`

	// URL is required when Type is "url"
	URL *URLConfig `yaml:"url,omitempty"`

	// RefreshInterval is how often file, s3 and url catalogs are reloaded and the
	// entity count gauge is refreshed. Defaults to 1m.
	RefreshInterval string `yaml:"refreshInterval,omitempty"`
}

// FileConfig defines local catalog file settings
type FileConfig struct {
	// Path to a YAML or JSON catalog document
	Path string `yaml:"path"`
}

// S3Config locates a catalog document in an S3-compatible bucket.
// Credentials come from the default AWS credential chain.
type S3Config struct {
	Bucket string `yaml:"bucket"`
	Key    string `yaml:"key"`
	Region string `yaml:"region,omitempty"`

	// Endpoint overrides the service endpoint and enables path-style addressing (MinIO and similar)
	Endpoint string `yaml:"endpoint,omitempty"`
}

// URLConfig locates a catalog document served over HTTP(S)
type URLConfig struct {
	URL string `yaml:"url"`

	// Timeout bounds a single fetch including retries. Defaults to 30s.
	Timeout string `yaml:"timeout,omitempty"`
}

// GetTimeout returns the fetch budget, or zero for the loader default
func (u *URLConfig) GetTimeout() time.Duration {
	if u == nil {
		return 0
	}
	return parseDurationOr(u.Timeout, 0)
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing only the database password.
	// Surrounding whitespace is trimmed.
	PasswordFile string `yaml:"passwordFile,omitempty"`

	Database string `yaml:"database"`

	// SSLMode is one of disable, require, verify-ca, verify-full
	SSLMode string `yaml:"sslMode,omitempty"`

	MaxOpenConns    int32  `yaml:"maxOpenConns,omitempty"`
	MaxIdleConns    int32  `yaml:"maxIdleConns,omitempty"`
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`

	// QueryTimeout bounds every storage call made while serving a request
	QueryTimeout string `yaml:"queryTimeout,omitempty"`

	// ConnectTimeout bounds the startup connectivity check, retries included
	ConnectTimeout string `yaml:"connectTimeout,omitempty"`
}

// AuthConfig defines session token and login settings
type AuthConfig struct {
	// TokenMode is "opaque" (default) or "jwt"
	TokenMode string `yaml:"tokenMode,omitempty"`

	JWT *JWTConfig `yaml:"jwt,omitempty"`

	// Enforce requires a valid bearer token on every non-public path. Only valid in jwt mode.
	Enforce bool `yaml:"enforce,omitempty"`

	// PublicPaths are added to the built-in public paths when Enforce is set
	PublicPaths []string `yaml:"publicPaths,omitempty"`

	// Realm is reported in WWW-Authenticate challenges
	Realm string `yaml:"realm,omitempty"`

	// BcryptCost defaults to bcrypt.DefaultCost
	BcryptCost int `yaml:"bcryptCost,omitempty"`

	// SeedDemoUsers installs the demo accounts at startup. Defaults to true.
	SeedDemoUsers *bool `yaml:"seedDemoUsers,omitempty"`

	RateLimit *RateLimitConfig `yaml:"rateLimit,omitempty"`
}

// JWTConfig defines signed token settings
type JWTConfig struct {
	Issuer string `yaml:"issuer,omitempty"`

	// TTL is a Go duration string, e.g. "24h"
	TTL string `yaml:"ttl,omitempty"`

	// SigningKeyFile holds the HMAC key. CATALOG_AUTH_SIGNING_KEY is used when unset.
	SigningKeyFile string `yaml:"signingKeyFile,omitempty"`
}

// RateLimitConfig defines the per-client throttle on login and registration
type RateLimitConfig struct {
	// Disabled turns throttling off
	Disabled          bool    `yaml:"disabled,omitempty"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond,omitempty"`
	Burst             int     `yaml:"burst,omitempty"`
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables already set are not overridden and a missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error

	switch c.GetStorageType() {
	case StorageTypeDatabase:
		if c.Database == nil {
			errs = append(errs, fmt.Errorf("database configuration is required for storage type %q", StorageTypeDatabase))
		} else if err := c.Database.validate(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	case StorageTypeFile:
		if c.Storage.File == nil || c.Storage.File.Path == "" {
			errs = append(errs, fmt.Errorf("storage.file.path is required for storage type %q", StorageTypeFile))
		}
	case StorageTypeS3:
		if c.Storage.S3 == nil || c.Storage.S3.Bucket == "" || c.Storage.S3.Key == "" {
			errs = append(errs, fmt.Errorf("storage.s3.bucket and storage.s3.key are required for storage type %q", StorageTypeS3))
		}
	case StorageTypeURL:
		if c.Storage.URL == nil || c.Storage.URL.URL == "" {
			errs = append(errs, fmt.Errorf("storage.url.url is required for storage type %q", StorageTypeURL))
		} else if v := c.Storage.URL.Timeout; v != "" {
			if d, err := time.ParseDuration(v); err != nil || d <= 0 {
				errs = append(errs, fmt.Errorf("storage.url.timeout must be a positive duration, got %q", v))
			}
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage type: %s", c.Storage.Type))
	}

	if v := c.Storage.RefreshInterval; v != "" {
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("storage.refreshInterval must be a positive duration, got %q", v))
		}
	}

	if c.Auth != nil {
		if err := c.Auth.validate(); err != nil {
			errs = append(errs, fmt.Errorf("auth: %w", err))
		}
	}

	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}

// GetStorageType returns the storage type, defaulting to database
func (c *Config) GetStorageType() string {
	if c.Storage.Type == "" {
		return StorageTypeDatabase
	}
	return c.Storage.Type
}

// GetRefreshInterval returns the catalog refresh period
func (c *Config) GetRefreshInterval() time.Duration {
	return parseDurationOr(c.Storage.RefreshInterval, defaultRefresh)
}

// GetAppName returns the application name reported by the root endpoint
func (c *Config) GetAppName() string {
	if c.App == nil || c.App.Name == "" {
		return defaultAppName
	}
	return c.App.Name
}

// GetEnvironment returns the deployment environment label
func (c *Config) GetEnvironment() string {
	if c.App == nil || c.App.Environment == "" {
		return defaultEnvironment
	}
	return c.App.Environment
}

func (d *DatabaseConfig) validate() error {
	var errs []error
	if d.Host == "" {
		errs = append(errs, fmt.Errorf("host is required"))
	}
	if d.Port == 0 {
		errs = append(errs, fmt.Errorf("port is required"))
	}
	if d.User == "" {
		errs = append(errs, fmt.Errorf("user is required"))
	}
	if d.Database == "" {
		errs = append(errs, fmt.Errorf("database is required"))
	}
	for name, v := range map[string]string{
		"connMaxLifetime": d.ConnMaxLifetime,
		"queryTimeout":    d.QueryTimeout,
		"connectTimeout":  d.ConnectTimeout,
	} {
		if v == "" {
			continue
		}
		if dur, err := time.ParseDuration(v); err != nil || dur <= 0 {
			errs = append(errs, fmt.Errorf("%s must be a positive duration, got %q", name, v))
		}
	}
	return errors.Join(errs...)
}

// GetPassword returns the database password from PasswordFile, falling back
// to the CATALOG_DATABASE_PASSWORD environment variable.
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		data, err := os.ReadFile(filepath.Clean(d.PasswordFile))
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if envPassword := os.Getenv(EnvDatabasePassword); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or %s environment variable", EnvDatabasePassword,
	)
}

// GetConnectionString builds a postgres:// URL with the password URL-escaped
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = defaultSSLMode
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Database,
		RawQuery: url.Values{"sslmode": []string{sslMode}}.Encode(),
	}
	return u.String(), nil
}

// GetQueryTimeout returns the per-call storage timeout, 5s by default
func (d *DatabaseConfig) GetQueryTimeout() time.Duration {
	return parseDurationOr(d.QueryTimeout, defaultQueryTimeout)
}

// GetConnectTimeout returns the startup connectivity budget, 10s by default
func (d *DatabaseConfig) GetConnectTimeout() time.Duration {
	return parseDurationOr(d.ConnectTimeout, defaultConnectTimeout)
}

// GetConnMaxLifetime returns the pool connection lifetime, or zero for the driver default
func (d *DatabaseConfig) GetConnMaxLifetime() time.Duration {
	return parseDurationOr(d.ConnMaxLifetime, 0)
}

func (a *AuthConfig) validate() error {
	var errs []error

	switch a.GetTokenMode() {
	case TokenModeOpaque:
		if a.Enforce {
			errs = append(errs, fmt.Errorf("enforce requires tokenMode %q", TokenModeJWT))
		}
	case TokenModeJWT:
		if a.JWT != nil && a.JWT.TTL != "" {
			if d, err := time.ParseDuration(a.JWT.TTL); err != nil || d <= 0 {
				errs = append(errs, fmt.Errorf("jwt.ttl must be a positive duration, got %q", a.JWT.TTL))
			}
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported token mode: %s", a.TokenMode))
	}

	if a.BcryptCost != 0 && (a.BcryptCost < 4 || a.BcryptCost > 31) {
		errs = append(errs, fmt.Errorf("bcryptCost must be between 4 and 31, got %d", a.BcryptCost))
	}

	if rl := a.RateLimit; rl != nil && !rl.Disabled {
		if rl.RequestsPerSecond < 0 {
			errs = append(errs, fmt.Errorf("rateLimit.requestsPerSecond must not be negative"))
		}
		if rl.Burst < 0 {
			errs = append(errs, fmt.Errorf("rateLimit.burst must not be negative"))
		}
	}

	return errors.Join(errs...)
}

// GetTokenMode returns the token mode, defaulting to opaque
func (a *AuthConfig) GetTokenMode() string {
	if a == nil || a.TokenMode == "" {
		return TokenModeOpaque
	}
	return a.TokenMode
}

// GetRealm returns the WWW-Authenticate realm
func (a *AuthConfig) GetRealm() string {
	if a == nil || a.Realm == "" {
		return defaultRealm
	}
	return a.Realm
}

// GetBcryptCost returns the configured bcrypt cost, or zero for the library default
func (a *AuthConfig) GetBcryptCost() int {
	if a == nil {
		return 0
	}
	return a.BcryptCost
}

// ShouldSeedDemoUsers reports whether the demo accounts are installed at startup
func (a *AuthConfig) ShouldSeedDemoUsers() bool {
	if a == nil || a.SeedDemoUsers == nil {
		return true
	}
	return *a.SeedDemoUsers
}

// GetJWTIssuer returns the iss claim for signed tokens
func (a *AuthConfig) GetJWTIssuer() string {
	if a == nil || a.JWT == nil || a.JWT.Issuer == "" {
		return defaultJWTIssuer
	}
	return a.JWT.Issuer
}

// GetJWTTTL returns the lifetime of signed tokens
func (a *AuthConfig) GetJWTTTL() time.Duration {
	if a == nil || a.JWT == nil {
		return defaultJWTTTL
	}
	return parseDurationOr(a.JWT.TTL, defaultJWTTTL)
}

// GetSigningKey returns the HMAC key from jwt.signingKeyFile, falling back
// to the CATALOG_AUTH_SIGNING_KEY environment variable.
func (a *AuthConfig) GetSigningKey() ([]byte, error) {
	if a != nil && a.JWT != nil && a.JWT.SigningKeyFile != "" {
		data, err := os.ReadFile(filepath.Clean(a.JWT.SigningKeyFile))
		if err != nil {
			return nil, fmt.Errorf("failed to read signing key from file %s: %w", a.JWT.SigningKeyFile, err)
		}
		key := strings.TrimSpace(string(data))
		if key == "" {
			return nil, fmt.Errorf("signing key file %s is empty", a.JWT.SigningKeyFile)
		}
		return []byte(key), nil
	}

	if key := os.Getenv(EnvAuthSigningKey); key != "" {
		return []byte(key), nil
	}

	return nil, fmt.Errorf("no signing key configured: set jwt.signingKeyFile or %s environment variable", EnvAuthSigningKey)
}

// GetRateLimit returns the login/register throttle, or ok=false when disabled
func (a *AuthConfig) GetRateLimit() (rps float64, burst int, ok bool) {
	rps, burst = defaultRateLimitRPS, defaultRateLimitBurst
	if a == nil || a.RateLimit == nil {
		return rps, burst, true
	}
	if a.RateLimit.Disabled {
		return 0, 0, false
	}
	if a.RateLimit.RequestsPerSecond > 0 {
		rps = a.RateLimit.RequestsPerSecond
	}
	if a.RateLimit.Burst > 0 {
		burst = a.RateLimit.Burst
	}
	return rps, burst, true
}

func parseDurationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
