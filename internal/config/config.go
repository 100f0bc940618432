// Package config provides centralized configuration management for the
// service. It loads configuration from environment variables with sensible
// defaults and validates all settings on startup to fail fast on
// misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Load     LoadConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including running loads (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver is postgres, sqlite or mysql (default: postgres)
	Driver string `env:"DB_DRIVER" default:"postgres"`

	// URL is the connection string (required). For sqlite it is the path of
	// the main database file, or :memory:.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// FlushMode is how Postgres batches are written: copy or insert (default: copy)
	FlushMode string `env:"DB_FLUSH_MODE" default:"copy"`

	ConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" default:"10s"`

	// MaxConns is the maximum number of pooled Postgres connections (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// LoadConfig holds feed loading settings.
type LoadConfig struct {
	// BatchSize is the number of rows written per batch (default: 1000)
	BatchSize int `env:"LOAD_BATCH_SIZE" default:"1000"`

	// ErrorBatchSize is the number of errors written per batch (default: 1000)
	ErrorBatchSize int `env:"LOAD_ERROR_BATCH_SIZE" default:"1000"`

	// RetainErrors is how many errors a load keeps for its report (default: 1000)
	RetainErrors int `env:"LOAD_RETAIN_ERRORS" default:"1000"`

	// MaxConcurrent is the maximum number of parallel loads (default: 2)
	MaxConcurrent int `env:"LOAD_MAX_CONCURRENT" default:"2"`

	// MaxWaitTime is how long a request waits for a load slot (default: 30s)
	MaxWaitTime time.Duration `env:"LOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration of a single feed load (default: 2h)
	Timeout time.Duration `env:"LOAD_TIMEOUT" default:"2h"`

	// Retention is how long finished loads stay queryable (default: 1h)
	Retention time.Duration `env:"LOAD_RETENTION" default:"1h"`

	// FeedRoot, if set, is the directory load paths are resolved against.
	// Paths outside it are rejected.
	FeedRoot string `env:"LOAD_FEED_ROOT"`

	// SchemaFile is an optional YAML file declaring additional tables.
	SchemaFile string `env:"LOAD_SCHEMA_FILE"`

	// ExtendedTables are the tables that mark a feed as carrying extended data.
	ExtendedTables []string `env:"LOAD_EXTENDED_TABLES" default:"levels,pathways,translations,attributions"`

	// ContinueOnTableFailure keeps loading later tables after one fails.
	ContinueOnTableFailure bool `env:"LOAD_CONTINUE_ON_TABLE_FAILURE" default:"false"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey rejects /api requests without a valid X-API-Key header
	RequireAPIKey bool `env:"API_REQUIRE_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
