// Package config provides centralized configuration management for the
// obfuscation service and CLI. It loads configuration from environment
// variables with sensible defaults and validates all settings on startup to
// fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"

	"github.com/JonMunkholm/obfuscator/internal/storage"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server      ServerConfig
	Storage     StorageConfig
	Obfuscation ObfuscationConfig
	Database    DatabaseConfig
	Rate        RateLimitConfig
	Security    SecurityConfig
	Logging     LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing the response (default: 5m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"5m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// MaxBodySize caps the JSON request body in bytes (default: 64KB)
	MaxBodySize int64 `env:"SERVER_MAX_BODY_SIZE" default:"65536"`
}

// StorageConfig holds object storage credentials. A backend is enabled when
// its credentials (or its enable flag) are present.
type StorageConfig struct {
	// S3Enabled registers the s3:// scheme (default: true)
	S3Enabled bool `env:"S3_ENABLED" default:"true"`

	S3Region    string `env:"S3_REGION" envAlt:"AWS_REGION" default:"us-east-1"`
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3KeyID     string `env:"S3_ACCESS_KEY_ID" envAlt:"AWS_ACCESS_KEY_ID"`
	S3Secret    string `env:"S3_SECRET_ACCESS_KEY" envAlt:"AWS_SECRET_ACCESS_KEY"`
	S3PathStyle bool   `env:"S3_PATH_STYLE" default:"false"`

	AzureAccount          string `env:"AZURE_STORAGE_ACCOUNT"`
	AzureKey              string `env:"AZURE_STORAGE_KEY"`
	AzureServiceURL       string `env:"AZURE_STORAGE_SERVICE_URL"`
	AzureConnectionString string `env:"AZURE_STORAGE_CONNECTION_STRING"`

	// GCSEnabled registers the gs:// scheme (default: false)
	GCSEnabled         bool   `env:"GCS_ENABLED" default:"false"`
	GCSCredentialsFile string `env:"GCS_CREDENTIALS_FILE" envAlt:"GOOGLE_APPLICATION_CREDENTIALS"`
	GCSEndpoint        string `env:"GCS_ENDPOINT"`

	// AllowLocalFiles registers the file:// scheme (default: false)
	AllowLocalFiles bool `env:"STORAGE_ALLOW_LOCAL_FILES" default:"false"`
}

// ObfuscationConfig holds job processing settings.
type ObfuscationConfig struct {
	// MaxObjectSize is the largest object fetched, in bytes (default: 100MB)
	MaxObjectSize int64 `env:"OBFUSCATE_MAX_OBJECT_SIZE" default:"104857600"`

	// MaxConcurrent is the maximum number of parallel jobs (default: 5)
	MaxConcurrent int `env:"OBFUSCATE_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for a job slot (default: 30s)
	MaxWaitTime time.Duration `env:"OBFUSCATE_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration for a single job (default: 5m)
	Timeout time.Duration `env:"OBFUSCATE_TIMEOUT" default:"5m"`

	// EmptyFields is the policy for an empty field list: first_parsed or reject (default: first_parsed)
	EmptyFields string `env:"OBFUSCATE_EMPTY_FIELDS" default:"first_parsed"`
}

// DatabaseConfig holds the optional audit database settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string; empty disables the audit table.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 5)
	MaxConns int `env:"DB_MAX_CONNS" default:"5"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is how long an idle connection is kept (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// RateLimitConfig holds rate limiting settings per client IP.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ObfuscateLimit is requests per minute for the obfuscate endpoint (default: 20)
	ObfuscateLimit int `env:"RATE_LIMIT_OBFUSCATE" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`

	// RequireAPIKey rejects requests without a valid X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
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
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Backends converts the storage settings to the backends a storage.Mux serves.
func (c *StorageConfig) Backends() storage.Config {
	out := storage.Config{Files: c.AllowLocalFiles}

	if c.S3Enabled {
		out.S3 = &storage.S3Config{
			Region:    c.S3Region,
			Endpoint:  c.S3Endpoint,
			KeyID:     c.S3KeyID,
			Secret:    c.S3Secret,
			PathStyle: c.S3PathStyle,
		}
	}
	if c.AzureConnectionString != "" || c.AzureAccount != "" {
		out.Azure = &storage.AzureConfig{
			AccountName:      c.AzureAccount,
			AccountKey:       c.AzureKey,
			ServiceURL:       c.AzureServiceURL,
			ConnectionString: c.AzureConnectionString,
		}
	}
	if c.GCSEnabled {
		out.GCS = &storage.GCSConfig{
			CredentialsFile: c.GCSCredentialsFile,
			Endpoint:        c.GCSEndpoint,
		}
	}
	return out
}
