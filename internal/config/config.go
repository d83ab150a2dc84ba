package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/uitsmijter/uitsmijter/internal/crypto"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Issuer        IssuerConfig
	Tenants       TenantConfig
	Database      DatabaseConfig
	Observability ObservabilityConfig
	RateLimit     RateLimitConfig
	Validator     ValidatorConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	SecureCookies  bool
	// TrustProxyHeaders enables client addressing via X-Forwarded-For.
	// Set only when a fronting proxy overwrites the header.
	TrustProxyHeaders bool
}

// IssuerConfig holds token issuance configuration. The JWT secret signs
// access tokens, SSO cookies and login challenges with HS256; when an RSA
// key path is set, RS256 is used for tokens instead and the public key is
// published via JWKS.
type IssuerConfig struct {
	// URL is the public base URL, e.g. https://login.example.com. It
	// becomes the iss claim of every signed token.
	URL string
	// JWTSecret is the HS256 key, at least 32 bytes.
	JWTSecret string
	// RSAKeyPath optionally points to a PEM-encoded RSA private key.
	RSAKeyPath string
	// ResponsibilityHashAlg selects the SSO cookie name digest, "sha1"
	// (default, compatible with existing cookies) or "sha256".
	ResponsibilityHashAlg string
}

// TenantConfig selects where tenant and client definitions come from.
type TenantConfig struct {
	// Directory with tenant YAML files, watched for changes.
	Dir string
	// Reload reread interval used as fallback when fsnotify is unavailable.
	ReloadInterval time.Duration
	// Source is "yaml" (default) or "postgres".
	Source string
}

// DatabaseConfig holds database configuration (tenant source "postgres")
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	OTELEnabled    bool
	ServiceName    string
	ServiceVersion string
}

// RateLimitConfig throttles the credential endpoints per client IP.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// ValidatorConfig bounds credential backend calls.
type ValidatorConfig struct {
	Timeout        time.Duration
	MaxConcurrency int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:              getEnv("SERVER_HOST", "0.0.0.0"),
			Port:              getEnv("SERVER_PORT", "8080"),
			ReadTimeout:       parseDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout:      parseDuration("SERVER_WRITE_TIMEOUT", "15s"),
			IdleTimeout:       parseDuration("SERVER_IDLE_TIMEOUT", "60s"),
			RequestTimeout:    parseDuration("SERVER_REQUEST_TIMEOUT", "60s"),
			SecureCookies:     parseBool("SERVER_SECURE_COOKIES", true),
			TrustProxyHeaders: parseBool("SERVER_TRUST_PROXY", false),
		},
		Issuer: IssuerConfig{
			URL:                   getEnv("UITSMIJTER_ISSUER", ""),
			JWTSecret:             getEnv("UITSMIJTER_JWT_SECRET", ""),
			RSAKeyPath:            getEnv("UITSMIJTER_RSA_KEY_PATH", ""),
			ResponsibilityHashAlg: getEnv("UITSMIJTER_RESPONSIBILITY_HASH", crypto.HashSHA1),
		},
		Tenants: TenantConfig{
			Dir:            getEnv("UITSMIJTER_TENANT_DIR", "/etc/uitsmijter/tenants"),
			ReloadInterval: parseDuration("UITSMIJTER_TENANT_RELOAD", "1m"),
			Source:         getEnv("UITSMIJTER_TENANT_SOURCE", "yaml"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "uitsmijter"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "uitsmijter"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    parseInt("DB_MAX_OPEN_CONNS", 25),
			ConnMaxLifetime: parseDuration("DB_CONN_MAX_LIFETIME", "5m"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			OTELEnabled:    parseBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "uitsmijter"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: float64(parseInt("RATELIMIT_RPS", 10)),
			Burst:             parseInt("RATELIMIT_BURST", 20),
		},
		Validator: ValidatorConfig{
			Timeout:        parseDuration("VALIDATOR_TIMEOUT", "5s"),
			MaxConcurrency: parseInt("VALIDATOR_MAX_CONCURRENCY", 32),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Issuer.URL == "" {
		return fmt.Errorf("UITSMIJTER_ISSUER is required")
	}
	if c.Issuer.JWTSecret == "" {
		return fmt.Errorf("UITSMIJTER_JWT_SECRET is required")
	}
	if len(c.Issuer.JWTSecret) < 32 {
		return fmt.Errorf("UITSMIJTER_JWT_SECRET must be at least 32 bytes")
	}
	switch c.Issuer.ResponsibilityHashAlg {
	case crypto.HashSHA1, crypto.HashSHA256:
	default:
		return fmt.Errorf("UITSMIJTER_RESPONSIBILITY_HASH must be %q or %q", crypto.HashSHA1, crypto.HashSHA256)
	}
	switch c.Tenants.Source {
	case "yaml":
	case "postgres":
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required when UITSMIJTER_TENANT_SOURCE=postgres")
		}
	default:
		return fmt.Errorf("UITSMIJTER_TENANT_SOURCE must be \"yaml\" or \"postgres\"")
	}
	return nil
}

// DSN builds the postgres connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		// Fallback to default
		d, _ = time.ParseDuration(defaultValue)
	}
	return d
}
