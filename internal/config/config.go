package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Session       SessionConfig
	Observability ObservabilityConfig
	Security      SecurityConfig
	RateLimit     RateLimitConfig
	Token         TokenConfig
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// TrustProxyHeaders takes the client address from X-Forwarded-For,
	// X-Real-IP and True-Client-IP. Enable only behind a proxy that sets them.
	TrustProxyHeaders bool
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN returns a postgres connection URL.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, d.Port),
		Path:     d.Database,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

// SessionConfig holds session cookie verification configuration
type SessionConfig struct {
	CookieName string
	SigningKey string
	Issuer     string
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	OTELEnabled    bool
	MetricsEnabled bool
	SampleRatio    float64
	ServiceName    string
	ServiceVersion string
}

// SecurityConfig holds token secret hashing parameters
type SecurityConfig struct {
	Argon2Memory      uint32
	Argon2Iterations  uint32
	Argon2Parallelism uint8
	Argon2SaltLength  uint32
	Argon2KeyLength   uint32
}

// TokenConfig holds API token configuration
type TokenConfig struct {
	// Product is the credential prefix, as in "<product>_v1_<hex>".
	Product     string
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
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
			ShutdownTimeout:   parseDuration("SERVER_SHUTDOWN_TIMEOUT", "30s"),
			TrustProxyHeaders: parseBool("SERVER_TRUST_PROXY_HEADERS", false),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "qaguard"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "qaguard"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    parseInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    parseInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: parseDuration("DB_CONN_MAX_LIFETIME", "5m"),
		},
		Session: SessionConfig{
			CookieName: getEnv("SESSION_COOKIE_NAME", "qaguard_session"),
			SigningKey: getEnv("SESSION_SIGNING_KEY", ""),
			Issuer:     getEnv("SESSION_ISSUER", "qaguard-login"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			OTELEnabled:    parseBool("OTEL_ENABLED", false),
			MetricsEnabled: parseBool("METRICS_ENABLED", true),
			SampleRatio:    parseFloat("OTEL_TRACES_SAMPLE_RATIO", 1.0),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "qaguard"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
		},
		Security: SecurityConfig{
			Argon2Memory:      uint32(parseInt("ARGON2_MEMORY", 65536)),
			Argon2Iterations:  uint32(parseInt("ARGON2_ITERATIONS", 3)),
			Argon2Parallelism: uint8(parseInt("ARGON2_PARALLELISM", 4)),
			Argon2SaltLength:  uint32(parseInt("ARGON2_SALT_LENGTH", 16)),
			Argon2KeyLength:   uint32(parseInt("ARGON2_KEY_LENGTH", 32)),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: parseFloat("RATELIMIT_RPS", 10),
			Burst:             parseInt("RATELIMIT_BURST", 20),
		},
		Token: TokenConfig{
			Product:     getEnv("TOKEN_PRODUCT", "qag"),
			Workers:     parseInt("TOKEN_WORKERS", 4),
			QueueSize:   parseInt("TOKEN_QUEUE_SIZE", 1024),
			TaskTimeout: parseDuration("TOKEN_TASK_TIMEOUT", "5s"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error
	if c.Database.Password == "" {
		errs = append(errs, errors.New("DB_PASSWORD is required"))
	}
	if len(c.Session.SigningKey) < 32 {
		errs = append(errs, errors.New("SESSION_SIGNING_KEY must be at least 32 bytes"))
	}
	if c.Token.Product == "" {
		errs = append(errs, errors.New("TOKEN_PRODUCT is required"))
	}
	if c.Token.Workers < 1 || c.Token.QueueSize < 1 {
		errs = append(errs, errors.New("TOKEN_WORKERS and TOKEN_QUEUE_SIZE must be positive"))
	}
	if c.Security.Argon2Iterations < 1 || c.Security.Argon2Parallelism < 1 || c.Security.Argon2SaltLength < 8 {
		errs = append(errs, errors.New("argon2 parameters are too weak"))
	}
	if c.Observability.SampleRatio < 0 || c.Observability.SampleRatio > 1 {
		errs = append(errs, errors.New("OTEL_TRACES_SAMPLE_RATIO must be within [0, 1]"))
	}
	return errors.Join(errs...)
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

func parseFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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
