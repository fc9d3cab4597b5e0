package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend names accepted by RATELIMIT_BACKEND and AUDIT_BACKEND.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Algorithm names accepted by RATELIMIT_ALGORITHM.
const (
	AlgorithmFixedWindow = "fixed_window"
	AlgorithmTokenBucket = "token_bucket"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr        string
	Environment string
	LogLevel    string

	JWTSigningKey string
	TokenTTL      time.Duration
	AdminToken    string

	// Credentials accepted by POST /auth/login. The hash is bcrypt.
	AdminEmail        string
	AdminPasswordHash string

	RateLimit RateLimitConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	Audit     AuditConfig
	Kafka     KafkaConfig
}

// RateLimitConfig selects the limiter backend and per-profile overrides.
type RateLimitConfig struct {
	Backend       string
	Algorithm     string
	SweepInterval time.Duration
	Disabled      bool
	// Overrides is keyed by lower-case profile name ("auth", "api", ...).
	Overrides map[string]LimitOverride
}

// LimitOverride replaces one profile's defaults. Zero fields keep the default.
type LimitOverride struct {
	MaxRequests int
	Window      time.Duration
}

// RedisConfig configures the shared rate-limit store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig configures the postgres audit store.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// AuditConfig selects where audit entries are persisted and where critical
// entries are forwarded.
type AuditConfig struct {
	Backend    string
	SQLitePath string
	AlertTopic string
}

// KafkaConfig configures the alert producer. Empty Brokers disables Kafka.
type KafkaConfig struct {
	Brokers         string
	Acks            string
	Retries         int
	DeliveryTimeout time.Duration
}

// LoadDotEnv seeds the process environment from a .env file when present.
// Variables already set in the environment win.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:              getEnv("ADMISSIONS_ADDR", ":8080"),
		Environment:       getEnv("ENVIRONMENT", "development"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		JWTSigningKey:     getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		TokenTTL:          getDuration("TOKEN_TTL", 15*time.Minute),
		AdminToken:        os.Getenv("ADMIN_TOKEN"),
		AdminEmail:        os.Getenv("ADMIN_EMAIL"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		RateLimit: RateLimitConfig{
			Backend:       strings.ToLower(getEnv("RATELIMIT_BACKEND", BackendMemory)),
			Algorithm:     strings.ToLower(getEnv("RATELIMIT_ALGORITHM", AlgorithmFixedWindow)),
			SweepInterval: getDuration("RATELIMIT_SWEEP_INTERVAL", 5*time.Minute),
			Disabled:      os.Getenv("RATELIMIT_DISABLED") == "true",
			Overrides:     limitOverrides(os.Environ()),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Audit: AuditConfig{
			Backend:    strings.ToLower(getEnv("AUDIT_BACKEND", BackendMemory)),
			SQLitePath: getEnv("SQLITE_PATH", "admissions-audit.db"),
			AlertTopic: getEnv("AUDIT_ALERT_TOPIC", "admissions.audit.alerts"),
		},
		Kafka: KafkaConfig{
			Brokers:         os.Getenv("KAFKA_BROKERS"),
			Acks:            getEnv("KAFKA_ACKS", "all"),
			Retries:         getInt("KAFKA_RETRIES", 3),
			DeliveryTimeout: getDuration("KAFKA_DELIVERY_TIMEOUT", 30*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate rejects unknown backends and backends missing their connection settings.
func (c Server) Validate() error {
	switch c.RateLimit.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.URL == "" {
			return errors.New("RATELIMIT_BACKEND=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown RATELIMIT_BACKEND %q", c.RateLimit.Backend)
	}

	switch c.RateLimit.Algorithm {
	case AlgorithmFixedWindow, AlgorithmTokenBucket:
	default:
		return fmt.Errorf("unknown RATELIMIT_ALGORITHM %q", c.RateLimit.Algorithm)
	}
	if c.RateLimit.Algorithm == AlgorithmTokenBucket && c.RateLimit.Backend != BackendMemory {
		return errors.New("RATELIMIT_ALGORITHM=token_bucket is only available with the memory backend")
	}

	switch c.Audit.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Database.URL == "" {
			return errors.New("AUDIT_BACKEND=postgres requires DATABASE_URL")
		}
	case BackendSQLite:
		if c.Audit.SQLitePath == "" {
			return errors.New("AUDIT_BACKEND=sqlite requires SQLITE_PATH")
		}
	default:
		return fmt.Errorf("unknown AUDIT_BACKEND %q", c.Audit.Backend)
	}
	return nil
}

// limitOverrides collects RATELIMIT_<PROFILE>_MAX and RATELIMIT_<PROFILE>_WINDOW.
func limitOverrides(environ []string) map[string]LimitOverride {
	overrides := make(map[string]LimitOverride)
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, "RATELIMIT_") {
			continue
		}
		rest := strings.TrimPrefix(key, "RATELIMIT_")
		var profile string
		switch {
		case strings.HasSuffix(rest, "_MAX"):
			profile = strings.ToLower(strings.TrimSuffix(rest, "_MAX"))
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				o := overrides[profile]
				o.MaxRequests = n
				overrides[profile] = o
			}
		case strings.HasSuffix(rest, "_WINDOW"):
			profile = strings.ToLower(strings.TrimSuffix(rest, "_WINDOW"))
			if d, err := time.ParseDuration(value); err == nil && d > 0 {
				o := overrides[profile]
				o.Window = d
				overrides[profile] = o
			}
		}
	}
	return overrides
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
