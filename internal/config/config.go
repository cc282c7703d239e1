package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all configuration for the keygate server.
type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	Database   DatabaseConfig
	SQLite     SQLiteConfig
	Redis      RedisConfig
	Admin      AdminConfig
	Session    SessionConfig
	Credential CredentialConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type StoreConfig struct {
	Driver string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	URL string
}

// AdminConfig holds the bcrypt hash of the administrator password.
// The plaintext password is never part of the configuration.
type AdminConfig struct {
	PasswordHash string
}

type SessionConfig struct {
	TTL             time.Duration
	VerifyRateLimit int
}

type CredentialConfig struct {
	MaxIssueCount   int
	MaxValidityDays int
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("KEYGATE_PORT", 8080),
			Env:  envString("KEYGATE_ENV", "development"),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(envString("KEYGATE_STORE_DRIVER", DriverPostgres)),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		SQLite: SQLiteConfig{
			Path: envString("KEYGATE_SQLITE_PATH", "keygate.db"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Admin: AdminConfig{
			PasswordHash: os.Getenv("KEYGATE_ADMIN_PASSWORD_HASH"),
		},
		Session: SessionConfig{
			TTL:             envDuration("KEYGATE_SESSION_TTL", 12*time.Hour),
			VerifyRateLimit: envInt("KEYGATE_VERIFY_RATE_LIMIT", 10),
		},
		Credential: CredentialConfig{
			MaxIssueCount:   envInt("KEYGATE_MAX_ISSUE_COUNT", 1000),
			MaxValidityDays: envInt("KEYGATE_MAX_VALIDITY_DAYS", 3650),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when KEYGATE_STORE_DRIVER is postgres")
		}
	case DriverSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("KEYGATE_SQLITE_PATH must not be empty")
		}
	default:
		return fmt.Errorf("KEYGATE_STORE_DRIVER must be one of postgres, sqlite; got %q", c.Store.Driver)
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Admin.PasswordHash == "" {
		return fmt.Errorf("KEYGATE_ADMIN_PASSWORD_HASH is required")
	}
	if !strings.HasPrefix(c.Admin.PasswordHash, "$2") {
		return fmt.Errorf("KEYGATE_ADMIN_PASSWORD_HASH must be a bcrypt hash")
	}

	if c.Session.TTL <= 0 {
		return fmt.Errorf("KEYGATE_SESSION_TTL must be positive, got %s", c.Session.TTL)
	}
	if c.Credential.MaxIssueCount < 1 {
		return fmt.Errorf("KEYGATE_MAX_ISSUE_COUNT must be at least 1, got %d", c.Credential.MaxIssueCount)
	}
	if c.Credential.MaxValidityDays < 0 {
		return fmt.Errorf("KEYGATE_MAX_VALIDITY_DAYS must not be negative, got %d", c.Credential.MaxValidityDays)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
