package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// Auth
	JWTSecret string

	// Operating mode; error responses echo internal detail only in
	// development.
	AppEnv string

	// Rate limiting for mutating requests
	RequestsPerMinute int

	// Home view response cache
	HomeCacheTTL time.Duration

	// Logging
	LogLevel string
}

func Load() *Config {
	return &Config{
		Port:              getEnv("PORT", "8081"),
		SQLiteDBPath:      getEnv("SQLITE_DB_PATH", "./data/walletd.db"),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		AppEnv:            getEnv("APP_ENV", EnvDevelopment),
		RequestsPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		HomeCacheTTL:      getEnvDuration("HOME_CACHE_TTL", 30*time.Second),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.JWTSecret == "" {
		errors = append(errors, "JWT_SECRET must be set")
	}

	if c.AppEnv != EnvDevelopment && c.AppEnv != EnvProduction {
		errors = append(errors, fmt.Sprintf("invalid app env '%s': must be '%s' or '%s'", c.AppEnv, EnvDevelopment, EnvProduction))
	}

	if c.RequestsPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RequestsPerMinute))
	}

	if c.HomeCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid home cache TTL %v: must not be negative", c.HomeCacheTTL))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// IsDevelopment reports whether error responses may carry internal
// diagnostic detail.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
