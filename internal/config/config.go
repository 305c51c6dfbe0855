// Package config provides configuration management for the relay
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the relay
type Config struct {
	Server   ServerConfig
	Upstream UpstreamConfig
	Score    ScoreConfig
	Database DatabaseConfig
	Limits   LimitsConfig
	Auth     AuthConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// UpstreamConfig holds settings for the smashpros.gg API
type UpstreamConfig struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	// StrictParams rejects relay requests with a missing identifier
	// instead of forwarding an empty path segment.
	StrictParams bool
}

// Score backends
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// ScoreConfig holds local score storage configuration
type ScoreConfig struct {
	Backend         string
	FilePath        string
	CreateIfMissing bool
}

// LimitsConfig bounds the amount a single increment may add.
// The zero MaxIncrement means no bound.
type LimitsConfig struct {
	MaxIncrement  int64
	AllowNegative bool
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver string
	DSN    string
}

// AuthConfig holds admin token configuration.
// Auth is disabled when AdminPasswordHash is empty.
type AuthConfig struct {
	AdminPasswordHash string
	JWTSecret         string
	TokenExpiry       time.Duration
}

// Enabled reports whether mutating routes require a token
func (a AuthConfig) Enabled() bool {
	return a.AdminPasswordHash != ""
}

// EnsureJWTSecret fills in a random signing key when auth is enabled and
// RELAY_JWT_SECRET is unset. Tokens signed with it do not survive a restart.
// It reports whether a key was generated.
func (a *AuthConfig) EnsureJWTSecret() (bool, error) {
	if !a.Enabled() || a.JWTSecret != "" {
		return false, nil
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return false, fmt.Errorf("failed to generate jwt secret: %w", err)
	}
	a.JWTSecret = hex.EncodeToString(key)
	return true, nil
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// Load loads configuration from environment with defaults.
// Call Auth.EnsureJWTSecret before building the auth service.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnv("RELAY_PORT", "5000"),
			ReadTimeout:     getEnvDuration("RELAY_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("RELAY_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: 10 * time.Second,
		},
		Upstream: UpstreamConfig{
			BaseURL:      getEnv("RELAY_UPSTREAM_URL", "https://smashpros.gg/api/users"),
			Timeout:      getEnvDuration("RELAY_UPSTREAM_TIMEOUT", 30*time.Second),
			RetryCount:   getEnvInt("RELAY_UPSTREAM_RETRIES", 1),
			StrictParams: getEnvBool("RELAY_STRICT_PARAMS", false),
		},
		Score: ScoreConfig{
			Backend:         strings.ToLower(getEnv("RELAY_SCORE_BACKEND", BackendFile)),
			FilePath:        getEnv("RELAY_SCORE_FILE", "score.json"),
			CreateIfMissing: getEnvBool("RELAY_SCORE_CREATE_IF_MISSING", true),
		},
		Limits: LimitsConfig{
			MaxIncrement:  int64(getEnvInt("RELAY_MAX_INCREMENT", 0)),
			AllowNegative: getEnvBool("RELAY_ALLOW_NEGATIVE_INCREMENT", true),
		},
		Database: DatabaseConfig{
			Driver: getEnv("RELAY_DB_DRIVER", "postgres"),
			DSN:    getEnv("RELAY_DB_DSN", "host=localhost dbname=smashrelay sslmode=disable"),
		},
		Auth: AuthConfig{
			AdminPasswordHash: getEnv("RELAY_ADMIN_PASSWORD_HASH", ""),
			JWTSecret:         os.Getenv("RELAY_JWT_SECRET"),
			TokenExpiry:       getEnvDuration("RELAY_TOKEN_EXPIRY", 12*time.Hour),
		},
		Log: LogConfig{
			Level: getEnv("RELAY_LOG_LEVEL", "info"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
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
