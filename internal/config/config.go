// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads the portal configuration from DEPTDOCS_* environment
// variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/olegiv/deptdocs/internal/middleware"
)

// knownWeakSecrets contains example secrets that must never be deployed.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath        string `env:"DB_PATH" envDefault:"./data/deptdocs.db"`
	SessionSecret string `env:"SESSION_SECRET,required"`
	ServerHost    string `env:"SERVER_HOST" envDefault:"localhost"`
	ServerPort    int    `env:"SERVER_PORT" envDefault:"8080"`
	Env           string `env:"ENV" envDefault:"development"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	UploadsDir    string `env:"UPLOADS_DIR" envDefault:"./uploads"`

	// Blob storage
	BlobBackend    string `env:"BLOB_BACKEND" envDefault:"fs"` // fs or s3
	S3Bucket       string `env:"S3_BUCKET"`
	S3Region       string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint     string `env:"S3_ENDPOINT"` // MinIO or other S3 compatible endpoint
	S3AccessKey    string `env:"S3_ACCESS_KEY"`
	S3SecretKey    string `env:"S3_SECRET_KEY"`
	S3UsePathStyle bool   `env:"S3_USE_PATH_STYLE" envDefault:"false"`

	// Cache configuration
	RedisURL     string `env:"REDIS_URL"`                          // Optional Redis URL for shared caching
	CachePrefix  string `env:"CACHE_PREFIX" envDefault:"deptdocs:"` // Redis key prefix
	CacheTTL     int    `env:"CACHE_TTL" envDefault:"300"`          // Dashboard cache TTL in seconds
	CacheMaxSize int    `env:"CACHE_MAX_SIZE" envDefault:"1000"`    // Max memory cache entries

	// Audit log
	EventRetentionDays int `env:"EVENT_RETENTION_DAYS" envDefault:"90"`

	// Bootstrap admin, used only when no admin exists
	AdminUsername string `env:"ADMIN_USERNAME" envDefault:"admin"`
	AdminPassword string `env:"ADMIN_PASSWORD" envDefault:"adminpassword"`

	SessionLifetime time.Duration `env:"SESSION_LIFETIME" envDefault:"24h"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	// Uploads and downloads are exempt from RequestTimeout
	TransferTimeout time.Duration `env:"TRANSFER_TIMEOUT" envDefault:"10m"`

	// Per-IP request rate limit for all routes
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"40"`

	// Login throttling and account lockout, DEPTDOCS_LOGIN_*
	LoginProtection middleware.LoginProtectionConfig `envPrefix:"LOGIN_"`
}

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "DEPTDOCS_"

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// CacheTTLDuration returns the cache TTL as a duration.
func (c Config) CacheTTLDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// EventRetention returns how long audit events are kept.
func (c Config) EventRetention() time.Duration {
	return time.Duration(c.EventRetentionDays) * 24 * time.Hour
}

// MinSessionSecretLength is the minimum required length for the session secret.
const MinSessionSecretLength = 32

// Load parses environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if !hasMinimumEntropy(cfg.SessionSecret) {
		slog.Warn(EnvPrefix + "SESSION_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}
	if !cfg.IsDevelopment() && cfg.AdminPassword == "adminpassword" {
		slog.Warn("bootstrap admin password is the default; set " + EnvPrefix + "ADMIN_PASSWORD")
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.SessionSecret) < MinSessionSecretLength {
		return fmt.Errorf("%sSESSION_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			EnvPrefix, MinSessionSecretLength, len(c.SessionSecret))
	}
	for _, weak := range knownWeakSecrets {
		if c.SessionSecret == weak {
			return fmt.Errorf("%sSESSION_SECRET is a known default value and must not be used", EnvPrefix)
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%sLOG_LEVEL %q is not one of debug, info, warn, error", EnvPrefix, c.LogLevel)
	}

	switch c.BlobBackend {
	case "fs":
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("%sS3_BUCKET is required when %sBLOB_BACKEND=s3", EnvPrefix, EnvPrefix)
		}
	default:
		return fmt.Errorf("%sBLOB_BACKEND %q is not one of fs, s3", EnvPrefix, c.BlobBackend)
	}

	if c.EventRetentionDays < 1 {
		return fmt.Errorf("%sEVENT_RETENTION_DAYS must be at least 1", EnvPrefix)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("%sRATE_LIMIT_RPS and %sRATE_LIMIT_BURST must be positive", EnvPrefix, EnvPrefix)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("%sCACHE_TTL must not be negative", EnvPrefix)
	}
	return nil
}

// hasMinimumEntropy checks that a secret mixes at least 3 character classes.
func hasMinimumEntropy(s string) bool {
	classes := []string{
		"abcdefghijklmnopqrstuvwxyz",
		"ABCDEFGHIJKLMNOPQRSTUVWXYZ",
		"0123456789",
		"!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\",
	}
	n := 0
	for _, chars := range classes {
		if strings.ContainsAny(s, chars) {
			n++
		}
	}
	return n >= 3
}
