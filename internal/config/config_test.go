// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"strings"
	"testing"
	"time"
)

const testSecret = "test-secret-key-32-bytes-long!!!"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DEPTDOCS_SESSION_SECRET", testSecret)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DBPath != "./data/deptdocs.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "./data/deptdocs.db")
	}
	if cfg.ServerAddr() != "localhost:8080" {
		t.Errorf("ServerAddr() = %q, want %q", cfg.ServerAddr(), "localhost:8080")
	}
	if !cfg.IsDevelopment() {
		t.Error("IsDevelopment() = false, want true")
	}
	if cfg.BlobBackend != "fs" {
		t.Errorf("BlobBackend = %q, want fs", cfg.BlobBackend)
	}
	if cfg.UseRedisCache() {
		t.Error("UseRedisCache() = true without a URL")
	}
	if cfg.EventRetention() != 90*24*time.Hour {
		t.Errorf("EventRetention() = %v", cfg.EventRetention())
	}
	if cfg.SessionLifetime != 24*time.Hour {
		t.Errorf("SessionLifetime = %v, want 24h", cfg.SessionLifetime)
	}
	if cfg.AdminUsername != "admin" {
		t.Errorf("AdminUsername = %q, want admin", cfg.AdminUsername)
	}
	if cfg.LoginProtection.MaxFailedAttempts != 5 {
		t.Errorf("LoginProtection.MaxFailedAttempts = %d, want 5", cfg.LoginProtection.MaxFailedAttempts)
	}
	if cfg.LoginProtection.LockoutDuration != 15*time.Minute {
		t.Errorf("LoginProtection.LockoutDuration = %v, want 15m", cfg.LoginProtection.LockoutDuration)
	}
	if cfg.RateLimitRPS != 20 || cfg.RateLimitBurst != 40 {
		t.Errorf("rate limit = %v/%d, want 20/40", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if cfg.RequestTimeout != 30*time.Second || cfg.TransferTimeout != 10*time.Minute {
		t.Errorf("timeouts = %v/%v, want 30s/10m", cfg.RequestTimeout, cfg.TransferTimeout)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("DEPTDOCS_SESSION_SECRET", testSecret)
	t.Setenv("DEPTDOCS_DB_PATH", "/var/lib/deptdocs/app.db")
	t.Setenv("DEPTDOCS_SERVER_HOST", "0.0.0.0")
	t.Setenv("DEPTDOCS_SERVER_PORT", "3000")
	t.Setenv("DEPTDOCS_ENV", "production")
	t.Setenv("DEPTDOCS_LOG_LEVEL", "debug")
	t.Setenv("DEPTDOCS_BLOB_BACKEND", "s3")
	t.Setenv("DEPTDOCS_S3_BUCKET", "documents")
	t.Setenv("DEPTDOCS_S3_USE_PATH_STYLE", "true")
	t.Setenv("DEPTDOCS_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("DEPTDOCS_CACHE_TTL", "60")
	t.Setenv("DEPTDOCS_LOGIN_MAX_FAILED_ATTEMPTS", "3")
	t.Setenv("DEPTDOCS_LOGIN_LOCKOUT_DURATION", "5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.ServerAddr() != "0.0.0.0:3000" {
		t.Errorf("ServerAddr() = %q", cfg.ServerAddr())
	}
	if cfg.IsDevelopment() {
		t.Error("IsDevelopment() = true in production")
	}
	if cfg.S3Bucket != "documents" || !cfg.S3UsePathStyle {
		t.Errorf("S3 settings not loaded: %+v", cfg)
	}
	if !cfg.UseRedisCache() {
		t.Error("UseRedisCache() = false with a URL")
	}
	if cfg.CacheTTLDuration() != time.Minute {
		t.Errorf("CacheTTLDuration() = %v, want 1m", cfg.CacheTTLDuration())
	}
	if cfg.LoginProtection.MaxFailedAttempts != 3 || cfg.LoginProtection.LockoutDuration != 5*time.Minute {
		t.Errorf("LoginProtection = %+v", cfg.LoginProtection)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"missing secret", map[string]string{}, "SESSION_SECRET"},
		{"short secret", map[string]string{"DEPTDOCS_SESSION_SECRET": "short"}, "at least 32 bytes"},
		{"weak secret", map[string]string{"DEPTDOCS_SESSION_SECRET": "change-me-to-32-byte-secret-key!"}, "known default"},
		{"bad backend", map[string]string{"DEPTDOCS_SESSION_SECRET": testSecret, "DEPTDOCS_BLOB_BACKEND": "ftp"}, "BLOB_BACKEND"},
		{"s3 without bucket", map[string]string{"DEPTDOCS_SESSION_SECRET": testSecret, "DEPTDOCS_BLOB_BACKEND": "s3"}, "S3_BUCKET"},
		{"bad log level", map[string]string{"DEPTDOCS_SESSION_SECRET": testSecret, "DEPTDOCS_LOG_LEVEL": "loud"}, "LOG_LEVEL"},
		{"zero retention", map[string]string{"DEPTDOCS_SESSION_SECRET": testSecret, "DEPTDOCS_EVENT_RETENTION_DAYS": "0"}, "EVENT_RETENTION_DAYS"},
		{"zero rate", map[string]string{"DEPTDOCS_SESSION_SECRET": testSecret, "DEPTDOCS_RATE_LIMIT_RPS": "0"}, "RATE_LIMIT_RPS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DEPTDOCS_SESSION_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("Load() error = nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestHasMinimumEntropy(t *testing.T) {
	tests := []struct {
		secret string
		want   bool
	}{
		{"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", false},
		{"aaaaaaaaaaaaaaaaAAAAAAAAAAAAAAAA", false},
		{"aaaaaaaaaaaaaaaaAAAAAAAA11111111", true},
		{testSecret, true},
	}
	for _, tt := range tests {
		if got := hasMinimumEntropy(tt.secret); got != tt.want {
			t.Errorf("hasMinimumEntropy(%q) = %v, want %v", tt.secret, got, tt.want)
		}
	}
}
