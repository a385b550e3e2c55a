// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/olegiv/deptdocs/internal/blob"
	"github.com/olegiv/deptdocs/internal/cache"
	"github.com/olegiv/deptdocs/internal/config"
	"github.com/olegiv/deptdocs/internal/handler"
	"github.com/olegiv/deptdocs/internal/logging"
	"github.com/olegiv/deptdocs/internal/metrics"
	"github.com/olegiv/deptdocs/internal/middleware"
	"github.com/olegiv/deptdocs/internal/scheduler"
	"github.com/olegiv/deptdocs/internal/service"
	"github.com/olegiv/deptdocs/internal/session"
	"github.com/olegiv/deptdocs/internal/store"
	"github.com/olegiv/deptdocs/internal/version"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "deptdocs - department document sharing portal\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  DEPTDOCS_SESSION_SECRET        Session encryption key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  DEPTDOCS_DB_PATH               SQLite database path (default: ./data/deptdocs.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  DEPTDOCS_SERVER_PORT           Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  DEPTDOCS_ENV                   Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  DEPTDOCS_UPLOADS_DIR           Upload directory for the fs backend (default: ./uploads)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  DEPTDOCS_BLOB_BACKEND          Blob storage: fs|s3 (default: fs)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  DEPTDOCS_S3_BUCKET             Bucket for the s3 backend\n")
		_, _ = fmt.Fprintf(os.Stderr, "  DEPTDOCS_TRANSFER_TIMEOUT      Deadline for one upload or download (default: 10m)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  DEPTDOCS_REDIS_URL             Redis URL for the dashboard cache (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  DEPTDOCS_EVENT_RETENTION_DAYS  Days of audit events to keep (default: 90)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  DEPTDOCS_ADMIN_USERNAME        Bootstrap admin username (default: admin)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  DEPTDOCS_ADMIN_PASSWORD        Bootstrap admin password\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		_, _ = fmt.Printf("deptdocs %s (commit: %s, built: %s)\n", appVersion, appGitCommit, appBuildTime)
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env files if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	versionInfo := version.Info{
		Version:   appVersion,
		GitCommit: appGitCommit,
		BuildTime: appBuildTime,
	}

	logLevel := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn", "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	slog.Info("starting deptdocs", "version", versionInfo.String())

	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	slog.Info("running database migrations")
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// Upgrade logger to also write WARN and ERROR logs to the events table
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger = slog.New(logging.NewEventLogHandler(textHandler, db))
	slog.SetDefault(logger)

	ctx := context.Background()
	prov, err := store.Provision(ctx, db, store.ProvisionOptions{
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
	})
	if err != nil {
		return fmt.Errorf("provisioning database: %w", err)
	}
	if prov.CreatedAdmin {
		slog.Warn("bootstrap admin created; change its password", "username", cfg.AdminUsername)
	}
	if prov.Repaired > 0 {
		slog.Info("memberships repaired at startup", "changed", prov.Repaired)
	}
	slog.Info("database ready",
		"common_department", prov.Departments.Common.Name,
		"admin_department", prov.Departments.Admin.Name)

	blobs, err := blob.New(ctx, blob.Config{
		Backend: cfg.BlobBackend,
		Root:    cfg.UploadsDir,
		S3: blob.S3Config{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3UsePathStyle,
		},
	})
	if err != nil {
		return fmt.Errorf("initializing blob storage: %w", err)
	}
	slog.Info("blob storage ready", "backend", cfg.BlobBackend)

	dashCache := cache.New(cache.Config{
		RedisURL:   cfg.RedisURL,
		Prefix:     cfg.CachePrefix,
		DefaultTTL: cfg.CacheTTLDuration(),
		MaxSize:    cfg.CacheMaxSize,
	}, logger)
	defer func() {
		if err := dashCache.Close(); err != nil {
			slog.Error("error closing cache", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	m.RegisterDB(db)

	sm := session.New(db, session.Options{
		Lifetime: cfg.SessionLifetime,
		Secure:   !cfg.IsDevelopment(),
	})

	events := service.NewEventService(db, logger)
	dashboard := service.NewDashboardService(db, dashCache, cfg.CacheTTLDuration(), m, logger)
	svc := handler.Services{
		Auth:        service.NewAuthService(db, events, m, logger),
		Documents:   service.NewDocumentService(db, blobs, events, dashboard, m, logger),
		Users:       service.NewUserService(db, blobs, events, dashboard, m, logger),
		Departments: service.NewDepartmentService(db, events, dashboard, m, logger),
		Dashboard:   dashboard,
		Events:      events,
	}

	loginProtection := middleware.NewLoginProtection(cfg.LoginProtection)
	defer loginProtection.Close()
	rateLimiter := middleware.NewGlobalRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	uploadsDir := ""
	if cfg.BlobBackend == blob.BackendFS {
		uploadsDir = cfg.UploadsDir
	}

	router := handler.NewRouter(handler.RouterConfig{
		DB:              db,
		Sessions:        sm,
		Blobs:           blobs,
		UploadsDir:      uploadsDir,
		Version:         versionInfo,
		Services:        svc,
		Metrics:         m,
		LoginProtection: loginProtection,
		RateLimiter:     rateLimiter,
		Security:        middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment()),
		CSRF:            middleware.DefaultCSRFConfig([]byte(cfg.SessionSecret), cfg.IsDevelopment()),
		RequestTimeout:  cfg.RequestTimeout,
		TransferTimeout: cfg.TransferTimeout,
		AccessLog:       true,
	})

	sched := scheduler.New(db, events, dashboard, scheduler.Options{
		EventRetention: cfg.EventRetention(),
		RateLimiter:    rateLimiter,
	}, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second, // transfer routes extend their own deadlines
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
