// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"runtime"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/dustin/go-humanize"

	"github.com/olegiv/deptdocs/internal/blob"
	"github.com/olegiv/deptdocs/internal/session"
	"github.com/olegiv/deptdocs/internal/store"
	"github.com/olegiv/deptdocs/internal/version"
)

// Health statuses.
const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// minFreeSpace is the free space below which the disk check degrades.
const minFreeSpace = 100 * 1024 * 1024

// checkTimeout bounds each dependency check.
const checkTimeout = 3 * time.Second

// HealthHandler handles health check requests.
type HealthHandler struct {
	db         *sql.DB
	queries    *store.Queries
	sm         *scs.SessionManager
	blobs      blob.Store
	uploadsDir string
	version    version.Info
	startTime  time.Time
}

// NewHealthHandler creates a new health handler. uploadsDir is checked for
// free space when it is not empty.
func NewHealthHandler(db *sql.DB, sm *scs.SessionManager, blobs blob.Store, uploadsDir string, info version.Info) *HealthHandler {
	return &HealthHandler{
		db:         db,
		queries:    store.New(db),
		sm:         sm,
		blobs:      blobs,
		uploadsDir: uploadsDir,
		version:    info,
		startTime:  time.Now(),
	}
}

// HealthStatusPublic is the minimal health response for anonymous callers.
type HealthStatusPublic struct {
	Status string `json:"status"`
}

// HealthStatus is the detailed response shown to administrators.
type HealthStatus struct {
	Status    string           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Version   version.Info     `json:"version"`
	Checks    map[string]Check `json:"checks"`
	System    *SystemInfo      `json:"system,omitempty"`
}

// Check represents a single health check result.
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// SystemInfo contains runtime information.
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutines"`
	NumCPU       int    `json:"num_cpus"`
	MemAlloc     string `json:"mem_alloc"`
	MemSys       string `json:"mem_sys"`
}

// Health handles GET /health. Administrators get the individual checks,
// everyone else only the overall status.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]Check{
		"database": h.checkDatabase(r.Context()),
		"storage":  h.checkStorage(r.Context()),
	}
	if h.uploadsDir != "" {
		checks["disk"] = h.checkDiskSpace()
	}

	overall := statusHealthy
	for _, c := range checks {
		if c.Status != statusHealthy {
			overall = statusDegraded
		}
	}

	status := http.StatusOK
	if overall != statusHealthy {
		status = http.StatusServiceUnavailable
	}

	if !h.isAdmin(r) {
		WriteJSON(w, status, HealthStatusPublic{Status: overall})
		return
	}

	resp := HealthStatus{
		Status:    overall,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   h.version,
		Checks:    checks,
	}
	if r.URL.Query().Get("verbose") == "true" {
		resp.System = systemInfo()
	}
	WriteJSON(w, status, resp)
}

// Liveness handles GET /health/live.
func (h *HealthHandler) Liveness(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// Readiness handles GET /health/ready. The service is ready when the
// database and the blob store answer.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name  string
		check func(context.Context) Check
	}{
		{"database", h.checkDatabase},
		{"storage", h.checkStorage},
	}
	for _, p := range checks {
		if c := p.check(r.Context()); c.Status != statusHealthy {
			resp := map[string]string{"status": "not_ready", "failed": p.name}
			if h.isAdmin(r) {
				resp["message"] = c.Message
			}
			WriteJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// isAdmin reports whether the request carries an administrator session.
// It returns false when session data is not loaded into the context.
func (h *HealthHandler) isAdmin(r *http.Request) (admin bool) {
	if h.sm == nil {
		return false
	}
	defer func() {
		// SCS panics when LoadAndSave did not run.
		if rec := recover(); rec != nil {
			admin = false
		}
	}()

	userID := session.UserID(r.Context(), h.sm)
	if userID == 0 {
		return false
	}
	p, err := h.queries.LoadProfile(r.Context(), userID)
	return err == nil && p.IsAdmin
}

func (h *HealthHandler) checkDatabase(ctx context.Context) Check {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := h.db.PingContext(ctx)
	latency := time.Since(start)
	if err != nil {
		return Check{Status: statusUnhealthy, Message: err.Error(), Latency: latency.String()}
	}
	return Check{Status: statusHealthy, Message: "Connected", Latency: latency.String()}
}

// checkStorage pings the blob store when it supports it.
func (h *HealthHandler) checkStorage(ctx context.Context) Check {
	p, ok := h.blobs.(blob.Pinger)
	if !ok {
		return Check{Status: statusHealthy, Message: "No health check available"}
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := p.Ping(ctx)
	latency := time.Since(start)
	if err != nil {
		return Check{Status: statusUnhealthy, Message: err.Error(), Latency: latency.String()}
	}
	return Check{Status: statusHealthy, Message: "Reachable", Latency: latency.String()}
}

// checkDiskSpace checks available disk space in the uploads directory.
func (h *HealthHandler) checkDiskSpace() Check {
	if _, err := os.Stat(h.uploadsDir); os.IsNotExist(err) {
		return Check{Status: statusHealthy, Message: "Uploads directory does not exist yet"}
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(h.uploadsDir, &stat); err != nil {
		return Check{Status: statusUnhealthy, Message: "Failed to check disk space: " + err.Error()}
	}

	availableBytes := stat.Bavail * uint64(stat.Bsize)
	available := humanize.IBytes(availableBytes)
	if availableBytes < minFreeSpace {
		return Check{Status: statusDegraded, Message: "Low disk space: " + available + " available"}
	}
	return Check{Status: statusHealthy, Message: available + " available"}
}

func systemInfo() *SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return &SystemInfo{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     humanize.IBytes(m.Alloc),
		MemSys:       humanize.IBytes(m.Sys),
	}
}
