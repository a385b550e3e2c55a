// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/deptdocs/internal/cache"
	"github.com/olegiv/deptdocs/internal/metrics"
	"github.com/olegiv/deptdocs/internal/model"
	"github.com/olegiv/deptdocs/internal/store"
)

const dashboardCacheKey = "dashboard:stats"

// Dashboard holds the admin overview figures.
type Dashboard struct {
	TotalDepartments       int64                   `json:"total_departments"`
	TotalUsers             int64                   `json:"total_users"`
	TotalDocuments         int64                   `json:"total_documents"`
	DocumentsPerDepartment []model.DepartmentCount `json:"documents_per_department"`
	UsersPerDepartment     []model.DepartmentCount `json:"users_per_department"`
	GeneratedAt            time.Time               `json:"generated_at"`
}

// DashboardService computes and caches the admin dashboard.
type DashboardService struct {
	queries *store.Queries
	cache   cache.Cache
	typed   *cache.Typed[Dashboard]
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewDashboardService creates a DashboardService. c and m may be nil.
func NewDashboardService(db *sql.DB, c cache.Cache, ttl time.Duration, m *metrics.Metrics, logger *slog.Logger) *DashboardService {
	s := &DashboardService{
		queries: store.New(db),
		cache:   c,
		metrics: m,
		logger:  loggerOrDefault(logger),
	}
	if c != nil {
		s.typed = cache.NewTyped[Dashboard](c, ttl)
	}
	return s
}

// Stats returns the dashboard, served from cache when possible.
func (s *DashboardService) Stats(ctx context.Context) (Dashboard, error) {
	if s.typed == nil {
		return s.compute(ctx)
	}
	return s.typed.GetOrLoad(ctx, dashboardCacheKey, s.compute)
}

func (s *DashboardService) compute(ctx context.Context) (Dashboard, error) {
	var (
		d   Dashboard
		err error
	)
	if d.TotalDepartments, err = s.queries.CountDepartments(ctx); err != nil {
		return d, fmt.Errorf("counting departments: %w", err)
	}
	if d.TotalUsers, err = s.queries.CountUsers(ctx); err != nil {
		return d, fmt.Errorf("counting users: %w", err)
	}
	if d.TotalDocuments, err = s.queries.CountDocuments(ctx); err != nil {
		return d, fmt.Errorf("counting documents: %w", err)
	}
	if d.DocumentsPerDepartment, err = s.queries.CountDocumentsPerDepartment(ctx); err != nil {
		return d, fmt.Errorf("counting documents per department: %w", err)
	}
	if d.UsersPerDepartment, err = s.queries.CountUsersPerDepartment(ctx); err != nil {
		return d, fmt.Errorf("counting users per department: %w", err)
	}
	d.GeneratedAt = time.Now().UTC()

	s.metrics.SetTotals(d.TotalDocuments, d.TotalUsers, d.TotalDepartments)
	return d, nil
}

// Invalidate drops the cached dashboard. Safe on a nil receiver.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if s == nil || s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, dashboardCacheKey); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", "error", err)
	}
}
