// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/olegiv/deptdocs/internal/access"
	"github.com/olegiv/deptdocs/internal/markup"
	"github.com/olegiv/deptdocs/internal/metrics"
	"github.com/olegiv/deptdocs/internal/model"
	"github.com/olegiv/deptdocs/internal/store"
)

const maxDepartmentName = 100

// DepartmentInput is the editable part of a department.
type DepartmentInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (in DepartmentInput) clean() (DepartmentInput, error) {
	fe := model.FieldErrors{}
	in.Name = requireText(fe, "name", markup.PlainText(in.Name), maxDepartmentName)
	in.Description = markup.PlainText(in.Description)
	return in, fe.Err()
}

// DepartmentService manages departments.
type DepartmentService struct {
	db        *sql.DB
	queries   *store.Queries
	events    *EventService
	dashboard *DashboardService
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewDepartmentService creates a DepartmentService.
func NewDepartmentService(db *sql.DB, events *EventService, dashboard *DashboardService, m *metrics.Metrics, logger *slog.Logger) *DepartmentService {
	return &DepartmentService{
		db:        db,
		queries:   store.New(db),
		events:    events,
		dashboard: dashboard,
		metrics:   m,
		logger:    loggerOrDefault(logger),
	}
}

// List returns all departments, protected ones first.
func (s *DepartmentService) List(ctx context.Context) ([]model.Department, error) {
	depts, err := s.queries.ListDepartments(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing departments: %w", err)
	}
	return depts, nil
}

// Get returns one department.
func (s *DepartmentService) Get(ctx context.Context, id int64) (model.Department, error) {
	d, err := s.queries.GetDepartmentByID(ctx, id)
	if err != nil {
		return d, notFound(err, "department")
	}
	return d, nil
}

// Create adds a regular department.
func (s *DepartmentService) Create(ctx context.Context, actor model.Actor, in DepartmentInput) (model.Department, error) {
	if err := requireAdmin(s.metrics, actor); err != nil {
		return model.Department{}, err
	}
	in, err := in.clean()
	if err != nil {
		return model.Department{}, err
	}

	d, err := s.queries.CreateDepartment(ctx, store.CreateDepartmentParams{
		Name:        in.Name,
		Description: in.Description,
		CreatedBy:   sql.NullInt64{Int64: actor.UserID, Valid: actor.UserID != 0},
	})
	if err != nil {
		return d, conflict(err, "a department with this name already exists")
	}

	s.events.Record(ctx, actor, model.EventCategoryDepartment, "Department created", map[string]any{
		"department_id": d.ID,
		"name":          d.Name,
	})
	s.dashboard.Invalidate(ctx)
	return d, nil
}

// Update renames or re-describes a regular department.
func (s *DepartmentService) Update(ctx context.Context, actor model.Actor, id int64, in DepartmentInput) (model.Department, error) {
	if err := requireAdmin(s.metrics, actor); err != nil {
		return model.Department{}, err
	}
	d, err := s.Get(ctx, id)
	if err != nil {
		return d, err
	}
	if dec := access.CanEditDepartment(d); !dec.Allowed {
		s.metrics.AccessDenied(string(dec.Reason))
		return d, dec.Err()
	}
	if in, err = in.clean(); err != nil {
		return d, err
	}

	err = s.queries.UpdateDepartment(ctx, store.UpdateDepartmentParams{
		ID:          id,
		Name:        in.Name,
		Description: in.Description,
		UpdatedBy:   sql.NullInt64{Int64: actor.UserID, Valid: actor.UserID != 0},
	})
	if err != nil {
		return d, conflict(err, "a department with this name already exists")
	}

	s.events.Record(ctx, actor, model.EventCategoryDepartment, "Department updated", map[string]any{
		"department_id": id,
		"name":          in.Name,
	})
	s.dashboard.Invalidate(ctx)
	return s.Get(ctx, id)
}

// Delete removes a regular department. Memberships are dropped first, in
// the same transaction, so no profile is left pointing at it.
func (s *DepartmentService) Delete(ctx context.Context, actor model.Actor, id int64) error {
	if err := requireAdmin(s.metrics, actor); err != nil {
		return err
	}
	d, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if dec := access.CanDeleteDepartment(d); !dec.Allowed {
		s.metrics.AccessDenied(string(dec.Reason))
		return dec.Err()
	}

	var removed int64
	err = store.RunInTx(ctx, s.db, func(q *store.Queries) error {
		var err error
		if removed, err = q.RemoveDepartmentFromAllProfiles(ctx, id); err != nil {
			return fmt.Errorf("removing memberships: %w", err)
		}
		if err := q.DeleteDepartment(ctx, id); err != nil {
			return fmt.Errorf("deleting department: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("department deleted", "department_id", id, "memberships_removed", removed)
	s.events.Record(ctx, actor, model.EventCategoryDepartment, "Department deleted", map[string]any{
		"department_id":       id,
		"name":                d.Name,
		"memberships_removed": removed,
	})
	s.dashboard.Invalidate(ctx)
	return nil
}
