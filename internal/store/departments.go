// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/olegiv/deptdocs/internal/model"
)

const (
	departmentColumns  = `id, name, description, is_common, is_admin_department, created_by, updated_by, created_at, updated_at`
	departmentColumnsD = `d.id, d.name, d.description, d.is_common, d.is_admin_department, d.created_by, d.updated_by, d.created_at, d.updated_at`
)

func scanDepartment(s scanner) (model.Department, error) {
	var d model.Department
	err := s.Scan(&d.ID, &d.Name, &d.Description, &d.IsCommon, &d.IsAdminDepartment,
		&d.CreatedBy, &d.UpdatedBy, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func collectDepartments(rows *sql.Rows) ([]model.Department, error) {
	defer func() { _ = rows.Close() }()

	var out []model.Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CreateDepartmentParams holds the columns of a new department.
type CreateDepartmentParams struct {
	Name              string
	Description       string
	IsCommon          bool
	IsAdminDepartment bool
	CreatedBy         sql.NullInt64
	CreatedAt         time.Time
}

// CreateDepartment inserts a department.
func (q *Queries) CreateDepartment(ctx context.Context, arg CreateDepartmentParams) (model.Department, error) {
	ts := orNow(arg.CreatedAt)
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO departments (name, description, is_common, is_admin_department, created_by, updated_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		arg.Name, arg.Description, arg.IsCommon, arg.IsAdminDepartment, arg.CreatedBy, arg.CreatedBy, ts, ts)
	if err != nil {
		return model.Department{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Department{}, err
	}
	return q.GetDepartmentByID(ctx, id)
}

// GetDepartmentByID returns a department or sql.ErrNoRows.
func (q *Queries) GetDepartmentByID(ctx context.Context, id int64) (model.Department, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+departmentColumns+` FROM departments WHERE id = ?`, id)
	return scanDepartment(row)
}

// GetDepartmentByName returns a department or sql.ErrNoRows.
func (q *Queries) GetDepartmentByName(ctx context.Context, name string) (model.Department, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+departmentColumns+` FROM departments WHERE name = ?`, name)
	return scanDepartment(row)
}

// GetCommonDepartment returns the department flagged is_common.
func (q *Queries) GetCommonDepartment(ctx context.Context) (model.Department, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+departmentColumns+` FROM departments WHERE is_common = 1`)
	return scanDepartment(row)
}

// GetAdminDepartment returns the department flagged is_admin_department.
func (q *Queries) GetAdminDepartment(ctx context.Context) (model.Department, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+departmentColumns+` FROM departments WHERE is_admin_department = 1`)
	return scanDepartment(row)
}

// ListDepartments returns all departments, protected ones first.
func (q *Queries) ListDepartments(ctx context.Context) ([]model.Department, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+departmentColumns+` FROM departments
		ORDER BY is_common DESC, is_admin_department DESC, name`)
	if err != nil {
		return nil, err
	}
	return collectDepartments(rows)
}

// UpdateDepartmentParams holds the editable department columns.
type UpdateDepartmentParams struct {
	ID          int64
	Name        string
	Description string
	UpdatedBy   sql.NullInt64
}

// UpdateDepartment updates name and description.
func (q *Queries) UpdateDepartment(ctx context.Context, arg UpdateDepartmentParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE departments SET name = ?, description = ?, updated_by = ?, updated_at = ? WHERE id = ?`,
		arg.Name, arg.Description, arg.UpdatedBy, now(), arg.ID)
	return err
}

// FlagCommonDepartment marks an existing department as the common one.
func (q *Queries) FlagCommonDepartment(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE departments SET is_common = 1, updated_at = ? WHERE id = ?`, now(), id)
	return err
}

// FlagAdminDepartment marks an existing department as the admin one.
func (q *Queries) FlagAdminDepartment(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE departments SET is_admin_department = 1, updated_at = ? WHERE id = ?`, now(), id)
	return err
}

// DeleteDepartment deletes a department. Memberships and document targets
// referencing it cascade.
func (q *Queries) DeleteDepartment(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM departments WHERE id = ?`, id)
	return err
}

// CountDepartments returns the number of departments.
func (q *Queries) CountDepartments(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM departments`).Scan(&n)
	return n, err
}

// CountDocumentsPerDepartment returns the number of documents targeting
// each department, including departments with none.
func (q *Queries) CountDocumentsPerDepartment(ctx context.Context) ([]model.DepartmentCount, error) {
	return q.countPerDepartment(ctx,
		`SELECT d.id, d.name, COUNT(dd.document_id)
		FROM departments d
		LEFT JOIN document_departments dd ON dd.department_id = d.id
		GROUP BY d.id, d.name
		ORDER BY d.name`)
}

// CountUsersPerDepartment returns the number of members of each department.
func (q *Queries) CountUsersPerDepartment(ctx context.Context) ([]model.DepartmentCount, error) {
	return q.countPerDepartment(ctx,
		`SELECT d.id, d.name, COUNT(pd.profile_id)
		FROM departments d
		LEFT JOIN profile_departments pd ON pd.department_id = d.id
		GROUP BY d.id, d.name
		ORDER BY d.name`)
}

func (q *Queries) countPerDepartment(ctx context.Context, query string) ([]model.DepartmentCount, error) {
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []model.DepartmentCount
	for rows.Next() {
		var c model.DepartmentCount
		if err := rows.Scan(&c.DepartmentID, &c.Name, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
