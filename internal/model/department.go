// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"time"
)

// Names given to the protected departments when they are provisioned.
const (
	CommonDepartmentName = "Common"
	AdminDepartmentName  = "Quản trị"
)

// Department is an organisational unit that users belong to and documents
// are targeted at.
type Department struct {
	ID                int64         `json:"id"`
	Name              string        `json:"name"`
	Description       string        `json:"description"`
	IsCommon          bool          `json:"is_common"`
	IsAdminDepartment bool          `json:"is_admin_department"`
	CreatedBy         sql.NullInt64 `json:"-"`
	UpdatedBy         sql.NullInt64 `json:"-"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// IsProtected reports whether the department is the common or the admin one.
// Protected departments are never edited or deleted.
func (d *Department) IsProtected() bool {
	return d.IsCommon || d.IsAdminDepartment
}

// DepartmentCount pairs a department name with a count for dashboard tables.
type DepartmentCount struct {
	DepartmentID int64  `json:"department_id"`
	Name         string `json:"name"`
	Count        int64  `json:"count"`
}
