// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// Visibility modes recognised on a document. Only department visibility is
// ever assigned; "specific" is accepted when reading stored rows.
const (
	VisibilityDepartment = "department"
	VisibilitySpecific   = "specific"
)

// Document is an uploaded file shared with one or more departments.
type Document struct {
	ID                  int64     `json:"id"`
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	UploadedBy          int64     `json:"uploaded_by"`
	UploadedAt          time.Time `json:"upload_date"`
	BlobRef             string    `json:"-"`
	Filename            string    `json:"filename"`
	Size                int64     `json:"size"`
	Visibility          string    `json:"visibility"`
	TargetDepartmentIDs []int64   `json:"target_departments"`
	TargetUserIDs       []int64   `json:"target_users"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// TargetsDepartment reports whether the document is shared with the department.
func (d *Document) TargetsDepartment(id int64) bool {
	for _, t := range d.TargetDepartmentIDs {
		if t == id {
			return true
		}
	}
	return false
}
