// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/olegiv/deptdocs/internal/service"
)

// DepartmentsHandler lists departments for the upload target pickers and
// serves the admin department CRUD.
type DepartmentsHandler struct {
	departments *service.DepartmentService
}

// NewDepartmentsHandler creates a new DepartmentsHandler.
func NewDepartmentsHandler(departments *service.DepartmentService) *DepartmentsHandler {
	return &DepartmentsHandler{departments: departments}
}

// List handles GET /api/departments and GET /api/admin/departments.
func (h *DepartmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	depts, err := h.departments.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, depts, nil)
}

// Get handles GET /api/admin/departments/{id}.
func (h *DepartmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r, "department")
	if !ok {
		return
	}

	dept, err := h.departments.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, dept, nil)
}

// Create handles POST /api/admin/departments.
func (h *DepartmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var in service.DepartmentInput
	if !decodeJSON(w, r, &in) {
		return
	}

	dept, err := h.departments.Create(r.Context(), actor, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteCreated(w, dept)
}

// Update handles PUT /api/admin/departments/{id}.
func (h *DepartmentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r, "department")
	if !ok {
		return
	}
	var in service.DepartmentInput
	if !decodeJSON(w, r, &in) {
		return
	}

	dept, err := h.departments.Update(r.Context(), actor, id, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, dept, nil)
}

// Delete handles DELETE /api/admin/departments/{id}. Members of the
// department keep their other memberships.
func (h *DepartmentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r, "department")
	if !ok {
		return
	}

	if err := h.departments.Delete(r.Context(), actor, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
