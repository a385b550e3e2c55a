// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/olegiv/deptdocs/internal/service"
)

// Default and maximum page sizes of the event log listing.
const (
	defaultEventsPerPage = 50
	maxEventsPerPage     = 200
)

// AdminHandler handles the admin dashboard, user management and the
// event log. Routes are mounted behind RequireAdmin.
type AdminHandler struct {
	dashboard *service.DashboardService
	users     *service.UserService
	events    *service.EventService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(dashboard *service.DashboardService, users *service.UserService, events *service.EventService) *AdminHandler {
	return &AdminHandler{
		dashboard: dashboard,
		users:     users,
		events:    events,
	}
}

// Dashboard handles GET /api/admin/dashboard.
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dashboard.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, stats, nil)
}

// ListUsers handles GET /api/admin/users.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	members, err := h.users.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, members, nil)
}

// GetUser handles GET /api/admin/users/{id}.
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r, "user")
	if !ok {
		return
	}

	detail, err := h.users.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, detail, nil)
}

// CreateUser handles POST /api/admin/users.
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var in service.UserInput
	if !decodeJSON(w, r, &in) {
		return
	}

	detail, err := h.users.Create(r.Context(), actor, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteCreated(w, detail)
}

// UpdateUser handles PUT /api/admin/users/{id}.
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r, "user")
	if !ok {
		return
	}
	var in service.UserInput
	if !decodeJSON(w, r, &in) {
		return
	}

	detail, err := h.users.Update(r.Context(), actor, id, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, detail, nil)
}

// DeleteUser handles DELETE /api/admin/users/{id}. The user's documents
// and their files go with it.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r, "user")
	if !ok {
		return
	}

	if err := h.users.Delete(r.Context(), actor, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Events handles GET /api/admin/events?page=&per_page=.
func (h *AdminHandler) Events(w http.ResponseWriter, r *http.Request) {
	page := queryInt64(r, "page", 1)
	perPage := min(queryInt64(r, "per_page", defaultEventsPerPage), maxEventsPerPage)

	result, err := h.events.List(r.Context(), page, perPage)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, result.Events, newMeta(result.Total, result.Page, result.PerPage))
}
