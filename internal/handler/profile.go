// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/olegiv/deptdocs/internal/service"
)

// ProfileHandler handles the signed-in user's own profile.
type ProfileHandler struct {
	users *service.UserService
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(users *service.UserService) *ProfileHandler {
	return &ProfileHandler{users: users}
}

// Get handles GET /api/profile.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	detail, err := h.users.Get(r.Context(), actor.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, detail, nil)
}

// Update handles PUT /api/profile. A role change is subject to the
// last-administrator rule.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var in service.ProfileInput
	if !decodeJSON(w, r, &in) {
		return
	}

	detail, err := h.users.UpdateSelf(r.Context(), actor, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, detail, nil)
}
