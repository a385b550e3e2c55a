// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler provides the JSON HTTP handlers of the portal.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/deptdocs/internal/middleware"
	"github.com/olegiv/deptdocs/internal/model"
)

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 1 << 20

// Response is the standard API response wrapper.
type Response struct {
	Data any   `json:"data,omitempty"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta contains pagination metadata.
type Meta struct {
	Total   int64 `json:"total"`
	Page    int64 `json:"page"`
	PerPage int64 `json:"per_page"`
	Pages   int64 `json:"pages"`
}

// newMeta computes the page count for a listing.
func newMeta(total, page, perPage int64) *Meta {
	pages := int64(1)
	if perPage > 0 && total > 0 {
		pages = (total + perPage - 1) / perPage
	}
	return &Meta{Total: total, Page: page, PerPage: perPage, Pages: pages}
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a 200 response wrapping data.
func WriteSuccess(w http.ResponseWriter, data any, meta *Meta) {
	WriteJSON(w, http.StatusOK, Response{Data: data, Meta: meta})
}

// WriteCreated writes a 201 Created response wrapping data.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, Response{Data: data})
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string) {
	middleware.WriteAPIError(w, http.StatusBadRequest, "bad_request", message, nil)
}

// writeServiceError maps a service error onto the JSON error body.
// Domain error kinds carry their own status; anything else is logged and
// reported as a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var fields model.FieldErrors
	if errors.As(err, &fields) {
		middleware.WriteAPIError(w, http.StatusUnprocessableEntity, model.ErrValidationFailed.Code(), "Validation failed", fields)
		return
	}

	if kind, ok := model.Kind(err); ok {
		middleware.WriteAPIError(w, kind.HTTPStatus(), kind.Code(), err.Error(), nil)
		return
	}

	slog.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	middleware.WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
}

// ParseIDParam parses the "id" URL parameter as a positive int64.
func ParseIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// requireID parses the "id" URL parameter, writing a 400 on failure.
func requireID(w http.ResponseWriter, r *http.Request, entity string) (int64, bool) {
	id, err := ParseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid "+entity+" ID")
		return 0, false
	}
	return id, true
}

// decodeJSON reads a JSON body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			WriteBadRequest(w, "Request body is empty")
			return false
		}
		WriteBadRequest(w, "Invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// requireActor returns the request's actor. The Auth and LoadUser
// middleware guarantee one; a missing actor is answered with a 401.
func requireActor(w http.ResponseWriter, r *http.Request) (model.Actor, bool) {
	actor, ok := middleware.GetActor(r)
	if !ok {
		middleware.WriteAPIError(w, http.StatusUnauthorized, "unauthenticated", "Authentication required", nil)
		return model.Actor{}, false
	}
	return actor, true
}

// queryInt64 reads a positive integer query parameter, or def.
func queryInt64(r *http.Request, key string, def int64) int64 {
	v, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	if err != nil || v < 1 {
		return def
	}
	return v
}
