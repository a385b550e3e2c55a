// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for authentication,
// authorization, and request context handling.
package middleware

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/deptdocs/internal/logging"
	"github.com/olegiv/deptdocs/internal/metrics"
	"github.com/olegiv/deptdocs/internal/model"
	"github.com/olegiv/deptdocs/internal/service"
	"github.com/olegiv/deptdocs/internal/session"
	"github.com/olegiv/deptdocs/internal/store"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// Context keys for request data.
const (
	ContextKeyMember ContextKey = "member"
)

// Auth creates middleware that requires an authenticated session.
func Auth(sm *scs.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if session.UserID(r.Context(), sm) == 0 {
				WriteAPIError(w, http.StatusUnauthorized, "unauthenticated", "Authentication required", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoadUser creates middleware that loads the session's user and profile
// into the request context. A session pointing at a deleted user is
// destroyed. Use after Auth.
func LoadUser(sm *scs.SessionManager, db *sql.DB) func(http.Handler) http.Handler {
	queries := store.New(db)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := session.UserID(r.Context(), sm)
			if userID == 0 {
				next.ServeHTTP(w, r)
				return
			}

			m, err := loadMember(r.Context(), queries, userID)
			if errors.Is(err, sql.ErrNoRows) {
				_ = sm.Destroy(r.Context())
				WriteAPIError(w, http.StatusUnauthorized, "unauthenticated", "Authentication required", nil)
				return
			}
			if err != nil {
				slog.Error("failed to load session user", "user_id", userID, "error", err)
				WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyMember, m)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func loadMember(ctx context.Context, q *store.Queries, userID int64) (model.Member, error) {
	u, err := q.GetUserByID(ctx, userID)
	if err != nil {
		return model.Member{}, err
	}
	p, err := q.LoadProfile(ctx, userID)
	if err != nil {
		return model.Member{}, err
	}
	return model.Member{User: u, Profile: p}, nil
}

// WithMember returns a copy of r carrying m as the current member.
func WithMember(r *http.Request, m model.Member) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), ContextKeyMember, m))
}

// GetMember retrieves the current member from the request context.
// Returns nil if no member is in context.
func GetMember(r *http.Request) *model.Member {
	m, ok := r.Context().Value(ContextKeyMember).(model.Member)
	if !ok {
		return nil
	}
	return &m
}

// GetActor returns the acting identity of the request, including the
// client address.
func GetActor(r *http.Request) (model.Actor, bool) {
	m := GetMember(r)
	if m == nil {
		return model.Actor{IP: getClientIP(r)}, false
	}
	actor := model.ActorFor(m.User, m.Profile)
	actor.IP = getClientIP(r)
	return actor, true
}

// GetUserID returns the current user's ID from context, or 0 if not found.
func GetUserID(r *http.Request) int64 {
	if m := GetMember(r); m != nil {
		return m.User.ID
	}
	return 0
}

// RequireAdmin creates middleware that requires the admin role. Denials
// are logged and, when events is not nil, written to the event log.
func RequireAdmin(events *service.EventService, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := GetActor(r)
			if !ok {
				WriteAPIError(w, http.StatusUnauthorized, "unauthenticated", "Authentication required", nil)
				return
			}

			if !actor.IsAdmin {
				m.AccessDenied("not_admin")
				attrs := []any{
					"status", http.StatusForbidden,
					"method", r.Method,
					"path", r.URL.Path,
					logging.KeyUserID, actor.UserID,
					"remote_addr", actor.IP,
				}
				if events != nil {
					events.RecordWarning(r.Context(), actor, model.EventCategoryAuth, "Access denied: administrator role required", map[string]any{
						"method": r.Method,
						"path":   r.URL.Path,
					})
					attrs = append(attrs, logging.Recorded)
				}
				slog.Warn("access denied", attrs...)

				WriteAPIError(w, http.StatusForbidden, "permission_denied", "Administrator role required", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
