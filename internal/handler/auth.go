// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/deptdocs/internal/middleware"
	"github.com/olegiv/deptdocs/internal/model"
	"github.com/olegiv/deptdocs/internal/service"
	"github.com/olegiv/deptdocs/internal/session"
)

// AuthHandler handles login and logout.
type AuthHandler struct {
	sm              *scs.SessionManager
	auth            *service.AuthService
	events          *service.EventService
	loginProtection *middleware.LoginProtection
}

// NewAuthHandler creates a new AuthHandler. lp may be nil.
func NewAuthHandler(sm *scs.SessionManager, auth *service.AuthService, events *service.EventService, lp *middleware.LoginProtection) *AuthHandler {
	return &AuthHandler{
		sm:              sm,
		auth:            auth,
		events:          events,
		loginProtection: lp,
	}
}

// Credentials is the login request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in Credentials
	if !decodeJSON(w, r, &in) {
		return
	}
	if in.Username == "" || in.Password == "" {
		middleware.WriteAPIError(w, http.StatusUnprocessableEntity, "validation_error", "Validation failed", map[string]string{
			"username": "username and password are required",
		})
		return
	}

	clientIP := middleware.ClientIP(r)

	if h.loginProtection != nil {
		if locked, remaining := h.loginProtection.IsAccountLocked(in.Username); locked {
			_ = h.events.LogAuthEvent(r.Context(), model.EventLevelWarning, "Login attempt on locked account", nil, clientIP, map[string]any{"username": in.Username})
			writeLocked(w, remaining)
			return
		}
	}

	member, err := h.auth.Authenticate(r.Context(), in.Username, in.Password, clientIP)
	if errors.Is(err, model.ErrUnauthenticated) {
		h.rejectLogin(w, r, in.Username, clientIP)
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if h.loginProtection != nil {
		h.loginProtection.RecordSuccessfulLogin(in.Username)
	}

	if err := session.Login(r.Context(), h.sm, member.User.ID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	slog.Info("user logged in", "user_id", member.User.ID, "username", member.User.Username)
	WriteSuccess(w, member, nil)
}

// rejectLogin counts a failed attempt and answers 401, or 429 once the
// account is locked.
func (h *AuthHandler) rejectLogin(w http.ResponseWriter, r *http.Request, username, clientIP string) {
	var details map[string]string
	if h.loginProtection != nil {
		if locked, lockDuration := h.loginProtection.RecordFailedAttempt(username); locked {
			_ = h.events.LogAuthEvent(r.Context(), model.EventLevelWarning, "Account locked due to failed attempts", nil, clientIP, map[string]any{
				"username": username,
				"duration": lockDuration.String(),
			})
			writeLocked(w, lockDuration)
			return
		}
		if remaining := h.loginProtection.GetRemainingAttempts(username); remaining <= 3 && remaining > 0 {
			details = map[string]string{"remaining_attempts": strconv.Itoa(remaining)}
		}
	}
	middleware.WriteAPIError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password", details)
}

func writeLocked(w http.ResponseWriter, d time.Duration) {
	seconds := int(math.Ceil(d.Seconds()))
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	middleware.WriteAPIError(w, http.StatusTooManyRequests, "account_locked",
		"Too many failed login attempts. Try again later.",
		map[string]string{"retry_after_seconds": strconv.Itoa(seconds)})
}

// Logout handles POST /logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := session.UserID(r.Context(), h.sm)
	if userID > 0 {
		_ = h.events.LogAuthEvent(r.Context(), model.EventLevelInfo, "User logged out", &userID, middleware.ClientIP(r), nil)
	}

	if err := session.Logout(r.Context(), h.sm); err != nil {
		slog.Error("session destroy error", "error", err)
	}

	slog.Info("user logged out", "user_id", userID)
	w.WriteHeader(http.StatusNoContent)
}
