// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session wires scs session management to the SQLite database.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
)

// KeyUserID is the session key holding the authenticated user's ID.
const KeyUserID = "user_id"

const secureCookieName = "__Host-deptdocs"

// Options configure the session manager.
type Options struct {
	Lifetime    time.Duration
	IdleTimeout time.Duration
	Secure      bool
}

// New creates a session manager backed by the sessions table.
func New(db *sql.DB, opts Options) *scs.SessionManager {
	sm := scs.New()
	sm.Store = sqlite3store.New(db)

	sm.Lifetime = opts.Lifetime
	if sm.Lifetime <= 0 {
		sm.Lifetime = 24 * time.Hour
	}
	sm.IdleTimeout = opts.IdleTimeout
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Path = "/"
	sm.Cookie.Secure = opts.Secure
	if opts.Secure {
		// The __Host- prefix requires Secure, Path=/ and no Domain.
		sm.Cookie.Name = secureCookieName
	}
	return sm
}

// Login renews the session token and stores userID, preventing fixation.
func Login(ctx context.Context, sm *scs.SessionManager, userID int64) error {
	if err := sm.RenewToken(ctx); err != nil {
		return fmt.Errorf("renewing session token: %w", err)
	}
	sm.Put(ctx, KeyUserID, userID)
	return nil
}

// Logout destroys the session.
func Logout(ctx context.Context, sm *scs.SessionManager) error {
	return sm.Destroy(ctx)
}

// UserID returns the authenticated user's ID, or 0.
func UserID(ctx context.Context, sm *scs.SessionManager) int64 {
	return sm.GetInt64(ctx, KeyUserID)
}
