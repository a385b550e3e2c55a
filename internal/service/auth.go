// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/olegiv/deptdocs/internal/auth"
	"github.com/olegiv/deptdocs/internal/metrics"
	"github.com/olegiv/deptdocs/internal/model"
	"github.com/olegiv/deptdocs/internal/store"
)

// errBadCredentials is returned for any failed login.
var errBadCredentials = fmt.Errorf("%w: invalid username or password", model.ErrUnauthenticated)

// AuthService verifies credentials.
type AuthService struct {
	queries *store.Queries
	events  *EventService
	metrics *metrics.Metrics
	logger  *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService creates an AuthService.
func NewAuthService(db *sql.DB, events *EventService, m *metrics.Metrics, logger *slog.Logger) *AuthService {
	return &AuthService{
		queries: store.New(db),
		events:  events,
		metrics: m,
		logger:  loggerOrDefault(logger),
	}
}

// burnHash spends the same work as a real check so unknown usernames
// are not revealed by response time.
func (s *AuthService) burnHash(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = auth.HashPassword("deptdocs-timing-equalizer")
	})
	_, _ = auth.CheckPassword(password, s.dummyHash)
}

// Authenticate checks username and password and returns the member.
// Outdated password hashes are upgraded on success.
func (s *AuthService) Authenticate(ctx context.Context, username, password, ip string) (model.Member, error) {
	username = strings.TrimSpace(username)

	u, err := s.queries.GetUserByUsername(ctx, username)
	if errors.Is(err, sql.ErrNoRows) {
		s.burnHash(password)
		s.failed(ctx, username, ip, nil, "unknown_user")
		return model.Member{}, errBadCredentials
	}
	if err != nil {
		return model.Member{}, fmt.Errorf("loading user: %w", err)
	}

	ok, err := auth.CheckPassword(password, u.PasswordHash)
	if err != nil {
		s.logger.Error("stored password hash is unreadable", "user_id", u.ID, "error", err)
	}
	if !ok {
		s.failed(ctx, username, ip, &u.ID, "bad_password")
		return model.Member{}, errBadCredentials
	}

	p, err := s.queries.LoadProfile(ctx, u.ID)
	if errors.Is(err, sql.ErrNoRows) {
		s.failed(ctx, username, ip, &u.ID, "no_profile")
		return model.Member{}, errBadCredentials
	}
	if err != nil {
		return model.Member{}, fmt.Errorf("loading profile: %w", err)
	}

	if auth.NeedsRehash(u.PasswordHash) {
		if hash, err := auth.HashPassword(password); err == nil {
			if err := s.queries.UpdateUserPassword(ctx, u.ID, hash); err != nil {
				s.logger.Warn("failed to upgrade password hash", "user_id", u.ID, "error", err)
			}
		}
	}
	if err := s.queries.UpdateUserLastLogin(ctx, u.ID); err != nil {
		s.logger.Warn("failed to record last login", "user_id", u.ID, "error", err)
	}

	s.metrics.LoginAttempt("success")
	_ = s.events.LogAuthEvent(ctx, model.EventLevelInfo, "User logged in", &u.ID, ip, map[string]any{
		"username": u.Username,
	})
	return model.Member{User: u, Profile: p}, nil
}

func (s *AuthService) failed(ctx context.Context, username, ip string, userID *int64, reason string) {
	s.metrics.LoginAttempt("failure")
	_ = s.events.LogAuthEvent(ctx, model.EventLevelWarning, "Login failed", userID, ip, map[string]any{
		"username": username,
		"reason":   reason,
	})
}
