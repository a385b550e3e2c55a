// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service implements the portal's use cases. Each operation asks the
// access gate first, applies the membership and upload rules, persists the
// result in one transaction and records an audit event.
package service

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/olegiv/deptdocs/internal/metrics"
	"github.com/olegiv/deptdocs/internal/model"
	"github.com/olegiv/deptdocs/internal/store"
)

// notFound maps sql.ErrNoRows to model.ErrNotFound.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", model.ErrNotFound, what)
	}
	return fmt.Errorf("loading %s: %w", what, err)
}

// conflict maps a unique constraint failure to model.ErrConflict.
func conflict(err error, msg string) error {
	if store.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %s", model.ErrConflict, msg)
	}
	return err
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

// requireText trims s and records an error when it is empty or longer
// than limit runes.
func requireText(fe model.FieldErrors, field, s string, limit int) string {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		fe.Add(field, "is required")
	case utf8.RuneCountInString(s) > limit:
		fe.Add(field, fmt.Sprintf("must be at most %d characters", limit))
	}
	return s
}

func userRef(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

// requireAdmin rejects actors without the admin role.
func requireAdmin(m *metrics.Metrics, actor model.Actor) error {
	if !actor.IsAdmin {
		m.AccessDenied("not_admin")
		return fmt.Errorf("%w: administrator role required", model.ErrPermissionDenied)
	}
	return nil
}
