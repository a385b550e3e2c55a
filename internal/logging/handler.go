// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logging provides a slog handler that mirrors WARN and ERROR
// records into the audit event log.
package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/olegiv/deptdocs/internal/model"
	"github.com/olegiv/deptdocs/internal/store"
)

// Attribute keys understood by the handler.
const (
	// KeyCategory sets the event category explicitly.
	KeyCategory = "category"
	// KeyUserID links the event to a user when it holds an integer.
	KeyUserID = "user_id"
	// KeyRecorded marks records whose event was already written by the
	// caller; they are logged but not mirrored again.
	KeyRecorded = "event_recorded"
)

// Recorded is the attribute callers add after writing the event themselves.
var Recorded = slog.Bool(KeyRecorded, true)

// EventLogHandler wraps another handler and also writes records at or above
// its level to the events table.
type EventLogHandler struct {
	inner   slog.Handler
	queries *store.Queries
	level   slog.Level
	attrs   []slog.Attr
}

// NewEventLogHandler mirrors WARN and above.
func NewEventLogHandler(inner slog.Handler, db *sql.DB) *EventLogHandler {
	return NewEventLogHandlerWithLevel(inner, db, slog.LevelWarn)
}

// NewEventLogHandlerWithLevel mirrors records at or above level.
func NewEventLogHandlerWithLevel(inner slog.Handler, db *sql.DB, level slog.Level) *EventLogHandler {
	return &EventLogHandler{
		inner:   inner,
		queries: store.New(db),
		level:   level,
	}
}

// Enabled implements slog.Handler.
func (h *EventLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *EventLogHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}
	if r.Level >= h.level {
		h.writeEvent(r)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *EventLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &EventLogHandler{
		inner:   h.inner.WithAttrs(attrs),
		queries: h.queries,
		level:   h.level,
		attrs:   merged,
	}
}

// WithGroup implements slog.Handler.
func (h *EventLogHandler) WithGroup(name string) slog.Handler {
	return &EventLogHandler{
		inner:   h.inner.WithGroup(name),
		queries: h.queries,
		level:   h.level,
		attrs:   h.attrs,
	}
}

func (h *EventLogHandler) writeEvent(r slog.Record) {
	var (
		category string
		userID   sql.NullInt64
		skip     bool
	)
	metadata := make(map[string]string)

	visit := func(a slog.Attr) bool {
		switch a.Key {
		case KeyRecorded:
			skip = a.Value.Kind() == slog.KindBool && a.Value.Bool()
		case KeyCategory:
			category = a.Value.String()
		case KeyUserID:
			if a.Value.Kind() == slog.KindInt64 {
				userID = sql.NullInt64{Int64: a.Value.Int64(), Valid: true}
			}
			metadata[a.Key] = a.Value.String()
		default:
			metadata[a.Key] = a.Value.String()
		}
		return true
	}
	for _, a := range h.attrs {
		visit(a)
	}
	r.Attrs(visit)

	if skip {
		return
	}
	if category == "" {
		category = inferCategory(r.Message)
	}

	encoded := "{}"
	if len(metadata) > 0 {
		if b, err := json.Marshal(metadata); err == nil {
			encoded = string(b)
		}
	}

	// The request context may already be cancelled; the event should still land.
	_ = h.queries.CreateEvent(context.Background(), store.CreateEventParams{
		Level:     eventLevel(r.Level),
		Category:  category,
		Message:   r.Message,
		UserID:    userID,
		Metadata:  encoded,
		CreatedAt: r.Time,
	})
}

func eventLevel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return model.EventLevelError
	case level >= slog.LevelWarn:
		return model.EventLevelWarning
	default:
		return model.EventLevelInfo
	}
}

// inferCategory guesses a category from the message when none was given.
func inferCategory(msg string) string {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "login") || strings.Contains(msg, "logout") ||
		strings.Contains(msg, "auth") || strings.Contains(msg, "session"):
		return model.EventCategoryAuth
	case strings.Contains(msg, "document") || strings.Contains(msg, "upload") ||
		strings.Contains(msg, "download") || strings.Contains(msg, "blob"):
		return model.EventCategoryDocument
	case strings.Contains(msg, "department") || strings.Contains(msg, "membership"):
		return model.EventCategoryDepartment
	case strings.Contains(msg, "user") || strings.Contains(msg, "admin"):
		return model.EventCategoryUser
	default:
		return model.EventCategorySystem
	}
}
