// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/deptdocs/internal/model"
	"github.com/olegiv/deptdocs/internal/store"
)

// EventService writes and reads the audit log.
type EventService struct {
	queries *store.Queries
	logger  *slog.Logger
}

// NewEventService creates a new EventService.
func NewEventService(db *sql.DB, logger *slog.Logger) *EventService {
	return &EventService{
		queries: store.New(db),
		logger:  loggerOrDefault(logger),
	}
}

// LogEvent creates a new event log entry.
func (s *EventService) LogEvent(ctx context.Context, level, category, message string, userID *int64, ipAddress string, metadata map[string]any) error {
	var nullUserID sql.NullInt64
	if userID != nil {
		nullUserID = sql.NullInt64{Int64: *userID, Valid: true}
	}

	metadataJSON := "{}"
	if len(metadata) > 0 {
		if b, err := json.Marshal(metadata); err == nil {
			metadataJSON = string(b)
		}
	}

	err := s.queries.CreateEvent(ctx, store.CreateEventParams{
		Level:     level,
		Category:  category,
		Message:   message,
		UserID:    nullUserID,
		Metadata:  metadataJSON,
		IPAddress: ipAddress,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error("failed to log event", "error", err, "message", message)
		return err
	}
	return nil
}

// Record logs an info event performed by actor.
func (s *EventService) Record(ctx context.Context, actor model.Actor, category, message string, metadata map[string]any) {
	_ = s.LogEvent(ctx, model.EventLevelInfo, category, message, userRef(actor.UserID), actor.IP, metadata)
}

// RecordWarning logs a warning event performed by actor.
func (s *EventService) RecordWarning(ctx context.Context, actor model.Actor, category, message string, metadata map[string]any) {
	_ = s.LogEvent(ctx, model.EventLevelWarning, category, message, userRef(actor.UserID), actor.IP, metadata)
}

// LogAuthEvent logs an authentication-related event.
func (s *EventService) LogAuthEvent(ctx context.Context, level, message string, userID *int64, ipAddress string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategoryAuth, message, userID, ipAddress, metadata)
}

// LogSystemEvent logs a system-related event.
func (s *EventService) LogSystemEvent(ctx context.Context, level, message string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategorySystem, message, nil, "", metadata)
}

// EventPage is one page of the audit log.
type EventPage struct {
	Events  []model.Event `json:"events"`
	Total   int64         `json:"total"`
	Page    int64         `json:"page"`
	PerPage int64         `json:"per_page"`
}

// List returns events newest first. page starts at 1.
func (s *EventService) List(ctx context.Context, page, perPage int64) (EventPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	events, err := s.queries.ListEvents(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return EventPage{}, fmt.Errorf("listing events: %w", err)
	}
	total, err := s.queries.CountEvents(ctx)
	if err != nil {
		return EventPage{}, fmt.Errorf("counting events: %w", err)
	}
	if events == nil {
		events = []model.Event{}
	}
	return EventPage{Events: events, Total: total, Page: page, PerPage: perPage}, nil
}

// DeleteOldEvents removes events older than the given duration.
func (s *EventService) DeleteOldEvents(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	n, err := s.queries.DeleteEventsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning events: %w", err)
	}
	return n, nil
}
