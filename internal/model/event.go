// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"time"
)

// Event levels
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// Event categories
const (
	EventCategoryAuth       = "auth"
	EventCategoryUser       = "user"
	EventCategoryDepartment = "department"
	EventCategoryDocument   = "document"
	EventCategorySystem     = "system"
)

// Event represents an audit log entry.
type Event struct {
	ID        int64         `json:"id"`
	Level     string        `json:"level"`
	Category  string        `json:"category"`
	Message   string        `json:"message"`
	UserID    sql.NullInt64 `json:"-"`
	Metadata  string        `json:"metadata"` // JSON string
	IPAddress string        `json:"ip_address"`
	CreatedAt time.Time     `json:"created_at"`
}
