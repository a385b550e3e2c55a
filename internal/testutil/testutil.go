// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package testutil provides shared test helpers for the deptdocs project.
package testutil

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/olegiv/deptdocs/internal/model"
	"github.com/olegiv/deptdocs/internal/store"
)

// TestLogger creates a silent test logger that only outputs warnings and errors.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

// TestLoggerSilent creates a completely silent test logger (error level only).
func TestLoggerSilent() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// TestDB creates a temporary test database with migrations applied.
// It is closed when the test ends.
func TestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := store.NewDB(filepath.Join(t.TempDir(), "deptdocs-test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := store.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

// ProvisionedDB returns a migrated database holding the protected
// departments and the bootstrap admin.
func ProvisionedDB(t *testing.T) (*sql.DB, store.ProvisionResult) {
	t.Helper()

	db := TestDB(t)
	res, err := store.Provision(context.Background(), db, store.DefaultProvisionOptions())
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	return db, res
}

// LoadMember loads a user and its profile by username.
func LoadMember(t *testing.T, db *sql.DB, username string) model.Member {
	t.Helper()

	ctx := context.Background()
	q := store.New(db)
	u, err := q.GetUserByUsername(ctx, username)
	if err != nil {
		t.Fatalf("GetUserByUsername(%q): %v", username, err)
	}
	p, err := q.LoadProfile(ctx, u.ID)
	if err != nil {
		t.Fatalf("LoadProfile(%q): %v", username, err)
	}
	return model.Member{User: u, Profile: p}
}

// AdminActor returns the actor of the bootstrap admin.
func AdminActor(t *testing.T, db *sql.DB) model.Actor {
	t.Helper()
	m := LoadMember(t, db, store.DefaultAdminUsername)
	return model.ActorFor(m.User, m.Profile)
}

// CreateDepartment inserts a regular department.
func CreateDepartment(t *testing.T, db *sql.DB, name string) model.Department {
	t.Helper()

	d, err := store.New(db).CreateDepartment(context.Background(), store.CreateDepartmentParams{Name: name})
	if err != nil {
		t.Fatalf("CreateDepartment(%q): %v", name, err)
	}
	return d
}
