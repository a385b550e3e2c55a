// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines the domain types shared across the portal:
// users and their profiles, departments, documents and audit events.
package model

import (
	"database/sql"
	"strings"
	"time"
)

// Role is the system role chosen on the user form.
type Role string

// Roles selectable for a user.
const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents an account that can sign in to the portal.
type User struct {
	ID           int64        `json:"id"`
	Username     string       `json:"username"`
	FirstName    string       `json:"first_name"`
	LastName     string       `json:"last_name"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"` // Never expose in JSON
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	LastLoginAt  sql.NullTime `json:"-"`
}

// DisplayName returns "First Last", falling back to the username.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// Profile extends a User with department membership, position and role.
// Every user has exactly one profile.
type Profile struct {
	ID          int64        `json:"id"`
	UserID      int64        `json:"user_id"`
	Position    string       `json:"position"`
	IsAdmin     bool         `json:"is_admin"`
	Departments []Department `json:"departments"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Role returns the profile's role derived from IsAdmin.
func (p *Profile) Role() Role {
	if p.IsAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// DepartmentIDs returns the ids of all departments the profile belongs to.
func (p *Profile) DepartmentIDs() []int64 {
	ids := make([]int64, 0, len(p.Departments))
	for _, d := range p.Departments {
		ids = append(ids, d.ID)
	}
	return ids
}

// HasDepartment reports whether the profile is a member of the department.
func (p *Profile) HasDepartment(id int64) bool {
	for _, d := range p.Departments {
		if d.ID == id {
			return true
		}
	}
	return false
}

// Member is a user joined with its profile, as listed on the admin screens.
type Member struct {
	User    User    `json:"user"`
	Profile Profile `json:"profile"`
}

// Actor is the authenticated identity performing an action.
type Actor struct {
	UserID   int64
	Username string
	IsAdmin  bool
	IP       string // client address, recorded on audit events
}

// ActorFor builds the acting identity for a user and its profile.
func ActorFor(u User, p Profile) Actor {
	return Actor{UserID: u.ID, Username: u.Username, IsAdmin: p.IsAdmin}
}
