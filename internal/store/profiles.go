// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/olegiv/deptdocs/internal/model"
)

const profileColumns = `id, user_id, position, is_admin, created_at, updated_at`

func scanProfile(s scanner) (model.Profile, error) {
	var p model.Profile
	err := s.Scan(&p.ID, &p.UserID, &p.Position, &p.IsAdmin, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// CreateProfileParams holds the columns of a new profile.
type CreateProfileParams struct {
	UserID    int64
	Position  string
	IsAdmin   bool
	CreatedAt time.Time
}

// CreateProfile inserts the profile of a user.
func (q *Queries) CreateProfile(ctx context.Context, arg CreateProfileParams) (model.Profile, error) {
	ts := orNow(arg.CreatedAt)
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO user_profiles (user_id, position, is_admin, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		arg.UserID, arg.Position, arg.IsAdmin, ts, ts)
	if err != nil {
		return model.Profile{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Profile{}, err
	}
	row := q.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE id = ?`, id)
	return scanProfile(row)
}

// GetProfileByUserID returns a profile without its departments.
func (q *Queries) GetProfileByUserID(ctx context.Context, userID int64) (model.Profile, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE user_id = ?`, userID)
	return scanProfile(row)
}

// LoadProfile returns a profile with its departments.
func (q *Queries) LoadProfile(ctx context.Context, userID int64) (model.Profile, error) {
	p, err := q.GetProfileByUserID(ctx, userID)
	if err != nil {
		return p, err
	}
	p.Departments, err = q.ListProfileDepartments(ctx, p.ID)
	if err != nil {
		return p, fmt.Errorf("loading departments: %w", err)
	}
	return p, nil
}

// UpdateProfileParams holds the editable profile columns.
type UpdateProfileParams struct {
	ID       int64
	Position string
	IsAdmin  bool
}

// UpdateProfile updates position and role.
func (q *Queries) UpdateProfile(ctx context.Context, arg UpdateProfileParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE user_profiles SET position = ?, is_admin = ?, updated_at = ? WHERE id = ?`,
		arg.Position, arg.IsAdmin, now(), arg.ID)
	return err
}

// CountAdmins returns the number of admin profiles.
func (q *Queries) CountAdmins(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_profiles WHERE is_admin = 1`).Scan(&n)
	return n, err
}

// ListProfiles returns every profile with its departments.
func (q *Queries) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+profileColumns+` FROM user_profiles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var profiles []model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	byProfile, err := q.listAllProfileDepartments(ctx)
	if err != nil {
		return nil, err
	}
	for i := range profiles {
		profiles[i].Departments = byProfile[profiles[i].ID]
	}
	return profiles, nil
}

// ListMembers returns every user joined with its profile, ordered by username.
func (q *Queries) ListMembers(ctx context.Context) ([]model.Member, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT u.id, u.username, u.first_name, u.last_name, u.email, u.password_hash,
			u.created_at, u.updated_at, u.last_login_at,
			p.id, p.user_id, p.position, p.is_admin, p.created_at, p.updated_at
		FROM users u
		JOIN user_profiles p ON p.user_id = u.id
		ORDER BY u.username`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var members []model.Member
	for rows.Next() {
		var m model.Member
		if err := rows.Scan(
			&m.User.ID, &m.User.Username, &m.User.FirstName, &m.User.LastName, &m.User.Email, &m.User.PasswordHash,
			&m.User.CreatedAt, &m.User.UpdatedAt, &m.User.LastLoginAt,
			&m.Profile.ID, &m.Profile.UserID, &m.Profile.Position, &m.Profile.IsAdmin,
			&m.Profile.CreatedAt, &m.Profile.UpdatedAt,
		); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	byProfile, err := q.listAllProfileDepartments(ctx)
	if err != nil {
		return nil, err
	}
	for i := range members {
		members[i].Profile.Departments = byProfile[members[i].Profile.ID]
	}
	return members, nil
}

// ListProfileDepartments returns the departments of one profile by name.
func (q *Queries) ListProfileDepartments(ctx context.Context, profileID int64) ([]model.Department, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+departmentColumnsD+`
		FROM departments d
		JOIN profile_departments pd ON pd.department_id = d.id
		WHERE pd.profile_id = ?
		ORDER BY d.is_common DESC, d.name`, profileID)
	if err != nil {
		return nil, err
	}
	return collectDepartments(rows)
}

func (q *Queries) listAllProfileDepartments(ctx context.Context) (map[int64][]model.Department, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT pd.profile_id, `+departmentColumnsD+`
		FROM profile_departments pd
		JOIN departments d ON d.id = pd.department_id
		ORDER BY pd.profile_id, d.is_common DESC, d.name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[int64][]model.Department)
	for rows.Next() {
		var profileID int64
		var d model.Department
		if err := rows.Scan(&profileID, &d.ID, &d.Name, &d.Description, &d.IsCommon, &d.IsAdminDepartment,
			&d.CreatedBy, &d.UpdatedBy, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out[profileID] = append(out[profileID], d)
	}
	return out, rows.Err()
}

// AddProfileDepartment adds a membership; existing memberships are kept.
func (q *Queries) AddProfileDepartment(ctx context.Context, profileID, departmentID int64) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO profile_departments (profile_id, department_id) VALUES (?, ?)`,
		profileID, departmentID)
	return err
}

// RemoveProfileDepartment removes one membership.
func (q *Queries) RemoveProfileDepartment(ctx context.Context, profileID, departmentID int64) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM profile_departments WHERE profile_id = ? AND department_id = ?`,
		profileID, departmentID)
	return err
}

// ClearProfileDepartments removes every membership of a profile.
func (q *Queries) ClearProfileDepartments(ctx context.Context, profileID int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM profile_departments WHERE profile_id = ?`, profileID)
	return err
}

// RemoveDepartmentFromAllProfiles drops a department from every profile and
// returns the number of memberships removed.
func (q *Queries) RemoveDepartmentFromAllProfiles(ctx context.Context, departmentID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM profile_departments WHERE department_id = ?`, departmentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReplaceProfileDepartments clears the memberships of a profile and inserts
// departments. Run it inside a transaction.
func (q *Queries) ReplaceProfileDepartments(ctx context.Context, profileID int64, departments []model.Department) error {
	if err := q.ClearProfileDepartments(ctx, profileID); err != nil {
		return fmt.Errorf("clearing departments: %w", err)
	}
	for _, d := range departments {
		if err := q.AddProfileDepartment(ctx, profileID, d.ID); err != nil {
			return fmt.Errorf("adding department %d: %w", d.ID, err)
		}
	}
	return nil
}
