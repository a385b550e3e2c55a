// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/olegiv/deptdocs/internal/auth"
	"github.com/olegiv/deptdocs/internal/membership"
	"github.com/olegiv/deptdocs/internal/model"
)

// Default bootstrap admin credentials.
const (
	DefaultAdminUsername = "admin"
	DefaultAdminPassword = "adminpassword"
)

// ProvisionOptions controls first-run provisioning.
type ProvisionOptions struct {
	AdminUsername       string
	AdminPassword       string
	CommonName          string
	AdminDepartmentName string
}

// DefaultProvisionOptions returns the stock names and credentials.
func DefaultProvisionOptions() ProvisionOptions {
	return ProvisionOptions{
		AdminUsername:       DefaultAdminUsername,
		AdminPassword:       DefaultAdminPassword,
		CommonName:          model.CommonDepartmentName,
		AdminDepartmentName: model.AdminDepartmentName,
	}
}

func (o *ProvisionOptions) applyDefaults() {
	d := DefaultProvisionOptions()
	if o.AdminUsername == "" {
		o.AdminUsername = d.AdminUsername
	}
	if o.AdminPassword == "" {
		o.AdminPassword = d.AdminPassword
	}
	if o.CommonName == "" {
		o.CommonName = d.CommonName
	}
	if o.AdminDepartmentName == "" {
		o.AdminDepartmentName = d.AdminDepartmentName
	}
}

// ProvisionResult reports what provisioning did.
type ProvisionResult struct {
	Departments  membership.Protected
	CreatedAdmin bool
	Repaired     int
}

// Provision makes sure the protected departments and at least one admin
// exist, and that every profile holds the departments its role requires.
// It is idempotent and runs at every startup.
func Provision(ctx context.Context, db *sql.DB, opts ProvisionOptions) (ProvisionResult, error) {
	opts.applyDefaults()

	var result ProvisionResult
	err := RunInTx(ctx, db, func(q *Queries) error {
		common, err := ensureDepartment(ctx, q, opts.CommonName, q.GetCommonDepartment, q.FlagCommonDepartment,
			CreateDepartmentParams{Name: opts.CommonName, Description: "All users", IsCommon: true})
		if err != nil {
			return fmt.Errorf("common department: %w", err)
		}
		admin, err := ensureDepartment(ctx, q, opts.AdminDepartmentName, q.GetAdminDepartment, q.FlagAdminDepartment,
			CreateDepartmentParams{Name: opts.AdminDepartmentName, Description: "Administrators", IsAdminDepartment: true})
		if err != nil {
			return fmt.Errorf("admin department: %w", err)
		}
		result.Departments = membership.Protected{Common: common, Admin: admin}

		admins, err := q.CountAdmins(ctx)
		if err != nil {
			return fmt.Errorf("counting admins: %w", err)
		}
		if admins == 0 {
			if err := bootstrapAdmin(ctx, q, opts); err != nil {
				return fmt.Errorf("bootstrap admin: %w", err)
			}
			result.CreatedAdmin = true
		}

		result.Repaired, err = repairMemberships(ctx, q, result.Departments)
		return err
	})
	if err != nil {
		return ProvisionResult{}, err
	}

	if result.Repaired > 0 {
		slog.Info("repaired department memberships", "changes", result.Repaired)
	}
	return result, nil
}

// ensureDepartment finds a protected department by its flag, flags an
// existing row with the expected name, or creates it.
func ensureDepartment(
	ctx context.Context,
	q *Queries,
	name string,
	byFlag func(context.Context) (model.Department, error),
	flag func(context.Context, int64) error,
	create CreateDepartmentParams,
) (model.Department, error) {
	d, err := byFlag(ctx)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return d, err
	}

	d, err = q.GetDepartmentByName(ctx, name)
	switch {
	case err == nil:
		if err := flag(ctx, d.ID); err != nil {
			return d, err
		}
		slog.Info("flagged existing department", "name", name, "id", d.ID)
		return byFlag(ctx)
	case !errors.Is(err, sql.ErrNoRows):
		return d, err
	}

	d, err = q.CreateDepartment(ctx, create)
	if err != nil {
		return d, err
	}
	slog.Info("created department", "name", d.Name, "id", d.ID)
	return d, nil
}

func bootstrapAdmin(ctx context.Context, q *Queries, opts ProvisionOptions) error {
	user, err := q.GetUserByUsername(ctx, opts.AdminUsername)
	if errors.Is(err, sql.ErrNoRows) {
		hash, herr := auth.HashPassword(opts.AdminPassword)
		if herr != nil {
			return fmt.Errorf("hashing password: %w", herr)
		}
		user, err = q.CreateUser(ctx, CreateUserParams{
			Username:     opts.AdminUsername,
			PasswordHash: hash,
		})
		if err != nil {
			return fmt.Errorf("creating user: %w", err)
		}
		slog.Warn("created bootstrap admin user, change its password", "username", user.Username)
	} else if err != nil {
		return err
	}

	profile, err := q.GetProfileByUserID(ctx, user.ID)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = q.CreateProfile(ctx, CreateProfileParams{UserID: user.ID, IsAdmin: true})
		return err
	}
	if err != nil {
		return err
	}
	return q.UpdateProfile(ctx, UpdateProfileParams{ID: profile.ID, Position: profile.Position, IsAdmin: true})
}

// LoadProtectedDepartments returns the common and admin departments.
func (q *Queries) LoadProtectedDepartments(ctx context.Context) (membership.Protected, error) {
	common, err := q.GetCommonDepartment(ctx)
	if err != nil {
		return membership.Protected{}, fmt.Errorf("common department: %w", err)
	}
	admin, err := q.GetAdminDepartment(ctx)
	if err != nil {
		return membership.Protected{}, fmt.Errorf("admin department: %w", err)
	}
	return membership.Protected{Common: common, Admin: admin}, nil
}

// RepairMemberships gives every profile the common department, every admin
// the admin department, and removes the admin department from regular
// users. It returns the number of memberships changed.
func RepairMemberships(ctx context.Context, db *sql.DB) (int, error) {
	var changed int
	err := RunInTx(ctx, db, func(q *Queries) error {
		depts, err := q.LoadProtectedDepartments(ctx)
		if err != nil {
			return err
		}
		changed, err = repairMemberships(ctx, q, depts)
		return err
	})
	return changed, err
}

func repairMemberships(ctx context.Context, q *Queries, depts membership.Protected) (int, error) {
	profiles, err := q.ListProfiles(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing profiles: %w", err)
	}

	changed := 0
	for _, p := range profiles {
		for _, d := range membership.Missing(p, depts) {
			if err := q.AddProfileDepartment(ctx, p.ID, d.ID); err != nil {
				return changed, fmt.Errorf("adding department %d to profile %d: %w", d.ID, p.ID, err)
			}
			changed++
		}
		if !p.IsAdmin && p.HasDepartment(depts.Admin.ID) {
			if err := q.RemoveProfileDepartment(ctx, p.ID, depts.Admin.ID); err != nil {
				return changed, fmt.Errorf("removing admin department from profile %d: %w", p.ID, err)
			}
			changed++
		}
	}
	return changed, nil
}
