// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/deptdocs/internal/auth"
	"github.com/olegiv/deptdocs/internal/model"
)

func TestProvisionFreshDatabase(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	res, err := Provision(ctx, db, ProvisionOptions{})
	require.NoError(t, err)
	assert.True(t, res.CreatedAdmin)
	assert.Equal(t, model.CommonDepartmentName, res.Departments.Common.Name)
	assert.True(t, res.Departments.Common.IsCommon)
	assert.Equal(t, model.AdminDepartmentName, res.Departments.Admin.Name)
	assert.True(t, res.Departments.Admin.IsAdminDepartment)

	q := New(db)
	admin, err := q.GetUserByUsername(ctx, DefaultAdminUsername)
	require.NoError(t, err)
	ok, err := auth.CheckPassword(DefaultAdminPassword, admin.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	p, err := q.LoadProfile(ctx, admin.ID)
	require.NoError(t, err)
	assert.True(t, p.IsAdmin)
	assert.True(t, p.HasDepartment(res.Departments.Common.ID))
	assert.True(t, p.HasDepartment(res.Departments.Admin.ID))
}

func TestProvisionIsIdempotent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	first, err := Provision(ctx, db, ProvisionOptions{})
	require.NoError(t, err)
	second, err := Provision(ctx, db, ProvisionOptions{})
	require.NoError(t, err)

	assert.False(t, second.CreatedAdmin)
	assert.Zero(t, second.Repaired)
	assert.Equal(t, first.Departments.Common.ID, second.Departments.Common.ID)
	assert.Equal(t, first.Departments.Admin.ID, second.Departments.Admin.ID)

	q := New(db)
	n, err := q.CountDepartments(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	n, err = q.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestProvisionFlagsExistingAdminDepartment(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	q := New(db)

	existing, err := q.CreateDepartment(ctx, CreateDepartmentParams{Name: model.AdminDepartmentName})
	require.NoError(t, err)
	require.False(t, existing.IsAdminDepartment)

	res, err := Provision(ctx, db, ProvisionOptions{})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, res.Departments.Admin.ID)
	assert.True(t, res.Departments.Admin.IsAdminDepartment)
}

func TestProvisionPromotesExistingUser(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	q := New(db)

	u, _ := createMember(t, q, "root", false)

	res, err := Provision(ctx, db, ProvisionOptions{AdminUsername: "root", AdminPassword: "unused-password"})
	require.NoError(t, err)
	assert.True(t, res.CreatedAdmin)

	p, err := q.LoadProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, p.IsAdmin)
	assert.True(t, p.HasDepartment(res.Departments.Admin.ID))

	n, err := q.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRepairMemberships(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	res, err := Provision(ctx, db, ProvisionOptions{})
	require.NoError(t, err)
	common, adminDept := res.Departments.Common, res.Departments.Admin

	q := New(db)
	sales, err := q.CreateDepartment(ctx, CreateDepartmentParams{Name: "Sales"})
	require.NoError(t, err)

	plain, _ := createMember(t, q, "plain", false, sales)
	intruder, _ := createMember(t, q, "intruder", false, common, adminDept)
	promoted, _ := createMember(t, q, "promoted", true, common)

	changed, err := RepairMemberships(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 3, changed)

	p, err := q.LoadProfile(ctx, plain.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{common.ID, sales.ID}, p.DepartmentIDs())

	p, err = q.LoadProfile(ctx, intruder.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{common.ID}, p.DepartmentIDs())

	p, err = q.LoadProfile(ctx, promoted.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{common.ID, adminDept.ID}, p.DepartmentIDs())

	changed, err = RepairMemberships(ctx, db)
	require.NoError(t, err)
	assert.Zero(t, changed)
}
