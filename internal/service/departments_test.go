package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/deptdocs/internal/model"
)

func TestDepartmentCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.departments.Create(ctx, f.admin, DepartmentInput{Name: "  <b>Finance</b> ", Description: "Money"})
	require.NoError(t, err)
	assert.Equal(t, "Finance", d.Name)
	assert.Equal(t, "Money", d.Description)
	assert.False(t, d.IsProtected())

	_, err = f.departments.Create(ctx, f.admin, DepartmentInput{Name: "Finance"})
	assert.ErrorIs(t, err, model.ErrConflict)

	_, err = f.departments.Create(ctx, f.admin, DepartmentInput{Name: " "})
	assert.ErrorIs(t, err, model.ErrValidationFailed)

	_, err = f.departments.Create(ctx, f.admin, DepartmentInput{Name: strings.Repeat("x", 101)})
	assert.ErrorIs(t, err, model.ErrValidationFailed)

	assert.Contains(t, f.eventMessages(t), "Department created")
}

func TestDepartmentUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ops := f.department(t, "Ops")
	f.department(t, "Legal")

	d, err := f.departments.Update(ctx, f.admin, ops.ID, DepartmentInput{Name: "Operations", Description: "Runs things"})
	require.NoError(t, err)
	assert.Equal(t, "Operations", d.Name)

	_, err = f.departments.Update(ctx, f.admin, ops.ID, DepartmentInput{Name: "Legal"})
	assert.ErrorIs(t, err, model.ErrConflict)

	_, err = f.departments.Update(ctx, f.admin, 9999, DepartmentInput{Name: "Ghost"})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestProtectedDepartmentsAreImmutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, d := range []model.Department{f.protected.Common, f.protected.Admin} {
		_, err := f.departments.Update(ctx, f.admin, d.ID, DepartmentInput{Name: "Renamed"})
		assert.ErrorIs(t, err, model.ErrPermissionDenied, d.Name)
		assert.ErrorIs(t, f.departments.Delete(ctx, f.admin, d.ID), model.ErrPermissionDenied, d.Name)
	}

	depts, err := f.departments.List(ctx)
	require.NoError(t, err)
	assert.Len(t, depts, 2)
}

func TestDepartmentDeleteRemovesMemberships(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	marketing := f.department(t, "Marketing")

	var members []model.Actor
	for _, name := range []string{"ann", "ben", "cat"} {
		members = append(members, f.user(t, name, model.RoleUser, marketing.ID))
	}

	require.NoError(t, f.departments.Delete(ctx, f.admin, marketing.ID))

	_, err := f.departments.Get(ctx, marketing.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	for _, a := range members {
		m, err := f.users.Get(ctx, a.UserID)
		require.NoError(t, err)
		assert.Equal(t, []string{model.CommonDepartmentName}, departmentNames(m.Profile), a.Username)
	}

	page, err := f.events.List(ctx, 1, 10)
	require.NoError(t, err)
	require.NotEmpty(t, page.Events)
	assert.Equal(t, "Department deleted", page.Events[0].Message)
	assert.Contains(t, page.Events[0].Metadata, `"memberships_removed":3`)
}

func TestDepartmentWritesRequireAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sales := f.department(t, "Sales")
	bob := f.user(t, "bob", model.RoleUser, sales.ID)

	_, err := f.departments.Create(ctx, bob, DepartmentInput{Name: "Shadow"})
	assert.ErrorIs(t, err, model.ErrPermissionDenied)

	_, err = f.departments.Update(ctx, bob, sales.ID, DepartmentInput{Name: "Mine"})
	assert.ErrorIs(t, err, model.ErrPermissionDenied)

	assert.ErrorIs(t, f.departments.Delete(ctx, bob, sales.ID), model.ErrPermissionDenied)

	got, err := f.departments.Get(ctx, sales.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sales", got.Name)
}
