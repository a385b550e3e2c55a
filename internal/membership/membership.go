// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package membership applies the department membership rules for users:
// everybody belongs to the common department, admins belong to the admin
// department, and the last admin can never demote themselves.
package membership

import (
	"fmt"
	"strings"

	"github.com/olegiv/deptdocs/internal/model"
)

// Protected holds the two departments every membership decision refers to.
type Protected struct {
	Common model.Department
	Admin  model.Department
}

// AssignDepartments replaces the profile's memberships according to role.
// The common department is always present afterwards. Admins additionally
// get the admin department and selected is ignored; users get selected
// when it is not nil.
func AssignDepartments(p *model.Profile, role model.Role, selected *model.Department, depts Protected) {
	p.Departments = make([]model.Department, 0, 2)
	p.Departments = append(p.Departments, depts.Common)

	if role == model.RoleAdmin {
		p.Departments = append(p.Departments, depts.Admin)
		return
	}
	if selected != nil && selected.ID != depts.Common.ID {
		p.Departments = append(p.Departments, *selected)
	}
}

// ValidateRoleChange rejects a self-demotion by the only remaining admin.
func ValidateRoleChange(p model.Profile, isSelf bool, requested model.Role, adminCount int64) error {
	if isSelf && p.IsAdmin && requested == model.RoleUser && adminCount <= 1 {
		return fmt.Errorf("%w: at least one administrator must remain", model.ErrLastAdminViolation)
	}
	return nil
}

// ValidateDepartmentForRole rejects putting a regular user in the admin
// department. A nil department is always valid.
func ValidateDepartmentForRole(role model.Role, dept *model.Department) error {
	if dept == nil || role == model.RoleAdmin {
		return nil
	}
	if dept.IsAdminDepartment {
		return fmt.Errorf("%w: %q is reserved for administrators", model.ErrInvalidDepartmentAssignment, dept.Name)
	}
	return nil
}

// ParseRole parses a role name from a form value.
func ParseRole(s string) (model.Role, error) {
	switch model.Role(strings.ToLower(strings.TrimSpace(s))) {
	case model.RoleUser:
		return model.RoleUser, nil
	case model.RoleAdmin:
		return model.RoleAdmin, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", model.ErrValidationFailed, s)
}

// PrimaryDepartment returns the department shown as selected when a user is
// edited: the first non-common membership. Admins have none.
func PrimaryDepartment(p model.Profile) *model.Department {
	if p.IsAdmin {
		return nil
	}
	for i := range p.Departments {
		d := p.Departments[i]
		if !d.IsCommon {
			return &d
		}
	}
	return nil
}

// Missing lists the protected departments a profile should hold but does not.
// It is used by the repair job and at provisioning time.
func Missing(p model.Profile, depts Protected) []model.Department {
	var out []model.Department
	if !p.HasDepartment(depts.Common.ID) {
		out = append(out, depts.Common)
	}
	if p.IsAdmin && !p.HasDepartment(depts.Admin.ID) {
		out = append(out, depts.Admin)
	}
	return out
}
