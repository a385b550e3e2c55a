// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package access holds the permission predicates for every mutating action
// in the portal. Predicates are pure: callers load the actor, the target and
// any counts they need, then ask for a Decision.
package access

import (
	"fmt"

	"github.com/olegiv/deptdocs/internal/model"
)

// Reason explains why a Decision was reached.
type Reason string

// Decision reasons.
const (
	ReasonAdmin            Reason = "admin"
	ReasonUploader         Reason = "uploader"
	ReasonVisible          Reason = "visible"
	ReasonSelf             Reason = "self"
	ReasonRegular          Reason = "regular"
	ReasonNotUploader      Reason = "not_uploader"
	ReasonNotVisible       Reason = "not_visible"
	ReasonCommonDepartment Reason = "common_department"
	ReasonAdminDepartment  Reason = "admin_department"
	ReasonOtherAdmin       Reason = "other_admin"
	ReasonLastAdmin        Reason = "last_admin"
)

var reasonMessages = map[Reason]string{
	ReasonNotUploader:      "only the uploader or an administrator can change this document",
	ReasonNotVisible:       "document is not shared with your departments",
	ReasonCommonDepartment: "the common department cannot be modified",
	ReasonAdminDepartment:  "the admin department cannot be modified",
	ReasonOtherAdmin:       "cannot modify another administrator",
	ReasonLastAdmin:        "cannot delete the last administrator",
}

// Decision is the outcome of a permission check.
type Decision struct {
	Allowed bool
	Reason  Reason
}

func allow(r Reason) Decision { return Decision{Allowed: true, Reason: r} }
func deny(r Reason) Decision  { return Decision{Allowed: false, Reason: r} }

// Err returns nil for an allowed decision, otherwise an error wrapping
// ErrLastAdminViolation or ErrPermissionDenied.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	kind := model.ErrPermissionDenied
	if d.Reason == ReasonLastAdmin {
		kind = model.ErrLastAdminViolation
	}
	if msg, ok := reasonMessages[d.Reason]; ok {
		return fmt.Errorf("%w: %s", kind, msg)
	}
	return kind
}

// CanEditDocument allows admins and the document's uploader.
func CanEditDocument(actor model.Actor, doc model.Document) Decision {
	switch {
	case actor.IsAdmin:
		return allow(ReasonAdmin)
	case actor.UserID == doc.UploadedBy:
		return allow(ReasonUploader)
	}
	return deny(ReasonNotUploader)
}

// CanDeleteDocument follows the same rule as editing.
func CanDeleteDocument(actor model.Actor, doc model.Document) Decision {
	return CanEditDocument(actor, doc)
}

// CanDownloadDocument allows admins, the uploader, and anyone the document
// is visible to through a shared department.
func CanDownloadDocument(actor model.Actor, viewerDepartments []int64, doc model.Document) Decision {
	switch {
	case actor.IsAdmin:
		return allow(ReasonAdmin)
	case actor.UserID == doc.UploadedBy:
		return allow(ReasonUploader)
	}
	for _, id := range viewerDepartments {
		if doc.TargetsDepartment(id) {
			return allow(ReasonVisible)
		}
	}
	return deny(ReasonNotVisible)
}

// CanEditDepartment denies the protected departments regardless of actor.
func CanEditDepartment(dept model.Department) Decision {
	switch {
	case dept.IsCommon:
		return deny(ReasonCommonDepartment)
	case dept.IsAdminDepartment:
		return deny(ReasonAdminDepartment)
	}
	return allow(ReasonRegular)
}

// CanDeleteDepartment follows the same rule as editing.
func CanDeleteDepartment(dept model.Department) Decision {
	return CanEditDepartment(dept)
}

// CanEditUser denies changes to an admin by anyone but that admin.
func CanEditUser(actor model.Actor, target model.Profile) Decision {
	if target.IsAdmin && actor.UserID != target.UserID {
		return deny(ReasonOtherAdmin)
	}
	if actor.UserID == target.UserID {
		return allow(ReasonSelf)
	}
	return allow(ReasonRegular)
}

// CanDeleteUser denies deleting another admin, and deleting oneself while
// being the only admin left.
func CanDeleteUser(actor model.Actor, target model.Profile, adminCount int64) Decision {
	if d := CanEditUser(actor, target); !d.Allowed {
		return d
	}
	if actor.UserID == target.UserID && target.IsAdmin && adminCount <= 1 {
		return deny(ReasonLastAdmin)
	}
	return allow(ReasonRegular)
}
