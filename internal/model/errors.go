// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"errors"
	"net/http"
	"sort"
	"strings"
)

// Error is a domain error kind. Callers wrap kinds with fmt.Errorf("%w")
// to add detail and match them with errors.Is.
type Error string

func (e Error) Error() string { return string(e) }

// Error kinds raised by the rules core and the services.
const (
	ErrFileTooLarge                Error = "file too large"
	ErrUnsupportedFileType         Error = "unsupported file type"
	ErrFileRequired                Error = "file required"
	ErrLastAdminViolation          Error = "cannot remove the last administrator"
	ErrInvalidDepartmentAssignment Error = "invalid department assignment"
	ErrPermissionDenied            Error = "permission denied"
	ErrNotFound                    Error = "not found"
	ErrValidationFailed            Error = "validation failed"
	ErrConflict                    Error = "conflict"
	ErrUnauthenticated             Error = "authentication required"
)

var kindStatus = map[Error]int{
	ErrFileTooLarge:                http.StatusRequestEntityTooLarge,
	ErrUnsupportedFileType:         http.StatusUnsupportedMediaType,
	ErrFileRequired:                http.StatusBadRequest,
	ErrLastAdminViolation:          http.StatusConflict,
	ErrInvalidDepartmentAssignment: http.StatusUnprocessableEntity,
	ErrPermissionDenied:            http.StatusForbidden,
	ErrNotFound:                    http.StatusNotFound,
	ErrValidationFailed:            http.StatusUnprocessableEntity,
	ErrConflict:                    http.StatusConflict,
	ErrUnauthenticated:             http.StatusUnauthorized,
}

// Kind returns the domain error kind wrapped in err, if any.
func Kind(err error) (Error, bool) {
	var kind Error
	if errors.As(err, &kind) {
		return kind, true
	}
	return "", false
}

// HTTPStatus maps an error kind to its response status.
// Unknown kinds map to 500.
func (e Error) HTTPStatus() int {
	if status, ok := kindStatus[e]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Code returns the snake_case code used in JSON error bodies.
func (e Error) Code() string {
	switch e {
	case ErrFileTooLarge:
		return "file_too_large"
	case ErrUnsupportedFileType:
		return "unsupported_file_type"
	case ErrFileRequired:
		return "file_required"
	case ErrLastAdminViolation:
		return "last_admin_violation"
	case ErrInvalidDepartmentAssignment:
		return "invalid_department_assignment"
	case ErrPermissionDenied:
		return "forbidden"
	case ErrNotFound:
		return "not_found"
	case ErrValidationFailed:
		return "validation_error"
	case ErrConflict:
		return "conflict"
	case ErrUnauthenticated:
		return "unauthenticated"
	}
	return "internal_error"
}

// FieldErrors maps form fields to validation messages. It unwraps to
// ErrValidationFailed.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	fields := make([]string, 0, len(f))
	for k := range f {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, k := range fields {
		parts = append(parts, k+": "+f[k])
	}
	return string(ErrValidationFailed) + ": " + strings.Join(parts, "; ")
}

func (f FieldErrors) Unwrap() error { return ErrValidationFailed }

// Add records msg for field unless the field already has a message.
func (f FieldErrors) Add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

// Err returns f as an error, or nil when it is empty.
func (f FieldErrors) Err() error {
	if len(f) == 0 {
		return nil
	}
	return f
}
