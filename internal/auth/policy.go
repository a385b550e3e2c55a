// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"errors"
	"unicode/utf8"
)

// MinPasswordLength is the shortest password accepted on the user forms.
const MinPasswordLength = 8

// Password form errors.
var (
	ErrPasswordRequired = errors.New("password and confirmation are required")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrPasswordTooShort = errors.New("password is too short")
)

// ValidatePasswordPair checks a password and its confirmation. When required
// is false (editing a user) both fields may be left empty, meaning "keep the
// current password"; ok then reports false.
func ValidatePasswordPair(password, confirm string, required bool) (ok bool, err error) {
	if password == "" && confirm == "" {
		if required {
			return false, ErrPasswordRequired
		}
		return false, nil
	}
	if required && (password == "" || confirm == "") {
		return false, ErrPasswordRequired
	}
	if password != confirm {
		return false, ErrPasswordMismatch
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return false, ErrPasswordTooShort
	}
	return true, nil
}
