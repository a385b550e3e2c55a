// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package upload validates incoming document files and describes how stored
// files are served back to clients.
package upload

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/olegiv/deptdocs/internal/model"
)

// MaxFileSize is the largest accepted upload (50 MiB).
const MaxFileSize int64 = 50 * 1024 * 1024

// DefaultContentType is served for extensions missing from the table.
const DefaultContentType = "application/octet-stream"

// contentTypes lists every accepted extension and the type it is served as.
var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".txt":  "text/plain",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".zip":  "application/zip",
	".rar":  "application/x-rar-compressed",
}

// AllowedExtensions is the accepted extension list in display order.
var AllowedExtensions = []string{
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
	".txt", ".jpg", ".jpeg", ".png", ".gif", ".zip", ".rar",
}

// Blob is an uploaded file as received from the client.
type Blob struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// Extension returns the lowercased extension of name including the dot.
func Extension(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// Validate checks the size limit and the extension allow-list.
func Validate(b Blob) error {
	if b.Size > MaxFileSize {
		return fmt.Errorf("%w: %d bytes exceeds the %d MB limit", model.ErrFileTooLarge, b.Size, MaxFileSize/(1024*1024))
	}
	if _, ok := contentTypes[Extension(b.Filename)]; !ok {
		return fmt.Errorf("%w: allowed types are %s", model.ErrUnsupportedFileType, strings.Join(AllowedExtensions, ", "))
	}
	return nil
}

// ValidateCreate validates the file of a new document, which is mandatory.
func ValidateCreate(b *Blob) error {
	if b == nil {
		return model.ErrFileRequired
	}
	return Validate(*b)
}

// ValidateEdit validates a replacement file. A nil blob keeps the existing
// file and is always valid.
func ValidateEdit(b *Blob) error {
	if b == nil {
		return nil
	}
	return Validate(*b)
}

// ContentType returns the MIME type a stored file is served with.
func ContentType(filename string) string {
	if ct, ok := contentTypes[Extension(filename)]; ok {
		return ct
	}
	return DefaultContentType
}

// ContentDisposition returns the attachment header for a download that keeps
// the original filename. Quotes and backslashes are escaped and control
// characters dropped.
func ContentDisposition(filename string) string {
	base := filepath.Base(filepath.ToSlash(filename))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r == '"' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}
	return fmt.Sprintf(`attachment; filename="%s"`, b.String())
}
