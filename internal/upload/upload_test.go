// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package upload

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/olegiv/deptdocs/internal/model"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		blob    Blob
		wantErr error
	}{
		{"60 MiB pdf", Blob{Filename: "big.pdf", Size: 60 * 1024 * 1024}, model.ErrFileTooLarge},
		{"exactly the limit", Blob{Filename: "edge.pdf", Size: MaxFileSize}, nil},
		{"one byte over", Blob{Filename: "edge.pdf", Size: MaxFileSize + 1}, model.ErrFileTooLarge},
		{"exe", Blob{Filename: "notes.exe", Size: 1024}, model.ErrUnsupportedFileType},
		{"uppercase pdf", Blob{Filename: "report.PDF", Size: 1024}, nil},
		{"docx", Blob{Filename: "plan.docx", Size: 1024}, nil},
		{"rar", Blob{Filename: "archive.RaR", Size: 1024}, nil},
		{"no extension", Blob{Filename: "README", Size: 10}, model.ErrUnsupportedFileType},
		{"trailing dot", Blob{Filename: "report.", Size: 10}, model.ErrUnsupportedFileType},
		{"double extension", Blob{Filename: "invoice.pdf.exe", Size: 10}, model.ErrUnsupportedFileType},
		{"vietnamese name", Blob{Filename: "Báo cáo.xlsx", Size: 10}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.blob)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateCreateAndEdit(t *testing.T) {
	assert.ErrorIs(t, ValidateCreate(nil), model.ErrFileRequired)
	assert.NoError(t, ValidateEdit(nil))

	bad := &Blob{Filename: "notes.exe", Size: 1}
	assert.ErrorIs(t, ValidateCreate(bad), model.ErrUnsupportedFileType)
	assert.ErrorIs(t, ValidateEdit(bad), model.ErrUnsupportedFileType)

	good := &Blob{Filename: "notes.txt", Size: 1, Content: strings.NewReader("x")}
	assert.NoError(t, ValidateCreate(good))
	assert.NoError(t, ValidateEdit(good))
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"a.pdf":     "application/pdf",
		"a.DOCX":    "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"photo.JPG": "image/jpeg",
		"a.jpeg":    "image/jpeg",
		"a.rar":     "application/x-rar-compressed",
		"a.txt":     "text/plain",
		"a.bin":     DefaultContentType,
		"noext":     DefaultContentType,
	}
	for name, want := range tests {
		assert.Equal(t, want, ContentType(name), name)
	}
}

func TestContentTypeCoversAllowList(t *testing.T) {
	for _, ext := range AllowedExtensions {
		assert.NotEqual(t, DefaultContentType, ContentType("file"+ext), ext)
	}
	assert.Len(t, contentTypes, len(AllowedExtensions))
}

func TestContentDisposition(t *testing.T) {
	assert.Equal(t, `attachment; filename="report.pdf"`, ContentDisposition("report.pdf"))
	assert.Equal(t, `attachment; filename="report.pdf"`, ContentDisposition("documents/abc/report.pdf"))
	assert.Equal(t, `attachment; filename="Báo cáo.xlsx"`, ContentDisposition("Báo cáo.xlsx"))
	assert.Equal(t, `attachment; filename="evil\".txt"`, ContentDisposition("evil\"\r\n.txt"))
	assert.Equal(t, `attachment; filename="a\\b.txt"`, ContentDisposition(`a\b.txt`))
	assert.Equal(t, `attachment; filename="tab.txt"`, ContentDisposition("tab\t.txt"))
}
