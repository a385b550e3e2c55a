// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package visibility decides which documents a viewer may see and filters
// them by a free-text query.
package visibility

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/olegiv/deptdocs/internal/model"
)

// IsVisible reports whether doc targets at least one of the viewer's
// departments.
func IsVisible(viewerDepartments []int64, doc model.Document) bool {
	for _, id := range viewerDepartments {
		if doc.TargetsDepartment(id) {
			return true
		}
	}
	return false
}

// VisibleDocuments returns the documents visible to a viewer holding
// viewerDepartments, newest first. Duplicate ids are collapsed to their
// first occurrence. A non-blank query keeps only documents whose title or
// description contains it, ignoring case.
func VisibleDocuments(viewerDepartments []int64, docs []model.Document, query string) []model.Document {
	out := make([]model.Document, 0, len(docs))
	if len(viewerDepartments) == 0 {
		return out
	}

	seen := make(map[int64]struct{}, len(docs))
	for _, d := range docs {
		if _, dup := seen[d.ID]; dup {
			continue
		}
		seen[d.ID] = struct{}{}
		if IsVisible(viewerDepartments, d) {
			out = append(out, d)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})

	return Search(out, query)
}

// Search narrows docs to those matching query, preserving order.
// A blank query returns docs unchanged.
func Search(docs []model.Document, query string) []model.Document {
	q := strings.TrimSpace(query)
	if q == "" {
		return docs
	}
	needle := fold(q)

	out := docs[:0:0]
	for _, d := range docs {
		if strings.Contains(fold(d.Title), needle) || strings.Contains(fold(d.Description), needle) {
			out = append(out, d)
		}
	}
	return out
}

// fold normalises to NFC and applies Unicode case folding, so that
// precomposed and decomposed Vietnamese text compare equal.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}
