// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package markup cleans user-entered text and renders document
// descriptions from Markdown to safe HTML.
package markup

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

var (
	stripPolicy = bluemonday.StrictPolicy()
	ugcPolicy   = bluemonday.UGCPolicy()
	md          = goldmark.New()
)

// PlainText removes every HTML tag from s and trims surrounding space.
// Entities are decoded so the stored value reads as typed.
func PlainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(stripPolicy.Sanitize(s)))
}

// RenderDescription converts Markdown to HTML and sanitizes the result.
func RenderDescription(source string) (string, error) {
	if strings.TrimSpace(source) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("rendering description: %w", err)
	}
	return ugcPolicy.Sanitize(buf.String()), nil
}
