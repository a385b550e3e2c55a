// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package blob stores uploaded document files. A file is addressed by a Ref
// of the form "documents/<uuid>/<name>" which is the same on every backend.
package blob

import (
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/unicode/norm"
)

// Ref identifies a stored file.
type Ref string

// Prefix is the key prefix shared by all document files.
const Prefix = "documents"

// Store is a blob store keyed by path.
type Store interface {
	Put(ctx context.Context, name string, r io.Reader) (Ref, error)
	Open(ctx context.Context, ref Ref) (io.ReadCloser, error)
	Delete(ctx context.Context, ref Ref) error
	Filename(ref Ref) string
}

// Pinger is implemented by stores that can report their availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config selects and configures a backend.
type Config struct {
	Backend string // "fs" or "s3"
	Root    string // fs: upload directory
	S3      S3Config
}

// Backends
const (
	BackendFS = "fs"
	BackendS3 = "s3"
)

// New creates the store selected by cfg.Backend.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendFS:
		return NewFSStore(cfg.Root)
	case BackendS3:
		return NewS3Store(ctx, cfg.S3)
	}
	return nil, fmt.Errorf("unknown blob backend %q", cfg.Backend)
}

// Filename returns the stored file name of ref.
func Filename(ref Ref) string {
	return path.Base(string(ref))
}

var (
	unsafeChars    = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	multipleDashes = regexp.MustCompile(`-{2,}`)
)

// SanitizeName turns a client supplied filename into a safe ASCII file name.
// Directories are dropped, text is transliterated, and unsafe characters
// are removed. Names without an extension get ".bin".
func SanitizeName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = unidecode.Unidecode(norm.NFC.String(name))
	name = strings.ReplaceAll(name, " ", "-")
	name = unsafeChars.ReplaceAllString(name, "")
	name = multipleDashes.ReplaceAllString(name, "-")
	name = strings.TrimLeft(name, ".-")

	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if base == "" {
		base = "file"
	}
	if ext == "" || ext == "." {
		ext = ".bin"
	}
	return base + ext
}

// newRef allocates a unique reference for a file called name.
func newRef(name string) Ref {
	return Ref(path.Join(Prefix, uuid.New().String(), SanitizeName(name)))
}

// validRef reports whether ref has the documents/<uuid>/<name> shape.
func validRef(ref Ref) bool {
	parts := strings.Split(string(ref), "/")
	if len(parts) != 3 || parts[0] != Prefix {
		return false
	}
	if _, err := uuid.Parse(parts[1]); err != nil {
		return false
	}
	return parts[2] != "" && parts[2] != "." && parts[2] != ".."
}
