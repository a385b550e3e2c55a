// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/olegiv/deptdocs/internal/model"
)

// FSStore keeps files on the local filesystem under a root directory.
type FSStore struct {
	root string
}

// NewFSStore creates the store and its documents directory.
func NewFSStore(root string) (*FSStore, error) {
	if root == "" {
		return nil, errors.New("upload directory is required")
	}
	if err := os.MkdirAll(filepath.Join(root, Prefix), 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &FSStore{root: root}, nil
}

// Put writes r to a new file and returns its reference.
func (s *FSStore) Put(_ context.Context, name string, r io.Reader) (Ref, error) {
	ref := newRef(name)
	filePath := s.path(ref)

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	out, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, r); err != nil {
		_ = os.RemoveAll(filepath.Dir(filePath))
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return ref, nil
}

// Open opens a stored file for reading.
func (s *FSStore) Open(_ context.Context, ref Ref) (io.ReadCloser, error) {
	if !validRef(ref) {
		return nil, fmt.Errorf("%w: blob %q", model.ErrNotFound, ref)
	}
	f, err := os.Open(s.path(ref))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: blob %q", model.ErrNotFound, ref)
		}
		return nil, fmt.Errorf("opening blob: %w", err)
	}
	return f, nil
}

// Delete removes a stored file and its directory. Missing files are ignored.
func (s *FSStore) Delete(_ context.Context, ref Ref) error {
	if !validRef(ref) {
		return nil
	}
	if err := os.RemoveAll(filepath.Dir(s.path(ref))); err != nil {
		return fmt.Errorf("deleting blob: %w", err)
	}
	return nil
}

// Filename returns the stored file name of ref.
func (s *FSStore) Filename(ref Ref) string {
	return Filename(ref)
}

// Ping checks that the upload directory is reachable.
func (s *FSStore) Ping(_ context.Context) error {
	info, err := os.Stat(filepath.Join(s.root, Prefix))
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", info.Name())
	}
	return nil
}

func (s *FSStore) path(ref Ref) string {
	return filepath.Join(s.root, filepath.FromSlash(string(ref)))
}
