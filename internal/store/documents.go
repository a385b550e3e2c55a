// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/olegiv/deptdocs/internal/model"
)

const documentColumns = `id, title, description, uploaded_by, upload_date, blob_ref, filename, size, visibility, updated_at`

func scanDocument(s scanner) (model.Document, error) {
	var d model.Document
	err := s.Scan(&d.ID, &d.Title, &d.Description, &d.UploadedBy, &d.UploadedAt,
		&d.BlobRef, &d.Filename, &d.Size, &d.Visibility, &d.UpdatedAt)
	return d, err
}

// CreateDocumentParams holds the columns of a new document.
type CreateDocumentParams struct {
	Title       string
	Description string
	UploadedBy  int64
	UploadedAt  time.Time
	BlobRef     string
	Filename    string
	Size        int64
	Visibility  string
}

// CreateDocument inserts a document row without targets.
func (q *Queries) CreateDocument(ctx context.Context, arg CreateDocumentParams) (model.Document, error) {
	ts := orNow(arg.UploadedAt)
	visibility := arg.Visibility
	if visibility == "" {
		visibility = model.VisibilityDepartment
	}
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO documents (title, description, uploaded_by, upload_date, blob_ref, filename, size, visibility, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		arg.Title, arg.Description, arg.UploadedBy, ts, arg.BlobRef, arg.Filename, arg.Size, visibility, ts)
	if err != nil {
		return model.Document{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Document{}, err
	}
	return q.GetDocumentByID(ctx, id)
}

// GetDocumentByID returns a document with its targets or sql.ErrNoRows.
func (q *Queries) GetDocumentByID(ctx context.Context, id int64) (model.Document, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	d, err := scanDocument(row)
	if err != nil {
		return d, err
	}
	docs := []model.Document{d}
	if err := q.attachTargets(ctx, docs); err != nil {
		return d, err
	}
	return docs[0], nil
}

// UpdateDocumentParams holds the editable document metadata.
type UpdateDocumentParams struct {
	ID          int64
	Title       string
	Description string
}

// UpdateDocument updates title and description.
func (q *Queries) UpdateDocument(ctx context.Context, arg UpdateDocumentParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE documents SET title = ?, description = ?, updated_at = ? WHERE id = ?`,
		arg.Title, arg.Description, now(), arg.ID)
	return err
}

// UpdateDocumentFileParams describes a replacement file.
type UpdateDocumentFileParams struct {
	ID       int64
	BlobRef  string
	Filename string
	Size     int64
}

// UpdateDocumentFile points a document at a new stored file.
func (q *Queries) UpdateDocumentFile(ctx context.Context, arg UpdateDocumentFileParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE documents SET blob_ref = ?, filename = ?, size = ?, updated_at = ? WHERE id = ?`,
		arg.BlobRef, arg.Filename, arg.Size, now(), arg.ID)
	return err
}

// DeleteDocument deletes a document and its targets.
func (q *Queries) DeleteDocument(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	return err
}

// ListDocumentsForDepartments returns documents targeting any of the given
// departments, with targets attached.
func (q *Queries) ListDocumentsForDepartments(ctx context.Context, departmentIDs []int64) ([]model.Document, error) {
	if len(departmentIDs) == 0 {
		return nil, nil
	}
	return q.listDocuments(ctx,
		`SELECT `+documentColumns+` FROM documents
		WHERE id IN (SELECT document_id FROM document_departments WHERE department_id IN (`+placeholders(len(departmentIDs))+`))
		ORDER BY upload_date DESC, id`,
		int64Args(departmentIDs)...)
}

// ListDocumentsByUploader returns the documents uploaded by a user.
func (q *Queries) ListDocumentsByUploader(ctx context.Context, userID int64) ([]model.Document, error) {
	return q.listDocuments(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE uploaded_by = ? ORDER BY upload_date DESC, id`, userID)
}

func (q *Queries) listDocuments(ctx context.Context, query string, args ...any) ([]model.Document, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var docs []model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := q.attachTargets(ctx, docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// attachTargets loads target departments and users for docs in two queries.
func (q *Queries) attachTargets(ctx context.Context, docs []model.Document) error {
	if len(docs) == 0 {
		return nil
	}
	ids := make([]int64, len(docs))
	index := make(map[int64]int, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
		index[d.ID] = i
	}

	depts, err := q.targetPairs(ctx,
		`SELECT document_id, department_id FROM document_departments
		WHERE document_id IN (`+placeholders(len(ids))+`) ORDER BY document_id, department_id`, ids)
	if err != nil {
		return fmt.Errorf("loading target departments: %w", err)
	}
	users, err := q.targetPairs(ctx,
		`SELECT document_id, user_id FROM document_users
		WHERE document_id IN (`+placeholders(len(ids))+`) ORDER BY document_id, user_id`, ids)
	if err != nil {
		return fmt.Errorf("loading target users: %w", err)
	}

	for i := range docs {
		docs[i].TargetDepartmentIDs = []int64{}
		docs[i].TargetUserIDs = []int64{}
	}
	for _, p := range depts {
		i := index[p[0]]
		docs[i].TargetDepartmentIDs = append(docs[i].TargetDepartmentIDs, p[1])
	}
	for _, p := range users {
		i := index[p[0]]
		docs[i].TargetUserIDs = append(docs[i].TargetUserIDs, p[1])
	}
	return nil
}

func (q *Queries) targetPairs(ctx context.Context, query string, ids []int64) ([][2]int64, error) {
	rows, err := q.db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out [][2]int64
	for rows.Next() {
		var p [2]int64
		if err := rows.Scan(&p[0], &p[1]); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SetDocumentDepartments replaces the target departments of a document.
func (q *Queries) SetDocumentDepartments(ctx context.Context, documentID int64, departmentIDs []int64) error {
	return q.replaceTargets(ctx, "document_departments", "department_id", documentID, departmentIDs)
}

// SetDocumentUsers replaces the target users of a document.
func (q *Queries) SetDocumentUsers(ctx context.Context, documentID int64, userIDs []int64) error {
	return q.replaceTargets(ctx, "document_users", "user_id", documentID, userIDs)
}

// replaceTargets is only called with the constant table and column names above.
func (q *Queries) replaceTargets(ctx context.Context, table, column string, documentID int64, ids []int64) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("clearing %s: %w", table, err)
	}
	for _, id := range ids {
		if _, err := q.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO `+table+` (document_id, `+column+`) VALUES (?, ?)`, documentID, id); err != nil {
			return fmt.Errorf("adding %s %d: %w", column, id, err)
		}
	}
	return nil
}

// CountDocuments returns the number of documents.
func (q *Queries) CountDocuments(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}
