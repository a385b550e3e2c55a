// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/deptdocs/internal/model"
)

func TestDocuments(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	q := New(db)

	hr, err := q.CreateDepartment(ctx, CreateDepartmentParams{Name: "HR"})
	require.NoError(t, err)
	sales, err := q.CreateDepartment(ctx, CreateDepartmentParams{Name: "Sales"})
	require.NoError(t, err)
	it, err := q.CreateDepartment(ctx, CreateDepartmentParams{Name: "IT"})
	require.NoError(t, err)
	u, _ := createMember(t, q, "uploader", false, hr)

	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	first, err := q.CreateDocument(ctx, CreateDocumentParams{
		Title: "Leave policy", UploadedBy: u.ID, UploadedAt: base,
		BlobRef: "documents/x/leave.pdf", Filename: "leave.pdf", Size: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, model.VisibilityDepartment, first.Visibility)
	assert.Empty(t, first.TargetDepartmentIDs)
	assert.True(t, first.UploadedAt.Equal(base))

	second, err := q.CreateDocument(ctx, CreateDocumentParams{
		Title: "Price list", UploadedBy: u.ID, UploadedAt: base.Add(time.Hour),
		BlobRef: "documents/y/prices.xlsx", Filename: "prices.xlsx", Size: 20,
	})
	require.NoError(t, err)

	require.NoError(t, q.SetDocumentDepartments(ctx, first.ID, []int64{hr.ID, sales.ID}))
	require.NoError(t, q.SetDocumentDepartments(ctx, second.ID, []int64{sales.ID, sales.ID}))
	require.NoError(t, q.SetDocumentUsers(ctx, second.ID, []int64{u.ID}))

	got, err := q.GetDocumentByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{hr.ID, sales.ID}, got.TargetDepartmentIDs)
	assert.Empty(t, got.TargetUserIDs)

	docs, err := q.ListDocumentsForDepartments(ctx, []int64{sales.ID, hr.ID})
	require.NoError(t, err)
	require.Len(t, docs, 2, "documents appear once even when several targets match")
	assert.Equal(t, second.ID, docs[0].ID, "newest first")
	assert.Equal(t, []int64{u.ID}, docs[0].TargetUserIDs)

	docs, err = q.ListDocumentsForDepartments(ctx, []int64{it.ID})
	require.NoError(t, err)
	assert.Empty(t, docs)

	docs, err = q.ListDocumentsForDepartments(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, docs)

	require.NoError(t, q.UpdateDocument(ctx, UpdateDocumentParams{ID: first.ID, Title: "Leave policy v2", Description: "updated"}))
	require.NoError(t, q.UpdateDocumentFile(ctx, UpdateDocumentFileParams{ID: first.ID, BlobRef: "documents/z/leave2.pdf", Filename: "leave2.pdf", Size: 11}))
	require.NoError(t, q.SetDocumentDepartments(ctx, first.ID, []int64{it.ID}))

	got, err = q.GetDocumentByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Leave policy v2", got.Title)
	assert.Equal(t, "leave2.pdf", got.Filename)
	assert.Equal(t, int64(11), got.Size)
	assert.Equal(t, []int64{it.ID}, got.TargetDepartmentIDs)

	byUploader, err := q.ListDocumentsByUploader(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, byUploader, 2)

	require.NoError(t, q.DeleteDocument(ctx, first.ID))
	_, err = q.GetDocumentByID(ctx, first.ID)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	n, err := q.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestDeletingDepartmentDropsDocumentTargets(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	q := New(db)

	hr, err := q.CreateDepartment(ctx, CreateDepartmentParams{Name: "HR"})
	require.NoError(t, err)
	u, _ := createMember(t, q, "u", false)
	doc, err := q.CreateDocument(ctx, CreateDocumentParams{Title: "t", UploadedBy: u.ID, BlobRef: "r", Filename: "f.txt"})
	require.NoError(t, err)
	require.NoError(t, q.SetDocumentDepartments(ctx, doc.ID, []int64{hr.ID}))

	require.NoError(t, q.DeleteDepartment(ctx, hr.ID))

	got, err := q.GetDocumentByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, got.TargetDepartmentIDs)
}
