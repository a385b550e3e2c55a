package service

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/deptdocs/internal/blob"
	"github.com/olegiv/deptdocs/internal/model"
	"github.com/olegiv/deptdocs/internal/upload"
)

func blobRef(d model.Document) blob.Ref { return blob.Ref(d.BlobRef) }

func pdf(name, body string) *upload.Blob {
	return &upload.Blob{Filename: name, Size: int64(len(body)), Content: strings.NewReader(body)}
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

type documentWorld struct {
	*fixture
	sales, hr model.Department
	alice     model.Actor // Sales
	bob       model.Actor // HR
	carol     model.Actor // Sales
}

func newDocumentWorld(t *testing.T) *documentWorld {
	f := newFixture(t)
	w := &documentWorld{fixture: f}
	w.sales = f.department(t, "Sales")
	w.hr = f.department(t, "HR")
	w.alice = f.user(t, "alice", model.RoleUser, w.sales.ID)
	w.bob = f.user(t, "bob", model.RoleUser, w.hr.ID)
	w.carol = f.user(t, "carol", model.RoleUser, w.sales.ID)
	return w
}

func TestDocumentUpload(t *testing.T) {
	w := newDocumentWorld(t)
	ctx := context.Background()

	doc, err := w.documents.Upload(ctx, w.alice, DocumentInput{
		Title:         " Q3 <i>plan</i> ",
		Description:   "**bold** notes",
		DepartmentIDs: []int64{w.sales.ID, w.sales.ID},
		UserIDs:       []int64{w.bob.UserID},
	}, pdf("plan.pdf", "%PDF-1.7"))
	require.NoError(t, err)

	assert.Equal(t, "Q3 plan", doc.Title)
	assert.Equal(t, "plan.pdf", doc.Filename)
	assert.Equal(t, int64(8), doc.Size)
	assert.Equal(t, w.alice.UserID, doc.UploadedBy)
	assert.Equal(t, model.VisibilityDepartment, doc.Visibility)
	assert.Equal(t, []int64{w.sales.ID}, doc.TargetDepartmentIDs)
	assert.Equal(t, []int64{w.bob.UserID}, doc.TargetUserIDs)

	rc, err := w.blobs.Open(ctx, blobRef(doc))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", readAll(t, rc))

	assert.Contains(t, w.eventMessages(t), "Document uploaded")
}

func TestDocumentUploadValidation(t *testing.T) {
	w := newDocumentWorld(t)
	ctx := context.Background()
	valid := DocumentInput{Title: "Plan", DepartmentIDs: []int64{w.sales.ID}}

	tests := []struct {
		name string
		in   DocumentInput
		file *upload.Blob
		want error
	}{
		{"missing file", valid, nil, model.ErrFileRequired},
		{"bad extension", valid, pdf("run.exe", "MZ"), model.ErrUnsupportedFileType},
		{"declared too large", valid, &upload.Blob{Filename: "big.pdf", Size: upload.MaxFileSize + 1, Content: strings.NewReader("x")}, model.ErrFileTooLarge},
		{"missing title", DocumentInput{DepartmentIDs: []int64{w.sales.ID}}, pdf("a.pdf", "x"), model.ErrValidationFailed},
		{"long title", DocumentInput{Title: strings.Repeat("t", 256)}, pdf("a.pdf", "x"), model.ErrValidationFailed},
		{"unknown department", DocumentInput{Title: "Plan", DepartmentIDs: []int64{9999}}, pdf("a.pdf", "x"), model.ErrValidationFailed},
		{"unknown user", DocumentInput{Title: "Plan", UserIDs: []int64{9999}}, pdf("a.pdf", "x"), model.ErrValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.documents.Upload(ctx, w.alice, tt.in, tt.file)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	docs, err := w.documents.ListVisible(ctx, w.viewer(t, w.admin), "")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestDocumentUploadRejectsUnderstatedSize(t *testing.T) {
	w := newDocumentWorld(t)
	ctx := context.Background()

	body := bytes.NewReader(make([]byte, upload.MaxFileSize+1))
	_, err := w.documents.Upload(ctx, w.alice, DocumentInput{Title: "Huge", DepartmentIDs: []int64{w.sales.ID}},
		&upload.Blob{Filename: "huge.zip", Size: 10, Content: body})
	assert.ErrorIs(t, err, model.ErrFileTooLarge)
}

func TestDocumentVisibility(t *testing.T) {
	w := newDocumentWorld(t)
	ctx := context.Background()

	salesDoc, err := w.documents.Upload(ctx, w.alice, DocumentInput{Title: "Sales targets", DepartmentIDs: []int64{w.sales.ID}}, pdf("t.pdf", "x"))
	require.NoError(t, err)
	_, err = w.documents.Upload(ctx, w.bob, DocumentInput{Title: "Hiring plan", DepartmentIDs: []int64{w.hr.ID}}, pdf("h.pdf", "x"))
	require.NoError(t, err)
	_, err = w.documents.Upload(ctx, w.bob, DocumentInput{Title: "Company handbook", DepartmentIDs: []int64{w.protected.Common.ID}}, pdf("c.pdf", "x"))
	require.NoError(t, err)
	// Only targets a user; with department visibility nobody sees it.
	_, err = w.documents.Upload(ctx, w.bob, DocumentInput{Title: "Private note", UserIDs: []int64{w.alice.UserID}}, pdf("p.pdf", "x"))
	require.NoError(t, err)

	titles := func(views []DocumentView) []string {
		out := make([]string, 0, len(views))
		for _, v := range views {
			out = append(out, v.Title)
		}
		return out
	}

	tests := []struct {
		name   string
		viewer model.Actor
		query  string
		want   []string
	}{
		{"sales member", w.carol, "", []string{"Company handbook", "Sales targets"}},
		{"hr member", w.bob, "", []string{"Company handbook", "Hiring plan"}},
		{"admin lists by membership", w.admin, "", []string{"Company handbook"}},
		{"search", w.carol, "TARGETS", []string{"Sales targets"}},
		{"search without match", w.bob, "targets", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := w.documents.ListVisible(ctx, w.viewer(t, tt.viewer), tt.query)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, titles(docs))
		})
	}

	t.Run("can edit flag", func(t *testing.T) {
		v, err := w.documents.Get(ctx, w.viewer(t, w.alice), salesDoc.ID)
		require.NoError(t, err)
		assert.True(t, v.CanEdit)

		v, err = w.documents.Get(ctx, w.viewer(t, w.carol), salesDoc.ID)
		require.NoError(t, err)
		assert.False(t, v.CanEdit)
	})

	t.Run("admin can open any document", func(t *testing.T) {
		_, err := w.documents.Get(ctx, w.viewer(t, w.admin), salesDoc.ID)
		assert.NoError(t, err)
	})

	t.Run("other department cannot open", func(t *testing.T) {
		_, err := w.documents.Get(ctx, w.viewer(t, w.bob), salesDoc.ID)
		assert.ErrorIs(t, err, model.ErrPermissionDenied)
		_, err = w.documents.Open(ctx, w.viewer(t, w.bob), salesDoc.ID)
		assert.ErrorIs(t, err, model.ErrPermissionDenied)
	})
}

func TestDocumentRendersDescription(t *testing.T) {
	w := newDocumentWorld(t)
	ctx := context.Background()

	doc, err := w.documents.Upload(ctx, w.alice, DocumentInput{
		Title: "Notes", Description: "**bold** <script>alert(1)</script>", DepartmentIDs: []int64{w.sales.ID},
	}, pdf("n.txt", "x"))
	require.NoError(t, err)

	v, err := w.documents.Get(ctx, w.viewer(t, w.alice), doc.ID)
	require.NoError(t, err)
	assert.Contains(t, v.DescriptionHTML, "<strong>bold</strong>")
	assert.NotContains(t, v.DescriptionHTML, "<script>")
}

func TestDocumentUpdate(t *testing.T) {
	w := newDocumentWorld(t)
	ctx := context.Background()

	doc, err := w.documents.Upload(ctx, w.alice, DocumentInput{Title: "Draft", DepartmentIDs: []int64{w.sales.ID}}, pdf("v1.pdf", "one"))
	require.NoError(t, err)

	t.Run("non-uploader is denied", func(t *testing.T) {
		_, err := w.documents.Update(ctx, w.carol, doc.ID, DocumentInput{Title: "Hijack"}, nil)
		assert.ErrorIs(t, err, model.ErrPermissionDenied)
	})

	t.Run("metadata only keeps file", func(t *testing.T) {
		got, err := w.documents.Update(ctx, w.alice, doc.ID, DocumentInput{
			Title: "Final", DepartmentIDs: []int64{w.sales.ID, w.hr.ID},
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, "Final", got.Title)
		assert.Equal(t, doc.BlobRef, got.BlobRef)
		assert.ElementsMatch(t, []int64{w.sales.ID, w.hr.ID}, got.TargetDepartmentIDs)
	})

	t.Run("bad replacement is rejected", func(t *testing.T) {
		_, err := w.documents.Update(ctx, w.alice, doc.ID, DocumentInput{Title: "Final"}, pdf("v2.exe", "x"))
		assert.ErrorIs(t, err, model.ErrUnsupportedFileType)
	})

	t.Run("replacement removes old file", func(t *testing.T) {
		got, err := w.documents.Update(ctx, w.admin, doc.ID, DocumentInput{
			Title: "Final", DepartmentIDs: []int64{w.sales.ID},
		}, pdf("v2.docx", "two"))
		require.NoError(t, err)
		assert.Equal(t, "v2.docx", got.Filename)
		assert.Equal(t, int64(3), got.Size)
		assert.NotEqual(t, doc.BlobRef, got.BlobRef)

		_, err = w.blobs.Open(ctx, blobRef(doc))
		assert.ErrorIs(t, err, model.ErrNotFound)

		dl, err := w.documents.Open(ctx, w.viewer(t, w.carol), doc.ID)
		require.NoError(t, err)
		assert.Equal(t, "v2.docx", dl.Filename)
		assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", dl.ContentType)
		assert.Equal(t, "two", readAll(t, dl.Body))
	})
}

func TestDocumentDelete(t *testing.T) {
	w := newDocumentWorld(t)
	ctx := context.Background()

	doc, err := w.documents.Upload(ctx, w.alice, DocumentInput{Title: "Old", DepartmentIDs: []int64{w.sales.ID}}, pdf("old.pdf", "x"))
	require.NoError(t, err)

	assert.ErrorIs(t, w.documents.Delete(ctx, w.carol, doc.ID), model.ErrPermissionDenied)
	require.NoError(t, w.documents.Delete(ctx, w.alice, doc.ID))
	assert.ErrorIs(t, w.documents.Delete(ctx, w.alice, doc.ID), model.ErrNotFound)

	_, err = w.blobs.Open(ctx, blobRef(doc))
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Contains(t, w.eventMessages(t), "Document deleted")
}

func TestDedupIDs(t *testing.T) {
	assert.Equal(t, []int64{3, 1}, dedupIDs([]int64{3, 0, 1, 3, -2, 1}))
	assert.Empty(t, dedupIDs(nil))
}
