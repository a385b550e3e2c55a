// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/olegiv/deptdocs/internal/access"
	"github.com/olegiv/deptdocs/internal/blob"
	"github.com/olegiv/deptdocs/internal/markup"
	"github.com/olegiv/deptdocs/internal/metrics"
	"github.com/olegiv/deptdocs/internal/model"
	"github.com/olegiv/deptdocs/internal/store"
	"github.com/olegiv/deptdocs/internal/upload"
	"github.com/olegiv/deptdocs/internal/visibility"
)

const (
	maxTitle       = 255
	maxDescription = 10000
)

// DocumentInput is the upload and edit form.
type DocumentInput struct {
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	DepartmentIDs []int64 `json:"target_departments"`
	UserIDs       []int64 `json:"target_users"`
}

// DocumentView is a document as shown to one viewer.
type DocumentView struct {
	model.Document
	DescriptionHTML string `json:"description_html"`
	CanEdit         bool   `json:"can_edit"`
}

// Download is an opened document file. The caller closes Body.
type Download struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// Viewer is the acting identity together with its memberships.
type Viewer struct {
	Actor       model.Actor
	Departments []int64
}

// ViewerFor builds a Viewer from an actor and its loaded profile.
func ViewerFor(actor model.Actor, p model.Profile) Viewer {
	return Viewer{Actor: actor, Departments: p.DepartmentIDs()}
}

// DocumentService handles uploads, edits, listing and downloads.
type DocumentService struct {
	db        *sql.DB
	queries   *store.Queries
	blobs     blob.Store
	events    *EventService
	dashboard *DashboardService
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewDocumentService creates a DocumentService.
func NewDocumentService(db *sql.DB, blobs blob.Store, events *EventService, dashboard *DashboardService, m *metrics.Metrics, logger *slog.Logger) *DocumentService {
	return &DocumentService{
		db:        db,
		queries:   store.New(db),
		blobs:     blobs,
		events:    events,
		dashboard: dashboard,
		metrics:   m,
		logger:    loggerOrDefault(logger),
	}
}

func (s *DocumentService) view(v Viewer, d model.Document) DocumentView {
	html, err := markup.RenderDescription(d.Description)
	if err != nil {
		s.logger.Warn("failed to render description", "document_id", d.ID, "error", err)
	}
	return DocumentView{
		Document:        d,
		DescriptionHTML: html,
		CanEdit:         access.CanEditDocument(v.Actor, d).Allowed,
	}
}

// ListVisible returns the documents shared with the viewer's departments,
// newest first, narrowed by query when it is not blank.
func (s *DocumentService) ListVisible(ctx context.Context, v Viewer, query string) ([]DocumentView, error) {
	docs, err := s.queries.ListDocumentsForDepartments(ctx, v.Departments)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	visible := visibility.VisibleDocuments(v.Departments, docs, query)

	out := make([]DocumentView, 0, len(visible))
	for _, d := range visible {
		out = append(out, s.view(v, d))
	}
	return out, nil
}

// Get returns a document the viewer may open.
func (s *DocumentService) Get(ctx context.Context, v Viewer, id int64) (DocumentView, error) {
	d, err := s.load(ctx, id)
	if err != nil {
		return DocumentView{}, err
	}
	if dec := access.CanDownloadDocument(v.Actor, v.Departments, d); !dec.Allowed {
		s.metrics.AccessDenied(string(dec.Reason))
		return DocumentView{}, dec.Err()
	}
	return s.view(v, d), nil
}

func (s *DocumentService) load(ctx context.Context, id int64) (model.Document, error) {
	d, err := s.queries.GetDocumentByID(ctx, id)
	if err != nil {
		return d, notFound(err, "document")
	}
	return d, nil
}

// cleanInput validates the form fields and that every target exists.
func (s *DocumentService) cleanInput(ctx context.Context, in DocumentInput) (DocumentInput, error) {
	fe := model.FieldErrors{}
	in.Title = requireText(fe, "title", markup.PlainText(in.Title), maxTitle)
	in.Description = strings.TrimSpace(in.Description)
	if len([]rune(in.Description)) > maxDescription {
		fe.Add("description", fmt.Sprintf("must be at most %d characters", maxDescription))
	}
	in.DepartmentIDs = dedupIDs(in.DepartmentIDs)
	in.UserIDs = dedupIDs(in.UserIDs)

	for _, id := range in.DepartmentIDs {
		if _, err := s.queries.GetDepartmentByID(ctx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				fe.Add("target_departments", fmt.Sprintf("department %d does not exist", id))
				continue
			}
			return in, fmt.Errorf("loading department: %w", err)
		}
	}
	for _, id := range in.UserIDs {
		if _, err := s.queries.GetUserByID(ctx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				fe.Add("target_users", fmt.Sprintf("user %d does not exist", id))
				continue
			}
			return in, fmt.Errorf("loading user: %w", err)
		}
	}
	return in, fe.Err()
}

func dedupIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// putFile stores the upload, enforcing the size limit on the bytes actually
// read rather than the declared size.
func (s *DocumentService) putFile(ctx context.Context, f *upload.Blob) (blob.Ref, int64, error) {
	start := time.Now()
	counter := &countingReader{r: io.LimitReader(f.Content, upload.MaxFileSize+1)}
	ref, err := s.blobs.Put(ctx, f.Filename, counter)
	s.metrics.ObserveBlob("put", start, err)
	if err != nil {
		return "", 0, fmt.Errorf("storing file: %w", err)
	}
	if counter.n > upload.MaxFileSize {
		s.removeFile(ctx, ref)
		return "", 0, upload.Validate(upload.Blob{Filename: f.Filename, Size: counter.n})
	}
	return ref, counter.n, nil
}

func (s *DocumentService) removeFile(ctx context.Context, ref blob.Ref) {
	start := time.Now()
	err := s.blobs.Delete(ctx, ref)
	s.metrics.ObserveBlob("delete", start, err)
	if err != nil {
		s.logger.Warn("failed to delete document file", "ref", ref, "error", err)
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Upload stores a new document shared with the given departments.
func (s *DocumentService) Upload(ctx context.Context, actor model.Actor, in DocumentInput, file *upload.Blob) (model.Document, error) {
	doc, err := s.upload(ctx, actor, in, file)
	s.metrics.DocumentAction("upload", err)
	return doc, err
}

func (s *DocumentService) upload(ctx context.Context, actor model.Actor, in DocumentInput, file *upload.Blob) (model.Document, error) {
	if err := upload.ValidateCreate(file); err != nil {
		return model.Document{}, err
	}
	in, err := s.cleanInput(ctx, in)
	if err != nil {
		return model.Document{}, err
	}

	ref, size, err := s.putFile(ctx, file)
	if err != nil {
		return model.Document{}, err
	}

	var docID int64
	err = store.RunInTx(ctx, s.db, func(q *store.Queries) error {
		d, err := q.CreateDocument(ctx, store.CreateDocumentParams{
			Title:       in.Title,
			Description: in.Description,
			UploadedBy:  actor.UserID,
			BlobRef:     string(ref),
			Filename:    file.Filename,
			Size:        size,
			Visibility:  model.VisibilityDepartment,
		})
		if err != nil {
			return fmt.Errorf("creating document: %w", err)
		}
		docID = d.ID
		if err := q.SetDocumentDepartments(ctx, d.ID, in.DepartmentIDs); err != nil {
			return fmt.Errorf("setting target departments: %w", err)
		}
		if err := q.SetDocumentUsers(ctx, d.ID, in.UserIDs); err != nil {
			return fmt.Errorf("setting target users: %w", err)
		}
		return nil
	})
	if err != nil {
		s.removeFile(ctx, ref)
		return model.Document{}, err
	}

	s.events.Record(ctx, actor, model.EventCategoryDocument, "Document uploaded", map[string]any{
		"document_id": docID,
		"title":       in.Title,
		"filename":    file.Filename,
		"size":        size,
		"departments": in.DepartmentIDs,
	})
	s.dashboard.Invalidate(ctx)
	return s.load(ctx, docID)
}

// Update edits metadata and targets. A nil file keeps the stored one;
// a replaced file is removed once the change is committed.
func (s *DocumentService) Update(ctx context.Context, actor model.Actor, id int64, in DocumentInput, file *upload.Blob) (model.Document, error) {
	doc, err := s.update(ctx, actor, id, in, file)
	s.metrics.DocumentAction("update", err)
	return doc, err
}

func (s *DocumentService) update(ctx context.Context, actor model.Actor, id int64, in DocumentInput, file *upload.Blob) (model.Document, error) {
	d, err := s.load(ctx, id)
	if err != nil {
		return d, err
	}
	if dec := access.CanEditDocument(actor, d); !dec.Allowed {
		s.metrics.AccessDenied(string(dec.Reason))
		return d, dec.Err()
	}
	if err := upload.ValidateEdit(file); err != nil {
		return d, err
	}
	if in, err = s.cleanInput(ctx, in); err != nil {
		return d, err
	}

	var (
		newRef blob.Ref
		size   int64
	)
	if file != nil {
		if newRef, size, err = s.putFile(ctx, file); err != nil {
			return d, err
		}
	}

	err = store.RunInTx(ctx, s.db, func(q *store.Queries) error {
		if err := q.UpdateDocument(ctx, store.UpdateDocumentParams{
			ID:          id,
			Title:       in.Title,
			Description: in.Description,
		}); err != nil {
			return fmt.Errorf("updating document: %w", err)
		}
		if newRef != "" {
			if err := q.UpdateDocumentFile(ctx, store.UpdateDocumentFileParams{
				ID:       id,
				BlobRef:  string(newRef),
				Filename: file.Filename,
				Size:     size,
			}); err != nil {
				return fmt.Errorf("updating document file: %w", err)
			}
		}
		if err := q.SetDocumentDepartments(ctx, id, in.DepartmentIDs); err != nil {
			return fmt.Errorf("setting target departments: %w", err)
		}
		if err := q.SetDocumentUsers(ctx, id, in.UserIDs); err != nil {
			return fmt.Errorf("setting target users: %w", err)
		}
		return nil
	})
	if err != nil {
		if newRef != "" {
			s.removeFile(ctx, newRef)
		}
		return d, err
	}
	if newRef != "" {
		s.removeFile(ctx, blob.Ref(d.BlobRef))
	}

	s.events.Record(ctx, actor, model.EventCategoryDocument, "Document updated", map[string]any{
		"document_id":  id,
		"title":        in.Title,
		"file_changed": newRef != "",
		"departments":  in.DepartmentIDs,
	})
	s.dashboard.Invalidate(ctx)
	return s.load(ctx, id)
}

// Delete removes a document and then its file.
func (s *DocumentService) Delete(ctx context.Context, actor model.Actor, id int64) error {
	err := s.delete(ctx, actor, id)
	s.metrics.DocumentAction("delete", err)
	return err
}

func (s *DocumentService) delete(ctx context.Context, actor model.Actor, id int64) error {
	d, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if dec := access.CanDeleteDocument(actor, d); !dec.Allowed {
		s.metrics.AccessDenied(string(dec.Reason))
		return dec.Err()
	}
	if err := s.queries.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	s.removeFile(ctx, blob.Ref(d.BlobRef))

	s.events.Record(ctx, actor, model.EventCategoryDocument, "Document deleted", map[string]any{
		"document_id": id,
		"title":       d.Title,
	})
	s.dashboard.Invalidate(ctx)
	return nil
}

// Open returns the stored file of a document the viewer may download.
func (s *DocumentService) Open(ctx context.Context, v Viewer, id int64) (Download, error) {
	dl, err := s.open(ctx, v, id)
	s.metrics.DocumentAction("download", err)
	return dl, err
}

func (s *DocumentService) open(ctx context.Context, v Viewer, id int64) (Download, error) {
	d, err := s.load(ctx, id)
	if err != nil {
		return Download{}, err
	}
	if dec := access.CanDownloadDocument(v.Actor, v.Departments, d); !dec.Allowed {
		s.metrics.AccessDenied(string(dec.Reason))
		return Download{}, dec.Err()
	}

	start := time.Now()
	body, err := s.blobs.Open(ctx, blob.Ref(d.BlobRef))
	s.metrics.ObserveBlob("open", start, err)
	if err != nil {
		return Download{}, fmt.Errorf("opening file of document %d: %w", id, err)
	}
	return Download{
		Filename:    d.Filename,
		ContentType: upload.ContentType(d.Filename),
		Size:        d.Size,
		Body:        body,
	}, nil
}
