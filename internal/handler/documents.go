// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/olegiv/deptdocs/internal/middleware"
	"github.com/olegiv/deptdocs/internal/model"
	"github.com/olegiv/deptdocs/internal/service"
	"github.com/olegiv/deptdocs/internal/upload"
)

const (
	// multipartMemory is how much of a multipart form is held in memory
	// before spilling to temporary files.
	multipartMemory = 8 << 20
	// formOverhead allows for the non-file fields of an upload form.
	formOverhead = 1 << 20
)

// DocumentsHandler handles the document routes.
type DocumentsHandler struct {
	docs *service.DocumentService
}

// NewDocumentsHandler creates a new DocumentsHandler.
func NewDocumentsHandler(docs *service.DocumentService) *DocumentsHandler {
	return &DocumentsHandler{docs: docs}
}

// viewer returns the request's viewer. Routes are behind LoadUser.
func viewer(w http.ResponseWriter, r *http.Request) (service.Viewer, bool) {
	actor, ok := requireActor(w, r)
	if !ok {
		return service.Viewer{}, false
	}
	return service.ViewerFor(actor, middleware.GetMember(r).Profile), true
}

// List handles GET /api/documents and GET /api/documents/search.
func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	v, ok := viewer(w, r)
	if !ok {
		return
	}

	docs, err := h.docs.ListVisible(r.Context(), v, r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, docs, &Meta{Total: int64(len(docs)), Page: 1, PerPage: int64(len(docs)), Pages: 1})
}

// Get handles GET /api/documents/{id}.
func (h *DocumentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	v, ok := viewer(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r, "document")
	if !ok {
		return
	}

	doc, err := h.docs.Get(r.Context(), v, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, doc, nil)
}

// Create handles POST /api/documents (multipart upload).
func (h *DocumentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	in, file, cleanup, ok := parseDocumentForm(w, r)
	if !ok {
		return
	}
	defer cleanup()

	doc, err := h.docs.Upload(r.Context(), actor, in, file)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteCreated(w, doc)
}

// Update handles PUT and POST /api/documents/{id}. The file part is
// optional; without it the stored file is kept.
func (h *DocumentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r, "document")
	if !ok {
		return
	}

	in, file, cleanup, ok := parseDocumentForm(w, r)
	if !ok {
		return
	}
	defer cleanup()

	doc, err := h.docs.Update(r.Context(), actor, id, in, file)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, doc, nil)
}

// Delete handles DELETE /api/documents/{id}.
func (h *DocumentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r, "document")
	if !ok {
		return
	}

	if err := h.docs.Delete(r.Context(), actor, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Download handles GET /api/documents/{id}/download.
func (h *DocumentsHandler) Download(w http.ResponseWriter, r *http.Request) {
	v, ok := viewer(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r, "document")
	if !ok {
		return
	}

	dl, err := h.docs.Open(r.Context(), v, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	defer func() { _ = dl.Body.Close() }()

	w.Header().Set("Content-Type", dl.ContentType)
	w.Header().Set("Content-Disposition", upload.ContentDisposition(dl.Filename))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if dl.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(dl.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, dl.Body); err != nil {
		slog.Warn("document download interrupted", "document_id", id, "error", err)
	}
}

// parseDocumentForm reads the multipart upload form. The returned cleanup
// removes any temporary files; it is only valid when ok is true.
func parseDocumentForm(w http.ResponseWriter, r *http.Request) (in service.DocumentInput, file *upload.Blob, cleanup func(), ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, upload.MaxFileSize+formOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeServiceError(w, r, model.ErrFileTooLarge)
			return in, nil, nil, false
		}
		WriteBadRequest(w, "Expected a multipart/form-data body")
		return in, nil, nil, false
	}

	var opened multipart.File
	cleanup = func() {
		if opened != nil {
			_ = opened.Close()
		}
		_ = r.MultipartForm.RemoveAll()
	}

	fe := model.FieldErrors{}
	in = service.DocumentInput{
		Title:         r.FormValue("title"),
		Description:   r.FormValue("description"),
		DepartmentIDs: formIDs(fe, r, "target_departments"),
		UserIDs:       formIDs(fe, r, "target_users"),
	}
	if err := fe.Err(); err != nil {
		cleanup()
		writeServiceError(w, r, err)
		return in, nil, nil, false
	}

	f, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return in, nil, cleanup, true
	case err != nil:
		cleanup()
		WriteBadRequest(w, "Unreadable file part")
		return in, nil, nil, false
	}
	opened = f

	return in, &upload.Blob{
		Filename: header.Filename,
		Size:     header.Size,
		Content:  f,
	}, cleanup, true
}

// formIDs collects the IDs of a repeated form field. Each value may itself
// be a comma separated list.
func formIDs(fe model.FieldErrors, r *http.Request, field string) []int64 {
	var ids []int64
	for _, raw := range r.MultipartForm.Value[field] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id <= 0 {
				fe.Add(field, "must be a list of IDs")
				return nil
			}
			ids = append(ids, id)
		}
	}
	return ids
}
