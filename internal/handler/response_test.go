package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/olegiv/deptdocs/internal/model"
)

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"too large", model.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "file_too_large"},
		{"unsupported", model.ErrUnsupportedFileType, http.StatusUnsupportedMediaType, "unsupported_file_type"},
		{"file required", model.ErrFileRequired, http.StatusBadRequest, "file_required"},
		{"last admin", fmt.Errorf("%w: only admin", model.ErrLastAdminViolation), http.StatusConflict, "last_admin_violation"},
		{"invalid assignment", model.ErrInvalidDepartmentAssignment, http.StatusUnprocessableEntity, "invalid_department_assignment"},
		{"denied", model.ErrPermissionDenied, http.StatusForbidden, "forbidden"},
		{"not found", fmt.Errorf("%w: document", model.ErrNotFound), http.StatusNotFound, "not_found"},
		{"conflict", model.ErrConflict, http.StatusConflict, "conflict"},
		{"field errors", model.FieldErrors{"title": "is required"}, http.StatusUnprocessableEntity, "validation_error"},
		{"wrapped field errors", fmt.Errorf("saving: %w", model.FieldErrors{"title": "is required"}), http.StatusUnprocessableEntity, "validation_error"},
		{"internal", errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, body.Error.Code)
			assert.NotContains(t, body.Error.Message, "disk on fire")
		})
	}
}

func TestWriteServiceErrorDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	writeServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), model.FieldErrors{"title": "is required"})
	assert.Equal(t, map[string]string{"title": "is required"}, decodeError(t, rec).Error.Details)
}

func TestParseIDParam(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"1", 1, false},
		{"42", 42, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", tt.raw)
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))

			got, err := ParseIDParam(r)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewMeta(t *testing.T) {
	assert.Equal(t, &Meta{Total: 0, Page: 1, PerPage: 50, Pages: 1}, newMeta(0, 1, 50))
	assert.Equal(t, &Meta{Total: 101, Page: 2, PerPage: 50, Pages: 3}, newMeta(101, 2, 50))
}
