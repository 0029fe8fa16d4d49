package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"streambox/handlers"
	"streambox/models"
	"streambox/services/library"
)

type fakeLibraryService struct {
	items   []models.CachedMedia
	item    models.CachedMedia
	err     error
	deleted []string
}

func (f *fakeLibraryService) List(ctx context.Context) ([]models.CachedMedia, error) {
	return f.items, f.err
}

func (f *fakeLibraryService) Get(ctx context.Context, id string) (models.CachedMedia, error) {
	if f.err != nil {
		return models.CachedMedia{}, f.err
	}
	return f.item, nil
}

func (f *fakeLibraryService) Open(ctx context.Context, id string) (models.CachedMedia, io.ReadCloser, error) {
	if f.err != nil {
		return models.CachedMedia{}, nil, f.err
	}
	return f.item, io.NopCloser(bytes.NewReader(f.item.Payload)), nil
}

func (f *fakeLibraryService) Delete(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

func TestLibraryList(t *testing.T) {
	svc := &fakeLibraryService{items: []models.CachedMedia{
		{ID: "v_2", Name: "two.mp4", Size: 20, CreatedAt: time.Now()},
		{ID: "v_1", Name: "one.mp4", Size: 10, CreatedAt: time.Now().Add(-time.Minute)},
	}}
	handler := handlers.NewLibraryHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/library", nil)
	rec := httptest.NewRecorder()
	handler.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []models.CachedMedia
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 2 || got[0].ID != "v_2" {
		t.Fatalf("unexpected items: %+v", got)
	}
}

func TestLibraryGetNotFound(t *testing.T) {
	handler := handlers.NewLibraryHandler(&fakeLibraryService{err: library.ErrNotFound})

	req := httptest.NewRequest(http.MethodGet, "/api/library/v_9", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "v_9"})
	rec := httptest.NewRecorder()
	handler.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestLibraryPayloadHeaders(t *testing.T) {
	svc := &fakeLibraryService{item: models.CachedMedia{
		ID:       "v_1",
		Name:     "clip.mp4",
		MIMEType: "video/mp4",
		Size:     9,
		Payload:  []byte("123456789"),
	}}
	handler := handlers.NewLibraryHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/library/v_1/payload", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "v_1"})
	rec := httptest.NewRecorder()
	handler.Payload(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "video/mp4" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cl := rec.Header().Get("Content-Length"); cl != "9" {
		t.Fatalf("unexpected content length %q", cl)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="clip.mp4"` {
		t.Fatalf("unexpected disposition %q", cd)
	}
	if rec.Body.String() != "123456789" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestLibraryDelete(t *testing.T) {
	svc := &fakeLibraryService{}
	handler := handlers.NewLibraryHandler(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/library/v_1", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "v_1"})
	rec := httptest.NewRecorder()
	handler.Delete(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(svc.deleted) != 1 || svc.deleted[0] != "v_1" {
		t.Fatalf("delete not forwarded: %v", svc.deleted)
	}
}

func TestLibraryDeleteMissingID(t *testing.T) {
	handler := handlers.NewLibraryHandler(&fakeLibraryService{})

	req := httptest.NewRequest(http.MethodDelete, "/api/library/", nil)
	rec := httptest.NewRecorder()
	handler.Delete(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
