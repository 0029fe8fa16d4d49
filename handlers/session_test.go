package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"streambox/handlers"
	"streambox/models"
	"streambox/services/library"
	"streambox/services/session"
)

type fakeSession struct {
	loadResult models.LoadResult
	loadErr    error
	status     models.SessionStatus
	statusErr  error
	cached     []models.CachedMedia
	subtitles  []models.SubtitleTrack
	cleared    int
	closed     int
	downloaded models.CachedMedia
	dlErr      error
	progress   []float64
}

func (f *fakeSession) Load(ctx context.Context, locator, title string) (models.LoadResult, error) {
	return f.loadResult, f.loadErr
}

func (f *fakeSession) Play() (models.SessionStatus, error)  { return f.status, f.statusErr }
func (f *fakeSession) Pause() (models.SessionStatus, error) { return f.status, f.statusErr }

func (f *fakeSession) SeekRelative(delta float64) (models.SessionStatus, error) {
	return f.status, f.statusErr
}

func (f *fakeSession) Progress(position, duration float64) {
	f.progress = append(f.progress, position, duration)
}

func (f *fakeSession) DownloadCurrent(ctx context.Context) (models.CachedMedia, error) {
	return f.downloaded, f.dlErr
}

func (f *fakeSession) AttachCached(cached models.CachedMedia) models.SessionStatus {
	f.cached = append(f.cached, cached)
	return f.status
}

func (f *fakeSession) AttachSubtitle(track models.SubtitleTrack) models.SessionStatus {
	f.subtitles = append(f.subtitles, track)
	return f.status
}

func (f *fakeSession) ClearSubtitle() models.SessionStatus {
	f.cleared++
	return f.status
}

func (f *fakeSession) Status() models.SessionStatus { return f.status }
func (f *fakeSession) Close()                       { f.closed++ }

type fakeCachedLookup struct {
	item models.CachedMedia
	err  error
}

func (f *fakeCachedLookup) Get(ctx context.Context, id string) (models.CachedMedia, error) {
	if f.err != nil {
		return models.CachedMedia{}, f.err
	}
	return f.item, nil
}

func TestSessionLoad(t *testing.T) {
	svc := &fakeSession{loadResult: models.LoadResult{
		Status: models.SessionStatus{State: models.SessionPlaying},
		Resume: &models.ResumeState{PositionSeconds: 30},
	}}
	handler := handlers.NewSessionHandler(svc, &fakeCachedLookup{})

	body := bytes.NewBufferString(`{"locator":"http://cdn.example/clip.mp4"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/session/load", body)
	rec := httptest.NewRecorder()
	handler.Load(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got models.LoadResult
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Status.State != models.SessionPlaying || got.Resume == nil {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestSessionLoadBadJSON(t *testing.T) {
	handler := handlers.NewSessionHandler(&fakeSession{}, &fakeCachedLookup{})

	req := httptest.NewRequest(http.MethodPost, "/api/session/load", strings.NewReader("{broken"))
	rec := httptest.NewRecorder()
	handler.Load(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSessionLoadErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{session.ErrLocatorRequired, http.StatusBadRequest},
		{session.ErrUnsupportedFormat, http.StatusUnsupportedMediaType},
		{session.ErrSuperseded, http.StatusConflict},
		{session.ErrFetch, http.StatusBadGateway},
	}
	for _, tc := range cases {
		handler := handlers.NewSessionHandler(&fakeSession{loadErr: tc.err}, &fakeCachedLookup{})

		body := bytes.NewBufferString(`{"locator":"http://cdn.example/x.mp4"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/session/load", body)
		rec := httptest.NewRecorder()
		handler.Load(rec, req)

		if rec.Code != tc.want {
			t.Fatalf("error %v: expected %d, got %d", tc.err, tc.want, rec.Code)
		}
	}
}

func TestSessionDownloadNoSource(t *testing.T) {
	handler := handlers.NewSessionHandler(&fakeSession{dlErr: session.ErrNoSource}, &fakeCachedLookup{})

	req := httptest.NewRequest(http.MethodPost, "/api/session/download", nil)
	rec := httptest.NewRecorder()
	handler.Download(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestSessionDownloadCreated(t *testing.T) {
	svc := &fakeSession{downloaded: models.CachedMedia{ID: "v_1", Name: "clip.mp4"}}
	handler := handlers.NewSessionHandler(svc, &fakeCachedLookup{})

	req := httptest.NewRequest(http.MethodPost, "/api/session/download", nil)
	rec := httptest.NewRecorder()
	handler.Download(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
}

func TestSessionAttachCached(t *testing.T) {
	svc := &fakeSession{status: models.SessionStatus{State: models.SessionPlaying}}
	lookup := &fakeCachedLookup{item: models.CachedMedia{ID: "v_1", Name: "saved.mp4"}}
	handler := handlers.NewSessionHandler(svc, lookup)

	req := httptest.NewRequest(http.MethodPost, "/api/session/cached/v_1", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "v_1"})
	rec := httptest.NewRecorder()
	handler.AttachCached(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(svc.cached) != 1 || svc.cached[0].ID != "v_1" {
		t.Fatalf("cached item not forwarded: %+v", svc.cached)
	}
}

func TestSessionAttachCachedNotFound(t *testing.T) {
	handler := handlers.NewSessionHandler(&fakeSession{}, &fakeCachedLookup{err: library.ErrNotFound})

	req := httptest.NewRequest(http.MethodPost, "/api/session/cached/v_9", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "v_9"})
	rec := httptest.NewRecorder()
	handler.AttachCached(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSessionAttachSubtitleUpload(t *testing.T) {
	svc := &fakeSession{}
	handler := handlers.NewSessionHandler(svc, &fakeCachedLookup{})

	body := strings.NewReader("WEBVTT\n")
	req := httptest.NewRequest(http.MethodPost, "/api/session/subtitle?label=English&language=en", body)
	rec := httptest.NewRecorder()
	handler.AttachSubtitle(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(svc.subtitles) != 1 {
		t.Fatalf("subtitle not forwarded")
	}
	track := svc.subtitles[0]
	if track.Label != "English" || track.Language != "en" || string(track.Data) != "WEBVTT\n" {
		t.Fatalf("unexpected track: %+v", track)
	}
}

func TestSessionAttachSubtitleEmptyBody(t *testing.T) {
	handler := handlers.NewSessionHandler(&fakeSession{}, &fakeCachedLookup{})

	req := httptest.NewRequest(http.MethodPost, "/api/session/subtitle", strings.NewReader(""))
	rec := httptest.NewRecorder()
	handler.AttachSubtitle(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSessionProgressForwarded(t *testing.T) {
	svc := &fakeSession{}
	handler := handlers.NewSessionHandler(svc, &fakeCachedLookup{})

	body := bytes.NewBufferString(`{"position":12.5,"duration":90}`)
	req := httptest.NewRequest(http.MethodPost, "/api/session/progress", body)
	rec := httptest.NewRecorder()
	handler.Progress(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(svc.progress) != 2 || svc.progress[0] != 12.5 || svc.progress[1] != 90 {
		t.Fatalf("progress not forwarded: %v", svc.progress)
	}
}

func TestSessionClose(t *testing.T) {
	svc := &fakeSession{status: models.SessionStatus{State: models.SessionIdle}}
	handler := handlers.NewSessionHandler(svc, &fakeCachedLookup{})

	req := httptest.NewRequest(http.MethodPost, "/api/session/close", nil)
	rec := httptest.NewRecorder()
	handler.Close(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.closed != 1 {
		t.Fatalf("close not forwarded")
	}
}
