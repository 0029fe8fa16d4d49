package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"streambox/models"
	"streambox/services/library"
	"streambox/services/session"
)

type sessionService interface {
	Load(ctx context.Context, locator, title string) (models.LoadResult, error)
	Play() (models.SessionStatus, error)
	Pause() (models.SessionStatus, error)
	SeekRelative(delta float64) (models.SessionStatus, error)
	Progress(position, duration float64)
	DownloadCurrent(ctx context.Context) (models.CachedMedia, error)
	AttachCached(cached models.CachedMedia) models.SessionStatus
	AttachSubtitle(track models.SubtitleTrack) models.SessionStatus
	ClearSubtitle() models.SessionStatus
	Status() models.SessionStatus
	Close()
}

var _ sessionService = (*session.Service)(nil)

type cachedLookup interface {
	Get(ctx context.Context, id string) (models.CachedMedia, error)
}

type SessionHandler struct {
	Session sessionService
	Library cachedLookup
}

func NewSessionHandler(svc sessionService, lib cachedLookup) *SessionHandler {
	return &SessionHandler{Session: svc, Library: lib}
}

// sessionErrorStatus maps session errors onto HTTP statuses.
func sessionErrorStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrLocatorRequired):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, session.ErrNoSource), errors.Is(err, session.ErrNotActive), errors.Is(err, session.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, session.ErrFetch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Session.Status())
}

func (h *SessionHandler) Load(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Locator string `json:"locator"`
		Title   string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	result, err := h.Session.Load(r.Context(), payload.Locator, payload.Title)
	if err != nil {
		http.Error(w, err.Error(), sessionErrorStatus(err))
		return
	}
	writeJSON(w, result)
}

func (h *SessionHandler) Play(w http.ResponseWriter, r *http.Request) {
	status, err := h.Session.Play()
	if err != nil {
		http.Error(w, err.Error(), sessionErrorStatus(err))
		return
	}
	writeJSON(w, status)
}

func (h *SessionHandler) Pause(w http.ResponseWriter, r *http.Request) {
	status, err := h.Session.Pause()
	if err != nil {
		http.Error(w, err.Error(), sessionErrorStatus(err))
		return
	}
	writeJSON(w, status)
}

func (h *SessionHandler) Seek(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Delta float64 `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	status, err := h.Session.SeekRelative(payload.Delta)
	if err != nil {
		http.Error(w, err.Error(), sessionErrorStatus(err))
		return
	}
	writeJSON(w, status)
}

func (h *SessionHandler) Progress(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Position float64 `json:"position"`
		Duration float64 `json:"duration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	h.Session.Progress(payload.Position, payload.Duration)
	writeJSON(w, h.Session.Status())
}

func (h *SessionHandler) Download(w http.ResponseWriter, r *http.Request) {
	item, err := h.Session.DownloadCurrent(r.Context())
	if err != nil {
		http.Error(w, err.Error(), sessionErrorStatus(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(item)
}

func (h *SessionHandler) AttachCached(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["id"])
	if id == "" {
		http.Error(w, "media id is required", http.StatusBadRequest)
		return
	}

	cached, err := h.Library.Get(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, library.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, h.Session.AttachCached(cached))
}

// AttachSubtitle accepts a raw subtitle body, label and language come from
// query parameters. Uploads from the page are small, reading fully is fine.
func (h *SessionHandler) AttachSubtitle(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil || len(data) == 0 {
		http.Error(w, "subtitle payload is required", http.StatusBadRequest)
		return
	}

	label := strings.TrimSpace(r.URL.Query().Get("label"))
	if label == "" {
		label = "Uploaded"
	}

	track := models.SubtitleTrack{
		Label:    label,
		Language: strings.TrimSpace(r.URL.Query().Get("language")),
		Data:     data,
	}
	writeJSON(w, h.Session.AttachSubtitle(track))
}

func (h *SessionHandler) ClearSubtitle(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Session.ClearSubtitle())
}

func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	h.Session.Close()
	writeJSON(w, h.Session.Status())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
