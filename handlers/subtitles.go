package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"streambox/models"
	"streambox/services/subtitles"
)

type subtitleProvider interface {
	Search(ctx context.Context, title, language string) ([]models.SubtitleCandidate, error)
	Resolve(ctx context.Context, candidate models.SubtitleCandidate) (string, error)
	Fetch(ctx context.Context, link string) ([]byte, error)
}

var _ subtitleProvider = (*subtitles.Client)(nil)

type subtitleSink interface {
	AttachSubtitle(track models.SubtitleTrack) models.SessionStatus
}

type SubtitlesHandler struct {
	Provider subtitleProvider
	Session  subtitleSink
}

func NewSubtitlesHandler(provider subtitleProvider, sink subtitleSink) *SubtitlesHandler {
	return &SubtitlesHandler{Provider: provider, Session: sink}
}

func subtitleErrorStatus(err error) int {
	switch {
	case errors.Is(err, subtitles.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, subtitles.ErrNoDownloadable):
		return http.StatusNotFound
	case errors.Is(err, subtitles.ErrProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *SubtitlesHandler) Search(w http.ResponseWriter, r *http.Request) {
	title := strings.TrimSpace(r.URL.Query().Get("title"))
	if title == "" {
		http.Error(w, "title query parameter is required", http.StatusBadRequest)
		return
	}

	candidates, err := h.Provider.Search(r.Context(), title, r.URL.Query().Get("language"))
	if err != nil {
		http.Error(w, err.Error(), subtitleErrorStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(candidates)
}

// Attach resolves a search candidate, fetches the track, and hands it to
// the playback session in one request.
func (h *SubtitlesHandler) Attach(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ID       string `json:"id"`
		FileID   int64  `json:"fileId"`
		Label    string `json:"label"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	candidate := models.SubtitleCandidate{
		ID:       payload.ID,
		FileID:   payload.FileID,
		Label:    payload.Label,
		Language: payload.Language,
	}

	link, err := h.Provider.Resolve(r.Context(), candidate)
	if err != nil {
		http.Error(w, err.Error(), subtitleErrorStatus(err))
		return
	}

	data, err := h.Provider.Fetch(r.Context(), link)
	if err != nil {
		http.Error(w, err.Error(), subtitleErrorStatus(err))
		return
	}

	label := strings.TrimSpace(candidate.Label)
	if label == "" {
		label = candidate.Language
	}
	status := h.Session.AttachSubtitle(models.SubtitleTrack{
		Label:    label,
		Language: candidate.Language,
		Data:     data,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}
