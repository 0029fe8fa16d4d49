package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"streambox/models"
	"streambox/services/library"
)

type libraryService interface {
	List(ctx context.Context) ([]models.CachedMedia, error)
	Get(ctx context.Context, id string) (models.CachedMedia, error)
	Open(ctx context.Context, id string) (models.CachedMedia, io.ReadCloser, error)
	Delete(ctx context.Context, id string) error
}

var _ libraryService = (*library.Service)(nil)

type LibraryHandler struct {
	Service libraryService
}

func NewLibraryHandler(service libraryService) *LibraryHandler {
	return &LibraryHandler{Service: service}
}

func (h *LibraryHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(items)
}

func (h *LibraryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["id"])
	if id == "" {
		http.Error(w, "media id is required", http.StatusBadRequest)
		return
	}

	item, err := h.Service.Get(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, library.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(item)
}

// Payload streams the stored bytes with download-friendly headers so the
// browser can either play or export the entry.
func (h *LibraryHandler) Payload(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["id"])
	if id == "" {
		http.Error(w, "media id is required", http.StatusBadRequest)
		return
	}

	item, reader, err := h.Service.Open(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, library.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	defer reader.Close()

	mimeType := item.MIMEType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(item.Size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", item.Name))
	io.Copy(w, reader)
}

func (h *LibraryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["id"])
	if id == "" {
		http.Error(w, "media id is required", http.StatusBadRequest)
		return
	}

	if err := h.Service.Delete(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
