package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"streambox/services/scanner"
)

type scannerService interface {
	Scan(ctx context.Context, pageURL string) ([]string, error)
	ScanAll(ctx context.Context, pageURLs []string) map[string][]string
}

var _ scannerService = (*scanner.Service)(nil)

type ScannerHandler struct {
	Service scannerService
}

func NewScannerHandler(service scannerService) *ScannerHandler {
	return &ScannerHandler{Service: service}
}

func (h *ScannerHandler) Scan(w http.ResponseWriter, r *http.Request) {
	pageURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if pageURL == "" {
		http.Error(w, "url query parameter is required", http.StatusBadRequest)
		return
	}

	links, err := h.Service.Scan(r.Context(), pageURL)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, scanner.ErrFetch) {
			status = http.StatusBadGateway
		}
		http.Error(w, err.Error(), status)
		return
	}

	if links == nil {
		links = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]string{"links": links})
}

func (h *ScannerHandler) ScanBatch(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		URLs []string `json:"urls"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if len(payload.URLs) == 0 {
		http.Error(w, "at least one url is required", http.StatusBadRequest)
		return
	}

	results := h.Service.ScanAll(r.Context(), payload.URLs)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}
