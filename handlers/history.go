package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"streambox/models"
	"streambox/services/ledger"
)

type ledgerService interface {
	ListHistory() []models.HistoryEntry
	LoadResume(locator string) (models.ResumeState, bool)
}

var _ ledgerService = (*ledger.Service)(nil)

type HistoryHandler struct {
	Service ledgerService
}

func NewHistoryHandler(service ledgerService) *HistoryHandler {
	return &HistoryHandler{Service: service}
}

func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Service.ListHistory())
}

// Resume looks up the stored position for a locator. Misses are a normal
// outcome and come back as a JSON 404, never a server error.
func (h *HistoryHandler) Resume(w http.ResponseWriter, r *http.Request) {
	locator := strings.TrimSpace(r.URL.Query().Get("locator"))
	if locator == "" {
		http.Error(w, "locator query parameter is required", http.StatusBadRequest)
		return
	}

	state, ok := h.Service.LoadResume(locator)
	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "no resume state for locator"})
		return
	}
	json.NewEncoder(w).Encode(state)
}
