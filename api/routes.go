package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"streambox/handlers"
)

// corsMiddleware handles CORS for API routes
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleOptions handles OPTIONS requests for CORS preflight
func handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Register mounts API endpoints onto the provided router.
func Register(
	r *mux.Router,
	libraryHandler *handlers.LibraryHandler,
	sessionHandler *handlers.SessionHandler,
	historyHandler *handlers.HistoryHandler,
	subtitlesHandler *handlers.SubtitlesHandler,
	scannerHandler *handlers.ScannerHandler,
) {
	api := r.PathPrefix("/api").Subrouter()
	api.Use(corsMiddleware)

	// Cached media library
	api.HandleFunc("/library", libraryHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/library", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/library/{id}", libraryHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/library/{id}", libraryHandler.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/library/{id}", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/library/{id}/payload", libraryHandler.Payload).Methods(http.MethodGet)
	api.HandleFunc("/library/{id}/payload", handleOptions).Methods(http.MethodOptions)

	// Playback session
	api.HandleFunc("/session", sessionHandler.Status).Methods(http.MethodGet)
	api.HandleFunc("/session", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/session/load", sessionHandler.Load).Methods(http.MethodPost)
	api.HandleFunc("/session/load", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/session/play", sessionHandler.Play).Methods(http.MethodPost)
	api.HandleFunc("/session/play", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/session/pause", sessionHandler.Pause).Methods(http.MethodPost)
	api.HandleFunc("/session/pause", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/session/seek", sessionHandler.Seek).Methods(http.MethodPost)
	api.HandleFunc("/session/seek", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/session/progress", sessionHandler.Progress).Methods(http.MethodPost)
	api.HandleFunc("/session/progress", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/session/download", sessionHandler.Download).Methods(http.MethodPost)
	api.HandleFunc("/session/download", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/session/cached/{id}", sessionHandler.AttachCached).Methods(http.MethodPost)
	api.HandleFunc("/session/cached/{id}", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/session/subtitle", sessionHandler.AttachSubtitle).Methods(http.MethodPost)
	api.HandleFunc("/session/subtitle", sessionHandler.ClearSubtitle).Methods(http.MethodDelete)
	api.HandleFunc("/session/subtitle", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/session/close", sessionHandler.Close).Methods(http.MethodPost)
	api.HandleFunc("/session/close", handleOptions).Methods(http.MethodOptions)

	// History and resume
	api.HandleFunc("/history", historyHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/history", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/resume", historyHandler.Resume).Methods(http.MethodGet)
	api.HandleFunc("/resume", handleOptions).Methods(http.MethodOptions)

	// Subtitle provider
	api.HandleFunc("/subtitles/search", subtitlesHandler.Search).Methods(http.MethodGet)
	api.HandleFunc("/subtitles/search", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/subtitles/attach", subtitlesHandler.Attach).Methods(http.MethodPost)
	api.HandleFunc("/subtitles/attach", handleOptions).Methods(http.MethodOptions)

	// Page link scanner
	api.HandleFunc("/scanner/scan", scannerHandler.Scan).Methods(http.MethodGet)
	api.HandleFunc("/scanner/scan", scannerHandler.ScanBatch).Methods(http.MethodPost)
	api.HandleFunc("/scanner/scan", handleOptions).Methods(http.MethodOptions)
}
