package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/afero"
	"gopkg.in/natefinch/lumberjack.v2"

	"streambox/api"
	"streambox/config"
	"streambox/handlers"
	"streambox/internal/database"
	"streambox/services/ledger"
	"streambox/services/library"
	"streambox/services/scanner"
	"streambox/services/session"
	"streambox/services/subtitles"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	fmt.Println("🚀 StreamBox Backend Starting...")

	// Determine config path (env or default)
	configPath := os.Getenv("STREAMBOX_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("cache", "settings.json")
	}

	// Init config manager and load settings (creates defaults if missing)
	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// Set up file logging with rotation
	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			// Redirect standard log to both console and file
			multiWriter := io.MultiWriter(os.Stdout, fileWriter)
			log.SetOutput(multiWriter)
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("Logging to file: %s", settings.Log.File)
		}
	}

	// Apply port override if specified
	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	// Media index database
	db, err := database.Open(filepath.Join(settings.Storage.Directory, "index.db"))
	if err != nil {
		log.Fatalf("failed to open media index: %v", err)
	}
	defer db.Close()

	// Services
	librarySvc, err := library.NewService(db, afero.NewOsFs(), filepath.Join(settings.Storage.Directory, "media"))
	if err != nil {
		log.Fatalf("failed to init library: %v", err)
	}

	ledgerSvc, err := ledger.NewService(settings.Storage.Directory)
	if err != nil {
		log.Fatalf("failed to init ledger: %v", err)
	}

	subtitleClient := subtitles.NewClient(
		settings.Subtitles.APIKey,
		settings.Subtitles.Language,
		settings.Subtitles.BaseURL,
		nil,
	)

	scannerSvc := scanner.NewService(settings.Scanner.ProxyURL, settings.Scanner.MaxConcurrent, nil)

	attacher := session.NewHTTPAttacher(&http.Client{Timeout: 15 * time.Second})
	sessionSvc := session.New(attacher, nil, ledgerSvc, librarySvc)

	// Handlers and routes
	libraryHandler := handlers.NewLibraryHandler(librarySvc)
	sessionHandler := handlers.NewSessionHandler(sessionSvc, librarySvc)
	historyHandler := handlers.NewHistoryHandler(ledgerSvc)
	subtitlesHandler := handlers.NewSubtitlesHandler(subtitleClient, sessionSvc)
	scannerHandler := handlers.NewScannerHandler(scannerSvc)

	r := mux.NewRouter()
	api.Register(r, libraryHandler, sessionHandler, historyHandler, subtitlesHandler, scannerHandler)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	fmt.Printf("Server starting on %s\n", addr)

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // No write timeout for streaming
		IdleTimeout:  120 * time.Second,
	}

	// Setup graceful shutdown
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("🛑 Shutdown signal received, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Close the playback session so the last position is persisted
	sessionSvc.Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}
