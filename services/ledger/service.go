// Package ledger keeps the watch history log and per-locator resume
// positions. Both are conveniences: writes are best-effort and a damaged
// ledger file resets to empty instead of failing startup.
package ledger

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"streambox/models"
)

// HistoryCap bounds the history log; older entries are evicted silently.
const HistoryCap = 50

var ErrStorageDirRequired = errors.New("storage directory not provided")

// Service persists the history log and resume map as one JSON file guarded
// by a read-write mutex.
type Service struct {
	mu      sync.RWMutex
	path    string
	history []models.HistoryEntry
	resume  map[string]models.ResumeState
}

type ledgerFile struct {
	History []models.HistoryEntry         `json:"history"`
	Resume  map[string]models.ResumeState `json:"resume"`
}

// NewService creates a ledger storing data inside the provided directory.
func NewService(storageDir string) (*Service, error) {
	if strings.TrimSpace(storageDir) == "" {
		return nil, ErrStorageDirRequired
	}

	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}

	svc := &Service{
		path:    filepath.Join(storageDir, "ledger.json"),
		history: make([]models.HistoryEntry, 0),
		resume:  make(map[string]models.ResumeState),
	}
	svc.load()
	return svc, nil
}

// RecordHistory prepends the entry and truncates the log to HistoryCap.
// The write is attempted before returning but a failure only logs: losing
// history is non-critical.
func (s *Service) RecordHistory(entry models.HistoryEntry) {
	entry.Title = strings.TrimSpace(entry.Title)
	if entry.StartedAt.IsZero() {
		entry.StartedAt = time.Now().UTC()
	} else {
		entry.StartedAt = entry.StartedAt.UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append([]models.HistoryEntry{entry}, s.history...)
	if len(s.history) > HistoryCap {
		s.history = s.history[:HistoryCap]
	}
	s.saveLocked()
}

// ListHistory returns the log newest first.
func (s *Service) ListHistory() []models.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.HistoryEntry, len(s.history))
	copy(out, s.history)
	return out
}

// SaveResume upserts the position for the locator, last write wins. Failures
// are swallowed; resume state is advisory.
func (s *Service) SaveResume(locator string, positionSeconds float64, title string) {
	if strings.TrimSpace(locator) == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.resume[resumeKey(locator)] = models.ResumeState{
		Locator:         locator,
		PositionSeconds: positionSeconds,
		SavedAt:         time.Now().UTC(),
		Title:           strings.TrimSpace(title),
	}
	s.saveLocked()
}

// LoadResume looks up the stored position for the locator. A miss reports
// ok=false; callers treat missing and unusable state identically.
func (s *Service) LoadResume(locator string) (models.ResumeState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.resume[resumeKey(locator)]
	if !ok || state.PositionSeconds <= 0 {
		return models.ResumeState{}, false
	}
	return state, true
}

// resumeKey derives the storage key for a locator. Locators may contain
// arbitrary bytes, so the key is the unpadded URL-safe base64 of the raw
// locator: total over every input, reversible, one key per locator.
func resumeKey(locator string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(locator))
}

func (s *Service) load() {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err != nil {
		log.Printf("[ledger] read %s: %v (starting empty)", s.path, err)
		return
	}

	var decoded ledgerFile
	if err := json.Unmarshal(data, &decoded); err != nil {
		log.Printf("[ledger] decode %s: %v (starting empty)", s.path, err)
		return
	}

	if decoded.History != nil {
		if len(decoded.History) > HistoryCap {
			decoded.History = decoded.History[:HistoryCap]
		}
		s.history = decoded.History
	}
	if decoded.Resume != nil {
		s.resume = decoded.Resume
	}
}

func (s *Service) saveLocked() {
	data, err := json.MarshalIndent(ledgerFile{History: s.history, Resume: s.resume}, "", "  ")
	if err != nil {
		log.Printf("[ledger] encode: %v", err)
		return
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		log.Printf("[ledger] write %s: %v", s.path, err)
	}
}
