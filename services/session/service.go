// Package session owns the playback state machine. One loaded source at a
// time, one optional subtitle track, explicit lifecycle with an observer
// channel for state changes.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"streambox/models"
)

var (
	ErrLocatorRequired   = errors.New("locator required")
	ErrNoSource          = errors.New("no media loaded")
	ErrFetch             = errors.New("fetch failed")
	ErrUnsupportedFormat = errors.New("unsupported stream format")
	ErrSuperseded        = errors.New("load superseded by a newer load")
	ErrNotActive         = errors.New("session is not playing or paused")
)

// Attacher binds a media source to the player. Attach blocks until the
// source is ready or rejected; Detach releases whatever Attach claimed.
type Attacher interface {
	Attach(ctx context.Context, source models.MediaSource) error
	Detach()
}

// Ledger records playback starts and resume positions.
type Ledger interface {
	RecordHistory(entry models.HistoryEntry)
	SaveResume(locator string, positionSeconds float64, title string)
	LoadResume(locator string) (models.ResumeState, bool)
}

// Library stores downloaded payloads.
type Library interface {
	Put(ctx context.Context, name string, payload []byte) (models.CachedMedia, error)
}

// Service is a playback session. All mutable state lives behind mu; there is
// no package-level state, callers own the instance.
type Service struct {
	attacher Attacher
	httpc    *http.Client
	ledger   Ledger
	library  Library

	mu         sync.Mutex
	id         string
	state      models.SessionState
	source     *models.MediaSource
	subtitle   *models.SubtitleTrack
	position   float64
	duration   float64
	attached   bool
	generation uint64

	events chan models.SessionEvent
	writes chan func()
}

// New builds an idle session. attacher may be nil, in which case direct
// sources load without a readiness probe and adaptive sources are rejected.
func New(attacher Attacher, httpc *http.Client, ledger Ledger, library Library) *Service {
	if httpc == nil {
		httpc = http.DefaultClient
	}
	s := &Service{
		attacher: attacher,
		httpc:    httpc,
		ledger:   ledger,
		library:  library,
		id:       uuid.New().String(),
		state:    models.SessionIdle,
		events:   make(chan models.SessionEvent, 16),
		writes:   make(chan func(), 64),
	}
	go s.runLedgerWrites()
	return s
}

// runLedgerWrites drains the write queue one entry at a time, so history and
// resume writes land in the order the session issued them.
func (s *Service) runLedgerWrites() {
	for fn := range s.writes {
		fn()
	}
}

// enqueueLedgerWrite hands a write to the queue without blocking the caller.
// Ledger writes are best-effort, a full queue drops the write.
func (s *Service) enqueueLedgerWrite(fn func()) {
	select {
	case s.writes <- fn:
	default:
		log.Printf("[session] ledger write queue full, dropping write")
	}
}

// Events exposes state-change notifications. Slow consumers lose events
// rather than blocking the session.
func (s *Service) Events() <-chan models.SessionEvent {
	return s.events
}

// Load replaces whatever is playing with the given locator. A Load issued
// while a previous one is still attaching supersedes it: the older attach
// result is discarded when it eventually lands.
func (s *Service) Load(ctx context.Context, locator, title string) (models.LoadResult, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return models.LoadResult{}, ErrLocatorRequired
	}
	source := models.NewMediaSource(locator, title)

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.detachLocked()
	s.source = &source
	s.position = 0
	s.duration = 0
	s.setStateLocked(models.SessionLoading, "")
	s.mu.Unlock()

	if s.attacher == nil && source.Kind == models.SourceAdaptive {
		err := fmt.Errorf("%w: %s", ErrUnsupportedFormat, locator)
		s.finishLoad(gen, err)
		return models.LoadResult{}, err
	}

	var attachErr error
	if s.attacher != nil {
		attachErr = s.attacher.Attach(ctx, source)
	}
	return s.finishLoad(gen, attachErr)
}

// finishLoad applies the outcome of an attach attempt, unless a newer Load
// has taken over in the meantime.
func (s *Service) finishLoad(gen uint64, attachErr error) (models.LoadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		// A newer Load owns the session now. If this attach succeeded its
		// claim is stale and must be released, the superseding load's
		// teardown ran before this attach completed.
		if attachErr == nil && s.attacher != nil {
			s.attacher.Detach()
		}
		return models.LoadResult{}, ErrSuperseded
	}
	if attachErr != nil {
		s.setStateLocked(models.SessionFailed, attachErr.Error())
		s.source = nil
		s.setStateLocked(models.SessionIdle, "")
		return models.LoadResult{}, attachErr
	}

	s.attached = s.attacher != nil
	s.setStateLocked(models.SessionPlaying, "")

	source := *s.source
	if s.ledger != nil {
		entry := models.HistoryEntry{
			Title:     source.Title,
			Locator:   source.Locator,
			StartedAt: time.Now().UTC(),
		}
		s.enqueueLedgerWrite(func() { s.ledger.RecordHistory(entry) })
	}

	result := models.LoadResult{Status: s.statusLocked()}
	if s.ledger != nil {
		if resume, ok := s.ledger.LoadResume(source.Locator); ok {
			result.Resume = &resume
		}
	}
	return result, nil
}

// Play resumes a paused session. Playing is a no-op.
func (s *Service) Play() (models.SessionStatus, error) {
	return s.toggle(models.SessionPlaying)
}

// Pause suspends a playing session. Paused is a no-op.
func (s *Service) Pause() (models.SessionStatus, error) {
	return s.toggle(models.SessionPaused)
}

func (s *Service) toggle(target models.SessionState) (models.SessionStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != models.SessionPlaying && s.state != models.SessionPaused {
		return models.SessionStatus{}, ErrNotActive
	}
	if s.state != target {
		s.setStateLocked(target, "")
	}
	return s.statusLocked(), nil
}

// SeekRelative moves the position by delta seconds, clamped to the known
// duration. With no duration reported yet the only reachable position is 0.
func (s *Service) SeekRelative(delta float64) (models.SessionStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != models.SessionPlaying && s.state != models.SessionPaused {
		return models.SessionStatus{}, ErrNotActive
	}

	pos := s.position + delta
	if pos < 0 {
		pos = 0
	}
	if pos > s.duration {
		pos = s.duration
	}
	s.position = pos
	return s.statusLocked(), nil
}

// Progress is the player's periodic tick. It updates the in-memory position
// and forwards it to the ledger without blocking the caller. A positive
// duration also refreshes the known duration.
func (s *Service) Progress(position, duration float64) {
	s.mu.Lock()
	if s.state != models.SessionPlaying && s.state != models.SessionPaused {
		s.mu.Unlock()
		return
	}
	if position < 0 {
		position = 0
	}
	s.position = position
	if duration > 0 {
		s.duration = duration
	}
	var locator, title string
	if s.source != nil {
		locator = s.source.Locator
		title = s.source.Title
	}
	s.mu.Unlock()

	if s.ledger != nil && locator != "" {
		s.enqueueLedgerWrite(func() { s.ledger.SaveResume(locator, position, title) })
	}
}

// DownloadCurrent fetches the loaded source in full and stores it in the
// library. The fetch is a single whole-body GET with no retries and no
// deadline of its own; the caller's context bounds it.
func (s *Service) DownloadCurrent(ctx context.Context) (models.CachedMedia, error) {
	s.mu.Lock()
	var source *models.MediaSource
	if s.source != nil {
		src := *s.source
		source = &src
	}
	s.mu.Unlock()

	if source == nil {
		return models.CachedMedia{}, ErrNoSource
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.Locator, nil)
	if err != nil {
		return models.CachedMedia{}, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	resp, err := s.httpc.Do(req)
	if err != nil {
		return models.CachedMedia{}, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.CachedMedia{}, fmt.Errorf("%w: status %d from %s", ErrFetch, resp.StatusCode, source.Locator)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.CachedMedia{}, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	return s.library.Put(ctx, source.Title, payload)
}

// AttachCached starts playing a library entry. No attach probe is needed,
// the payload is local, so the session goes straight to Playing.
func (s *Service) AttachCached(cached models.CachedMedia) models.SessionStatus {
	source := models.MediaSource{
		Locator: fmt.Sprintf("/api/library/%s/payload", cached.ID),
		Kind:    models.SourceDirect,
		Title:   cached.Name,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.detachLocked()
	s.source = &source
	s.position = 0
	s.duration = 0
	s.setStateLocked(models.SessionPlaying, "")
	return s.statusLocked()
}

// AttachSubtitle replaces the live subtitle track, if any.
func (s *Service) AttachSubtitle(track models.SubtitleTrack) models.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subtitle = &track
	return s.statusLocked()
}

// ClearSubtitle drops the live subtitle track.
func (s *Service) ClearSubtitle() models.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subtitle = nil
	return s.statusLocked()
}

// Status returns a snapshot of the session.
func (s *Service) Status() models.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

// Close tears down the session back to idle. The final position is saved
// first so the viewer can pick up where they left off. The session stays
// usable for further loads.
func (s *Service) Close() {
	s.mu.Lock()

	var locator, title string
	var position float64
	if s.source != nil && s.position > 0 {
		locator = s.source.Locator
		title = s.source.Title
		position = s.position
	}

	s.generation++
	s.detachLocked()
	s.source = nil
	s.position = 0
	s.duration = 0
	if s.state != models.SessionIdle {
		s.setStateLocked(models.SessionIdle, "")
	}
	s.mu.Unlock()

	if s.ledger != nil && locator != "" {
		// Queued behind any outstanding progress writes so the final
		// position is what actually sticks. Close waits for the flush.
		done := make(chan struct{})
		s.writes <- func() {
			s.ledger.SaveResume(locator, position, title)
			close(done)
		}
		<-done
	}
}

// detachLocked releases the current attachment and subtitle. Every path
// that installs a new source goes through here first, so at most one
// attachment can ever be live.
func (s *Service) detachLocked() {
	if s.attached {
		s.attacher.Detach()
		s.attached = false
	}
	s.subtitle = nil
}

func (s *Service) setStateLocked(state models.SessionState, errMsg string) {
	s.state = state
	ev := models.SessionEvent{
		State:      state,
		Generation: s.generation,
		Err:        errMsg,
		At:         time.Now().UTC(),
	}
	if s.source != nil {
		ev.Locator = s.source.Locator
	}
	select {
	case s.events <- ev:
	default:
		log.Printf("[session] event buffer full, dropping %s", state)
	}
}

func (s *Service) statusLocked() models.SessionStatus {
	status := models.SessionStatus{
		SessionID:       s.id,
		State:           s.state,
		PositionSeconds: s.position,
		DurationSeconds: s.duration,
	}
	if s.source != nil {
		src := *s.source
		status.Source = &src
	}
	if s.subtitle != nil {
		status.SubtitleLabel = s.subtitle.Label
	}
	return status
}
