package models

import (
	"net/url"
	"path"
	"strings"
	"time"
)

// SourceKind distinguishes how a locator must be handed to the player.
type SourceKind string

const (
	// SourceDirect is assignable straight to the native media element.
	SourceDirect SourceKind = "direct"
	// SourceAdaptive is a manifest-described stream that needs an adaptive
	// attachment before the media element can play it.
	SourceAdaptive SourceKind = "adaptive"
)

// MediaSource identifies playable content. It is ephemeral: history entries
// and resume states are derived snapshots, the source itself is never stored.
type MediaSource struct {
	Locator string     `json:"locator"`
	Kind    SourceKind `json:"kind"`
	Title   string     `json:"title"`
}

// DetectKind classifies a locator by its path suffix. The query string is
// ignored, so "stream.m3u8?token=x" still selects the adaptive kind.
func DetectKind(locator string) SourceKind {
	p := locator
	if u, err := url.Parse(locator); err == nil && u.Path != "" {
		p = u.Path
	}
	if strings.HasSuffix(strings.ToLower(p), ".m3u8") {
		return SourceAdaptive
	}
	return SourceDirect
}

// NewMediaSource builds a source for the locator, deriving a display title
// from the locator's path basename when none is supplied.
func NewMediaSource(locator, title string) MediaSource {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DeriveTitle(locator)
	}
	return MediaSource{
		Locator: locator,
		Kind:    DetectKind(locator),
		Title:   title,
	}
}

// DeriveTitle extracts a human-readable name from a locator, falling back to
// the raw locator when it does not parse as a URL.
func DeriveTitle(locator string) string {
	u, err := url.Parse(locator)
	if err != nil || u.Path == "" {
		return locator
	}
	base := path.Base(u.Path)
	if base == "" || base == "/" || base == "." {
		return locator
	}
	if decoded, err := url.PathUnescape(base); err == nil {
		return decoded
	}
	return base
}

// CachedMedia is a downloaded, persisted video owned by the library service.
type CachedMedia struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	MIMEType  string    `json:"mimeType,omitempty"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`

	// Payload is populated by Get, left nil by List.
	Payload []byte `json:"-"`
}

// HistoryEntry is one playback start event.
type HistoryEntry struct {
	Title     string    `json:"title"`
	Locator   string    `json:"locator"`
	StartedAt time.Time `json:"startedAt"`
}

// ResumeState is the last known playback position for a locator.
type ResumeState struct {
	Locator         string    `json:"locator"`
	PositionSeconds float64   `json:"positionSeconds"`
	SavedAt         time.Time `json:"savedAt"`
	Title           string    `json:"title,omitempty"`
}
