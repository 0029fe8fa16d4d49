package models

import "time"

// SessionState names a playback session lifecycle state.
type SessionState string

const (
	SessionIdle    SessionState = "idle"
	SessionLoading SessionState = "loading"
	SessionPlaying SessionState = "playing"
	SessionPaused  SessionState = "paused"
	SessionFailed  SessionState = "failed"
)

// SessionStatus is a point-in-time snapshot of a playback session.
type SessionStatus struct {
	SessionID       string       `json:"sessionId"`
	State           SessionState `json:"state"`
	Source          *MediaSource `json:"source,omitempty"`
	PositionSeconds float64      `json:"positionSeconds"`
	DurationSeconds float64      `json:"durationSeconds"`
	SubtitleLabel   string       `json:"subtitleLabel,omitempty"`
}

// SessionEvent is emitted by the session when its state changes.
type SessionEvent struct {
	State      SessionState `json:"state"`
	Generation uint64       `json:"generation"`
	Locator    string       `json:"locator,omitempty"`
	Err        string       `json:"error,omitempty"`
	At         time.Time    `json:"at"`
}

// LoadResult is returned by a successful session load. Resume is an offer,
// never applied automatically.
type LoadResult struct {
	Status SessionStatus `json:"status"`
	Resume *ResumeState  `json:"resume,omitempty"`
}
