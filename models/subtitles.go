package models

// SubtitleCandidate is one search result from the subtitle provider.
type SubtitleCandidate struct {
	ID       string `json:"id"`
	FileID   int64  `json:"fileId,omitempty"`
	Label    string `json:"label"`
	Language string `json:"language"`
}

// SubtitleTrack is a fetched or uploaded subtitle attached to the session.
// At most one track is live at a time.
type SubtitleTrack struct {
	Label    string `json:"label"`
	Language string `json:"language,omitempty"`
	Data     []byte `json:"-"`
}
