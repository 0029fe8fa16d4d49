// Package subtitles talks to an OpenSubtitles-compatible provider: search
// for candidates, resolve a candidate to a download link, fetch the track.
package subtitles

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"streambox/models"
)

const defaultBaseURL = "https://api.opensubtitles.com/api/v1"

var (
	ErrNotConfigured  = errors.New("subtitle provider API key not configured")
	ErrNoDownloadable = errors.New("candidate has no downloadable file")
	ErrProvider       = errors.New("subtitle provider request failed")
)

// Client is a thin provider client. One request per call, no retries; a
// failed lookup is surfaced to the viewer instead of hammering the provider.
type Client struct {
	apiKey   string
	language string
	baseURL  string
	httpc    *http.Client
}

// NewClient builds a client. baseURL is overridable for tests; empty selects
// the public endpoint. language is the default search language.
func NewClient(apiKey, language, baseURL string, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if strings.TrimSpace(language) == "" {
		language = "en"
	}
	return &Client{
		apiKey:   strings.TrimSpace(apiKey),
		language: language,
		baseURL:  strings.TrimRight(baseURL, "/"),
		httpc:    httpc,
	}
}

func (c *Client) isConfigured() bool {
	return c != nil && c.apiKey != ""
}

type searchResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Language string `json:"language"`
			Release  string `json:"release"`
			Files    []struct {
				FileID   int64  `json:"file_id"`
				FileName string `json:"file_name"`
			} `json:"files"`
		} `json:"attributes"`
	} `json:"data"`
}

// Search queries the provider for subtitle candidates matching the title.
// An empty language falls back to the client default.
func (c *Client) Search(ctx context.Context, title, language string) ([]models.SubtitleCandidate, error) {
	if !c.isConfigured() {
		return nil, ErrNotConfigured
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: empty query", ErrProvider)
	}
	if language == "" {
		language = c.language
	}

	params := url.Values{}
	params.Set("query", title)
	params.Set("languages", language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/subtitles?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: search status %d", ErrProvider, resp.StatusCode)
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decode search response: %v", ErrProvider, err)
	}

	candidates := make([]models.SubtitleCandidate, 0, len(decoded.Data))
	for _, item := range decoded.Data {
		if len(item.Attributes.Files) == 0 {
			continue
		}
		file := item.Attributes.Files[0]
		label := strings.TrimSpace(item.Attributes.Release)
		if label == "" {
			label = file.FileName
		}
		candidates = append(candidates, models.SubtitleCandidate{
			ID:       item.ID,
			FileID:   file.FileID,
			Label:    label,
			Language: item.Attributes.Language,
		})
	}
	return candidates, nil
}

type downloadResponse struct {
	Link string `json:"link"`
}

// Resolve exchanges a candidate for a short-lived download link.
func (c *Client) Resolve(ctx context.Context, candidate models.SubtitleCandidate) (string, error) {
	if !c.isConfigured() {
		return "", ErrNotConfigured
	}
	if candidate.FileID == 0 {
		return "", ErrNoDownloadable
	}

	body, err := json.Marshal(map[string]int64{"file_id": candidate.FileID})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/download", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: download status %d", ErrProvider, resp.StatusCode)
	}

	var decoded downloadResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("%w: decode download response: %v", ErrProvider, err)
	}
	if decoded.Link == "" {
		return "", ErrNoDownloadable
	}
	return decoded.Link, nil
}

// Fetch retrieves the subtitle payload from a resolved link.
func (c *Client) Fetch(ctx context.Context, link string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch status %d", ErrProvider, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("User-Agent", "streambox/1.0")
	req.Header.Set("Accept", "application/json")
}
