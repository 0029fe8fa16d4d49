// Package scanner pulls direct video links out of arbitrary web pages. It
// is a best-effort text match over the fetched page, not an HTML parser.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
)

var ErrFetch = errors.New("page fetch failed")

// linkPatterns match absolute media URLs, optionally with a query string.
var linkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`https?://[^\s"'<>\\]+?\.mp4(?:\?[^\s"'<>\\]*)?`),
	regexp.MustCompile(`https?://[^\s"'<>\\]+?\.m3u8(?:\?[^\s"'<>\\]*)?`),
}

// Service fetches pages, through a CORS-bypassing proxy when one is
// configured, and extracts playable links.
type Service struct {
	proxyURL      string
	maxConcurrent int
	httpc         *http.Client
}

// NewService builds a scanner. proxyURL, when non-empty, is prepended to the
// URL-encoded target the way browser CORS proxies expect. maxConcurrent
// bounds ScanAll; values below 1 fall back to 1.
func NewService(proxyURL string, maxConcurrent int, httpc *http.Client) *Service {
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Service{
		proxyURL:      strings.TrimSpace(proxyURL),
		maxConcurrent: maxConcurrent,
		httpc:         httpc,
	}
}

// Scan fetches one page and returns the media links found on it, first-seen
// order, duplicates removed.
func (s *Service) Scan(ctx context.Context, pageURL string) ([]string, error) {
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		return nil, fmt.Errorf("%w: empty page URL", ErrFetch)
	}

	target := pageURL
	if s.proxyURL != "" {
		target = s.proxyURL + url.QueryEscape(pageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	resp, err := s.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d from %s", ErrFetch, resp.StatusCode, pageURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	return extractLinks(string(body)), nil
}

// ScanAll scans several pages concurrently and returns links per page.
// Pages that fail are logged and left out of the result.
func (s *Service) ScanAll(ctx context.Context, pageURLs []string) map[string][]string {
	results := make(map[string][]string, len(pageURLs))
	var mu sync.Mutex

	p := pool.New().WithMaxGoroutines(s.maxConcurrent)
	for _, pageURL := range pageURLs {
		pageURL := pageURL // per-iteration copy for the closure under pre-1.22 loop semantics
		p.Go(func() {
			links, err := s.Scan(ctx, pageURL)
			if err != nil {
				log.Printf("[scanner] %s: %v", pageURL, err)
				return
			}
			mu.Lock()
			results[pageURL] = links
			mu.Unlock()
		})
	}
	p.Wait()
	return results
}

func extractLinks(body string) []string {
	seen := make(map[string]struct{})
	var links []string
	for _, pattern := range linkPatterns {
		for _, match := range pattern.FindAllString(body, -1) {
			if _, dup := seen[match]; dup {
				continue
			}
			seen[match] = struct{}{}
			links = append(links, match)
		}
	}
	return links
}
