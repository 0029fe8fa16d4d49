package session

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/http"

	"streambox/models"
)

// HTTPAttacher validates sources over HTTP before the player commits to
// them. Direct sources get a reachability probe; adaptive sources must
// serve a recognizable manifest.
type HTTPAttacher struct {
	httpc *http.Client
}

func NewHTTPAttacher(httpc *http.Client) *HTTPAttacher {
	if httpc == nil {
		httpc = http.DefaultClient
	}
	return &HTTPAttacher{httpc: httpc}
}

func (a *HTTPAttacher) Attach(ctx context.Context, source models.MediaSource) error {
	switch source.Kind {
	case models.SourceAdaptive:
		return a.probeManifest(ctx, source.Locator)
	default:
		return a.probeDirect(ctx, source.Locator)
	}
}

// Detach is a no-op: the probes hold nothing open between calls.
func (a *HTTPAttacher) Detach() {}

func (a *HTTPAttacher) probeDirect(ctx context.Context, locator string) error {
	resp, err := a.get(ctx, locator)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// probeManifest fetches the playlist and checks the leading tag. Anything
// that is not an M3U playlist cannot be attached as an adaptive stream.
func (a *HTTPAttacher) probeManifest(ctx context.Context, locator string) error {
	resp, err := a.get(ctx, locator)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	line, err := bufio.NewReader(resp.Body).ReadBytes('\n')
	if len(line) == 0 && err != nil {
		return fmt.Errorf("%w: read manifest %s: %v", ErrFetch, locator, err)
	}
	if !bytes.HasPrefix(bytes.TrimSpace(line), []byte("#EXTM3U")) {
		return fmt.Errorf("%w: %s is not an M3U playlist", ErrUnsupportedFormat, locator)
	}
	return nil
}

func (a *HTTPAttacher) get(ctx context.Context, locator string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	resp, err := a.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d from %s", ErrFetch, resp.StatusCode, locator)
	}
	return resp, nil
}
