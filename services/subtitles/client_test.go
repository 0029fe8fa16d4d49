package subtitles

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"streambox/models"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-key", "en", srv.URL, srv.Client())
}

func TestSearchRequiresAPIKey(t *testing.T) {
	client := NewClient("", "en", "", nil)
	_, err := client.Search(context.Background(), "Big Buck Bunny", "")
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestSearchParsesCandidates(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/subtitles", r.URL.Path)
		require.Equal(t, "Big Buck Bunny", r.URL.Query().Get("query"))
		require.Equal(t, "en", r.URL.Query().Get("languages"))
		require.Equal(t, "test-key", r.Header.Get("Api-Key"))

		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{
					"id": "974", "attributes": map[string]any{
						"language": "en",
						"release":  "BBB.2008.1080p",
						"files":    []map[string]any{{"file_id": 4321, "file_name": "bbb.srt"}},
					},
				},
				{
					// No files, skipped.
					"id": "975", "attributes": map[string]any{"language": "en"},
				},
			},
		})
	}))

	got, err := client.Search(context.Background(), "Big Buck Bunny", "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, models.SubtitleCandidate{
		ID: "974", FileID: 4321, Label: "BBB.2008.1080p", Language: "en",
	}, got[0])
}

func TestSearchProviderError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))

	_, err := client.Search(context.Background(), "anything", "")
	require.ErrorIs(t, err, ErrProvider)
}

func TestResolveReturnsLink(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/download", r.URL.Path)

		var body map[string]int64
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, int64(4321), body["file_id"])

		json.NewEncoder(w).Encode(map[string]string{"link": "http://files.example/bbb.vtt"})
	}))

	link, err := client.Resolve(context.Background(), models.SubtitleCandidate{ID: "974", FileID: 4321})
	require.NoError(t, err)
	require.Equal(t, "http://files.example/bbb.vtt", link)
}

func TestResolveWithoutFileID(t *testing.T) {
	client := NewClient("test-key", "en", "", nil)
	_, err := client.Resolve(context.Background(), models.SubtitleCandidate{ID: "974"})
	require.ErrorIs(t, err, ErrNoDownloadable)
}

func TestFetchReturnsPayload(t *testing.T) {
	vtt := "WEBVTT\n\n00:00.000 --> 00:02.000\nhello\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(vtt))
	}))
	defer srv.Close()

	client := NewClient("test-key", "en", "", nil)
	got, err := client.Fetch(context.Background(), srv.URL+"/bbb.vtt")
	require.NoError(t, err)
	require.Equal(t, vtt, string(got))
}

func TestFetchNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewClient("test-key", "en", "", nil)
	_, err := client.Fetch(context.Background(), srv.URL+"/gone.vtt")
	require.ErrorIs(t, err, ErrProvider)
}
