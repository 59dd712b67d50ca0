package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sakif/musophile/internal/apperror"
	"github.com/sakif/musophile/internal/config"
)

// trackURIPrefix is stripped from a track URI to get the catalog id.
const trackURIPrefix = "spotify:track:"

// Track is the part of a catalog track the library cares about.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	URI        string   `json:"uri"`
	DurationMS int      `json:"duration_ms"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
}

type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Album struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
}

// StreamingID is the catalog id stored on a Recording, taken from the URI.
func (t Track) StreamingID() string {
	if t.URI == "" {
		return t.ID
	}
	return strings.TrimPrefix(t.URI, trackURIPrefix)
}

// SearchResult is the ranked track list; best match first.
type SearchResult struct {
	Tracks struct {
		Items []Track `json:"items"`
		Total int     `json:"total"`
	} `json:"tracks"`
}

// Top returns the best match, if any.
func (r *SearchResult) Top() (Track, bool) {
	if len(r.Tracks.Items) == 0 {
		return Track{}, false
	}
	return r.Tracks.Items[0], true
}

// SearchClient queries the catalog with a caller-supplied access token.
// It never refreshes tokens; a 401 comes back as apperror.ErrUnauthorized and
// the caller decides what to do.
type SearchClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewSearchClient(cfg config.StreamingConfig) *SearchClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SearchClient{
		baseURL:    strings.TrimRight(cfg.APIURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Search looks up "{title} {artist}" among tracks and returns at most one result.
func (c *SearchClient) Search(ctx context.Context, title, artist, accessToken string) (*SearchResult, error) {
	q := url.Values{}
	q.Set("q", strings.TrimSpace(title+" "+artist))
	q.Set("type", "track")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("streaming: building search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if apperror.IsTimeout(err) {
			return nil, apperror.Timeout("catalog search", err)
		}
		return nil, fmt.Errorf("streaming: search request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, apperror.Unauthorized("streaming access token rejected")
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("streaming: search returned status %d", resp.StatusCode)
	}

	var result SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("streaming: decoding search response: %w", err)
	}
	return &result, nil
}
