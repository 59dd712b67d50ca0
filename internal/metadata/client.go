// Package metadata looks recordings up in a MusicBrainz-style metadata service.
//
// MusicBrainz asks every client for a descriptive User-Agent and allows about
// one request per second; the Client enforces both.
package metadata

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
	"golang.org/x/time/rate"
)

// NotAvailable stands in for an artist or release the service does not list.
const NotAvailable = "N/A"

// Recording is the normalized lookup result.
type Recording struct {
	MBID    string   `json:"mbid"`
	Title   string   `json:"title"`
	Artist  string   `json:"artist"`
	Release string   `json:"release"`
	Tags    []string `json:"tags"`
}

// recordingResponse mirrors GET /recording/{id}?inc=artists+releases+tags&fmt=json.
type recordingResponse struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	ArtistCredit []struct {
		Name   string `json:"name"`
		Artist struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"artist"`
	} `json:"artist-credit"`
	Releases []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"releases"`
	Tags []struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	} `json:"tags"`
}

type Client struct {
	baseURL    string
	userAgent  string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(cfg config.MetadataConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// FetchRecording looks up one recording by MusicBrainz id.
//
// Errors:
//   - apperror.ErrValidation      empty id
//   - apperror.ErrTimeout         the lookup (including the rate-limit wait) ran out of time
//   - apperror.ErrMetadataLookup  unknown id, non-2xx response, network failure, no title
func (c *Client) FetchRecording(ctx context.Context, mbid string) (*Recording, error) {
	mbid = strings.TrimSpace(mbid)
	if mbid == "" {
		return nil, apperror.ValidationFailed("mbid", "recording id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		// Wait fails early when the deadline cannot be met, without returning
		// context.DeadlineExceeded, so any error here counts as running out of time.
		return nil, apperror.Timeout("metadata lookup", err)
	}

	// The inc list is sent literally; MusicBrainz does not accept %2B for '+'.
	endpoint := c.baseURL + "/recording/" + url.PathEscape(mbid) + "?inc=artists+releases+tags&fmt=json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperror.MetadataLookup(mbid, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if apperror.IsTimeout(err) {
			return nil, apperror.Timeout("metadata lookup", err)
		}
		return nil, apperror.MetadataLookup(mbid, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperror.MetadataLookup(mbid, fmt.Errorf("metadata: status %d", resp.StatusCode))
	}

	var body recordingResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if apperror.IsTimeout(err) {
			return nil, apperror.Timeout("metadata lookup", err)
		}
		return nil, apperror.MetadataLookup(mbid, fmt.Errorf("metadata: decoding response: %w", err))
	}

	return normalize(mbid, &body)
}

func normalize(mbid string, body *recordingResponse) (*Recording, error) {
	if strings.TrimSpace(body.Title) == "" {
		return nil, apperror.MetadataLookup(mbid, fmt.Errorf("metadata: response has no title"))
	}

	rec := &Recording{
		MBID:    mbid,
		Title:   body.Title,
		Artist:  NotAvailable,
		Release: NotAvailable,
		Tags:    make([]string, 0, len(body.Tags)),
	}
	if len(body.ArtistCredit) > 0 {
		if name := body.ArtistCredit[0].Artist.Name; name != "" {
			rec.Artist = name
		}
	}
	if len(body.Releases) > 0 && body.Releases[0].Title != "" {
		rec.Release = body.Releases[0].Title
	}
	for _, t := range body.Tags {
		if t.Name != "" {
			rec.Tags = append(rec.Tags, t.Name)
		}
	}
	return rec, nil
}
