package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/sakif/musophile/internal/apperror"
	"github.com/sakif/musophile/internal/metadata"
	"github.com/sakif/musophile/internal/model"
	"github.com/sakif/musophile/internal/repository/sqlite"
	"github.com/sakif/musophile/internal/streaming"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestDB returns a fresh in-memory database, closed at test end.
func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedUser(t *testing.T, db *sqlite.DB, username string) *model.User {
	t.Helper()
	u := &model.User{
		Username:     username,
		Email:        username + "@x.com",
		PasswordHash: "hash",
		Role:         "Music Fan",
		ImageURL:     model.DefaultImageURL,
	}
	if err := db.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("seedUser(%s): %v", username, err)
	}
	return u
}

// fakeMetadata serves canned lookups keyed by mbid; unknown ids fail like a 404.
type fakeMetadata struct {
	mu         sync.Mutex
	recordings map[string]*metadata.Recording
	err        error
	calls      int
}

func (f *fakeMetadata) FetchRecording(ctx context.Context, mbid string) (*metadata.Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	rec, ok := f.recordings[mbid]
	if !ok {
		return nil, apperror.MetadataLookup(mbid, nil)
	}
	copied := *rec
	return &copied, nil
}

// fakeTokens is an in-memory StreamingTokens. Refresh swaps in refreshTo.
type fakeTokens struct {
	mu         sync.Mutex
	bundles    map[string]streaming.TokenBundle
	refreshTo  string
	refreshErr error
	refreshes  int
	forgotten  []string
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{bundles: make(map[string]streaming.TokenBundle)}
}

func (f *fakeTokens) Current(sessionID string) (streaming.TokenBundle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bundles[sessionID]
	if !ok {
		return streaming.TokenBundle{}, streaming.ErrNoTokens
	}
	return b, nil
}

func (f *fakeTokens) Refresh(ctx context.Context, sessionID string) (*streaming.TokenBundle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	b, ok := f.bundles[sessionID]
	if !ok {
		return nil, streaming.ErrNoTokens
	}
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	b.AccessToken = f.refreshTo
	b.AuthHeader = "Bearer " + f.refreshTo
	f.bundles[sessionID] = b
	return &b, nil
}

func (f *fakeTokens) Forget(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.bundles, sessionID)
	f.forgotten = append(f.forgotten, sessionID)
}

// fakeCatalog accepts only the tokens in valid and records the token of every call.
type fakeCatalog struct {
	valid map[string]bool
	seen  []string
}

func (f *fakeCatalog) Search(ctx context.Context, title, artist, accessToken string) (*streaming.SearchResult, error) {
	f.seen = append(f.seen, accessToken)
	if !f.valid[accessToken] {
		return nil, apperror.Unauthorized("token rejected")
	}
	var r streaming.SearchResult
	r.Tracks.Items = []streaming.Track{{ID: "xyz", Name: title, URI: "spotify:track:xyz"}}
	r.Tracks.Total = 1
	return &r, nil
}

func streamingBundle(accessToken string) streaming.TokenBundle {
	return streaming.TokenBundle{
		AccessToken:  accessToken,
		AuthHeader:   "Bearer " + accessToken,
		RefreshToken: "R1",
	}
}
