// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces ownership, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services take repository interfaces and small interfaces over the remote
// clients (MetadataFetcher, CatalogSearcher, StreamingTokens), never concrete
// types, so tests can hand in fakes or an in-memory SQLite database.
//
// Services return apperror kinds, never HTTP status codes; the handler layer
// does that translation.
package service

import (
	"context"
	"errors"

	"github.com/sakif/musophile/internal/metadata"
	"github.com/sakif/musophile/internal/streaming"
)

// Validation limits.
const (
	MaxUsernameLength     = 50
	MaxPlaylistNameLength = 100
	MaxDescriptionLength  = 1000
	MaxCommentLength      = 5000
	MaxTagLength          = 50
)

// ErrStreamingNotAuthorized means the session has no streaming token bundle
// yet (or it was forgotten). The user must go through /auth/streaming/login.
var ErrStreamingNotAuthorized = errors.New("streaming authorization required")

// MetadataFetcher looks up recording metadata. *metadata.Client implements it.
type MetadataFetcher interface {
	FetchRecording(ctx context.Context, mbid string) (*metadata.Recording, error)
}

// CatalogSearcher queries the streaming catalog. *streaming.SearchClient implements it.
type CatalogSearcher interface {
	Search(ctx context.Context, title, artist, accessToken string) (*streaming.SearchResult, error)
}

// StreamingTokens is the part of *streaming.TokenManager the services use.
type StreamingTokens interface {
	Current(sessionID string) (streaming.TokenBundle, error)
	Refresh(ctx context.Context, sessionID string) (*streaming.TokenBundle, error)
	Forget(sessionID string)
}
