package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/sakif/musophile/internal/apperror"
	"github.com/sakif/musophile/internal/streaming"
)

// SearchService runs catalog searches with the session's streaming token.
//
// It never refreshes on its own. A rejected token comes back as
// apperror.ErrUnauthorized; the HTTP layer then sends the browser to the
// re-authorization endpoint, which calls Reauthorize.
type SearchService struct {
	tokens  StreamingTokens
	catalog CatalogSearcher
	logger  *slog.Logger
}

func NewSearchService(tokens StreamingTokens, catalog CatalogSearcher, logger *slog.Logger) *SearchService {
	return &SearchService{tokens: tokens, catalog: catalog, logger: logger}
}

// Search looks up title and artist in the catalog.
//
// Errors:
//   - ErrStreamingNotAuthorized  the session has no token bundle
//   - apperror.ErrUnauthorized   the access token was rejected (expired)
//   - apperror.ErrTimeout        the catalog did not answer in time
func (s *SearchService) Search(ctx context.Context, sessionID, title, artist string) (*streaming.SearchResult, error) {
	title = strings.TrimSpace(title)
	artist = strings.TrimSpace(artist)
	if title == "" {
		return nil, apperror.ValidationFailed("title", "title is required")
	}
	if artist == "" {
		return nil, apperror.ValidationFailed("artist", "artist is required")
	}

	bundle, err := s.tokens.Current(sessionID)
	if err != nil {
		if errors.Is(err, streaming.ErrNoTokens) {
			return nil, ErrStreamingNotAuthorized
		}
		return nil, err
	}

	result, err := s.catalog.Search(ctx, title, artist, bundle.AccessToken)
	if err != nil {
		if errors.Is(err, apperror.ErrUnauthorized) {
			s.logger.Info("streaming token rejected, re-authorization needed")
		}
		return nil, err
	}
	return result, nil
}

// Reauthorize refreshes the session's streaming tokens.
func (s *SearchService) Reauthorize(ctx context.Context, sessionID string) error {
	if _, err := s.tokens.Refresh(ctx, sessionID); err != nil {
		if errors.Is(err, streaming.ErrNoTokens) {
			return ErrStreamingNotAuthorized
		}
		s.logger.Warn("streaming token refresh failed", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("streaming token refreshed")
	return nil
}
