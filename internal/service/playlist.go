package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/sakif/musophile/internal/apperror"
	"github.com/sakif/musophile/internal/model"
	"github.com/sakif/musophile/internal/repository"
)

// PlaylistService manages playlists. Any logged-in user may view a playlist;
// only its owner may change it.
type PlaylistService struct {
	playlists  repository.PlaylistRepository
	recordings repository.RecordingRepository
	tags       repository.TagRepository
	logger     *slog.Logger
}

func NewPlaylistService(
	playlists repository.PlaylistRepository,
	recordings repository.RecordingRepository,
	tags repository.TagRepository,
	logger *slog.Logger,
) *PlaylistService {
	return &PlaylistService{
		playlists:  playlists,
		recordings: recordings,
		tags:       tags,
		logger:     logger,
	}
}

func (s *PlaylistService) Create(ctx context.Context, userID, name, description string) (*model.Playlist, error) {
	name, description, err := validatePlaylist(name, description)
	if err != nil {
		return nil, err
	}

	pl := &model.Playlist{UserID: userID, Name: name, Description: description}
	if err := s.playlists.Create(ctx, pl); err != nil {
		return nil, fmt.Errorf("service/playlist: creating %q: %w", name, err)
	}

	s.logger.Info("playlist created",
		slog.String("userID", userID),
		slog.String("playlistID", pl.ID),
	)
	return pl, nil
}

// Get returns the playlist with its recordings (each with tags) and the union
// of the playlist's own tags and its recordings' tags, sorted by name.
func (s *PlaylistService) Get(ctx context.Context, id string) (*model.PlaylistDetail, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "playlist ID is required")
	}
	pl, err := s.playlists.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	recs, err := s.recordings.ListByPlaylist(ctx, pl.ID)
	if err != nil {
		return nil, fmt.Errorf("service/playlist: listing recordings: %w", err)
	}
	own, err := s.tags.ListByPlaylist(ctx, pl.ID)
	if err != nil {
		return nil, fmt.Errorf("service/playlist: listing tags: %w", err)
	}

	seen := make(map[string]bool)
	all := make([]model.Tag, 0, len(own))
	collect := func(tags []model.Tag) {
		for _, t := range tags {
			if !seen[t.ID] {
				seen[t.ID] = true
				all = append(all, t)
			}
		}
	}
	collect(own)

	for i := range recs {
		tags, err := s.tags.ListByRecording(ctx, recs[i].ID)
		if err != nil {
			return nil, fmt.Errorf("service/playlist: listing tags for %s: %w", recs[i].ID, err)
		}
		recs[i].Tags = tags
		collect(tags)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	return &model.PlaylistDetail{Playlist: *pl, Recordings: recs, Tags: all}, nil
}

// List returns the user's playlists, newest first.
func (s *PlaylistService) List(ctx context.Context, userID string) ([]model.Playlist, error) {
	lists, err := s.playlists.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/playlist: listing: %w", err)
	}
	return lists, nil
}

// Update renames and re-describes the playlist.
func (s *PlaylistService) Update(ctx context.Context, userID, id, name, description string) (*model.Playlist, error) {
	pl, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	name, description, err = validatePlaylist(name, description)
	if err != nil {
		return nil, err
	}

	pl.Name = name
	pl.Description = description
	if err := s.playlists.Update(ctx, pl); err != nil {
		return nil, fmt.Errorf("service/playlist: updating %s: %w", pl.ID, err)
	}

	s.logger.Info("playlist updated", slog.String("playlistID", pl.ID))
	return pl, nil
}

// Delete removes the playlist and its membership edges. Recordings and tags stay.
func (s *PlaylistService) Delete(ctx context.Context, userID, id string) error {
	pl, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.playlists.Delete(ctx, pl.ID); err != nil {
		return err
	}
	s.logger.Info("playlist deleted", slog.String("playlistID", pl.ID))
	return nil
}

// AddRecording puts a recording from the owner's library onto the playlist.
// Adding one that is already there is a no-op.
func (s *PlaylistService) AddRecording(ctx context.Context, userID, playlistID, recordingID string) error {
	pl, err := s.owned(ctx, userID, playlistID)
	if err != nil {
		return err
	}
	recordingID = strings.TrimSpace(recordingID)
	if recordingID == "" {
		return apperror.ValidationFailed("recordingId", "recording ID is required")
	}

	ok, err := s.recordings.InLibrary(ctx, userID, recordingID)
	if err != nil {
		return fmt.Errorf("service/playlist: checking library: %w", err)
	}
	if !ok {
		return apperror.ValidationFailed("recordingId", "only recordings from your library can be added")
	}

	if err := s.playlists.AddRecording(ctx, pl.ID, recordingID); err != nil {
		return fmt.Errorf("service/playlist: adding %s to %s: %w", recordingID, pl.ID, err)
	}
	s.logger.Info("recording added to playlist",
		slog.String("playlistID", pl.ID),
		slog.String("recordingID", recordingID),
	)
	return nil
}

// RemoveRecording takes a recording off the playlist. The recording itself is kept.
func (s *PlaylistService) RemoveRecording(ctx context.Context, userID, playlistID, recordingID string) error {
	pl, err := s.owned(ctx, userID, playlistID)
	if err != nil {
		return err
	}
	return s.playlists.RemoveRecording(ctx, pl.ID, strings.TrimSpace(recordingID))
}

// Tag attaches a tag to the playlist, creating the tag if it is new.
func (s *PlaylistService) Tag(ctx context.Context, userID, playlistID, name string) (*model.Tag, error) {
	pl, err := s.owned(ctx, userID, playlistID)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "tag name is required")
	}
	if len(name) > MaxTagLength {
		return nil, apperror.ValidationFailed("name",
			fmt.Sprintf("tag must be %d characters or less", MaxTagLength))
	}
	tag, err := s.tags.AttachToPlaylist(ctx, pl.ID, name)
	if err != nil {
		return nil, fmt.Errorf("service/playlist: tagging %s: %w", pl.ID, err)
	}
	return tag, nil
}

func (s *PlaylistService) owned(ctx context.Context, userID, id string) (*model.Playlist, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "playlist ID is required")
	}
	pl, err := s.playlists.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if pl.UserID != userID {
		return nil, apperror.Forbidden("playlist belongs to another user")
	}
	return pl, nil
}

func validatePlaylist(name, description string) (string, string, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	if name == "" {
		return "", "", apperror.ValidationFailed("name", "playlist name is required")
	}
	if len(name) > MaxPlaylistNameLength {
		return "", "", apperror.ValidationFailed("name",
			fmt.Sprintf("playlist name must be %d characters or less", MaxPlaylistNameLength))
	}
	if len(description) > MaxDescriptionLength {
		return "", "", apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}
	return name, description, nil
}
