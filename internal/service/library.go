package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/musophile/internal/apperror"
	"github.com/sakif/musophile/internal/model"
	"github.com/sakif/musophile/internal/repository"
)

// LibraryService manages the recordings a user has saved, and their tags.
type LibraryService struct {
	recordings repository.RecordingRepository
	tags       repository.TagRepository
	meta       MetadataFetcher
	logger     *slog.Logger
}

func NewLibraryService(
	recordings repository.RecordingRepository,
	tags repository.TagRepository,
	meta MetadataFetcher,
	logger *slog.Logger,
) *LibraryService {
	return &LibraryService{
		recordings: recordings,
		tags:       tags,
		meta:       meta,
		logger:     logger,
	}
}

// TagView is a tag with every recording that carries it.
type TagView struct {
	model.Tag
	Recordings []model.Recording `json:"recordings"`
}

// Add saves the recording identified by mbid into the user's library.
//
// ORDER OF OPERATIONS:
//  1. Fetch metadata. Any failure here aborts; no Recording row is written.
//  2. Insert the recording and its library edge in one transaction. The store
//     rejects a second copy of the same mbid in one library.
//  3. Attach each metadata tag, one commit per tag. A failed tag is logged and
//     skipped; the recording stays in the library either way.
//
// streamingID is optional ("" or "0" means no catalog match was chosen).
func (s *LibraryService) Add(ctx context.Context, userID, mbid, streamingID string) (*model.Recording, error) {
	mbid = strings.TrimSpace(mbid)
	if mbid == "" {
		return nil, apperror.ValidationFailed("mbid", "recording id is required")
	}
	streamingID = strings.TrimSpace(streamingID)
	if streamingID == "0" {
		streamingID = ""
	}

	// Skips the metadata lookup for the common repeat. CreateInLibrary still
	// rejects a duplicate that slips in between.
	has, err := s.recordings.HasMBID(ctx, userID, mbid)
	if err != nil {
		return nil, fmt.Errorf("service/library: checking library: %w", err)
	}
	if has {
		return nil, apperror.Conflict("recording", "already in your library")
	}

	md, err := s.meta.FetchRecording(ctx, mbid)
	if err != nil {
		s.logger.Warn("metadata lookup failed",
			slog.String("mbid", mbid),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	rec := &model.Recording{
		MBID:        mbid,
		Title:       md.Title,
		Artist:      md.Artist,
		Release:     md.Release,
		StreamingID: streamingID,
		Tags:        []model.Tag{},
	}
	if err := s.recordings.CreateInLibrary(ctx, userID, rec); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("service/library: saving recording %s: %w", mbid, err)
	}

	for _, name := range md.Tags {
		tag, err := s.tags.AttachToRecording(ctx, rec.ID, name)
		if err != nil {
			s.logger.Warn("skipping tag",
				slog.String("recordingID", rec.ID),
				slog.String("tag", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		rec.Tags = append(rec.Tags, *tag)
	}

	s.logger.Info("recording added to library",
		slog.String("userID", userID),
		slog.String("recordingID", rec.ID),
		slog.String("mbid", mbid),
		slog.Int("tags", len(rec.Tags)),
	)
	return rec, nil
}

// Get returns one recording from the user's library, with its tags.
func (s *LibraryService) Get(ctx context.Context, userID, recordingID string) (*model.Recording, error) {
	rec, err := s.owned(ctx, userID, recordingID)
	if err != nil {
		return nil, err
	}
	if err := s.loadTags(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns the user's whole library, oldest first, each with its tags.
func (s *LibraryService) List(ctx context.Context, userID string) ([]model.Recording, error) {
	recs, err := s.recordings.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/library: listing library: %w", err)
	}
	for i := range recs {
		if err := s.loadTags(ctx, &recs[i]); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

// Edit replaces the comment and appends the tags in tagList, a comma-separated
// list such as "rock, indie". Tags already on the recording are left alone;
// none are removed here.
func (s *LibraryService) Edit(ctx context.Context, userID, recordingID, comment, tagList string) (*model.Recording, error) {
	rec, err := s.owned(ctx, userID, recordingID)
	if err != nil {
		return nil, err
	}

	comment = strings.TrimSpace(comment)
	if len(comment) > MaxCommentLength {
		return nil, apperror.ValidationFailed("comment",
			fmt.Sprintf("comment must be %d characters or less", MaxCommentLength))
	}
	names, err := ParseTagList(tagList)
	if err != nil {
		return nil, err
	}

	if err := s.recordings.UpdateComment(ctx, rec.ID, comment); err != nil {
		return nil, fmt.Errorf("service/library: updating comment: %w", err)
	}

	current, err := s.tags.ListByRecording(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("service/library: listing tags: %w", err)
	}
	have := make(map[string]bool, len(current))
	for _, t := range current {
		have[t.Name] = true
	}
	for _, name := range names {
		if have[name] {
			continue
		}
		if _, err := s.tags.AttachToRecording(ctx, rec.ID, name); err != nil {
			return nil, fmt.Errorf("service/library: tagging %s with %q: %w", rec.ID, name, err)
		}
		have[name] = true
	}

	s.logger.Info("recording edited", slog.String("recordingID", rec.ID))
	return s.Get(ctx, userID, rec.ID)
}

// Remove takes the recording out of the user's library. Once no library holds
// it, the row goes too, along with its playlist and tag edges. Tags stay.
func (s *LibraryService) Remove(ctx context.Context, userID, recordingID string) error {
	recordingID = strings.TrimSpace(recordingID)
	if recordingID == "" {
		return apperror.ValidationFailed("id", "recording ID is required")
	}
	if err := s.recordings.RemoveFromLibrary(ctx, userID, recordingID); err != nil {
		return err
	}
	s.logger.Info("recording removed from library",
		slog.String("userID", userID),
		slog.String("recordingID", recordingID),
	)
	return nil
}

// RemoveTag detaches a tag from a recording in the user's library. The tag row
// is kept even if nothing else uses it.
func (s *LibraryService) RemoveTag(ctx context.Context, userID, recordingID, tagID string) error {
	rec, err := s.owned(ctx, userID, recordingID)
	if err != nil {
		return err
	}
	return s.tags.DetachFromRecording(ctx, rec.ID, tagID)
}

// TaggedWith returns a tag and every recording in the database carrying it.
func (s *LibraryService) TaggedWith(ctx context.Context, tagID string) (*TagView, error) {
	tagID = strings.TrimSpace(tagID)
	if tagID == "" {
		return nil, apperror.ValidationFailed("id", "tag ID is required")
	}
	tag, err := s.tags.GetByID(ctx, tagID)
	if err != nil {
		return nil, err
	}
	recs, err := s.recordings.ListByTag(ctx, tag.ID)
	if err != nil {
		return nil, fmt.Errorf("service/library: listing recordings for tag %s: %w", tag.ID, err)
	}
	return &TagView{Tag: *tag, Recordings: recs}, nil
}

// owned loads a recording and checks it is in the user's library.
// Missing recordings are NotFound; someone else's are Forbidden.
func (s *LibraryService) owned(ctx context.Context, userID, recordingID string) (*model.Recording, error) {
	recordingID = strings.TrimSpace(recordingID)
	if recordingID == "" {
		return nil, apperror.ValidationFailed("id", "recording ID is required")
	}

	rec, err := s.recordings.GetByID(ctx, recordingID)
	if err != nil {
		return nil, err
	}
	ok, err := s.recordings.InLibrary(ctx, userID, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("service/library: checking library: %w", err)
	}
	if !ok {
		return nil, apperror.Forbidden("recording is not in your library")
	}
	return rec, nil
}

func (s *LibraryService) loadTags(ctx context.Context, rec *model.Recording) error {
	tags, err := s.tags.ListByRecording(ctx, rec.ID)
	if err != nil {
		return fmt.Errorf("service/library: listing tags for %s: %w", rec.ID, err)
	}
	rec.Tags = tags
	return nil
}

// ParseTagList splits "rock, indie,  jazz" into trimmed, non-empty, unique names
// in input order.
func ParseTagList(list string) ([]string, error) {
	var names []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(list, ",") {
		name := strings.TrimSpace(part)
		if name == "" || seen[name] {
			continue
		}
		if len(name) > MaxTagLength {
			return nil, apperror.ValidationFailed("tags",
				fmt.Sprintf("tag %q must be %d characters or less", name, MaxTagLength))
		}
		seen[name] = true
		names = append(names, name)
	}
	return names, nil
}
