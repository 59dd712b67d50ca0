package repository

import (
	"context"

	"github.com/sakif/musophile/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	Count(ctx context.Context) (int, error)
}

type RecordingRepository interface {
	// CreateInLibrary inserts the recording and the library edge in one transaction.
	CreateInLibrary(ctx context.Context, userID string, rec *model.Recording) error
	GetByID(ctx context.Context, id string) (*model.Recording, error)
	InLibrary(ctx context.Context, userID, recordingID string) (bool, error)
	HasMBID(ctx context.Context, userID, mbid string) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]model.Recording, error)
	ListByPlaylist(ctx context.Context, playlistID string) ([]model.Recording, error)
	ListByTag(ctx context.Context, tagID string) ([]model.Recording, error)
	UpdateComment(ctx context.Context, id, comment string) error
	// RemoveFromLibrary drops the library edge and deletes the recording once
	// no library references it.
	RemoveFromLibrary(ctx context.Context, userID, recordingID string) error
}

type PlaylistRepository interface {
	Create(ctx context.Context, playlist *model.Playlist) error
	GetByID(ctx context.Context, id string) (*model.Playlist, error)
	ListByUser(ctx context.Context, userID string) ([]model.Playlist, error)
	Update(ctx context.Context, playlist *model.Playlist) error
	Delete(ctx context.Context, id string) error
	AddRecording(ctx context.Context, playlistID, recordingID string) error
	RemoveRecording(ctx context.Context, playlistID, recordingID string) error
}

type TagRepository interface {
	// AttachToRecording finds or creates the tag by exact name and links it.
	AttachToRecording(ctx context.Context, recordingID, name string) (*model.Tag, error)
	AttachToPlaylist(ctx context.Context, playlistID, name string) (*model.Tag, error)
	DetachFromRecording(ctx context.Context, recordingID, tagID string) error
	GetByID(ctx context.Context, id string) (*model.Tag, error)
	GetByName(ctx context.Context, name string) (*model.Tag, error)
	ListByRecording(ctx context.Context, recordingID string) ([]model.Tag, error)
	ListByPlaylist(ctx context.Context, playlistID string) ([]model.Tag, error)
	Count(ctx context.Context) (int, error)
}
