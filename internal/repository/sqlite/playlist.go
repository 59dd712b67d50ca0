package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/musophile/internal/apperror"
	"github.com/sakif/musophile/internal/model"
	"github.com/sakif/musophile/internal/repository"
)

var _ repository.PlaylistRepository = (*PlaylistDB)(nil)

// PlaylistDB is the playlists + playlist_recordings view of DB.
type PlaylistDB struct {
	conn *sql.DB
}

// Create inserts a new playlist owned by playlist.UserID.
func (p *PlaylistDB) Create(ctx context.Context, playlist *model.Playlist) error {
	now := time.Now()
	playlist.ID = xid.New().String()
	playlist.CreatedAt = now
	playlist.UpdatedAt = now

	_, err := p.conn.ExecContext(ctx,
		`INSERT INTO playlists (id, user_id, name, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		playlist.ID,
		playlist.UserID,
		playlist.Name,
		playlist.Description,
		playlist.CreatedAt,
		playlist.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating playlist: %w", err)
	}
	return nil
}

// GetByID retrieves a playlist (without recordings) by ID.
func (p *PlaylistDB) GetByID(ctx context.Context, id string) (*model.Playlist, error) {
	var pl model.Playlist
	err := p.conn.QueryRowContext(ctx,
		`SELECT id, user_id, name, description, created_at, updated_at
		 FROM playlists WHERE id = ?`,
		id,
	).Scan(&pl.ID, &pl.UserID, &pl.Name, &pl.Description, &pl.CreatedAt, &pl.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("playlist", id)
		}
		return nil, fmt.Errorf("sqlite: getting playlist %s: %w", id, err)
	}
	return &pl, nil
}

// ListByUser returns the playlists owned by userID, newest first.
func (p *PlaylistDB) ListByUser(ctx context.Context, userID string) ([]model.Playlist, error) {
	rows, err := p.conn.QueryContext(ctx,
		`SELECT id, user_id, name, description, created_at, updated_at
		 FROM playlists WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing playlists of %s: %w", userID, err)
	}
	defer rows.Close()

	playlists := make([]model.Playlist, 0)
	for rows.Next() {
		var pl model.Playlist
		if err := rows.Scan(&pl.ID, &pl.UserID, &pl.Name, &pl.Description, &pl.CreatedAt, &pl.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning playlist row: %w", err)
		}
		playlists = append(playlists, pl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating playlists: %w", err)
	}
	return playlists, nil
}

// Update renames / re-describes a playlist. Ownership never changes.
func (p *PlaylistDB) Update(ctx context.Context, playlist *model.Playlist) error {
	playlist.UpdatedAt = time.Now()

	result, err := p.conn.ExecContext(ctx,
		`UPDATE playlists SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		playlist.Name,
		playlist.Description,
		playlist.UpdatedAt,
		playlist.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating playlist %s: %w", playlist.ID, err)
	}
	return expectOneRow(result, "playlist", playlist.ID)
}

// Delete removes a playlist. ON DELETE CASCADE drops its playlist_recordings and
// playlist_tags edges; the recordings and tags themselves are untouched.
func (p *PlaylistDB) Delete(ctx context.Context, id string) error {
	result, err := p.conn.ExecContext(ctx, `DELETE FROM playlists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting playlist %s: %w", id, err)
	}
	return expectOneRow(result, "playlist", id)
}

// AddRecording links a recording to a playlist. Adding it twice is a no-op.
func (p *PlaylistDB) AddRecording(ctx context.Context, playlistID, recordingID string) error {
	_, err := p.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO playlist_recordings (playlist_id, recording_id) VALUES (?, ?)`,
		playlistID, recordingID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: adding recording %s to playlist %s: %w", recordingID, playlistID, err)
	}
	return nil
}

// RemoveRecording unlinks a recording from a playlist. The recording row stays.
func (p *PlaylistDB) RemoveRecording(ctx context.Context, playlistID, recordingID string) error {
	result, err := p.conn.ExecContext(ctx,
		`DELETE FROM playlist_recordings WHERE playlist_id = ? AND recording_id = ?`,
		playlistID, recordingID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: removing recording %s from playlist %s: %w", recordingID, playlistID, err)
	}
	return expectOneRow(result, "playlist recording", recordingID)
}

// expectOneRow turns "0 rows affected" into apperror.ErrNotFound.
func expectOneRow(result sql.Result, resource, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
