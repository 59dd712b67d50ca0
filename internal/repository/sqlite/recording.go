package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/musophile/internal/apperror"
	"github.com/sakif/musophile/internal/model"
	"github.com/sakif/musophile/internal/repository"
)

var _ repository.RecordingRepository = (*RecordingDB)(nil)

// RecordingDB is the recordings + libraries view of DB.
type RecordingDB struct {
	conn *sql.DB
}

const recordingColumns = `r.id, r.mbid, r.title, r.artist, r.release, r.streaming_id, r.comment, r.created_at, r.updated_at`

// CreateInLibrary inserts a recording and links it to the user's library.
//
// Both rows are written in ONE transaction: either the recording exists and is in
// the library, or neither happened. Tags are attached afterwards by the caller,
// each in its own commit.
//
// The library edge carries the mbid under UNIQUE(user_id, mbid), so a second
// add of the same mbid for the same user returns apperror.ErrConflict and rolls
// back the recording row with it.
func (r *RecordingDB) CreateInLibrary(ctx context.Context, userID string, rec *model.Recording) error {
	now := time.Now()
	id := xid.New().String()

	err := withTx(ctx, r.conn, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO recordings (id, mbid, title, artist, release, streaming_id, comment, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id,
			rec.MBID,
			rec.Title,
			rec.Artist,
			rec.Release,
			nullString(rec.StreamingID),
			rec.Comment,
			now,
			now,
		)
		if err != nil {
			return fmt.Errorf("inserting recording: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO libraries (user_id, recording_id, mbid) VALUES (?, ?, ?)`,
			userID, id, rec.MBID,
		)
		if isUniqueViolation(err) {
			return apperror.Conflict("recording", "already in your library")
		}
		if err != nil {
			return fmt.Errorf("inserting library edge: %w", err)
		}
		return nil
	})
	if errors.Is(err, apperror.ErrConflict) {
		return err
	}
	if err != nil {
		return fmt.Errorf("sqlite: adding recording %s to library of %s: %w", rec.MBID, userID, err)
	}

	rec.ID = id
	rec.CreatedAt = now
	rec.UpdatedAt = now
	return nil
}

// GetByID retrieves a recording (without tags) by ID.
func (r *RecordingDB) GetByID(ctx context.Context, id string) (*model.Recording, error) {
	row := r.conn.QueryRowContext(ctx,
		`SELECT `+recordingColumns+` FROM recordings r WHERE r.id = ?`, id)

	rec, err := scanRecording(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("recording", id)
		}
		return nil, fmt.Errorf("sqlite: getting recording %s: %w", id, err)
	}
	return rec, nil
}

// InLibrary reports whether the recording is in the user's library.
func (r *RecordingDB) InLibrary(ctx context.Context, userID, recordingID string) (bool, error) {
	var n int
	err := r.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM libraries WHERE user_id = ? AND recording_id = ?`,
		userID, recordingID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking library of %s: %w", userID, err)
	}
	return n > 0, nil
}

// HasMBID reports whether the user's library already holds a recording with
// this MusicBrainz id.
func (r *RecordingDB) HasMBID(ctx context.Context, userID, mbid string) (bool, error) {
	var n int
	err := r.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM libraries WHERE user_id = ? AND mbid = ?`,
		userID, mbid,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking library of %s for %s: %w", userID, mbid, err)
	}
	return n > 0, nil
}

// ListByUser returns the user's library, oldest first.
func (r *RecordingDB) ListByUser(ctx context.Context, userID string) ([]model.Recording, error) {
	return r.list(ctx, "library of "+userID,
		`SELECT `+recordingColumns+`
		 FROM recordings r JOIN libraries l ON l.recording_id = r.id
		 WHERE l.user_id = ?
		 ORDER BY r.created_at, r.id`, userID)
}

// ListByPlaylist returns the recordings in a playlist.
func (r *RecordingDB) ListByPlaylist(ctx context.Context, playlistID string) ([]model.Recording, error) {
	return r.list(ctx, "playlist "+playlistID,
		`SELECT `+recordingColumns+`
		 FROM recordings r JOIN playlist_recordings pr ON pr.recording_id = r.id
		 WHERE pr.playlist_id = ?
		 ORDER BY r.created_at, r.id`, playlistID)
}

// ListByTag returns every recording carrying the tag, across all libraries.
func (r *RecordingDB) ListByTag(ctx context.Context, tagID string) ([]model.Recording, error) {
	return r.list(ctx, "tag "+tagID,
		`SELECT `+recordingColumns+`
		 FROM recordings r JOIN recording_tags rt ON rt.recording_id = r.id
		 WHERE rt.tag_id = ?
		 ORDER BY r.created_at, r.id`, tagID)
}

// UpdateComment replaces the free-text comment on a recording.
func (r *RecordingDB) UpdateComment(ctx context.Context, id, comment string) error {
	result, err := r.conn.ExecContext(ctx,
		`UPDATE recordings SET comment = ?, updated_at = ? WHERE id = ?`,
		comment, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating recording %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("recording", id)
	}
	return nil
}

// RemoveFromLibrary removes a recording from the user's library.
//
// CASCADE POLICY:
//  1. The library edge (user, recording) is deleted.
//  2. If no other library still references the recording, the recording row is
//     deleted too. ON DELETE CASCADE then drops its playlist_recordings and
//     recording_tags edges.
//  3. Tag rows are left alone, even if this was their last recording.
//
// Returns apperror.ErrNotFound if the recording was not in the library.
func (r *RecordingDB) RemoveFromLibrary(ctx context.Context, userID, recordingID string) error {
	err := withTx(ctx, r.conn, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`DELETE FROM libraries WHERE user_id = ? AND recording_id = ?`,
			userID, recordingID,
		)
		if err != nil {
			return fmt.Errorf("deleting library edge: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking rows affected: %w", err)
		}
		if n == 0 {
			return apperror.NotFound("recording", recordingID)
		}

		_, err = tx.ExecContext(ctx,
			`DELETE FROM recordings
			 WHERE id = ? AND NOT EXISTS (SELECT 1 FROM libraries WHERE recording_id = ?)`,
			recordingID, recordingID,
		)
		if err != nil {
			return fmt.Errorf("deleting orphaned recording: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sqlite: removing recording %s from library of %s: %w", recordingID, userID, err)
	}
	return nil
}

func (r *RecordingDB) list(ctx context.Context, what, query string, args ...any) ([]model.Recording, error) {
	rows, err := r.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing recordings for %s: %w", what, err)
	}
	defer rows.Close()

	recordings := make([]model.Recording, 0)
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning recording row: %w", err)
		}
		recordings = append(recordings, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating recordings: %w", err)
	}
	return recordings, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecording(s scanner) (*model.Recording, error) {
	var (
		rec         model.Recording
		streamingID sql.NullString
	)
	err := s.Scan(
		&rec.ID,
		&rec.MBID,
		&rec.Title,
		&rec.Artist,
		&rec.Release,
		&streamingID,
		&rec.Comment,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.StreamingID = streamingID.String
	rec.Tags = []model.Tag{}
	return &rec, nil
}
