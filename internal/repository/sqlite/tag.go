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

var _ repository.TagRepository = (*TagDB)(nil)

// TagDB is the tags + recording_tags + playlist_tags view of DB.
type TagDB struct {
	conn *sql.DB
}

// AttachToRecording finds or creates the tag named name and links it to the recording.
//
// IDEMPOTENT, RACE-FREE FIND-OR-CREATE:
// A naive "SELECT, and INSERT if missing" lets two concurrent requests both see no
// row and both insert. Instead we let the UNIQUE(name) constraint decide:
//
//	INSERT ... ON CONFLICT(name) DO NOTHING   ← at most one row can ever exist
//	SELECT id FROM tags WHERE name = ?         ← whoever won, read the survivor
//
// The edge insert uses OR IGNORE, so tagging twice is a no-op.
// All three statements run in one transaction and commit independently of whatever
// the caller did before.
func (t *TagDB) AttachToRecording(ctx context.Context, recordingID, name string) (*model.Tag, error) {
	return t.attach(ctx, name,
		`INSERT OR IGNORE INTO recording_tags (recording_id, tag_id) VALUES (?, ?)`, recordingID)
}

// AttachToPlaylist is AttachToRecording for playlists.
func (t *TagDB) AttachToPlaylist(ctx context.Context, playlistID, name string) (*model.Tag, error) {
	return t.attach(ctx, name,
		`INSERT OR IGNORE INTO playlist_tags (playlist_id, tag_id) VALUES (?, ?)`, playlistID)
}

func (t *TagDB) attach(ctx context.Context, name, edgeSQL, targetID string) (*model.Tag, error) {
	var tag model.Tag

	err := withTx(ctx, t.conn, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tags (id, name, created_at) VALUES (?, ?, ?)
			 ON CONFLICT(name) DO NOTHING`,
			xid.New().String(), name, time.Now(),
		)
		if err != nil {
			return fmt.Errorf("inserting tag: %w", err)
		}

		err = tx.QueryRowContext(ctx,
			`SELECT id, name, created_at FROM tags WHERE name = ?`, name,
		).Scan(&tag.ID, &tag.Name, &tag.CreatedAt)
		if err != nil {
			return fmt.Errorf("reading tag: %w", err)
		}

		if _, err := tx.ExecContext(ctx, edgeSQL, targetID, tag.ID); err != nil {
			return fmt.Errorf("linking tag: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: attaching tag %q to %s: %w", name, targetID, err)
	}
	return &tag, nil
}

// DetachFromRecording removes the recording↔tag edge. The tag row is kept even if
// nothing references it anymore.
func (t *TagDB) DetachFromRecording(ctx context.Context, recordingID, tagID string) error {
	result, err := t.conn.ExecContext(ctx,
		`DELETE FROM recording_tags WHERE recording_id = ? AND tag_id = ?`,
		recordingID, tagID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: detaching tag %s from %s: %w", tagID, recordingID, err)
	}
	return expectOneRow(result, "recording tag", tagID)
}

// GetByID retrieves a tag by ID.
func (t *TagDB) GetByID(ctx context.Context, id string) (*model.Tag, error) {
	return t.getOne(ctx, `SELECT id, name, created_at FROM tags WHERE id = ?`, id)
}

// GetByName retrieves a tag by exact, case-sensitive name.
func (t *TagDB) GetByName(ctx context.Context, name string) (*model.Tag, error) {
	return t.getOne(ctx, `SELECT id, name, created_at FROM tags WHERE name = ?`, name)
}

func (t *TagDB) getOne(ctx context.Context, query, key string) (*model.Tag, error) {
	var tag model.Tag
	err := t.conn.QueryRowContext(ctx, query, key).Scan(&tag.ID, &tag.Name, &tag.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("tag", key)
		}
		return nil, fmt.Errorf("sqlite: getting tag %s: %w", key, err)
	}
	return &tag, nil
}

// ListByRecording returns the tags on a recording, alphabetically.
func (t *TagDB) ListByRecording(ctx context.Context, recordingID string) ([]model.Tag, error) {
	return t.list(ctx,
		`SELECT t.id, t.name, t.created_at
		 FROM tags t JOIN recording_tags rt ON rt.tag_id = t.id
		 WHERE rt.recording_id = ?
		 ORDER BY t.name`, recordingID)
}

// ListByPlaylist returns the tags attached directly to a playlist.
func (t *TagDB) ListByPlaylist(ctx context.Context, playlistID string) ([]model.Tag, error) {
	return t.list(ctx,
		`SELECT t.id, t.name, t.created_at
		 FROM tags t JOIN playlist_tags pt ON pt.tag_id = t.id
		 WHERE pt.playlist_id = ?
		 ORDER BY t.name`, playlistID)
}

// Count returns the number of tag rows, orphans included.
func (t *TagDB) Count(ctx context.Context) (int, error) {
	var n int
	if err := t.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM tags`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting tags: %w", err)
	}
	return n, nil
}

func (t *TagDB) list(ctx context.Context, query string, args ...any) ([]model.Tag, error) {
	rows, err := t.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing tags: %w", err)
	}
	defer rows.Close()

	tags := make([]model.Tag, 0)
	for rows.Next() {
		var tag model.Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning tag row: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating tags: %w", err)
	}
	return tags, nil
}
