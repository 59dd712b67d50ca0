// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// The driver is modernc.org/sqlite, a pure Go translation of SQLite (no cgo).
//
// LAYOUT:
// DB owns the connection pool and the schema. Each entity gets a small view over the
// same pool (Users, Recordings, Playlists, Tags) so method names don't collide:
//
//	db, _ := sqlite.New("data/musophile.db")
//	db.Users().Create(ctx, user)
//	db.Tags().AttachToRecording(ctx, recID, "jazz")
//
// JOIN TABLES:
// libraries, playlist_recordings, recording_tags and playlist_tags hold the
// many-to-many edges. Every foreign key is ON DELETE CASCADE, so deleting a recording
// or playlist removes its edges and nothing else. Tag rows are never deleted here.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sqlitedrv "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// DB wraps a sql.DB connection pool and hands out the per-entity repositories.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/musophile.db"  → file-based database (persistent)
//   - ":memory:"           → in-memory database (tests; lost on close)
//
// PRAGMAS IN THE DSN:
// foreign_keys and busy_timeout are per-connection settings. Passing them as
// _pragma query parameters makes the driver apply them to EVERY connection the
// pool opens, not just the first one.
func New(dbPath string) (*DB, error) {
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every connection to ":memory:" is a brand new, empty database.
	// Pin the pool to one connection so all queries see the same schema.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL allows concurrent reads while a write is happening.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Users returns the user repository backed by this database.
func (db *DB) Users() *UserDB { return &UserDB{conn: db.conn} }

// Recordings returns the recording/library repository backed by this database.
func (db *DB) Recordings() *RecordingDB { return &RecordingDB{conn: db.conn} }

// Playlists returns the playlist repository backed by this database.
func (db *DB) Playlists() *PlaylistDB { return &PlaylistDB{conn: db.conn} }

// Tags returns the tag repository backed by this database.
func (db *DB) Tags() *TagDB { return &TagDB{conn: db.conn} }

// migrations run in order on every start. Each statement is idempotent
// (CREATE ... IF NOT EXISTS), so re-running them on an existing file is safe.
var migrations = []struct {
	name string
	sql  string
}{
	{"users", `
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role          TEXT NOT NULL,
			img_url       TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`},
	{"recordings", `
		CREATE TABLE IF NOT EXISTS recordings (
			id           TEXT PRIMARY KEY,
			mbid         TEXT NOT NULL,
			title        TEXT NOT NULL,
			artist       TEXT NOT NULL,
			release      TEXT NOT NULL DEFAULT '',
			streaming_id TEXT,
			comment      TEXT NOT NULL DEFAULT '',
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_recordings_mbid ON recordings(mbid);`},
	{"playlists", `
		CREATE TABLE IF NOT EXISTS playlists (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_playlists_user_id ON playlists(user_id);`},
	{"tags", `
		CREATE TABLE IF NOT EXISTS tags (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL UNIQUE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`},
	{"libraries", `
		CREATE TABLE IF NOT EXISTS libraries (
			user_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			recording_id TEXT NOT NULL REFERENCES recordings(id) ON DELETE CASCADE,
			mbid         TEXT NOT NULL,
			PRIMARY KEY (user_id, recording_id),
			UNIQUE (user_id, mbid)
		);
		CREATE INDEX IF NOT EXISTS idx_libraries_recording_id ON libraries(recording_id);`},
	{"playlist_recordings", `
		CREATE TABLE IF NOT EXISTS playlist_recordings (
			playlist_id  TEXT NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
			recording_id TEXT NOT NULL REFERENCES recordings(id) ON DELETE CASCADE,
			PRIMARY KEY (playlist_id, recording_id)
		);`},
	{"recording_tags", `
		CREATE TABLE IF NOT EXISTS recording_tags (
			recording_id TEXT NOT NULL REFERENCES recordings(id) ON DELETE CASCADE,
			tag_id       TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
			PRIMARY KEY (recording_id, tag_id)
		);
		CREATE INDEX IF NOT EXISTS idx_recording_tags_tag_id ON recording_tags(tag_id);`},
	{"playlist_tags", `
		CREATE TABLE IF NOT EXISTS playlist_tags (
			playlist_id TEXT NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
			tag_id      TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
			PRIMARY KEY (playlist_id, tag_id)
		);`},
}

// migrate runs all database migrations.
func (db *DB) migrate() error {
	for _, m := range migrations {
		if _, err := db.conn.Exec(m.sql); err != nil {
			return fmt.Errorf("creating %s table: %w", m.name, err)
		}
	}
	return nil
}

// Migrate re-runs the schema migrations. New already does this; the method
// exists for the `musophile migrate` command.
func (db *DB) Migrate(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := db.conn.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("sqlite: creating %s table: %w", m.name, err)
		}
	}
	return nil
}

// isUniqueViolation reports whether err came from a UNIQUE or PRIMARY KEY constraint.
// The driver may return the primary or the extended result code, so both are checked.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlitedrv.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlitelib.SQLITE_CONSTRAINT_UNIQUE, sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlitelib.SQLITE_CONSTRAINT:
		return strings.Contains(sqliteErr.Error(), "UNIQUE")
	}
	return false
}

// withTx runs fn inside a transaction, committing on success and rolling back
// on any error.
func withTx(ctx context.Context, conn *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// nullString maps "" to SQL NULL for optional TEXT columns.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
