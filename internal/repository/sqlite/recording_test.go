package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sakif/musophile/internal/apperror"
	"github.com/sakif/musophile/internal/model"
)

// =========================================================================
// CREATE / READ
// =========================================================================

func TestCreateInLibrary(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "ann")

	rec := &model.Recording{
		MBID:        "abc123",
		Title:       "Song A",
		Artist:      "Artist A",
		Release:     "Album A",
		StreamingID: "4uLU6hMCjMI75M1A2tKUQC",
	}
	if err := db.Recordings().CreateInLibrary(context.Background(), user.ID, rec); err != nil {
		t.Fatalf("CreateInLibrary() error = %v", err)
	}
	if rec.ID == "" {
		t.Fatal("CreateInLibrary() did not set rec.ID")
	}

	library, err := db.Recordings().ListByUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(library) != 1 {
		t.Fatalf("library has %d recordings, want 1", len(library))
	}
	if library[0].Title != "Song A" || library[0].StreamingID != "4uLU6hMCjMI75M1A2tKUQC" {
		t.Errorf("library[0] = %+v", library[0])
	}
}

func TestCreateInLibrary_UnknownUserLeavesNoRecording(t *testing.T) {
	db := newTestDB(t)

	rec := &model.Recording{MBID: "abc", Title: "t", Artist: "a"}
	err := db.Recordings().CreateInLibrary(context.Background(), "ghost", rec)
	if err == nil {
		t.Fatal("CreateInLibrary() for an unknown user should fail")
	}
	if n := countRows(t, db, "recordings"); n != 0 {
		t.Errorf("recordings = %d after rolled back insert, want 0", n)
	}
}

func TestCreateInLibrary_DuplicateMBID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ann := createTestUser(t, db, "ann")
	bob := createTestUser(t, db, "bob")
	first := createTestRecording(t, db, ann.ID, "A")

	again := &model.Recording{MBID: first.MBID, Title: "A", Artist: "Artist A"}
	err := db.Recordings().CreateInLibrary(ctx, ann.ID, again)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("CreateInLibrary() error = %v, want ErrConflict", err)
	}
	if again.ID != "" {
		t.Errorf("rejected recording got ID %q", again.ID)
	}
	if n := countRows(t, db, "recordings"); n != 1 {
		t.Errorf("recordings rows = %d, want 1 (rejected row rolled back)", n)
	}

	has, err := db.Recordings().HasMBID(ctx, ann.ID, first.MBID)
	if err != nil || !has {
		t.Errorf("HasMBID(ann) = %v, %v; want true, nil", has, err)
	}
	has, err = db.Recordings().HasMBID(ctx, bob.ID, first.MBID)
	if err != nil || has {
		t.Errorf("HasMBID(bob) = %v, %v; want false, nil", has, err)
	}

	theirs := &model.Recording{MBID: first.MBID, Title: "A", Artist: "Artist A"}
	if err := db.Recordings().CreateInLibrary(ctx, bob.ID, theirs); err != nil {
		t.Errorf("CreateInLibrary() for another user error = %v", err)
	}
}

func TestCreateInLibrary_ConcurrentSameMBID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "ann")

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := &model.Recording{MBID: "abc123", Title: "Song A", Artist: "Artist A"}
			errs <- db.Recordings().CreateInLibrary(ctx, user.ID, rec)
		}()
	}
	wg.Wait()
	close(errs)

	var added int
	for err := range errs {
		switch {
		case err == nil:
			added++
		case !errors.Is(err, apperror.ErrConflict):
			t.Errorf("CreateInLibrary() error = %v", err)
		}
	}
	if added != 1 {
		t.Errorf("successful adds = %d, want 1", added)
	}
	if n := countRows(t, db, "libraries"); n != 1 {
		t.Errorf("libraries rows = %d, want 1", n)
	}
	if n := countRows(t, db, "recordings"); n != 1 {
		t.Errorf("recordings rows = %d, want 1", n)
	}
}

func TestRecordingGetByID_EmptyStreamingID(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "ann")
	rec := createTestRecording(t, db, user.ID, "Song")

	found, err := db.Recordings().GetByID(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.StreamingID != "" {
		t.Errorf("StreamingID = %q, want empty (stored as NULL)", found.StreamingID)
	}
	if found.Tags == nil {
		t.Error("Tags should be an empty slice, not nil")
	}
}

func TestRecordingGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Recordings().GetByID(context.Background(), "missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestInLibrary(t *testing.T) {
	db := newTestDB(t)
	ann := createTestUser(t, db, "ann")
	bob := createTestUser(t, db, "bob")
	rec := createTestRecording(t, db, ann.ID, "Song")

	ok, err := db.Recordings().InLibrary(context.Background(), ann.ID, rec.ID)
	if err != nil || !ok {
		t.Errorf("InLibrary(ann) = %v, %v; want true, nil", ok, err)
	}
	ok, err = db.Recordings().InLibrary(context.Background(), bob.ID, rec.ID)
	if err != nil || ok {
		t.Errorf("InLibrary(bob) = %v, %v; want false, nil", ok, err)
	}
}

func TestUpdateComment(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "ann")
	rec := createTestRecording(t, db, user.ID, "Song")

	if err := db.Recordings().UpdateComment(context.Background(), rec.ID, "great bridge"); err != nil {
		t.Fatalf("UpdateComment() error = %v", err)
	}
	found, _ := db.Recordings().GetByID(context.Background(), rec.ID)
	if found.Comment != "great bridge" {
		t.Errorf("Comment = %q, want %q", found.Comment, "great bridge")
	}

	err := db.Recordings().UpdateComment(context.Background(), "missing", "x")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateComment(missing) error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// REMOVE FROM LIBRARY (cascade policy)
// =========================================================================

func TestRemoveFromLibrary_CascadesEdgesButKeepsTags(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "ann")
	rec := createTestRecording(t, db, user.ID, "Song")
	pl := createTestPlaylist(t, db, user.ID, "Drive")

	if err := db.Playlists().AddRecording(ctx, pl.ID, rec.ID); err != nil {
		t.Fatalf("AddRecording() error = %v", err)
	}
	if _, err := db.Tags().AttachToRecording(ctx, rec.ID, "jazz"); err != nil {
		t.Fatalf("AttachToRecording() error = %v", err)
	}

	if err := db.Recordings().RemoveFromLibrary(ctx, user.ID, rec.ID); err != nil {
		t.Fatalf("RemoveFromLibrary() error = %v", err)
	}

	for table, want := range map[string]int{
		"recordings":          0,
		"libraries":           0,
		"playlist_recordings": 0,
		"recording_tags":      0,
		"tags":                1, // orphan tag rows persist
		"playlists":           1,
	} {
		if got := countRows(t, db, table); got != want {
			t.Errorf("%s rows = %d, want %d", table, got, want)
		}
	}
}

func TestRemoveFromLibrary_NotInLibrary(t *testing.T) {
	db := newTestDB(t)
	ann := createTestUser(t, db, "ann")
	bob := createTestUser(t, db, "bob")
	rec := createTestRecording(t, db, ann.ID, "Song")

	err := db.Recordings().RemoveFromLibrary(context.Background(), bob.ID, rec.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("RemoveFromLibrary() error = %v, want ErrNotFound", err)
	}
	if n := countRows(t, db, "recordings"); n != 1 {
		t.Errorf("recordings = %d, want 1 (ann's copy untouched)", n)
	}
}

func TestListByTag(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "ann")
	a := createTestRecording(t, db, user.ID, "A")
	createTestRecording(t, db, user.ID, "B")

	tag, err := db.Tags().AttachToRecording(ctx, a.ID, "jazz")
	if err != nil {
		t.Fatalf("AttachToRecording() error = %v", err)
	}

	recs, err := db.Recordings().ListByTag(ctx, tag.ID)
	if err != nil {
		t.Fatalf("ListByTag() error = %v", err)
	}
	if len(recs) != 1 || recs[0].ID != a.ID {
		t.Errorf("ListByTag() = %+v, want only recording A", recs)
	}
}
