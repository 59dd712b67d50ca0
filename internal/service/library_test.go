package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sakif/musophile/internal/apperror"
	"github.com/sakif/musophile/internal/metadata"
	"github.com/sakif/musophile/internal/model"
	"github.com/sakif/musophile/internal/repository"
	"github.com/sakif/musophile/internal/repository/sqlite"
)

// flakyTags fails AttachToRecording for the names in fail and delegates the rest.
type flakyTags struct {
	repository.TagRepository
	fail map[string]bool
}

func (f *flakyTags) AttachToRecording(ctx context.Context, recordingID, name string) (*model.Tag, error) {
	if f.fail[name] {
		return nil, errors.New("disk full")
	}
	return f.TagRepository.AttachToRecording(ctx, recordingID, name)
}

func songA() *fakeMetadata {
	return &fakeMetadata{recordings: map[string]*metadata.Recording{
		"abc123": {MBID: "abc123", Title: "Song A", Artist: "Artist A", Release: "Album A", Tags: []string{"rock", "indie"}},
		"def456": {MBID: "def456", Title: "Song B", Artist: "Artist B", Release: metadata.NotAvailable},
	}}
}

func newTestLibrary(t *testing.T, meta MetadataFetcher) (*LibraryService, *sqlite.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewLibraryService(db.Recordings(), db.Tags(), meta, discardLogger()), db
}

// =========================================================================
// Add
// =========================================================================

func TestLibraryAdd(t *testing.T) {
	svc, db := newTestLibrary(t, songA())
	ann := seedUser(t, db, "Ann")

	rec, err := svc.Add(context.Background(), ann.ID, "abc123", "")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if rec.Title != "Song A" || rec.Artist != "Artist A" || rec.Release != "Album A" {
		t.Errorf("Add() = %+v, want Song A / Artist A / Album A", rec)
	}
	if len(rec.Tags) != 2 {
		t.Errorf("tags = %d, want 2", len(rec.Tags))
	}

	list, err := svc.List(context.Background(), ann.ID)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 || list[0].ID != rec.ID {
		t.Fatalf("List() = %+v, want only the new recording", list)
	}
	if len(list[0].Tags) != 2 {
		t.Errorf("listed tags = %d, want 2", len(list[0].Tags))
	}
}

func TestLibraryAdd_StreamingIDZeroMeansNone(t *testing.T) {
	svc, db := newTestLibrary(t, songA())
	ann := seedUser(t, db, "Ann")

	tests := []struct {
		mbid, streamingID, want string
	}{
		{"abc123", "0", ""},
		{"def456", "4uLU6hMCjMI75M1A2tKUQC", "4uLU6hMCjMI75M1A2tKUQC"},
	}
	for _, tt := range tests {
		rec, err := svc.Add(context.Background(), ann.ID, tt.mbid, tt.streamingID)
		if err != nil {
			t.Fatalf("Add(%s) error = %v", tt.mbid, err)
		}
		got, err := svc.Get(context.Background(), ann.ID, rec.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.StreamingID != tt.want {
			t.Errorf("StreamingID = %q, want %q", got.StreamingID, tt.want)
		}
	}
}

func TestLibraryAdd_MetadataFailureWritesNothing(t *testing.T) {
	meta := &fakeMetadata{err: apperror.MetadataLookup("abc123", errors.New("503"))}
	svc, db := newTestLibrary(t, meta)
	ann := seedUser(t, db, "Ann")

	_, err := svc.Add(context.Background(), ann.ID, "abc123", "")
	if !errors.Is(err, apperror.ErrMetadataLookup) {
		t.Fatalf("Add() error = %v, want ErrMetadataLookup", err)
	}

	list, _ := svc.List(context.Background(), ann.ID)
	if len(list) != 0 {
		t.Errorf("library has %d recordings after failed lookup, want 0", len(list))
	}
	if n, _ := db.Tags().Count(context.Background()); n != 0 {
		t.Errorf("tags = %d, want 0", n)
	}
}

func TestLibraryAdd_TimeoutPropagates(t *testing.T) {
	meta := &fakeMetadata{err: apperror.Timeout("metadata lookup", context.DeadlineExceeded)}
	svc, db := newTestLibrary(t, meta)
	ann := seedUser(t, db, "Ann")

	if _, err := svc.Add(context.Background(), ann.ID, "abc123", ""); !errors.Is(err, apperror.ErrTimeout) {
		t.Fatalf("Add() error = %v, want ErrTimeout", err)
	}
}

func TestLibraryAdd_TagFailureKeepsRecording(t *testing.T) {
	db := newTestDB(t)
	tags := &flakyTags{TagRepository: db.Tags(), fail: map[string]bool{"rock": true}}
	svc := NewLibraryService(db.Recordings(), tags, songA(), discardLogger())
	ann := seedUser(t, db, "Ann")

	rec, err := svc.Add(context.Background(), ann.ID, "abc123", "")
	if err != nil {
		t.Fatalf("Add() error = %v, want success despite a failed tag", err)
	}
	if len(rec.Tags) != 1 || rec.Tags[0].Name != "indie" {
		t.Errorf("tags = %+v, want only indie", rec.Tags)
	}

	got, err := svc.Get(context.Background(), ann.ID, rec.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Title != "Song A" {
		t.Errorf("Title = %q", got.Title)
	}
}

func TestLibraryAdd_Duplicate(t *testing.T) {
	meta := songA()
	svc, db := newTestLibrary(t, meta)
	ann := seedUser(t, db, "Ann")
	bob := seedUser(t, db, "Bob")

	if _, err := svc.Add(context.Background(), ann.ID, "abc123", ""); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if _, err := svc.Add(context.Background(), ann.ID, "abc123", ""); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("second Add() error = %v, want ErrConflict", err)
	}
	if meta.calls != 1 {
		t.Errorf("metadata calls = %d, want 1", meta.calls)
	}
	if _, err := svc.Add(context.Background(), bob.ID, "abc123", ""); err != nil {
		t.Errorf("another user's Add() error = %v", err)
	}
}

// slowMetadata holds every lookup open long enough for concurrent adds to
// overlap between the duplicate check and the insert.
type slowMetadata struct {
	MetadataFetcher
	delay time.Duration
}

func (s *slowMetadata) FetchRecording(ctx context.Context, mbid string) (*metadata.Recording, error) {
	time.Sleep(s.delay)
	return s.MetadataFetcher.FetchRecording(ctx, mbid)
}

func TestLibraryAdd_ConcurrentSameMBID(t *testing.T) {
	svc, db := newTestLibrary(t, &slowMetadata{MetadataFetcher: songA(), delay: 50 * time.Millisecond})
	ann := seedUser(t, db, "Ann")
	ctx := context.Background()

	const workers = 4
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Add(ctx, ann.ID, "abc123", "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var added, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			added++
		case errors.Is(err, apperror.ErrConflict):
			conflicts++
		default:
			t.Errorf("Add() error = %v", err)
		}
	}
	if added != 1 || conflicts != workers-1 {
		t.Errorf("added = %d, conflicts = %d; want 1 and %d", added, conflicts, workers-1)
	}

	library, err := svc.List(ctx, ann.ID)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(library) != 1 {
		t.Errorf("library holds %d recordings, want 1", len(library))
	}
}

func TestLibraryAdd_EmptyMBID(t *testing.T) {
	svc, db := newTestLibrary(t, songA())
	ann := seedUser(t, db, "Ann")

	if _, err := svc.Add(context.Background(), ann.ID, "  ", ""); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Add() error = %v, want ErrValidation", err)
	}
}

// =========================================================================
// Get / Edit / Remove
// =========================================================================

func TestLibraryGet_Ownership(t *testing.T) {
	svc, db := newTestLibrary(t, songA())
	ann := seedUser(t, db, "Ann")
	bob := seedUser(t, db, "Bob")
	rec, _ := svc.Add(context.Background(), ann.ID, "abc123", "")

	if _, err := svc.Get(context.Background(), bob.ID, rec.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("Get() by another user error = %v, want ErrForbidden", err)
	}
	if _, err := svc.Get(context.Background(), ann.ID, "missing"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Get() missing error = %v, want ErrNotFound", err)
	}
}

func TestLibraryEdit_AppendsTags(t *testing.T) {
	svc, db := newTestLibrary(t, songA())
	ann := seedUser(t, db, "Ann")
	rec, _ := svc.Add(context.Background(), ann.ID, "abc123", "")

	got, err := svc.Edit(context.Background(), ann.ID, rec.ID, "  great bassline ", "indie, shoegaze,, shoegaze ")
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if got.Comment != "great bassline" {
		t.Errorf("Comment = %q", got.Comment)
	}

	names := make(map[string]bool)
	for _, tag := range got.Tags {
		names[tag.Name] = true
	}
	for _, want := range []string{"rock", "indie", "shoegaze"} {
		if !names[want] {
			t.Errorf("missing tag %q in %+v", want, got.Tags)
		}
	}
	if len(got.Tags) != 3 {
		t.Errorf("tags = %d, want 3", len(got.Tags))
	}
}

func TestLibraryEdit_Validation(t *testing.T) {
	svc, db := newTestLibrary(t, songA())
	ann := seedUser(t, db, "Ann")
	rec, _ := svc.Add(context.Background(), ann.ID, "abc123", "")

	long := make([]byte, MaxCommentLength+1)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := svc.Edit(context.Background(), ann.ID, rec.ID, string(long), ""); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("long comment error = %v, want ErrValidation", err)
	}
}

func TestLibraryRemove(t *testing.T) {
	svc, db := newTestLibrary(t, songA())
	ann := seedUser(t, db, "Ann")
	rec, _ := svc.Add(context.Background(), ann.ID, "abc123", "")

	if err := svc.Remove(context.Background(), ann.ID, rec.ID); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	list, _ := svc.List(context.Background(), ann.ID)
	if len(list) != 0 {
		t.Errorf("library has %d recordings, want 0", len(list))
	}
	if n, _ := db.Tags().Count(context.Background()); n != 2 {
		t.Errorf("tags = %d after removal, want 2 (tags outlive recordings)", n)
	}
	if err := svc.Remove(context.Background(), ann.ID, rec.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second Remove() error = %v, want ErrNotFound", err)
	}
}

func TestLibraryRemoveTag_AndTaggedWith(t *testing.T) {
	svc, db := newTestLibrary(t, songA())
	ann := seedUser(t, db, "Ann")
	rec, _ := svc.Add(context.Background(), ann.ID, "abc123", "")

	rock, err := db.Tags().GetByName(context.Background(), "rock")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}

	view, err := svc.TaggedWith(context.Background(), rock.ID)
	if err != nil {
		t.Fatalf("TaggedWith() error = %v", err)
	}
	if len(view.Recordings) != 1 || view.Recordings[0].ID != rec.ID {
		t.Errorf("TaggedWith() recordings = %+v", view.Recordings)
	}

	if err := svc.RemoveTag(context.Background(), ann.ID, rec.ID, rock.ID); err != nil {
		t.Fatalf("RemoveTag() error = %v", err)
	}
	view, err = svc.TaggedWith(context.Background(), rock.ID)
	if err != nil {
		t.Fatalf("TaggedWith() after removal error = %v", err)
	}
	if len(view.Recordings) != 0 {
		t.Errorf("tag still has %d recordings", len(view.Recordings))
	}
}

func TestParseTagList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"rock", []string{"rock"}},
		{"rock, indie", []string{"rock", "indie"}},
		{" rock ,, Rock , rock", []string{"rock", "Rock"}},
	}
	for _, tt := range tests {
		got, err := ParseTagList(tt.in)
		if err != nil {
			t.Fatalf("ParseTagList(%q) error = %v", tt.in, err)
		}
		if len(got) != len(tt.want) {
			t.Fatalf("ParseTagList(%q) = %v, want %v", tt.in, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ParseTagList(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}
