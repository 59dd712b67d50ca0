package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sakif/musophile/internal/apperror"
	"github.com/sakif/musophile/internal/auth"
	"github.com/sakif/musophile/internal/handler"
	"github.com/sakif/musophile/internal/metadata"
	"github.com/sakif/musophile/internal/repository/sqlite"
	"github.com/sakif/musophile/internal/service"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type stubMetadata struct{}

func (stubMetadata) FetchRecording(ctx context.Context, mbid string) (*metadata.Recording, error) {
	switch mbid {
	case "abc123":
		return &metadata.Recording{MBID: mbid, Title: "Song A", Artist: "Artist A", Release: "Album A", Tags: []string{"rock"}}, nil
	case "slow":
		return nil, apperror.Timeout("metadata lookup", context.DeadlineExceeded)
	}
	return nil, apperror.MetadataLookup(mbid, nil)
}

// testEnv is the full handler stack over an in-memory database.
type testEnv struct {
	db        *sqlite.DB
	tokens    *auth.TokenService
	authSvc   *service.AuthService
	auth      *handler.AuthHandler
	library   *handler.LibraryHandler
	playlists *handler.PlaylistHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789", time.Hour)
	require.NoError(t, err)

	authSvc := service.NewAuthService(db.Users(), tokens, auth.NewPasswordServiceForTest(bcrypt.MinCost), nil, logger)
	lib := service.NewLibraryService(db.Recordings(), db.Tags(), stubMetadata{}, logger)
	pls := service.NewPlaylistService(db.Playlists(), db.Recordings(), db.Tags(), logger)

	return &testEnv{
		db:        db,
		tokens:    tokens,
		authSvc:   authSvc,
		auth:      handler.NewAuthHandler(authSvc, tokens.TTL(), logger),
		library:   handler.NewLibraryHandler(lib, logger),
		playlists: handler.NewPlaylistHandler(pls, logger),
	}
}

// register creates a user through the service and returns its session.
func (e *testEnv) register(t *testing.T, username string) auth.Session {
	t.Helper()
	res, err := e.authSvc.Register(context.Background(), service.RegisterInput{
		Username: username,
		Password: "pw1234",
		Email:    username + "@x.com",
		Role:     "Music Fan",
	})
	require.NoError(t, err)
	return auth.Session{UserID: res.User.ID, SessionID: res.SessionID}
}

func jsonRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func asUser(req *http.Request, sess auth.Session) *http.Request {
	return req.WithContext(auth.WithSession(req.Context(), sess))
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v))
	return v
}
