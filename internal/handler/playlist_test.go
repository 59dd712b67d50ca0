package handler_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sakif/musophile/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaylistHandler_Flow(t *testing.T) {
	env := newTestEnv(t)
	ann := env.register(t, "Ann")
	bob := env.register(t, "Bob")

	rr := httptest.NewRecorder()
	env.library.HandleAdd(rr, asUser(jsonRequest(http.MethodPost, "/api/library", map[string]string{"mbid": "abc123"}), ann))
	require.Equal(t, http.StatusCreated, rr.Code)
	rec := decodeBody[model.Recording](t, rr)

	rr = httptest.NewRecorder()
	env.playlists.HandleCreate(rr, asUser(jsonRequest(http.MethodPost, "/api/playlists", map[string]string{"name": "Drive"}), ann))
	require.Equal(t, http.StatusCreated, rr.Code)
	pl := decodeBody[model.Playlist](t, rr)
	assert.Equal(t, ann.UserID, pl.UserID)

	withID := func(req *http.Request) *http.Request {
		req.SetPathValue("id", pl.ID)
		return req
	}

	rr = httptest.NewRecorder()
	req := jsonRequest(http.MethodPost, "/api/playlists/"+pl.ID+"/recordings", map[string]string{"recordingId": rec.ID})
	env.playlists.HandleAddRecording(rr, asUser(withID(req), ann))
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	req = jsonRequest(http.MethodPost, "/api/playlists/"+pl.ID+"/tags", map[string]string{"name": "roadtrip"})
	env.playlists.HandleTag(rr, asUser(withID(req), ann))
	require.Equal(t, http.StatusCreated, rr.Code)

	// anyone logged in can view
	rr = httptest.NewRecorder()
	env.playlists.HandleGet(rr, asUser(withID(httptest.NewRequest(http.MethodGet, "/api/playlists/"+pl.ID, nil)), bob))
	require.Equal(t, http.StatusOK, rr.Code)
	detail := decodeBody[model.PlaylistDetail](t, rr)
	assert.Equal(t, "Drive", detail.Name)
	require.Len(t, detail.Recordings, 1)
	assert.Equal(t, "Song A", detail.Recordings[0].Title)
	require.Len(t, detail.Tags, 2)
	assert.Equal(t, "roadtrip", detail.Tags[0].Name)
	assert.Equal(t, "rock", detail.Tags[1].Name)

	// but only the owner can change it
	rr = httptest.NewRecorder()
	req = jsonRequest(http.MethodPut, "/api/playlists/"+pl.ID, map[string]string{"name": "Bob's now"})
	env.playlists.HandleUpdate(rr, asUser(withID(req), bob))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	env.playlists.HandleDelete(rr, asUser(withID(httptest.NewRequest(http.MethodDelete, "/api/playlists/"+pl.ID, nil)), bob))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	req = withID(httptest.NewRequest(http.MethodDelete, "/api/playlists/"+pl.ID+"/recordings/"+rec.ID, nil))
	req.SetPathValue("recordingID", rec.ID)
	env.playlists.HandleRemoveRecording(rr, asUser(req, ann))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	req = jsonRequest(http.MethodPut, "/api/playlists/"+pl.ID, map[string]string{"name": "Night Drive"})
	env.playlists.HandleUpdate(rr, asUser(withID(req), ann))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Night Drive", decodeBody[model.Playlist](t, rr).Name)

	rr = httptest.NewRecorder()
	env.playlists.HandleList(rr, asUser(httptest.NewRequest(http.MethodGet, "/api/playlists", nil), ann))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody[[]model.Playlist](t, rr), 1)

	rr = httptest.NewRecorder()
	env.playlists.HandleDelete(rr, asUser(withID(httptest.NewRequest(http.MethodDelete, "/api/playlists/"+pl.ID, nil)), ann))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	env.playlists.HandleGet(rr, asUser(withID(httptest.NewRequest(http.MethodGet, "/api/playlists/"+pl.ID, nil)), ann))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPlaylistHandler_AddRecordingOutsideLibrary(t *testing.T) {
	env := newTestEnv(t)
	ann := env.register(t, "Ann")
	bob := env.register(t, "Bob")

	rr := httptest.NewRecorder()
	env.library.HandleAdd(rr, asUser(jsonRequest(http.MethodPost, "/api/library", map[string]string{"mbid": "abc123"}), bob))
	require.Equal(t, http.StatusCreated, rr.Code)
	bobRec := decodeBody[model.Recording](t, rr)

	rr = httptest.NewRecorder()
	env.playlists.HandleCreate(rr, asUser(jsonRequest(http.MethodPost, "/api/playlists", map[string]string{"name": "Drive"}), ann))
	pl := decodeBody[model.Playlist](t, rr)

	rr = httptest.NewRecorder()
	req := jsonRequest(http.MethodPost, "/api/playlists/"+pl.ID+"/recordings", map[string]string{"recordingId": bobRec.ID})
	req.SetPathValue("id", pl.ID)
	env.playlists.HandleAddRecording(rr, asUser(req, ann))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPlaylistHandler_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ann := env.register(t, "Ann")

	rr := httptest.NewRecorder()
	env.playlists.HandleCreate(rr, asUser(jsonRequest(http.MethodPost, "/api/playlists", map[string]string{"name": " "}), ann))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
