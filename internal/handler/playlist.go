package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/musophile/internal/service"
)

// PlaylistHandler serves playlists. Viewing is open to any logged-in user;
// the service rejects changes to someone else's playlist with 403.
type PlaylistHandler struct {
	playlists *service.PlaylistService
	logger    *slog.Logger
}

func NewPlaylistHandler(playlists *service.PlaylistService, logger *slog.Logger) *PlaylistHandler {
	return &PlaylistHandler{playlists: playlists, logger: logger}
}

type playlistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type playlistRecordingRequest struct {
	RecordingID string `json:"recordingId"`
}

type tagRequest struct {
	Name string `json:"name"`
}

// HandleList: GET /api/playlists
func (h *PlaylistHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	lists, err := h.playlists.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lists)
}

// HandleCreate: POST /api/playlists {"name","description"}
func (h *PlaylistHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	var req playlistRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	pl, err := h.playlists.Create(r.Context(), userID, req.Name, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, pl)
}

// HandleGet returns the playlist with its recordings and their tags.
//
// HTTP: GET /api/playlists/{id}
func (h *PlaylistHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	detail, err := h.playlists.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// HandleUpdate: PUT /api/playlists/{id} {"name","description"}
func (h *PlaylistHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	var req playlistRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	pl, err := h.playlists.Update(r.Context(), userID, r.PathValue("id"), req.Name, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pl)
}

// HandleDelete: DELETE /api/playlists/{id}
func (h *PlaylistHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	if err := h.playlists.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAddRecording puts a recording from the user's library on the playlist.
//
// HTTP: POST /api/playlists/{id}/recordings {"recordingId"}
func (h *PlaylistHandler) HandleAddRecording(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	var req playlistRecordingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.playlists.AddRecording(r.Context(), userID, r.PathValue("id"), req.RecordingID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRemoveRecording: DELETE /api/playlists/{id}/recordings/{recordingID}
func (h *PlaylistHandler) HandleRemoveRecording(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	err := h.playlists.RemoveRecording(r.Context(), userID, r.PathValue("id"), r.PathValue("recordingID"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleTag: POST /api/playlists/{id}/tags {"name"}
func (h *PlaylistHandler) HandleTag(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	var req tagRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tag, err := h.playlists.Tag(r.Context(), userID, r.PathValue("id"), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}
