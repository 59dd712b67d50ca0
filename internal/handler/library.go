package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/musophile/internal/service"
)

// LibraryHandler serves the logged-in user's saved recordings.
//
// All routes sit behind RequireAuth and act on the session user's library only.
type LibraryHandler struct {
	library *service.LibraryService
	logger  *slog.Logger
}

func NewLibraryHandler(library *service.LibraryService, logger *slog.Logger) *LibraryHandler {
	return &LibraryHandler{library: library, logger: logger}
}

type addRecordingRequest struct {
	MBID        string `json:"mbid"`
	StreamingID string `json:"streamingId"`
}

type editRecordingRequest struct {
	Comment string `json:"comment"`
	Tags    string `json:"tags"` // comma-separated, appended to existing tags
}

// HandleList returns the user's library.
//
// HTTP: GET /api/library
func (h *LibraryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	recs, err := h.library.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// HandleAdd saves a recording by its metadata ID.
//
// HTTP: POST /api/library
// Body: {"mbid":"...","streamingId":"..."}   streamingId is optional ("0" = none)
// 201 on success; 502 when the metadata lookup fails; 504 when it times out.
func (h *LibraryHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	var req addRecordingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rec, err := h.library.Add(r.Context(), userID, req.MBID, req.StreamingID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// HandleGet returns one recording with its tags.
//
// HTTP: GET /api/library/{recordingID}
func (h *LibraryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	rec, err := h.library.Get(r.Context(), userID, r.PathValue("recordingID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleEdit sets the comment and appends tags.
//
// HTTP: PATCH /api/library/{recordingID}
// Body: {"comment":"...","tags":"rock, indie"}
func (h *LibraryHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	var req editRecordingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rec, err := h.library.Edit(r.Context(), userID, r.PathValue("recordingID"), req.Comment, req.Tags)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleRemove takes a recording out of the library.
//
// HTTP: DELETE /api/library/{recordingID}
// 204 No Content on success.
func (h *LibraryHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	if err := h.library.Remove(r.Context(), userID, r.PathValue("recordingID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRemoveTag detaches one tag from a recording.
//
// HTTP: DELETE /api/library/{recordingID}/tags/{tagID}
func (h *LibraryHandler) HandleRemoveTag(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	err := h.library.RemoveTag(r.Context(), userID, r.PathValue("recordingID"), r.PathValue("tagID"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetTag returns a tag and every recording carrying it.
//
// HTTP: GET /api/tags/{id}
func (h *LibraryHandler) HandleGetTag(w http.ResponseWriter, r *http.Request) {
	view, err := h.library.TaggedWith(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
