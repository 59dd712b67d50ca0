package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/sakif/musophile/internal/apperror"
	"github.com/sakif/musophile/internal/auth"
	"github.com/sakif/musophile/internal/service"
	"github.com/sakif/musophile/internal/streaming"
)

const (
	stateCookieName = "streaming_state"

	streamingLoginPath   = "/auth/streaming/login"
	streamingRefreshPath = "/auth/streaming/refresh"
)

// StreamingAuthorizer starts and completes the streaming provider's
// authorization-code flow. *streaming.TokenManager implements it.
type StreamingAuthorizer interface {
	AuthorizationURL(state string) string
	Exchange(ctx context.Context, sessionID, code string) (*streaming.TokenBundle, error)
}

// StreamingHandler connects a logged-in session to the streaming service and
// runs catalog searches with it.
//
// THE REDIRECT DANCE:
//
//	GET /api/search ──401 from catalog──▶ 303 /auth/streaming/refresh?next=...
//	                ──no tokens yet─────▶ 303 /auth/streaming/login
//	GET /auth/streaming/refresh ──ok────▶ 303 next (the search again)
//	                            ──fails─▶ 303 /auth/streaming/login
//	GET /auth/streaming/login ──────────▶ 302 provider consent page
//	GET /auth/streaming/callback ──ok────▶ 303 /
//	                             ──fails─▶ 303 /auth/streaming/login?error=exchange
type StreamingHandler struct {
	authz  StreamingAuthorizer
	search *service.SearchService
	logger *slog.Logger
}

func NewStreamingHandler(authz StreamingAuthorizer, search *service.SearchService, logger *slog.Logger) *StreamingHandler {
	return &StreamingHandler{authz: authz, search: search, logger: logger}
}

// HandleLogin redirects the browser to the provider's consent page.
//
// HTTP: GET /auth/streaming/login
//
// CSRF PROTECTION VIA STATE:
// A random state value goes into a short-lived HttpOnly cookie and into the
// authorization URL. HandleCallback only accepts a callback whose state
// matches the cookie.
func (h *StreamingHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/auth/streaming",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.authz.AuthorizationURL(state), http.StatusFound)
}

// HandleCallback completes the authorization-code flow.
//
// HTTP: GET /auth/streaming/callback?code=xxx&state=yyy
func (h *StreamingHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := auth.SessionIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("streaming callback: state mismatch")
		writeError(w, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}

	// single use
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookieName,
		Value:  "",
		Path:   "/auth/streaming",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("streaming callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?streaming=denied", http.StatusSeeOther)
		return
	}

	if _, err := h.authz.Exchange(r.Context(), sessionID, r.URL.Query().Get("code")); err != nil {
		h.logger.Error("streaming callback: code exchange failed", slog.String("error", err.Error()))
		http.Redirect(w, r, streamingLoginPath+"?error=exchange", http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleRefresh is the re-authorization endpoint. It refreshes the session's
// tokens and sends the browser back to where it came from. Without a usable
// refresh token the user has to consent again.
//
// HTTP: GET /auth/streaming/refresh?next=/api/search?...
func (h *StreamingHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := auth.SessionIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	if err := h.search.Reauthorize(r.Context(), sessionID); err != nil {
		http.Redirect(w, r, streamingLoginPath, http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, localPath(r.URL.Query().Get("next")), http.StatusSeeOther)
}

// SearchResponse is the best catalog match, or null when there is none.
type SearchResponse struct {
	Match *streaming.Track `json:"match"`
	Total int              `json:"total"`
}

// HandleSearch looks a song up in the streaming catalog.
//
// HTTP: GET /api/search?title=...&artist=...
func (h *StreamingHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := auth.SessionIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	q := r.URL.Query()
	result, err := h.search.Search(r.Context(), sessionID, q.Get("title"), q.Get("artist"))
	switch {
	case errors.Is(err, service.ErrStreamingNotAuthorized):
		http.Redirect(w, r, streamingLoginPath, http.StatusSeeOther)
		return
	case errors.Is(err, apperror.ErrUnauthorized):
		next := url.QueryEscape(r.URL.RequestURI())
		http.Redirect(w, r, streamingRefreshPath+"?next="+next, http.StatusSeeOther)
		return
	case err != nil:
		writeError(w, err)
		return
	}

	resp := SearchResponse{Total: result.Tracks.Total}
	if top, ok := result.Top(); ok {
		resp.Match = &top
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleStreamingUnavailable answers every streaming route when no client credentials
// are configured.
func HandleStreamingUnavailable(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
		Error:   "streaming_unavailable",
		Message: "streaming service is not configured",
	})
}

// localPath accepts only same-site absolute paths, so next= cannot be used
// as an open redirect.
func localPath(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}
