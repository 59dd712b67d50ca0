package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/musophile/internal/auth"
	"github.com/sakif/musophile/internal/service"
)

// AuthHandler manages local accounts and the session cookie.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister → create an account and log it in
//   - HandleLogin    → check username/password, issue the session cookie
//   - HandleLogout   → forget streaming tokens, clear the cookie
//   - HandleMe       → the logged-in user's profile
//   - HandleGetUser  → any user's public profile
type AuthHandler struct {
	auth       *service.AuthService
	sessionTTL time.Duration
	logger     *slog.Logger
}

// NewAuthHandler creates an AuthHandler. sessionTTL should match the JWT
// lifetime so the cookie and the token expire together.
func NewAuthHandler(svc *service.AuthService, sessionTTL time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: svc, sessionTTL: sessionTTL, logger: logger}
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	ImageURL string `json:"imgUrl"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleRegister creates an account and logs the new user in.
//
// HTTP: POST /auth/register
// Body: {"username","password","email","role","imgUrl"}
// 201 with the user; 400 on invalid input; 409 if username or email is taken.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.auth.Register(r.Context(), service.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		Role:     req.Role,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, result.Token)
	writeJSON(w, http.StatusCreated, result.User)
}

// HandleLogin checks credentials and issues a fresh session.
//
// HTTP: POST /auth/login
// Body: {"username","password"}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.auth.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, result.Token)
	writeJSON(w, http.StatusOK, result.User)
}

// HandleLogout clears the session cookie and drops the session's streaming tokens.
//
// HTTP: POST /auth/logout
//
// Logout works with or without a valid cookie, so it runs behind OptionalAuth.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if sessionID, ok := auth.SessionIDFromContext(r.Context()); ok {
		h.auth.Logout(sessionID)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /api/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	h.writeUser(w, r, userID)
}

// HandleGetUser returns another user's profile.
//
// HTTP: GET /api/users/{id}
func (h *AuthHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	h.writeUser(w, r, r.PathValue("id"))
}

func (h *AuthHandler) writeUser(w http.ResponseWriter, r *http.Request, id string) {
	user, err := h.auth.GetUserByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// setSessionCookie stores the JWT in an HttpOnly cookie.
// HttpOnly = JavaScript cannot read this cookie (XSS protection).
// SameSite=Lax = sent on top-level navigations, including the streaming
// provider's redirect back to /auth/streaming/callback.
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		// Secure: true, // Uncomment in production (requires HTTPS)
	})
}
