package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"
	"sync"

	"github.com/sakif/musophile/internal/apperror"
	"github.com/sakif/musophile/internal/auth"
	"github.com/sakif/musophile/internal/model"
	"github.com/sakif/musophile/internal/repository"
)

// ErrInvalidCredentials is returned by Authenticate for an unknown username and
// for a wrong password alike, so callers cannot probe which usernames exist.
var ErrInvalidCredentials = &apperror.AppError{
	Err:     apperror.ErrUnauthorized,
	Message: "invalid username or password",
}

// AuthService handles local accounts and login sessions.
//
//	AuthHandler (HTTP) → AuthService → UserRepository (DB)
//	                                 ↘ TokenService (JWT), PasswordService (bcrypt)
//	                                 ↘ StreamingTokens (forgotten on logout)
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	streaming StreamingTokens
	logger    *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService wires the dependencies. streaming may be nil when no
// streaming client is configured.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	streaming StreamingTokens,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		streaming: streaming,
		logger:    logger,
	}
}

// RegisterInput is the registration form.
type RegisterInput struct {
	Username string
	Password string
	Email    string
	Role     string
	ImageURL string
}

// AuthResult bundles the user and a freshly issued session so the handler can
// set the cookie and respond in one step.
type AuthResult struct {
	User      *model.User
	Token     string
	SessionID string
}

// Register validates the form, stores the user with a bcrypt hash and logs them in.
//
// A taken username or email comes back as apperror.ErrConflict from the single
// INSERT; nothing is written in that case.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.ImageURL = strings.TrimSpace(in.ImageURL)

	if err := validateRegistration(in); err != nil {
		return nil, err
	}
	if in.ImageURL == "" {
		in.ImageURL = model.DefaultImageURL
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		ImageURL:     in.ImageURL,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: creating user %q: %w", in.Username, err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return s.issue(user)
}

func validateRegistration(in RegisterInput) error {
	if in.Username == "" {
		return apperror.ValidationFailed("username", "username is required")
	}
	if len(in.Username) > MaxUsernameLength {
		return apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d characters or less", MaxUsernameLength))
	}
	if in.Password == "" {
		return apperror.ValidationFailed("password", "password is required")
	}
	if in.Email == "" {
		return apperror.ValidationFailed("email", "email is required")
	}
	// ParseAddress also accepts `Name <a@b>`; only a bare address is allowed.
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return apperror.ValidationFailed("email", "invalid email address")
	}
	if !model.ValidRole(in.Role) {
		return apperror.ValidationFailed("role", "role must be one of the listed options")
	}
	if in.ImageURL != "" {
		u, err := url.ParseRequestURI(in.ImageURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return apperror.ValidationFailed("imgUrl", "image URL must be an http(s) URL")
		}
	}
	return nil
}

// Authenticate checks username and password and opens a new session.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// Spend the same bcrypt time as a real check.
			_ = s.passwords.Verify(s.dummy(), password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("service/auth: looking up %q: %w", username, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Error("stored password hash unreadable",
				slog.String("userID", user.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, ErrInvalidCredentials
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return s.issue(user)
}

// Logout forgets the session's streaming tokens. The JWT cookie itself is
// cleared by the handler.
func (s *AuthService) Logout(sessionID string) {
	if s.streaming != nil && sessionID != "" {
		s.streaming.Forget(sessionID)
	}
}

// GetUserByID returns a user's public profile.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}
	return s.users.GetByID(ctx, id)
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	sessionID := auth.NewSessionID()
	token, err := s.tokens.Generate(user.ID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token, SessionID: sessionID}, nil
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.passwords.Hash("musophile-timing-equalizer")
	})
	return s.dummyHash
}
