// Package auth issues and checks the local login session.
//
// SESSION FLOW:
//  1. POST /auth/login verifies the password and creates a session id
//  2. The server signs a JWT carrying the user id ("sub") and the session id ("jti")
//     and stores it in the HttpOnly "token" cookie
//  3. RequireAuth validates the cookie on every protected request and puts both
//     ids into the request context
//  4. The session id keys the streaming TokenBundle held in memory; logout forgets it
//
// The JWT is signed with HS256. The server verifies it with the secret alone, no
// DB lookup, so the only per-session server state is the streaming bundle.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "musophile"

// DefaultSessionTTL is used when NewTokenService is given a zero ttl.
const DefaultSessionTTL = 12 * time.Hour

// Session identifies who a request belongs to.
type Session struct {
	UserID    string
	SessionID string
}

// TokenService handles JWT creation and validation.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given secret and session lifetime.
// The secret should be at least 32 bytes of random data in production.
// Example: MUSOPHILE_SERVER_SESSION_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL is how long an issued session token stays valid. Handlers use it for the cookie MaxAge.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// NewSessionID returns a fresh random session id.
//
// Session ids key server-side OAuth state, so they must be unguessable.
// xid is time-ordered and predictable; a v4 UUID carries 122 random bits.
func NewSessionID() string {
	return uuid.NewString()
}

// Generate signs a session token for userID/sessionID valid for the service ttl.
func (s *TokenService) Generate(userID, sessionID string) (string, error) {
	return s.GenerateWithDuration(userID, sessionID, s.ttl)
}

// GenerateWithDuration signs a token with a custom expiry. Tests use a negative
// duration to get an already-expired token.
func (s *TokenService) GenerateWithDuration(userID, sessionID string, d time.Duration) (string, error) {
	now := time.Now()

	c := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(d)),
		Issuer:    issuer,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a session token.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid
//   - Token is not expired, and carries an expiry at all
//   - Issuer matches "musophile"
//   - Algorithm is HS256 (blocks the "alg: none" confusion attack)
func (s *TokenService) Validate(tokenStr string) (Session, error) {
	var c jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&c,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Session{}, fmt.Errorf("auth: token expired")
		}
		return Session{}, fmt.Errorf("auth: invalid token: %w", err)
	}
	if !token.Valid {
		return Session{}, fmt.Errorf("auth: invalid token claims")
	}

	if c.Subject == "" {
		return Session{}, fmt.Errorf("auth: token has no subject")
	}
	if c.ID == "" {
		return Session{}, fmt.Errorf("auth: token has no session id")
	}

	return Session{UserID: c.Subject, SessionID: c.ID}, nil
}
