// Package streaming talks to the streaming service (a Spotify-style Web API):
// the OAuth authorization-code and refresh-token grants, and catalog search.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
//  1. GET /auth/streaming/login redirects the browser to AuthorizationURL(state)
//  2. The user approves and the provider calls back with ?code=...&state=...
//  3. Exchange trades the code for a TokenBundle, server to server, using the
//     client secret
//  4. When a search gets 401, Refresh trades the refresh token for a new bundle
//
// Bundles are keyed by login session id and live only in memory.
package streaming

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sakif/musophile/internal/apperror"
	"github.com/sakif/musophile/internal/config"
	"golang.org/x/oauth2"
)

// ErrNoTokens means the session never completed the authorization flow, or
// logged out since.
var ErrNoTokens = errors.New("streaming: session has no token bundle")

// TokenBundle is the current credential set for one session.
type TokenBundle struct {
	AccessToken  string
	AuthHeader   string // "Bearer <access token>"
	Scope        string
	Expiry       time.Time
	RefreshToken string
}

// Expired reports whether the access token is past its expiry. A zero expiry
// never expires.
func (b TokenBundle) Expired(now time.Time) bool {
	return !b.Expiry.IsZero() && now.After(b.Expiry)
}

// TokenManager runs the OAuth grants and owns the per-session bundles.
type TokenManager struct {
	config  *oauth2.Config
	client  *http.Client
	timeout time.Duration
	store   *SessionStore
}

// NewTokenManager builds a manager from the streaming credentials.
//
// AuthStyleInHeader makes x/oauth2 send the client credentials as
// "Authorization: Basic base64(client_id:client_secret)" on both grants,
// which is what the provider expects on refresh.
func NewTokenManager(cfg config.StreamingConfig, store *SessionStore) (*TokenManager, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("streaming: missing client_id")
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("streaming: missing client_secret")
	}
	if store == nil {
		store = NewSessionStore(0)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &TokenManager{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		store:   store,
	}, nil
}

// AuthorizationURL is where the browser is sent to grant access. It only
// builds a URL.
func (m *TokenManager) AuthorizationURL(state string) string {
	return m.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for a bundle and makes it the
// session's current one. On failure the session is left as it was.
func (m *TokenManager) Exchange(ctx context.Context, sessionID, code string) (*TokenBundle, error) {
	if code == "" {
		return nil, apperror.ValidationFailed("code", "authorization code is required")
	}

	ctx, cancel := m.withClient(ctx)
	defer cancel()

	tok, err := m.config.Exchange(ctx, code)
	if err != nil {
		return nil, grantError("authorization_code", err)
	}

	bundle := newBundle(tok)

	e := m.store.entry(sessionID)
	e.mu.Lock()
	e.bundle = &bundle
	e.mu.Unlock()

	return &bundle, nil
}

// Refresh runs the refresh-token grant for the session and replaces its bundle.
// The provider may omit refresh_token in the response; the previous one is kept then.
//
// The session lock is held across the HTTP call, so concurrent refreshes of one
// session are serialized and the last writer always saw the previous result.
func (m *TokenManager) Refresh(ctx context.Context, sessionID string) (*TokenBundle, error) {
	e, ok := m.store.lookup(sessionID)
	if !ok {
		return nil, ErrNoTokens
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.bundle == nil {
		return nil, ErrNoTokens
	}
	previous := e.bundle.RefreshToken
	if previous == "" {
		return nil, apperror.AuthExchange("refresh_token", errors.New("no refresh token on record"))
	}

	ctx, cancel := m.withClient(ctx)
	defer cancel()

	// An access-token-less token forces the source to hit the token endpoint.
	tok, err := m.config.TokenSource(ctx, &oauth2.Token{RefreshToken: previous}).Token()
	if err != nil {
		return nil, grantError("refresh_token", err)
	}

	bundle := newBundle(tok)
	if bundle.RefreshToken == "" {
		bundle.RefreshToken = previous
	}
	e.bundle = &bundle

	return &bundle, nil
}

// Current returns the session's bundle, or ErrNoTokens.
func (m *TokenManager) Current(sessionID string) (TokenBundle, error) {
	bundle, ok := m.store.Get(sessionID)
	if !ok {
		return TokenBundle{}, ErrNoTokens
	}
	return bundle, nil
}

// Forget discards the session's bundle (logout).
func (m *TokenManager) Forget(sessionID string) {
	m.store.Delete(sessionID)
}

// withClient bounds the grant by the configured timeout and makes x/oauth2 use
// our http.Client instead of http.DefaultClient.
func (m *TokenManager) withClient(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.client)
	return context.WithTimeout(ctx, m.timeout)
}

func newBundle(tok *oauth2.Token) TokenBundle {
	scope, _ := tok.Extra("scope").(string)
	return TokenBundle{
		AccessToken:  tok.AccessToken,
		AuthHeader:   tok.Type() + " " + tok.AccessToken,
		Scope:        scope,
		Expiry:       tok.Expiry,
		RefreshToken: tok.RefreshToken,
	}
}

func grantError(grant string, err error) error {
	if apperror.IsTimeout(err) {
		return apperror.Timeout(grant+" grant", err)
	}
	return apperror.AuthExchange(grant, err)
}
