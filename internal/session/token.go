package session

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// Token ensures the session and returns the access token, or
// ErrNotAuthenticated when there is none left to use.
func (m *Manager) Token(ctx context.Context) (string, error) {
	token, _, err := m.token(ctx)
	return token, err
}

func (m *Manager) token(ctx context.Context) (string, time.Time, error) {
	m.EnsureSession(ctx, false)

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.Authenticated(m.now()) {
		return "", time.Time{}, ErrNotAuthenticated
	}

	return m.state.AccessToken, m.state.AccessExpiresAt, nil
}

// TokenSource adapts the Manager to oauth2. Every Token call goes through
// EnsureSession, so wrapping it in oauth2.ReuseTokenSource would bypass the
// renewal margin.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, m: m}
}

type tokenSource struct {
	ctx context.Context
	m   *Manager
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	token, expiry, err := ts.m.token(ts.ctx)
	if err != nil {
		return nil, err
	}

	return &oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
		Expiry:      expiry,
	}, nil
}
