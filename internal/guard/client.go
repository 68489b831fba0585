package guard

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
)

// TokenSourcer is implemented by *session.Manager.
type TokenSourcer interface {
	TokenSource(ctx context.Context) oauth2.TokenSource
}

// NewClient returns an HTTP client that ensures the session before every
// request and sends the access token as a bearer token. Requests fail with
// session.ErrNotAuthenticated once there is no session left.
//
// The token source is used directly, not through oauth2.ReuseTokenSource,
// so the session's own renewal margin applies.
func NewClient(ctx context.Context, src TokenSourcer, base http.RoundTripper) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: src.TokenSource(ctx),
			Base:   base,
		},
	}
}
