package session

import (
	"time"

	"github.com/wolfeidau/photoctl/internal/credentials"
	"github.com/wolfeidau/photoctl/internal/models"
)

// Session is the in-memory view of the current credentials. The Manager owns
// the live value; callers only ever see copies returned by Snapshot.
//
// A zero time means the matching token is absent.
type Session struct {
	User             *models.User
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time

	// Initialized is set once hydration from storage has run.
	Initialized bool
	// Refreshing is set while a renewal request is in flight.
	Refreshing bool
}

// HasAccess reports whether both halves of the access pair are present.
func (s Session) HasAccess() bool {
	return s.AccessToken != "" && !s.AccessExpiresAt.IsZero()
}

// HasRefresh reports whether both halves of the refresh pair are present.
func (s Session) HasRefresh() bool {
	return s.RefreshToken != "" && !s.RefreshExpiresAt.IsZero()
}

// Authenticated reports whether the access token is usable at now. Expiry is
// evaluated on every call and never cached.
func (s Session) Authenticated(now time.Time) bool {
	return s.HasAccess() && s.AccessExpiresAt.After(now)
}

func (s Session) clone() Session {
	s.User = s.User.Clone()
	return s
}

func (s *Session) apply(rec credentials.Record) {
	s.AccessToken = rec.Access.Token
	s.AccessExpiresAt = rec.Access.ExpiresAt
	s.RefreshToken = rec.Refresh.Token
	s.RefreshExpiresAt = rec.Refresh.ExpiresAt
	s.User = rec.User.Clone()
}

// reset empties the session. Initialized stays set since storage is cleared
// alongside, and Refreshing belongs to the renewal that set it.
func (s *Session) reset() {
	*s = Session{Initialized: s.Initialized, Refreshing: s.Refreshing}
}
