package credentials

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/photoctl/internal/models"
)

// Fixed storage keys. Each is written and cleared independently so the
// access pair, the refresh pair and the profile can be invalidated apart.
const (
	KeyAccessToken    = "pm_auth_token"
	KeyAccessExpires  = "pm_auth_expires"
	KeyRefreshToken   = "pm_refresh_token"
	KeyRefreshExpires = "pm_refresh_expires"
	KeyUser           = "pm_auth_user"
)

// AllKeys lists every key owned by the store.
var AllKeys = []string{KeyAccessToken, KeyAccessExpires, KeyRefreshToken, KeyRefreshExpires, KeyUser}

// Pair is a token with its absolute expiry.
type Pair struct {
	Token     string
	ExpiresAt time.Time
}

// Record is everything persisted for one session.
type Record struct {
	Access  Pair
	Refresh Pair
	User    *models.User
}

var errIncompleteProfile = errors.New("profile has neither id nor username")

// CorruptionError describes a stored entry that could not be decoded.
// It matches ErrStorageCorruption with errors.Is.
type CorruptionError struct {
	Key string
	Err error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStorageCorruption, e.Key, e.Err)
}

func (e *CorruptionError) Unwrap() []error {
	return []error{ErrStorageCorruption, e.Err}
}

// Store persists a session Record over a Backend.
type Store struct {
	backend   Backend
	onCorrupt func(error)
}

// NewStore creates a store on top of backend.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// OnCorruption registers fn to be told about stored data that could not be
// decoded. The data is treated as absent either way.
func (s *Store) OnCorruption(fn func(error)) {
	s.onCorrupt = fn
}

// Persist writes all five entries. The medium has no multi key transaction,
// so readers must validate what they load.
func (s *Store) Persist(ctx context.Context, rec Record) error {
	if rec.User == nil {
		return errors.New("failed to persist session: missing user profile")
	}

	profile, err := json.Marshal(rec.User)
	if err != nil {
		return fmt.Errorf("failed to marshal user profile: %w", err)
	}

	writes := []struct{ key, value string }{
		{KeyAccessToken, rec.Access.Token},
		{KeyAccessExpires, formatMillis(rec.Access.ExpiresAt)},
		{KeyUser, string(profile)},
		{KeyRefreshToken, rec.Refresh.Token},
		{KeyRefreshExpires, formatMillis(rec.Refresh.ExpiresAt)},
	}
	for _, w := range writes {
		if err := s.backend.Set(ctx, w.key, w.value); err != nil {
			return fmt.Errorf("failed to persist %s: %w", w.key, err)
		}
	}

	log.Debug().
		Str("access", Fingerprint(rec.Access.Token)).
		Str("refresh", Fingerprint(rec.Refresh.Token)).
		Time("accessExpiresAt", rec.Access.ExpiresAt).
		Time("refreshExpiresAt", rec.Refresh.ExpiresAt).
		Msg("session persisted")

	return nil
}

// ReadAccess returns the stored access pair. ok is false unless both entries
// are present and the expiry parses.
func (s *Store) ReadAccess(ctx context.Context) (Pair, bool, error) {
	return s.readPair(ctx, KeyAccessToken, KeyAccessExpires)
}

// ReadRefresh returns the stored refresh pair, see ReadAccess.
func (s *Store) ReadRefresh(ctx context.Context) (Pair, bool, error) {
	return s.readPair(ctx, KeyRefreshToken, KeyRefreshExpires)
}

// RefreshToken returns the stored refresh token regardless of its expiry.
func (s *Store) RefreshToken(ctx context.Context) (string, error) {
	token, _, err := s.backend.Get(ctx, KeyRefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to read refresh token: %w", err)
	}
	return token, nil
}

// ReadUser returns the cached profile. Missing, unreadable or malformed data
// yields ok == false; decoding problems go to the corruption hook and are
// never returned.
func (s *Store) ReadUser(ctx context.Context) (*models.User, bool) {
	raw, ok, err := s.backend.Get(ctx, KeyUser)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read user profile")
		return nil, false
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, false
	}

	var user *models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		s.corrupt(&CorruptionError{Key: KeyUser, Err: err})
		return nil, false
	}
	if user == nil {
		return nil, false
	}
	if user.ID == 0 && user.Username == "" {
		s.corrupt(&CorruptionError{Key: KeyUser, Err: errIncompleteProfile})
		return nil, false
	}

	return user, true
}

// ClearAccess removes the access pair.
func (s *Store) ClearAccess(ctx context.Context) error {
	return s.delete(ctx, KeyAccessToken, KeyAccessExpires)
}

// ClearRefresh removes the refresh pair.
func (s *Store) ClearRefresh(ctx context.Context) error {
	return s.delete(ctx, KeyRefreshToken, KeyRefreshExpires)
}

// ClearProfile removes the cached user profile.
func (s *Store) ClearProfile(ctx context.Context) error {
	return s.delete(ctx, KeyUser)
}

// Clear removes all five entries, attempting every subset even if one fails.
func (s *Store) Clear(ctx context.Context) error {
	return errors.Join(
		s.ClearAccess(ctx),
		s.ClearRefresh(ctx),
		s.ClearProfile(ctx),
	)
}

func (s *Store) delete(ctx context.Context, keys ...string) error {
	if err := s.backend.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("failed to clear %s: %w", strings.Join(keys, ","), err)
	}
	return nil
}

func (s *Store) readPair(ctx context.Context, tokenKey, expiresKey string) (Pair, bool, error) {
	token, hasToken, err := s.backend.Get(ctx, tokenKey)
	if err != nil {
		return Pair{}, false, fmt.Errorf("failed to read %s: %w", tokenKey, err)
	}
	expires, hasExpires, err := s.backend.Get(ctx, expiresKey)
	if err != nil {
		return Pair{}, false, fmt.Errorf("failed to read %s: %w", expiresKey, err)
	}

	if !hasToken || token == "" || !hasExpires {
		return Pair{}, false, nil
	}

	expiresAt, err := parseMillis(expires)
	if err != nil {
		s.corrupt(&CorruptionError{Key: expiresKey, Err: err})
		return Pair{}, false, nil
	}

	return Pair{Token: token, ExpiresAt: expiresAt}, true, nil
}

func (s *Store) corrupt(err error) {
	log.Warn().Err(err).Msg("ignoring corrupt credential data")
	if s.onCorrupt != nil {
		s.onCorrupt(err)
	}
}

// Fingerprint returns a short, stable identifier for a token that is safe to
// print: the Base58 encoded SHA256 of the token.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(token))
	return base58.Encode(hash[:])
}

func formatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseMillis(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
