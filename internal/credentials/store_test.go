package credentials

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/photoctl/internal/models"
)

func sampleRecord() Record {
	return Record{
		Access:  Pair{Token: "access-1", ExpiresAt: time.UnixMilli(60_000)},
		Refresh: Pair{Token: "refresh-1", ExpiresAt: time.UnixMilli(3_600_000)},
		User:    &models.User{ID: 1, Username: "demo-user", Email: "demo@example.com", Role: "ROLE_USER"},
	}
}

// failingBackend fails every operation on the configured key.
type failingBackend struct {
	*MemoryBackend
	failKey string
}

var errBackend = errors.New("disk on fire")

func (f *failingBackend) Get(ctx context.Context, key string) (string, bool, error) {
	if key == f.failKey {
		return "", false, errBackend
	}
	return f.MemoryBackend.Get(ctx, key)
}

func (f *failingBackend) Set(ctx context.Context, key, value string) error {
	if key == f.failKey {
		return errBackend
	}
	return f.MemoryBackend.Set(ctx, key, value)
}

func (f *failingBackend) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		if k == f.failKey {
			return errBackend
		}
	}
	return f.MemoryBackend.Delete(ctx, keys...)
}

func TestStore_Persist(t *testing.T) {
	t.Run("writes all five keys", func(t *testing.T) {
		ctx := context.Background()
		backend := NewMemoryBackend()
		store := NewStore(backend)

		require.NoError(t, store.Persist(ctx, sampleRecord()))
		assert.Equal(t, 5, backend.Len())

		v, ok, err := backend.Get(ctx, KeyAccessExpires)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "60000", v)

		v, ok, err = backend.Get(ctx, KeyRefreshExpires)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "3600000", v)

		v, ok, err = backend.Get(ctx, KeyUser)
		require.NoError(t, err)
		require.True(t, ok)
		assert.JSONEq(t, `{"id":1,"username":"demo-user","email":"demo@example.com","role":"ROLE_USER"}`, v)
	})

	t.Run("round trips through the read helpers", func(t *testing.T) {
		ctx := context.Background()
		store := NewStore(NewMemoryBackend())
		rec := sampleRecord()
		require.NoError(t, store.Persist(ctx, rec))

		access, ok, err := store.ReadAccess(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, rec.Access.Token, access.Token)
		assert.True(t, rec.Access.ExpiresAt.Equal(access.ExpiresAt))

		refresh, ok, err := store.ReadRefresh(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, rec.Refresh.Token, refresh.Token)
		assert.True(t, rec.Refresh.ExpiresAt.Equal(refresh.ExpiresAt))

		user, ok := store.ReadUser(ctx)
		require.True(t, ok)
		assert.Equal(t, rec.User, user)
	})

	t.Run("requires a user profile", func(t *testing.T) {
		store := NewStore(NewMemoryBackend())
		rec := sampleRecord()
		rec.User = nil
		require.Error(t, store.Persist(context.Background(), rec))
	})

	t.Run("wraps backend errors with the key", func(t *testing.T) {
		store := NewStore(&failingBackend{MemoryBackend: NewMemoryBackend(), failKey: KeyRefreshToken})
		err := store.Persist(context.Background(), sampleRecord())
		require.ErrorIs(t, err, errBackend)
		assert.Contains(t, err.Error(), KeyRefreshToken)
	})
}

func TestStore_ReadPair(t *testing.T) {
	t.Run("half written pair is not usable", func(t *testing.T) {
		ctx := context.Background()
		backend := NewMemoryBackend()
		require.NoError(t, backend.Set(ctx, KeyAccessToken, "access-1"))
		store := NewStore(backend)

		_, ok, err := store.ReadAccess(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unparsable expiry reports corruption", func(t *testing.T) {
		ctx := context.Background()
		backend := NewMemoryBackend()
		require.NoError(t, backend.Set(ctx, KeyRefreshToken, "refresh-1"))
		require.NoError(t, backend.Set(ctx, KeyRefreshExpires, "tomorrow"))

		var reported error
		store := NewStore(backend)
		store.OnCorruption(func(err error) { reported = err })

		_, ok, err := store.ReadRefresh(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
		require.ErrorIs(t, reported, ErrStorageCorruption)

		var ce *CorruptionError
		require.ErrorAs(t, reported, &ce)
		assert.Equal(t, KeyRefreshExpires, ce.Key)
	})

	t.Run("backend read errors are returned", func(t *testing.T) {
		store := NewStore(&failingBackend{MemoryBackend: NewMemoryBackend(), failKey: KeyAccessExpires})
		_, _, err := store.ReadAccess(context.Background())
		require.ErrorIs(t, err, errBackend)
	})
}

func TestStore_ReadUser(t *testing.T) {
	t.Run("absent profile", func(t *testing.T) {
		store := NewStore(NewMemoryBackend())
		user, ok := store.ReadUser(context.Background())
		assert.False(t, ok)
		assert.Nil(t, user)
	})

	t.Run("malformed profile is absent and reported", func(t *testing.T) {
		ctx := context.Background()
		backend := NewMemoryBackend()
		require.NoError(t, backend.Set(ctx, KeyUser, "{not json"))

		calls := 0
		store := NewStore(backend)
		store.OnCorruption(func(err error) {
			calls++
			assert.ErrorIs(t, err, ErrStorageCorruption)
		})

		user, ok := store.ReadUser(ctx)
		assert.False(t, ok)
		assert.Nil(t, user)
		assert.Equal(t, 1, calls)
	})

	t.Run("null profile is absent", func(t *testing.T) {
		for _, raw := range []string{"null", "  null\n"} {
			ctx := context.Background()
			backend := NewMemoryBackend()
			require.NoError(t, backend.Set(ctx, KeyUser, raw))
			store := NewStore(backend)
			store.OnCorruption(func(err error) { t.Fatalf("unexpected corruption report: %v", err) })

			user, ok := store.ReadUser(ctx)
			assert.False(t, ok, raw)
			assert.Nil(t, user, raw)
		}
	})

	t.Run("empty profile is reported", func(t *testing.T) {
		ctx := context.Background()
		backend := NewMemoryBackend()
		require.NoError(t, backend.Set(ctx, KeyUser, "{}"))

		var reported error
		store := NewStore(backend)
		store.OnCorruption(func(err error) { reported = err })

		user, ok := store.ReadUser(ctx)
		assert.False(t, ok)
		assert.Nil(t, user)
		require.ErrorIs(t, reported, ErrStorageCorruption)

		var corrupt *CorruptionError
		require.ErrorAs(t, reported, &corrupt)
		assert.Equal(t, KeyUser, corrupt.Key)
	})

	t.Run("backend failure is absent, not corruption", func(t *testing.T) {
		store := NewStore(&failingBackend{MemoryBackend: NewMemoryBackend(), failKey: KeyUser})
		store.OnCorruption(func(err error) { t.Fatalf("unexpected corruption report: %v", err) })

		_, ok := store.ReadUser(context.Background())
		assert.False(t, ok)
	})
}

func TestStore_Clear(t *testing.T) {
	seed := func(t *testing.T) (*MemoryBackend, *Store) {
		t.Helper()
		backend := NewMemoryBackend()
		store := NewStore(backend)
		require.NoError(t, store.Persist(context.Background(), sampleRecord()))
		return backend, store
	}

	t.Run("clear access keeps refresh pair and profile", func(t *testing.T) {
		ctx := context.Background()
		backend, store := seed(t)
		require.NoError(t, store.ClearAccess(ctx))
		assert.Equal(t, 3, backend.Len())

		_, ok, err := store.ReadRefresh(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		_, ok = store.ReadUser(ctx)
		assert.True(t, ok)
	})

	t.Run("clear refresh keeps access pair and profile", func(t *testing.T) {
		ctx := context.Background()
		backend, store := seed(t)
		require.NoError(t, store.ClearRefresh(ctx))
		assert.Equal(t, 3, backend.Len())

		_, ok, err := store.ReadAccess(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("clear profile keeps both pairs", func(t *testing.T) {
		backend, store := seed(t)
		require.NoError(t, store.ClearProfile(context.Background()))
		assert.Equal(t, 4, backend.Len())
	})

	t.Run("clear removes everything and is idempotent", func(t *testing.T) {
		ctx := context.Background()
		backend, store := seed(t)
		require.NoError(t, store.Clear(ctx))
		assert.Equal(t, 0, backend.Len())
		require.NoError(t, store.Clear(ctx))
	})

	t.Run("clear keeps going after a failing subset", func(t *testing.T) {
		ctx := context.Background()
		backend := &failingBackend{MemoryBackend: NewMemoryBackend(), failKey: KeyAccessToken}
		require.NoError(t, NewStore(backend.MemoryBackend).Persist(ctx, sampleRecord()))
		store := NewStore(backend)

		err := store.Clear(ctx)
		require.ErrorIs(t, err, errBackend)
		// refresh pair and profile are gone, the access pair could not be removed
		assert.Equal(t, 2, backend.Len())
	})
}

func TestStore_RefreshToken(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryBackend())

	token, err := store.RefreshToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, store.Persist(ctx, sampleRecord()))
	token, err = store.RefreshToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", token)
}

func TestFingerprint(t *testing.T) {
	assert.Empty(t, Fingerprint(""))
	assert.Equal(t, Fingerprint("abc"), Fingerprint("abc"))
	assert.NotEqual(t, Fingerprint("abc"), Fingerprint("abd"))
	assert.NotContains(t, Fingerprint("secret-token"), "secret")
}
