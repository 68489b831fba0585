package credentials

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFileBackend(t *testing.T) {
	t.Run("creates directory with correct permissions", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "session")

		backend, err := NewFileBackend(dir)
		require.NoError(t, err)
		assert.Equal(t, dir, backend.Dir())

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
	})

	t.Run("uses default directory when baseDir is empty", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())

		backend, err := NewFileBackend("")
		if err != nil {
			assert.Contains(t, err.Error(), "home directory")
			return
		}
		assert.Equal(t, ".photoctl", filepath.Base(filepath.Dir(backend.Dir())))
	})
}

func TestFileBackend(t *testing.T) {
	t.Run("set then get", func(t *testing.T) {
		ctx := context.Background()
		backend, err := NewFileBackend(t.TempDir())
		require.NoError(t, err)

		require.NoError(t, backend.Set(ctx, KeyAccessToken, "access-1"))

		v, ok, err := backend.Get(ctx, KeyAccessToken)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "access-1", v)
	})

	t.Run("writes private files and leaves no temp files", func(t *testing.T) {
		dir := t.TempDir()
		backend, err := NewFileBackend(dir)
		require.NoError(t, err)

		require.NoError(t, backend.Set(context.Background(), KeyRefreshToken, "refresh-1"))

		info, err := os.Stat(filepath.Join(dir, KeyRefreshToken))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("missing key is absent", func(t *testing.T) {
		backend, err := NewFileBackend(t.TempDir())
		require.NoError(t, err)

		v, ok, err := backend.Get(context.Background(), KeyUser)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, v)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		ctx := context.Background()
		backend, err := NewFileBackend(t.TempDir())
		require.NoError(t, err)

		require.NoError(t, backend.Set(ctx, KeyUser, "{}"))
		require.NoError(t, backend.Delete(ctx, KeyUser, KeyAccessToken))
		require.NoError(t, backend.Delete(ctx, KeyUser))

		_, ok, err := backend.Get(ctx, KeyUser)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("rejects keys that escape the directory", func(t *testing.T) {
		backend, err := NewFileBackend(t.TempDir())
		require.NoError(t, err)

		err = backend.Set(context.Background(), "../escape", "x")
		assert.ErrorIs(t, err, ErrInvalidKey)
		_, _, err = backend.Get(context.Background(), "a/b")
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("survives a restart", func(t *testing.T) {
		ctx := context.Background()
		dir := t.TempDir()

		first, err := NewFileBackend(dir)
		require.NoError(t, err)
		require.NoError(t, NewStore(first).Persist(ctx, sampleRecord()))

		second, err := NewFileBackend(dir)
		require.NoError(t, err)
		user, ok := NewStore(second).ReadUser(ctx)
		require.True(t, ok)
		assert.Equal(t, "demo-user", user.Username)
	})
}
