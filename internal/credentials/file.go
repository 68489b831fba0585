package credentials

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// FileBackend stores each key in its own file inside a private directory.
type FileBackend struct {
	baseDir string
	mu      sync.Mutex
}

// DefaultDir returns ~/.photoctl, the root for all local client state.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".photoctl"), nil
}

// NewFileBackend creates a file backend.
// If baseDir is empty, uses ~/.photoctl/session/
func NewFileBackend(baseDir string) (*FileBackend, error) {
	if baseDir == "" {
		root, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		baseDir = filepath.Join(root, "session")
	}

	// Create directory with 0700 permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	log.Debug().Str("baseDir", baseDir).Msg("file credential backend initialized")

	return &FileBackend{baseDir: baseDir}, nil
}

// Dir returns the directory holding the entries.
func (b *FileBackend) Dir() string {
	return b.baseDir
}

func (b *FileBackend) Get(_ context.Context, key string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}

	data, err := os.ReadFile(filepath.Join(b.baseDir, key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}

	return string(data), true, nil
}

// Set writes the value to a temp file and renames it over the entry so a
// reader never sees a half written value.
func (b *FileBackend) Set(_ context.Context, key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	path := filepath.Join(b.baseDir, key)
	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, []byte(value), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save %s: %w", key, err)
	}

	return nil
}

func (b *FileBackend) Delete(_ context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, key := range keys {
		if err := validateKey(key); err != nil {
			return err
		}
		if err := os.Remove(filepath.Join(b.baseDir, key)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", key, err)
		}
	}

	return nil
}
