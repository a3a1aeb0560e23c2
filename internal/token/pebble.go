package token

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble/v2"
)

// PebbleStore keeps the token in a local pebble database so it survives
// restarts.
type PebbleStore struct {
	db *pebble.DB
}

// OpenPebbleStore opens (creating if needed) the database in dir.
func OpenPebbleStore(dir string) (*PebbleStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("token: empty pebble directory")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("token: create %s: %w", dir, err)
	}
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("token: open pebble: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

// Load returns the stored token or ErrNotFound.
func (s *PebbleStore) Load(_ context.Context) (string, error) {
	val, closer, err := s.db.Get([]byte(Key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("token: pebble get: %w", err)
	}
	defer closer.Close()

	// val is only valid until closer is closed.
	token := string(val)
	if token == "" {
		return "", ErrNotFound
	}
	return token, nil
}

// Save replaces the stored token, syncing to disk.
func (s *PebbleStore) Save(_ context.Context, token string) error {
	if err := s.db.Set([]byte(Key), []byte(token), pebble.Sync); err != nil {
		return fmt.Errorf("token: pebble set: %w", err)
	}
	return nil
}

// Clear removes the token.
func (s *PebbleStore) Clear(_ context.Context) error {
	if err := s.db.Delete([]byte(Key), pebble.Sync); err != nil && !errors.Is(err, pebble.ErrNotFound) {
		return fmt.Errorf("token: pebble delete: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *PebbleStore) Close() error {
	return s.db.Close()
}
