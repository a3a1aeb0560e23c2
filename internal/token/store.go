// Package token persists the chat access token between runs. The token is a
// single opaque string under one key; it is never inspected or expired on
// the client.
package token

import (
	"context"
	"errors"
	"sync"
)

// Key is the storage key holding the access token.
const Key = "access_token"

// ErrNotFound is returned by Load when no token is stored.
var ErrNotFound = errors.New("token: not found")

// Store saves, loads and clears the access token.
type Store interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the token in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the stored token or ErrNotFound.
func (s *MemoryStore) Load(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", ErrNotFound
	}
	return s.token, nil
}

// Save replaces the stored token.
func (s *MemoryStore) Save(_ context.Context, token string) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

// Clear removes the token.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	return nil
}
