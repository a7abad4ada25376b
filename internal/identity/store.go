// Package identity holds the locally cached sign-in flags (the portal's
// equivalent of browser local storage) behind an injectable Store.
package identity

import (
	"context"
	"sync"
)

// Keys persisted by the login/logout flows. Values are plain strings.
const (
	KeyUser          = "user"
	KeyUserID        = "userId"
	KeyUserType      = "userType"
	KeyUserRoles     = "userRoles"
	KeyRememberEmail = "rememberEmail"
	KeyAuthToken     = "authToken"
)

// identityKeys are cleared on logout and session expiry. rememberEmail is a
// convenience for the login form and survives both.
var identityKeys = []string{KeyUser, KeyUserID, KeyUserType, KeyUserRoles, KeyAuthToken}

// Store is a flat string key/value store.
type Store interface {
	// Get returns the value and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// MemoryStore keeps values in process memory. Used by tests and by the
// terminal client when nothing should outlive the process.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}
