// Package memory provides an in-memory implementation of sessions.Store
// for testing and single-process deployments. Sessions are lost when the
// process restarts.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gatehouse-dev/gatehouse/pkg/sessions"
)

// entry holds one serialized session and its expiry.
type entry struct {
	payload   []byte
	expiresAt time.Time
}

// Store is an in-memory session store. Data round-trips through JSON so
// reads observe the same types a networked store would produce.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// Ensure Store implements sessions.Store at compile time.
var _ sessions.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{entries: make(map[string]entry)}
}

// Load returns the session data for id, or sessions.ErrNotFound when the
// session does not exist or has expired. Expired entries are removed
// lazily here and in bulk by Sweep.
func (s *Store) Load(ctx context.Context, id string) (map[string]any, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()

	if !ok {
		return nil, sessions.ErrNotFound
	}
	if time.Now().After(e.expiresAt) {
		s.mu.Lock()
		delete(s.entries, id)
		s.mu.Unlock()
		return nil, sessions.ErrNotFound
	}

	var data map[string]any
	if err := json.Unmarshal(e.payload, &data); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return data, nil
}

// Save writes the session data under id with the given lifetime.
func (s *Store) Save(ctx context.Context, id string, data map[string]any, ttl time.Duration) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = entry{payload: payload, expiresAt: time.Now().Add(ttl)}
	return nil
}

// Delete removes the session with the given id.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

// Sweep removes every expired entry and reports how many were removed.
func (s *Store) Sweep() int {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored sessions, including not yet swept
// expired ones.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
