// Package redis provides a Redis-backed implementation of sessions.Store
// for multi-instance deployments. Expiry is delegated to Redis key TTLs.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gatehouse-dev/gatehouse/pkg/sessions"
)

// defaultKeyPrefix namespaces session keys so the store can share a Redis
// database with other data.
const defaultKeyPrefix = "gatehouse:session:"

// Store is a Redis-backed session store.
type Store struct {
	client *redis.Client
	prefix string
}

// Ensure Store implements sessions.Store at compile time.
var _ sessions.Store = (*Store)(nil)

// New creates a store over an existing Redis client. An empty prefix
// selects the default key prefix.
func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

// Load returns the session data for id, or sessions.ErrNotFound when the
// key does not exist or its TTL has elapsed.
func (s *Store) Load(ctx context.Context, id string) (map[string]any, error) {
	payload, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sessions.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}

	var data map[string]any
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return data, nil
}

// Save writes the session data under id, letting Redis expire the key
// after ttl.
func (s *Store) Save(ctx context.Context, id string, data map[string]any, ttl time.Duration) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", id, err)
	}
	if err := s.client.Set(ctx, s.key(id), payload, ttl).Err(); err != nil {
		return fmt.Errorf("saving session %s: %w", id, err)
	}
	return nil
}

// Delete removes the session with the given id.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	return nil
}

// HealthCheck verifies the Redis connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
