package sessions

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for session storage operations.
var (
	// ErrNotFound is returned when a session does not exist or has expired.
	ErrNotFound = errors.New("session not found")
)

// Store persists session records keyed by id. Implementations serialize
// the data map as JSON and enforce the ttl so expired records behave as
// absent.
type Store interface {
	// Load returns the data of the session with the given id, or
	// ErrNotFound when the session does not exist or has expired.
	Load(ctx context.Context, id string) (map[string]any, error)

	// Save writes the session data under id with the given lifetime,
	// replacing any existing record.
	Save(ctx context.Context, id string, data map[string]any, ttl time.Duration) error

	// Delete removes the session with the given id. Deleting an absent
	// session is not an error.
	Delete(ctx context.Context, id string) error
}
