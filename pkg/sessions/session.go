package sessions

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/google/uuid"

	"github.com/gatehouse-dev/gatehouse/pkg/gatehouse"
)

// session is the per-request session handed to handlers through the
// request context. Mutations mark it dirty; the middleware persists dirty
// sessions after the handler returns, and the engine saves explicitly at
// login.
type session struct {
	id    string
	data  map[string]any
	store Store
	cfg   *Config
	w     http.ResponseWriter

	isNew      bool
	dirty      bool
	destroyed  bool
	cookieSent bool
}

// Ensure session implements gatehouse.Session at compile time.
var _ gatehouse.Session = (*session)(nil)

func newSessionID() string {
	return uuid.NewString()
}

func (s *session) ID() string { return s.id }

func (s *session) Get(key string) (any, bool) {
	v, ok := s.data[key]
	return v, ok
}

func (s *session) Set(key string, value any) {
	s.data[key] = value
	s.markDirty()
}

func (s *session) Delete(key string) {
	if _, ok := s.data[key]; !ok {
		return
	}
	delete(s.data, key)
	s.markDirty()
}

func (s *session) Keys() []string {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Save persists the current data to the store under the session's id.
func (s *session) Save(ctx context.Context) error {
	if !s.cookieSent {
		s.writeCookie()
	}
	if err := s.store.Save(ctx, s.id, s.data, s.cfg.TTL); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	s.dirty = false
	s.isNew = false
	return nil
}

// Regenerate discards the current id and data, removes the old record
// from the store, and re-issues the cookie with a fresh id.
func (s *session) Regenerate(ctx context.Context) error {
	if err := s.store.Delete(ctx, s.id); err != nil {
		return fmt.Errorf("deleting old session: %w", err)
	}
	s.id = newSessionID()
	s.data = make(map[string]any)
	s.isNew = true
	s.dirty = true
	s.writeCookie()
	return nil
}

// Destroy removes the session from the store and expires the client's
// cookie. The middleware skips the post-handler save for destroyed
// sessions.
func (s *session) Destroy(ctx context.Context) error {
	if err := s.store.Delete(ctx, s.id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	s.data = make(map[string]any)
	s.destroyed = true
	s.dirty = false
	s.expireCookie()
	return nil
}

// markDirty flags pending mutations. The first mutation of a fresh
// session also issues the cookie, while response headers are still open.
func (s *session) markDirty() {
	s.dirty = true
	if !s.cookieSent {
		s.writeCookie()
	}
}

func (s *session) writeCookie() {
	http.SetCookie(s.w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    s.id,
		Path:     s.cfg.Path,
		Domain:   s.cfg.Domain,
		MaxAge:   int(s.cfg.TTL.Seconds()),
		Secure:   s.cfg.Secure,
		HttpOnly: !s.cfg.DisableHTTPOnly,
		SameSite: s.cfg.SameSite,
	})
	s.cookieSent = true
}

func (s *session) expireCookie() {
	http.SetCookie(s.w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    "",
		Path:     s.cfg.Path,
		Domain:   s.cfg.Domain,
		MaxAge:   -1,
		Secure:   s.cfg.Secure,
		HttpOnly: !s.cfg.DisableHTTPOnly,
		SameSite: s.cfg.SameSite,
	})
	s.cookieSent = false
}
