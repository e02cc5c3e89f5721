package gatehouse

import (
	"context"
	"fmt"

	"github.com/gatehouse-dev/gatehouse/pkg/observability"
)

// Session is the engine's contract with the application's session layer.
// Implementations back the per-request session object with whatever store
// the application runs; the engine only requires field access, explicit
// persistence, and id regeneration. Values pass through the store's
// serialization, so implementations commonly round-trip them through JSON.
//
// A Session belongs to one request and is not safe for concurrent use.
type Session interface {
	// ID returns the current session id.
	ID() string

	// Get returns the value stored under key, reporting whether it is set.
	Get(key string) (any, bool)

	// Set stores value under key.
	Set(key string, value any)

	// Delete removes key. Deleting an absent key is a no-op.
	Delete(key string)

	// Keys returns the keys currently set.
	Keys() []string

	// Save persists the session's current data to the backing store.
	Save(ctx context.Context) error

	// Regenerate discards the current session id, issues a fresh one, and
	// clears the data. The old id's record is removed from the store.
	Regenerate(ctx context.Context) error

	// Destroy removes the session from the store and invalidates the
	// client's reference to it.
	Destroy(ctx context.Context) error
}

// Session field names owned by the engine. The user key is configurable
// through Config.SessionKey; the rest are fixed.
const (
	flashSessionKey    = "gatehouse.flash"
	messagesSessionKey = "gatehouse.messages"
	returnToSessionKey = "returnTo"
)

// SessionManager binds login state to sessions. It owns the session fields
// the engine uses and the id-regeneration discipline around login and
// logout. A manager is created by New and shared by all requests.
type SessionManager struct {
	auth *Authenticator
	key  string
}

// LoginOptions configures a login.
type LoginOptions struct {
	// DisableSession makes the login request-scoped only: the user is
	// attached to the request but no session is established. Honored by
	// LoginWithOptions; SessionManager.LogIn is the session write itself
	// and is simply not called.
	DisableSession bool

	// KeepSessionInfo carries the existing session fields across the id
	// regeneration. Without it the new session starts empty except for the
	// serialized user.
	KeepSessionInfo bool
}

// LogoutOptions configures LogOut.
type LogoutOptions struct {
	// KeepSessionInfo carries the remaining session fields across the id
	// regeneration performed after the user is removed.
	KeepSessionInfo bool
}

// LogIn establishes user as the session's logged-in user. The user is
// serialized first, so a serialization failure leaves the session
// untouched. The session id is regenerated before the user is stored and
// the session is saved before LogIn returns, which makes a login durable
// before any redirect that follows it.
func (m *SessionManager) LogIn(ctx context.Context, sess Session, user any, opts LoginOptions) error {
	if sess == nil {
		return ErrSessionUnavailable
	}
	serialized, err := m.auth.SerializeUser(ctx, user)
	if err != nil {
		return err
	}

	var keep map[string]any
	if opts.KeepSessionInfo {
		keep = snapshot(sess)
	}
	if err := sess.Regenerate(ctx); err != nil {
		return fmt.Errorf("regenerating session: %w", err)
	}
	for k, v := range keep {
		if k == m.key {
			continue
		}
		sess.Set(k, v)
	}
	sess.Set(m.key, serialized)
	if err := sess.Save(ctx); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	observability.LoginsTotal.Inc()
	return nil
}

// LogOut terminates the session's login. The user field is removed and the
// removal saved before the session id is regenerated, so the logout is
// durable even if regeneration fails partway.
func (m *SessionManager) LogOut(ctx context.Context, sess Session, opts LogoutOptions) error {
	if sess == nil {
		return ErrSessionUnavailable
	}
	sess.Delete(m.key)
	if err := sess.Save(ctx); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	var keep map[string]any
	if opts.KeepSessionInfo {
		keep = snapshot(sess)
	}
	if err := sess.Regenerate(ctx); err != nil {
		return fmt.Errorf("regenerating session: %w", err)
	}
	if len(keep) > 0 {
		for k, v := range keep {
			sess.Set(k, v)
		}
		if err := sess.Save(ctx); err != nil {
			return fmt.Errorf("saving session: %w", err)
		}
	}
	observability.LogoutsTotal.Inc()
	return nil
}

// User returns the serialized user stored in the session, if any.
func (m *SessionManager) User(sess Session) (any, bool) {
	if sess == nil {
		return nil, false
	}
	v, ok := sess.Get(m.key)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// ClearUser removes the serialized user from the session. The session
// strategy uses it to drop references to users that no longer exist.
func (m *SessionManager) ClearUser(sess Session) {
	if sess == nil {
		return
	}
	sess.Delete(m.key)
}

// SetFlash queues a one-time message under kind.
func (m *SessionManager) SetFlash(sess Session, kind FlashKind, msg string) {
	if sess == nil || msg == "" {
		return
	}
	all := normalizeFlash(sess)
	all[string(kind)] = append(all[string(kind)], msg)
	sess.Set(flashSessionKey, all)
}

// Flash returns and clears the queued messages of the given kind. Other
// kinds stay queued.
func (m *SessionManager) Flash(sess Session, kind FlashKind) []string {
	if sess == nil {
		return nil
	}
	all := normalizeFlash(sess)
	msgs := all[string(kind)]
	if len(msgs) == 0 {
		return nil
	}
	delete(all, string(kind))
	if len(all) == 0 {
		sess.Delete(flashSessionKey)
	} else {
		sess.Set(flashSessionKey, all)
	}
	return msgs
}

// AddMessage appends msg to the session's message log.
func (m *SessionManager) AddMessage(sess Session, msg string) {
	if sess == nil || msg == "" {
		return
	}
	msgs := normalizeStrings(getSession(sess, messagesSessionKey))
	sess.Set(messagesSessionKey, append(msgs, msg))
}

// Messages returns the session's message log without clearing it.
func (m *SessionManager) Messages(sess Session) []string {
	if sess == nil {
		return nil
	}
	return normalizeStrings(getSession(sess, messagesSessionKey))
}

// SetReturnTo records the URL a later successful login should redirect
// back to.
func (m *SessionManager) SetReturnTo(sess Session, url string) {
	if sess == nil || url == "" {
		return
	}
	sess.Set(returnToSessionKey, url)
}

// PluckReturnTo returns and clears the captured return URL. The second
// return reports whether one was present; a second call finds nothing.
func (m *SessionManager) PluckReturnTo(sess Session) (string, bool) {
	if sess == nil {
		return "", false
	}
	v, ok := sess.Get(returnToSessionKey)
	if !ok {
		return "", false
	}
	sess.Delete(returnToSessionKey)
	s, _ := v.(string)
	if s == "" {
		return "", false
	}
	return s, true
}

// snapshot copies every field currently set on the session.
func snapshot(sess Session) map[string]any {
	out := make(map[string]any)
	for _, k := range sess.Keys() {
		if v, ok := sess.Get(k); ok {
			out[k] = v
		}
	}
	return out
}

func getSession(sess Session, key string) any {
	v, _ := sess.Get(key)
	return v
}

// normalizeFlash reads the flash field into its native shape, tolerating
// the loosened types a JSON round trip through a store produces.
func normalizeFlash(sess Session) map[string][]string {
	out := make(map[string][]string)
	switch all := getSession(sess, flashSessionKey).(type) {
	case map[string][]string:
		for k, v := range all {
			out[k] = v
		}
	case map[string]any:
		for k, v := range all {
			if msgs := normalizeStrings(v); len(msgs) > 0 {
				out[k] = msgs
			}
		}
	}
	return out
}

// normalizeStrings coerces a stored string list back to []string.
func normalizeStrings(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
