package gatehouse

import (
	"context"
	"net/http"
)

type stateContextKey struct{}

type sessionContextKey struct{}

// state is the per-request authentication state: the request properties
// holding attached users and the transformed auth info. It is installed by
// Initialize or by the first Authenticate middleware on the request.
//
// A state belongs to one request and, like Session, is not safe for
// concurrent use.
type state struct {
	auth  *Authenticator
	props map[string]any
	info  any
}

func newState(a *Authenticator) *state {
	return &state{auth: a, props: make(map[string]any)}
}

func (s *state) set(key string, v any) { s.props[key] = v }

func (s *state) get(key string) any { return s.props[key] }

func (s *state) remove(key string) { delete(s.props, key) }

func withState(ctx context.Context, st *state) context.Context {
	return context.WithValue(ctx, stateContextKey{}, st)
}

func stateFromContext(ctx context.Context) *state {
	st, _ := ctx.Value(stateContextKey{}).(*state)
	return st
}

// WithSession attaches a Session to the context. Session middleware calls
// this for every request it manages; the engine reads the session back
// through SessionFromContext.
func WithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext returns the Session attached to the context, or nil
// when the request has no session support.
func SessionFromContext(ctx context.Context) Session {
	sess, _ := ctx.Value(sessionContextKey{}).(Session)
	return sess
}

// CurrentUser returns the authenticated user attached to the request, or
// nil when the request is unauthenticated.
func CurrentUser(r *http.Request) any {
	st := stateFromContext(r.Context())
	if st == nil {
		return nil
	}
	return st.get(st.auth.cfg.UserProperty)
}

// Property returns the user attached under a non-default request property,
// as produced by the AssignTo option or by Authorize.
func Property(r *http.Request, name string) any {
	st := stateFromContext(r.Context())
	if st == nil {
		return nil
	}
	return st.get(name)
}

// AuthInfo returns the transformed auth info attached by the most recent
// successful strategy, or nil.
func AuthInfo(r *http.Request) any {
	st := stateFromContext(r.Context())
	if st == nil {
		return nil
	}
	return st.info
}

// IsAuthenticated reports whether a user is attached to the request under
// the configured user property.
func IsAuthenticated(r *http.Request) bool {
	return CurrentUser(r) != nil
}

// IsUnauthenticated is the negation of IsAuthenticated.
func IsUnauthenticated(r *http.Request) bool {
	return !IsAuthenticated(r)
}

// Login attaches user to the request and establishes a login session with
// default options. See LoginWithOptions.
func Login(r *http.Request, user any) error {
	return LoginWithOptions(r, user, LoginOptions{})
}

// LoginWithOptions attaches user to the request and, unless
// opts.DisableSession is set, establishes a login session through the
// session manager. On a session failure the attached user is removed
// again so the request never claims a login the session does not back.
//
// The request must have passed through Initialize or Authenticate;
// otherwise ErrNotInitialized is returned.
func LoginWithOptions(r *http.Request, user any, opts LoginOptions) error {
	st := stateFromContext(r.Context())
	if st == nil {
		return ErrNotInitialized
	}
	prop := st.auth.cfg.UserProperty
	st.set(prop, user)
	if opts.DisableSession {
		return nil
	}
	sess := SessionFromContext(r.Context())
	if err := st.auth.sessions.LogIn(r.Context(), sess, user, opts); err != nil {
		st.remove(prop)
		return err
	}
	return nil
}

// Logout terminates the request's login with default options. See
// LogoutWithOptions.
func Logout(r *http.Request) error {
	return LogoutWithOptions(r, LogoutOptions{})
}

// LogoutWithOptions removes the user and auth info from the request and
// terminates the login session through the session manager. The request
// must have passed through Initialize or Authenticate, and must have
// session support.
func LogoutWithOptions(r *http.Request, opts LogoutOptions) error {
	st := stateFromContext(r.Context())
	if st == nil {
		return ErrNotInitialized
	}
	st.remove(st.auth.cfg.UserProperty)
	st.info = nil
	return st.auth.sessions.LogOut(r.Context(), SessionFromContext(r.Context()), opts)
}
