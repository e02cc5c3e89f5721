package gatehouse

import (
	"context"
	"net/http"

	"github.com/gatehouse-dev/gatehouse/pkg/observability"
)

// sessionStrategy restores a previously established login from the
// session. It is registered under "session" by New and placed early in an
// application's middleware chain so every request regains its user before
// handlers run.
//
// The strategy never succeeds or fails in the pipeline sense: whether or
// not a user is restored it passes, leaving the response to later
// handlers. Only a broken deserialization chain or a missing session layer
// surfaces as an error.
type sessionStrategy struct {
	auth *Authenticator
}

func (s *sessionStrategy) Name() string { return "session" }

func (s *sessionStrategy) Authenticate(ctx context.Context, r *http.Request, opts Options) Result {
	sess := SessionFromContext(ctx)
	if sess == nil {
		return Error(ErrSessionUnavailable)
	}

	serialized, ok := s.auth.sessions.User(sess)
	if !ok {
		return Pass()
	}

	user, err := s.auth.DeserializeUser(ctx, serialized)
	if err != nil {
		return Error(err)
	}
	if user == nil {
		// The stored reference points at a user that no longer exists.
		// Clear it so the stale reference is not retried on every request.
		s.auth.sessions.ClearUser(sess)
		return Pass()
	}

	if st := stateFromContext(ctx); st != nil {
		st.set(s.auth.cfg.UserProperty, user)
		observability.SessionRestoresTotal.Inc()
	}
	return Pass()
}
