package sessions

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gatehouse-dev/gatehouse/pkg/gatehouse"
)

// Middleware returns session middleware over the given store. Each request
// gets a session resolved from its cookie, or a fresh one whose cookie is
// only issued once the session is actually used. After the handler
// returns, pending mutations are persisted.
//
// A store outage while resolving the session fails the request; serving a
// fresh session to a client that has one would silently log users out.
func Middleware(store Store, cfg Config) func(http.Handler) http.Handler {
	cfg.applyDefaults()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := &session{store: store, cfg: &cfg, w: w}

			if c, err := r.Cookie(cfg.CookieName); err == nil && c.Value != "" {
				data, err := store.Load(r.Context(), c.Value)
				switch {
				case err == nil:
					sess.id = c.Value
					sess.data = data
					sess.cookieSent = true
				case errors.Is(err, ErrNotFound):
					// Stale cookie; fall through to a fresh session.
				default:
					slog.Error("loading session", "error", err)
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
			}
			if sess.id == "" {
				sess.id = newSessionID()
				sess.data = make(map[string]any)
				sess.isNew = true
			}

			next.ServeHTTP(w, r.WithContext(gatehouse.WithSession(r.Context(), sess)))

			if sess.destroyed || !sess.dirty {
				return
			}
			if err := sess.Save(r.Context()); err != nil {
				slog.Error("saving session", "error", err)
			}
		})
	}
}
