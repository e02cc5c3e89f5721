package gatehouse

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

// TestSessionStrategyRestoresUser verifies that a stored login is revived
// onto the request and the pipeline continues to the next handler.
func TestSessionStrategyRestoresUser(t *testing.T) {
	a := newTestAuthenticator()
	sess := newFakeSession()
	sess.data["gatehouse.user"] = "u42"

	rec, next := runPipeline(t, a, Try("session"), Options{}, newSessionRequest("GET", "/", sess))

	if rec.Code != http.StatusOK || !next.called {
		t.Fatalf("expected pass-through, got %d", rec.Code)
	}
	u, ok := next.user.(testUser)
	if !ok || u.ID != "u42" {
		t.Fatalf("expected restored user, got %v", next.user)
	}
}

// TestSessionStrategyNoStoredUser verifies an anonymous request passes
// through untouched.
func TestSessionStrategyNoStoredUser(t *testing.T) {
	a := newTestAuthenticator()
	sess := newFakeSession()

	rec, next := runPipeline(t, a, Try("session"), Options{}, newSessionRequest("GET", "/", sess))

	if rec.Code != http.StatusOK || !next.called {
		t.Fatalf("expected pass-through, got %d", rec.Code)
	}
	if next.user != nil {
		t.Fatalf("expected no user, got %v", next.user)
	}
}

// TestSessionStrategyClearsVanishedUser verifies that a positive "no such
// user" from the deserialization chain removes the stale reference and
// passes.
func TestSessionStrategyClearsVanishedUser(t *testing.T) {
	a := New(Config{})
	a.RegisterDeserializer(func(ctx context.Context, serialized any) (any, bool, error) {
		return nil, true, nil
	})
	sess := newFakeSession()
	sess.data["gatehouse.user"] = "deleted-user"

	rec, next := runPipeline(t, a, Try("session"), Options{}, newSessionRequest("GET", "/", sess))

	if rec.Code != http.StatusOK || !next.called {
		t.Fatalf("expected pass-through, got %d", rec.Code)
	}
	if next.user != nil {
		t.Fatalf("expected no user, got %v", next.user)
	}
	if _, ok := sess.data["gatehouse.user"]; ok {
		t.Fatal("expected stale reference cleared from session")
	}
}

// TestSessionStrategyDeserializeError verifies a broken deserialization
// chain surfaces as an internal error, not a failure.
func TestSessionStrategyDeserializeError(t *testing.T) {
	a := New(Config{})
	boom := errors.New("user store offline")
	a.RegisterDeserializer(func(ctx context.Context, serialized any) (any, bool, error) {
		return nil, false, boom
	})

	var captured error
	a.cfg.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		captured = err
		WriteError(w, r, err)
	}

	sess := newFakeSession()
	sess.data["gatehouse.user"] = "u1"

	rec, next := runPipeline(t, a, Try("session"), Options{}, newSessionRequest("GET", "/", sess))

	if !errors.Is(captured, boom) {
		t.Fatalf("expected deserialization error, got %v", captured)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if next.called {
		t.Fatal("expected terminal handler to be skipped")
	}
}

// TestSessionStrategyRequiresSession verifies the strategy errors on a
// request without session support.
func TestSessionStrategyRequiresSession(t *testing.T) {
	a := newTestAuthenticator()

	var captured error
	a.cfg.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		captured = err
		WriteError(w, r, err)
	}

	runPipeline(t, a, Try("session"), Options{}, newSessionRequest("GET", "/", nil))

	if !errors.Is(captured, ErrSessionUnavailable) {
		t.Fatalf("expected ErrSessionUnavailable, got %v", captured)
	}
}
