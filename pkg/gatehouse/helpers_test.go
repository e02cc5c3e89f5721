package gatehouse

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
)

// testUser is the application user type the test serialization chain
// condenses to and revives from its ID.
type testUser struct {
	ID   string
	Name string
}

// newTestAuthenticator builds an Authenticator with a serialization chain
// over testUser.
func newTestAuthenticator() *Authenticator {
	a := New(Config{})
	a.RegisterSerializer(func(ctx context.Context, user any) (any, bool, error) {
		u, ok := user.(testUser)
		if !ok {
			return nil, false, nil
		}
		return u.ID, true, nil
	})
	a.RegisterDeserializer(func(ctx context.Context, serialized any) (any, bool, error) {
		id, ok := serialized.(string)
		if !ok {
			return nil, false, nil
		}
		return testUser{ID: id, Name: "Test User"}, true, nil
	})
	return a
}

// fakeSession is an in-memory Session recording the calls the engine
// makes, so tests can assert on call order and persisted data.
type fakeSession struct {
	id       string
	data     map[string]any
	saves    int
	regens   int
	destroys int
	saveErr  error
	regenErr error

	// savedData is a snapshot of data at the most recent Save.
	savedData map[string]any

	// log records mutating calls in order: "set:<key>", "delete:<key>",
	// "save", "regenerate", "destroy".
	log []string
}

func newFakeSession() *fakeSession {
	return &fakeSession{id: "sess-1", data: make(map[string]any)}
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Get(key string) (any, bool) {
	v, ok := s.data[key]
	return v, ok
}

func (s *fakeSession) Set(key string, value any) {
	s.data[key] = value
	s.log = append(s.log, "set:"+key)
}

func (s *fakeSession) Delete(key string) {
	delete(s.data, key)
	s.log = append(s.log, "delete:"+key)
}

func (s *fakeSession) Keys() []string {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

func (s *fakeSession) Save(ctx context.Context) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.savedData = make(map[string]any, len(s.data))
	for k, v := range s.data {
		s.savedData[k] = v
	}
	s.log = append(s.log, "save")
	return nil
}

func (s *fakeSession) Regenerate(ctx context.Context) error {
	if s.regenErr != nil {
		return s.regenErr
	}
	s.regens++
	s.id = fmt.Sprintf("sess-%d", s.regens+1)
	s.data = make(map[string]any)
	s.log = append(s.log, "regenerate")
	return nil
}

func (s *fakeSession) Destroy(ctx context.Context) error {
	s.destroys++
	s.data = make(map[string]any)
	s.log = append(s.log, "destroy")
	return nil
}

// callIndex returns the position of the first occurrence of call in the
// session log, or -1.
func (s *fakeSession) callIndex(call string) int {
	return slices.Index(s.log, call)
}

// newSessionRequest builds a request carrying sess in its context. A nil
// sess builds a request without session support.
func newSessionRequest(method, target string, sess Session) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	if sess != nil {
		r = r.WithContext(WithSession(r.Context(), sess))
	}
	return r
}

// countingStrategy returns a strategy that always reports res and counts
// its invocations through calls.
func countingStrategy(name string, res Result, calls *int) Strategy {
	return NewStrategy(name, func(ctx context.Context, r *http.Request, opts Options) Result {
		*calls++
		return res
	})
}

// nextRecorder is a terminal handler recording whether and with what
// request it was invoked.
type nextRecorder struct {
	called bool
	user   any
	info   any
}

func (n *nextRecorder) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n.called = true
		n.user = CurrentUser(r)
		n.info = AuthInfo(r)
		w.WriteHeader(http.StatusOK)
	})
}

// runPipeline executes an Authenticate middleware against one request and
// returns the recorded response and terminal handler observations.
func runPipeline(t *testing.T, a *Authenticator, spec Specifier, opts Options, r *http.Request) (*httptest.ResponseRecorder, *nextRecorder) {
	t.Helper()
	rec := httptest.NewRecorder()
	next := &nextRecorder{}
	a.Authenticate(spec, opts)(next.handler()).ServeHTTP(rec, r)
	return rec, next
}
