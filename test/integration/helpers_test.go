// Package integration provides integration tests for the gatehouse
// authentication pipeline.
//
// Tests run against a real HTTP server assembled the way cmd/demo
// assembles one (session middleware, authenticator, strategies, routes),
// started in-process using net/http/httptest.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gatehouse-dev/gatehouse/pkg/gatehouse"
	"github.com/gatehouse-dev/gatehouse/pkg/observability"
	"github.com/gatehouse-dev/gatehouse/pkg/sessions"
	"github.com/gatehouse-dev/gatehouse/pkg/sessions/memory"
	"github.com/gatehouse-dev/gatehouse/pkg/transport"
)

// testEnv holds the shared server for all integration tests.
var testEnv *TestEnvironment

// jwtSecret signs the bearer tokens the test app accepts.
var jwtSecret = []byte("integration-test-secret")

// testUser is the account type of the test application.
type testUser struct {
	Username string `json:"username"`
	Name     string `json:"name"`
}

// accounts are the known users of the test application.
var accounts = map[string]testUser{
	"alice": {Username: "alice", Name: "Alice Liddell"},
	"bob":   {Username: "bob", Name: "Bob the Builder"},
}

// passwords maps usernames to their expected password.
var passwords = map[string]string{
	"alice": "wonderland",
	"bob":   "builder",
}

// TestEnvironment holds the application server under test.
type TestEnvironment struct {
	Server *httptest.Server
}

// TestMain starts the application server before running tests.
func TestMain(m *testing.M) {
	testEnv = setupTestEnvironment()
	code := m.Run()
	testEnv.Teardown()
	os.Exit(code)
}

// setupTestEnvironment assembles an application over the full middleware
// chain: metrics, session middleware, authenticator init, session restore,
// and the route handlers.
func setupTestEnvironment() *TestEnvironment {
	auth := gatehouse.New(gatehouse.Config{})

	auth.Use(gatehouse.NewStrategy("password", func(_ context.Context, r *http.Request, _ gatehouse.Options) gatehouse.Result {
		if err := r.ParseForm(); err != nil {
			return gatehouse.Error(fmt.Errorf("parsing login form: %w", err))
		}
		username := r.PostFormValue("username")
		password := r.PostFormValue("password")
		if username == "" || password == "" {
			return gatehouse.Fail("Missing credentials", http.StatusBadRequest)
		}
		if passwords[username] != password {
			return gatehouse.Fail("Invalid username or password", 0)
		}
		user := accounts[username]
		return gatehouse.Success(&user, map[string]any{"message": "Welcome back, " + user.Name + "!"})
	}))

	auth.Use(gatehouse.NewStrategy("bearer", func(_ context.Context, r *http.Request, _ gatehouse.Options) gatehouse.Result {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			return gatehouse.Fail(`Bearer realm="api"`, 0)
		}
		tokenStr := strings.TrimPrefix(header, "Bearer ")
		token, err := jwtlib.Parse(tokenStr, func(*jwtlib.Token) (any, error) {
			return jwtSecret, nil
		}, jwtlib.WithValidMethods([]string{"HS256"}))
		if err != nil {
			return gatehouse.Fail(`Bearer error="invalid_token"`, 0)
		}
		claims := token.Claims.(jwtlib.MapClaims)
		subject, _ := claims["sub"].(string)
		user, ok := accounts[subject]
		if !ok {
			return gatehouse.Fail(`Bearer error="invalid_token", error_description="unknown subject"`, 0)
		}
		return gatehouse.Success(&user, map[string]any{"token_type": "bearer"})
	}))

	auth.RegisterSerializer(func(_ context.Context, user any) (any, bool, error) {
		u, ok := user.(*testUser)
		if !ok {
			return nil, false, nil
		}
		return u.Username, true, nil
	})
	auth.RegisterDeserializer(func(_ context.Context, serialized any) (any, bool, error) {
		username, ok := serialized.(string)
		if !ok {
			return nil, false, nil
		}
		if u, found := accounts[username]; found {
			return &u, true, nil
		}
		return nil, true, nil
	})

	mux := http.NewServeMux()

	login := auth.Authenticate(gatehouse.Try("password"), gatehouse.Options{
		SuccessReturnToOrRedirect: "/profile",
		FailureRedirect:           "/login",
		SuccessFlash:              &gatehouse.FlashMessage{},
		FailureFlash:              &gatehouse.FlashMessage{},
	})
	mux.Handle("POST /login", login(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})))

	mux.HandleFunc("GET /login", func(w http.ResponseWriter, r *http.Request) {
		sess := gatehouse.SessionFromContext(r.Context())
		for _, msg := range auth.Sessions().Flash(sess, gatehouse.FlashError) {
			fmt.Fprintf(w, "flash-error: %s\n", msg)
		}
		fmt.Fprint(w, "login form\n")
	})

	mux.HandleFunc("GET /profile", func(w http.ResponseWriter, r *http.Request) {
		user, ok := gatehouse.CurrentUser(r).(*testUser)
		if !ok {
			if sess := gatehouse.SessionFromContext(r.Context()); sess != nil {
				auth.Sessions().SetReturnTo(sess, r.URL.RequestURI())
			}
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		sess := gatehouse.SessionFromContext(r.Context())
		for _, msg := range auth.Sessions().Flash(sess, gatehouse.FlashSuccess) {
			fmt.Fprintf(w, "flash-success: %s\n", msg)
		}
		fmt.Fprintf(w, "profile: %s\n", user.Username)
	})

	mux.HandleFunc("GET /settings", func(w http.ResponseWriter, r *http.Request) {
		user, ok := gatehouse.CurrentUser(r).(*testUser)
		if !ok {
			if sess := gatehouse.SessionFromContext(r.Context()); sess != nil {
				auth.Sessions().SetReturnTo(sess, r.URL.RequestURI())
			}
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		fmt.Fprintf(w, "settings: %s\n", user.Username)
	})

	mux.HandleFunc("POST /logout", func(w http.ResponseWriter, r *http.Request) {
		if err := gatehouse.Logout(r); err != nil {
			http.Error(w, "logout failed", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/", http.StatusFound)
	})

	api := auth.Authenticate(gatehouse.Try("bearer"), gatehouse.Options{DisableSession: true})
	mux.Handle("GET /api/me", api(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"user": gatehouse.CurrentUser(r),
			"info": gatehouse.AuthInfo(r),
		})
	})))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	handler := transport.Chain(
		transport.Recovery(nil),
		transport.RequestID(),
		observability.MetricsMiddleware,
		sessions.Middleware(memory.New(), sessions.Config{}),
		auth.Initialize(),
		auth.Authenticate(gatehouse.Try("session"), gatehouse.Options{}),
	)(mux)

	return &TestEnvironment{Server: httptest.NewServer(handler)}
}

// Teardown stops the server.
func (env *TestEnvironment) Teardown() {
	if env.Server != nil {
		env.Server.Close()
	}
}

// BaseURL returns the application server base URL.
func (env *TestEnvironment) BaseURL() string {
	return env.Server.URL
}

// --- HTTP helpers ---

// newBrowser returns a client with a cookie jar that does not follow
// redirects, so tests can assert Location headers and walk flows one
// response at a time. Cookies are still collected from every response.
func newBrowser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("creating cookie jar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// postForm sends an application/x-www-form-urlencoded POST.
func postForm(t *testing.T, client *http.Client, rawURL string, form url.Values) *http.Response {
	t.Helper()
	resp, err := client.Post(rawURL, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("POST %s: %v", rawURL, err)
	}
	return resp
}

// get sends a GET request through the client.
func get(t *testing.T, client *http.Client, rawURL string) *http.Response {
	t.Helper()
	resp, err := client.Get(rawURL)
	if err != nil {
		t.Fatalf("GET %s: %v", rawURL, err)
	}
	return resp
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading response body: %v", err)
	}
	return string(body)
}

// decodeJSON reads the response body and decodes it into the target.
func decodeJSON(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("decoding JSON: %v", err)
	}
}

// location returns the Location header of a redirect response.
func location(t *testing.T, resp *http.Response) string {
	t.Helper()
	loc := resp.Header.Get("Location")
	if loc == "" {
		t.Fatalf("response %d has no Location header", resp.StatusCode)
	}
	return loc
}

// sessionCookie returns the current session cookie value held in the jar,
// or empty when none is set.
func sessionCookie(t *testing.T, client *http.Client) string {
	t.Helper()
	u, err := url.Parse(testEnv.BaseURL())
	if err != nil {
		t.Fatalf("parsing base URL: %v", err)
	}
	for _, c := range client.Jar.Cookies(u) {
		if c.Name == "gatehouse_sid" {
			return c.Value
		}
	}
	return ""
}

// signToken mints an HS256 token for the given subject.
func signToken(t *testing.T, subject string) string {
	t.Helper()
	now := time.Now()
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(jwtSecret)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}
