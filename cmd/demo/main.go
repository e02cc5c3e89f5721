// Command demo runs a small web application on top of the gatehouse
// authentication pipeline: form login backed by a session, bearer-token
// API access, logout, and a Prometheus metrics endpoint.
//
// Configuration is loaded through pkg/config (explicit -config path,
// GATEHOUSE_CONFIG, ./config.yaml, /etc/gatehouse/config.yaml, plus
// GATEHOUSE_* environment overrides). With no configuration at all the
// server listens on :8080 with an in-memory session store and a built-in
// demo user (demo / demo-pass). Log verbosity and debug categories come
// from GATEHOUSE_LOG_LEVEL and GATEHOUSE_DEBUG.
package main

import (
	"context"
	"flag"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/gatehouse-dev/gatehouse/pkg/config"
	"github.com/gatehouse-dev/gatehouse/pkg/debug"
	"github.com/gatehouse-dev/gatehouse/pkg/gatehouse"
	"github.com/gatehouse-dev/gatehouse/pkg/observability"
	"github.com/gatehouse-dev/gatehouse/pkg/sessions"
	"github.com/gatehouse-dev/gatehouse/pkg/sessions/memory"
	"github.com/gatehouse-dev/gatehouse/pkg/sessions/postgres"
	"github.com/gatehouse-dev/gatehouse/pkg/sessions/redis"
	"github.com/gatehouse-dev/gatehouse/pkg/transport"
)

func main() {
	if err := run(); err != nil {
		slog.Error("demo server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	debug.Init("", "")

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if len(cfg.Auth.Users) == 0 {
		cfg.Auth.Users = []config.UserConfig{{Username: "demo", Password: "demo-pass", Name: "Demo User"}}
		slog.Info("no users configured, using built-in demo user", "username", "demo")
	}
	directory := newUserDirectory(cfg.Auth.Users)

	// Graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := buildStore(ctx, cfg.Session)
	if err != nil {
		return err
	}
	defer closeStore()

	auth := gatehouse.New(gatehouse.Config{})
	auth.Use(newPasswordStrategy(directory))
	auth.Use(newBearerStrategy([]byte(cfg.Auth.JWTSecret), directory))

	// Sessions hold only the username; the full user is revived per request.
	auth.RegisterSerializer(func(_ context.Context, user any) (any, bool, error) {
		u, ok := user.(*demoUser)
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
		if u := directory.find(username); u != nil {
			return u, true, nil
		}
		// Recognized reference to a user that no longer exists.
		return nil, true, nil
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", handleHome(auth))
	mux.HandleFunc("GET /login", handleLoginForm(auth))

	// Every outcome of the login attempt redirects, so the wrapped handler
	// never runs.
	login := auth.Authenticate(gatehouse.Try("password"), gatehouse.Options{
		SuccessReturnToOrRedirect: "/profile",
		FailureRedirect:           "/login",
		SuccessFlash:              &gatehouse.FlashMessage{},
		FailureFlash:              &gatehouse.FlashMessage{},
	})
	mux.Handle("POST /login", login(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})))

	mux.HandleFunc("POST /logout", handleLogout)
	mux.Handle("GET /profile", requireLogin(auth, handleProfile(auth)))
	mux.Handle("GET /api/token", requireLogin(auth, handleIssueToken([]byte(cfg.Auth.JWTSecret))))

	api := auth.Authenticate(gatehouse.Try("bearer"), gatehouse.Options{DisableSession: true})
	mux.Handle("GET /api/me", api(http.HandlerFunc(handleAPIMe)))

	mux.HandleFunc("GET /healthz", handleHealth(store))
	if cfg.Observability.Metrics.Enabled {
		mux.Handle("GET "+cfg.Observability.Metrics.Path, promhttp.Handler())
	}

	logger := slog.Default()
	middleware := []transport.Middleware{
		transport.Recovery(logger),
		transport.RequestID(),
		transport.Logging(logger),
	}
	if cfg.Observability.Metrics.Enabled {
		middleware = append(middleware, observability.MetricsMiddleware)
	}
	middleware = append(middleware,
		sessions.Middleware(store, sessions.Config{
			CookieName: cfg.Session.CookieName,
			TTL:        cfg.Session.TTL,
			Secure:     cfg.Session.Secure,
			SameSite:   parseSameSite(cfg.Session.SameSite),
		}),
		auth.Initialize(),
		auth.Authenticate(gatehouse.Try("session"), gatehouse.Options{}),
	)
	handler := transport.Chain(middleware...)(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("demo server starting", "port", cfg.Server.Port, "session_store", cfg.Session.Store)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// buildStore constructs the configured session store. The returned close
// function releases store resources and is safe to call once.
func buildStore(ctx context.Context, cfg config.SessionConfig) (sessions.Store, func(), error) {
	switch cfg.Store {
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store := redis.New(client, cfg.Redis.KeyPrefix)
		if err := store.HealthCheck(ctx); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		slog.Info("session store ready", "type", "redis", "addr", cfg.Redis.Addr)
		return store, func() { client.Close() }, nil

	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		slog.Info("session store ready", "type", "postgres")
		return store, func() { store.Close() }, nil

	default:
		slog.Info("session store ready", "type", "memory")
		return memory.New(), func() {}, nil
	}
}

// parseSameSite maps the config string onto the http constant. Validation
// upstream guarantees the value is one of the known names.
func parseSameSite(v string) http.SameSite {
	switch v {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// requireLogin gates a page behind an established login. Anonymous visitors
// are bounced to the login form, remembering where they were headed.
func requireLogin(auth *gatehouse.Authenticator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gatehouse.IsAuthenticated(r) {
			next.ServeHTTP(w, r)
			return
		}
		if sess := gatehouse.SessionFromContext(r.Context()); sess != nil {
			auth.Sessions().SetReturnTo(sess, r.URL.RequestURI())
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	})
}

func handleHome(auth *gatehouse.Authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<h1>gatehouse demo</h1>")
		writeFlashes(w, r, auth)
		if user, ok := gatehouse.CurrentUser(r).(*demoUser); ok {
			fmt.Fprintf(w, "<p>Signed in as <b>%s</b>.</p>", html.EscapeString(user.Name))
			fmt.Fprint(w, `<p><a href="/profile">Profile</a> | <a href="/api/token">API token</a></p>`)
			fmt.Fprint(w, `<form method="post" action="/logout"><button>Log out</button></form>`)
			return
		}
		fmt.Fprint(w, `<p>You are not signed in. <a href="/login">Log in</a></p>`)
	}
}

func handleLoginForm(auth *gatehouse.Authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<h1>Log in</h1>")
		writeFlashes(w, r, auth)
		fmt.Fprint(w, `<form method="post" action="/login">
<label>Username <input name="username"></label>
<label>Password <input name="password" type="password"></label>
<button>Log in</button>
</form>`)
	}
}

func handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := gatehouse.Logout(r); err != nil {
		slog.Error("logout failed", "error", err)
		http.Error(w, "logout failed", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func handleProfile(auth *gatehouse.Authenticator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := gatehouse.CurrentUser(r).(*demoUser)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<h1>Profile</h1>")
		writeFlashes(w, r, auth)
		fmt.Fprintf(w, "<p>Username: %s</p>", html.EscapeString(user.Username))
		fmt.Fprintf(w, "<p>Name: %s</p>", html.EscapeString(user.Name))
		fmt.Fprint(w, `<p><a href="/">Home</a></p>`)
	})
}

func handleHealth(store sessions.Store) http.HandlerFunc {
	type healthChecker interface {
		HealthCheck(ctx context.Context) error
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if hc, ok := store.(healthChecker); ok {
			if err := hc.HealthCheck(r.Context()); err != nil {
				slog.Error("session store unhealthy", "error", err)
				http.Error(w, "session store unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	}
}

// writeFlashes renders and consumes pending flash messages of every kind.
func writeFlashes(w http.ResponseWriter, r *http.Request, auth *gatehouse.Authenticator) {
	sess := gatehouse.SessionFromContext(r.Context())
	if sess == nil {
		return
	}
	for _, kind := range []gatehouse.FlashKind{gatehouse.FlashError, gatehouse.FlashSuccess, gatehouse.FlashInfo} {
		for _, msg := range auth.Sessions().Flash(sess, kind) {
			fmt.Fprintf(w, "<p class=%q>%s</p>", kind, html.EscapeString(msg))
		}
	}
}
