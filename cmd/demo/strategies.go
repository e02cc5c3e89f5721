package main

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/gatehouse-dev/gatehouse/pkg/config"
	"github.com/gatehouse-dev/gatehouse/pkg/debug"
	"github.com/gatehouse-dev/gatehouse/pkg/gatehouse"
)

// demoUser is the application's account type.
type demoUser struct {
	Username string `json:"username"`
	Name     string `json:"name"`
}

// userEntry pairs an account with its password hash.
type userEntry struct {
	user         demoUser
	passwordHash [32]byte
}

// userDirectory resolves usernames and verifies credentials. Passwords are
// hashed at startup; plaintext is not retained.
type userDirectory struct {
	entries []userEntry
}

func newUserDirectory(users []config.UserConfig) *userDirectory {
	d := &userDirectory{}
	for _, u := range users {
		name := u.Name
		if name == "" {
			name = u.Username
		}
		d.entries = append(d.entries, userEntry{
			user:         demoUser{Username: u.Username, Name: name},
			passwordHash: sha256.Sum256([]byte(u.Password)),
		})
	}
	return d
}

// find returns the account with the given username, or nil.
func (d *userDirectory) find(username string) *demoUser {
	for i := range d.entries {
		if d.entries[i].user.Username == username {
			// Copy to avoid shared state.
			u := d.entries[i].user
			return &u
		}
	}
	return nil
}

// verify checks a username/password pair using constant-time hash
// comparison.
func (d *userDirectory) verify(username, password string) (*demoUser, bool) {
	candidate := sha256.Sum256([]byte(password))
	for i := range d.entries {
		e := &d.entries[i]
		if e.user.Username != username {
			continue
		}
		if subtle.ConstantTimeCompare(candidate[:], e.passwordHash[:]) == 1 {
			u := e.user
			return &u, true
		}
	}
	return nil, false
}

// passwordStrategy authenticates HTML form submissions carrying username
// and password fields.
type passwordStrategy struct {
	directory *userDirectory
}

func newPasswordStrategy(d *userDirectory) *passwordStrategy {
	return &passwordStrategy{directory: d}
}

func (s *passwordStrategy) Name() string { return "password" }

func (s *passwordStrategy) Authenticate(_ context.Context, r *http.Request, _ gatehouse.Options) gatehouse.Result {
	if err := r.ParseForm(); err != nil {
		return gatehouse.Error(fmt.Errorf("parsing login form: %w", err))
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		return gatehouse.Fail("Missing credentials", http.StatusBadRequest)
	}

	user, ok := s.directory.verify(username, password)
	if !ok {
		debug.Log("strategies", "password rejected", "username", username)
		return gatehouse.Fail("Invalid username or password", 0)
	}

	return gatehouse.Success(user, map[string]any{"message": "Welcome back, " + user.Name + "!"})
}

// bearerStrategy authenticates Authorization: Bearer tokens as HS256 JWTs
// signed with the configured secret.
type bearerStrategy struct {
	secret    []byte
	directory *userDirectory
}

func newBearerStrategy(secret []byte, d *userDirectory) *bearerStrategy {
	return &bearerStrategy{secret: secret, directory: d}
}

func (s *bearerStrategy) Name() string { return "bearer" }

func (s *bearerStrategy) Authenticate(_ context.Context, r *http.Request, _ gatehouse.Options) gatehouse.Result {
	header := r.Header.Get("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return gatehouse.Fail(`Bearer realm="api"`, 0)
	}

	tokenStr := strings.TrimPrefix(header, "Bearer ")
	if tokenStr == "" {
		return gatehouse.Fail(`Bearer error="invalid_request"`, http.StatusBadRequest)
	}

	if len(s.secret) == 0 {
		return gatehouse.Error(errors.New("bearer tokens require auth.jwt_secret to be configured"))
	}

	token, err := jwtlib.Parse(tokenStr, func(token *jwtlib.Token) (any, error) {
		if _, ok := token.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil {
		debug.Log("strategies", "bearer token rejected", "error", err)
		return gatehouse.Fail(`Bearer error="invalid_token"`, 0)
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok || !token.Valid {
		return gatehouse.Fail(`Bearer error="invalid_token"`, 0)
	}

	subject, _ := claims["sub"].(string)
	if subject == "" {
		return gatehouse.Fail(`Bearer error="invalid_token", error_description="missing sub claim"`, 0)
	}

	user := s.directory.find(subject)
	if user == nil {
		return gatehouse.Fail(`Bearer error="invalid_token", error_description="unknown subject"`, 0)
	}

	debug.Trace("strategies", "bearer token accepted", "subject", subject, "claims", fmt.Sprint(claims))
	return gatehouse.Success(user, map[string]any{"token_type": "bearer", "subject": subject})
}

// handleIssueToken mints a short-lived HS256 token for the logged-in user,
// suitable for calling /api/me.
func handleIssueToken(secret []byte) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(secret) == 0 {
			http.Error(w, "token issuing requires auth.jwt_secret", http.StatusNotImplemented)
			return
		}
		user := gatehouse.CurrentUser(r).(*demoUser)

		now := time.Now()
		token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
			"sub": user.Username,
			"iat": now.Unix(),
			"exp": now.Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString(secret)
		if err != nil {
			slog.Error("signing token failed", "error", err)
			http.Error(w, "signing token failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": signed,
			"token_type":   "Bearer",
			"expires_in":   int(time.Hour.Seconds()),
		})
	})
}

// handleAPIMe reports the identity the bearer strategy attached.
func handleAPIMe(w http.ResponseWriter, r *http.Request) {
	user := gatehouse.CurrentUser(r).(*demoUser)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"user": user,
		"info": gatehouse.AuthInfo(r),
	})
}
