package gatehouse

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
)

// Config holds the engine-level settings of an Authenticator.
type Config struct {
	// UserProperty is the request property the authenticated user is
	// attached under. Defaults to "user".
	UserProperty string

	// SessionKey is the session field the serialized user is stored under.
	// Defaults to "gatehouse.user".
	SessionKey string

	// ErrorHandler receives internal and configuration errors raised by the
	// pipeline. Defaults to WriteError.
	ErrorHandler ErrorHandler
}

func (c *Config) applyDefaults() {
	if c.UserProperty == "" {
		c.UserProperty = "user"
	}
	if c.SessionKey == "" {
		c.SessionKey = "gatehouse.user"
	}
	if c.ErrorHandler == nil {
		c.ErrorHandler = WriteError
	}
}

// Authenticator is the authentication engine: a registry of named
// strategies, the three transform chains, and the session manager that
// binds logins to sessions. A single Authenticator serves an application;
// all methods are safe for concurrent use.
type Authenticator struct {
	cfg Config

	mu         sync.RWMutex
	strategies map[string]Strategy

	serializers   *chain
	deserializers *chain
	infoChain     *chain

	sessions *SessionManager
}

// New creates an Authenticator and registers the built-in "session"
// strategy, which restores the logged-in user from the session on each
// request.
func New(cfg Config) *Authenticator {
	cfg.applyDefaults()
	a := &Authenticator{
		cfg:           cfg,
		strategies:    make(map[string]Strategy),
		serializers:   newChain(ErrSerializerExhausted),
		deserializers: newChain(ErrDeserializerExhausted),
		infoChain:     newChain(nil),
	}
	a.sessions = &SessionManager{auth: a, key: cfg.SessionKey}
	a.Use(&sessionStrategy{auth: a})
	return a
}

// Sessions returns the session manager bound to this Authenticator.
func (a *Authenticator) Sessions() *SessionManager { return a.sessions }

// Use registers s under its own name, replacing any strategy already
// registered there. It panics if the strategy reports an empty name.
func (a *Authenticator) Use(s Strategy) {
	a.UseNamed(s.Name(), s)
}

// UseNamed registers s under name regardless of the name the strategy
// reports, replacing any strategy already registered there.
func (a *Authenticator) UseNamed(name string, s Strategy) {
	if name == "" {
		panic("gatehouse: strategy must have a name when registered")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.strategies[name] = s
}

// Unuse removes the strategy registered under name. Removing a name that
// is not registered is a no-op. In-flight attempts that already resolved
// the strategy finish with it.
func (a *Authenticator) Unuse(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.strategies, name)
}

// StrategyNames returns the registered strategy names, sorted.
func (a *Authenticator) StrategyNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.strategies))
	for name := range a.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (a *Authenticator) lookup(name string) (Strategy, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.strategies[name]
	return s, ok
}

// resolveStrategy turns one Specifier entry into a Strategy. Name entries
// resolve against the registry; unknowns are configuration errors.
func (a *Authenticator) resolveStrategy(entry any) (Strategy, error) {
	switch v := entry.(type) {
	case Strategy:
		return v, nil
	case string:
		s, ok := a.lookup(v)
		if !ok {
			return nil, configError("unknown authentication strategy %q", v)
		}
		return s, nil
	default:
		return nil, configError("invalid strategy specifier entry of type %T", entry)
	}
}

// RegisterSerializer appends fn to the user serialization chain.
func (a *Authenticator) RegisterSerializer(fn SerializeFunc) {
	a.serializers.register(func(ctx context.Context, v any) (any, bool, error) {
		return fn(ctx, v)
	})
}

// RegisterDeserializer appends fn to the user deserialization chain.
func (a *Authenticator) RegisterDeserializer(fn DeserializeFunc) {
	a.deserializers.register(func(ctx context.Context, v any) (any, bool, error) {
		return fn(ctx, v)
	})
}

// RegisterInfoTransformer appends fn to the auth info transform chain.
func (a *Authenticator) RegisterInfoTransformer(fn TransformFunc) {
	a.infoChain.register(func(ctx context.Context, v any) (any, bool, error) {
		return fn(ctx, v)
	})
}

// SerializeUser condenses user into its session representation by running
// the serialization chain. Exhaustion without a result is an error; there
// is no implicit fallback representation.
func (a *Authenticator) SerializeUser(ctx context.Context, user any) (any, error) {
	out, err := a.serializers.run(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("serializing user: %w", err)
	}
	return out, nil
}

// DeserializeUser revives a user from its session representation by
// running the deserialization chain. A nil user with a nil error means a
// handler positively reported that the referenced user no longer exists.
func (a *Authenticator) DeserializeUser(ctx context.Context, serialized any) (any, error) {
	out, err := a.deserializers.run(ctx, serialized)
	if err != nil {
		return nil, fmt.Errorf("deserializing user: %w", err)
	}
	return out, nil
}

// TransformAuthInfo runs strategy-supplied auth info through the transform
// chain. With no transformers registered the info is returned unchanged.
func (a *Authenticator) TransformAuthInfo(ctx context.Context, info any) (any, error) {
	out, err := a.infoChain.run(ctx, info)
	if err != nil {
		return nil, fmt.Errorf("transforming auth info: %w", err)
	}
	return out, nil
}

// Initialize returns middleware that prepares the request for the rest of
// the engine: it allocates the per-request authentication state the
// property helpers and session strategy read and write. Authenticate
// installs the state on demand, so Initialize is only required on routes
// that use Login or the property helpers without an authentication
// pipeline in front.
func (a *Authenticator) Initialize() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if stateFromContext(r.Context()) == nil {
				r = r.WithContext(withState(r.Context(), newState(a)))
			}
			next.ServeHTTP(w, r)
		})
	}
}
