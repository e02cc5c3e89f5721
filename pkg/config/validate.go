package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	// server.port must be positive.
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	// session.store must be a known value.
	switch c.Session.Store {
	case "memory", "redis", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("session.store must be \"memory\", \"redis\", or \"postgres\", got %q", c.Session.Store))
	}

	// If session.store is "postgres", DSN or DSNFile must be set.
	if c.Session.Store == "postgres" {
		if c.Session.Postgres.DSN == "" && c.Session.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("session.postgres.dsn or session.postgres.dsn_file is required when session.store is \"postgres\""))
		}
	}

	// If session.store is "redis", an address must be set.
	if c.Session.Store == "redis" && c.Session.Redis.Addr == "" {
		errs = append(errs, fmt.Errorf("session.redis.addr is required when session.store is \"redis\""))
	}

	// session.ttl must be positive.
	if c.Session.TTL <= 0 {
		errs = append(errs, fmt.Errorf("session.ttl must be > 0, got %v", c.Session.TTL))
	}

	// session.same_site must be a known value if set.
	switch c.Session.SameSite {
	case "lax", "strict", "none", "":
		// valid
	default:
		errs = append(errs, fmt.Errorf("session.same_site must be \"lax\", \"strict\", or \"none\", got %q", c.Session.SameSite))
	}

	// Each user entry needs a username and some password source.
	for i, u := range c.Auth.Users {
		if u.Username == "" {
			errs = append(errs, fmt.Errorf("auth.users[%d].username is required", i))
		}
		if u.Password == "" && u.PasswordFile == "" {
			errs = append(errs, fmt.Errorf("auth.users[%d].password or password_file is required", i))
		}
	}

	return errors.Join(errs...)
}
