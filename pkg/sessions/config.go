package sessions

import (
	"net/http"
	"time"
)

// Config holds the cookie and lifetime settings of the session layer.
type Config struct {
	// CookieName is the name of the session cookie. Defaults to
	// "gatehouse_sid".
	CookieName string

	// TTL is the session lifetime, enforced both by the cookie's max age
	// and by the store. Defaults to 24h.
	TTL time.Duration

	// Path is the cookie path. Defaults to "/".
	Path string

	// Domain is the cookie domain. Empty scopes the cookie to the
	// requested host.
	Domain string

	// Secure marks the cookie HTTPS-only. Off by default so local
	// development works; production deployments behind TLS should set it.
	Secure bool

	// DisableHTTPOnly exposes the cookie to client-side scripts. The
	// cookie is HttpOnly unless this is set.
	DisableHTTPOnly bool

	// SameSite is the cookie's SameSite mode. Defaults to Lax.
	SameSite http.SameSite
}

func (c *Config) applyDefaults() {
	if c.CookieName == "" {
		c.CookieName = "gatehouse_sid"
	}
	if c.TTL <= 0 {
		c.TTL = 24 * time.Hour
	}
	if c.Path == "" {
		c.Path = "/"
	}
	if c.SameSite == 0 {
		c.SameSite = http.SameSiteLaxMode
	}
}
