package gatehouse

import "net/http"

// Failure records one strategy's declined attempt. When every strategy in
// an attempt fails, the accumulated Failures decide the aggregate response.
type Failure struct {
	// Challenge is the WWW-Authenticate challenge the strategy issued, or a
	// human-readable reason for strategies that are not header based. Empty
	// when the strategy gave none.
	Challenge string

	// Status is the HTTP status the strategy suggested. Zero when the
	// strategy left the status to the pipeline.
	Status int
}

// FlashKind categorizes a flash message.
type FlashKind string

const (
	FlashError   FlashKind = "error"
	FlashSuccess FlashKind = "success"
	FlashInfo    FlashKind = "info"
)

// FlashMessage configures a flash written on attempt completion. A zero
// Kind defaults to FlashSuccess or FlashError depending on which side of
// the attempt it is attached to. An empty Text derives the message from
// the strategy outcome: the info value on success, the challenge on
// failure. If no message can be derived, nothing is written.
type FlashMessage struct {
	Kind FlashKind
	Text string
}

// Message configures an entry appended to the session message log on
// attempt completion. An empty Text derives the message the same way
// FlashMessage does.
type Message struct {
	Text string
}

// CompleteFunc is an attempt-completion callback. When set, it replaces
// every built-in completion behavior: no session login, no redirects, no
// flashes, no error responses. Exactly one of the three shapes is
// populated per call: err for internal faults, user and info for success,
// failures when every strategy declined.
type CompleteFunc func(w http.ResponseWriter, r *http.Request, err error, user, info any, failures []Failure)

// Options configures one authentication pipeline.
type Options struct {
	// DisableSession skips establishing a login session after success. The
	// authenticated user is still attached to the request. Use this for
	// stateless APIs where every request carries its own credential.
	DisableSession bool

	// SuccessRedirect, when set, redirects here after success instead of
	// invoking the next handler.
	SuccessRedirect string

	// SuccessReturnToOrRedirect behaves like SuccessRedirect, except that a
	// returnTo value captured in the session takes precedence and is
	// consumed by the redirect.
	SuccessReturnToOrRedirect string

	// FailureRedirect, when set, redirects here when every strategy fails
	// instead of writing the aggregate failure response.
	FailureRedirect string

	// AssignTo attaches the authenticated user under this request property
	// instead of the configured user property, without touching the login
	// session. This is the delegated-authorization form: the established
	// login stays intact while a second identity is attached.
	AssignTo string

	// FailWithError routes the aggregate failure to the error handler as an
	// AuthError instead of writing the plain failure response. Challenge
	// headers are still set first.
	FailWithError bool

	// DisableAuthInfo skips the auth info transform chain; nothing is
	// attached as request auth info on success.
	DisableAuthInfo bool

	// KeepSessionInfo carries existing session fields across the session
	// regeneration performed at login.
	KeepSessionInfo bool

	// SuccessFlash and FailureFlash write a flash message on the matching
	// outcome. They require session support on the request.
	SuccessFlash *FlashMessage
	FailureFlash *FlashMessage

	// SuccessMessage and FailureMessage append to the session message log
	// on the matching outcome. They require session support on the request.
	SuccessMessage *Message
	FailureMessage *Message

	// Complete, when set, takes over attempt completion entirely.
	Complete CompleteFunc
}

// Specifier names the strategies an attempt runs, in order. Entries are
// either registered names resolved at request time or Strategy values used
// directly without registration.
type Specifier struct {
	entries []any
}

// Try builds a Specifier from strategy names and Strategy values. Name
// entries resolve against the registry on each request, so a strategy may
// be registered after the middleware is built.
func Try(entries ...any) Specifier {
	return Specifier{entries: entries}
}

// deriveMessage resolves the text for a success-side flash or message:
// explicit text wins, then the info value's "message" field, then the info
// value itself when it is a plain string.
func deriveMessage(explicit string, info any) string {
	if explicit != "" {
		return explicit
	}
	switch v := info.(type) {
	case string:
		return v
	case map[string]any:
		if s, ok := v["message"].(string); ok {
			return s
		}
	case map[string]string:
		return v["message"]
	}
	return ""
}

// deriveFailureMessage resolves the text for a failure-side flash or
// message: explicit text wins, then the first recorded challenge.
func deriveFailureMessage(explicit string, failures []Failure) string {
	if explicit != "" {
		return explicit
	}
	if len(failures) > 0 {
		return failures[0].Challenge
	}
	return ""
}
