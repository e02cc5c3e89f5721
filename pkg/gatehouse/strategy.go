package gatehouse

import (
	"context"
	"net/http"
)

// Strategy authenticates requests using one verification scheme. A strategy
// inspects the request, decides, and reports exactly one outcome through the
// Result it returns. Strategies hold no per-request state; the same instance
// serves every request that names it.
type Strategy interface {
	// Name returns the default name the strategy registers under.
	Name() string

	// Authenticate verifies the request and returns one outcome. The opts
	// are the pipeline options the application configured, passed through
	// for strategies that honor per-route settings.
	Authenticate(ctx context.Context, r *http.Request, opts Options) Result
}

// AuthenticateFunc is the signature of a single-function strategy.
type AuthenticateFunc func(ctx context.Context, r *http.Request, opts Options) Result

// funcStrategy adapts a bare function to the Strategy interface.
type funcStrategy struct {
	name string
	fn   AuthenticateFunc
}

func (s *funcStrategy) Name() string { return s.name }

func (s *funcStrategy) Authenticate(ctx context.Context, r *http.Request, opts Options) Result {
	return s.fn(ctx, r, opts)
}

// NewStrategy wraps fn as a Strategy with the given name.
func NewStrategy(name string, fn AuthenticateFunc) Strategy {
	return &funcStrategy{name: name, fn: fn}
}

// resultKind discriminates the outcome a strategy reported.
type resultKind int

const (
	// resultInvalid is the zero value. A strategy that returns it broke the
	// outcome contract; the pipeline reports that as an internal error.
	resultInvalid resultKind = iota
	resultSuccess
	resultFail
	resultRedirect
	resultPass
	resultError
)

// Result is the single outcome of one strategy attempt. Strategies build
// Results through Success, Fail, Redirect, Pass, and Error; the zero value
// is invalid and is treated as a contract violation by the pipeline.
type Result struct {
	kind      resultKind
	user      any
	info      any
	challenge string
	status    int
	url       string
	err       error
}

// Success reports that the request is authenticated as user. The info value
// carries transport-level details about the credential (token scopes, the
// message a flash option may display) and flows through the auth info
// transform chain before it reaches the request.
func Success(user, info any) Result {
	return Result{kind: resultSuccess, user: user, info: info}
}

// Fail reports that the credentials did not verify. The challenge, when not
// empty, is a WWW-Authenticate challenge (or a human-readable reason for
// form-based strategies). A zero status lets the pipeline default to 401.
// Fail never short-circuits a multi-strategy attempt; the pipeline records
// the failure and moves to the next strategy.
func Fail(challenge string, status int) Result {
	return Result{kind: resultFail, challenge: challenge, status: status}
}

// Redirect reports that authentication requires sending the client to url,
// typically an external identity provider. A zero status defaults to 302.
func Redirect(url string, status int) Result {
	if status == 0 {
		status = http.StatusFound
	}
	return Result{kind: resultRedirect, url: url, status: status}
}

// Pass reports that the strategy has no opinion about this request. The
// pipeline stops evaluating strategies and hands the request to the next
// handler unauthenticated.
func Pass() Result {
	return Result{kind: resultPass}
}

// Error reports an internal fault such as an unreachable verification
// backend. It is distinct from Fail: the pipeline routes it to the error
// handler instead of recording a credentials failure.
func Error(err error) Result {
	return Result{kind: resultError, err: err}
}
