package gatehouse

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gatehouse-dev/gatehouse/pkg/observability"
)

// Authenticate returns middleware that runs the named strategies against
// each request. Strategies run in specifier order; the first success,
// redirect, pass, or error settles the attempt, while failures accumulate
// until the list is exhausted. On success the user is attached to the
// request, a login session is established unless disabled, and control
// either redirects or continues to next. When every strategy fails, the
// accumulated failures decide the aggregate response.
func (a *Authenticator) Authenticate(spec Specifier, opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := stateFromContext(r.Context())
			if st == nil {
				st = newState(a)
				r = r.WithContext(withState(r.Context(), st))
			}
			p := &attempt{auth: a, opts: opts, state: st, next: next}
			p.run(w, r, spec)
		})
	}
}

// Authorize is Authenticate for delegated authorization: the established
// login session stays untouched and the verified user is attached under a
// secondary property, "account" unless opts.AssignTo overrides it.
func (a *Authenticator) Authorize(spec Specifier, opts Options) func(http.Handler) http.Handler {
	if opts.AssignTo == "" {
		opts.AssignTo = "account"
	}
	return a.Authenticate(spec, opts)
}

// attempt is the per-request pipeline execution.
type attempt struct {
	auth  *Authenticator
	opts  Options
	state *state
	next  http.Handler
}

func (p *attempt) run(w http.ResponseWriter, r *http.Request, spec Specifier) {
	var failures []Failure

	for _, entry := range spec.entries {
		strat, err := p.auth.resolveStrategy(entry)
		if err != nil {
			// Specifier mistakes bypass the completion callback; they are
			// application bugs, not authentication outcomes.
			slog.Error("authentication misconfigured", "path", r.URL.Path, "error", err)
			p.auth.cfg.ErrorHandler(w, r, err)
			return
		}

		res := p.evaluate(strat, w, r)
		switch res.kind {
		case resultSuccess:
			p.success(w, r, res.user, res.info)
			return
		case resultFail:
			failures = append(failures, Failure{Challenge: res.challenge, Status: res.status})
		case resultRedirect:
			p.redirect(w, res.url, res.status)
			return
		case resultPass:
			p.next.ServeHTTP(w, r)
			return
		case resultError:
			p.fault(w, r, res.err)
			return
		default:
			p.fault(w, r, configError("strategy %q returned no outcome", strat.Name()))
			return
		}
	}

	p.allFailed(w, r, failures)
}

// evaluate runs one strategy and records its outcome.
func (p *attempt) evaluate(strat Strategy, w http.ResponseWriter, r *http.Request) Result {
	start := time.Now()
	res := strat.Authenticate(r.Context(), r, p.opts)
	observability.StrategyDuration.WithLabelValues(strat.Name()).Observe(time.Since(start).Seconds())
	observability.AuthAttemptsTotal.WithLabelValues(strat.Name(), outcomeLabel(res.kind)).Inc()
	return res
}

func outcomeLabel(k resultKind) string {
	switch k {
	case resultSuccess:
		return "success"
	case resultFail:
		return "fail"
	case resultRedirect:
		return "redirect"
	case resultPass:
		return "pass"
	default:
		return "error"
	}
}

func (p *attempt) success(w http.ResponseWriter, r *http.Request, user, info any) {
	if p.opts.Complete != nil {
		p.opts.Complete(w, r, nil, user, info, nil)
		return
	}

	if p.opts.AssignTo != "" {
		if !p.writeSuccessNotices(w, r, info) {
			return
		}
		p.state.set(p.opts.AssignTo, user)
		if !p.attachInfo(w, r, info) {
			return
		}
		p.next.ServeHTTP(w, r)
		return
	}

	sess := SessionFromContext(r.Context())

	// The captured return URL is consumed before the login regenerates the
	// session, otherwise it would vanish with the discarded session data.
	var returnTo string
	var haveReturnTo bool
	if p.opts.SuccessReturnToOrRedirect != "" {
		returnTo, haveReturnTo = p.auth.sessions.PluckReturnTo(sess)
	}

	if !p.opts.DisableSession {
		err := p.auth.sessions.LogIn(r.Context(), sess, user, LoginOptions{KeepSessionInfo: p.opts.KeepSessionInfo})
		if err != nil {
			p.fault(w, r, err)
			return
		}
	}
	p.state.set(p.auth.cfg.UserProperty, user)

	// Notices are written after the login so they land in the regenerated
	// session instead of the one the login discards.
	if !p.writeSuccessNotices(w, r, info) {
		return
	}
	if !p.attachInfo(w, r, info) {
		return
	}

	slog.Debug("authentication succeeded", "path", r.URL.Path, "remote_addr", r.RemoteAddr)

	if p.opts.SuccessReturnToOrRedirect != "" {
		url := p.opts.SuccessReturnToOrRedirect
		if haveReturnTo {
			url = returnTo
		}
		p.redirect(w, url, http.StatusFound)
		return
	}
	if p.opts.SuccessRedirect != "" {
		p.redirect(w, p.opts.SuccessRedirect, http.StatusFound)
		return
	}
	p.next.ServeHTTP(w, r)
}

// writeSuccessNotices handles SuccessFlash and SuccessMessage. It reports
// whether the attempt may continue; a notice configured on a sessionless
// request is a configuration error that ends the attempt.
func (p *attempt) writeSuccessNotices(w http.ResponseWriter, r *http.Request, info any) bool {
	if p.opts.SuccessFlash == nil && p.opts.SuccessMessage == nil {
		return true
	}
	sess := SessionFromContext(r.Context())
	if sess == nil {
		p.fault(w, r, ErrSessionUnavailable)
		return false
	}
	if f := p.opts.SuccessFlash; f != nil {
		kind := f.Kind
		if kind == "" {
			kind = FlashSuccess
		}
		p.auth.sessions.SetFlash(sess, kind, deriveMessage(f.Text, info))
	}
	if m := p.opts.SuccessMessage; m != nil {
		p.auth.sessions.AddMessage(sess, deriveMessage(m.Text, info))
	}
	return true
}

// attachInfo runs the info transform chain and attaches the result to the
// request. It reports whether the attempt may continue.
func (p *attempt) attachInfo(w http.ResponseWriter, r *http.Request, info any) bool {
	if p.opts.DisableAuthInfo {
		return true
	}
	tinfo, err := p.auth.TransformAuthInfo(r.Context(), info)
	if err != nil {
		p.fault(w, r, err)
		return false
	}
	p.state.info = tinfo
	return true
}

func (p *attempt) allFailed(w http.ResponseWriter, r *http.Request, failures []Failure) {
	if p.opts.Complete != nil {
		p.opts.Complete(w, r, nil, nil, nil, failures)
		return
	}

	if p.opts.FailureFlash != nil || p.opts.FailureMessage != nil {
		sess := SessionFromContext(r.Context())
		if sess == nil {
			p.fault(w, r, ErrSessionUnavailable)
			return
		}
		if f := p.opts.FailureFlash; f != nil {
			kind := f.Kind
			if kind == "" {
				kind = FlashError
			}
			p.auth.sessions.SetFlash(sess, kind, deriveFailureMessage(f.Text, failures))
		}
		if m := p.opts.FailureMessage; m != nil {
			p.auth.sessions.AddMessage(sess, deriveFailureMessage(m.Text, failures))
		}
	}

	slog.Warn("authentication failed",
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
		"strategies_tried", len(failures))

	if p.opts.FailureRedirect != "" {
		p.redirect(w, p.opts.FailureRedirect, http.StatusFound)
		return
	}

	// Aggregate response: the first explicit status wins, defaulting to
	// 401, and on 401 every challenge is presented in order.
	status := 0
	var challenges []string
	for _, f := range failures {
		if status == 0 && f.Status != 0 {
			status = f.Status
		}
		if f.Challenge != "" {
			challenges = append(challenges, f.Challenge)
		}
	}
	if status == 0 {
		status = http.StatusUnauthorized
	}
	if status == http.StatusUnauthorized && len(challenges) > 0 {
		w.Header().Set("WWW-Authenticate", strings.Join(challenges, ", "))
	}
	if p.opts.FailWithError {
		p.auth.cfg.ErrorHandler(w, r, NewAuthError(http.StatusText(status), status))
		return
	}
	http.Error(w, http.StatusText(status), status)
}

// fault routes an internal error to the completion callback when one is
// set, otherwise to the configured error handler.
func (p *attempt) fault(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("authentication error", "path", r.URL.Path, "remote_addr", r.RemoteAddr, "error", err)
	if p.opts.Complete != nil {
		p.opts.Complete(w, r, err, nil, nil, nil)
		return
	}
	p.auth.cfg.ErrorHandler(w, r, err)
}

// redirect writes a redirect with an explicit empty body, leaving any
// HTML rendering of the target to the client.
func (p *attempt) redirect(w http.ResponseWriter, url string, status int) {
	w.Header().Set("Location", url)
	w.Header().Set("Content-Length", "0")
	w.WriteHeader(status)
}
