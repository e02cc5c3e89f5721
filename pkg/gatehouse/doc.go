// Package gatehouse provides pluggable authentication orchestration for
// HTTP services.
//
// The engine knows nothing about verification schemes. Strategies register
// under names, a per-route pipeline runs them in order, and the first
// strategy to produce a definitive outcome settles the request: success
// attaches the user and establishes a login session, redirect sends the
// client elsewhere, pass defers to the next handler, and an error goes to
// the error handler. Failures are not definitive; they accumulate across
// the strategy list and only decide the response when every strategy has
// declined.
//
// Session semantics live in the SessionManager: user serialization into
// and out of the session, id regeneration at login and logout, flash
// messages, and return-to capture. The built-in "session" strategy
// restores the logged-in user on each request. The engine is implemented
// as HTTP middleware and stays decoupled from any particular session
// store or verification scheme.
package gatehouse
