// Package transport provides the HTTP server middleware chain shared by
// servers built on gatehouse.
//
// The middleware here covers server-level cross-cutting concerns that sit
// outside the authentication pipeline itself: panic recovery, request ID
// assignment (X-Request-ID), and structured request logging via log/slog.
//
// # Middleware
//
// Middleware is func(http.Handler) http.Handler, the same shape produced
// by gatehouse (Initialize, Authenticate) and sessions (Middleware), so a
// complete server stack composes with a single Chain call:
//
//	handler := transport.Chain(
//	    transport.Recovery(logger),
//	    transport.RequestID(),
//	    transport.Logging(logger),
//	    sessions.Middleware(store, sessCfg),
//	    auth.Initialize(),
//	    auth.Authenticate(gatehouse.Try("session"), gatehouse.Options{}),
//	)(mux)
//
// Chain applies middleware in order: the first argument is the outermost
// wrapper. Recovery belongs first so it also catches panics raised inside
// other middleware; RequestID belongs before Logging so log entries carry
// the assigned ID.
package transport
