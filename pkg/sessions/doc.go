// Package sessions provides cookie-keyed server-side sessions backing the
// gatehouse.Session contract.
//
// The middleware resolves the session cookie against a Store, attaches
// the session to the request context, and persists pending mutations
// after the handler returns. Session data crosses the store boundary as
// JSON, so values read back carry JSON's loosened types.
//
// Stores (memory, redis, postgres) implement the Store interface defined
// here. This package contains the cookie and lifecycle mechanics, not the
// storage itself.
package sessions
