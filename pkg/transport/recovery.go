package transport

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gatehouse-dev/gatehouse/pkg/gatehouse"
)

// Recovery returns middleware that catches panics in the handler and
// converts them to JSON 500 responses. The server continues to accept
// new requests after a panic is recovered. A nil logger falls back to
// slog.Default.
func Recovery(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.LogAttrs(r.Context(), slog.LevelError, "panic recovered",
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("panic", fmt.Sprint(rec)),
					)
					gatehouse.WriteError(w, r, gatehouse.NewAuthError(
						fmt.Sprintf("internal server error: %v", rec),
						http.StatusInternalServerError,
					))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
