package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"

	errors "github.com/frahmantamala/workpermit/internal"
	"github.com/frahmantamala/workpermit/pkg/logger"
)

// RecoveryMiddleware turns a handler panic into the standard 500 error body.
// The panic value is logged, never sent to the client.
func RecoveryMiddleware(fallback *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.FromOr(r.Context(), fallback).Error("panic recovered",
					"error", rec,
					"method", r.Method,
					"url", r.URL.String(),
					"stack", string(debug.Stack()))

				status, body := errors.NewInternalError("Internal server error", nil).ToHTTPResponse()
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				_ = json.NewEncoder(w).Encode(body)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
