// Package requesttime provides middleware for request-scoped time.
// All steps of one webhook delivery share the same "now", so archive rows,
// audit events and history rows written in one pass carry a consistent timestamp.
package requesttime

import (
	"net/http"
	"time"

	"verigate/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request
// and stores it in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
