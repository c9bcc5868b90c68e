package metadata

import (
	"net"
	"net/http"
	"strings"

	"verigate/pkg/requestcontext"
)

// ClientMetadata records the caller address in the request context so webhook
// logs can show which upstream node delivered a callback.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientIP(r.Context(), ClientIPFromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIPFromRequest prefers proxy headers over the socket address. For
// X-Forwarded-For the left-most entry is the origin.
func ClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		origin, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(origin)
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
