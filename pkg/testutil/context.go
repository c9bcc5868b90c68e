package testutil

import (
	"net/http"
	"time"

	"verigate/pkg/requestcontext"
)

// WithRequestID adds a request ID to the request context.
// This simulates what the request ID middleware would do.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}

// WithRequestTime pins the request clock so handlers see a fixed "now".
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
