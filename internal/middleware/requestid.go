// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type requestIDKey struct{}

// RequestIDHeader is the HTTP header carrying the request ID. Support tooling
// quotes it when chasing a checkout or refund through the logs, so the same
// value must appear on the response even when the client supplied it.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLength caps client-supplied IDs. Anything longer is replaced
// rather than truncated, so a log line never carries a mangled ID.
const maxRequestIDLength = 64

// validRequestID accepts IDs built from letters, digits, dots, underscores
// and hyphens, within the length cap. Anything else is replaced: the value
// ends up verbatim in structured log lines.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}

// RequestID injects a request ID into the context and echoes it on the
// response. A well-formed inbound X-Request-ID is honored so storefront
// clients can correlate retries; missing or malformed values get a fresh UUID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if !validRequestID(requestID) {
			requestID = uuid.New().String()
		}

		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request ID from context, or "" if not present.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
