package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/clipforge/clipforge/internal/observability"
)

// RequestIDHeader is the HTTP header carrying the request ID.
const RequestIDHeader = "X-Request-ID"

// RequestID injects a request ID into the context and response headers.
// A client-supplied X-Request-ID is honored; otherwise a new UUID is
// generated.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set(RequestIDHeader, requestID)

		ctx := observability.ContextWithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
