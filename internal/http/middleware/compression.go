package middleware

import (
	"net/http"
	"strings"
)

// SkipCompressionForStreams wraps a compression middleware so progress
// streams and clip downloads bypass it. SSE needs every write flushed
// immediately, and MP4 payloads do not compress.
func SkipCompressionForStreams(compressionHandler func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		compressed := compressionHandler(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.Header.Get("Accept"), "text/event-stream") ||
				strings.HasSuffix(r.URL.Path, "/progress") ||
				strings.HasPrefix(r.URL.Path, "/output/") {
				next.ServeHTTP(w, r)
				return
			}

			compressed.ServeHTTP(w, r)
		})
	}
}
