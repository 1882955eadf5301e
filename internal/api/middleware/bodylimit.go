package middleware

import "net/http"

// MaxBodySize caps request bodies on the JSON routes. The video upload
// route is mounted outside this middleware and applies its own, much
// larger, limit.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
