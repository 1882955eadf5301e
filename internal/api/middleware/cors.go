package middleware

import (
	"github.com/go-chi/cors"
)

// CORSHandler builds the CORS policy for the studio frontend. Only the
// methods this API actually routes are allowed.
func CORSHandler(allowedOrigins []string) cors.Options {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	// Credentials must stay off whenever the wildcard origin is in play
	allowCreds := true
	for _, o := range allowedOrigins {
		if o == "*" {
			allowCreds = false
			break
		}
	}

	return cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		// The files endpoint answers Range requests for media playback, so
		// browsers need to read the range headers.
		ExposedHeaders:   []string{"Content-Length", "Content-Range"},
		AllowCredentials: allowCreds,
		MaxAge:           300,
	}
}
