package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

// CORS builds the cross-origin policy from a comma-separated origin list.
// "*" allows any origin without credentials.
func CORS(allowedOrigins string) func(http.Handler) http.Handler {
	origins := make([]string, 0)
	wildcard := false
	for _, origin := range strings.Split(allowedOrigins, ",") {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if origin == "*" {
			wildcard = true
		}
		origins = append(origins, origin)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: !wildcard,
		MaxAge:           300,
	})
	return c.Handler
}
