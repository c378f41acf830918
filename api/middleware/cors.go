package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/cors"
)

// CORS applies the configured origin allow-list. Blank entries are ignored;
// a "*" entry admits any origin but then drops credentialed requests.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := make([]string, 0, len(origins))
	for _, origin := range origins {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			allowed = append(allowed, origin)
		}
	}
	if len(allowed) == 0 {
		allowed = []string{"http://localhost:3000"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", idempotencyKeyHeader, requestIDHeader},
		ExposedHeaders: []string{requestIDHeader, replayedHeader, "Retry-After"},
		// Browsers refuse credentials with a wildcard origin.
		AllowCredentials: !slices.Contains(allowed, "*"),
		MaxAge:           300,
	})
}
