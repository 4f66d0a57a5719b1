package httpapi

import (
	"net/http"

	"github.com/rs/cors"
)

// corsMiddleware is permissive by design: IFTTT polls this service from
// infrastructure whose origin is not predictable ahead of time, so
// every dispatcher response carries unconditional CORS allowance.
// Preflights are answered without further checks.
func corsMiddleware() func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	})
	return c.Handler
}

// antiIndexingMiddleware sets X-Robots-Tag on every response so search
// engines never index tenant-specific IFTTT endpoints.
func antiIndexingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Robots-Tag", "noindex, nofollow, noarchive")
		next.ServeHTTP(w, r)
	})
}
