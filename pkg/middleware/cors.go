package middleware

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// Cors allows the browser application at allowedOrigins to call the API with
// the identity headers the gateway forwards.
func Cors(allowedHeaders []string, allowedOrigins ...string) mux.MiddlewareFunc {
	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   append([]string{"Content-Type", "Authorization", "X-Request-ID"}, allowedHeaders...),
		ExposedHeaders:   []string{"X-Request-Id", "X-Trace-Id", "X-RateLimit-Remaining"},
		AllowCredentials: true,
	})
	return c.Handler
}
