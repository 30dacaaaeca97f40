package middleware

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

type CORSConfig struct {
	AllowedOrigins []string
	MaxAge         int
	// Request headers the API reads besides Content-Type.
	Headers []string
}

// Cors answers preflight requests and exposes the request and trace ids to
// browser clients.
func Cors(cfg CORSConfig) mux.MiddlewareFunc {
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   append([]string{"Content-Type"}, cfg.Headers...),
		ExposedHeaders:   []string{"X-Request-Id", "X-Trace-Id"},
		AllowCredentials: true,
		MaxAge:           cfg.MaxAge,
	})
	return c.Handler
}
