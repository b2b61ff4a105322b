package middleware

import (
	"net/http"

	"ordersaga/internal/logger"

	"github.com/go-chi/cors"
)

// CORS answers browser preflights for the order API. It must wrap the
// router itself, since preflight OPTIONS requests match no route.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type",
			logger.RequestIDHeader, DeviceIDHeader, ServiceAuthHeader,
		},
		ExposedHeaders:   []string{logger.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
