package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/cors"
)

// tokenHeader is controllers.TokenHeader.
const tokenHeader = "X-RM-Token"

var devOrigins = []string{"http://localhost:3000", "http://localhost:5173"}

// CORS applies the browser origin policy. No origins means the local dev
// servers. Credentials are only allowed for an explicit origin list since
// they cannot be combined with a wildcard.
func CORS(origins []string) func(http.Handler) http.Handler {
	origins = slices.DeleteFunc(slices.Clone(origins), func(o string) bool { return strings.TrimSpace(o) == "" })
	if len(origins) == 0 {
		origins = devOrigins
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type",
			tokenHeader, IdempotencyHeader, RequestIDHeader,
		},
		ExposedHeaders:   []string{tokenHeader, RequestIDHeader, "Location", "Retry-After"},
		AllowCredentials: !slices.Contains(origins, "*"),
		MaxAge:           300,
	})
}
