package middleware

import (
	"net/http"

	"github.com/marquezdaniela/reciclaje-municipal/api/responses"
	"github.com/marquezdaniela/reciclaje-municipal/internal/policy"
	pkgerrors "github.com/marquezdaniela/reciclaje-municipal/pkg/errors"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/logger"
)

// RequireStaff rejects every actor that is not staff. It must run after Auth.
func RequireStaff(logg *logger.Logger) func(http.Handler) http.Handler {
	return RequireKind(logg, policy.KindStaff)
}

// RequireKind admits only the listed actor kinds.
func RequireKind(logg *logger.Logger, kinds ...policy.Kind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := policy.ActorFrom(r.Context())
			if !actor.IsAuthenticated() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
				return
			}
			for _, k := range kinds {
				if actor.Kind() == k {
					next.ServeHTTP(w, r)
					return
				}
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role required"))
		})
	}
}
