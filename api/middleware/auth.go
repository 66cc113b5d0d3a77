package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/marquezdaniela/reciclaje-municipal/api/responses"
	"github.com/marquezdaniela/reciclaje-municipal/internal/policy"
	pkgAuth "github.com/marquezdaniela/reciclaje-municipal/pkg/auth"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/auth/session"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/config"
	pkgerrors "github.com/marquezdaniela/reciclaje-municipal/pkg/errors"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/logger"
)

// Auth validates a bearer token, resolves the caller into a policy.Actor
// once and stores it on the request context. Requests without a token are
// rejected.
func Auth(cfg config.JWTConfig, verifier session.AccessSessionChecker, resolver policy.Resolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return authenticate(cfg, verifier, resolver, logg, true)
}

// OptionalAuth behaves like Auth when a token is present and otherwise
// continues as the anonymous actor.
func OptionalAuth(cfg config.JWTConfig, verifier session.AccessSessionChecker, resolver policy.Resolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return authenticate(cfg, verifier, resolver, logg, false)
}

func authenticate(cfg config.JWTConfig, verifier session.AccessSessionChecker, resolver policy.Resolver, logg *logger.Logger, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				if required {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
					return
				}
				ctx := policy.WithActor(r.Context(), policy.Anonymous())
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			if claims.ID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id"))
				return
			}

			if verifier != nil {
				ok, err := verifier.HasSession(r.Context(), claims.ID)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session"))
					return
				}
				if !ok {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable"))
					return
				}
			}

			actor, err := resolveActor(r.Context(), resolver, claims)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := WithUserID(r.Context(), claims.UserID.String())
			ctx = withAccessID(ctx, claims.ID)
			ctx = policy.WithActor(ctx, actor)

			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.UserID.String())
				ctx = logg.WithActor(ctx, actor.Kind().String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolveActor(ctx context.Context, resolver policy.Resolver, claims *pkgAuth.AccessTokenClaims) (policy.Actor, error) {
	if claims.UserID == uuid.Nil {
		return policy.Anonymous(), pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid token subject")
	}
	if resolver == nil {
		return policy.Member(claims.UserID, claims.Username), nil
	}
	return resolver.Resolve(ctx, claims.UserID)
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}
