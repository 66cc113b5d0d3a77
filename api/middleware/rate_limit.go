package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/marquezdaniela/reciclaje-municipal/api/responses"
	pkgerrors "github.com/marquezdaniela/reciclaje-municipal/pkg/errors"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/logger"
)

type WindowLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimit caps requests per authenticated user, falling back to the
// client IP for anonymous callers. A zero limit or window disables it.
func RateLimit(limiter WindowLimiter, limit int, window time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || limit <= 0 || window <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			scope := "api:user:" + UserIDFromContext(ctx)
			if UserIDFromContext(ctx) == "" {
				scope = "api:ip:" + clientIP(r)
			}

			allowed, count, err := limiter.FixedWindowAllow(ctx, scope, int64(limit), window)
			if err != nil {
				// fail open
				if logg != nil {
					logg.Warn(logg.WithField(ctx, "error", err.Error()), "api.rate_limit.unavailable")
				}
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			if !allowed {
				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{"scope": scope, "attempts": count}), "api.rate_limit.blocked")
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
