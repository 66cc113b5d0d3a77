package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/logger"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/metrics"
)

// routeOf prefers the matched chi pattern so ids do not explode label cardinality.
func routeOf(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// Logging emits one access entry per request and feeds the latency histogram.
// Server errors are logged at warn so they surface without the handler's help.
func Logging(logg *logger.Logger, httpMetrics *metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logg.WithFields(r.Context(), map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
			})
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			began := time.Now()

			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			took := time.Since(began)
			route := routeOf(r)
			httpMetrics.Observe(r.Method, route, status, took)

			ctx = logg.WithFields(ctx, map[string]any{
				"status":      status,
				"route":       route,
				"bytes":       ww.BytesWritten(),
				"duration_ms": took.Milliseconds(),
			})
			if status >= http.StatusInternalServerError {
				logg.Warn(ctx, "request.failed")
				return
			}
			logg.Info(ctx, "request.complete")
		})
	}
}
