package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marquezdaniela/reciclaje-municipal/api/controllers"
	"github.com/marquezdaniela/reciclaje-municipal/api/middleware"
	"github.com/marquezdaniela/reciclaje-municipal/internal/auth"
	"github.com/marquezdaniela/reciclaje-municipal/internal/materials"
	"github.com/marquezdaniela/reciclaje-municipal/internal/operators"
	"github.com/marquezdaniela/reciclaje-municipal/internal/policy"
	"github.com/marquezdaniela/reciclaje-municipal/internal/requests"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/auth/session"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/config"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/logger"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/metrics"
	pkgredis "github.com/marquezdaniela/reciclaje-municipal/pkg/redis"
)

// Store is the Redis surface the middleware stack needs.
type Store interface {
	pkgredis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Dependencies groups everything the API surface is built from.
type Dependencies struct {
	Config   *config.Config
	Logger   *logger.Logger
	Sessions session.AccessSessionChecker
	Resolver policy.Resolver
	Store    Store
	Notices  controllers.Notices
	Ready    map[string]controllers.Pinger

	Auth          auth.Service
	Register      auth.RegisterService
	AdminRegister auth.AdminRegisterService
	Requests      requests.Service
	Materials     materials.Service
	Operators     operators.Service
	Dashboard     controllers.DashboardSource

	HTTPMetrics *metrics.HTTPMetrics
	// Gatherer backs /metrics; nil leaves the endpoint unmounted.
	Gatherer prometheus.Gatherer
}

func NewRouter(d Dependencies) http.Handler {
	cfg, logg := d.Config, d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, d.HTTPMetrics),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginIdentityLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterIdentLimit,
	)

	var (
		rateStore   middleware.RateLimitStore
		idemStore   pkgredis.IdempotencyStore
		windowStore middleware.WindowLimiter
	)
	// left nil when no store is wired so each middleware disables itself
	if d.Store != nil {
		rateStore, idemStore, windowStore = d.Store, d.Store, d.Store
	}

	authRequired := middleware.Auth(cfg.JWT, d.Sessions, d.Resolver, logg)
	authOptional := middleware.OptionalAuth(cfg.JWT, d.Sessions, d.Resolver, logg)
	apiLimit := middleware.RateLimit(windowStore, cfg.APIRateLimit.Limit, cfg.APIRateLimit.Window, logg)
	idempotent := middleware.Idempotency(idemStore, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.Ready))
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(loginPolicy, rateStore, logg)).Post("/login", controllers.AuthLogin(d.Auth, logg))
			r.With(middleware.AuthRateLimit(registerPolicy, rateStore, logg), idempotent).Post("/register", controllers.AuthRegister(d.Register, logg))
			r.Post("/logout", controllers.AuthLogout(d.Auth, logg))
			r.Post("/refresh", controllers.AuthRefresh(d.Auth, logg))
		})

		// public pages; a token, when sent, still resolves the actor
		r.Group(func(r chi.Router) {
			r.Use(authOptional, apiLimit)
			r.Get("/materials", controllers.MaterialList(d.Materials, logg))
			r.Get("/metrics", controllers.MetricsDashboard(d.Dashboard, logg))
			r.Get("/pages/clean-points", controllers.CleanPoints())
			r.Get("/pages/recommendations", controllers.Recommendations())
		})

		r.Group(func(r chi.Router) {
			r.Use(authRequired, apiLimit, idempotent)
			r.Get("/me", controllers.Me())
			r.Get("/messages", controllers.Messages(d.Notices, logg))

			r.Route("/requests", func(r chi.Router) {
				r.Get("/", controllers.RequestList(d.Requests, logg))
				r.Post("/", controllers.RequestCreate(d.Requests, d.Notices, logg))
				r.Get("/{requestId}", controllers.RequestDetail(d.Requests, logg))
				r.Get("/{requestId}/edit", controllers.RequestEditForm(d.Requests, d.Notices, logg))
				r.Post("/{requestId}/edit", controllers.RequestOperatorUpdate(d.Requests, d.Notices, logg))
			})
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		if !cfg.App.IsProd() {
			r.Post("/auth/register", controllers.AdminAuthRegister(d.AdminRegister, logg))
		}

		r.Group(func(r chi.Router) {
			r.Use(authRequired, middleware.RequireStaff(logg), apiLimit, idempotent)

			r.Route("/requests", func(r chi.Router) {
				r.Get("/", controllers.AdminRequestList(d.Requests, logg))
				r.Get("/export", controllers.AdminRequestExport(d.Requests, logg))
				r.Post("/assign", controllers.AdminBulkAssign(d.Requests, d.Notices, logg))
			})
			r.Route("/operators", func(r chi.Router) {
				r.Get("/", controllers.AdminOperatorList(d.Operators, logg))
				r.Post("/", controllers.AdminOperatorCreate(d.Operators, logg))
				r.Patch("/{operatorId}", controllers.AdminOperatorUpdate(d.Operators, logg))
			})
			r.Route("/materials", func(r chi.Router) {
				r.Post("/", controllers.AdminMaterialCreate(d.Materials, logg))
				r.Delete("/{code}", controllers.AdminMaterialDelete(d.Materials, logg))
			})
		})
	})

	return r
}
