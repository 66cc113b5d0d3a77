package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/marquezdaniela/reciclaje-municipal/api"
	"github.com/marquezdaniela/reciclaje-municipal/api/controllers"
	"github.com/marquezdaniela/reciclaje-municipal/api/routes"
	"github.com/marquezdaniela/reciclaje-municipal/internal/auth"
	"github.com/marquezdaniela/reciclaje-municipal/internal/materials"
	"github.com/marquezdaniela/reciclaje-municipal/internal/operators"
	"github.com/marquezdaniela/reciclaje-municipal/internal/policy"
	"github.com/marquezdaniela/reciclaje-municipal/internal/requests"
	"github.com/marquezdaniela/reciclaje-municipal/internal/stats"
	"github.com/marquezdaniela/reciclaje-municipal/internal/users"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/auth/session"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/config"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/db"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/flash"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/instance"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/logger"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/metrics"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/migrate"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/outbox"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	resolver, err := policy.NewResolver(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create actor resolver", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := metrics.NewHTTPMetrics(registry)
	pickupMetrics := metrics.NewPickupMetrics(registry)

	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	userRepo := users.NewRepository(dbClient.DB())
	operatorRepo := operators.NewRepository(dbClient.DB())

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		Resolver:       resolver,
		JWTConfig:      cfg.JWT,
		Passwords:      &cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}
	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
		SessionManager: sessionManager,
		Resolver:       resolver,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create register service", err)
		os.Exit(1)
	}
	adminRegisterService, err := auth.NewAdminRegisterService(auth.AdminRegisterServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create admin register service", err)
		os.Exit(1)
	}

	requestService, err := requests.NewService(requests.ServiceParams{
		Repo:        requests.NewRepository(dbClient.DB()),
		Operators:   operatorRepo,
		Tx:          dbClient,
		Outbox:      emitter,
		Metrics:     pickupMetrics,
		Logger:      logg,
		AllowReopen: cfg.FeatureFlags.AssignAllowReopen,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create requests service", err)
		os.Exit(1)
	}
	materialService, err := materials.NewService(materials.ServiceParams{
		Repo:   materials.NewRepository(dbClient.DB()),
		Tx:     dbClient,
		Outbox: emitter,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create materials service", err)
		os.Exit(1)
	}
	operatorService, err := operators.NewService(operators.ServiceParams{
		Repo:      operatorRepo,
		Users:     userRepo,
		Tx:        dbClient,
		Outbox:    emitter,
		Passwords: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create operators service", err)
		os.Exit(1)
	}
	statsService, err := stats.NewService(stats.NewRepository(dbClient.DB()), redisClient, cfg.Stats.CacheTTL, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create stats service", err)
		os.Exit(1)
	}
	notices, err := flash.NewQueue(redisClient, cfg.Flash.TTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create flash queue", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(routes.Dependencies{
		Config:   cfg,
		Logger:   logg,
		Sessions: sessionManager,
		Resolver: resolver,
		Store:    redisClient,
		Notices:  notices,
		Ready: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
		},
		Auth:          authService,
		Register:      registerService,
		AdminRegister: adminRegisterService,
		Requests:      requestService,
		Materials:     materialService,
		Operators:     operatorService,
		Dashboard:     statsService,
		HTTPMetrics:   httpMetrics,
		Gatherer:      registry,
	})

	server := api.NewServer(cfg, handler, logg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     server.Addr(),
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	if err := server.Run(ctx); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}
