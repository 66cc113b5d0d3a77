// Package bootstrap wires the process-level dependencies shared by the
// background binaries: environment, config, logger, database and redis.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/config"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/db"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/logger"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/migrate"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/redis"
)

// Needs selects the optional dependencies a binary opens.
type Needs struct {
	Redis   bool
	Migrate bool
}

// Runtime owns the opened clients; Close releases them in reverse order.
type Runtime struct {
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client
	Redis  *redis.Client

	closers []func() error
}

type loadFunc func() (*config.Config, error)

// Start loads .env and config for the given service kind and opens the
// requested clients. On failure everything opened so far is closed.
func Start(ctx context.Context, kind string, needs Needs) (*Runtime, error) {
	return start(ctx, kind, needs, config.Load)
}

func start(ctx context.Context, kind string, needs Needs, load loadFunc) (rt *Runtime, err error) {
	boot := logger.New(logger.Options{ServiceName: kind})
	if envErr := godotenv.Load(); envErr != nil {
		boot.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = kind

	rt = &Runtime{
		Config: cfg,
		Logger: logger.New(logger.Options{
			ServiceName: kind,
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			WarnStack:   cfg.App.LogWarnStack,
		}),
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, rt.Close())
			rt = nil
		}
	}()

	rt.DB, err = db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, rt.Logger)
	if err != nil {
		return rt, fmt.Errorf("open database: %w", err)
	}
	rt.onClose(rt.DB.Close)

	if needs.Migrate {
		if err = migrate.MaybeRunDev(ctx, cfg, rt.Logger, rt.DB); err != nil {
			return rt, fmt.Errorf("dev migrations: %w", err)
		}
	}

	if needs.Redis {
		rt.Redis, err = redis.New(ctx, cfg.Redis, rt.Logger)
		if err != nil {
			return rt, fmt.Errorf("open redis: %w", err)
		}
		rt.onClose(rt.Redis.Close)
	}
	return rt, nil
}

// OnClose registers an extra resource to release with the runtime.
func (r *Runtime) OnClose(fn func() error) {
	if r != nil {
		r.onClose(fn)
	}
}

func (r *Runtime) onClose(fn func() error) {
	r.closers = append(r.closers, fn)
}

// Context decorates ctx with the fields every log line of the process carries.
func (r *Runtime) Context(ctx context.Context) context.Context {
	return r.Logger.WithFields(ctx, map[string]any{
		"env":         r.Config.App.Env,
		"serviceKind": r.Config.Service.Kind,
	})
}

func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	var errs error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, r.closers[i]())
	}
	r.closers = nil
	return errs
}
