package migrate

import (
	"context"
	"fmt"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/config"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/db"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/logger"
)

// shouldAutoRun is true only for dev postgres with the auto-migrate flag.
// SQLite dev databases are built by gorm instead; the SQL files are postgres
// specific.
func shouldAutoRun(cfg *config.Config) bool {
	return cfg.App.IsDev() && cfg.FeatureFlags.AutoMigrate && !cfg.FeatureFlags.UseSQLite
}

// MaybeRunDev validates the embedded migrations and applies any pending ones
// on boot when shouldAutoRun allows it.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !shouldAutoRun(cfg) {
		return nil
	}
	if err := ValidateFS(migrationsFS, embeddedDir); err != nil {
		return fmt.Errorf("embedded migrations: %w", err)
	}

	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	migrator, err := New(sqlDB, "")
	if err != nil {
		return err
	}
	applied, err := migrator.Up(ctx)
	if err != nil {
		return err
	}
	for _, step := range applied {
		logg.Info(logg.WithFields(ctx, map[string]any{"version": step.Version, "file": step.File, "took_ms": step.Duration.Milliseconds()}), "migrate.applied")
	}
	logg.Info(logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "applied": len(applied)}), "migrate.autorun.done")
	return nil
}
