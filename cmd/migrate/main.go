package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/config"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/db"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/logger"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/migrate"
)

const usage = `usage: migrate [flags] <up|down|status|to VERSION|create NAME|validate>`

func main() {
	dir := flag.String("dir", migrate.DefaultDir, "migrations directory; the default path uses the embedded set")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	_ = godotenv.Load()

	if err := run(flag.Args(), *dir); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run(args []string, dir string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command\n%s", usage)
	}
	cmd, rest := args[0], args[1:]

	// file-only commands need no database
	switch cmd {
	case "create":
		if len(rest) != 1 {
			return fmt.Errorf("create takes one NAME")
		}
		path, err := migrate.CreateSQLMigration(dir, rest[0])
		if err != nil {
			return err
		}
		fmt.Println("created", path)
		return nil
	case "validate":
		if err := migrate.ValidateDir(dir); err != nil {
			return err
		}
		fmt.Println("migrations ok")
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": cmd, "dir": dir})

	client, err := db.New(ctx, cfg.DB, false, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer client.Close()
	sqlDB, err := client.SQL()
	if err != nil {
		return err
	}
	migrator, err := migrate.New(sqlDB, dir)
	if err != nil {
		return err
	}

	var steps []migrate.Step
	switch cmd {
	case "up":
		steps, err = migrator.Up(ctx)
	case "down":
		steps, err = migrator.Down(ctx)
	case "to":
		if len(rest) != 1 {
			return fmt.Errorf("to takes one VERSION")
		}
		steps, err = migrator.To(ctx, rest[0])
	case "status":
		return printStatus(ctx, migrator)
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
	for _, s := range steps {
		logg.Info(logg.WithFields(ctx, map[string]any{"version": s.Version, "file": s.File, "took_ms": s.Duration.Milliseconds()}), "migrate.step")
	}
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "steps", len(steps)), "migrate.done")
	return nil
}

func printStatus(ctx context.Context, m *migrate.Migrator) error {
	rows, err := m.Status(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tAPPLIED\tFILE")
	for _, r := range rows {
		applied := "pending"
		if !r.AppliedAt.IsZero() {
			applied = r.AppliedAt.UTC().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", r.Version, applied, r.File)
	}
	return w.Flush()
}
