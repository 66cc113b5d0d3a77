// Package migrate applies the goose SQL migrations, embedded in the binary
// or read from a directory, and offers file helpers for authoring them.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where new migration files are written and validated.
const DefaultDir = "pkg/migrate/migrations"

const embeddedDir = "migrations"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Step is one applied or reverted migration.
type Step struct {
	Version  int64
	File     string
	Duration time.Duration
}

// Status is one migration with its applied time, zero when pending.
type Status struct {
	Version   int64
	File      string
	AppliedAt time.Time
}

// Migrator runs goose against one database and one migration set.
type Migrator struct {
	provider *goose.Provider
}

// New reads migrations from dir, or from the embedded set when dir is
// blank or names the default location.
func New(db *sql.DB, dir string) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	fsys, err := source(dir)
	if err != nil {
		return nil, err
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Migrator{provider: provider}, nil
}

func source(dir string) (fs.FS, error) {
	switch dir {
	case "", DefaultDir, embeddedDir:
		return fs.Sub(migrationsFS, embeddedDir)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("migrations dir %q is not a directory", dir)
	}
	return os.DirFS(dir), nil
}

// Up applies every pending migration.
func (m *Migrator) Up(ctx context.Context) ([]Step, error) {
	results, err := m.provider.Up(ctx)
	return steps(results), wrap("up", err)
}

// Down reverts the latest applied migration.
func (m *Migrator) Down(ctx context.Context) ([]Step, error) {
	result, err := m.provider.Down(ctx)
	if result == nil {
		return nil, wrap("down", err)
	}
	return steps([]*goose.MigrationResult{result}), wrap("down", err)
}

// To moves the schema up or down to version (YYYYMMDDHHMMSS).
func (m *Migrator) To(ctx context.Context, version string) ([]Step, error) {
	target, err := strconv.ParseInt(version, 10, 64)
	if err != nil || target < 0 {
		return nil, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", version)
	}
	current, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("read db version: %w", err)
	}
	var results []*goose.MigrationResult
	switch {
	case target > current:
		results, err = m.provider.UpTo(ctx, target)
	case target < current:
		results, err = m.provider.DownTo(ctx, target)
	}
	return steps(results), wrap("to "+version, err)
}

func (m *Migrator) Status(ctx context.Context) ([]Status, error) {
	rows, err := m.provider.Status(ctx)
	if err != nil {
		return nil, wrap("status", err)
	}
	out := make([]Status, 0, len(rows))
	for _, r := range rows {
		out = append(out, Status{Version: r.Source.Version, File: r.Source.Path, AppliedAt: r.AppliedAt})
	}
	return out, nil
}

func steps(results []*goose.MigrationResult) []Step {
	out := make([]Step, 0, len(results))
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		out = append(out, Step{Version: r.Source.Version, File: r.Source.Path, Duration: r.Duration})
	}
	return out
}

func wrap(op string, err error) error {
	if err == nil || errors.Is(err, goose.ErrNoNextVersion) {
		return nil
	}
	return fmt.Errorf("goose %s: %w", op, err)
}

// Embedded lists the migration files compiled into the binary.
func Embedded() ([]string, error) {
	entries, err := migrationsFS.ReadDir(embeddedDir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}
