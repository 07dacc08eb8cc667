package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/botmesero/mesero/core/logger"
)

const migrateComponent = "db.migrate"

// RunMigrations applies the up migrations under <driver>/ in fsys. It does
// nothing unless cfg.Migrate is set. Postgres gets 30s to come up first.
func RunMigrations(cfg Config, fsys fs.FS) error {
	ctx := context.Background()
	if err := cfg.Normalize(); err != nil {
		return err
	}
	if !cfg.Migrate {
		logger.Info(ctx, migrateComponent, "migrate.summary", slog.String("status", "skip"))
		return nil
	}
	if fsys == nil {
		return errors.New("migrations: nil source filesystem")
	}
	if cfg.Driver == DriverPostgres {
		if err := WaitForDatabase(cfg.Driver, cfg.DSN(), 30*time.Second); err != nil {
			logger.Error(ctx, migrateComponent, "migrate.wait", slog.String("err", err.Error()))
			return fmt.Errorf("database not ready: %w", err)
		}
	}

	files := listMigrationFiles(fsys, cfg.Driver)
	logger.Debug(ctx, migrateComponent, "migrate.resolve", fileAttrs(cfg.Driver, files)...)

	src, err := iofs.New(fsys, cfg.Driver)
	if err != nil {
		return fmt.Errorf("open migrations source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.MigrateURL())
	if err != nil {
		logger.Error(ctx, migrateComponent, "migrate.init", slog.String("err", err.Error()))
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer func() {
		if err := errors.Join(m.Close()); err != nil {
			logger.Warn(ctx, migrateComponent, "migrate.close", slog.String("err", err.Error()))
		}
	}()

	from, _, _ := m.Version()
	start := time.Now()
	err = m.Up()
	took := logger.Took(start)
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error(ctx, migrateComponent, "migrate.apply",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
			slog.Duration("duration", took),
		)
		return fmt.Errorf("migration execution failed: %w", err)
	}
	to, _, _ := m.Version()

	applied := selectApplied(files, uint64(from), uint64(to))
	if len(applied) > 0 {
		logger.Debug(ctx, migrateComponent, "migrate.apply", fileAttrs(cfg.Driver, applied)...)
	}
	logger.Info(ctx, migrateComponent, "migrate.summary",
		slog.String("status", "ok"),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", len(applied)),
		slog.Duration("duration", took),
	)
	return nil
}

func fileAttrs(dir string, files []string) []slog.Attr {
	preview, truncated := logger.SummarizeStrings(files, 6)
	attrs := []slog.Attr{
		slog.String("path", dir),
		slog.Int("files_total", len(files)),
		slog.String("files_preview", preview),
	}
	if truncated {
		attrs = append(attrs, slog.Bool("files_truncated", true))
	}
	return attrs
}

// listMigrationFiles returns the *.up.sql names in dir, sorted.
func listMigrationFiles(fsys fs.FS, dir string) []string {
	names, err := fs.Glob(fsys, dir+"/*.up.sql")
	if err != nil {
		return nil
	}
	for i, n := range names {
		names[i] = strings.TrimPrefix(n, dir+"/")
	}
	slices.Sort(names)
	return names
}

// selectApplied returns the files whose version lies in (from, to].
func selectApplied(files []string, from, to uint64) []string {
	if to <= from {
		return nil
	}
	var out []string
	for _, f := range files {
		prefix, _, _ := strings.Cut(f, "_")
		if v, err := strconv.ParseUint(prefix, 10, 64); err == nil && v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
