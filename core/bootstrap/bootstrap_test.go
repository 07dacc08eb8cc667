package bootstrap

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	coreconfig "github.com/botmesero/mesero/core/config"
	coredatabase "github.com/botmesero/mesero/core/database"
)

func TestRunOrder(t *testing.T) {
	var steps []string
	src := fstest.MapFS{}
	res, err := Run(Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{URL: "postgres://u:p@h/db"},
		Migrations: src,
		LoggerInit: func(*coreconfig.Config) error {
			steps = append(steps, "logger")
			return nil
		},
		Migrate: func(cfg coredatabase.Config, fsys fs.FS) error {
			if cfg.Driver != coredatabase.DriverPostgres {
				t.Fatalf("migrate got un-normalized config: %+v", cfg)
			}
			steps = append(steps, "migrate")
			return nil
		},
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			steps = append(steps, "connect")
			return &sqlx.DB{}, nil
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.DB == nil {
		t.Fatal("expected db in result")
	}
	if got := strings.Join(steps, ","); got != "logger,migrate,connect" {
		t.Fatalf("steps = %s", got)
	}
}

func TestRunStopsOnMigrationError(t *testing.T) {
	connected := false
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{URL: "postgres://u:p@h/db"},
		LoggerInit: func(*coreconfig.Config) error { return nil },
		Migrate:    func(coredatabase.Config, fs.FS) error { return errors.New("dirty") },
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			connected = true
			return nil, nil
		},
	})
	if err == nil || !strings.Contains(err.Error(), "dirty") {
		t.Fatalf("expected migration error, got %v", err)
	}
	if connected {
		t.Fatal("connect must not run after a failed migration")
	}
}

func TestRunRequiresConfig(t *testing.T) {
	if _, err := Run(Options{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestRunSeedsAfterConnect(t *testing.T) {
	var steps []string
	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	res, err := Run(Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Driver: coredatabase.DriverSQLite, Path: ":memory:"},
		LoggerInit: func(*coreconfig.Config) error { return nil },
		Migrate:    func(coredatabase.Config, fs.FS) error { steps = append(steps, "migrate"); return nil },
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			steps = append(steps, "connect")
			return db, nil
		},
		Seeders: []Seeder{
			SeederFunc(func(_ context.Context, got *sqlx.DB) error {
				if got != db {
					t.Fatal("seeder got a different pool")
				}
				steps = append(steps, "seed.menu")
				return nil
			}),
			SeederFunc(func(context.Context, *sqlx.DB) error {
				steps = append(steps, "seed.orders")
				return nil
			}),
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.DB != db {
		t.Fatal("expected the connected pool in result")
	}
	if got := strings.Join(steps, ","); got != "migrate,connect,seed.menu,seed.orders" {
		t.Fatalf("steps = %s", got)
	}
}

func TestRunClosesPoolOnSeedError(t *testing.T) {
	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, err = Run(Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Driver: coredatabase.DriverSQLite, Path: ":memory:"},
		LoggerInit: func(*coreconfig.Config) error { return nil },
		Migrate:    func(coredatabase.Config, fs.FS) error { return nil },
		Connect:    func(coredatabase.Config) (*sqlx.DB, error) { return db, nil },
		Seeders: []Seeder{SeederFunc(func(context.Context, *sqlx.DB) error {
			return errors.New("no such table: Category")
		})},
	})
	if err == nil || !strings.Contains(err.Error(), "no such table") {
		t.Fatalf("expected seed error, got %v", err)
	}
	if pingErr := db.Ping(); pingErr == nil {
		t.Fatal("pool must be closed after a failed seed")
	}
}
