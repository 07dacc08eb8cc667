package database

import (
	"testing"

	"github.com/botmesero/mesero/migrations"
)

func TestListMigrationFilesPerDriver(t *testing.T) {
	for _, dir := range []string{DriverPostgres, DriverSQLite} {
		files := listMigrationFiles(migrations.FS, dir)
		if len(files) != 2 {
			t.Fatalf("%s: files = %v", dir, files)
		}
		if files[0] != "0001_catalog.up.sql" || files[1] != "0002_orders.up.sql" {
			t.Fatalf("%s: unexpected order %v", dir, files)
		}
	}
}

func TestSelectApplied(t *testing.T) {
	files := []string{"0001_catalog.up.sql", "0002_orders.up.sql", "0003_extra.up.sql"}
	got := selectApplied(files, 1, 3)
	if len(got) != 2 || got[0] != "0002_orders.up.sql" {
		t.Fatalf("applied = %v", got)
	}
	if got := selectApplied(files, 3, 3); got != nil {
		t.Fatalf("no-op range returned %v", got)
	}
}

func TestRunMigrationsDisabled(t *testing.T) {
	cfg := Config{Driver: DriverSQLite, Path: t.TempDir() + "/x.db"}
	if err := RunMigrations(cfg, nil); err != nil {
		t.Fatalf("disabled migrations should be a no-op: %v", err)
	}
}

func TestRunMigrationsSQLiteFile(t *testing.T) {
	cfg := Config{Driver: DriverSQLite, Path: t.TempDir() + "/mesero.db", Migrate: true}
	if err := RunMigrations(cfg, migrations.FS); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := RunMigrations(cfg, migrations.FS); err != nil {
		t.Fatalf("second run should be a no-op: %v", err)
	}

	db, err := Connect(cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM "OrderItem"`); err != nil {
		t.Fatalf("query migrated table: %v", err)
	}
}
