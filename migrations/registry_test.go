package migrations

import (
	"context"
	"database/sql"
	"io/fs"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestDialectForDriver(t *testing.T) {
	cases := map[string]string{
		"sqlite3":  DialectSQLite,
		" SQLite ": DialectSQLite,
		"postgres": DialectPostgres,
		"pgx":      DialectPostgres,
	}
	for driver, want := range cases {
		got, err := DialectForDriver(driver)
		if err != nil || got != want {
			t.Fatalf("DialectForDriver(%q) = %q, %v; want %q", driver, got, err, want)
		}
	}
	if _, err := DialectForDriver("oracle"); err == nil {
		t.Fatalf("expected unknown driver to fail")
	}
}

func TestForDialect_ServesEachSchemaPair(t *testing.T) {
	for _, dialect := range []string{DialectPostgres, DialectSQLite} {
		fsys, err := ForDialect(dialect)
		if err != nil {
			t.Fatalf("%s: %v", dialect, err)
		}
		for _, name := range []string{"00001_dtuevent_schema.up.sql", "00001_dtuevent_schema.down.sql"} {
			content, err := fs.ReadFile(fsys, name)
			if err != nil {
				t.Fatalf("%s: read %s: %v", dialect, name, err)
			}
			if strings.TrimSpace(string(content)) == "" {
				t.Fatalf("%s: expected %s to have SQL content", dialect, name)
			}
		}
	}

	postgres, _ := ForDialect(DialectPostgres)
	up, _ := fs.ReadFile(postgres, "00001_dtuevent_schema.up.sql")
	if !strings.Contains(string(up), "JSONB") {
		t.Fatalf("expected the postgres schema at the root, got %q", up)
	}
	if _, err := ForDialect("mysql"); err == nil {
		t.Fatalf("expected unknown dialect to fail")
	}
}

func TestRegister(t *testing.T) {
	var got fs.FS
	if err := Register(DialectSQLite, func(fsys fs.FS) { got = fsys }); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := fs.Stat(got, "00001_dtuevent_schema.up.sql"); err != nil {
		t.Fatalf("expected sqlite migrations handed over: %v", err)
	}
	if err := Register(DialectSQLite, nil); err == nil {
		t.Fatalf("expected error without register function")
	}
	if err := Register("mysql", func(fs.FS) {}); err == nil {
		t.Fatalf("expected unknown dialect to fail")
	}
}

func TestSQLiteSchemaMigration_ApplyAndRollback(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-schema?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	sqliteMigrations, err := ForDialect(DialectSQLite)
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}
	ctx := context.Background()
	tables := []string{"pages", "events", "page_secrets", "page_secret_versions"}

	if err := execSQLMigration(ctx, db, sqliteMigrations, "00001_dtuevent_schema.up.sql"); err != nil {
		t.Fatalf("apply schema up: %v", err)
	}
	for _, table := range tables {
		if !tableExists(t, db, table) {
			t.Fatalf("expected table %s after up migration", table)
		}
	}

	if _, err := db.ExecContext(ctx, `INSERT INTO page_secret_versions (id, secret_name, version, payload) VALUES (?, ?, ?, ?)`,
		"v1", "facebook-token-missing", 1, []byte("x")); err == nil {
		t.Fatalf("expected foreign key violation for unknown secret")
	}

	if err := execSQLMigration(ctx, db, sqliteMigrations, "00001_dtuevent_schema.down.sql"); err != nil {
		t.Fatalf("apply schema down: %v", err)
	}
	for _, table := range tables {
		if tableExists(t, db, table) {
			t.Fatalf("expected table %s dropped after down migration", table)
		}
	}
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&count); err != nil {
		t.Fatalf("query sqlite master: %v", err)
	}
	return count == 1
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filename)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
