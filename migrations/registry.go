package migrations

import (
	"fmt"
	"io/fs"
	"strings"

	dtuevent "github.com/philippzhuravlev/DTUEvent"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const rootDir = "data/sql/migrations"

// DialectForDriver maps a database/sql driver name onto a migrations dialect.
func DialectForDriver(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite3", "sqlite":
		return DialectSQLite, nil
	case "postgres", "pgx":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("migrations: unsupported database driver %q", driver)
	}
}

// ForDialect returns the embedded migration files for dialect. Postgres files
// live at the root, the sqlite variant in its own subdirectory.
func ForDialect(dialect string) (fs.FS, error) {
	dir := rootDir
	switch dialect {
	case DialectPostgres:
	case DialectSQLite:
		dir += "/sqlite"
	default:
		return nil, fmt.Errorf("migrations: unknown dialect %q", dialect)
	}
	fsys, err := fs.Sub(dtuevent.GetMigrationsFS(), dir)
	if err != nil {
		return nil, fmt.Errorf("migrations: %s: %w", dir, err)
	}
	matches, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("migrations: glob %s: %w", dir, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("migrations: %s has no *.up.sql files", dir)
	}
	return fsys, nil
}

// Register hands the migrations for dialect to register, usually a
// persistence client's RegisterSQLMigrations.
func Register(dialect string, register func(fs.FS)) error {
	if register == nil {
		return fmt.Errorf("migrations: register function is required")
	}
	fsys, err := ForDialect(dialect)
	if err != nil {
		return err
	}
	register(fsys)
	return nil
}
