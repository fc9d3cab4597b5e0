// Package migrations embeds SQL migration files. A file named
// NNN_name.up.sql runs on every database; NNN_name.<dialect>.up.sql runs
// only on that dialect (postgres or sqlite).
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"admissions/internal/platform/database"
)

//go:embed *.sql
var FS embed.FS

var dialects = map[string]string{
	database.DriverPostgres: "postgres",
	database.DriverSQLite:   "sqlite",
}

// Up executes the *.up.sql files that apply to driver in lexical order.
// Statements are idempotent so Up is safe to run on every start.
func Up(ctx context.Context, db *sql.DB, driver string) error {
	files, err := Files(driver)
	if err != nil {
		return err
	}
	for _, file := range files {
		content, err := fs.ReadFile(FS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("execute migration %s: %w", file, err)
		}
	}
	return nil
}

// Files lists the up migrations for driver in the order Up applies them.
func Files(driver string) ([]string, error) {
	dialect, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("no migrations for driver %q", driver)
	}
	entries, err := fs.ReadDir(FS, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		name, found := strings.CutSuffix(e.Name(), ".up.sql")
		if e.IsDir() || !found {
			continue
		}
		if i := strings.LastIndexByte(name, '.'); i >= 0 && name[i+1:] != dialect {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, nil
}
