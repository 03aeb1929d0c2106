package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// Migrations returns the schema files in the order they are applied.
func Migrations() ([]string, error) {
	entries, err := fs.ReadDir(migrationFiles, "sql")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Apply executes every schema file against db. The statements are written to
// be re-runnable, so Apply is safe on an already migrated database.
func Apply(ctx context.Context, db *sql.DB) error {
	names, err := Migrations()
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	for _, name := range names {
		body, err := migrationFiles.ReadFile("sql/" + name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", name, err)
		}
	}
	return nil
}
