package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

const memoryPath = ":memory:"

// Applied to every pooled connection of a file database. The web server
// saves boards and auth sessions from concurrent requests.
var filePragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"foreign_keys(1)",
}

// column is a column added after the first release of schema.sql.
type column struct {
	table string
	name  string
	ddl   string
}

var addedColumns = []column{
	{table: "boards", name: "version", ddl: "INTEGER NOT NULL DEFAULT 0"},
}

// Open opens the sqlite database at path, or an in-process one for ":memory:",
// and brings its schema up to date.
func Open(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("db path is required")
	}

	db, err := sql.Open("sqlite", dataSourceName(path))
	if err != nil {
		return nil, err
	}
	if path == memoryPath {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := migrate(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func dataSourceName(path string) string {
	if path == memoryPath {
		return path
	}
	params := make([]string, 0, len(filePragmas))
	for _, pragma := range filePragmas {
		params = append(params, "_pragma="+pragma)
	}
	return path + "?" + strings.Join(params, "&")
}

func migrate(ctx context.Context, db *sql.DB) error {
	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, string(schemaSQL)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	for _, col := range addedColumns {
		if err := addColumn(ctx, db, col); err != nil {
			return err
		}
	}
	return nil
}

func addColumn(ctx context.Context, db *sql.DB, col column) error {
	var exists int
	err := db.QueryRowContext(ctx, "SELECT 1 FROM pragma_table_info(?) WHERE name = ? LIMIT 1", col.table, col.name).Scan(&exists)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("check %s.%s column: %w", col.table, col.name, err)
	}

	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", col.table, col.name, col.ddl)
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("add %s.%s column: %w", col.table, col.name, err)
	}
	return nil
}
