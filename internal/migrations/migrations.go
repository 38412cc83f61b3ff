// AngelaMos | 2026
// migrations.go

// Package migrations applies the embedded schema with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var FS embed.FS

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

func setup(dialect string) error {
	goose.SetBaseFS(FS)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

// Up runs every pending migration against db.
func Up(ctx context.Context, db *sql.DB, dialect string) error {
	if err := setup(dialect); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Down rolls back the most recent migration.
func Down(ctx context.Context, db *sql.DB, dialect string) error {
	if err := setup(dialect); err != nil {
		return err
	}

	if err := goose.DownContext(ctx, db, "."); err != nil {
		return fmt.Errorf("roll back migration: %w", err)
	}

	return nil
}

func Version(ctx context.Context, db *sql.DB, dialect string) (int64, error) {
	if err := setup(dialect); err != nil {
		return 0, err
	}

	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("get schema version: %w", err)
	}

	return version, nil
}
