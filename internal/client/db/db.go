// Package db opens the client's local SQLite database and applies migrations.
package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/mlaitechio/vagais-go/internal/client/migrations"
)

// Open opens (creating if necessary) the local database at dsn and brings the
// schema up to date.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	database, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open local database: %w", err)
	}

	if err := runMigrations(ctx, database); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("migrate local database: %w", err)
	}
	return database, nil
}

func runMigrations(ctx context.Context, database *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, database, ".")
}
