// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package pg opens the catalog's Postgres connection pool and applies
// the goose migrations under /migrations.
package pg

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"github.com/kraklabs/bdp-ingest/migrations"
)

// Options configures Open.
type Options struct {
	DSN      string
	MaxConns int32
	MinConns int32
}

// Open connects to Postgres through pgx's database/sql driver and
// wraps the result in *sqlx.DB, so repositories built against
// database/sql-style scanning work unmodified whether the underlying
// *sql.DB is a real connection or a DATA-DOG/go-sqlmock fake in tests.
func Open(ctx context.Context, opts Options) (*sqlx.DB, error) {
	rawDB, err := sql.Open("pgx", opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if opts.MaxConns > 0 {
		rawDB.SetMaxOpenConns(int(opts.MaxConns))
	}
	if opts.MinConns > 0 {
		rawDB.SetMaxIdleConns(int(opts.MinConns))
	}
	if err := rawDB.PingContext(ctx); err != nil {
		rawDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return sqlx.NewDb(rawDB, "pgx"), nil
}

// Migrate applies every pending goose migration to db. When
// migrationsPath is non-empty it is read from disk instead of the
// binary's embedded set, primarily so operators can point at a
// checked-out copy of /migrations during development.
func Migrate(db *sqlx.DB, migrationsPath string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	dir := "."
	if migrationsPath != "" {
		goose.SetBaseFS(nil)
		dir = migrationsPath
	} else {
		goose.SetBaseFS(migrations.FS)
	}
	defer goose.SetBaseFS(nil)

	if err := goose.Up(db.DB, dir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
