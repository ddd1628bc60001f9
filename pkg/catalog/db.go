// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kraklabs/bdp-ingest/internal/ingesterr"
)

// DB is the shared handle every repository in this package is
// constructed over. Production code builds it from a pgx-backed
// *sqlx.DB (see internal/pg); tests build it from a DATA-DOG/go-sqlmock
// *sql.DB wrapped with sqlx.NewDb.
type DB struct {
	*sqlx.DB
}

// NewDB wraps an already-opened *sqlx.DB.
func NewDB(db *sqlx.DB) *DB {
	return &DB{DB: db}
}

// newID generates a new catalog-wide row identifier. Every table in
// this package uses a client-generated UUIDv4 primary key rather than
// a database sequence, so repositories can return the new ID to the
// caller without a RETURNING round trip in the common case.
func newID() string {
	return uuid.NewString()
}

// translate maps a raw database/sql error into the package's error
// kinds. sql.ErrNoRows becomes ingesterr.NotFound; everything else is
// wrapped as a transport-layer failure, since at this layer we cannot
// distinguish a transient connection issue from a query bug.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ingesterr.NotFoundf("%s not found", what)
	}
	return ingesterr.Transportf(err, "catalog: %s", what)
}

// withTx runs fn inside a transaction, committing on success and
// rolling back on any error or panic.
func withTx(ctx context.Context, db *DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
