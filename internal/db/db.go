// Package db provides the transaction adapters the loader runs on: a pgx
// adapter for Postgres and a database/sql adapter for every other engine,
// behind small DB and Tx interfaces so callers and tests can swap them.
package db

import (
	"context"
	"fmt"
)

// DB is a connection pool capable of starting transactions.
type DB interface {
	BeginTx(ctx context.Context) (Tx, error)
	Close(ctx context.Context) error
}

// Tx is one unit of work. The loader only ever calls Exec; the caller owns
// Commit and Rollback.
type Tx interface {
	Exec(ctx context.Context, sql string, args ...any) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Opener opens a DB for a dialect and DSN. cmd/loader takes one so tests can
// inject a fake.
type Opener func(ctx context.Context, d Dialect, dsn string) (DB, error)

// Open connects using the adapter matching d: pgx for "postgres", database/sql
// with d.DriverName otherwise.
func Open(ctx context.Context, d Dialect, dsn string) (DB, error) {
	if d.DriverName == "" {
		return NewPgDB(ctx, dsn)
	}
	conn, err := NewSQLDB(ctx, d.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.Name, err)
	}
	return conn, nil
}
