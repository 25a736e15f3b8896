package db

import (
	"context"
	"database/sql"

	// Drivers selected by Dialect.DriverName. lib/pq is imported by dialect.go.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"
)

// sqlTxCore is the subset of *sql.Tx the adapter uses.
type sqlTxCore interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Commit() error
	Rollback() error
}

// sqlDBCore is the subset of *sql.DB the adapter uses. BeginTx returns the
// narrow seam so tests never need a real *sql.Tx.
type sqlDBCore interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (sqlTxCore, error)
	Close() error
}

type realSQLDB struct{ db *sql.DB }

func (r realSQLDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (sqlTxCore, error) {
	tx, err := r.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return tx, nil
}
func (r realSQLDB) Close() error { return r.db.Close() }

type sqlDB struct{ db sqlDBCore }

// NewSQLDB opens a database/sql pool for driver and pings it.
func NewSQLDB(ctx context.Context, driver, dsn string) (DB, error) {
	d, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	d.SetMaxOpenConns(1)
	if err := d.PingContext(ctx); err != nil {
		_ = d.Close()
		return nil, describe(err)
	}
	return &sqlDB{db: realSQLDB{db: d}}, nil
}

func (s *sqlDB) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, describe(err)
	}
	return &sqlTx{tx: tx}, nil
}

func (s *sqlDB) Close(ctx context.Context) error { return s.db.Close() }

type sqlTx struct{ tx sqlTxCore }

func (t *sqlTx) Exec(ctx context.Context, q string, args ...any) error {
	_, err := t.tx.ExecContext(ctx, q, args...)
	return describe(err)
}

func (t *sqlTx) Commit(ctx context.Context) error   { return describe(t.tx.Commit()) }
func (t *sqlTx) Rollback(ctx context.Context) error { return describe(t.tx.Rollback()) }

// WrapSQLTx adapts an already-open *sql.Tx. Used by callers that manage the
// *sql.DB themselves, e.g. tests against a SQLite file.
func WrapSQLTx(tx *sql.Tx) Tx { return &sqlTx{tx: tx} }
