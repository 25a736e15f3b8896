package db

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	mssql "github.com/microsoft/go-mssqldb"
	"modernc.org/sqlite"
)

// describe decorates driver errors with the engine's own error code and,
// where the driver reports them, the constraint detail and table. The
// original error stays in the chain for errors.As.
func describe(err error) error {
	if err == nil {
		return nil
	}
	var (
		pgErr     *pgconn.PgError
		pqErr     *pq.Error
		myErr     *mysql.MySQLError
		msErr     mssql.Error
		sqliteErr *sqlite.Error
	)
	switch {
	case errors.As(err, &pgErr):
		return withDetail(err, "postgres", pgErr.Code, pgErr.TableName, pgErr.Detail)
	case errors.As(err, &pqErr):
		return withDetail(err, "postgres", string(pqErr.Code), pqErr.Table, pqErr.Detail)
	case errors.As(err, &myErr):
		return withDetail(err, "mysql", fmt.Sprint(myErr.Number), "", "")
	case errors.As(err, &msErr):
		return withDetail(err, "mssql", fmt.Sprint(msErr.Number), msErr.ProcName, "")
	case errors.As(err, &sqliteErr):
		return withDetail(err, "sqlite", fmt.Sprint(sqliteErr.Code()), "", "")
	}
	return err
}

func withDetail(err error, engine, code, table, detail string) error {
	msg := engine + " error " + code
	if table != "" {
		msg += " on " + table
	}
	if detail != "" {
		msg += " (" + detail + ")"
	}
	return fmt.Errorf("%s: %w", msg, err)
}
