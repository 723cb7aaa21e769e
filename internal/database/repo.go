// Package database is the relational store behind indexwatch. It runs on
// SQLite locally and on Postgres when hosted; the dialect is picked from the
// driver the connection was opened with.
package database

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/jdholdren/indexwatch/internal/indexwatch"
)

// Ensure Repo implements the Repository interface
var _ indexwatch.Repository = (*Repo)(nil)

// Driver names as registered with database/sql.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

type Repo struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

func New(db *sqlx.DB) Repo {
	sb := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if db.DriverName() == DriverPostgres {
		sb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}

	return Repo{db: db, sb: sb}
}

// Open connects to the store. Driver is either "sqlite" or "postgres".
func Open(driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case "sqlite", "":
		dbx, err := sqlx.Open(DriverSQLite, sqliteDSN(dsn))
		if err != nil {
			return nil, fmt.Errorf("error opening sqlite database: %w", err)
		}
		// Writers serialize anyway, a single connection avoids SQLITE_BUSY.
		dbx.SetMaxOpenConns(1)
		return dbx, nil
	case "postgres":
		dbx, err := sqlx.Open(DriverPostgres, dsn)
		if err != nil {
			return nil, fmt.Errorf("error opening postgres database: %w", err)
		}
		return dbx, nil
	}

	return nil, fmt.Errorf("unknown database driver %q", driver)
}

// Appends the pragmas the app relies on unless the dsn already sets its own.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma") {
		return dsn
	}

	v := url.Values{}
	v.Add("_pragma", "busy_timeout(5000)")
	v.Add("_pragma", "journal_mode(WAL)")
	v.Set("_txlock", "immediate")

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + v.Encode()
}

// Ping checks the store is reachable.
func (r Repo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Reports if the error is a unique constraint violation in either dialect.
func isUniqueViolation(err error) bool {
	if sqliteErr := (&sqlite.Error{}); errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	return false
}
