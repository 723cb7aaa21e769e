package migrations

import (
	"embed"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
)

//go:embed sqlite/*.sql postgres/*.sql
var migrationsFS embed.FS

// Run performs all migrations for the dialect of the connection.
func Run(dbx *sqlx.DB) error {
	var (
		dir      string
		dbName   string
		instance database.Driver
		err      error
	)
	switch dbx.DriverName() {
	case "pgx":
		dir, dbName = "postgres", "pgx5"
		instance, err = pgxmigrate.WithInstance(dbx.DB, &pgxmigrate.Config{})
	default:
		dir, dbName = "sqlite", "sqlite"
		instance, err = sqlite.WithInstance(dbx.DB, &sqlite.Config{})
	}
	if err != nil {
		return fmt.Errorf("error creating %s instance for migration: %s", dbName, err)
	}

	d, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("error creating migrations source: %s", err)
	}
	migrator, err := migrate.NewWithInstance("iofs", d, dbName, instance)
	if err != nil {
		return fmt.Errorf("error creating migrator: %s", err)
	}
	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("error migrating: %s", err)
	}
	slog.Info("migrated", "dialect", dir)

	return nil
}
