package database

import (
	"database/sql"
	"embed"
	"io/fs"

	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationsDir is the directory of the migrations within MigrationsFS.
const MigrationsDir = "migrations"

// MigrationsFS returns the embedded SQL migrations.
func MigrationsFS() fs.FS { return migrationsFS }

// SetUpMigrations points goose at the embedded migrations with the dialect matching driverName.
func SetUpMigrations(driverName string) error {
	goose.SetBaseFS(migrationsFS)
	dialect := "postgres"
	if driverName == DriverSQLite {
		dialect = "sqlite3"
	}
	return errors.Wrap(goose.SetDialect(dialect), "setting goose dialect")
}

// RunMigrations runs a goose command (up, down, status, ...) against the embedded migrations.
func RunMigrations(command string, db *sql.DB, driverName string, args ...string) error {
	if err := SetUpMigrations(driverName); err != nil {
		return err
	}
	return goose.Run(command, db, MigrationsDir, args...)
}
