package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	pgmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/rxcheck-identity/db"
)

// NewMigrator opens a migrate instance over database/sql with the pgx
// driver. An empty dir uses the migrations embedded in the binary.
func NewMigrator(dsn, dir string) (*migrate.Migrate, func(), error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() { _ = conn.Close() }

	driver, err := pgmigrate.WithInstance(conn, &pgmigrate.Config{})
	if err != nil {
		closeDB()
		return nil, nil, err
	}

	var m *migrate.Migrate
	if dir != "" {
		m, err = migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", dir), "postgres", driver)
	} else {
		src, srcErr := iofs.New(db.Migrations, "migrations")
		if srcErr != nil {
			closeDB()
			return nil, nil, srcErr
		}
		m, err = migrate.NewWithInstance("iofs", src, "postgres", driver)
	}
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	return m, closeDB, nil
}

// RunMigrations applies every pending up migration.
func RunMigrations(dsn, dir string, logger *logrus.Logger) error {
	m, closeDB, err := NewMigrator(dsn, dir)
	if err != nil {
		return err
	}
	defer closeDB()

	logger.Info("running migrations...")
	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("no migrations to run")
		return nil
	}
	return err
}
