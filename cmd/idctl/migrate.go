package main

import (
	"errors"

	"github.com/golang-migrate/migrate/v4"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/oksasatya/rxcheck-identity/config"
	pginfra "github.com/oksasatya/rxcheck-identity/internal/infrastructure/postgres"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:       "migrate up|down",
		Short:     "Run PostgreSQL migrations",
		Long:      `Apply or roll back migrations against the database named by the DB_* settings.`,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := config.Load()
			m, closeDB, err := pginfra.NewMigrator(conf.PostgresDSN(), conf.MigrationsDir)
			if err != nil {
				return oops.Code("DB_CONNECT_FAILED").With("operation", "open migrator").Wrap(err)
			}
			defer closeDB()
			return runMigrate(cmd, m, args[0], steps)
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 0, "number of migrations to apply or roll back; 0 means all")
	return cmd
}

type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
}

func runMigrate(cmd *cobra.Command, m migrator, direction string, steps int) error {
	var err error
	switch {
	case steps > 0 && direction == "down":
		err = m.Steps(-steps)
	case steps > 0:
		err = m.Steps(steps)
	case direction == "down":
		err = m.Down()
	default:
		err = m.Up()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		cmd.Println("No migrations to run")
		return nil
	}
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("direction", direction).Wrap(err)
	}
	cmd.Println("Migrations completed successfully")
	return nil
}
