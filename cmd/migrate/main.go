package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/gofiber/fiber/v2/log"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/env"
)

func main() {
	var source string

	rootCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the recovery ledger database schema",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			env.SetupEnvFile()
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&source, "source", "file://migrations", "migration source URL")

	rootCmd.AddCommand(upCmd(&source))
	rootCmd.AddCommand(downCmd(&source))
	rootCmd.AddCommand(gotoCmd(&source))
	rootCmd.AddCommand(statusCmd(&source))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// databaseURL builds the golang-migrate MySQL URL from the DB_* variables.
func databaseURL() string {
	return fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true",
		env.GetEnv("DB_USER", "recovery"),
		env.GetEnv("DB_PASSWORD", "recovery"),
		env.GetEnv("DB_HOST", "db"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", "recovery_ledger"),
	)
}

func withMigrate(source string, fn func(m *migrate.Migrate) error) error {
	log.Infof("Connecting to database: %s@%s:%s/%s",
		env.GetEnv("DB_USER", "recovery"),
		env.GetEnv("DB_HOST", "db"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", "recovery_ledger"),
	)

	m, err := migrate.New(source, databaseURL())
	if err != nil {
		return fmt.Errorf("initialize migrations: %w", err)
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Warnf("Closing migration resources failed: %v, %v", sourceErr, dbErr)
		}
	}()
	return fn(m)
}

func upCmd(source *string) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrate(*source, func(m *migrate.Migrate) error {
				err := m.Up()
				if errors.Is(err, migrate.ErrNoChange) {
					log.Info("No changes: database is up to date")
					return nil
				}
				if err != nil {
					return fmt.Errorf("apply migrations: %w", err)
				}
				log.Info("Migrations applied")
				return nil
			})
		},
	}
}

func downCmd(source *string) *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrate(*source, func(m *migrate.Migrate) error {
				if err := m.Steps(-1); err != nil {
					return fmt.Errorf("roll back migration: %w", err)
				}
				log.Info("Rolled back the most recent migration")
				return nil
			})
		},
	}
}

func gotoCmd(source *string) *cobra.Command {
	return &cobra.Command{
		Use:   "goto N",
		Short: "Migrate up or down to version N",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			return withMigrate(*source, func(m *migrate.Migrate) error {
				err := m.Migrate(uint(version))
				if errors.Is(err, migrate.ErrNoChange) {
					log.Infof("No changes: database is already at version %d", version)
					return nil
				}
				if err != nil {
					return fmt.Errorf("migrate to version %d: %w", version, err)
				}
				log.Infof("Migrated to version %d", version)
				return nil
			})
		},
	}
}

func statusCmd(source *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current migration version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrate(*source, func(m *migrate.Migrate) error {
				version, dirty, err := m.Version()
				if errors.Is(err, migrate.ErrNilVersion) {
					log.Info("No migrations have been applied yet")
					return nil
				}
				if err != nil {
					return fmt.Errorf("read migration version: %w", err)
				}
				suffix := ""
				if dirty {
					suffix = " (dirty)"
				}
				log.Infof("Current migration version: %d%s", version, suffix)
				return nil
			})
		},
	}
}
