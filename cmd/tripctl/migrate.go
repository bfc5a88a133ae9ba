package main

import (
	"errors"
	"fmt"

	"github.com/cassiomorais/tripcheckout/internal/infrastructure/config"
	"github.com/cassiomorais/tripcheckout/internal/infrastructure/postgres"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	var dbURL string

	cmd := &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back the PostgreSQL schema",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbURL == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				dbURL = cfg.Database.DatabaseURL()
			}

			src, err := iofs.New(postgres.Migrations, "migrations")
			if err != nil {
				return fmt.Errorf("open embedded migrations: %w", err)
			}
			m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
			if err != nil {
				return fmt.Errorf("create migrate instance: %w", err)
			}
			defer m.Close()

			switch args[0] {
			case "up":
				err = m.Up()
			case "down":
				err = m.Down()
			default:
				return fmt.Errorf("unknown direction %q (use up or down)", args[0])
			}
			if errors.Is(err, migrate.ErrNoChange) {
				fmt.Fprintln(cmd.OutOrStdout(), "No migrations to apply")
				return nil
			}
			if err != nil {
				return fmt.Errorf("migration %s failed: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrations %s applied successfully\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&dbURL, "db", "", "database URL (defaults to the configured database)")
	return cmd
}
