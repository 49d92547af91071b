package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memohai/doubtsolver/internal/db"
)

func newMigrateCommand(path *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres allow-list schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := loadConfig(*path)
				if err != nil {
					return err
				}
				if cfg.Storage.Driver != "postgres" {
					fmt.Fprintf(cmd.OutOrStdout(), "storage driver %q has no schema to migrate\n", cfg.Storage.Driver)
					return nil
				}
				if err := db.Migrate(cfg.Storage.Postgres); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back every migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := loadConfig(*path)
				if err != nil {
					return err
				}
				if cfg.Storage.Driver != "postgres" {
					fmt.Fprintf(cmd.OutOrStdout(), "storage driver %q has no schema to migrate\n", cfg.Storage.Driver)
					return nil
				}
				if err := db.MigrateDown(cfg.Storage.Postgres); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
				return nil
			},
		},
	)
	return cmd
}
