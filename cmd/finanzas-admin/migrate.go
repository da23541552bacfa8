package main

import (
	"fmt"

	"finanzas/internal/storage"

	"github.com/spf13/cobra"
)

func (a *app) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(a.migrateUpCmd())
	cmd.AddCommand(a.migrateDownCmd())
	cmd.AddCommand(a.migrateVersionCmd())
	return cmd
}

func (a *app) migrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := storage.RunMigrations(storage.Driver(a.cfg.DBDriver), a.cfg.DSN()); err != nil {
				return err
			}
			return a.printVersion(cmd)
		},
	}
}

func (a *app) migrateDownCmd() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Revert the most recent migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := storage.RollbackMigrations(storage.Driver(a.cfg.DBDriver), a.cfg.DSN(), steps); err != nil {
				return err
			}
			a.logger.WarnContext(cmd.Context(), "Migrations rolled back", "steps", steps)
			return a.printVersion(cmd)
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to revert")
	return cmd
}

func (a *app) migrateVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.printVersion(cmd)
		},
	}
}

func (a *app) printVersion(cmd *cobra.Command) error {
	version, dirty, err := storage.MigrationVersion(storage.Driver(a.cfg.DBDriver), a.cfg.DSN())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	switch {
	case version == 0:
		fmt.Fprintln(out, "schema version: none")
	case dirty:
		fmt.Fprintf(out, "schema version: %d (dirty)\n", version)
	default:
		fmt.Fprintf(out, "schema version: %d\n", version)
	}
	return nil
}
