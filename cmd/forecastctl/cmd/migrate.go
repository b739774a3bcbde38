package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"forecast/internal/storage"
)

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	open := func() (*storage.Migrator, error) {
		if err := os.MkdirAll(filepath.Dir(a.cfg.SQLiteDBPath), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
		return storage.NewMigrator(a.cfg.SQLiteDBPath)
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			mg, err := open()
			if err != nil {
				return err
			}
			defer mg.Close()
			if err := mg.Up(); err != nil {
				return err
			}
			return printVersion(cmd, mg)
		},
	}

	down := &cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back migrations (default: one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid steps %q: %w", args[0], err)
				}
				steps = n
			}
			mg, err := open()
			if err != nil {
				return err
			}
			defer mg.Close()
			if err := mg.Down(steps); err != nil {
				return err
			}
			return printVersion(cmd, mg)
		},
	}

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			mg, err := open()
			if err != nil {
				return err
			}
			defer mg.Close()
			return printVersion(cmd, mg)
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}

func printVersion(cmd *cobra.Command, mg *storage.Migrator) error {
	v, dirty, err := mg.Version()
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), map[string]any{"version": v, "dirty": dirty})
}
