// Package cmd provides CLI commands for forecastctl.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"forecast/internal/backend"
	"forecast/internal/cli"
	"forecast/internal/config"
	"forecast/internal/core"
	"forecast/internal/log"
)

// app carries what every subcommand shares.
type app struct {
	dbPath   string
	logLevel string

	cfg    *config.Config
	logger *log.Logger
	now    func() time.Time
}

// NewRootCmd builds the command tree. Each call returns an independent
// tree so tests can run commands side by side.
func NewRootCmd() *cobra.Command {
	a := &app{now: time.Now}

	root := &cobra.Command{
		Use:   "forecastctl",
		Short: "Operate the obligation ledger from the command line",
		Long: `forecastctl recalculates projections, computes financial statements,
freezes budgets and manages the database schema without going through
the HTTP API. Recalculations always run inline.

Example:
  forecastctl migrate up
  forecastctl project --year 2025
  forecastctl statement profit-loss --month 2025-03 --inputs pl.json --show-export`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite database path (default SQLITE_DB_PATH)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (default LOG_LEVEL)")

	root.AddCommand(
		newProjectCmd(a),
		newSummaryCmd(a),
		newStatementCmd(a),
		newBudgetCmd(a),
		newMigrateCmd(a),
	)
	return root
}

// Execute runs the root command with the process arguments.
func Execute() error {
	return NewRootCmd().Execute()
}

func (a *app) setup(cmd *cobra.Command) error {
	cli.LoadEnvFile()
	a.cfg = config.Load()
	if a.dbPath != "" {
		a.cfg.SQLiteDBPath = a.dbPath
	}
	if a.logLevel != "" {
		a.cfg.LogLevel = a.logLevel
	}

	lvl, err := log.ParseLevel(a.cfg.LogLevel)
	if err != nil {
		return err
	}
	// Logs go to stderr so stdout stays parseable.
	a.logger = log.New(log.Config{
		Component: log.ComponentApp,
		Handler:   slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lvl}),
	})
	log.SetDefault(a.logger)
	return nil
}

// openBackend builds services without AMQP: the CLI never queues work.
func (a *app) openBackend(ctx context.Context, export backend.ExportType) (*backend.Backend, error) {
	bc, err := backend.FromAppConfig(a.cfg)
	if err != nil {
		return nil, err
	}
	bc.AMQPURL = ""
	bc.MetricsEnabled = false
	if export != "" {
		bc.Export = export
	}
	return backend.NewFactory(a.logger.Logger).CreateBackend(ctx, bc)
}

func closeBackend(b *backend.Backend) {
	if err := b.Cleanup(); err != nil {
		slog.Error("Cleanup failed", log.FieldError, err)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// windowFlags selects a window by --year or by --start and --end.
type windowFlags struct {
	year       int
	start, end string
}

func (f *windowFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.year, "year", 0, "calendar year (default: current year)")
	cmd.Flags().StringVar(&f.start, "start", "", "first month, YYYY-MM")
	cmd.Flags().StringVar(&f.end, "end", "", "last month, YYYY-MM")
	cmd.MarkFlagsRequiredTogether("start", "end")
	cmd.MarkFlagsMutuallyExclusive("year", "start")
}

func (f *windowFlags) window(now time.Time) (core.Window, error) {
	switch {
	case f.year != 0:
		w := core.YearWindow(f.year)
		return w, w.Validate()
	case f.start != "" || f.end != "":
		return core.ParseWindow(f.start, f.end)
	}
	return core.YearWindow(now.Year()), nil
}

func parseAsOf(s string, now time.Time) (core.Month, error) {
	if s == "" {
		return core.MonthOf(now), nil
	}
	m, err := core.ParseMonth(s)
	if err != nil {
		return core.Month{}, fmt.Errorf("invalid --as-of: %w", err)
	}
	return m, nil
}
