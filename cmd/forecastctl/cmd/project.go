package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"forecast/internal/aggregate"
	"forecast/internal/core"
	"forecast/internal/log"
)

func newProjectCmd(a *app) *cobra.Command {
	var (
		win  windowFlags
		kind string
		id   int64
		asOf string
	)
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Recalculate projections inline",
		Long: `Recalculate the ledger for one obligation (--kind and --id) or for every
active obligation. Recorded payments are kept.

Example:
  forecastctl project --start 2025-01 --end 2025-12
  forecastctl project --kind loan --id 3 --year 2025`,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := win.window(a.now())
			if err != nil {
				return err
			}
			month, err := parseAsOf(asOf, a.now())
			if err != nil {
				return err
			}
			if (kind == "") != (id == 0) {
				return fmt.Errorf("--kind and --id must be given together")
			}

			ctx := cmd.Context()
			b, err := a.openBackend(ctx, "")
			if err != nil {
				return err
			}
			defer closeBackend(b)

			if kind != "" {
				k, err := core.ParseKind(kind)
				if err != nil {
					return err
				}
				res, err := b.Projections.Recalculate(ctx, k, id, w, month)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"kind":          res.Kind,
					"obligation_id": res.ObligationID,
					"window":        res.Window,
					"inserted":      res.Inserted,
					"updated":       res.Updated,
					"unchanged":     res.Unchanged,
					"deleted":       res.Deleted,
				})
			}

			report, err := b.Projections.RecalculateAll(ctx, w, month)
			if err != nil {
				return err
			}
			failed := make([]string, 0, len(report.Failed))
			for _, f := range report.Failed {
				failed = append(failed, fmt.Sprintf("%s %d: %v", f.Kind, f.ObligationID, f.Err))
				a.logger.Warn("Obligation failed to project",
					log.FieldProjectionType, f.Kind,
					log.FieldObligationID, f.ObligationID,
					log.FieldError, f.Err)
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"run_id":    report.RunID.String(),
				"window":    report.Window,
				"succeeded": report.Succeeded,
				"inserted":  report.Inserted,
				"updated":   report.Updated,
				"deleted":   report.Deleted,
				"failed":    failed,
			})
		},
	}
	win.register(cmd)
	cmd.Flags().StringVar(&kind, "kind", "", "obligation kind")
	cmd.Flags().Int64Var(&id, "id", 0, "obligation id")
	cmd.Flags().StringVar(&asOf, "as-of", "", "month treated as current, YYYY-MM (default: this month)")
	return cmd
}

func newSummaryCmd(a *app) *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the annual ledger summary by category",
		RunE: func(cmd *cobra.Command, args []string) error {
			if year == 0 {
				year = a.now().Year()
			}
			ctx := cmd.Context()
			b, err := a.openBackend(ctx, "")
			if err != nil {
				return err
			}
			defer closeBackend(b)

			entries, err := b.Projections.Ledger(ctx, core.YearWindow(year))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), aggregate.AnnualSummary(entries, year))
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "calendar year (default: current year)")
	return cmd
}
