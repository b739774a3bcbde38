package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"forecast/internal/storage"
)

func newBudgetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Freeze or print budget lines",
	}

	var snapWin windowFlags
	snapshot := &cobra.Command{
		Use:   "snapshot <budget-id>",
		Short: "Copy the ledger window into a budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBudgetID(args[0])
			if err != nil {
				return err
			}
			w, err := snapWin.window(a.now())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			b, err := a.openBackend(ctx, "")
			if err != nil {
				return err
			}
			defer closeBackend(b)

			lines, err := b.Budgets.Snapshot(ctx, id, w)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), budgetRows(lines))
		},
	}
	snapWin.register(snapshot)

	var showWin windowFlags
	show := &cobra.Command{
		Use:   "show <budget-id>",
		Short: "Print the lines of a budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBudgetID(args[0])
			if err != nil {
				return err
			}
			w, err := showWin.window(a.now())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			b, err := a.openBackend(ctx, "")
			if err != nil {
				return err
			}
			defer closeBackend(b)

			lines, err := b.Budgets.Lines(ctx, id, w)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), budgetRows(lines))
		},
	}
	showWin.register(show)

	cmd.AddCommand(snapshot, show)
	return cmd
}

func parseBudgetID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid budget id %q: must be a positive integer", s)
	}
	return id, nil
}

func budgetRows(lines []storage.BudgetEntry) []map[string]any {
	out := make([]map[string]any, 0, len(lines))
	for _, l := range lines {
		out = append(out, map[string]any{
			"account_path": l.AccountPath,
			"month":        l.Month,
			"amount":       l.Amount,
		})
	}
	return out
}
