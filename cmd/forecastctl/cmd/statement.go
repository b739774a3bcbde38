package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"forecast/internal/backend"
	"forecast/internal/core"
	"forecast/internal/services"
	"forecast/internal/statements"
)

func newStatementCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "statement",
		Short: "Calculate or read financial statements",
	}
	cmd.AddCommand(newStatementCalcCmd(a), newStatementGetCmd(a))
	return cmd
}

type statementFlags struct {
	win        windowFlags
	month      string
	inputs     string
	inflows    string
	opening    string
	fromLedger bool
	showExport bool
}

func newStatementCalcCmd(a *app) *cobra.Command {
	var f statementFlags
	cmd := &cobra.Command{
		Use:   "calc <kind>",
		Short: "Calculate and store a statement",
		Long: `Calculate a statement and store it. Kinds: profit-loss, balance-sheet,
working-capital, financial-plan, cash-flow.

Single-month kinds read their inputs from a JSON file (--inputs, "-" for
stdin). profit-loss --from-ledger derives costs from the ledger over a
window. cash-flow chains months over a window from --opening.

--show-export mirrors the result to an in-memory sheet and prints the
rows that would be appended to the spreadsheet.

Example:
  forecastctl statement calc balance-sheet --month 2025-03 --inputs bs.json
  forecastctl statement calc cash-flow --year 2025 --opening 1000.00 --inflows in.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := statements.ParseKind(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			export := backend.ExportType("")
			if f.showExport {
				export = backend.ExportMemory
			}
			b, err := a.openBackend(ctx, export)
			if err != nil {
				return err
			}
			defer closeBackend(b)

			out, years, err := a.calculate(ctx, cmd.InOrStdin(), b.Statements, kind, f)
			if err != nil {
				return err
			}
			if !f.showExport {
				return writeJSON(cmd.OutOrStdout(), out)
			}

			var rows []map[string]any
			for _, y := range years {
				lines, err := b.Exporter.Lines(ctx, y)
				if err != nil {
					return err
				}
				for _, l := range lines {
					rows = append(rows, map[string]any{
						"month":     l.Month,
						"statement": l.Statement,
						"field":     l.Field,
						"amount":    l.Amount,
					})
				}
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{"statement": out, "export": rows})
		},
	}
	f.win.register(cmd)
	cmd.Flags().StringVar(&f.month, "month", "", "statement month, YYYY-MM")
	cmd.Flags().StringVar(&f.inputs, "inputs", "", `JSON inputs file, "-" for stdin`)
	cmd.Flags().StringVar(&f.inflows, "inflows", "", `JSON {"YYYY-MM": amount} file for cash-flow or revenue for --from-ledger`)
	cmd.Flags().StringVar(&f.opening, "opening", "0", "opening cash balance for cash-flow")
	cmd.Flags().BoolVar(&f.fromLedger, "from-ledger", false, "derive profit-loss from the ledger")
	cmd.Flags().BoolVar(&f.showExport, "show-export", false, "print the spreadsheet rows the statement exports to")
	return cmd
}

// calculate runs one statement and reports the years it touched.
func (a *app) calculate(ctx context.Context, stdin io.Reader, svc *services.StatementService, kind statements.Kind, f statementFlags) (any, []int, error) {
	if kind == statements.KindCashFlow || (kind == statements.KindProfitAndLoss && f.fromLedger) {
		w, err := f.win.window(a.now())
		if err != nil {
			return nil, nil, err
		}
		amounts, err := readMonthlyAmounts(stdin, f.inflows)
		if err != nil {
			return nil, nil, err
		}
		years := yearsOf(w)
		if kind == statements.KindProfitAndLoss {
			out, err := svc.ProfitAndLossFromLedger(ctx, w, amounts)
			return out, years, err
		}
		opening, err := core.ParseSignedMoney(f.opening)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid --opening: %w", err)
		}
		out, err := svc.CalculateCashFlow(ctx, w, opening, amounts)
		return out, years, err
	}

	m, err := core.ParseMonth(f.month)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid --month: %w", err)
	}
	years := []int{m.Year}

	switch kind {
	case statements.KindProfitAndLoss:
		var in statements.PLInputs
		if err := readInputs(stdin, f.inputs, &in); err != nil {
			return nil, nil, err
		}
		out, err := svc.CalculateProfitAndLoss(ctx, m, in)
		return out, years, err
	case statements.KindBalanceSheet:
		var in statements.BSInputs
		if err := readInputs(stdin, f.inputs, &in); err != nil {
			return nil, nil, err
		}
		out, err := svc.CalculateBalanceSheet(ctx, m, in)
		return out, years, err
	case statements.KindWorkingCapital:
		var in statements.WCInputs
		if err := readInputs(stdin, f.inputs, &in); err != nil {
			return nil, nil, err
		}
		out, err := svc.CalculateWorkingCapital(ctx, m, in)
		return out, years, err
	case statements.KindFinancialPlan:
		var in statements.FPInputs
		if err := readInputs(stdin, f.inputs, &in); err != nil {
			return nil, nil, err
		}
		out, err := svc.CalculateFinancialPlan(ctx, m, in)
		return out, years, err
	}
	return nil, nil, statements.ErrUnknownKind
}

func newStatementGetCmd(a *app) *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "get <kind>",
		Short: "Print a stored statement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := statements.ParseKind(args[0])
			if err != nil {
				return err
			}
			m, err := core.ParseMonth(month)
			if err != nil {
				return fmt.Errorf("invalid --month: %w", err)
			}
			ctx := cmd.Context()
			b, err := a.openBackend(ctx, "")
			if err != nil {
				return err
			}
			defer closeBackend(b)

			stmt, err := b.Statements.Get(ctx, kind, m)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), stmt)
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "statement month, YYYY-MM")
	_ = cmd.MarkFlagRequired("month")
	return cmd
}

func openInput(stdin io.Reader, path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(stdin), nil
	}
	return os.Open(path)
}

// readInputs strictly decodes a JSON inputs file. No file means zero
// inputs.
func readInputs(stdin io.Reader, path string, dst any) error {
	if path == "" {
		return nil
	}
	r, err := openInput(stdin, path)
	if err != nil {
		return err
	}
	defer r.Close()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return core.NewValidationError("inputs", err)
	}
	return nil
}

func readMonthlyAmounts(stdin io.Reader, path string) (map[core.Month]core.Money, error) {
	raw := map[string]core.Money{}
	if err := readInputs(stdin, path, &raw); err != nil {
		return nil, err
	}
	out := make(map[core.Month]core.Money, len(raw))
	for k, v := range raw {
		m, err := core.ParseMonth(k)
		if err != nil {
			return nil, core.NewValidationError("inflows", err)
		}
		out[m] = v
	}
	return out, nil
}

func yearsOf(w core.Window) []int {
	var years []int
	for y := w.Start.Year; y <= w.End.Year; y++ {
		years = append(years, y)
	}
	return years
}
