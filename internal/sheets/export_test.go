package sheets_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forecast/internal/core"
	"forecast/internal/sheets"
	"forecast/internal/sheets/memory"
	"forecast/internal/statements"
)

var mar = core.NewMonth(2025, time.March)

func TestStatementRows(t *testing.T) {
	stmt := statements.WorkingCapital(mar, statements.WCInputs{
		AccountsReceivable: core.Cents(70000),
		AccountsPayable:    core.Cents(20000),
	})
	at := time.Date(2025, time.April, 1, 8, 0, 0, 0, time.UTC)

	rows, err := sheets.StatementRows(statements.KindWorkingCapital, mar, stmt, at)
	require.NoError(t, err)
	require.Len(t, rows, 8)

	assert.Equal(t, []any{"2025-03", "working-capital", "accounts_payable", "200.00", "2025-04-01T08:00:00Z"}, rows[0])
	last := rows[len(rows)-1]
	assert.Equal(t, "working_capital_need", last[2])
	assert.Equal(t, "500.00", last[3])
}

func TestExporterWritesHeaderOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	exp := sheets.NewExporter(store, "")

	stmt := statements.FinancialPlan(mar, statements.FPInputs{Equity: core.Cents(1000)})
	require.NoError(t, exp.ExportStatement(ctx, statements.KindFinancialPlan, mar, stmt))
	require.NoError(t, exp.ExportStatement(ctx, statements.KindFinancialPlan, mar, stmt))

	assert.Equal(t, []string{"2025 Statements"}, store.Sheets())
	rows, err := store.ReadRows(ctx, "2025 Statements")
	require.NoError(t, err)
	assert.Equal(t, sheets.Header, rows[0])
	assert.Len(t, rows, 1+2*10)
}

func TestExporterLinesKeepLatest(t *testing.T) {
	ctx := context.Background()
	exp := sheets.NewExporter(memory.New(), "Statements")

	first := statements.FinancialPlan(mar, statements.FPInputs{Equity: core.Cents(1000)})
	second := statements.FinancialPlan(mar, statements.FPInputs{Equity: core.Cents(2500)})
	require.NoError(t, exp.ExportStatement(ctx, statements.KindFinancialPlan, mar, first))
	require.NoError(t, exp.ExportStatement(ctx, statements.KindFinancialPlan, mar, second))

	lines, err := exp.Lines(ctx, 2025)
	require.NoError(t, err)
	require.Len(t, lines, 10)
	for _, l := range lines {
		if l.Field == "equity" {
			assert.Equal(t, core.Cents(2500), l.Amount)
		}
	}
}

func TestSheetName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Statements", 2025, "2025 Statements"},
		{"2024 Statements", 2025, "2024 Statements"},
		{"  ", 2025, ""},
	}
	for _, tt := range tests {
		if got := sheets.SheetName(tt.base, tt.year); got != tt.want {
			t.Errorf("SheetName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
}
