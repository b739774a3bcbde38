package services

import (
	"context"

	"forecast/internal/core"
	"forecast/internal/statements"
	"forecast/internal/storage"
)

// ObligationStore reads the obligations that feed the ledger.
type ObligationStore interface {
	GetObligation(ctx context.Context, kind core.ObligationKind, id int64) (core.RecurringObligation, error)
	ListObligations(ctx context.Context, kind core.ObligationKind, activeOnly bool) ([]core.RecurringObligation, error)
	GetPersonnel(ctx context.Context, id int64) (core.Personnel, error)
	ListPersonnel(ctx context.Context, activeOnly bool) ([]core.Personnel, error)
	GetLoan(ctx context.Context, id int64) (core.Loan, error)
	ListLoans(ctx context.Context) ([]core.Loan, error)
	GetInvestment(ctx context.Context, id int64) (core.Investment, error)
	ListInvestments(ctx context.Context) ([]core.Investment, error)
}

// LedgerReader reads projected ledger rows.
type LedgerReader interface {
	ListProjections(ctx context.Context, kind core.ObligationKind, id int64, w core.Window) ([]core.ProjectionEntry, error)
	ListAllProjections(ctx context.Context, w core.Window) ([]core.ProjectionEntry, error)
}

// LedgerStore persists projections. Every write set is atomic.
type LedgerStore interface {
	LedgerReader
	WriteProjections(ctx context.Context, w storage.ProjectionWrite) error
	MarkPaid(ctx context.Context, key core.EntryKey, a core.Actuals) error
	ListSalaryProjections(ctx context.Context, personnelID int64, w core.Window) ([]core.SalaryProjection, error)
	WriteSalaryProjections(ctx context.Context, w storage.SalaryWrite) error
	MarkSalaryPaid(ctx context.Context, key core.SalaryKey, a core.SalaryActuals) error
}

type StatementStore interface {
	SaveStatement(ctx context.Context, kind statements.Kind, m core.Month, stmt any) error
	LoadStatement(ctx context.Context, kind statements.Kind, m core.Month, out any) error
}

// StatementExporter mirrors computed statements to an external sheet.
type StatementExporter interface {
	ExportStatement(ctx context.Context, kind statements.Kind, m core.Month, stmt any) error
}

type BudgetStore interface {
	UpsertBudgetEntries(ctx context.Context, entries []storage.BudgetEntry) error
	ListBudgetEntries(ctx context.Context, budgetID int64, w core.Window) ([]storage.BudgetEntry, error)
}

var (
	_ ObligationStore = (*storage.SQLiteRepository)(nil)
	_ LedgerStore     = (*storage.SQLiteRepository)(nil)
	_ StatementStore  = (*storage.SQLiteRepository)(nil)
	_ BudgetStore     = (*storage.SQLiteRepository)(nil)
)
