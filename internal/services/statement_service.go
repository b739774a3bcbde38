package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"forecast/internal/aggregate"
	"forecast/internal/config"
	"forecast/internal/core"
	"forecast/internal/metrics"
	"forecast/internal/projection"
	"forecast/internal/statements"
)

// StatementService computes the monthly statements and stores them keyed
// by month. Recomputing a month replaces the stored statement.
type StatementService struct {
	store       StatementStore
	ledger      LedgerReader
	obligations ObligationStore
	taxRate     decimal.Decimal
	mode        statements.BalanceMode
	exporter    StatementExporter
	metrics     *metrics.Metrics
}

type StatementOption func(*StatementService)

// WithExporter mirrors every saved statement to an external sheet.
// Export failures are logged and never fail the calculation.
func WithExporter(e StatementExporter) StatementOption {
	return func(s *StatementService) { s.exporter = e }
}

func WithStatementMetrics(m *metrics.Metrics) StatementOption {
	return func(s *StatementService) { s.metrics = m }
}

func NewStatementService(store StatementStore, ledger LedgerReader, obligations ObligationStore, business config.Business, opts ...StatementOption) *StatementService {
	s := &StatementService{
		store:       store,
		ledger:      ledger,
		obligations: obligations,
		taxRate:     business.IncomeTaxRate,
		mode:        business.BalanceMode,
	}
	if s.mode == "" {
		s.mode = statements.BalanceSurface
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *StatementService) CalculateProfitAndLoss(ctx context.Context, m core.Month, in statements.PLInputs) (statements.ProfitAndLossStatement, error) {
	stmt := statements.ProfitAndLoss(m, in)
	if err := s.save(ctx, statements.KindProfitAndLoss, m, stmt); err != nil {
		return statements.ProfitAndLossStatement{}, err
	}
	return stmt, nil
}

// ProfitAndLossFromLedger derives one P&L per month of w from the stored
// ledger. Revenue is supplied by the caller; loan interest comes from the
// amortization schedules and taxes from the configured income tax rate.
func (s *StatementService) ProfitAndLossFromLedger(ctx context.Context, w core.Window, revenue map[core.Month]core.Money) ([]statements.ProfitAndLossStatement, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	entries, err := s.ledger.ListAllProjections(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	interest, err := s.loanInterest(ctx, w)
	if err != nil {
		return nil, err
	}

	acts := aggregate.Activity(entries, aggregate.Sources{Revenue: revenue, Interest: interest}, w)
	out := make([]statements.ProfitAndLossStatement, 0, len(acts))
	for _, a := range acts {
		stmt := statements.PLFromActivity(a, s.taxRate)
		if err := s.save(ctx, statements.KindProfitAndLoss, a.Month, stmt); err != nil {
			return nil, err
		}
		out = append(out, stmt)
	}
	return out, nil
}

func (s *StatementService) loanInterest(ctx context.Context, w core.Window) (map[core.Month]core.Money, error) {
	loans, err := s.obligations.ListLoans(ctx)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	out := make(map[core.Month]core.Money, w.Len())
	for _, l := range loans {
		sched, err := projection.AmortizeLoan(l)
		if err != nil {
			slog.WarnContext(ctx, "Skipping loan with invalid terms",
				"obligation_id", l.ID,
				"error", err)
			continue
		}
		for _, m := range w.Months() {
			out[m] = out[m].Add(sched.InterestIn(m))
		}
	}
	return out, nil
}

// CalculateBalanceSheet totals and stores the sheet. In strict mode an
// unbalanced sheet is rejected; otherwise the gap is surfaced as a
// reconciling adjustment and counted.
func (s *StatementService) CalculateBalanceSheet(ctx context.Context, m core.Month, in statements.BSInputs) (statements.BalanceSheetStatement, error) {
	stmt, err := statements.BalanceSheet(m, in, s.mode)
	if err != nil {
		if s.metrics != nil {
			s.metrics.UnbalancedSheets.Inc()
		}
		return statements.BalanceSheetStatement{}, err
	}
	if !stmt.IsBalanced() {
		if s.metrics != nil {
			s.metrics.UnbalancedSheets.Inc()
		}
		slog.WarnContext(ctx, "Balance sheet needed a reconciling adjustment",
			"month", m.String(),
			"adjustment", stmt.ReconcilingAdjustment.String())
	}
	if err := s.save(ctx, statements.KindBalanceSheet, m, stmt); err != nil {
		return statements.BalanceSheetStatement{}, err
	}
	return stmt, nil
}

func (s *StatementService) CalculateWorkingCapital(ctx context.Context, m core.Month, in statements.WCInputs) (statements.WorkingCapitalStatement, error) {
	stmt := statements.WorkingCapital(m, in)
	if err := s.save(ctx, statements.KindWorkingCapital, m, stmt); err != nil {
		return statements.WorkingCapitalStatement{}, err
	}
	return stmt, nil
}

func (s *StatementService) CalculateFinancialPlan(ctx context.Context, m core.Month, in statements.FPInputs) (statements.FinancialPlanStatement, error) {
	stmt := statements.FinancialPlan(m, in)
	if err := s.save(ctx, statements.KindFinancialPlan, m, stmt); err != nil {
		return statements.FinancialPlanStatement{}, err
	}
	return stmt, nil
}

// CalculateCashFlow chains monthly cash flows over w. Outflows are the
// ledger's cash movements; inflows are supplied by the caller.
func (s *StatementService) CalculateCashFlow(ctx context.Context, w core.Window, opening core.Money, inflows map[core.Month]core.Money) ([]statements.CashFlowStatement, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	entries, err := s.ledger.ListAllProjections(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	series := statements.CashFlowSeries(w, opening, inflows, aggregate.CashOutflows(entries))
	for _, cf := range series {
		if err := s.save(ctx, statements.KindCashFlow, cf.Month, cf); err != nil {
			return nil, err
		}
	}
	return series, nil
}

// Get loads a stored statement. The concrete type depends on kind.
func (s *StatementService) Get(ctx context.Context, kind statements.Kind, m core.Month) (any, error) {
	var out any
	switch kind {
	case statements.KindProfitAndLoss:
		out = &statements.ProfitAndLossStatement{}
	case statements.KindBalanceSheet:
		out = &statements.BalanceSheetStatement{}
	case statements.KindWorkingCapital:
		out = &statements.WorkingCapitalStatement{}
	case statements.KindFinancialPlan:
		out = &statements.FinancialPlanStatement{}
	case statements.KindCashFlow:
		out = &statements.CashFlowStatement{}
	default:
		return nil, core.NewValidationError("statement", statements.ErrUnknownKind)
	}
	if err := s.store.LoadStatement(ctx, kind, m, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *StatementService) save(ctx context.Context, kind statements.Kind, m core.Month, stmt any) error {
	if err := s.store.SaveStatement(ctx, kind, m, stmt); err != nil {
		return fmt.Errorf("save %s statement: %w", kind, err)
	}
	if s.metrics != nil {
		s.metrics.StatementsCalculated.WithLabelValues(string(kind)).Inc()
	}
	slog.InfoContext(ctx, "Statement calculated", "statement", kind, "month", m.String())

	if s.exporter != nil {
		if err := s.exporter.ExportStatement(ctx, kind, m, stmt); err != nil {
			slog.WarnContext(ctx, "Failed to export statement",
				"statement", kind,
				"month", m.String(),
				"error", err)
		}
	}
	return nil
}
