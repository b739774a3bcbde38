package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forecast/internal/config"
	"forecast/internal/core"
	"forecast/internal/metrics"
	"forecast/internal/statements"
)

func business(mode statements.BalanceMode, taxPercent string) config.Business {
	return config.Business{
		IncomeTaxRate: decimal.RequireFromString(taxPercent),
		BalanceMode:   mode,
	}
}

func TestProfitAndLossFromLedger(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.addObligation(rent(1))
	store.loans[7] = core.Loan{
		ID:                7,
		Name:              "Bank loan",
		Principal:         core.Cents(1200000),
		AnnualRatePercent: decimal.NewFromInt(12),
		DurationMonths:    12,
		StartDate:         core.NewDate(2025, 1, 1),
	}
	projections := newProjectionService(store)
	_, err := projections.Recalculate(ctx, core.KindExpense, 1, q1, jan)
	require.NoError(t, err)
	_, err = projections.Recalculate(ctx, core.KindLoan, 7, q1, jan)
	require.NoError(t, err)

	svc := NewStatementService(store, store, store, business(statements.BalanceSurface, "25"))
	revenue := map[core.Month]core.Money{jan: core.Cents(500000)}

	pls, err := svc.ProfitAndLossFromLedger(ctx, q1, revenue)
	require.NoError(t, err)
	require.Len(t, pls, 3)

	got := pls[0]
	assert.Equal(t, core.Cents(500000), got.Revenue)
	assert.Equal(t, core.Cents(100000), got.OperatingExpenses)
	// 1% monthly interest on the full principal in the first month.
	assert.Equal(t, core.Cents(12000), got.InterestExpense)
	assert.Equal(t, core.Cents(125000), got.Taxes)
	assert.Equal(t, core.Cents(500000-100000-12000-125000), got.NetProfit)

	// Loan payments are not expenses.
	assert.True(t, got.OtherExpenses.IsZero())

	stored, err := svc.Get(ctx, statements.KindProfitAndLoss, jan)
	require.NoError(t, err)
	assert.Equal(t, got.NetProfit, stored.(*statements.ProfitAndLossStatement).NetProfit)
}

func TestCalculateBalanceSheet(t *testing.T) {
	ctx := context.Background()
	in := statements.BSInputs{
		CurrentAssets:    core.Cents(1000),
		FixedAssets:      core.Cents(500),
		LongTermDebt:     core.Cents(600),
		ShareCapital:     core.Cents(500),
		RetainedEarnings: core.Cents(300),
	}

	t.Run("surface", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		m := metrics.New(reg)
		svc := NewStatementService(newMemStore(), nil, nil, business(statements.BalanceSurface, "0"), WithStatementMetrics(m))

		stmt, err := svc.CalculateBalanceSheet(ctx, jan, in)
		require.NoError(t, err)
		assert.Equal(t, core.Cents(100), stmt.ReconcilingAdjustment)
		assert.Equal(t, stmt.TotalAssets, stmt.TotalLiabilities.Add(stmt.TotalEquity))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.UnbalancedSheets))
	})

	t.Run("strict", func(t *testing.T) {
		store := newMemStore()
		svc := NewStatementService(store, nil, nil, business(statements.BalanceStrict, "0"))

		_, err := svc.CalculateBalanceSheet(ctx, jan, in)
		require.ErrorIs(t, err, statements.ErrUnbalanced)
		assert.Empty(t, store.stmts)
	})
}

func TestCalculateCashFlow_ChainsBalances(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.addObligation(rent(1))
	_, err := newProjectionService(store).Recalculate(ctx, core.KindExpense, 1, q1, jan)
	require.NoError(t, err)

	svc := NewStatementService(store, store, store, business("", "0"))
	inflows := map[core.Month]core.Money{jan: core.Cents(300000)}

	series, err := svc.CalculateCashFlow(ctx, q1, core.Cents(50000), inflows)
	require.NoError(t, err)
	require.Len(t, series, 3)
	assert.Equal(t, core.Cents(250000), series[0].ClosingBalance)
	assert.Equal(t, series[0].ClosingBalance, series[1].OpeningBalance)
	assert.Equal(t, core.Cents(50000), series[2].ClosingBalance)
}

func TestStatementExportFailureIsNotFatal(t *testing.T) {
	exp := &recordingExporter{err: errors.New("sheets down")}
	svc := NewStatementService(newMemStore(), nil, nil, business("", "0"), WithExporter(exp))

	stmt, err := svc.CalculateWorkingCapital(context.Background(), jan, statements.WCInputs{
		AccountsReceivable: core.Cents(700),
		AccountsPayable:    core.Cents(200),
	})
	require.NoError(t, err)
	assert.Equal(t, core.Cents(500), stmt.WorkingCapitalNeed)
	assert.Equal(t, []statements.Kind{statements.KindWorkingCapital}, exp.kinds)
}

func TestStatementRecalculationReplacesMonth(t *testing.T) {
	ctx := context.Background()
	svc := NewStatementService(newMemStore(), nil, nil, business("", "0"))

	_, err := svc.CalculateFinancialPlan(ctx, jan, statements.FPInputs{Equity: core.Cents(100)})
	require.NoError(t, err)
	_, err = svc.CalculateFinancialPlan(ctx, jan, statements.FPInputs{Equity: core.Cents(300)})
	require.NoError(t, err)

	got, err := svc.Get(ctx, statements.KindFinancialPlan, jan)
	require.NoError(t, err)
	assert.Equal(t, core.Cents(300), got.(*statements.FinancialPlanStatement).TotalSources)

	_, err = svc.Get(ctx, statements.KindFinancialPlan, core.NewMonth(2030, time.June))
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = svc.Get(ctx, statements.Kind("forecast"), jan)
	assert.ErrorIs(t, err, core.ErrValidation)
}
