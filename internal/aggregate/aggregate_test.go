package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forecast/internal/core"
)

func m(month time.Month) core.Month { return core.Month{Year: 2024, Month: month} }

func ledger() []core.ProjectionEntry {
	actual := core.Cents(12500)
	return []core.ProjectionEntry{
		{Kind: core.KindExpense, ObligationID: 1, Category: core.CategoryRent, Month: m(time.January), Amount: core.Cents(100000)},
		{Kind: core.KindExpense, ObligationID: 2, Category: core.CategorySupplies, Month: m(time.January), Amount: core.Cents(20000)},
		{Kind: core.KindSubscription, ObligationID: 3, Category: "subscription", Month: m(time.January), Amount: core.Cents(10000),
			Actuals: core.Actuals{IsPaid: true, ActualAmount: &actual}},
		{Kind: core.KindPersonnel, ObligationID: 4, Category: "engineer", Month: m(time.February), Amount: core.Cents(240000), IsProjected: true},
		{Kind: core.KindLeasing, ObligationID: 5, Category: "leasing", Month: m(time.February), Amount: core.Cents(30000), IsProjected: true},
		{Kind: core.KindLoan, ObligationID: 6, Category: "loan", Month: m(time.February), Amount: core.Cents(88849), IsProjected: true},
		{Kind: core.KindDepreciation, ObligationID: 7, Category: "equipment", Month: m(time.February), Amount: core.Cents(5000), IsProjected: true},
	}
}

func TestByMonth(t *testing.T) {
	got := ByMonth(ledger())
	require.Len(t, got, 2)
	assert.Equal(t, m(time.January), got[0].Month)
	assert.Equal(t, "1325.00", got[0].Total.String(), "paid actual replaces projection")
	assert.Equal(t, "3638.49", got[1].Total.String())
}

func TestByCategoryLargestFirst(t *testing.T) {
	got := ByCategory(ledger())
	require.NotEmpty(t, got)
	assert.Equal(t, "engineer", got[0].Name)
	assert.Equal(t, "rent", got[1].Name)
}

func TestMonthOverviews(t *testing.T) {
	w := core.Window{Start: m(time.January), End: m(time.March)}
	got := MonthOverviews(ledger(), w)
	require.Len(t, got, 3)

	jan := got[0]
	assert.Equal(t, "125.00", jan.Paid.String())
	assert.True(t, jan.Projected.IsZero())
	assert.Equal(t, "1200.00", jan.ByKind[core.KindExpense].String())

	feb := got[1]
	assert.Equal(t, feb.Total, feb.Projected)

	assert.True(t, got[2].Total.IsZero())
	assert.Empty(t, got[2].ByCategory)
}

func TestAnnualSummary(t *testing.T) {
	entries := []core.ProjectionEntry{}
	for i := 1; i <= 12; i++ {
		entries = append(entries, core.ProjectionEntry{
			Kind: core.KindExpense, ObligationID: 1, Category: core.CategoryRent,
			Month: m(time.Month(i)), Amount: core.Cents(100000),
		})
	}
	entries = append(entries, core.ProjectionEntry{
		Kind: core.KindExpense, ObligationID: 1, Category: core.CategoryRent,
		Month: core.Month{Year: 2025, Month: time.January}, Amount: core.Cents(100000),
	})

	got := AnnualSummary(entries, 2024)
	assert.Equal(t, "12000.00", got.Total.String())
	assert.Equal(t, "1000.00", got.MonthlyAverage.String())
	require.Len(t, got.Categories, 1)
	assert.Equal(t, 12, got.Categories[0].Count)
}

func TestActivity(t *testing.T) {
	w := core.Window{Start: m(time.January), End: m(time.February)}
	got := Activity(ledger(), Sources{
		Revenue:  map[core.Month]core.Money{m(time.January): core.Cents(500000)},
		Interest: map[core.Month]core.Money{m(time.February): core.Cents(10000)},
	}, w)
	require.Len(t, got, 2)

	jan := got[0]
	assert.Equal(t, "5000.00", jan.Revenue.String())
	assert.Equal(t, "200.00", jan.CostOfGoodsSold.String())
	assert.Equal(t, "1125.00", jan.OperatingExpenses.String())

	feb := got[1]
	assert.Equal(t, "2400.00", feb.PersonnelCosts.String())
	assert.Equal(t, "300.00", feb.LeasingCosts.String())
	assert.Equal(t, "50.00", feb.Depreciation.String())
	assert.Equal(t, "100.00", feb.InterestExpense.String())
	assert.True(t, feb.OtherExpenses.IsZero(), "loan payments are not expenses")
}

func TestCashOutflowsSkipsDepreciation(t *testing.T) {
	got := CashOutflows(ledger())
	assert.Equal(t, "3588.49", got[m(time.February)].String())
}
