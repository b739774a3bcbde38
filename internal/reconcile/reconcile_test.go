package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forecast/internal/core"
)

func month(m time.Month) core.Month { return core.Month{Year: 2024, Month: m} }

var year = core.YearWindow(2024)

func window(from, to time.Month) core.Window { return core.Window{Start: month(from), End: month(to)} }

func entry(id int64, m time.Month, cents int64) core.ProjectionEntry {
	return core.ProjectionEntry{
		Kind:         core.KindSubscription,
		ObligationID: id,
		Name:         "CRM",
		Month:        month(m),
		Amount:       core.Cents(cents),
		IsProjected:  true,
	}
}

func paid(e core.ProjectionEntry, actual int64) core.ProjectionEntry {
	a := core.Cents(actual)
	e.IsPaid = true
	e.PaidDate = core.NewDate(2024, int(e.Month.Month), 3)
	e.ActualAmount = &a
	e.Notes = "paid by card"
	return e
}

func TestReconcilePreservesActuals(t *testing.T) {
	existing := []core.ProjectionEntry{
		paid(entry(1, time.January, 5000), 5100),
		entry(1, time.February, 5000),
	}
	fresh := []core.ProjectionEntry{
		entry(1, time.January, 6000),
		entry(1, time.February, 6000),
		entry(1, time.March, 6000),
	}

	got := Reconcile(fresh, existing, year)
	require.Len(t, got, 3)

	jan := got[0]
	assert.Equal(t, int64(6000), jan.Amount.Cents, "fresh amount wins")
	assert.True(t, jan.IsPaid)
	require.NotNil(t, jan.ActualAmount)
	assert.Equal(t, int64(5100), jan.ActualAmount.Cents)
	assert.Equal(t, "paid by card", jan.Notes)
	assert.Equal(t, "2024-01-03", jan.PaidDate.String())

	mar := got[2]
	assert.Equal(t, month(time.March), mar.Month)
	assert.False(t, mar.IsPaid)
	assert.Nil(t, mar.ActualAmount)
}

func TestReconcileKeepsExistingOnlyRows(t *testing.T) {
	settled := paid(entry(1, time.December, 5000), 5000)
	outside := entry(1, time.June, 5000)
	existing := []core.ProjectionEntry{settled, outside}
	fresh := []core.ProjectionEntry{entry(1, time.January, 5000)}

	got := Reconcile(fresh, existing, window(time.January, time.March))
	require.Len(t, got, 3)
	assert.Equal(t, outside, got[1], "rows outside the window are untouched")
	assert.Equal(t, settled, got[2], "rows with actuals are untouched")
}

func TestDiffDeletesStaleRowsInsideWindow(t *testing.T) {
	noted := entry(1, time.February, 1000)
	noted.Notes = "disputed invoice"
	existing := []core.ProjectionEntry{
		entry(1, time.January, 1000),
		noted,
		paid(entry(1, time.March, 1000), 1000),
		entry(1, time.April, 1000),
		entry(1, time.July, 1000),
	}
	// Monthly became quarterly: only January is still due in Q1.
	fresh := []core.ProjectionEntry{
		entry(1, time.January, 1000),
		entry(1, time.April, 1000),
	}

	plan := Diff(fresh, existing, window(time.January, time.April))
	assert.Empty(t, plan.Insert)
	assert.Empty(t, plan.Update)
	assert.Empty(t, plan.Delete, "every stale row in the window has something recorded")

	existing[1] = entry(1, time.February, 1000)
	existing[2] = entry(1, time.March, 1000)
	plan = Diff(fresh, existing, window(time.January, time.April))
	require.Len(t, plan.Delete, 2)
	assert.Equal(t, []core.EntryKey{
		{Kind: core.KindSubscription, ObligationID: 1, Month: month(time.February)},
		{Kind: core.KindSubscription, ObligationID: 1, Month: month(time.March)},
	}, DeleteKeys(plan))

	remaining := plan.All(CompareKeys)
	require.Len(t, remaining, 3)
	assert.Equal(t, month(time.July), remaining[2].Month, "outside the window")
}

func TestReconcileIsIdempotent(t *testing.T) {
	existing := []core.ProjectionEntry{
		paid(entry(1, time.January, 5000), 4900),
		entry(2, time.May, 100),
	}
	fresh := []core.ProjectionEntry{
		entry(1, time.January, 5500),
		entry(1, time.February, 5500),
	}

	once := Reconcile(fresh, existing, year)
	twice := Reconcile(fresh, once, year)
	assert.Equal(t, once, twice)
}

func TestDiffPlan(t *testing.T) {
	existing := []core.ProjectionEntry{
		entry(1, time.January, 5000),
		paid(entry(1, time.February, 5000), 5000),
		entry(9, time.June, 100),
	}
	fresh := []core.ProjectionEntry{
		entry(1, time.January, 5000),
		entry(1, time.February, 7000),
		entry(1, time.March, 7000),
	}

	plan := Diff(fresh, existing, window(time.January, time.March))
	assert.Len(t, plan.Insert, 1)
	assert.Len(t, plan.Update, 1)
	assert.Len(t, plan.Unchanged, 2)
	assert.Empty(t, plan.Delete)
	assert.Equal(t, 0, plan.Duplicates)

	updated := plan.Update[0]
	assert.Equal(t, int64(7000), updated.Amount.Cents)
	assert.True(t, updated.IsPaid, "actuals carried into the update")

	assert.Len(t, plan.Writes(), 2)
}

func TestDiffCountsDuplicates(t *testing.T) {
	fresh := []core.ProjectionEntry{
		entry(1, time.January, 100),
		entry(1, time.January, 200),
	}
	plan := Diff(fresh, nil, year)
	assert.Equal(t, 1, plan.Duplicates)
	require.Len(t, plan.Insert, 1)
	assert.Equal(t, int64(200), plan.Insert[0].Amount.Cents)
}

func TestReconcileSalaries(t *testing.T) {
	actualNet := core.Cents(160000)
	existing := []core.SalaryProjection{{
		PersonnelID: 4,
		Month:       month(time.January),
		BruteSalary: core.Cents(200000),
		NetSalary:   core.Cents(162500),
		SalaryActuals: core.SalaryActuals{
			IsNetPaid:       true,
			ActualNetAmount: &actualNet,
		},
	}}
	fresh := []core.SalaryProjection{
		{PersonnelID: 4, Month: month(time.January), BruteSalary: core.Cents(220000), NetSalary: core.Cents(178750)},
		{PersonnelID: 4, Month: month(time.February), BruteSalary: core.Cents(220000), NetSalary: core.Cents(178750)},
	}

	got := ReconcileSalaries(fresh, existing, year)
	require.Len(t, got, 2)
	assert.Equal(t, int64(220000), got[0].BruteSalary.Cents)
	assert.True(t, got[0].IsNetPaid)
	assert.Equal(t, &actualNet, got[0].ActualNetAmount)
	assert.False(t, got[1].IsNetPaid)

	assert.Equal(t, got, ReconcileSalaries(fresh, got, year))

	stale := core.SalaryProjection{PersonnelID: 4, Month: month(time.March), BruteSalary: core.Cents(200000)}
	plan := DiffSalaries(fresh, append(existing, stale), year)
	require.Len(t, plan.Delete, 1)
	assert.Equal(t, []core.SalaryKey{stale.Key()}, SalaryDeleteKeys(plan))
}

func TestMirrorOverwritesActuals(t *testing.T) {
	existing := []core.ProjectionEntry{
		paid(entry(1, time.January, 5000), 5100),
		entry(1, time.February, 5000),
	}
	fresh := []core.ProjectionEntry{
		entry(1, time.January, 5000),
		entry(1, time.February, 5000),
	}

	plan := Mirror(fresh, existing, year)
	require.Len(t, plan.Update, 1)
	assert.False(t, plan.Update[0].IsPaid)
	assert.Nil(t, plan.Update[0].ActualAmount)
	assert.Len(t, plan.Unchanged, 1)
	assert.Empty(t, plan.Insert)
}
