// Package aggregate groups ledger entries for reporting and feeds the
// statement calculators.
package aggregate

import (
	"cmp"
	"slices"

	"forecast/internal/core"
	"forecast/internal/statements"
)

type MonthTotal struct {
	Month core.Month `json:"month"`
	Total core.Money `json:"total"`
}

// ByMonth totals entries per month, ordered by month.
func ByMonth(entries []core.ProjectionEntry) []MonthTotal {
	totals := make(map[core.Month]core.Money)
	for _, e := range entries {
		totals[e.Month] = totals[e.Month].Add(e.Effective())
	}
	out := make([]MonthTotal, 0, len(totals))
	for m, t := range totals {
		out = append(out, MonthTotal{Month: m, Total: t})
	}
	slices.SortFunc(out, func(a, b MonthTotal) int { return cmp.Compare(a.Month.Index(), b.Month.Index()) })
	return out
}

// ByCategory totals entries per category, largest first.
func ByCategory(entries []core.ProjectionEntry) []core.CategoryAmount {
	totals := make(map[string]core.Money)
	for _, e := range entries {
		totals[categoryOf(e)] = totals[categoryOf(e)].Add(e.Effective())
	}
	return sortedCategories(totals)
}

func sortedCategories(totals map[string]core.Money) []core.CategoryAmount {
	out := make([]core.CategoryAmount, 0, len(totals))
	for name, amount := range totals {
		out = append(out, core.CategoryAmount{Name: name, Amount: amount})
	}
	slices.SortFunc(out, func(a, b core.CategoryAmount) int {
		return cmp.Or(cmp.Compare(b.Amount.Cents, a.Amount.Cents), cmp.Compare(a.Name, b.Name))
	})
	return out
}

func categoryOf(e core.ProjectionEntry) string {
	if e.Category != "" {
		return e.Category
	}
	return string(e.Kind)
}

// MonthOverviews builds one overview per month of w, including empty months.
func MonthOverviews(entries []core.ProjectionEntry, w core.Window) []core.MonthOverview {
	grouped := make(map[core.Month][]core.ProjectionEntry)
	for _, e := range entries {
		if w.Contains(e.Month) {
			grouped[e.Month] = append(grouped[e.Month], e)
		}
	}
	out := make([]core.MonthOverview, 0, w.Len())
	for _, m := range w.Months() {
		ov := core.MonthOverview{Month: m, ByKind: make(map[core.ObligationKind]core.Money)}
		for _, e := range grouped[m] {
			amount := e.Effective()
			ov.Total = ov.Total.Add(amount)
			ov.ByKind[e.Kind] = ov.ByKind[e.Kind].Add(amount)
			if e.IsPaid {
				ov.Paid = ov.Paid.Add(amount)
			}
			if e.IsProjected {
				ov.Projected = ov.Projected.Add(amount)
			}
		}
		ov.ByCategory = ByCategory(grouped[m])
		out = append(out, ov)
	}
	return out
}

type CategorySummary struct {
	Name    string     `json:"name"`
	Total   core.Money `json:"total"`
	Average core.Money `json:"monthly_average"`
	Count   int        `json:"count"`
}

type Summary struct {
	Year           int               `json:"year"`
	Total          core.Money        `json:"total"`
	MonthlyAverage core.Money        `json:"monthly_average"`
	Categories     []CategorySummary `json:"categories"`
}

// AnnualSummary totals a calendar year. Averages always divide by 12.
func AnnualSummary(entries []core.ProjectionEntry, year int) Summary {
	s := Summary{Year: year}
	totals := make(map[string]core.Money)
	counts := make(map[string]int)
	for _, e := range entries {
		if e.Month.Year != year {
			continue
		}
		amount := e.Effective()
		s.Total = s.Total.Add(amount)
		totals[categoryOf(e)] = totals[categoryOf(e)].Add(amount)
		counts[categoryOf(e)]++
	}
	s.MonthlyAverage = s.Total.DivInt(12)
	for _, c := range sortedCategories(totals) {
		s.Categories = append(s.Categories, CategorySummary{
			Name:    c.Name,
			Total:   c.Amount,
			Average: c.Amount.DivInt(12),
			Count:   counts[c.Name],
		})
	}
	return s
}

// Sources are the figures that do not come from the ledger.
type Sources struct {
	Revenue  map[core.Month]core.Money
	Interest map[core.Month]core.Money
}

// Activity folds ledger entries into monthly P&L activity. Supplies are
// cost of goods; other expense categories and subscriptions are operating
// costs. Loan payments are not expenses: only their interest, supplied in
// src, reaches the P&L.
func Activity(entries []core.ProjectionEntry, src Sources, w core.Window) []statements.Activity {
	acts := make(map[core.Month]*statements.Activity, w.Len())
	out := make([]statements.Activity, 0, w.Len())
	for _, m := range w.Months() {
		acts[m] = &statements.Activity{
			Month:           m,
			Revenue:         src.Revenue[m],
			InterestExpense: src.Interest[m],
		}
	}
	for _, e := range entries {
		a, ok := acts[e.Month]
		if !ok {
			continue
		}
		amount := e.Effective()
		switch e.Kind {
		case core.KindExpense:
			if core.IsOperating(e.Category) {
				a.OperatingExpenses = a.OperatingExpenses.Add(amount)
			} else {
				a.CostOfGoodsSold = a.CostOfGoodsSold.Add(amount)
			}
		case core.KindSubscription:
			a.OperatingExpenses = a.OperatingExpenses.Add(amount)
		case core.KindLeasing:
			a.LeasingCosts = a.LeasingCosts.Add(amount)
		case core.KindPersonnel:
			a.PersonnelCosts = a.PersonnelCosts.Add(amount)
		case core.KindDepreciation:
			a.Depreciation = a.Depreciation.Add(amount)
		case core.KindLoan:
		default:
			a.OtherExpenses = a.OtherExpenses.Add(amount)
		}
	}
	for _, m := range w.Months() {
		out = append(out, *acts[m])
	}
	return out
}

// CashOutflows totals the money leaving each month. Depreciation is not
// a cash movement and is skipped.
func CashOutflows(entries []core.ProjectionEntry) map[core.Month]core.Money {
	out := make(map[core.Month]core.Money)
	for _, e := range entries {
		if e.Kind == core.KindDepreciation {
			continue
		}
		out[e.Month] = out[e.Month].Add(e.Effective())
	}
	return out
}
