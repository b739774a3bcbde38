package projection

import (
	"github.com/shopspring/decimal"

	"forecast/internal/core"
)

// DepreciationSchedule is the monthly depreciation of one investment.
type DepreciationSchedule struct {
	Investment core.Investment
	Entries    []core.DepreciationEntry
}

// Depreciate builds the schedule from the purchase month for the useful
// life of the asset. Book value never drops below the residual value.
//
// Straight line spreads (amount - residual) evenly. Declining balance
// applies the double rate 2/life to the current book value each month.
func Depreciate(inv core.Investment) (DepreciationSchedule, error) {
	if err := inv.Validate(); err != nil {
		return DepreciationSchedule{}, err
	}
	life := decimal.NewFromInt(int64(inv.UsefulLifeMonths))
	residual := inv.ResidualValue.Decimal()
	book := inv.Amount.Decimal()
	accumulated := decimal.Zero
	straight := book.Sub(residual).Div(life)
	doubleRate := decimal.NewFromInt(2).Div(life)

	start := core.MonthOf(inv.PurchaseDate.Time)
	sched := DepreciationSchedule{Investment: inv}
	for i := 0; i < inv.UsefulLifeMonths; i++ {
		var dep decimal.Decimal
		switch inv.Method {
		case core.DecliningBalance:
			dep = book.Mul(doubleRate)
		default:
			dep = straight
		}
		// The last straight-line month absorbs rounding.
		if inv.Method == core.StraightLine && i == inv.UsefulLifeMonths-1 {
			dep = book.Sub(residual)
		}
		if floor := book.Sub(residual); dep.GreaterThan(floor) {
			dep = floor
		}
		dep = dep.Round(2)
		book = book.Sub(dep)
		accumulated = accumulated.Add(dep)
		sched.Entries = append(sched.Entries, core.DepreciationEntry{
			InvestmentID: inv.ID,
			Month:        start.AddMonths(i),
			Depreciation: core.FromDecimal(dep),
			Accumulated:  core.FromDecimal(accumulated),
			BookValue:    core.FromDecimal(book),
		})
	}
	return sched, nil
}

// In returns the depreciation charged in month m.
func (s DepreciationSchedule) In(m core.Month) core.Money {
	for _, e := range s.Entries {
		if e.Month == m {
			return e.Depreciation
		}
	}
	return core.Money{}
}

// LedgerEntries projects the schedule as ledger entries inside w. Depreciation
// is a non-cash charge; it is carried in the ledger so the P&L can read it.
func (s DepreciationSchedule) LedgerEntries(w core.Window, asOf core.Month) []core.ProjectionEntry {
	var out []core.ProjectionEntry
	for _, e := range s.Entries {
		if !w.Contains(e.Month) || e.Depreciation.IsZero() {
			continue
		}
		category := s.Investment.Category
		if category == "" {
			category = string(core.KindDepreciation)
		}
		out = append(out, core.ProjectionEntry{
			Kind:         core.KindDepreciation,
			ObligationID: s.Investment.ID,
			Name:         s.Investment.Name,
			Category:     category,
			Month:        e.Month,
			Amount:       e.Depreciation,
			PaymentDate:  e.Month.FirstDay(),
			IsProjected:  e.Month.After(asOf),
		})
	}
	return out
}
