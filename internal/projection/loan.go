package projection

import (
	"slices"

	"github.com/shopspring/decimal"

	"forecast/internal/core"
)

// LoanSchedule is the amortization table of a loan.
type LoanSchedule struct {
	Loan     core.Loan
	Payment  core.Money // regular annuity payment
	Payments []core.LoanPayment
}

// AmortizeLoan builds an annuity schedule. Off-payment months pay interest
// only and push the remaining payments out by one month each. The last
// payment settles whatever rounding left on the balance.
func AmortizeLoan(loan core.Loan) (LoanSchedule, error) {
	if err := loan.Validate(); err != nil {
		return LoanSchedule{}, err
	}
	principal := loan.Principal.Decimal()
	n := decimal.NewFromInt(int64(loan.DurationMonths))
	rate := loan.AnnualRatePercent.Div(decimal.NewFromInt(1200))

	var payment decimal.Decimal
	if rate.IsZero() {
		payment = principal.Div(n)
	} else {
		factor := decimal.NewFromInt(1).Add(rate).Pow(n)
		payment = principal.Mul(rate).Mul(factor).Div(factor.Sub(decimal.NewFromInt(1)))
	}
	payment = payment.Round(2)

	sched := LoanSchedule{Loan: loan, Payment: core.FromDecimal(payment)}
	start := core.MonthOf(loan.StartDate.Time)
	total := loan.DurationMonths + countDistinct(loan.OffPaymentMonths, loan.DurationMonths)
	remaining := principal

	for i := 1; i <= total; i++ {
		m := start.AddMonths(i - 1)
		interest := remaining.Mul(rate).Round(2)
		p := core.LoanPayment{
			LoanID: loan.ID,
			Number: i,
			Month:  m,
			Date:   m.Day(loan.StartDate.Day()),
		}
		if slices.Contains(loan.OffPaymentMonths, i) {
			p.Deferred = true
			p.Interest = core.FromDecimal(interest)
			p.Total = p.Interest
			p.Remaining = core.FromDecimal(remaining)
			sched.Payments = append(sched.Payments, p)
			continue
		}
		princ := payment.Sub(interest)
		if i == total || princ.GreaterThan(remaining) {
			princ = remaining
		}
		remaining = remaining.Sub(princ)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		p.Interest = core.FromDecimal(interest)
		p.Principal = core.FromDecimal(princ)
		p.Total = p.Principal.Add(p.Interest)
		p.Remaining = core.FromDecimal(remaining)
		sched.Payments = append(sched.Payments, p)
	}
	return sched, nil
}

// countDistinct counts off-payment ordinals that fall inside the loan.
// Each one defers the schedule by a month, so the upper bound grows.
func countDistinct(ordinals []int, duration int) int {
	seen := make(map[int]bool, len(ordinals))
	limit := duration
	for _, o := range slices.Sorted(slices.Values(ordinals)) {
		if o <= limit && !seen[o] {
			seen[o] = true
			limit++
		}
	}
	return len(seen)
}

// InterestIn sums the interest paid in month m.
func (s LoanSchedule) InterestIn(m core.Month) core.Money {
	var total core.Money
	for _, p := range s.Payments {
		if p.Month == m {
			total = total.Add(p.Interest)
		}
	}
	return total
}

// Entries projects the schedule as ledger entries inside w.
func (s LoanSchedule) Entries(w core.Window, asOf core.Month) []core.ProjectionEntry {
	var out []core.ProjectionEntry
	for _, p := range s.Payments {
		if !w.Contains(p.Month) {
			continue
		}
		out = append(out, core.ProjectionEntry{
			Kind:         core.KindLoan,
			ObligationID: s.Loan.ID,
			Name:         s.Loan.Name,
			Category:     string(core.KindLoan),
			Month:        p.Month,
			Amount:       p.Total,
			PaymentDate:  p.Date,
			IsProjected:  p.Month.After(asOf),
		})
	}
	return out
}
