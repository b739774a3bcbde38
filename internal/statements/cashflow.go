package statements

import (
	"github.com/shopspring/decimal"

	"forecast/internal/core"
)

type CashFlowStatement struct {
	Month          core.Month `json:"month"`
	OpeningBalance core.Money `json:"opening_balance"`
	Inflows        core.Money `json:"inflows"`
	Outflows       core.Money `json:"outflows"`
	NetCashFlow    core.Money `json:"net_cash_flow"`
	ClosingBalance core.Money `json:"closing_balance"`
}

func CashFlow(m core.Month, opening, inflows, outflows core.Money) CashFlowStatement {
	net := inflows.Sub(outflows)
	return CashFlowStatement{
		Month:          m,
		OpeningBalance: opening,
		Inflows:        inflows,
		Outflows:       outflows,
		NetCashFlow:    net,
		ClosingBalance: opening.Add(net),
	}
}

// CashFlowSeries chains monthly cash flows over w: each month opens with
// the previous month's closing balance.
func CashFlowSeries(w core.Window, opening core.Money, inflows, outflows map[core.Month]core.Money) []CashFlowStatement {
	out := make([]CashFlowStatement, 0, w.Len())
	balance := opening
	for _, m := range w.Months() {
		cf := CashFlow(m, balance, inflows[m], outflows[m])
		out = append(out, cf)
		balance = cf.ClosingBalance
	}
	return out
}

// Activity is the aggregated ledger activity of one month.
type Activity struct {
	Month             core.Month
	Revenue           core.Money
	CostOfGoodsSold   core.Money
	OperatingExpenses core.Money
	PersonnelCosts    core.Money
	LeasingCosts      core.Money
	Depreciation      core.Money
	InterestExpense   core.Money
	OtherExpenses     core.Money
}

// PLFromActivity derives P&L inputs from a month of activity. Taxes are
// revenue times taxRatePercent/100.
func PLFromActivity(a Activity, taxRatePercent decimal.Decimal) ProfitAndLossStatement {
	taxes := a.Revenue.MulRate(taxRatePercent.Div(decimal.NewFromInt(100)))
	return ProfitAndLoss(a.Month, PLInputs{
		Revenue:           a.Revenue,
		CostOfGoodsSold:   a.CostOfGoodsSold,
		OperatingExpenses: a.OperatingExpenses,
		PersonnelCosts:    a.PersonnelCosts,
		LeasingCosts:      a.LeasingCosts,
		Depreciation:      a.Depreciation,
		InterestExpense:   a.InterestExpense,
		Taxes:             taxes,
		OtherExpenses:     a.OtherExpenses,
	})
}
