// Package statements computes the monthly financial statements.
//
// Every calculator is a pure function of its explicit inputs. Derived
// totals are always recomputed from the components they summarise.
package statements

import (
	"errors"
	"fmt"
	"strings"

	"forecast/internal/core"
)

// Kind names a statement family. It doubles as the URL segment and the
// storage table selector.
type Kind string

const (
	KindProfitAndLoss  Kind = "profit-loss"
	KindBalanceSheet   Kind = "balance-sheet"
	KindWorkingCapital Kind = "working-capital"
	KindFinancialPlan  Kind = "financial-plan"
	KindCashFlow       Kind = "cash-flow"
)

var Kinds = []Kind{KindProfitAndLoss, KindBalanceSheet, KindWorkingCapital, KindFinancialPlan, KindCashFlow}

var ErrUnknownKind = errors.New("unknown statement kind")

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", core.NewValidationError("statement", fmt.Errorf("%w: %q", ErrUnknownKind, s))
}

type PLInputs struct {
	Revenue           core.Money `json:"revenue"`
	CostOfGoodsSold   core.Money `json:"cost_of_goods_sold"`
	OperatingExpenses core.Money `json:"operating_expenses"`
	PersonnelCosts    core.Money `json:"personnel_costs"`
	LeasingCosts      core.Money `json:"leasing_costs"`
	Depreciation      core.Money `json:"depreciation"`
	InterestExpense   core.Money `json:"interest_expense"`
	Taxes             core.Money `json:"taxes"`
	OtherExpenses     core.Money `json:"other_expenses"`
}

type ProfitAndLossStatement struct {
	Month core.Month `json:"month"`
	PLInputs
	GrossProfit     core.Money `json:"gross_profit"`
	OperatingProfit core.Money `json:"operating_profit"`
	NetProfit       core.Money `json:"net_profit"`
}

// ProfitAndLoss subtracts costs in layers: gross, operating, net.
func ProfitAndLoss(m core.Month, in PLInputs) ProfitAndLossStatement {
	gross := in.Revenue.Sub(in.CostOfGoodsSold)
	operating := gross.
		Sub(in.OperatingExpenses).
		Sub(in.PersonnelCosts).
		Sub(in.LeasingCosts).
		Sub(in.Depreciation)
	net := operating.
		Sub(in.InterestExpense).
		Sub(in.Taxes).
		Sub(in.OtherExpenses)
	return ProfitAndLossStatement{
		Month:           m,
		PLInputs:        in,
		GrossProfit:     gross,
		OperatingProfit: operating,
		NetProfit:       net,
	}
}

type WCInputs struct {
	AccountsReceivable      core.Money `json:"accounts_receivable"`
	Inventory               core.Money `json:"inventory"`
	OtherCurrentAssets      core.Money `json:"other_current_assets"`
	AccountsPayable         core.Money `json:"accounts_payable"`
	OtherCurrentLiabilities core.Money `json:"other_current_liabilities"`
}

type WorkingCapitalStatement struct {
	Month core.Month `json:"month"`
	WCInputs
	CurrentAssets      core.Money `json:"current_assets"`
	CurrentLiabilities core.Money `json:"current_liabilities"`
	WorkingCapitalNeed core.Money `json:"working_capital_need"`
}

func WorkingCapital(m core.Month, in WCInputs) WorkingCapitalStatement {
	assets := core.Sum(in.AccountsReceivable, in.Inventory, in.OtherCurrentAssets)
	liabilities := core.Sum(in.AccountsPayable, in.OtherCurrentLiabilities)
	return WorkingCapitalStatement{
		Month:              m,
		WCInputs:           in,
		CurrentAssets:      assets,
		CurrentLiabilities: liabilities,
		WorkingCapitalNeed: assets.Sub(liabilities),
	}
}

type FPInputs struct {
	Equity         core.Money `json:"equity"`
	Loans          core.Money `json:"loans"`
	OtherSources   core.Money `json:"other_sources"`
	Investments    core.Money `json:"investments"`
	WorkingCapital core.Money `json:"working_capital"`
	LoanRepayments core.Money `json:"loan_repayments"`
	OtherUses      core.Money `json:"other_uses"`
}

type FinancialPlanStatement struct {
	Month core.Month `json:"month"`
	FPInputs
	TotalSources core.Money `json:"total_sources"`
	TotalUses    core.Money `json:"total_uses"`
	NetFinancing core.Money `json:"net_financing"`
}

func FinancialPlan(m core.Month, in FPInputs) FinancialPlanStatement {
	sources := core.Sum(in.Equity, in.Loans, in.OtherSources)
	uses := core.Sum(in.Investments, in.WorkingCapital, in.LoanRepayments, in.OtherUses)
	return FinancialPlanStatement{
		Month:        m,
		FPInputs:     in,
		TotalSources: sources,
		TotalUses:    uses,
		NetFinancing: sources.Sub(uses),
	}
}
