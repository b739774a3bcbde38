package statements

import (
	"errors"
	"fmt"
	"strings"

	"forecast/internal/core"
)

// BalanceMode selects what happens when the entered figures do not balance.
type BalanceMode string

const (
	// BalanceSurface books the residual as an explicit reconciling
	// adjustment inside equity. Retained earnings keep the entered figure.
	BalanceSurface BalanceMode = "surface"
	// BalanceStrict refuses to produce an unbalanced sheet.
	BalanceStrict BalanceMode = "strict"
)

var ErrUnbalanced = errors.New("balance sheet does not balance")

func ParseBalanceMode(s string) (BalanceMode, error) {
	switch m := BalanceMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return BalanceSurface, nil
	case BalanceSurface, BalanceStrict:
		return m, nil
	}
	return "", fmt.Errorf("unknown balance mode %q", s)
}

type BSInputs struct {
	CurrentAssets      core.Money `json:"current_assets"`
	FixedAssets        core.Money `json:"fixed_assets"`
	IntangibleAssets   core.Money `json:"intangible_assets"`
	CurrentLiabilities core.Money `json:"current_liabilities"`
	LongTermDebt       core.Money `json:"long_term_debt"`
	ShareCapital       core.Money `json:"share_capital"`
	RetainedEarnings   core.Money `json:"retained_earnings"`
}

type BalanceSheetStatement struct {
	Month core.Month `json:"month"`
	BSInputs
	TotalAssets      core.Money `json:"total_assets"`
	TotalLiabilities core.Money `json:"total_liabilities"`
	TotalEquity      core.Money `json:"total_equity"`
	// ReconcilingAdjustment is assets - (liabilities + share capital +
	// retained earnings). It is zero when the entered figures balance.
	ReconcilingAdjustment core.Money `json:"reconciling_adjustment"`
}

// IsBalanced reports whether the entered figures balanced without an
// adjustment.
func (b BalanceSheetStatement) IsBalanced() bool {
	return b.ReconcilingAdjustment.IsZero()
}

// BalanceSheet totals the sheet. Assets always equal liabilities plus
// equity in the returned statement; any gap is reported in
// ReconcilingAdjustment, or rejected in strict mode.
func BalanceSheet(m core.Month, in BSInputs, mode BalanceMode) (BalanceSheetStatement, error) {
	assets := core.Sum(in.CurrentAssets, in.FixedAssets, in.IntangibleAssets)
	liabilities := core.Sum(in.CurrentLiabilities, in.LongTermDebt)
	entered := core.Sum(in.ShareCapital, in.RetainedEarnings)
	residual := assets.Sub(liabilities.Add(entered))

	if mode == BalanceStrict && !residual.IsZero() {
		return BalanceSheetStatement{}, core.NewValidationError("balance_sheet",
			fmt.Errorf("%w: assets %s, liabilities %s, equity %s", ErrUnbalanced, assets, liabilities, entered))
	}
	return BalanceSheetStatement{
		Month:                 m,
		BSInputs:              in,
		TotalAssets:           assets,
		TotalLiabilities:      liabilities,
		TotalEquity:           entered.Add(residual),
		ReconcilingAdjustment: residual,
	}, nil
}
