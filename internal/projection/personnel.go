package projection

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"forecast/internal/core"
)

// Policy holds the payroll rates and due days used by salary projection.
// It is passed explicitly to every call.
type Policy struct {
	SocialSecurityRate       decimal.Decimal
	EmployerContributionRate decimal.Decimal
	NetPaymentDay            int
	TaxesPaymentDay          int
}

var (
	ErrRateOutOfRange = errors.New("rate must be between 0 and 1")
	ErrDayOutOfRange  = errors.New("day must be between 1 and 31")
)

// DefaultPolicy returns the standard payroll policy: 18.75% employee
// social security, 20% employer contributions, net salary on the 5th and
// taxes on the 15th.
func DefaultPolicy() Policy {
	return Policy{
		SocialSecurityRate:       decimal.RequireFromString("0.1875"),
		EmployerContributionRate: decimal.RequireFromString("0.20"),
		NetPaymentDay:            5,
		TaxesPaymentDay:          15,
	}
}

func (p Policy) Validate() error {
	one := decimal.NewFromInt(1)
	if p.SocialSecurityRate.IsNegative() || p.SocialSecurityRate.GreaterThan(one) {
		return core.NewValidationError("social_security_rate", ErrRateOutOfRange)
	}
	if p.EmployerContributionRate.IsNegative() || p.EmployerContributionRate.GreaterThan(one) {
		return core.NewValidationError("employer_contribution_rate", ErrRateOutOfRange)
	}
	if p.NetPaymentDay < 1 || p.NetPaymentDay > 31 {
		return core.NewValidationError("net_payment_day", ErrDayOutOfRange)
	}
	if p.TaxesPaymentDay < 1 || p.TaxesPaymentDay > 31 {
		return core.NewValidationError("taxes_payment_day", ErrDayOutOfRange)
	}
	return nil
}

// SalaryOverride replaces policy-derived figures for one month. Missing
// components are derived from the policy using the override's gross.
type SalaryOverride struct {
	BruteSalary   *core.Money
	SocialTaxes   *core.Money
	NetSalary     *core.Money
	EmployerTaxes *core.Money
}

// PersonnelProjector computes the monthly payroll of one employee.
type PersonnelProjector struct {
	Policy Policy
}

func NewPersonnelProjector(policy Policy) PersonnelProjector {
	return PersonnelProjector{Policy: policy}
}

// Project lists one SalaryProjection per active month of p inside w.
func (pp PersonnelProjector) Project(p core.Personnel, w core.Window, asOf core.Month, overrides map[core.Month]SalaryOverride) ([]core.SalaryProjection, error) {
	if err := pp.Policy.Validate(); err != nil {
		return nil, err
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, nil
	}
	active, ok := core.ActiveWindow(w, p.StartDate, p.EndDate)
	if !ok {
		return nil, nil
	}

	out := make([]core.SalaryProjection, 0, active.Len())
	for _, m := range active.Months() {
		s := pp.month(p.ID, m, p.BaseSalary, overrides[m])
		s.IsProjected = m.After(asOf)
		out = append(out, s)
	}
	return out, nil
}

func (pp PersonnelProjector) month(id int64, m core.Month, base core.Money, o SalaryOverride) core.SalaryProjection {
	brute := base
	if o.BruteSalary != nil {
		brute = *o.BruteSalary
	}
	social := brute.MulRate(pp.Policy.SocialSecurityRate)
	if o.SocialTaxes != nil {
		social = *o.SocialTaxes
	}
	net := brute.Sub(social)
	if o.NetSalary != nil {
		net = *o.NetSalary
	}
	employer := brute.MulRate(pp.Policy.EmployerContributionRate)
	if o.EmployerTaxes != nil {
		employer = *o.EmployerTaxes
	}
	return core.SalaryProjection{
		PersonnelID:      id,
		Month:            m,
		BruteSalary:      brute,
		SocialTaxes:      social,
		NetSalary:        net,
		EmployerTaxes:    employer,
		NetPaymentDate:   m.Day(pp.Policy.NetPaymentDay),
		TaxesPaymentDate: m.Day(pp.Policy.TaxesPaymentDay),
	}
}

// SalaryPeriod is the period a salary figure is quoted in.
type SalaryPeriod string

const (
	PerMonth SalaryPeriod = "monthly"
	PerYear  SalaryPeriod = "yearly"
	PerWeek  SalaryPeriod = "weekly"
)

// NormalizeSalary converts a salary quoted per period into a monthly gross.
func NormalizeSalary(amount core.Money, period SalaryPeriod) (core.Money, error) {
	switch SalaryPeriod(strings.ToLower(string(period))) {
	case PerMonth, "":
		return amount, nil
	case PerYear:
		return amount.DivInt(12), nil
	case PerWeek:
		return core.FromDecimal(amount.Decimal().Mul(decimal.NewFromInt(52)).Div(decimal.NewFromInt(12))), nil
	}
	return core.Money{}, core.NewValidationError("salary_period", fmt.Errorf("unknown period %q", period))
}
