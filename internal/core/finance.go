package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	StraightLine     DepreciationMethod = "straight_line"
	DecliningBalance DepreciationMethod = "declining_balance"
)

type (
	DepreciationMethod string

	Personnel struct {
		ID         int64
		FirstName  string
		LastName   string
		Position   string
		BaseSalary Money // gross monthly salary
		StartDate  Date
		EndDate    Date
		IsActive   bool
	}

	// SalaryProjection is one month of one employee's payroll.
	SalaryProjection struct {
		PersonnelID      int64
		Month            Month
		BruteSalary      Money
		SocialTaxes      Money
		NetSalary        Money
		EmployerTaxes    Money
		NetPaymentDate   Date
		TaxesPaymentDate Date
		IsProjected      bool
		SalaryActuals
	}

	SalaryActuals struct {
		IsNetPaid         bool
		IsTaxesPaid       bool
		ActualNetAmount   *Money
		ActualTaxesAmount *Money
		Notes             string
	}

	SalaryKey struct {
		PersonnelID int64
		Month       Month
	}

	Loan struct {
		ID                int64
		Name              string
		Principal         Money
		AnnualRatePercent decimal.Decimal
		DurationMonths    int
		StartDate         Date
		// OffPaymentMonths are 1-based payment numbers that only pay interest.
		OffPaymentMonths []int
	}

	LoanPayment struct {
		LoanID    int64
		Number    int
		Month     Month
		Date      Date
		Principal Money
		Interest  Money
		Total     Money
		Remaining Money
		Deferred  bool
	}

	Investment struct {
		ID               int64
		Name             string
		Category         string
		Amount           Money
		PurchaseDate     Date
		UsefulLifeMonths int
		ResidualValue    Money
		Method           DepreciationMethod
	}

	DepreciationEntry struct {
		InvestmentID int64
		Month        Month
		Depreciation Money
		Accumulated  Money
		BookValue    Money
	}
)

func (p Personnel) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

func (p Personnel) Validate() error {
	if err := p.StartDate.Validate(); err != nil {
		return NewValidationError("start_date", err)
	}
	if !p.EndDate.IsEmpty() && p.EndDate.Before(p.StartDate.Time) {
		return NewValidationError("end_date", ErrEndBeforeStart)
	}
	if p.BaseSalary.Cents < 0 {
		return NewValidationError("base_salary", ErrInvalidAmount)
	}
	if p.FullName() == "" {
		return NewValidationError("name", ErrEmptyName)
	}
	return nil
}

func (s SalaryProjection) Key() SalaryKey {
	return SalaryKey{PersonnelID: s.PersonnelID, Month: s.Month}
}

// Recorded reports whether any payroll payment has been recorded.
func (a SalaryActuals) Recorded() bool {
	return a.IsNetPaid || a.IsTaxesPaid || a.ActualNetAmount != nil || a.ActualTaxesAmount != nil || a.Notes != ""
}

// EmployerCost is what the company pays for the month.
func (s SalaryProjection) EmployerCost() Money {
	return s.BruteSalary.Add(s.EmployerTaxes)
}

// LedgerEntry folds the payroll month into a generic ledger entry so it
// can be aggregated with the other obligations.
func (s SalaryProjection) LedgerEntry(name, position string) ProjectionEntry {
	e := ProjectionEntry{
		Kind:         KindPersonnel,
		ObligationID: s.PersonnelID,
		Name:         name,
		Category:     position,
		Month:        s.Month,
		Amount:       s.EmployerCost(),
		PaymentDate:  s.NetPaymentDate,
		IsProjected:  s.IsProjected,
	}
	e.IsPaid = s.IsNetPaid && s.IsTaxesPaid
	if s.ActualNetAmount != nil || s.ActualTaxesAmount != nil {
		actual := s.BruteSalary.Add(s.EmployerTaxes)
		if s.ActualNetAmount != nil {
			actual = actual.Sub(s.NetSalary).Add(*s.ActualNetAmount)
		}
		if s.ActualTaxesAmount != nil {
			actual = actual.Sub(s.SocialTaxes.Add(s.EmployerTaxes)).Add(*s.ActualTaxesAmount)
		}
		e.ActualAmount = &actual
	}
	return e
}

func (l Loan) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return NewValidationError("name", ErrEmptyName)
	}
	if err := l.Principal.Validate(); err != nil {
		return NewValidationError("principal", err)
	}
	if l.AnnualRatePercent.IsNegative() {
		return NewValidationError("annual_rate", ErrInvalidAmount)
	}
	if l.DurationMonths < 1 {
		return NewValidationError("duration_months", ErrInvalidOrdinal)
	}
	if err := l.StartDate.Validate(); err != nil {
		return NewValidationError("start_date", err)
	}
	for _, o := range l.OffPaymentMonths {
		if o < 1 {
			return NewValidationError("off_payment_months", ErrInvalidOrdinal)
		}
	}
	return nil
}

func (m DepreciationMethod) Valid() bool {
	return m == StraightLine || m == DecliningBalance
}

func (i Investment) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return NewValidationError("name", ErrEmptyName)
	}
	if err := i.Amount.Validate(); err != nil {
		return NewValidationError("amount", err)
	}
	if i.ResidualValue.Cents < 0 || i.ResidualValue.Cents > i.Amount.Cents {
		return NewValidationError("residual_value", ErrInvalidAmount)
	}
	if i.UsefulLifeMonths < 1 {
		return NewValidationError("useful_life_months", ErrInvalidOrdinal)
	}
	if err := i.PurchaseDate.Validate(); err != nil {
		return NewValidationError("purchase_date", err)
	}
	if !i.Method.Valid() {
		return NewValidationError("method", ErrInvalidMethod)
	}
	return nil
}
