package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Monthly   Recurrence = "monthly"
	Quarterly Recurrence = "quarterly"
	Yearly    Recurrence = "yearly"
	OneTime   Recurrence = "one_time"
	Custom    Recurrence = "custom"
)

const (
	KindExpense      ObligationKind = "expense"
	KindSubscription ObligationKind = "subscription"
	KindLeasing      ObligationKind = "leasing"
	KindPersonnel    ObligationKind = "personnel"
	KindLoan         ObligationKind = "loan"
	KindDepreciation ObligationKind = "depreciation"
)

// Expense categories. Supplies is the cost-of-goods bucket; every other
// category is an operating expense.
const (
	CategoryRent                 = "rent"
	CategoryUtilities            = "utilities"
	CategorySupplies             = "supplies"
	CategoryMarketing            = "marketing"
	CategoryInsurance            = "insurance"
	CategoryMaintenance          = "maintenance"
	CategoryProfessionalServices = "professional_services"
	CategoryOther                = "other"
)

type (
	Recurrence     string
	ObligationKind string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// RecurringObligation is anything that produces a schedule of monthly
	// amounts: recurring expenses, subscriptions and leases.
	RecurringObligation struct {
		ID         int64
		Kind       ObligationKind
		Name       string
		Category   string
		Amount     Money
		Recurrence Recurrence
		StartDate  Date
		EndDate    Date // zero means open-ended
		IsActive   bool

		// DueMonths lists calendar months (1..12) for Custom recurrence.
		DueMonths []int
		// FirstPaymentAmount overrides the amount of the first payment (leases).
		FirstPaymentAmount *Money
		// OffPaymentMonths are 1-based payment ordinals that are skipped (leases).
		OffPaymentMonths []int
	}

	// Actuals are user-recorded facts about a projected entry. They are
	// never produced by projection and survive recalculation.
	Actuals struct {
		IsPaid       bool
		PaidDate     Date
		ActualAmount *Money
		Notes        string
	}

	// ProjectionEntry is one month of one obligation in the ledger.
	ProjectionEntry struct {
		Kind         ObligationKind
		ObligationID int64
		Name         string
		Category     string
		Month        Month
		Amount       Money
		PaymentDate  Date
		IsProjected  bool
		Actuals
	}

	// EntryKey identifies a ledger row.
	EntryKey struct {
		Kind         ObligationKind
		ObligationID int64
		Month        Month
	}
)

var (
	ErrInvalidDay        = errors.New("invalid day")
	ErrInvalidMonth      = errors.New("invalid month")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyName         = errors.New("empty name")
	ErrInvalidRecurrence = errors.New("invalid recurrence")
	ErrInvalidKind       = errors.New("invalid obligation kind")
	ErrEndBeforeStart    = errors.New("end date must not be before start date")
	ErrNoDueMonths       = errors.New("custom recurrence requires due months")
	ErrInvalidOrdinal    = errors.New("payment ordinals start at 1")
	ErrInvalidMethod     = errors.New("invalid depreciation method")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses "YYYY-MM-DD". An empty string yields the zero date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// IsEmpty returns true if the date is zero (optional dates).
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// MarshalJSON shadows the promoted time.Time method so dates travel as
// "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		return nil
	}
	return d.UnmarshalText([]byte(strings.Trim(s, `"`)))
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (r Recurrence) Valid() bool {
	switch r {
	case Monthly, Quarterly, Yearly, OneTime, Custom:
		return true
	}
	return false
}

// ParseRecurrence validates a recurrence coming from an API or a file.
func ParseRecurrence(s string) (Recurrence, error) {
	r := Recurrence(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", NewValidationError("recurrence", ErrInvalidRecurrence)
	}
	return r, nil
}

func (k ObligationKind) Valid() bool {
	switch k {
	case KindExpense, KindSubscription, KindLeasing, KindPersonnel, KindLoan, KindDepreciation:
		return true
	}
	return false
}

// ParseKind validates a kind coming from a URL or a message.
func ParseKind(s string) (ObligationKind, error) {
	k := ObligationKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", NewValidationError("kind", ErrInvalidKind)
	}
	return k, nil
}

// IsOperating reports whether the category counts as an operating
// expense rather than cost of goods.
func IsOperating(category string) bool {
	return category != CategorySupplies
}

func (ob RecurringObligation) Validate() error {
	if err := ob.StartDate.Validate(); err != nil {
		return NewValidationError("start_date", err)
	}
	if !ob.EndDate.IsEmpty() {
		if err := ob.EndDate.Validate(); err != nil {
			return NewValidationError("end_date", err)
		}
		if ob.EndDate.Before(ob.StartDate.Time) {
			return NewValidationError("end_date", ErrEndBeforeStart)
		}
	}
	if !ob.Recurrence.Valid() {
		return NewValidationError("recurrence", ErrInvalidRecurrence)
	}
	if ob.Kind != "" && !ob.Kind.Valid() {
		return NewValidationError("kind", ErrInvalidKind)
	}
	if strings.TrimSpace(ob.Name) == "" {
		return NewValidationError("name", ErrEmptyName)
	}
	if err := ob.Amount.Validate(); err != nil {
		return NewValidationError("amount", err)
	}
	if ob.Recurrence == Custom {
		if len(ob.DueMonths) == 0 {
			return NewValidationError("due_months", ErrNoDueMonths)
		}
		for _, m := range ob.DueMonths {
			if m < 1 || m > 12 {
				return NewValidationError("due_months", ErrInvalidMonth)
			}
		}
	}
	if ob.FirstPaymentAmount != nil && ob.FirstPaymentAmount.Cents < 0 {
		return NewValidationError("first_payment_amount", ErrInvalidAmount)
	}
	for _, o := range ob.OffPaymentMonths {
		if o < 1 {
			return NewValidationError("off_payment_months", ErrInvalidOrdinal)
		}
	}
	return nil
}

func (e ProjectionEntry) Key() EntryKey {
	return EntryKey{Kind: e.Kind, ObligationID: e.ObligationID, Month: e.Month}
}

// Effective is the amount that actually moved money: the recorded actual
// when one exists, otherwise the projected amount.
func (e ProjectionEntry) Effective() Money {
	if e.ActualAmount != nil {
		return *e.ActualAmount
	}
	return e.Amount
}

// Recorded reports whether a user has recorded anything on the entry.
func (a Actuals) Recorded() bool {
	return a.IsPaid || a.ActualAmount != nil || !a.PaidDate.IsEmpty() || a.Notes != ""
}

func (k EntryKey) String() string {
	return fmt.Sprintf("%s/%d/%s", k.Kind, k.ObligationID, k.Month)
}
