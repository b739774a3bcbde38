package http

import (
	"forecast/internal/core"
	"forecast/internal/services"
	"forecast/internal/storage"
)

// JSON shapes of domain values. Domain types carry no tags so the wire
// format is decided here.

type entryView struct {
	Kind         core.ObligationKind `json:"kind"`
	ObligationID int64               `json:"obligation_id"`
	Name         string              `json:"name"`
	Category     string              `json:"category"`
	Month        core.Month          `json:"month"`
	Amount       core.Money          `json:"amount"`
	PaymentDate  core.Date           `json:"payment_date"`
	IsProjected  bool                `json:"is_projected"`
	IsPaid       bool                `json:"is_paid"`
	PaidDate     *core.Date          `json:"paid_date,omitempty"`
	ActualAmount *core.Money         `json:"actual_amount,omitempty"`
	Notes        string              `json:"notes,omitempty"`
}

func newEntryView(e core.ProjectionEntry) entryView {
	v := entryView{
		Kind:         e.Kind,
		ObligationID: e.ObligationID,
		Name:         e.Name,
		Category:     e.Category,
		Month:        e.Month,
		Amount:       e.Amount,
		PaymentDate:  e.PaymentDate,
		IsProjected:  e.IsProjected,
		IsPaid:       e.IsPaid,
		ActualAmount: e.ActualAmount,
		Notes:        e.Notes,
	}
	if !e.PaidDate.IsEmpty() {
		d := e.PaidDate
		v.PaidDate = &d
	}
	return v
}

func entryViews(entries []core.ProjectionEntry) []entryView {
	out := make([]entryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, newEntryView(e))
	}
	return out
}

type salaryView struct {
	PersonnelID       int64       `json:"personnel_id"`
	Month             core.Month  `json:"month"`
	BruteSalary       core.Money  `json:"brute_salary"`
	SocialTaxes       core.Money  `json:"social_taxes"`
	NetSalary         core.Money  `json:"net_salary"`
	EmployerTaxes     core.Money  `json:"employer_taxes"`
	EmployerCost      core.Money  `json:"employer_cost"`
	NetPaymentDate    core.Date   `json:"net_payment_date"`
	TaxesPaymentDate  core.Date   `json:"taxes_payment_date"`
	IsProjected       bool        `json:"is_projected"`
	IsNetPaid         bool        `json:"is_net_paid"`
	IsTaxesPaid       bool        `json:"is_taxes_paid"`
	ActualNetAmount   *core.Money `json:"actual_net_amount,omitempty"`
	ActualTaxesAmount *core.Money `json:"actual_taxes_amount,omitempty"`
	Notes             string      `json:"notes,omitempty"`
}

func salaryViews(rows []core.SalaryProjection) []salaryView {
	out := make([]salaryView, 0, len(rows))
	for _, s := range rows {
		out = append(out, salaryView{
			PersonnelID:       s.PersonnelID,
			Month:             s.Month,
			BruteSalary:       s.BruteSalary,
			SocialTaxes:       s.SocialTaxes,
			NetSalary:         s.NetSalary,
			EmployerTaxes:     s.EmployerTaxes,
			EmployerCost:      s.EmployerCost(),
			NetPaymentDate:    s.NetPaymentDate,
			TaxesPaymentDate:  s.TaxesPaymentDate,
			IsProjected:       s.IsProjected,
			IsNetPaid:         s.IsNetPaid,
			IsTaxesPaid:       s.IsTaxesPaid,
			ActualNetAmount:   s.ActualNetAmount,
			ActualTaxesAmount: s.ActualTaxesAmount,
			Notes:             s.Notes,
		})
	}
	return out
}

type resultView struct {
	Kind         core.ObligationKind `json:"kind"`
	ObligationID int64               `json:"obligation_id"`
	Window       core.Window         `json:"window"`
	Inserted     int                 `json:"inserted"`
	Updated      int                 `json:"updated"`
	Unchanged    int                 `json:"unchanged"`
	Deleted      int                 `json:"deleted"`
	Entries      []entryView         `json:"entries"`
}

func newResultView(r services.RecalcResult) *resultView {
	return &resultView{
		Kind:         r.Kind,
		ObligationID: r.ObligationID,
		Window:       r.Window,
		Inserted:     r.Inserted,
		Updated:      r.Updated,
		Unchanged:    r.Unchanged,
		Deleted:      r.Deleted,
		Entries:      entryViews(r.Entries),
	}
}

type failureView struct {
	Kind         core.ObligationKind `json:"kind"`
	ObligationID int64               `json:"obligation_id"`
	Error        string              `json:"error"`
}

type reportView struct {
	RunID     string        `json:"run_id"`
	Window    core.Window   `json:"window"`
	Succeeded int           `json:"succeeded"`
	Inserted  int           `json:"inserted"`
	Updated   int           `json:"updated"`
	Deleted   int           `json:"deleted"`
	Failed    []failureView `json:"failed"`
}

func newReportView(r services.BatchReport) *reportView {
	v := &reportView{
		RunID:     r.RunID.String(),
		Window:    r.Window,
		Succeeded: r.Succeeded,
		Inserted:  r.Inserted,
		Updated:   r.Updated,
		Deleted:   r.Deleted,
		Failed:    make([]failureView, 0, len(r.Failed)),
	}
	for _, f := range r.Failed {
		v.Failed = append(v.Failed, failureView{Kind: f.Kind, ObligationID: f.ObligationID, Error: f.Err.Error()})
	}
	return v
}

type outcomeView struct {
	Queued bool        `json:"queued"`
	RunID  string      `json:"run_id,omitempty"`
	Result *resultView `json:"result,omitempty"`
	Report *reportView `json:"report,omitempty"`
}

func newOutcomeView(o services.Outcome) outcomeView {
	v := outcomeView{Queued: o.Queued, RunID: o.RunID}
	if o.Result != nil {
		v.Result = newResultView(*o.Result)
	}
	if o.Report != nil {
		v.Report = newReportView(*o.Report)
	}
	return v
}

type categoryView struct {
	Name   string     `json:"name"`
	Amount core.Money `json:"amount"`
}

func categoryViews(in []core.CategoryAmount) []categoryView {
	out := make([]categoryView, 0, len(in))
	for _, c := range in {
		out = append(out, categoryView{Name: c.Name, Amount: c.Amount})
	}
	return out
}

type overviewView struct {
	Month      core.Month                         `json:"month"`
	Total      core.Money                         `json:"total"`
	Paid       core.Money                         `json:"paid"`
	Projected  core.Money                         `json:"projected"`
	ByCategory []categoryView                     `json:"by_category"`
	ByKind     map[core.ObligationKind]core.Money `json:"by_kind"`
}

func overviewViews(in []core.MonthOverview) []overviewView {
	out := make([]overviewView, 0, len(in))
	for _, o := range in {
		out = append(out, overviewView{
			Month:      o.Month,
			Total:      o.Total,
			Paid:       o.Paid,
			Projected:  o.Projected,
			ByCategory: categoryViews(o.ByCategory),
			ByKind:     o.ByKind,
		})
	}
	return out
}

type budgetLineView struct {
	BudgetID    int64      `json:"budget_id"`
	AccountPath string     `json:"account_path"`
	Month       core.Month `json:"month"`
	Amount      core.Money `json:"amount"`
}

func budgetViews(lines []storage.BudgetEntry) []budgetLineView {
	out := make([]budgetLineView, 0, len(lines))
	for _, l := range lines {
		out = append(out, budgetLineView{BudgetID: l.BudgetID, AccountPath: l.AccountPath, Month: l.Month, Amount: l.Amount})
	}
	return out
}
