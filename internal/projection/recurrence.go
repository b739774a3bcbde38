// Package projection expands recurring obligations into monthly ledger
// entries over a window of months.
//
// Each recurrence has its own rule that decides whether a month carries a
// payment. Rules are looked up in a per-Projector registry so callers can
// add new recurrences without touching the projection loop.
package projection

import (
	"fmt"
	"slices"

	"forecast/internal/core"
)

// RecurrenceRule decides whether month m carries a payment for ob.
// m is always inside the obligation's active range.
type RecurrenceRule interface {
	Includes(m core.Month, ob core.RecurringObligation) bool
}

// MonthlyRule: every month.
type MonthlyRule struct{}

func (MonthlyRule) Includes(core.Month, core.RecurringObligation) bool { return true }

// QuarterlyRule fires every third month counted from the start month.
// Distances use absolute month indexes, so a lease starting in November
// fires in February of the following year.
type QuarterlyRule struct{}

func (QuarterlyRule) Includes(m core.Month, ob core.RecurringObligation) bool {
	d := core.MonthsBetween(core.MonthOf(ob.StartDate.Time), m)
	return d >= 0 && d%3 == 0
}

// YearlyRule fires on the anniversary month.
type YearlyRule struct{}

func (YearlyRule) Includes(m core.Month, ob core.RecurringObligation) bool {
	return m.Month == ob.StartDate.Time.Month()
}

// OneTimeRule fires only in the start month.
type OneTimeRule struct{}

func (OneTimeRule) Includes(m core.Month, ob core.RecurringObligation) bool {
	return m == core.MonthOf(ob.StartDate.Time)
}

// CustomRule fires in the calendar months listed in DueMonths.
type CustomRule struct{}

func (CustomRule) Includes(m core.Month, ob core.RecurringObligation) bool {
	return slices.Contains(ob.DueMonths, int(m.Month))
}

func defaultRules() map[core.Recurrence]RecurrenceRule {
	return map[core.Recurrence]RecurrenceRule{
		core.Monthly:   MonthlyRule{},
		core.Quarterly: QuarterlyRule{},
		core.Yearly:    YearlyRule{},
		core.OneTime:   OneTimeRule{},
		core.Custom:    CustomRule{},
	}
}

// Projector turns obligations into ledger entries. The zero value is not
// usable; build one with NewProjector.
type Projector struct {
	rules map[core.Recurrence]RecurrenceRule
}

func NewProjector() *Projector {
	return &Projector{rules: defaultRules()}
}

// WithRule returns a copy of p that uses rule for recurrence r.
func (p *Projector) WithRule(r core.Recurrence, rule RecurrenceRule) *Projector {
	rules := make(map[core.Recurrence]RecurrenceRule, len(p.rules)+1)
	for k, v := range p.rules {
		rules[k] = v
	}
	rules[r] = rule
	return &Projector{rules: rules}
}

// Rule returns the rule registered for r.
func (p *Projector) Rule(r core.Recurrence) (RecurrenceRule, error) {
	rule, ok := p.rules[r]
	if !ok {
		return nil, fmt.Errorf("unknown recurrence: %s", r)
	}
	return rule, nil
}

// Project lists the payments of ob inside w. Months after asOf are
// flagged as projected. An obligation that is inactive or does not
// overlap the window yields no entries and no error.
func (p *Projector) Project(ob core.RecurringObligation, w core.Window, asOf core.Month) ([]core.ProjectionEntry, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if err := ob.Validate(); err != nil {
		return nil, err
	}
	if !ob.IsActive {
		return nil, nil
	}
	rule, err := p.Rule(ob.Recurrence)
	if err != nil {
		return nil, core.NewValidationError("recurrence", err)
	}
	active, ok := core.ActiveWindow(w, ob.StartDate, ob.EndDate)
	if !ok {
		return nil, nil
	}

	var entries []core.ProjectionEntry
	for _, m := range active.Months() {
		if !rule.Includes(m, ob) {
			continue
		}
		entries = append(entries, core.ProjectionEntry{
			Kind:         ob.Kind,
			ObligationID: ob.ID,
			Name:         ob.Name,
			Category:     ob.Category,
			Month:        m,
			Amount:       ob.Amount,
			PaymentDate:  m.Day(ob.StartDate.Day()),
			IsProjected:  m.After(asOf),
		})
	}
	return entries, nil
}

var defaultProjector = NewProjector()

// Project runs the default projector.
func Project(ob core.RecurringObligation, w core.Window, asOf core.Month) ([]core.ProjectionEntry, error) {
	return defaultProjector.Project(ob, w, asOf)
}
