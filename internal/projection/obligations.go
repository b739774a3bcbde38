package projection

import (
	"slices"

	"forecast/internal/core"
)

// ObligationProjector projects one kind of recurring obligation.
type ObligationProjector interface {
	Project(ob core.RecurringObligation, w core.Window, asOf core.Month) ([]core.ProjectionEntry, error)
}

// ExpenseProjector projects recurring operating expenses.
type ExpenseProjector struct{ P *Projector }

func (e ExpenseProjector) Project(ob core.RecurringObligation, w core.Window, asOf core.Month) ([]core.ProjectionEntry, error) {
	ob.Kind = core.KindExpense
	if ob.Category == "" {
		ob.Category = core.CategoryOther
	}
	return projector(e.P).Project(ob, w, asOf)
}

// SubscriptionProjector projects software and service subscriptions.
type SubscriptionProjector struct{ P *Projector }

func (s SubscriptionProjector) Project(ob core.RecurringObligation, w core.Window, asOf core.Month) ([]core.ProjectionEntry, error) {
	ob.Kind = core.KindSubscription
	if ob.Category == "" {
		ob.Category = string(core.KindSubscription)
	}
	return projector(s.P).Project(ob, w, asOf)
}

// LeasingProjector projects lease payments. Payment ordinals are counted
// from the lease start, never from the window, so the first-payment
// override and the off-payment months land on the same months whatever
// window is asked for.
type LeasingProjector struct{ P *Projector }

func (l LeasingProjector) Project(ob core.RecurringObligation, w core.Window, asOf core.Month) ([]core.ProjectionEntry, error) {
	ob.Kind = core.KindLeasing
	if ob.Category == "" {
		ob.Category = string(core.KindLeasing)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	start := core.MonthOf(ob.StartDate.Time)
	if w.End.Before(start) {
		return projector(l.P).Project(ob, w, asOf)
	}
	// Project from the lease start so every payment gets its ordinal.
	full := core.Window{Start: start, End: w.End}
	all, err := projector(l.P).Project(ob, full, asOf)
	if err != nil {
		return nil, err
	}

	var out []core.ProjectionEntry
	for i, e := range all {
		ordinal := i + 1
		if slices.Contains(ob.OffPaymentMonths, ordinal) {
			continue
		}
		if ordinal == 1 && ob.FirstPaymentAmount != nil {
			e.Amount = *ob.FirstPaymentAmount
		}
		if w.Contains(e.Month) {
			out = append(out, e)
		}
	}
	return out, nil
}

// ForKind returns the projector for a ledger kind. Personnel, loans and
// depreciation have their own schedules and are not handled here.
func ForKind(kind core.ObligationKind, p *Projector) (ObligationProjector, error) {
	switch kind {
	case core.KindExpense:
		return ExpenseProjector{P: p}, nil
	case core.KindSubscription:
		return SubscriptionProjector{P: p}, nil
	case core.KindLeasing:
		return LeasingProjector{P: p}, nil
	}
	return nil, core.NewValidationError("kind", core.ErrInvalidKind)
}

func projector(p *Projector) *Projector {
	if p == nil {
		return defaultProjector
	}
	return p
}
