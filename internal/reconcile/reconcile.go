// Package reconcile merges freshly projected entries with what is already
// stored, so a recalculation updates projected amounts without losing the
// payments users have recorded.
//
// Rows are matched by key. When a key exists on both sides the fresh
// projection wins for amounts and labels, and the stored actuals are
// carried forward unchanged. A stored row with no fresh counterpart is
// left alone when it lies outside the re-projected window or carries
// recorded actuals; otherwise the obligation no longer produces it and it
// is planned for deletion.
package reconcile

import (
	"cmp"
	"slices"

	"forecast/internal/core"
)

// Plan is the write plan produced by a reconciliation.
type Plan[T any] struct {
	Insert    []T
	Update    []T
	Unchanged []T
	// Delete holds stored rows inside the window that the projection no
	// longer produces and nobody has recorded anything on.
	Delete []T
	// Duplicates counts fresh rows that repeated a key; the last one won.
	Duplicates int
}

// All returns every row that remains after the plan is applied, in key
// order.
func (p Plan[T]) All(compare func(a, b T) int) []T {
	out := make([]T, 0, len(p.Insert)+len(p.Update)+len(p.Unchanged))
	out = append(out, p.Insert...)
	out = append(out, p.Update...)
	out = append(out, p.Unchanged...)
	slices.SortFunc(out, compare)
	return out
}

// Writes returns the rows that need to be persisted.
func (p Plan[T]) Writes() []T {
	return append(slices.Clone(p.Insert), p.Update...)
}

type rules[T any, K comparable] struct {
	key      func(T) K
	month    func(T) core.Month
	recorded func(T) bool
	carry    func(fresh, stored T) T
	equal    func(a, b T) bool
}

func diff[T any, K comparable](fresh, existing []T, w core.Window, r rules[T, K]) Plan[T] {
	var plan Plan[T]
	latest := make(map[K]T, len(fresh))
	order := make([]K, 0, len(fresh))
	for _, f := range fresh {
		k := r.key(f)
		if _, dup := latest[k]; dup {
			plan.Duplicates++
		} else {
			order = append(order, k)
		}
		latest[k] = f
	}

	stored := make(map[K]T, len(existing))
	for _, e := range existing {
		stored[r.key(e)] = e
	}

	for _, k := range order {
		f := latest[k]
		old, ok := stored[k]
		if !ok {
			plan.Insert = append(plan.Insert, f)
			continue
		}
		merged := r.carry(f, old)
		if r.equal(merged, old) {
			plan.Unchanged = append(plan.Unchanged, old)
		} else {
			plan.Update = append(plan.Update, merged)
		}
		delete(stored, k)
	}
	for _, e := range existing {
		k := r.key(e)
		if _, ok := stored[k]; !ok {
			continue
		}
		delete(stored, k)
		if w.Contains(r.month(e)) && !r.recorded(e) {
			plan.Delete = append(plan.Delete, e)
		} else {
			plan.Unchanged = append(plan.Unchanged, e)
		}
	}
	return plan
}

func entryMonth(e core.ProjectionEntry) core.Month { return e.Month }

func entryRecorded(e core.ProjectionEntry) bool { return e.Actuals.Recorded() }

var entryRules = rules[core.ProjectionEntry, core.EntryKey]{
	key:      core.ProjectionEntry.Key,
	month:    entryMonth,
	recorded: entryRecorded,
	carry: func(fresh, stored core.ProjectionEntry) core.ProjectionEntry {
		fresh.Actuals = stored.Actuals
		return fresh
	},
	equal: sameEntry,
}

func sameEntry(a, b core.ProjectionEntry) bool {
	return a.Key() == b.Key() &&
		a.Name == b.Name &&
		a.Category == b.Category &&
		a.Amount == b.Amount &&
		a.PaymentDate.Equal(b.PaymentDate.Time) &&
		a.IsProjected == b.IsProjected
}

// Diff computes the write plan for ledger entries re-projected over w.
func Diff(fresh, existing []core.ProjectionEntry, w core.Window) Plan[core.ProjectionEntry] {
	return diff(fresh, existing, w, entryRules)
}

// Reconcile returns the full set of ledger rows after merging fresh,
// projected over w, into existing. Rows are ordered by key.
func Reconcile(fresh, existing []core.ProjectionEntry, w core.Window) []core.ProjectionEntry {
	return Diff(fresh, existing, w).All(CompareKeys)
}

// DeleteKeys lists the keys of the rows a plan deletes.
func DeleteKeys(p Plan[core.ProjectionEntry]) []core.EntryKey {
	keys := make([]core.EntryKey, 0, len(p.Delete))
	for _, e := range p.Delete {
		keys = append(keys, e.Key())
	}
	return keys
}

// CompareKeys orders entries by kind, obligation and month.
func CompareKeys(a, b core.ProjectionEntry) int {
	return cmp.Or(
		cmp.Compare(a.Kind, b.Kind),
		cmp.Compare(a.ObligationID, b.ObligationID),
		cmp.Compare(a.Month.Index(), b.Month.Index()),
	)
}

var salaryRules = rules[core.SalaryProjection, core.SalaryKey]{
	key:      core.SalaryProjection.Key,
	month:    func(s core.SalaryProjection) core.Month { return s.Month },
	recorded: func(s core.SalaryProjection) bool { return s.SalaryActuals.Recorded() },
	carry: func(fresh, stored core.SalaryProjection) core.SalaryProjection {
		fresh.SalaryActuals = stored.SalaryActuals
		return fresh
	},
	equal: func(a, b core.SalaryProjection) bool {
		return a.Key() == b.Key() &&
			a.BruteSalary == b.BruteSalary &&
			a.SocialTaxes == b.SocialTaxes &&
			a.NetSalary == b.NetSalary &&
			a.EmployerTaxes == b.EmployerTaxes &&
			a.NetPaymentDate.Equal(b.NetPaymentDate.Time) &&
			a.TaxesPaymentDate.Equal(b.TaxesPaymentDate.Time) &&
			a.IsProjected == b.IsProjected
	},
}

// DiffSalaries computes the write plan for payroll rows.
func DiffSalaries(fresh, existing []core.SalaryProjection, w core.Window) Plan[core.SalaryProjection] {
	return diff(fresh, existing, w, salaryRules)
}

// ReconcileSalaries is Reconcile for payroll rows.
func ReconcileSalaries(fresh, existing []core.SalaryProjection, w core.Window) []core.SalaryProjection {
	return DiffSalaries(fresh, existing, w).All(CompareSalaries)
}

func SalaryDeleteKeys(p Plan[core.SalaryProjection]) []core.SalaryKey {
	keys := make([]core.SalaryKey, 0, len(p.Delete))
	for _, s := range p.Delete {
		keys = append(keys, s.Key())
	}
	return keys
}

func CompareSalaries(a, b core.SalaryProjection) int {
	return cmp.Or(
		cmp.Compare(a.PersonnelID, b.PersonnelID),
		cmp.Compare(a.Month.Index(), b.Month.Index()),
	)
}

var mirrorRules = rules[core.ProjectionEntry, core.EntryKey]{
	key:      core.ProjectionEntry.Key,
	month:    entryMonth,
	recorded: entryRecorded,
	carry:    func(fresh, _ core.ProjectionEntry) core.ProjectionEntry { return fresh },
	equal: func(a, b core.ProjectionEntry) bool {
		return sameEntry(a, b) && sameActuals(a.Actuals, b.Actuals)
	},
}

func sameActuals(a, b core.Actuals) bool {
	if (a.ActualAmount == nil) != (b.ActualAmount == nil) {
		return false
	}
	if a.ActualAmount != nil && *a.ActualAmount != *b.ActualAmount {
		return false
	}
	return a.IsPaid == b.IsPaid && a.PaidDate.Equal(b.PaidDate.Time) && a.Notes == b.Notes
}

// Mirror computes the write plan for ledger rows derived from another
// table, such as payroll. The fresh row wins entirely, actuals included.
func Mirror(fresh, existing []core.ProjectionEntry, w core.Window) Plan[core.ProjectionEntry] {
	return diff(fresh, existing, w, mirrorRules)
}
