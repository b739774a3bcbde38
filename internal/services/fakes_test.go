package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"forecast/internal/core"
	"forecast/internal/statements"
	"forecast/internal/storage"
)

// memStore is an in-memory stand-in for the SQLite repository.
type memStore struct {
	mu          sync.Mutex
	obligations map[core.EntryKey]core.RecurringObligation
	personnel   map[int64]core.Personnel
	loans       map[int64]core.Loan
	investments map[int64]core.Investment
	ledger      map[core.EntryKey]core.ProjectionEntry
	salaries    map[core.SalaryKey]core.SalaryProjection
	stmts       map[string][]byte
	budget      map[string]storage.BudgetEntry
	upserts     int
	failUpsert  error
	// beforeWrite runs at the start of every ledger write, outside the lock.
	beforeWrite func()
}

func newMemStore() *memStore {
	return &memStore{
		obligations: map[core.EntryKey]core.RecurringObligation{},
		personnel:   map[int64]core.Personnel{},
		loans:       map[int64]core.Loan{},
		investments: map[int64]core.Investment{},
		ledger:      map[core.EntryKey]core.ProjectionEntry{},
		salaries:    map[core.SalaryKey]core.SalaryProjection{},
		stmts:       map[string][]byte{},
		budget:      map[string]storage.BudgetEntry{},
	}
}

func (s *memStore) addObligation(ob core.RecurringObligation) {
	s.obligations[core.EntryKey{Kind: ob.Kind, ObligationID: ob.ID}] = ob
}

func (s *memStore) GetObligation(_ context.Context, kind core.ObligationKind, id int64) (core.RecurringObligation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ob, ok := s.obligations[core.EntryKey{Kind: kind, ObligationID: id}]
	if !ok {
		return core.RecurringObligation{}, fmt.Errorf("%s %d: %w", kind, id, core.ErrNotFound)
	}
	return ob, nil
}

func (s *memStore) ListObligations(_ context.Context, kind core.ObligationKind, activeOnly bool) ([]core.RecurringObligation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.RecurringObligation
	for _, ob := range s.obligations {
		if (kind == "" || ob.Kind == kind) && (!activeOnly || ob.IsActive) {
			out = append(out, ob)
		}
	}
	return out, nil
}

func (s *memStore) GetPersonnel(_ context.Context, id int64) (core.Personnel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.personnel[id]
	if !ok {
		return core.Personnel{}, fmt.Errorf("personnel %d: %w", id, core.ErrNotFound)
	}
	return p, nil
}

func (s *memStore) ListPersonnel(_ context.Context, activeOnly bool) ([]core.Personnel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Personnel
	for _, p := range s.personnel {
		if !activeOnly || p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memStore) GetLoan(_ context.Context, id int64) (core.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loans[id]
	if !ok {
		return core.Loan{}, fmt.Errorf("loan %d: %w", id, core.ErrNotFound)
	}
	return l, nil
}

func (s *memStore) ListLoans(context.Context) ([]core.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Loan
	for _, l := range s.loans {
		out = append(out, l)
	}
	return out, nil
}

func (s *memStore) GetInvestment(_ context.Context, id int64) (core.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.investments[id]
	if !ok {
		return core.Investment{}, fmt.Errorf("investment %d: %w", id, core.ErrNotFound)
	}
	return inv, nil
}

func (s *memStore) ListInvestments(context.Context) ([]core.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Investment
	for _, inv := range s.investments {
		out = append(out, inv)
	}
	return out, nil
}

func (s *memStore) ListProjections(_ context.Context, kind core.ObligationKind, id int64, w core.Window) ([]core.ProjectionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.ProjectionEntry
	for k, e := range s.ledger {
		if k.Kind == kind && k.ObligationID == id && w.Contains(k.Month) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) ListAllProjections(_ context.Context, w core.Window) ([]core.ProjectionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.ProjectionEntry
	for k, e := range s.ledger {
		if w.Contains(k.Month) {
			out = append(out, e)
		}
	}
	return out, nil
}

// WriteProjections follows the SQLite semantics: stored actuals win unless
// OverwriteActuals is set, and rows with recorded actuals are not deleted.
func (s *memStore) WriteProjections(_ context.Context, w storage.ProjectionWrite) error {
	if s.beforeWrite != nil {
		s.beforeWrite()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpsert != nil {
		return s.failUpsert
	}
	s.upserts++
	for _, e := range w.Upsert {
		if old, ok := s.ledger[e.Key()]; ok && !w.OverwriteActuals {
			e.Actuals = old.Actuals
		}
		s.ledger[e.Key()] = e
	}
	for _, k := range w.Delete {
		if e, ok := s.ledger[k]; ok && !e.Actuals.Recorded() {
			delete(s.ledger, k)
		}
	}
	return nil
}

func (s *memStore) MarkPaid(_ context.Context, key core.EntryKey, a core.Actuals) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.ledger[key]
	if !ok {
		return fmt.Errorf("projection %s: %w", key, core.ErrNotFound)
	}
	e.Actuals = a
	s.ledger[key] = e
	return nil
}

func (s *memStore) ListSalaryProjections(_ context.Context, personnelID int64, w core.Window) ([]core.SalaryProjection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.SalaryProjection
	for k, row := range s.salaries {
		if (personnelID == 0 || k.PersonnelID == personnelID) && w.Contains(k.Month) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *memStore) WriteSalaryProjections(_ context.Context, w storage.SalaryWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range w.Upsert {
		if old, ok := s.salaries[row.Key()]; ok {
			row.SalaryActuals = old.SalaryActuals
		}
		s.salaries[row.Key()] = row
	}
	for _, k := range w.Delete {
		if row, ok := s.salaries[k]; ok && !row.SalaryActuals.Recorded() {
			delete(s.salaries, k)
		}
	}
	return nil
}

func (s *memStore) MarkSalaryPaid(_ context.Context, key core.SalaryKey, a core.SalaryActuals) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.salaries[key]
	if !ok {
		return fmt.Errorf("salary projection %d/%s: %w", key.PersonnelID, key.Month, core.ErrNotFound)
	}
	row.SalaryActuals = a
	s.salaries[key] = row
	return nil
}

func (s *memStore) SaveStatement(_ context.Context, kind statements.Kind, m core.Month, stmt any) error {
	b, err := json.Marshal(stmt)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stmts[string(kind)+"/"+m.String()] = b
	return nil
}

func (s *memStore) LoadStatement(_ context.Context, kind statements.Kind, m core.Month, out any) error {
	s.mu.Lock()
	b, ok := s.stmts[string(kind)+"/"+m.String()]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s %s: %w", kind, m, core.ErrNotFound)
	}
	return json.Unmarshal(b, out)
}

func (s *memStore) UpsertBudgetEntries(_ context.Context, entries []storage.BudgetEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.budget[fmt.Sprintf("%d/%s/%s", e.BudgetID, e.AccountPath, e.Month)] = e
	}
	return nil
}

func (s *memStore) ListBudgetEntries(_ context.Context, budgetID int64, w core.Window) ([]storage.BudgetEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.BudgetEntry
	for _, e := range s.budget {
		if e.BudgetID == budgetID && w.Contains(e.Month) {
			out = append(out, e)
		}
	}
	return out, nil
}

type recordingExporter struct {
	mu    sync.Mutex
	kinds []statements.Kind
	err   error
}

func (e *recordingExporter) ExportStatement(_ context.Context, kind statements.Kind, _ core.Month, _ any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.kinds = append(e.kinds, kind)
	return e.err
}

var (
	_ ObligationStore   = (*memStore)(nil)
	_ LedgerStore       = (*memStore)(nil)
	_ StatementStore    = (*memStore)(nil)
	_ BudgetStore       = (*memStore)(nil)
	_ StatementExporter = (*recordingExporter)(nil)
)
