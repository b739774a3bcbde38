package services

import (
	"context"
	"fmt"
	"log/slog"

	"forecast/internal/core"
	"forecast/internal/storage"
)

// BudgetService freezes the projected ledger into a budget: one amount
// per account path and month. Account paths are "kind/category".
type BudgetService struct {
	ledger LedgerReader
	store  BudgetStore
}

func NewBudgetService(ledger LedgerReader, store BudgetStore) *BudgetService {
	return &BudgetService{ledger: ledger, store: store}
}

// Snapshot writes the ledger totals of w under budgetID. Taking the same
// snapshot twice overwrites the previous amounts.
func (s *BudgetService) Snapshot(ctx context.Context, budgetID int64, w core.Window) ([]storage.BudgetEntry, error) {
	if budgetID <= 0 {
		return nil, core.NewValidationError("budget_id", core.ErrInvalidOrdinal)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	entries, err := s.ledger.ListAllProjections(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	out := BudgetLines(budgetID, entries)
	if err := s.store.UpsertBudgetEntries(ctx, out); err != nil {
		return nil, fmt.Errorf("save budget: %w", err)
	}
	slog.InfoContext(ctx, "Budget snapshot saved",
		"budget_id", budgetID,
		"window", w.String(),
		"lines", len(out))
	return out, nil
}

func (s *BudgetService) Lines(ctx context.Context, budgetID int64, w core.Window) ([]storage.BudgetEntry, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return s.store.ListBudgetEntries(ctx, budgetID, w)
}

// BudgetLines groups ledger entries by account path and month, in first
// seen order.
func BudgetLines(budgetID int64, entries []core.ProjectionEntry) []storage.BudgetEntry {
	type key struct {
		path  string
		month core.Month
	}
	idx := make(map[key]int)
	var out []storage.BudgetEntry
	for _, e := range entries {
		k := key{path: AccountPath(e), month: e.Month}
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, storage.BudgetEntry{BudgetID: budgetID, AccountPath: k.path, Month: e.Month})
		}
		out[i].Amount = out[i].Amount.Add(e.Effective())
	}
	return out
}

func AccountPath(e core.ProjectionEntry) string {
	if e.Category == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + "/" + e.Category
}
