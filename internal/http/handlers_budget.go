package http

import (
	"net/http"
)

// handleBudgetSnapshot copies the ledger window into budget lines keyed
// by account path, replacing earlier lines of the same budget and month.
func (s *Server) handleBudgetSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	params := ParseWindowParams(r.URL.Query())
	if err := DecodeJSON(w, r, &params); err != nil {
		writeError(w, r, err)
		return
	}
	win, err := params.Window(s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	lines, err := s.deps.Budgets.Snapshot(r.Context(), id, win)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"budget_id": id, "window": win, "lines": budgetViews(lines)})
}

func (s *Server) handleBudgetLines(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	win, err := ParseWindowParams(r.URL.Query()).Window(s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	lines, err := s.deps.Budgets.Lines(r.Context(), id, win)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"budget_id": id, "window": win, "lines": budgetViews(lines)})
}
