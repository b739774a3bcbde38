package http

import (
	"net/http"

	"forecast/internal/core"
)

// handleRecalculatePersonnel recomputes one employee's payroll and its
// ledger mirror. It always runs inline.
func (s *Server) handleRecalculatePersonnel(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	win, asOf, err := s.readRecalcRequest(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.deps.Projections.RecalculatePersonnel(r.Context(), id, win, asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newResultView(res))
}

func (s *Server) handleSalaryProjections(w http.ResponseWriter, r *http.Request) {
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
	rows, err := s.deps.Projections.SalaryProjections(r.Context(), id, win)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"personnel_id": id, "window": win, "projections": salaryViews(rows)})
}

type markSalaryPaidRequest struct {
	Month             string      `json:"month"`
	IsNetPaid         bool        `json:"is_net_paid"`
	IsTaxesPaid       bool        `json:"is_taxes_paid"`
	ActualNetAmount   *core.Money `json:"actual_net_amount"`
	ActualTaxesAmount *core.Money `json:"actual_taxes_amount"`
	Notes             string      `json:"notes"`
}

func (s *Server) handleMarkSalaryPaid(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body markSalaryPaidRequest
	if err := DecodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	month, err := ParseMonthParam("month", body.Month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a := core.SalaryActuals{
		IsNetPaid:         body.IsNetPaid,
		IsTaxesPaid:       body.IsTaxesPaid,
		ActualNetAmount:   body.ActualNetAmount,
		ActualTaxesAmount: body.ActualTaxesAmount,
		Notes:             sanitizeInput(body.Notes),
	}
	if err := s.deps.Projections.MarkSalaryPaid(r.Context(), core.SalaryKey{PersonnelID: id, Month: month}, a); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"personnel_id":  id,
		"month":         month,
		"is_net_paid":   a.IsNetPaid,
		"is_taxes_paid": a.IsTaxesPaid,
	})
}
