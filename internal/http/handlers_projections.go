package http

import (
	"net/http"
	"slices"

	"forecast/internal/aggregate"
	"forecast/internal/core"
	"forecast/internal/services"
)

// handleListProjections serves the ledger over a window. group=month or
// group=category returns totals instead of rows; kind filters rows.
func (s *Server) handleListProjections(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	win, err := ParseWindowParams(q).Window(s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := s.deps.Projections.Ledger(r.Context(), win)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if k := q.Get("kind"); k != "" {
		kind, err := core.ParseKind(k)
		if err != nil {
			writeError(w, r, err)
			return
		}
		entries = slices.DeleteFunc(slices.Clone(entries), func(e core.ProjectionEntry) bool { return e.Kind != kind })
	}

	switch q.Get("group") {
	case "":
		writeJSON(w, http.StatusOK, map[string]any{"window": win, "entries": entryViews(entries)})
	case "month":
		writeJSON(w, http.StatusOK, map[string]any{"window": win, "months": aggregate.ByMonth(entries)})
	case "category":
		writeJSON(w, http.StatusOK, map[string]any{"window": win, "categories": categoryViews(aggregate.ByCategory(entries))})
	default:
		writeError(w, r, core.NewValidationError("group", errUnknownGroup))
	}
}

// handleOverview returns one overview per month of the window, empty
// months included.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	win, err := ParseWindowParams(r.URL.Query()).Window(s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := s.deps.Projections.Ledger(r.Context(), win)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"window": win, "months": overviewViews(aggregate.MonthOverviews(entries, win))})
}

// handleSummary totals one calendar year by category.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	params := ParseWindowParams(r.URL.Query())
	params.Start, params.End = "", ""
	win, err := params.Window(s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := s.deps.Projections.Ledger(r.Context(), win)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, aggregate.AnnualSummary(entries, win.Start.Year))
}

type recalcRequest struct {
	WindowParams
	AsOf string `json:"as_of"`
}

func (s *Server) readRecalcRequest(w http.ResponseWriter, r *http.Request) (core.Window, core.Month, error) {
	body := recalcRequest{WindowParams: ParseWindowParams(r.URL.Query()), AsOf: r.URL.Query().Get("as_of")}
	if err := DecodeJSON(w, r, &body); err != nil {
		return core.Window{}, core.Month{}, err
	}
	win, err := body.Window(s.now())
	if err != nil {
		return core.Window{}, core.Month{}, err
	}
	asOf, err := ParseAsOf(body.AsOf, s.now())
	return win, asOf, err
}

// handleRecalculate re-projects one obligation. The response is 202 when
// the request was queued for the worker and 200 when it ran inline.
func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	kind, err := core.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, r, err)
		return
	}
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
	s.submit(w, r, services.Request{Kind: kind, ObligationID: id, Window: win, AsOf: asOf})
}

func (s *Server) handleRecalculateAll(w http.ResponseWriter, r *http.Request) {
	win, asOf, err := s.readRecalcRequest(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.submit(w, r, services.Request{Window: win, AsOf: asOf})
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request, req services.Request) {
	out, err := s.deps.Recalculations.Submit(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if out.Queued {
		status = http.StatusAccepted
	}
	writeJSON(w, status, newOutcomeView(out))
}

type markPaidRequest struct {
	Kind         string      `json:"kind"`
	ObligationID int64       `json:"obligation_id"`
	Month        string      `json:"month"`
	IsPaid       *bool       `json:"is_paid"`
	PaidDate     core.Date   `json:"paid_date"`
	ActualAmount *core.Money `json:"actual_amount"`
	Notes        string      `json:"notes"`
}

// handleMarkPaid records actuals on one ledger row. is_paid defaults to
// true.
func (s *Server) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	var body markPaidRequest
	if err := DecodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	kind, err := core.ParseKind(body.Kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if body.ObligationID <= 0 {
		writeError(w, r, core.NewValidationError("obligation_id", errRequired))
		return
	}
	month, err := ParseMonthParam("month", body.Month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a := core.Actuals{
		IsPaid:       body.IsPaid == nil || *body.IsPaid,
		PaidDate:     body.PaidDate,
		ActualAmount: body.ActualAmount,
		Notes:        sanitizeInput(body.Notes),
	}
	key := core.EntryKey{Kind: kind, ObligationID: body.ObligationID, Month: month}
	if err := s.deps.Projections.MarkPaid(r.Context(), key, a); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"kind": kind, "obligation_id": key.ObligationID, "month": month, "is_paid": a.IsPaid})
}
