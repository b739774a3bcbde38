package http

import (
	"bytes"
	"encoding/json"
	"net/http"

	"forecast/internal/core"
	"forecast/internal/statements"
)

// statementRequest carries every statement form. Single-month statements
// use Month and Inputs. Cash flow uses the window, Opening and Inflows.
// Profit and loss takes Inputs for one month, or a window and Revenue to
// derive costs from the ledger.
type statementRequest struct {
	WindowParams
	Month   string                `json:"month"`
	Inputs  json.RawMessage       `json:"inputs"`
	Revenue map[string]core.Money `json:"revenue"`
	Opening core.Money            `json:"opening"`
	Inflows map[string]core.Money `json:"inflows"`
}

func (s *Server) handleCalculateStatement(w http.ResponseWriter, r *http.Request) {
	kind, err := statements.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body statementRequest
	if err := DecodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.calculate(r, kind, body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) calculate(r *http.Request, kind statements.Kind, body statementRequest) (any, error) {
	ctx := r.Context()
	svc := s.deps.Statements

	if kind == statements.KindCashFlow {
		win, err := body.Window(s.now())
		if err != nil {
			return nil, err
		}
		inflows, err := monthlyAmounts("inflows", body.Inflows)
		if err != nil {
			return nil, err
		}
		return svc.CalculateCashFlow(ctx, win, body.Opening, inflows)
	}

	if kind == statements.KindProfitAndLoss && len(body.Inputs) == 0 {
		win, err := body.Window(s.now())
		if err != nil {
			return nil, err
		}
		revenue, err := monthlyAmounts("revenue", body.Revenue)
		if err != nil {
			return nil, err
		}
		return svc.ProfitAndLossFromLedger(ctx, win, revenue)
	}

	m, err := ParseMonthParam("month", body.Month)
	if err != nil {
		return nil, err
	}
	switch kind {
	case statements.KindProfitAndLoss:
		var in statements.PLInputs
		if err := decodeInputs(body.Inputs, &in); err != nil {
			return nil, err
		}
		return svc.CalculateProfitAndLoss(ctx, m, in)
	case statements.KindBalanceSheet:
		var in statements.BSInputs
		if err := decodeInputs(body.Inputs, &in); err != nil {
			return nil, err
		}
		return svc.CalculateBalanceSheet(ctx, m, in)
	case statements.KindWorkingCapital:
		var in statements.WCInputs
		if err := decodeInputs(body.Inputs, &in); err != nil {
			return nil, err
		}
		return svc.CalculateWorkingCapital(ctx, m, in)
	case statements.KindFinancialPlan:
		var in statements.FPInputs
		if err := decodeInputs(body.Inputs, &in); err != nil {
			return nil, err
		}
		return svc.CalculateFinancialPlan(ctx, m, in)
	}
	return nil, core.NewValidationError("statement", statements.ErrUnknownKind)
}

func (s *Server) handleGetStatement(w http.ResponseWriter, r *http.Request) {
	kind, err := statements.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := ParseMonthParam("month", r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	stmt, err := s.deps.Statements.Get(r.Context(), kind, m)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stmt)
}

// decodeInputs strictly decodes statement inputs. Missing inputs are all
// zero.
func decodeInputs(raw json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return core.NewValidationError("inputs", err)
	}
	return nil
}

// monthlyAmounts parses a {"YYYY-MM": amount} object.
func monthlyAmounts(field string, in map[string]core.Money) (map[core.Month]core.Money, error) {
	out := make(map[core.Month]core.Money, len(in))
	for k, v := range in {
		m, err := core.ParseMonth(k)
		if err != nil {
			return nil, core.NewValidationError(field, err)
		}
		out[m] = v
	}
	return out, nil
}
