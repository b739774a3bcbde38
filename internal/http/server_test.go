package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"forecast/internal/core"
	"forecast/internal/metrics"
	"forecast/internal/services"
	"forecast/internal/statements"
	"forecast/internal/storage"
)

type fakeProjections struct {
	entries  []core.ProjectionEntry
	salaries []core.SalaryProjection
	marked   []core.EntryKey
	paid     []core.SalaryKey
	err      error
}

func (f *fakeProjections) Ledger(_ context.Context, w core.Window) ([]core.ProjectionEntry, error) {
	var out []core.ProjectionEntry
	for _, e := range f.entries {
		if w.Contains(e.Month) {
			out = append(out, e)
		}
	}
	return out, f.err
}

func (f *fakeProjections) MarkPaid(_ context.Context, key core.EntryKey, a core.Actuals) error {
	if f.err != nil {
		return f.err
	}
	if key.Kind == core.KindPersonnel && a.ActualAmount != nil {
		return core.NewValidationError("actual_amount", services.ErrPersonnelActualAmount)
	}
	f.marked = append(f.marked, key)
	return nil
}

func (f *fakeProjections) RecalculatePersonnel(_ context.Context, id int64, w core.Window, _ core.Month) (services.RecalcResult, error) {
	if f.err != nil {
		return services.RecalcResult{}, f.err
	}
	return services.RecalcResult{Kind: core.KindPersonnel, ObligationID: id, Window: w, Inserted: w.Len()}, nil
}

func (f *fakeProjections) SalaryProjections(_ context.Context, id int64, _ core.Window) ([]core.SalaryProjection, error) {
	return f.salaries, f.err
}

func (f *fakeProjections) MarkSalaryPaid(_ context.Context, key core.SalaryKey, _ core.SalaryActuals) error {
	f.paid = append(f.paid, key)
	return f.err
}

type fakeRecalcs struct {
	queue bool
	reqs  []services.Request
	err   error
}

func (f *fakeRecalcs) Submit(_ context.Context, req services.Request) (services.Outcome, error) {
	if f.err != nil {
		return services.Outcome{}, f.err
	}
	f.reqs = append(f.reqs, req)
	if f.queue {
		return services.Outcome{Queued: true, RunID: "run-1"}, nil
	}
	if req.Kind == "" {
		report := services.BatchReport{RunID: uuid.New(), Window: req.Window, Succeeded: 2}
		return services.Outcome{RunID: report.RunID.String(), Report: &report}, nil
	}
	res := services.RecalcResult{Kind: req.Kind, ObligationID: req.ObligationID, Window: req.Window, Inserted: 3}
	return services.Outcome{Result: &res}, nil
}

type fakeStatements struct {
	stored map[string]any
	window core.Window
}

func (f *fakeStatements) CalculateProfitAndLoss(_ context.Context, m core.Month, in statements.PLInputs) (statements.ProfitAndLossStatement, error) {
	return statements.ProfitAndLoss(m, in), nil
}

func (f *fakeStatements) ProfitAndLossFromLedger(_ context.Context, w core.Window, revenue map[core.Month]core.Money) ([]statements.ProfitAndLossStatement, error) {
	f.window = w
	var out []statements.ProfitAndLossStatement
	for _, m := range w.Months() {
		out = append(out, statements.ProfitAndLoss(m, statements.PLInputs{Revenue: revenue[m]}))
	}
	return out, nil
}

func (f *fakeStatements) CalculateBalanceSheet(_ context.Context, m core.Month, in statements.BSInputs) (statements.BalanceSheetStatement, error) {
	return statements.BalanceSheet(m, in, statements.BalanceStrict)
}

func (f *fakeStatements) CalculateWorkingCapital(_ context.Context, m core.Month, in statements.WCInputs) (statements.WorkingCapitalStatement, error) {
	return statements.WorkingCapital(m, in), nil
}

func (f *fakeStatements) CalculateFinancialPlan(_ context.Context, m core.Month, in statements.FPInputs) (statements.FinancialPlanStatement, error) {
	return statements.FinancialPlan(m, in), nil
}

func (f *fakeStatements) CalculateCashFlow(_ context.Context, w core.Window, opening core.Money, inflows map[core.Month]core.Money) ([]statements.CashFlowStatement, error) {
	return statements.CashFlowSeries(w, opening, inflows, nil), nil
}

func (f *fakeStatements) Get(_ context.Context, kind statements.Kind, m core.Month) (any, error) {
	if v, ok := f.stored[string(kind)+"/"+m.String()]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("%s %s: %w", kind, m, core.ErrNotFound)
}

type fakeBudgets struct{}

func (fakeBudgets) Snapshot(_ context.Context, id int64, w core.Window) ([]storage.BudgetEntry, error) {
	return []storage.BudgetEntry{{BudgetID: id, AccountPath: "expense/rent", Month: w.Start, Amount: core.Cents(100000)}}, nil
}

func (fakeBudgets) Lines(_ context.Context, id int64, w core.Window) ([]storage.BudgetEntry, error) {
	return nil, nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func entry(kind core.ObligationKind, id int64, category string, m core.Month, cents int64) core.ProjectionEntry {
	return core.ProjectionEntry{Kind: kind, ObligationID: id, Name: category, Category: category, Month: m, Amount: core.Cents(cents), IsProjected: true}
}

type testEnv struct {
	srv     *Server
	proj    *fakeProjections
	recalcs *fakeRecalcs
	stmts   *fakeStatements
	metrics *metrics.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	jan, feb := core.NewMonth(2025, time.January), core.NewMonth(2025, time.February)
	env := &testEnv{
		proj: &fakeProjections{entries: []core.ProjectionEntry{
			entry(core.KindExpense, 1, "rent", jan, 120000),
			entry(core.KindExpense, 1, "rent", feb, 120000),
			entry(core.KindSubscription, 2, "software", jan, 5000),
		}},
		recalcs: &fakeRecalcs{},
		stmts:   &fakeStatements{stored: map[string]any{}},
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	env.srv = NewServer(":0", Deps{
		Projections:    env.proj,
		Recalculations: env.recalcs,
		Statements:     env.stmts,
		Budgets:        fakeBudgets{},
		Ready:          fakePinger{},
		Metrics:        env.metrics,
	})
	env.srv.now = func() time.Time { return fixedNow }
	t.Cleanup(func() { _ = env.srv.Shutdown(context.Background()) })
	return env
}

func (e *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, r)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return out
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := env.do(http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	env.srv.deps.Ready = fakePinger{err: errors.New("database is locked")}
	rr := env.do(http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failing db status=%d", rr.Code)
	}
	if decode(t, rr)["status"] != "not_ready" {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestMiddlewareHeaders(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(http.MethodGet, "/healthz", "")
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}

	rr = env.do(http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "forecast_http_request_duration_seconds") {
		t.Errorf("metrics status=%d", rr.Code)
	}
}

func TestListProjections(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name   string
		target string
		status int
		key    string
		count  int
	}{
		{"rows", "/api/projections?year=2025", http.StatusOK, "entries", 3},
		{"range", "/api/projections?start=2025-02&end=2025-03", http.StatusOK, "entries", 1},
		{"kind filter", "/api/projections?year=2025&kind=subscription", http.StatusOK, "entries", 1},
		{"by month", "/api/projections?year=2025&group=month", http.StatusOK, "months", 2},
		{"by category", "/api/projections?year=2025&group=category", http.StatusOK, "categories", 2},
		{"bad group", "/api/projections?group=week", http.StatusUnprocessableEntity, "", 0},
		{"bad kind", "/api/projections?kind=salary", http.StatusUnprocessableEntity, "", 0},
		{"bad window", "/api/projections?start=2025-05&end=2025-01", http.StatusUnprocessableEntity, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(http.MethodGet, tt.target, "")
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.status, rr.Body.String())
			}
			if tt.key == "" {
				return
			}
			items, _ := decode(t, rr)[tt.key].([]any)
			if len(items) != tt.count {
				t.Errorf("%s = %d items, want %d", tt.key, len(items), tt.count)
			}
		})
	}
}

func TestListProjections_EntryShape(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(http.MethodGet, "/api/projections?start=2025-02&end=2025-02", "")
	entries := decode(t, rr)["entries"].([]any)
	first := entries[0].(map[string]any)
	if first["amount"] != "1200.00" || first["month"] != "2025-02" || first["kind"] != "expense" {
		t.Errorf("entry = %v", first)
	}
}

func TestOverviewAndSummary(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(http.MethodGet, "/api/projections/overview?start=2025-01&end=2025-03", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("overview status=%d", rr.Code)
	}
	months := decode(t, rr)["months"].([]any)
	if len(months) != 3 {
		t.Errorf("overview months = %d, want 3 including the empty one", len(months))
	}

	rr = env.do(http.MethodGet, "/api/projections/summary?year=2025", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("summary status=%d", rr.Code)
	}
	if total := decode(t, rr)["total"]; total != "2450.00" {
		t.Errorf("summary total = %v", total)
	}
}

func TestRecalculate(t *testing.T) {
	t.Run("inline", func(t *testing.T) {
		env := newTestEnv(t)
		rr := env.do(http.MethodPost, "/api/obligations/expense/7/recalculate", `{"start":"2025-01","end":"2025-06"}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d: %s", rr.Code, rr.Body.String())
		}
		req := env.recalcs.reqs[0]
		if req.Kind != core.KindExpense || req.ObligationID != 7 || req.Window.String() != "2025-01..2025-06" {
			t.Errorf("request = %+v", req)
		}
		if req.AsOf != core.NewMonth(2025, time.March) {
			t.Errorf("as_of = %v, want the current month", req.AsOf)
		}
	})

	t.Run("queued", func(t *testing.T) {
		env := newTestEnv(t)
		env.recalcs.queue = true
		rr := env.do(http.MethodPost, "/api/obligations/leasing/2/recalculate?year=2025", "")
		if rr.Code != http.StatusAccepted {
			t.Fatalf("status=%d", rr.Code)
		}
		if decode(t, rr)["run_id"] != "run-1" {
			t.Errorf("body = %s", rr.Body.String())
		}
	})

	t.Run("all", func(t *testing.T) {
		env := newTestEnv(t)
		rr := env.do(http.MethodPost, "/api/projections/recalculate", `{"year":"2025","as_of":"2025-01"}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d", rr.Code)
		}
		report := decode(t, rr)["report"].(map[string]any)
		if report["succeeded"] != 2.0 {
			t.Errorf("report = %v", report)
		}
	})

	errorCases := []struct {
		name   string
		target string
		body   string
		err    error
		status int
	}{
		{"unknown kind", "/api/obligations/salary/1/recalculate", "", nil, http.StatusUnprocessableEntity},
		{"bad id", "/api/obligations/expense/x/recalculate", "", nil, http.StatusUnprocessableEntity},
		{"bad as_of", "/api/obligations/expense/1/recalculate", `{"as_of":"soon"}`, nil, http.StatusUnprocessableEntity},
		{"broken json", "/api/obligations/expense/1/recalculate", `{"start":`, nil, http.StatusBadRequest},
		{"missing obligation", "/api/obligations/expense/1/recalculate", "", fmt.Errorf("expense 1: %w", core.ErrNotFound), http.StatusNotFound},
		{"conflict", "/api/obligations/expense/1/recalculate", "", fmt.Errorf("upsert: %w", core.ErrConflict), http.StatusConflict},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.recalcs.err = tt.err
			rr := env.do(http.MethodPost, tt.target, tt.body)
			if rr.Code != tt.status {
				t.Errorf("status = %d, want %d: %s", rr.Code, tt.status, rr.Body.String())
			}
		})
	}
}

func TestMarkPaid(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(http.MethodPost, "/api/projections/mark-paid",
		`{"kind":"expense","obligation_id":1,"month":"2025-01","paid_date":"2025-01-05","actual_amount":"1180.00"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d: %s", rr.Code, rr.Body.String())
	}
	if len(env.proj.marked) != 1 || env.proj.marked[0].Month != core.NewMonth(2025, time.January) {
		t.Errorf("marked = %v", env.proj.marked)
	}

	tests := []struct {
		name, body, field string
	}{
		{"missing month", `{"kind":"expense","obligation_id":1}`, "month"},
		{"missing id", `{"kind":"expense","month":"2025-01"}`, "obligation_id"},
		{"personnel actual amount", `{"kind":"personnel","obligation_id":4,"month":"2025-01","actual_amount":"10"}`, "actual_amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(http.MethodPost, "/api/projections/mark-paid", tt.body)
			if rr.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d", rr.Code)
			}
			if got := decode(t, rr)["field"]; got != tt.field {
				t.Errorf("field = %v, want %s", got, tt.field)
			}
		})
	}
}

func TestPersonnelRoutes(t *testing.T) {
	env := newTestEnv(t)
	env.proj.salaries = []core.SalaryProjection{{
		PersonnelID: 4, Month: core.NewMonth(2025, time.January),
		BruteSalary: core.Cents(300000), EmployerTaxes: core.Cents(90000),
	}}

	rr := env.do(http.MethodPost, "/api/personnel/4/recalculate", `{"start":"2025-01","end":"2025-12"}`)
	if rr.Code != http.StatusOK || decode(t, rr)["inserted"] != 12.0 {
		t.Fatalf("recalculate: %d %s", rr.Code, rr.Body.String())
	}

	rr = env.do(http.MethodGet, "/api/personnel/4/projections?year=2025", "")
	rows := decode(t, rr)["projections"].([]any)
	if len(rows) != 1 || rows[0].(map[string]any)["employer_cost"] != "3900.00" {
		t.Errorf("projections = %v", rows)
	}

	rr = env.do(http.MethodPost, "/api/personnel/4/mark-paid", `{"month":"2025-01","is_net_paid":true}`)
	if rr.Code != http.StatusOK || len(env.proj.paid) != 1 {
		t.Errorf("mark-paid: %d %s", rr.Code, rr.Body.String())
	}
}

func TestStatements(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodPost, "/api/statements/working-capital",
		`{"month":"2025-03","inputs":{"accounts_receivable":"500.00","accounts_payable":"200.00"}}`)
	if rr.Code != http.StatusOK || decode(t, rr)["working_capital_need"] != "300.00" {
		t.Fatalf("working capital: %d %s", rr.Code, rr.Body.String())
	}

	rr = env.do(http.MethodPost, "/api/statements/profit-loss",
		`{"start":"2025-01","end":"2025-02","revenue":{"2025-01":"1000.00"}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("profit-loss from ledger: %d %s", rr.Code, rr.Body.String())
	}
	if env.stmts.window.String() != "2025-01..2025-02" {
		t.Errorf("window = %s", env.stmts.window)
	}

	rr = env.do(http.MethodPost, "/api/statements/cash-flow",
		`{"start":"2025-01","end":"2025-03","opening":"100.00","inflows":{"2025-02":"50.00"}}`)
	var flows []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &flows); err != nil || len(flows) != 3 {
		t.Fatalf("cash flow: %s", rr.Body.String())
	}
	if flows[2]["closing_balance"] != "150.00" {
		t.Errorf("closing balance = %v", flows[2]["closing_balance"])
	}

	errorCases := []struct {
		name, method, target, body string
		status                     int
	}{
		{"unbalanced strict", http.MethodPost, "/api/statements/balance-sheet", `{"month":"2025-03","inputs":{"current_assets":"10.00"}}`, http.StatusUnprocessableEntity},
		{"unknown kind", http.MethodPost, "/api/statements/income", `{"month":"2025-03"}`, http.StatusUnprocessableEntity},
		{"unknown input", http.MethodPost, "/api/statements/financial-plan", `{"month":"2025-03","inputs":{"grants":"1"}}`, http.StatusUnprocessableEntity},
		{"missing month", http.MethodPost, "/api/statements/financial-plan", `{}`, http.StatusUnprocessableEntity},
		{"bad revenue key", http.MethodPost, "/api/statements/profit-loss", `{"year":"2025","revenue":{"jan":"1"}}`, http.StatusUnprocessableEntity},
		{"not stored", http.MethodGet, "/api/statements/cash-flow?month=2025-03", "", http.StatusNotFound},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(tt.method, tt.target, tt.body)
			if rr.Code != tt.status {
				t.Errorf("status = %d, want %d: %s", rr.Code, tt.status, rr.Body.String())
			}
		})
	}

	env.stmts.stored["working-capital/2025-03"] = statements.WorkingCapital(core.NewMonth(2025, time.March), statements.WCInputs{})
	rr = env.do(http.MethodGet, "/api/statements/working-capital?month=2025-03", "")
	if rr.Code != http.StatusOK || decode(t, rr)["month"] != "2025-03" {
		t.Errorf("get stored: %d %s", rr.Code, rr.Body.String())
	}
}

func TestBudgetSnapshotRoute(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(http.MethodPost, "/api/budgets/3/snapshot", `{"start":"2025-01","end":"2025-03"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d: %s", rr.Code, rr.Body.String())
	}
	lines := decode(t, rr)["lines"].([]any)
	if len(lines) != 1 || lines[0].(map[string]any)["account_path"] != "expense/rent" {
		t.Errorf("lines = %v", lines)
	}

	rr = env.do(http.MethodGet, "/api/budgets/0", "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("budget 0 status=%d", rr.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(http.MethodGet, "/api/projections/recalculate", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status=%d", rr.Code)
	}
}

func TestRateLimitOnWrites(t *testing.T) {
	env := newTestEnv(t)
	var last int
	for i := 0; i < 61; i++ {
		last = env.do(http.MethodPost, "/api/projections/recalculate", `{"year":"2025"}`).Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("61st write status=%d, want 429", last)
	}
	if env.do(http.MethodGet, "/api/projections", "").Code != http.StatusOK {
		t.Error("reads must not be limited")
	}
}
