package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"forecast/internal/core"
	"forecast/internal/log"
	"forecast/internal/metrics"
	"forecast/internal/middleware/ratelimit"
	"forecast/internal/middleware/security"
	"forecast/internal/middleware/trace"
	"forecast/internal/services"
	"forecast/internal/statements"
	"forecast/internal/storage"
)

// Projections is the ledger side of the API.
type Projections interface {
	Ledger(ctx context.Context, w core.Window) ([]core.ProjectionEntry, error)
	MarkPaid(ctx context.Context, key core.EntryKey, a core.Actuals) error
	RecalculatePersonnel(ctx context.Context, id int64, w core.Window, asOf core.Month) (services.RecalcResult, error)
	SalaryProjections(ctx context.Context, personnelID int64, w core.Window) ([]core.SalaryProjection, error)
	MarkSalaryPaid(ctx context.Context, key core.SalaryKey, a core.SalaryActuals) error
}

// Recalculations accepts recalculation requests, queued or inline.
type Recalculations interface {
	Submit(ctx context.Context, req services.Request) (services.Outcome, error)
}

type Statements interface {
	CalculateProfitAndLoss(ctx context.Context, m core.Month, in statements.PLInputs) (statements.ProfitAndLossStatement, error)
	ProfitAndLossFromLedger(ctx context.Context, w core.Window, revenue map[core.Month]core.Money) ([]statements.ProfitAndLossStatement, error)
	CalculateBalanceSheet(ctx context.Context, m core.Month, in statements.BSInputs) (statements.BalanceSheetStatement, error)
	CalculateWorkingCapital(ctx context.Context, m core.Month, in statements.WCInputs) (statements.WorkingCapitalStatement, error)
	CalculateFinancialPlan(ctx context.Context, m core.Month, in statements.FPInputs) (statements.FinancialPlanStatement, error)
	CalculateCashFlow(ctx context.Context, w core.Window, opening core.Money, inflows map[core.Month]core.Money) ([]statements.CashFlowStatement, error)
	Get(ctx context.Context, kind statements.Kind, m core.Month) (any, error)
}

type Budgets interface {
	Snapshot(ctx context.Context, budgetID int64, w core.Window) ([]storage.BudgetEntry, error)
	Lines(ctx context.Context, budgetID int64, w core.Window) ([]storage.BudgetEntry, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators behind the routes. Metrics and Ready are
// optional.
type Deps struct {
	Projections    Projections
	Recalculations Recalculations
	Statements     Statements
	Budgets        Budgets
	Ready          Pinger
	Metrics        *metrics.Metrics
	Logger         *log.Logger
}

type Server struct {
	http.Server
	deps     Deps
	limiter  *ratelimit.Limiter
	detector *security.Detector
	now      func() time.Time
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.New(log.Config{Component: log.ComponentHTTP})
	}
	s := &Server{
		deps:     deps,
		limiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		detector: security.NewDetector(),
		now:      time.Now,
	}
	s.started = s.now()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics.Handler())
	}

	mux.HandleFunc("GET /api/projections", s.handleListProjections)
	mux.HandleFunc("GET /api/projections/overview", s.handleOverview)
	mux.HandleFunc("GET /api/projections/summary", s.handleSummary)
	mux.HandleFunc("POST /api/projections/recalculate", s.handleRecalculateAll)
	mux.HandleFunc("POST /api/projections/mark-paid", s.handleMarkPaid)
	mux.HandleFunc("POST /api/obligations/{kind}/{id}/recalculate", s.handleRecalculate)

	mux.HandleFunc("POST /api/personnel/{id}/recalculate", s.handleRecalculatePersonnel)
	mux.HandleFunc("GET /api/personnel/{id}/projections", s.handleSalaryProjections)
	mux.HandleFunc("POST /api/personnel/{id}/mark-paid", s.handleMarkSalaryPaid)

	mux.HandleFunc("POST /api/statements/{kind}", s.handleCalculateStatement)
	mux.HandleFunc("GET /api/statements/{kind}", s.handleGetStatement)

	mux.HandleFunc("POST /api/budgets/{id}/snapshot", s.handleBudgetSnapshot)
	mux.HandleFunc("GET /api/budgets/{id}", s.handleBudgetLines)

	if deps.Metrics != nil {
		s.detector.OnSuspicious(deps.Metrics.SuspiciousRequests.Inc)
	}
	var observe func(string, int, time.Duration)
	if deps.Metrics != nil {
		observe = deps.Metrics.ObserveHTTP
	}

	// Outermost first: request id, logger, access log, then the guards.
	s.Server = http.Server{
		Addr: addr,
		Handler: chain(mux,
			trace.Middleware,
			log.Middleware(deps.Logger),
			log.RequestIDMiddleware(trace.FromRequest),
			log.AccessLog(observe),
			security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware,
			s.detector.Middleware,
			s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit),
		),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

// chain applies middlewares so that the first one listed runs first.
func chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.RateLimited.Inc()
	}
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		"client_ip", s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, retry later").Write(w)
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.started).Round(time.Second).String(),
	})
}

// handleReady checks the database with a short timeout.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	status, code := "ready", http.StatusOK
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.deps.Ready.Ping(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			checks["database"] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	}
	writeJSON(w, code, map[string]any{"status": status, "checks": checks})
}
