package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"forecast/internal/cache"
	"forecast/internal/core"
	"forecast/internal/log"
	"forecast/internal/metrics"
	"forecast/internal/projection"
	"forecast/internal/reconcile"
	"forecast/internal/storage"
)

// RecalcResult reports what one recalculation wrote.
type RecalcResult struct {
	Kind         core.ObligationKind    `json:"kind"`
	ObligationID int64                  `json:"obligation_id"`
	Window       core.Window            `json:"window"`
	Inserted     int                    `json:"inserted"`
	Updated      int                    `json:"updated"`
	Unchanged    int                    `json:"unchanged"`
	Deleted      int                    `json:"deleted"`
	Entries      []core.ProjectionEntry `json:"entries"`
}

// BatchReport summarises a recalculation over every obligation. Failed
// obligations do not prevent the others from being written.
type BatchReport struct {
	RunID     uuid.UUID                 `json:"run_id"`
	Window    core.Window               `json:"window"`
	Succeeded int                       `json:"succeeded"`
	Failed    []projection.BatchFailure `json:"-"`
	Inserted  int                       `json:"inserted"`
	Updated   int                       `json:"updated"`
	Deleted   int                       `json:"deleted"`
}

// ProjectionService projects obligations and reconciles them into the
// stored ledger.
type ProjectionService struct {
	obligations ObligationStore
	ledger      LedgerStore
	projector   *projection.Projector
	payroll     projection.PersonnelProjector
	concurrency int
	batchSize   int
	metrics     *metrics.Metrics
	cache       cache.Cache[[]core.ProjectionEntry]
}

type ProjectionOption func(*ProjectionService)

func WithMetrics(m *metrics.Metrics) ProjectionOption {
	return func(s *ProjectionService) { s.metrics = m }
}

// WithLedgerCache caches window reads. The cache is purged on every write.
func WithLedgerCache(c cache.Cache[[]core.ProjectionEntry]) ProjectionOption {
	return func(s *ProjectionService) { s.cache = c }
}

func WithConcurrency(n int) ProjectionOption {
	return func(s *ProjectionService) { s.concurrency = n }
}

// WithBatchSize bounds how many obligations RecalculateAll projects and
// writes per round. Zero or less projects everything in one round.
func WithBatchSize(n int) ProjectionOption {
	return func(s *ProjectionService) { s.batchSize = n }
}

func WithProjector(p *projection.Projector) ProjectionOption {
	return func(s *ProjectionService) { s.projector = p }
}

func NewProjectionService(obligations ObligationStore, ledger LedgerStore, policy projection.Policy, opts ...ProjectionOption) *ProjectionService {
	s := &ProjectionService{
		obligations: obligations,
		ledger:      ledger,
		projector:   projection.NewProjector(),
		payroll:     projection.NewPersonnelProjector(policy),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Recalculate re-projects one obligation over w and reconciles the result
// with the stored rows: amounts are refreshed, recorded payments survive,
// and the writes land in a single transaction.
func (s *ProjectionService) Recalculate(ctx context.Context, kind core.ObligationKind, id int64, w core.Window, asOf core.Month) (RecalcResult, error) {
	if err := w.Validate(); err != nil {
		return RecalcResult{}, err
	}
	if !kind.Valid() {
		return RecalcResult{}, core.NewValidationError("kind", core.ErrInvalidKind)
	}
	if kind == core.KindPersonnel {
		return s.RecalculatePersonnel(ctx, id, w, asOf)
	}

	start := time.Now()
	fresh, err := s.project(ctx, kind, id, w, asOf)
	if err != nil {
		return RecalcResult{}, err
	}
	res, err := s.persist(ctx, kind, id, w, fresh)
	if err != nil {
		return RecalcResult{}, err
	}
	if s.metrics != nil {
		s.metrics.RecalcDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	}
	return res, nil
}

func (s *ProjectionService) project(ctx context.Context, kind core.ObligationKind, id int64, w core.Window, asOf core.Month) ([]core.ProjectionEntry, error) {
	switch kind {
	case core.KindLoan:
		loan, err := s.obligations.GetLoan(ctx, id)
		if err != nil {
			return nil, err
		}
		sched, err := projection.AmortizeLoan(loan)
		if err != nil {
			return nil, err
		}
		return sched.Entries(w, asOf), nil
	case core.KindDepreciation:
		inv, err := s.obligations.GetInvestment(ctx, id)
		if err != nil {
			return nil, err
		}
		sched, err := projection.Depreciate(inv)
		if err != nil {
			return nil, err
		}
		return sched.LedgerEntries(w, asOf), nil
	}

	p, err := projection.ForKind(kind, s.projector)
	if err != nil {
		return nil, err
	}
	ob, err := s.obligations.GetObligation(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	return p.Project(ob, w, asOf)
}

func (s *ProjectionService) persist(ctx context.Context, kind core.ObligationKind, id int64, w core.Window, fresh []core.ProjectionEntry) (RecalcResult, error) {
	existing, err := s.ledger.ListProjections(ctx, kind, id, w)
	if err != nil {
		return RecalcResult{}, fmt.Errorf("load existing projections: %w", err)
	}
	plan := reconcile.Diff(fresh, existing, w)
	err = s.write(ctx, storage.ProjectionWrite{Upsert: plan.Writes(), Delete: reconcile.DeleteKeys(plan)})
	if err != nil {
		return RecalcResult{}, err
	}
	s.observe(kind, len(fresh), plan)
	if plan.Duplicates > 0 {
		slog.WarnContext(ctx, "Projector emitted duplicate keys",
			log.FieldProjectionType, kind, log.FieldObligationID, id, "duplicates", plan.Duplicates)
	}

	fields := log.NewFields().
		WithOperation(log.OpReconcile).
		WithObligation(string(kind), id).
		WithWindow(w.Start.String(), w.End.String()).
		WithPlan(len(plan.Insert), len(plan.Update), len(plan.Unchanged), len(plan.Delete))
	slog.InfoContext(ctx, "Projections recalculated", fields.ToSlice()...)

	return RecalcResult{
		Kind:         kind,
		ObligationID: id,
		Window:       w,
		Inserted:     len(plan.Insert),
		Updated:      len(plan.Update),
		Unchanged:    len(plan.Unchanged),
		Deleted:      len(plan.Delete),
		Entries:      plan.All(reconcile.CompareKeys),
	}, nil
}

func (s *ProjectionService) write(ctx context.Context, w storage.ProjectionWrite) error {
	if len(w.Upsert) == 0 && len(w.Delete) == 0 {
		return nil
	}
	if err := s.ledger.WriteProjections(ctx, w); err != nil {
		return fmt.Errorf("persist projections: %w", err)
	}
	if s.cache != nil {
		s.cache.Purge()
	}
	return nil
}

func (s *ProjectionService) observe(kind core.ObligationKind, generated int, plan reconcile.Plan[core.ProjectionEntry]) {
	if s.metrics == nil {
		return
	}
	s.metrics.ProjectionsGenerated.WithLabelValues(string(kind)).Add(float64(generated))
	s.metrics.ObserveReconcile(len(plan.Insert), len(plan.Update), len(plan.Unchanged), len(plan.Delete))
}

// RecalculatePersonnel re-projects one employee's payroll and refreshes the
// matching ledger rows. Payroll actuals survive; the ledger rows follow
// the payroll rows.
func (s *ProjectionService) RecalculatePersonnel(ctx context.Context, id int64, w core.Window, asOf core.Month) (RecalcResult, error) {
	if err := w.Validate(); err != nil {
		return RecalcResult{}, err
	}
	p, err := s.obligations.GetPersonnel(ctx, id)
	if err != nil {
		return RecalcResult{}, err
	}
	fresh, err := s.payroll.Project(p, w, asOf, nil)
	if err != nil {
		return RecalcResult{}, err
	}
	existing, err := s.ledger.ListSalaryProjections(ctx, id, w)
	if err != nil {
		return RecalcResult{}, fmt.Errorf("load existing salary projections: %w", err)
	}
	plan := reconcile.DiffSalaries(fresh, existing, w)
	if len(plan.Insert)+len(plan.Update)+len(plan.Delete) > 0 {
		err := s.ledger.WriteSalaryProjections(ctx, storage.SalaryWrite{
			Upsert: plan.Writes(),
			Delete: reconcile.SalaryDeleteKeys(plan),
		})
		if err != nil {
			return RecalcResult{}, fmt.Errorf("persist salary projections: %w", err)
		}
	}

	res, err := s.mirrorPayroll(ctx, p, w, plan.All(reconcile.CompareSalaries))
	if err != nil {
		return RecalcResult{}, err
	}
	if s.metrics != nil {
		s.metrics.ProjectionsGenerated.WithLabelValues(string(core.KindPersonnel)).Add(float64(len(fresh)))
		s.metrics.ObserveReconcile(len(plan.Insert), len(plan.Update), len(plan.Unchanged), len(plan.Delete))
	}
	slog.InfoContext(ctx, "Payroll recalculated",
		"personnel_id", id,
		"window", w.String(),
		"inserted", len(plan.Insert),
		"updated", len(plan.Update),
		"unchanged", len(plan.Unchanged),
		"deleted", len(plan.Delete))

	res.Inserted, res.Updated, res.Unchanged = len(plan.Insert), len(plan.Update), len(plan.Unchanged)
	res.Deleted = len(plan.Delete)
	return res, nil
}

// mirrorPayroll rewrites the personnel ledger rows from payroll rows.
func (s *ProjectionService) mirrorPayroll(ctx context.Context, p core.Personnel, w core.Window, rows []core.SalaryProjection) (RecalcResult, error) {
	fresh := make([]core.ProjectionEntry, 0, len(rows))
	for _, row := range rows {
		if w.Contains(row.Month) {
			fresh = append(fresh, row.LedgerEntry(p.FullName(), p.Position))
		}
	}
	existing, err := s.ledger.ListProjections(ctx, core.KindPersonnel, p.ID, w)
	if err != nil {
		return RecalcResult{}, fmt.Errorf("load personnel ledger: %w", err)
	}
	plan := reconcile.Mirror(fresh, existing, w)
	err = s.write(ctx, storage.ProjectionWrite{
		Upsert:           plan.Writes(),
		Delete:           reconcile.DeleteKeys(plan),
		OverwriteActuals: true,
	})
	if err != nil {
		return RecalcResult{}, err
	}
	return RecalcResult{
		Kind:         core.KindPersonnel,
		ObligationID: p.ID,
		Window:       w,
		Entries:      plan.All(reconcile.CompareKeys),
	}, nil
}

// RecalculateAll re-projects every obligation, loan, investment and
// employee over w. Inactive ones project nothing, which clears their
// unpaid rows. Individual failures are collected in the report.
func (s *ProjectionService) RecalculateAll(ctx context.Context, w core.Window, asOf core.Month) (BatchReport, error) {
	if err := w.Validate(); err != nil {
		return BatchReport{}, err
	}
	report := BatchReport{RunID: uuid.New(), Window: w}

	obs, err := s.obligations.ListObligations(ctx, "", false)
	if err != nil {
		return report, fmt.Errorf("list obligations: %w", err)
	}
	batch := projection.Batch{Projector: s.projector, Concurrency: s.concurrency}
	size := s.batchSize
	if size < 1 {
		size = max(len(obs), 1)
	}
	for chunk := range slices.Chunk(obs, size) {
		res, err := batch.ProjectAll(ctx, chunk, w, asOf)
		if err != nil {
			return report, err
		}
		report.Failed = append(report.Failed, res.Failures...)
		failed := make(map[core.EntryKey]bool, len(res.Failures))
		for _, f := range res.Failures {
			failed[core.EntryKey{Kind: f.Kind, ObligationID: f.ObligationID}] = true
		}

		// Writes run one obligation at a time; the store serializes them anyway.
		for _, ob := range chunk {
			key := core.EntryKey{Kind: ob.Kind, ObligationID: ob.ID}
			if failed[key] {
				continue
			}
			r, err := s.persist(ctx, ob.Kind, ob.ID, w, res.ByID[key])
			report.record(ob.Kind, ob.ID, r, err)
		}
	}

	others, err := s.secondaryTargets(ctx)
	if err != nil {
		return report, err
	}
	for _, t := range others {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		r, err := s.Recalculate(ctx, t.Kind, t.ObligationID, w, asOf)
		report.record(t.Kind, t.ObligationID, r, err)
	}

	if s.metrics != nil {
		for _, f := range report.Failed {
			s.metrics.BatchFailures.WithLabelValues(string(f.Kind)).Inc()
		}
	}
	for _, f := range report.Failed {
		fields := log.NewFields().
			WithOperation(log.OpRecalculate).
			WithObligation(string(f.Kind), f.ObligationID).
			WithError(f.Err)
		fields[log.FieldRunID] = report.RunID.String()
		slog.WarnContext(ctx, "Obligation skipped during recalculation", fields.ToSlice()...)
	}
	slog.InfoContext(ctx, "Recalculation run complete",
		"run_id", report.RunID,
		"window", w.String(),
		"succeeded", report.Succeeded,
		"failed", len(report.Failed),
		"inserted", report.Inserted,
		"updated", report.Updated,
		"deleted", report.Deleted)
	return report, nil
}

func (r *BatchReport) record(kind core.ObligationKind, id int64, res RecalcResult, err error) {
	if err != nil {
		r.Failed = append(r.Failed, projection.BatchFailure{Kind: kind, ObligationID: id, Err: err})
		return
	}
	r.Succeeded++
	r.Inserted += res.Inserted
	r.Updated += res.Updated
	r.Deleted += res.Deleted
}

// secondaryTargets lists loans, investments and employees, which are not
// stored as recurring obligations.
func (s *ProjectionService) secondaryTargets(ctx context.Context) ([]core.EntryKey, error) {
	var out []core.EntryKey
	loans, err := s.obligations.ListLoans(ctx)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	for _, l := range loans {
		out = append(out, core.EntryKey{Kind: core.KindLoan, ObligationID: l.ID})
	}
	invs, err := s.obligations.ListInvestments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list investments: %w", err)
	}
	for _, inv := range invs {
		out = append(out, core.EntryKey{Kind: core.KindDepreciation, ObligationID: inv.ID})
	}
	staff, err := s.obligations.ListPersonnel(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list personnel: %w", err)
	}
	for _, p := range staff {
		out = append(out, core.EntryKey{Kind: core.KindPersonnel, ObligationID: p.ID})
	}
	return out, nil
}

// Ledger returns every ledger row inside w, from cache when possible.
func (s *ProjectionService) Ledger(ctx context.Context, w core.Window) ([]core.ProjectionEntry, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	key := "ledger:" + w.String()
	if s.cache != nil {
		if entries, ok := s.cache.Get(key); ok {
			return entries, nil
		}
	}
	entries, err := s.ledger.ListAllProjections(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("list projections: %w", err)
	}
	if s.cache != nil {
		s.cache.Set(key, entries)
	}
	return entries, nil
}

func (s *ProjectionService) SalaryProjections(ctx context.Context, personnelID int64, w core.Window) ([]core.SalaryProjection, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return s.ledger.ListSalaryProjections(ctx, personnelID, w)
}

var ErrPersonnelActualAmount = errors.New("personnel actuals are recorded per salary component")

// MarkPaid records a payment on a ledger row. Personnel rows are paid
// through their payroll row so both tables stay in step.
func (s *ProjectionService) MarkPaid(ctx context.Context, key core.EntryKey, a core.Actuals) error {
	if key.Kind == core.KindPersonnel {
		if a.ActualAmount != nil {
			return core.NewValidationError("actual_amount", ErrPersonnelActualAmount)
		}
		return s.MarkSalaryPaid(ctx, core.SalaryKey{PersonnelID: key.ObligationID, Month: key.Month},
			core.SalaryActuals{IsNetPaid: a.IsPaid, IsTaxesPaid: a.IsPaid, Notes: a.Notes})
	}
	if err := s.ledger.MarkPaid(ctx, key, a); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Purge()
	}
	return nil
}

// MarkSalaryPaid records payroll actuals and refreshes the ledger row.
func (s *ProjectionService) MarkSalaryPaid(ctx context.Context, key core.SalaryKey, a core.SalaryActuals) error {
	if err := s.ledger.MarkSalaryPaid(ctx, key, a); err != nil {
		return err
	}
	p, err := s.obligations.GetPersonnel(ctx, key.PersonnelID)
	if err != nil {
		return err
	}
	w := core.Window{Start: key.Month, End: key.Month}
	rows, err := s.ledger.ListSalaryProjections(ctx, key.PersonnelID, w)
	if err != nil {
		return fmt.Errorf("reload salary projection: %w", err)
	}
	_, err = s.mirrorPayroll(ctx, p, w, rows)
	return err
}
