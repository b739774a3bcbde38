package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"forecast/internal/amqp"
	"forecast/internal/core"
	"forecast/internal/services"
)

// Projections is the part of the projection service the worker drives.
type Projections interface {
	Recalculate(ctx context.Context, kind core.ObligationKind, id int64, w core.Window, asOf core.Month) (services.RecalcResult, error)
	RecalculateAll(ctx context.Context, w core.Window, asOf core.Month) (services.BatchReport, error)
	Ledger(ctx context.Context, w core.Window) ([]core.ProjectionEntry, error)
}

// RecalcWorker runs recalculation requests taken from the queue.
type RecalcWorker struct {
	projections   Projections
	horizonMonths int
	now           func() time.Time
}

func NewRecalcWorker(projections Projections, horizonMonths int) *RecalcWorker {
	if horizonMonths < 1 {
		horizonMonths = 12
	}
	return &RecalcWorker{
		projections:   projections,
		horizonMonths: horizonMonths,
		now:           time.Now,
	}
}

// HandleRecalcMessage processes one request. Requests that can never
// succeed, such as invalid input or a deleted obligation, are logged and
// acknowledged. Any other error is returned so the message is requeued.
func (w *RecalcWorker) HandleRecalcMessage(ctx context.Context, msg *amqp.RecalcMessage) error {
	asOf := core.MonthOf(w.now())

	var err error
	if msg.IsFullRecalc() {
		var report services.BatchReport
		report, err = w.projections.RecalculateAll(ctx, msg.Window(), asOf)
		if err == nil {
			slog.InfoContext(ctx, "Full recalculation finished",
				"run_id", msg.RunID,
				"succeeded", report.Succeeded,
				"failed", len(report.Failed))
		}
	} else {
		_, err = w.projections.Recalculate(ctx, core.ObligationKind(msg.Kind), msg.ObligationID, msg.Window(), asOf)
	}
	if err == nil {
		return nil
	}

	if errors.Is(err, core.ErrValidation) || errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Dropping recalculation request",
			"run_id", msg.RunID,
			"projection_type", msg.Kind,
			"obligation_id", msg.ObligationID,
			"error", err)
		return nil
	}
	return fmt.Errorf("recalculate %s %d: %w", msg.Kind, msg.ObligationID, err)
}

// StartupCheck projects the rolling horizon when the ledger has nothing
// for it yet, so a fresh deployment or a worker that missed messages
// starts from a populated ledger.
func (w *RecalcWorker) StartupCheck(ctx context.Context) error {
	asOf := core.MonthOf(w.now())
	window := core.HorizonWindow(asOf, w.horizonMonths)

	entries, err := w.projections.Ledger(ctx, window)
	if err != nil {
		return fmt.Errorf("check ledger for startup: %w", err)
	}
	if len(entries) > 0 {
		slog.InfoContext(ctx, "Ledger already covers the horizon",
			"window", window.String(),
			"entries", len(entries))
		return nil
	}

	slog.InfoContext(ctx, "Ledger is empty for the horizon, recalculating",
		"window", window.String())
	report, err := w.projections.RecalculateAll(ctx, window, asOf)
	if err != nil {
		return fmt.Errorf("startup recalculation: %w", err)
	}
	slog.InfoContext(ctx, "Startup recalculation completed",
		"run_id", report.RunID,
		"succeeded", report.Succeeded,
		"failed", len(report.Failed))
	return nil
}
