package services

import (
	"context"
	"errors"
	"log/slog"

	"forecast/internal/amqp"
	"forecast/internal/core"
)

// RecalcPublisher hands a recalculation request to the worker queue.
type RecalcPublisher interface {
	PublishRecalc(ctx context.Context, msg *amqp.RecalcMessage) error
}

// Request is what callers know about a recalculation: the target and the
// window. An empty Kind asks for every obligation.
type Request struct {
	Kind         core.ObligationKind
	ObligationID int64
	Window       core.Window
	AsOf         core.Month
}

// Outcome reports whether a request was queued or run immediately.
type Outcome struct {
	Queued bool          `json:"queued"`
	RunID  string        `json:"run_id,omitempty"`
	Result *RecalcResult `json:"result,omitempty"`
	Report *BatchReport  `json:"report,omitempty"`
}

// Publisher routes recalculation requests to AMQP when a client is
// configured and runs them inline otherwise. When publishing fails the
// request runs inline so the caller still gets fresh projections.
type Publisher struct {
	queue    RecalcPublisher
	projects *ProjectionService
}

func NewPublisher(queue RecalcPublisher, projects *ProjectionService) *Publisher {
	return &Publisher{queue: queue, projects: projects}
}

func (p *Publisher) Submit(ctx context.Context, req Request) (Outcome, error) {
	if err := req.Window.Validate(); err != nil {
		return Outcome{}, err
	}
	if p.queue != nil {
		msg := amqp.NewRecalcMessage(req.Kind, req.ObligationID, req.Window)
		err := p.queue.PublishRecalc(ctx, msg)
		if err == nil {
			return Outcome{Queued: true, RunID: msg.RunID.String()}, nil
		}
		if errors.Is(err, core.ErrValidation) {
			return Outcome{}, err
		}
		slog.WarnContext(ctx, "Publishing recalculation failed, running inline",
			"projection_type", req.Kind,
			"obligation_id", req.ObligationID,
			"error", err)
	}
	return p.runInline(ctx, req)
}

func (p *Publisher) runInline(ctx context.Context, req Request) (Outcome, error) {
	if req.Kind == "" {
		report, err := p.projects.RecalculateAll(ctx, req.Window, req.AsOf)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{RunID: report.RunID.String(), Report: &report}, nil
	}
	res, err := p.projects.Recalculate(ctx, req.Kind, req.ObligationID, req.Window, req.AsOf)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Result: &res}, nil
}
