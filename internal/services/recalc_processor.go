package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"forecast/internal/core"
)

// Recalculator is the part of ProjectionService the processor drives.
type Recalculator interface {
	RecalculateAll(ctx context.Context, w core.Window, asOf core.Month) (BatchReport, error)
}

type RecalcProcessorConfig struct {
	// Schedule is a standard five-field cron spec (default: daily at 03:00).
	Schedule string
	// HorizonMonths is how far ahead of the current month to project (default: 12).
	HorizonMonths int
	// RunOnStart triggers one recalculation immediately after Start.
	RunOnStart bool
}

func DefaultRecalcProcessorConfig() RecalcProcessorConfig {
	return RecalcProcessorConfig{
		Schedule:      "0 3 * * *",
		HorizonMonths: 12,
		RunOnStart:    true,
	}
}

// RecalcProcessor re-projects the rolling horizon on a cron schedule.
// A failed run is logged and the next tick tries again.
type RecalcProcessor struct {
	recalc Recalculator
	config RecalcProcessorConfig
	now    func() time.Time

	mu      sync.Mutex
	running bool
	cron    *cron.Cron
	runMu   sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewRecalcProcessor(recalc Recalculator, config RecalcProcessorConfig) *RecalcProcessor {
	if config.HorizonMonths < 1 {
		config.HorizonMonths = DefaultRecalcProcessorConfig().HorizonMonths
	}
	if config.Schedule == "" {
		config.Schedule = DefaultRecalcProcessorConfig().Schedule
	}
	return &RecalcProcessor{recalc: recalc, config: config, now: time.Now}
}

// Start schedules the recalculation. Returns an error if already running
// or if the schedule does not parse.
func (p *RecalcProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("recalc processor is already running")
	}

	c := cron.New()
	runCtx, cancel := context.WithCancel(ctx)
	if _, err := c.AddFunc(p.config.Schedule, func() { p.tick(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("schedule recalculation %q: %w", p.config.Schedule, err)
	}
	p.cron, p.cancel = c, cancel
	p.running = true
	c.Start()

	slog.InfoContext(ctx, "Recalc processor started",
		"schedule", p.config.Schedule,
		"horizon_months", p.config.HorizonMonths)

	if p.config.RunOnStart {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.tick(runCtx)
		}()
	}
	return nil
}

// Stop cancels the running recalculation, if any, and waits for it to
// return or for ctx to expire.
func (p *RecalcProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	c, cancel := p.cron, p.cancel
	p.mu.Unlock()

	cancel()
	done := make(chan struct{})
	go func() {
		<-c.Stop().Done()
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.InfoContext(ctx, "Recalc processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Recalc processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *RecalcProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *RecalcProcessor) tick(ctx context.Context) {
	if _, err := p.RunOnce(ctx); err != nil {
		slog.ErrorContext(ctx, "Scheduled recalculation failed", "error", err)
	}
}

// RunOnce recalculates the horizon starting at the current month. Runs
// never overlap: a run that starts while another is active waits for it.
func (p *RecalcProcessor) RunOnce(ctx context.Context) (BatchReport, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	asOf := core.MonthOf(p.now())
	w := core.HorizonWindow(asOf, p.config.HorizonMonths)
	report, err := p.recalc.RecalculateAll(ctx, w, asOf)
	if err != nil {
		return report, fmt.Errorf("recalculate %s: %w", w, err)
	}
	return report, nil
}
