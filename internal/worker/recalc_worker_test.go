package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"forecast/internal/amqp"
	"forecast/internal/core"
	"forecast/internal/services"
)

type fakeProjections struct {
	err       error
	ledger    []core.ProjectionEntry
	single    int
	full      int
	lastAsOf  core.Month
	lastRange core.Window
}

func (f *fakeProjections) Recalculate(_ context.Context, _ core.ObligationKind, _ int64, w core.Window, asOf core.Month) (services.RecalcResult, error) {
	f.single++
	f.lastAsOf, f.lastRange = asOf, w
	return services.RecalcResult{}, f.err
}

func (f *fakeProjections) RecalculateAll(_ context.Context, w core.Window, asOf core.Month) (services.BatchReport, error) {
	f.full++
	f.lastAsOf, f.lastRange = asOf, w
	return services.BatchReport{}, f.err
}

func (f *fakeProjections) Ledger(context.Context, core.Window) ([]core.ProjectionEntry, error) {
	return f.ledger, nil
}

func fixedNow() time.Time { return time.Date(2025, time.March, 14, 9, 0, 0, 0, time.UTC) }

func TestHandleRecalcMessage(t *testing.T) {
	w := core.Window{Start: core.NewMonth(2025, time.January), End: core.NewMonth(2025, time.June)}

	tests := []struct {
		name    string
		msg     *amqp.RecalcMessage
		err     error
		wantErr bool
		single  int
		full    int
	}{
		{"single obligation", amqp.NewRecalcMessage(core.KindExpense, 1, w), nil, false, 1, 0},
		{"full recalculation", amqp.NewRecalcMessage("", 0, w), nil, false, 0, 1},
		{"missing obligation is acked", amqp.NewRecalcMessage(core.KindLoan, 9, w), fmt.Errorf("loan 9: %w", core.ErrNotFound), false, 1, 0},
		{"invalid obligation is acked", amqp.NewRecalcMessage(core.KindLeasing, 2, w), core.NewValidationError("amount", core.ErrInvalidAmount), false, 1, 0},
		{"storage failure is requeued", amqp.NewRecalcMessage(core.KindExpense, 1, w), core.ErrConflict, true, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeProjections{err: tt.err}
			worker := NewRecalcWorker(fake, 12)
			worker.now = fixedNow

			err := worker.HandleRecalcMessage(context.Background(), tt.msg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("HandleRecalcMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, tt.err) {
				t.Errorf("HandleRecalcMessage() error = %v, want wrapped %v", err, tt.err)
			}
			if fake.single != tt.single || fake.full != tt.full {
				t.Errorf("calls = (%d, %d), want (%d, %d)", fake.single, fake.full, tt.single, tt.full)
			}
			if fake.lastAsOf != core.NewMonth(2025, time.March) {
				t.Errorf("asOf = %v, want 2025-03", fake.lastAsOf)
			}
			if fake.lastRange != w {
				t.Errorf("window = %v, want %v", fake.lastRange, w)
			}
		})
	}
}

func TestStartupCheck(t *testing.T) {
	t.Run("empty ledger triggers recalculation", func(t *testing.T) {
		fake := &fakeProjections{}
		worker := NewRecalcWorker(fake, 6)
		worker.now = fixedNow

		if err := worker.StartupCheck(context.Background()); err != nil {
			t.Fatalf("StartupCheck() error = %v", err)
		}
		if fake.full != 1 {
			t.Errorf("RecalculateAll calls = %d, want 1", fake.full)
		}
		if got := fake.lastRange.String(); got != "2025-03..2025-08" {
			t.Errorf("window = %s, want 2025-03..2025-08", got)
		}
	})

	t.Run("populated ledger is left alone", func(t *testing.T) {
		fake := &fakeProjections{ledger: []core.ProjectionEntry{{Kind: core.KindExpense, ObligationID: 1}}}
		worker := NewRecalcWorker(fake, 6)
		worker.now = fixedNow

		if err := worker.StartupCheck(context.Background()); err != nil {
			t.Fatalf("StartupCheck() error = %v", err)
		}
		if fake.full != 0 {
			t.Errorf("RecalculateAll calls = %d, want 0", fake.full)
		}
	})
}
