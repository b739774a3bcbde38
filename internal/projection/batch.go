package projection

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"forecast/internal/core"
)

const defaultConcurrency = 4

// BatchFailure records one obligation that could not be projected.
type BatchFailure struct {
	Kind         core.ObligationKind
	ObligationID int64
	Err          error
}

func (f BatchFailure) Error() string {
	return fmt.Sprintf("%s %d: %v", f.Kind, f.ObligationID, f.Err)
}

func (f BatchFailure) Unwrap() error { return f.Err }

// BatchResult holds every entry that was produced plus the obligations
// that failed. A failure never hides the other obligations' entries.
type BatchResult struct {
	Entries []core.ProjectionEntry
	// ByID groups entries per obligation; the key's Month is left zero.
	ByID      map[core.EntryKey][]core.ProjectionEntry
	Succeeded int
	Failures  []BatchFailure
}

// Partial reports whether some obligations failed.
func (r BatchResult) Partial() bool { return len(r.Failures) > 0 }

// Batch projects many obligations concurrently.
type Batch struct {
	Projector   *Projector
	Concurrency int
}

// ProjectAll projects every obligation independently. Each obligation is
// dispatched to the projector of its kind. Output is ordered by month,
// kind and obligation id.
func (b Batch) ProjectAll(ctx context.Context, obligations []core.RecurringObligation, w core.Window, asOf core.Month) (BatchResult, error) {
	if err := w.Validate(); err != nil {
		return BatchResult{}, err
	}
	limit := b.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}

	results := make([][]core.ProjectionEntry, len(obligations))
	var (
		mu       sync.Mutex
		failures []BatchFailure
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, ob := range obligations {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := ForKind(ob.Kind, b.Projector)
			if err == nil {
				results[i], err = p.Project(ob, w, asOf)
			}
			if err != nil {
				mu.Lock()
				failures = append(failures, BatchFailure{Kind: ob.Kind, ObligationID: ob.ID, Err: err})
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BatchResult{}, err
	}

	res := BatchResult{
		ByID:      make(map[core.EntryKey][]core.ProjectionEntry),
		Succeeded: len(obligations) - len(failures),
		Failures:  failures,
	}
	for i, entries := range results {
		key := core.EntryKey{Kind: obligations[i].Kind, ObligationID: obligations[i].ID}
		res.ByID[key] = entries
		res.Entries = append(res.Entries, entries...)
	}
	SortEntries(res.Entries)
	slices.SortFunc(res.Failures, func(a, b BatchFailure) int {
		return cmp.Or(cmp.Compare(a.Kind, b.Kind), cmp.Compare(a.ObligationID, b.ObligationID))
	})
	return res, nil
}

// SortEntries orders entries by month, kind and obligation id.
func SortEntries(entries []core.ProjectionEntry) {
	slices.SortStableFunc(entries, CompareEntries)
}

func CompareEntries(a, b core.ProjectionEntry) int {
	return cmp.Or(
		cmp.Compare(a.Month.Index(), b.Month.Index()),
		cmp.Compare(a.Kind, b.Kind),
		cmp.Compare(a.ObligationID, b.ObligationID),
	)
}
