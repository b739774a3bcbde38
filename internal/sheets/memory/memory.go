package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	ports "forecast/internal/sheets"
)

// Store keeps sheets in memory. It backs dry runs and tests.
type Store struct {
	mu     sync.Mutex
	sheets map[string][][]any
}

var (
	_ ports.RowWriter = (*Store)(nil)
	_ ports.RowReader = (*Store)(nil)
)

func New() *Store {
	return &Store{sheets: map[string][][]any{}}
}

// AppendRows stores the rows and returns a synthetic range reference.
func (s *Store) AppendRows(_ context.Context, sheet string, rows [][]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	first := len(s.sheets[sheet]) + 1
	for _, r := range rows {
		s.sheets[sheet] = append(s.sheets[sheet], slices.Clone(r))
	}
	return fmt.Sprintf("mem:%s!%d:%d", sheet, first, len(s.sheets[sheet])), nil
}

func (s *Store) ReadRows(_ context.Context, sheet string) ([][]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, 0, len(s.sheets[sheet]))
	for _, r := range s.sheets[sheet] {
		out = append(out, slices.Clone(r))
	}
	return out, nil
}

// Sheets lists the sheet names written so far, sorted.
func (s *Store) Sheets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.sheets))
	for name := range s.sheets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
