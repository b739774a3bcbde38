package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"forecast/internal/core"
	"forecast/internal/statements"
)

// Header is the first row of every statement sheet.
var Header = []any{"Month", "Statement", "Field", "Amount", "Exported At"}

// Exporter appends computed statements to a yearly sheet, one row per
// figure. The sheet is an append-only log: a recomputed month adds newer
// rows and readers keep the latest value per figure.
type Exporter struct {
	w    RowWriter
	base string
	now  func() time.Time

	mu      sync.Mutex
	headers map[string]bool
}

func NewExporter(w RowWriter, baseSheet string) *Exporter {
	if strings.TrimSpace(baseSheet) == "" {
		baseSheet = "Statements"
	}
	return &Exporter{w: w, base: baseSheet, now: time.Now, headers: map[string]bool{}}
}

// withHeader prepends the header row the first time an empty sheet is
// written. Writers that cannot be read from never get a header.
func (e *Exporter) withHeader(ctx context.Context, sheet string, rows [][]any) ([][]any, error) {
	r, ok := e.w.(RowReader)
	if !ok {
		return rows, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.headers[sheet] {
		return rows, nil
	}
	existing, err := r.ReadRows(ctx, sheet)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sheet, err)
	}
	e.headers[sheet] = true
	if len(existing) > 0 {
		return rows, nil
	}
	return append([][]any{Header}, rows...), nil
}

func (e *Exporter) ExportStatement(ctx context.Context, kind statements.Kind, m core.Month, stmt any) error {
	rows, err := StatementRows(kind, m, stmt, e.now())
	if err != nil {
		return err
	}
	sheet := SheetName(e.base, m.Year)
	if rows, err = e.withHeader(ctx, sheet, rows); err != nil {
		return err
	}
	ref, err := e.w.AppendRows(ctx, sheet, rows)
	if err != nil {
		return fmt.Errorf("append %s rows to %s: %w", kind, sheet, err)
	}
	slog.InfoContext(ctx, "Statement exported",
		"statement", kind,
		"month", m.String(),
		"sheet", sheet,
		"range", ref,
		"rows", len(rows))
	return nil
}

// StatementRows flattens a statement into one row per amount, sorted by
// field name. Only amount fields are exported.
func StatementRows(kind statements.Kind, m core.Month, stmt any, at time.Time) ([][]any, error) {
	raw, err := json.Marshal(stmt)
	if err != nil {
		return nil, fmt.Errorf("encode %s statement: %w", kind, err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("flatten %s statement: %w", kind, err)
	}

	names := make([]string, 0, len(fields))
	for name, v := range fields {
		s, ok := v.(string)
		if !ok || name == "month" {
			continue
		}
		if _, err := core.ParseSignedMoney(s); err != nil {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)

	stamp := at.UTC().Format(time.RFC3339)
	rows := make([][]any, 0, len(names))
	for _, name := range names {
		rows = append(rows, []any{m.String(), string(kind), name, fields[name], stamp})
	}
	return rows, nil
}

// SheetName returns "<year> <base>" unless base already starts with a
// four-digit year.
func SheetName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

// Line is one exported figure read back from a sheet.
type Line struct {
	Month     core.Month
	Statement statements.Kind
	Field     string
	Amount    core.Money
}

// Lines reads the statements exported for year. When a figure was
// exported more than once the last row wins. Rows that do not parse are
// skipped.
func (e *Exporter) Lines(ctx context.Context, year int) ([]Line, error) {
	r, ok := e.w.(RowReader)
	if !ok {
		return nil, fmt.Errorf("sheet writer cannot be read back")
	}
	values, err := r.ReadRows(ctx, SheetName(e.base, year))
	if err != nil {
		return nil, err
	}
	return ParseLines(values), nil
}

func ParseLines(values [][]any) []Line {
	type key struct {
		month     core.Month
		statement statements.Kind
		field     string
	}
	idx := map[key]int{}
	var out []Line
	for _, row := range values {
		cols := toStrings(row)
		if len(cols) < 4 {
			continue
		}
		m, err := core.ParseMonth(cols[0])
		if err != nil {
			continue
		}
		kind, err := statements.ParseKind(cols[1])
		if err != nil {
			continue
		}
		amount, err := core.ParseSignedMoney(cols[3])
		if err != nil {
			continue
		}
		l := Line{Month: m, Statement: kind, Field: cols[2], Amount: amount}
		k := key{m, kind, l.Field}
		if i, seen := idx[k]; seen {
			out[i] = l
			continue
		}
		idx[k] = len(out)
		out = append(out, l)
	}
	return out
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
