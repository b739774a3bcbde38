package memory

import (
	"context"
	"testing"
)

func TestMemoryStoreAppendAndRead(t *testing.T) {
	s := New()
	ctx := context.Background()

	ref, err := s.AppendRows(ctx, "2025 Statements", [][]any{{"a"}, {"b"}})
	if err != nil || ref != "mem:2025 Statements!1:2" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}
	ref, err = s.AppendRows(ctx, "2025 Statements", [][]any{{"c"}})
	if err != nil || ref != "mem:2025 Statements!3:3" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}

	rows, err := s.ReadRows(ctx, "2025 Statements")
	if err != nil || len(rows) != 3 {
		t.Fatalf("unexpected rows: %v err=%v", rows, err)
	}
	rows[0][0] = "mutated"
	again, _ := s.ReadRows(ctx, "2025 Statements")
	if again[0][0] != "a" {
		t.Errorf("ReadRows() returned shared storage")
	}

	empty, err := s.ReadRows(ctx, "missing")
	if err != nil || len(empty) != 0 {
		t.Errorf("ReadRows(missing) = %v, %v", empty, err)
	}
	if got := s.Sheets(); len(got) != 1 || got[0] != "2025 Statements" {
		t.Errorf("Sheets() = %v", got)
	}
}
