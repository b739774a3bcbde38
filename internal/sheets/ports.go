package sheets

import (
	"context"
)

// Ports for outbound spreadsheet adapters.
type (
	// RowWriter appends rows at the end of a named sheet.
	RowWriter interface {
		AppendRows(ctx context.Context, sheet string, rows [][]any) (rowRef string, err error)
	}

	// RowReader returns every row of a named sheet.
	RowReader interface {
		ReadRows(ctx context.Context, sheet string) ([][]any, error)
	}
)
