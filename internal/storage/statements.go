package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"forecast/internal/core"
	"forecast/internal/statements"
)

// statementTables maps each statement kind to its table. Table names never
// come from user input.
var statementTables = map[statements.Kind]string{
	statements.KindProfitAndLoss:  "profit_and_loss_statements",
	statements.KindBalanceSheet:   "balance_sheets",
	statements.KindWorkingCapital: "working_capital_statements",
	statements.KindFinancialPlan:  "financial_plans",
	statements.KindCashFlow:       "cash_flow_statements",
}

func statementTable(kind statements.Kind) (string, error) {
	table, ok := statementTables[kind]
	if !ok {
		return "", core.NewValidationError("statement", fmt.Errorf("%w: %q", statements.ErrUnknownKind, kind))
	}
	return table, nil
}

// SaveStatement upserts a computed statement, keyed by month.
func (r *SQLiteRepository) SaveStatement(ctx context.Context, kind statements.Kind, m core.Month, stmt any) error {
	table, err := statementTable(kind)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(stmt)
	if err != nil {
		return fmt.Errorf("encode %s statement: %w", kind, err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO `+table+` (month, payload) VALUES (?, ?)
		ON CONFLICT (month) DO UPDATE SET payload = excluded.payload, updated_at = CURRENT_TIMESTAMP`,
		m.String(), string(payload))
	if err != nil {
		return classify(fmt.Errorf("save %s statement: %w", kind, err))
	}
	return nil
}

// LoadStatement decodes the stored statement for m into out.
func (r *SQLiteRepository) LoadStatement(ctx context.Context, kind statements.Kind, m core.Month, out any) error {
	table, err := statementTable(kind)
	if err != nil {
		return err
	}
	var payload string
	err = r.db.QueryRowContext(ctx, `SELECT payload FROM `+table+` WHERE month = ?`, m.String()).Scan(&payload)
	if isNoRows(err) {
		return notFound(string(kind)+" statement", m)
	}
	if err != nil {
		return fmt.Errorf("load %s statement: %w", kind, err)
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("decode %s statement: %w", kind, err)
	}
	return nil
}

// BudgetEntry is one cell of a budget snapshot: an account path and month.
type BudgetEntry struct {
	BudgetID    int64
	AccountPath string
	Month       core.Month
	Amount      core.Money
}

// UpsertBudgetEntries writes a budget snapshot in one transaction.
func (r *SQLiteRepository) UpsertBudgetEntries(ctx context.Context, entries []BudgetEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO budget_entries (budget_id, account_path, month, amount_cents)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (budget_id, account_path, month) DO UPDATE SET
				amount_cents = excluded.amount_cents,
				updated_at = CURRENT_TIMESTAMP`)
		if err != nil {
			return fmt.Errorf("prepare budget upsert: %w", err)
		}
		defer stmt.Close()

		for _, e := range entries {
			if _, err := stmt.ExecContext(ctx, e.BudgetID, e.AccountPath, e.Month.String(), e.Amount.Cents); err != nil {
				return fmt.Errorf("upsert budget entry %s/%s: %w", e.AccountPath, e.Month, err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) ListBudgetEntries(ctx context.Context, budgetID int64, w core.Window) ([]BudgetEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT budget_id, account_path, month, amount_cents FROM budget_entries
		WHERE budget_id = ? AND month BETWEEN ? AND ?
		ORDER BY month, account_path`,
		budgetID, w.Start.String(), w.End.String())
	if err != nil {
		return nil, fmt.Errorf("list budget entries: %w", err)
	}
	defer rows.Close()

	var out []BudgetEntry
	for rows.Next() {
		var (
			e     BudgetEntry
			month string
		)
		if err := rows.Scan(&e.BudgetID, &e.AccountPath, &month, &e.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan budget entry: %w", err)
		}
		if e.Month, err = core.ParseMonth(month); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
