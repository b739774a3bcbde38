package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"forecast/internal/core"
)

const entryColumns = `projection_type, reference_id, name, category, month, amount_cents, payment_date,
	is_projected, is_paid, paid_date, actual_amount_cents, notes`

// ProjectionWrite is one change set for the ledger, applied atomically.
type ProjectionWrite struct {
	Upsert []core.ProjectionEntry
	// Delete removes rows unless actuals were recorded on them in the
	// meantime.
	Delete []core.EntryKey
	// OverwriteActuals replaces stored actuals with the upserted ones.
	// Without it the stored actual columns are never touched by an update,
	// so a payment recorded after the rows were read survives.
	OverwriteActuals bool
}

const upsertEntrySQL = `
	INSERT INTO budget_projections (` + entryColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (projection_type, reference_id, month) DO UPDATE SET
		name = excluded.name,
		category = excluded.category,
		amount_cents = excluded.amount_cents,
		payment_date = excluded.payment_date,
		is_projected = excluded.is_projected,`

const overwriteActualsSQL = `
		is_paid = excluded.is_paid,
		paid_date = excluded.paid_date,
		actual_amount_cents = excluded.actual_amount_cents,
		notes = excluded.notes,`

// WriteProjections applies w in one transaction. Rows are keyed by (kind,
// obligation, month). Subscription rows are mirrored into
// subscription_projection_entries in the same transaction.
func (r *SQLiteRepository) WriteProjections(ctx context.Context, w ProjectionWrite) error {
	if len(w.Upsert) == 0 && len(w.Delete) == 0 {
		return nil
	}
	upsertSQL := upsertEntrySQL
	if w.OverwriteActuals {
		upsertSQL += overwriteActualsSQL
	}
	upsertSQL += `
		updated_at = CURRENT_TIMESTAMP`

	var deleted int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertSQL)
		if err != nil {
			return fmt.Errorf("prepare projection upsert: %w", err)
		}
		defer stmt.Close()

		mirror, err := tx.PrepareContext(ctx, `
			INSERT INTO subscription_projection_entries (subscription_id, month, amount_cents, payment_date, is_projected)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (subscription_id, month) DO UPDATE SET
				amount_cents = excluded.amount_cents,
				payment_date = excluded.payment_date,
				is_projected = excluded.is_projected,
				updated_at = CURRENT_TIMESTAMP`)
		if err != nil {
			return fmt.Errorf("prepare subscription mirror: %w", err)
		}
		defer mirror.Close()

		for _, e := range w.Upsert {
			if _, err := stmt.ExecContext(ctx,
				string(e.Kind), e.ObligationID, e.Name, e.Category, e.Month.String(), e.Amount.Cents,
				nullDate(e.PaymentDate), boolInt(e.IsProjected), boolInt(e.IsPaid), nullDate(e.PaidDate),
				nullMoney(e.ActualAmount), e.Notes); err != nil {
				return fmt.Errorf("upsert projection %s: %w", e.Key(), err)
			}
			if e.Kind != core.KindSubscription {
				continue
			}
			if _, err := mirror.ExecContext(ctx,
				e.ObligationID, e.Month.String(), e.Amount.Cents, nullDate(e.PaymentDate),
				boolInt(e.IsProjected)); err != nil {
				return fmt.Errorf("mirror subscription entry %s: %w", e.Key(), err)
			}
		}

		if len(w.Delete) == 0 {
			return nil
		}
		del, err := tx.PrepareContext(ctx, `
			DELETE FROM budget_projections
			WHERE projection_type = ? AND reference_id = ? AND month = ?
				AND is_paid = 0 AND paid_date IS NULL AND actual_amount_cents IS NULL AND notes = ''`)
		if err != nil {
			return fmt.Errorf("prepare projection delete: %w", err)
		}
		defer del.Close()

		delMirror, err := tx.PrepareContext(ctx, `
			DELETE FROM subscription_projection_entries WHERE subscription_id = ? AND month = ?`)
		if err != nil {
			return fmt.Errorf("prepare subscription mirror delete: %w", err)
		}
		defer delMirror.Close()

		for _, k := range w.Delete {
			res, err := del.ExecContext(ctx, string(k.Kind), k.ObligationID, k.Month.String())
			if err != nil {
				return fmt.Errorf("delete projection %s: %w", k, err)
			}
			n, _ := res.RowsAffected()
			deleted += n
			if n == 0 || k.Kind != core.KindSubscription {
				continue
			}
			if _, err := delMirror.ExecContext(ctx, k.ObligationID, k.Month.String()); err != nil {
				return fmt.Errorf("delete subscription entry %s: %w", k, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.DebugContext(ctx, "Projections written",
		"upserted", len(w.Upsert),
		"deleted", deleted,
		"kept", int64(len(w.Delete))-deleted)
	return nil
}

// ListProjections returns one obligation's ledger rows inside w.
func (r *SQLiteRepository) ListProjections(ctx context.Context, kind core.ObligationKind, id int64, w core.Window) ([]core.ProjectionEntry, error) {
	return r.queryEntries(ctx, `
		SELECT `+entryColumns+` FROM budget_projections
		WHERE projection_type = ? AND reference_id = ? AND month BETWEEN ? AND ?
		ORDER BY month`,
		string(kind), id, w.Start.String(), w.End.String())
}

// ListAllProjections returns every ledger row inside w.
func (r *SQLiteRepository) ListAllProjections(ctx context.Context, w core.Window) ([]core.ProjectionEntry, error) {
	return r.queryEntries(ctx, `
		SELECT `+entryColumns+` FROM budget_projections
		WHERE month BETWEEN ? AND ?
		ORDER BY month, projection_type, reference_id`,
		w.Start.String(), w.End.String())
}

func (r *SQLiteRepository) queryEntries(ctx context.Context, query string, args ...any) ([]core.ProjectionEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query projections: %w", err)
	}
	defer rows.Close()

	var out []core.ProjectionEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan projection: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEntry(s scanner) (core.ProjectionEntry, error) {
	var (
		e                 core.ProjectionEntry
		kind, month       string
		paymentDate, paid sql.NullString
		actual            sql.NullInt64
	)
	if err := s.Scan(&kind, &e.ObligationID, &e.Name, &e.Category, &month, &e.Amount.Cents,
		&paymentDate, &e.IsProjected, &e.IsPaid, &paid, &actual, &e.Notes); err != nil {
		return e, err
	}
	e.Kind = core.ObligationKind(kind)
	e.ActualAmount = moneyPtr(actual)

	var err error
	if e.Month, err = core.ParseMonth(month); err != nil {
		return e, err
	}
	if e.PaymentDate, err = parseNullDate(paymentDate); err != nil {
		return e, err
	}
	e.PaidDate, err = parseNullDate(paid)
	return e, err
}

// MarkPaid records actuals on an existing ledger row.
func (r *SQLiteRepository) MarkPaid(ctx context.Context, key core.EntryKey, a core.Actuals) error {
	if a.ActualAmount != nil && a.ActualAmount.Cents < 0 {
		return core.NewValidationError("actual_amount", core.ErrInvalidAmount)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE budget_projections SET is_paid = ?, paid_date = ?, actual_amount_cents = ?, notes = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE projection_type = ? AND reference_id = ? AND month = ?`,
		boolInt(a.IsPaid), nullDate(a.PaidDate), nullMoney(a.ActualAmount), a.Notes,
		string(key.Kind), key.ObligationID, key.Month.String())
	if err != nil {
		return classify(fmt.Errorf("mark projection paid: %w", err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("projection", key)
	}

	slog.InfoContext(ctx, "Projection marked paid",
		"key", key.String(),
		"is_paid", a.IsPaid)
	return nil
}

const salaryColumns = `personnel_id, month, brute_salary_cents, social_taxes_cents, net_salary_cents,
	employer_taxes_cents, net_payment_date, taxes_payment_date, is_projected, is_net_paid, is_taxes_paid,
	actual_net_cents, actual_taxes_cents, notes`

// SalaryWrite is one change set for payroll rows, applied atomically.
// Payroll actuals are only written by MarkSalaryPaid.
type SalaryWrite struct {
	Upsert []core.SalaryProjection
	// Delete removes rows unless a payment was recorded on them.
	Delete []core.SalaryKey
}

// WriteSalaryProjections applies w in one transaction, keyed by
// (personnel, month).
func (r *SQLiteRepository) WriteSalaryProjections(ctx context.Context, w SalaryWrite) error {
	if len(w.Upsert) == 0 && len(w.Delete) == 0 {
		return nil
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO personnel_salary_projections (`+salaryColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (personnel_id, month) DO UPDATE SET
				brute_salary_cents = excluded.brute_salary_cents,
				social_taxes_cents = excluded.social_taxes_cents,
				net_salary_cents = excluded.net_salary_cents,
				employer_taxes_cents = excluded.employer_taxes_cents,
				net_payment_date = excluded.net_payment_date,
				taxes_payment_date = excluded.taxes_payment_date,
				is_projected = excluded.is_projected,
				updated_at = CURRENT_TIMESTAMP`)
		if err != nil {
			return fmt.Errorf("prepare salary upsert: %w", err)
		}
		defer stmt.Close()

		for _, s := range w.Upsert {
			if _, err := stmt.ExecContext(ctx,
				s.PersonnelID, s.Month.String(), s.BruteSalary.Cents, s.SocialTaxes.Cents, s.NetSalary.Cents,
				s.EmployerTaxes.Cents, nullDate(s.NetPaymentDate), nullDate(s.TaxesPaymentDate),
				boolInt(s.IsProjected), boolInt(s.IsNetPaid), boolInt(s.IsTaxesPaid),
				nullMoney(s.ActualNetAmount), nullMoney(s.ActualTaxesAmount), s.Notes); err != nil {
				return fmt.Errorf("upsert salary %d/%s: %w", s.PersonnelID, s.Month, err)
			}
		}

		for _, k := range w.Delete {
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM personnel_salary_projections
				WHERE personnel_id = ? AND month = ?
					AND is_net_paid = 0 AND is_taxes_paid = 0
					AND actual_net_cents IS NULL AND actual_taxes_cents IS NULL AND notes = ''`,
				k.PersonnelID, k.Month.String()); err != nil {
				return fmt.Errorf("delete salary %d/%s: %w", k.PersonnelID, k.Month, err)
			}
		}
		return nil
	})
}

// ListSalaryProjections returns payroll rows inside w for one employee,
// or for everyone when personnelID is 0.
func (r *SQLiteRepository) ListSalaryProjections(ctx context.Context, personnelID int64, w core.Window) ([]core.SalaryProjection, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+salaryColumns+` FROM personnel_salary_projections
		WHERE (? = 0 OR personnel_id = ?) AND month BETWEEN ? AND ?
		ORDER BY personnel_id, month`,
		personnelID, personnelID, w.Start.String(), w.End.String())
	if err != nil {
		return nil, fmt.Errorf("list salary projections: %w", err)
	}
	defer rows.Close()

	var out []core.SalaryProjection
	for rows.Next() {
		var (
			s                   core.SalaryProjection
			month               string
			netDate, taxesDate  sql.NullString
			actualNet, actualTx sql.NullInt64
		)
		if err := rows.Scan(&s.PersonnelID, &month, &s.BruteSalary.Cents, &s.SocialTaxes.Cents,
			&s.NetSalary.Cents, &s.EmployerTaxes.Cents, &netDate, &taxesDate, &s.IsProjected,
			&s.IsNetPaid, &s.IsTaxesPaid, &actualNet, &actualTx, &s.Notes); err != nil {
			return nil, fmt.Errorf("scan salary projection: %w", err)
		}
		if s.Month, err = core.ParseMonth(month); err != nil {
			return nil, err
		}
		if s.NetPaymentDate, err = parseNullDate(netDate); err != nil {
			return nil, err
		}
		if s.TaxesPaymentDate, err = parseNullDate(taxesDate); err != nil {
			return nil, err
		}
		s.ActualNetAmount = moneyPtr(actualNet)
		s.ActualTaxesAmount = moneyPtr(actualTx)
		out = append(out, s)
	}
	return out, rows.Err()
}

// MarkSalaryPaid records payroll actuals on an existing row.
func (r *SQLiteRepository) MarkSalaryPaid(ctx context.Context, key core.SalaryKey, a core.SalaryActuals) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE personnel_salary_projections SET is_net_paid = ?, is_taxes_paid = ?,
			actual_net_cents = ?, actual_taxes_cents = ?, notes = ?, updated_at = CURRENT_TIMESTAMP
		WHERE personnel_id = ? AND month = ?`,
		boolInt(a.IsNetPaid), boolInt(a.IsTaxesPaid), nullMoney(a.ActualNetAmount),
		nullMoney(a.ActualTaxesAmount), a.Notes, key.PersonnelID, key.Month.String())
	if err != nil {
		return classify(fmt.Errorf("mark salary paid: %w", err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("salary projection", fmt.Sprintf("%d/%s", key.PersonnelID, key.Month))
	}
	return nil
}
