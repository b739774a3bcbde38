package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"forecast/internal/core"
)

const obligationColumns = `id, kind, name, category, amount_cents, recurrence, start_date, end_date,
	is_active, due_months, first_payment_cents, off_payment_months`

// CreateObligation stores a recurring expense, subscription or lease and
// returns its id.
func (r *SQLiteRepository) CreateObligation(ctx context.Context, ob core.RecurringObligation) (int64, error) {
	if err := ob.Validate(); err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO obligations (kind, name, category, amount_cents, recurrence, start_date, end_date,
			is_active, due_months, first_payment_cents, off_payment_months)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(ob.Kind), ob.Name, ob.Category, ob.Amount.Cents, string(ob.Recurrence),
		ob.StartDate.String(), nullDate(ob.EndDate), boolInt(ob.IsActive),
		encodeInts(ob.DueMonths), nullMoney(ob.FirstPaymentAmount), encodeInts(ob.OffPaymentMonths))
	if err != nil {
		return 0, fmt.Errorf("create obligation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read obligation id: %w", err)
	}

	slog.InfoContext(ctx, "Obligation saved to SQLite",
		"id", id,
		"kind", ob.Kind,
		"name", ob.Name,
		"amount_cents", ob.Amount.Cents)
	return id, nil
}

// UpdateObligation replaces every field of an existing obligation.
func (r *SQLiteRepository) UpdateObligation(ctx context.Context, ob core.RecurringObligation) error {
	if err := ob.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE obligations SET name = ?, category = ?, amount_cents = ?, recurrence = ?,
			start_date = ?, end_date = ?, is_active = ?, due_months = ?,
			first_payment_cents = ?, off_payment_months = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND kind = ?`,
		ob.Name, ob.Category, ob.Amount.Cents, string(ob.Recurrence),
		ob.StartDate.String(), nullDate(ob.EndDate), boolInt(ob.IsActive), encodeInts(ob.DueMonths),
		nullMoney(ob.FirstPaymentAmount), encodeInts(ob.OffPaymentMonths),
		ob.ID, string(ob.Kind))
	if err != nil {
		return fmt.Errorf("update obligation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(string(ob.Kind), ob.ID)
	}
	return nil
}

func (r *SQLiteRepository) GetObligation(ctx context.Context, kind core.ObligationKind, id int64) (core.RecurringObligation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+obligationColumns+` FROM obligations WHERE id = ? AND kind = ?`, id, string(kind))
	ob, err := scanObligation(row)
	if isNoRows(err) {
		return core.RecurringObligation{}, notFound(string(kind), id)
	}
	if err != nil {
		return core.RecurringObligation{}, fmt.Errorf("get obligation: %w", err)
	}
	return ob, nil
}

// ListObligations returns obligations of one kind, or of every kind when
// kind is empty.
func (r *SQLiteRepository) ListObligations(ctx context.Context, kind core.ObligationKind, activeOnly bool) ([]core.RecurringObligation, error) {
	query := `SELECT ` + obligationColumns + ` FROM obligations WHERE (? = '' OR kind = ?)`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY kind, id`

	rows, err := r.db.QueryContext(ctx, query, string(kind), string(kind))
	if err != nil {
		return nil, fmt.Errorf("list obligations: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringObligation
	for rows.Next() {
		ob, err := scanObligation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan obligation: %w", err)
		}
		out = append(out, ob)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanObligation(s scanner) (core.RecurringObligation, error) {
	var (
		ob                  core.RecurringObligation
		kind, recurrence    string
		start               string
		end                 sql.NullString
		dueMonths, offMonth string
		firstPayment        sql.NullInt64
	)
	if err := s.Scan(&ob.ID, &kind, &ob.Name, &ob.Category, &ob.Amount.Cents, &recurrence,
		&start, &end, &ob.IsActive, &dueMonths, &firstPayment, &offMonth); err != nil {
		return ob, err
	}
	ob.Kind = core.ObligationKind(kind)
	ob.Recurrence = core.Recurrence(recurrence)
	ob.FirstPaymentAmount = moneyPtr(firstPayment)

	var err error
	if ob.StartDate, err = core.ParseDate(start); err != nil {
		return ob, err
	}
	if ob.EndDate, err = parseNullDate(end); err != nil {
		return ob, err
	}
	if ob.DueMonths, err = decodeInts(dueMonths); err != nil {
		return ob, err
	}
	if ob.OffPaymentMonths, err = decodeInts(offMonth); err != nil {
		return ob, err
	}
	return ob, nil
}

func (r *SQLiteRepository) CreatePersonnel(ctx context.Context, p core.Personnel) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO personnel (first_name, last_name, position, base_salary_cents, start_date, end_date, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.FirstName, p.LastName, p.Position, p.BaseSalary.Cents,
		p.StartDate.String(), nullDate(p.EndDate), boolInt(p.IsActive))
	if err != nil {
		return 0, fmt.Errorf("create personnel: %w", err)
	}
	return res.LastInsertId()
}

const personnelColumns = `id, first_name, last_name, position, base_salary_cents, start_date, end_date, is_active`

func (r *SQLiteRepository) GetPersonnel(ctx context.Context, id int64) (core.Personnel, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+personnelColumns+` FROM personnel WHERE id = ?`, id)
	p, err := scanPersonnel(row)
	if isNoRows(err) {
		return core.Personnel{}, notFound("personnel", id)
	}
	if err != nil {
		return core.Personnel{}, fmt.Errorf("get personnel: %w", err)
	}
	return p, nil
}

func (r *SQLiteRepository) ListPersonnel(ctx context.Context, activeOnly bool) ([]core.Personnel, error) {
	query := `SELECT ` + personnelColumns + ` FROM personnel`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list personnel: %w", err)
	}
	defer rows.Close()

	var out []core.Personnel
	for rows.Next() {
		p, err := scanPersonnel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan personnel: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPersonnel(s scanner) (core.Personnel, error) {
	var (
		p     core.Personnel
		start string
		end   sql.NullString
	)
	if err := s.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Position, &p.BaseSalary.Cents,
		&start, &end, &p.IsActive); err != nil {
		return p, err
	}
	var err error
	if p.StartDate, err = core.ParseDate(start); err != nil {
		return p, err
	}
	p.EndDate, err = parseNullDate(end)
	return p, err
}

func (r *SQLiteRepository) CreateLoan(ctx context.Context, l core.Loan) (int64, error) {
	if err := l.Validate(); err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO loans (name, principal_cents, annual_rate, duration_months, start_date, off_payment_months)
		VALUES (?, ?, ?, ?, ?, ?)`,
		l.Name, l.Principal.Cents, l.AnnualRatePercent.String(), l.DurationMonths,
		l.StartDate.String(), encodeInts(l.OffPaymentMonths))
	if err != nil {
		return 0, fmt.Errorf("create loan: %w", err)
	}
	return res.LastInsertId()
}

const loanColumns = `id, name, principal_cents, annual_rate, duration_months, start_date, off_payment_months`

func (r *SQLiteRepository) GetLoan(ctx context.Context, id int64) (core.Loan, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`, id)
	l, err := scanLoan(row)
	if isNoRows(err) {
		return core.Loan{}, notFound("loan", id)
	}
	if err != nil {
		return core.Loan{}, fmt.Errorf("get loan: %w", err)
	}
	return l, nil
}

func (r *SQLiteRepository) ListLoans(ctx context.Context) ([]core.Loan, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+loanColumns+` FROM loans ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	defer rows.Close()

	var out []core.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanLoan(s scanner) (core.Loan, error) {
	var (
		l           core.Loan
		rate, start string
		off         string
	)
	if err := s.Scan(&l.ID, &l.Name, &l.Principal.Cents, &rate, &l.DurationMonths, &start, &off); err != nil {
		return l, err
	}
	var err error
	if l.AnnualRatePercent, err = decimal.NewFromString(rate); err != nil {
		return l, fmt.Errorf("decode loan rate %q: %w", rate, err)
	}
	if l.StartDate, err = core.ParseDate(start); err != nil {
		return l, err
	}
	l.OffPaymentMonths, err = decodeInts(off)
	return l, err
}

func (r *SQLiteRepository) CreateInvestment(ctx context.Context, inv core.Investment) (int64, error) {
	if err := inv.Validate(); err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO investments (name, category, amount_cents, purchase_date, useful_life_months,
			residual_value_cents, method)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		inv.Name, inv.Category, inv.Amount.Cents, inv.PurchaseDate.String(), inv.UsefulLifeMonths,
		inv.ResidualValue.Cents, string(inv.Method))
	if err != nil {
		return 0, fmt.Errorf("create investment: %w", err)
	}
	return res.LastInsertId()
}

const investmentColumns = `id, name, category, amount_cents, purchase_date, useful_life_months,
	residual_value_cents, method`

func (r *SQLiteRepository) GetInvestment(ctx context.Context, id int64) (core.Investment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+investmentColumns+` FROM investments WHERE id = ?`, id)
	inv, err := scanInvestment(row)
	if isNoRows(err) {
		return core.Investment{}, notFound("investment", id)
	}
	if err != nil {
		return core.Investment{}, fmt.Errorf("get investment: %w", err)
	}
	return inv, nil
}

func (r *SQLiteRepository) ListInvestments(ctx context.Context) ([]core.Investment, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+investmentColumns+` FROM investments ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list investments: %w", err)
	}
	defer rows.Close()

	var out []core.Investment
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan investment: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func scanInvestment(s scanner) (core.Investment, error) {
	var (
		inv      core.Investment
		purchase string
		method   string
	)
	if err := s.Scan(&inv.ID, &inv.Name, &inv.Category, &inv.Amount.Cents, &purchase,
		&inv.UsefulLifeMonths, &inv.ResidualValue.Cents, &method); err != nil {
		return inv, err
	}
	inv.Method = core.DepreciationMethod(method)
	var err error
	inv.PurchaseDate, err = core.ParseDate(purchase)
	return inv, err
}
