package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cuotas/internal/core"
)

// MonthAllocation is the slice of a payment applied to one fiscal month.
type MonthAllocation struct {
	FiscalMonth int
	Amount      core.Money
}

// DuesPaymentParams describes everything one recorded payment touches:
// the per-month ledger rows, the unit's credit balance, the credit history,
// and the income transaction. Applied in a single database transaction.
type DuesPaymentParams struct {
	ClientID      string
	UnitID        string
	Year          int
	Allocations   []MonthAllocation
	PaidDate      time.Time
	Notes         string
	Reference     string
	CreditDelta   core.Money // net change to the unit's credit balance
	CreditEntries []core.CreditEntry
	Transaction   core.Transaction
}

// ApplyDuesPayment writes a payment atomically. Either every month row, the
// credit update, the history entries, and the transaction land, or none do.
func (r *SQLiteRepository) ApplyDuesPayment(ctx context.Context, p DuesPaymentParams) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin dues payment: %w", err)
	}
	defer tx.Rollback()

	now := fmtTime(time.Now())
	for _, a := range p.Allocations {
		if a.Amount.Centavos == 0 {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO dues_payments (client_id, unit_id, year, fiscal_month, amount_centavos, paid_date, notes, reference, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ClientID, p.UnitID, p.Year, a.FiscalMonth, a.Amount.Centavos,
			fmtDate(p.PaidDate), p.Notes, p.Reference, now)
		if err != nil {
			return fmt.Errorf("insert dues payment month %d: %w", a.FiscalMonth, err)
		}
	}

	if p.CreditDelta.Centavos != 0 {
		_, err := tx.ExecContext(ctx, `
			UPDATE units SET credit_centavos = credit_centavos + ? WHERE id = ?`,
			p.CreditDelta.Centavos, p.UnitID)
		if err != nil {
			return fmt.Errorf("update unit credit: %w", err)
		}
	}

	for _, e := range p.CreditEntries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO credit_history (id, client_id, unit_id, amount_centavos, balance_after_centavos, description, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, p.ClientID, e.UnitID, e.Amount.Centavos, e.BalanceAfter.Centavos, e.Description, fmtTime(e.Timestamp))
		if err != nil {
			return fmt.Errorf("insert credit entry: %w", err)
		}
	}

	if p.Transaction.ID != "" {
		if err := insertTransactionTx(ctx, tx, p.Transaction); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit dues payment: %w", err)
	}

	slog.InfoContext(ctx, "Dues payment applied",
		"unit_id", p.UnitID,
		"year", p.Year,
		"months", len(p.Allocations),
		"credit_delta", p.CreditDelta.Centavos)
	return nil
}

// LoadDuesRecord builds a unit's dues position for one fiscal year from the
// payment ledger. Multiple payments in the same fiscal month accumulate.
func (r *SQLiteRepository) LoadDuesRecord(ctx context.Context, unitID string, year int) (core.DuesRecord, error) {
	unit, err := r.GetUnit(ctx, unitID)
	if err != nil {
		return core.DuesRecord{}, err
	}

	record := core.DuesRecord{
		UnitID:        unitID,
		Year:          year,
		Scheduled:     unit.Dues,
		CreditBalance: unit.CreditBalance,
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT fiscal_month, amount_centavos, paid_date, notes, reference
		FROM dues_payments
		WHERE unit_id = ? AND year = ?
		ORDER BY fiscal_month, id`, unitID, year)
	if err != nil {
		return core.DuesRecord{}, fmt.Errorf("load dues payments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			fm              int
			amount          int64
			date, notes, ref string
		)
		if err := rows.Scan(&fm, &amount, &date, &notes, &ref); err != nil {
			return core.DuesRecord{}, fmt.Errorf("scan dues payment: %w", err)
		}
		entry := &record.Payments[fm-1]
		entry.Amount.Centavos += amount
		entry.Paid = entry.Amount.Centavos > 0
		entry.Date = parseStoredTime(date)
		if notes != "" {
			if entry.Notes != "" {
				entry.Notes += "; "
			}
			entry.Notes += notes
		}
		if ref != "" {
			entry.Reference = ref
		}
	}
	if err := rows.Err(); err != nil {
		return core.DuesRecord{}, fmt.Errorf("iterate dues payments: %w", err)
	}

	record.CreditHistory, err = r.ListCreditHistory(ctx, unitID)
	if err != nil {
		return core.DuesRecord{}, err
	}
	return record, nil
}

// ListDuesRecords loads the dues position of every unit of a client for one
// fiscal year. Credit history is omitted in list form.
func (r *SQLiteRepository) ListDuesRecords(ctx context.Context, clientID string, year int) ([]core.DuesRecord, error) {
	units, err := r.ListUnits(ctx, clientID)
	if err != nil {
		return nil, err
	}

	byUnit := make(map[string]*core.DuesRecord, len(units))
	records := make([]core.DuesRecord, len(units))
	for i, u := range units {
		records[i] = core.DuesRecord{
			UnitID:        u.ID,
			Year:          year,
			Scheduled:     u.Dues,
			CreditBalance: u.CreditBalance,
		}
		byUnit[u.ID] = &records[i]
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT unit_id, fiscal_month, amount_centavos, paid_date, notes, reference
		FROM dues_payments
		WHERE client_id = ? AND year = ?
		ORDER BY unit_id, fiscal_month, id`, clientID, year)
	if err != nil {
		return nil, fmt.Errorf("list dues payments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			unitID           string
			fm               int
			amount           int64
			date, notes, ref string
		)
		if err := rows.Scan(&unitID, &fm, &amount, &date, &notes, &ref); err != nil {
			return nil, fmt.Errorf("scan dues payment: %w", err)
		}
		record, ok := byUnit[unitID]
		if !ok {
			continue
		}
		entry := &record.Payments[fm-1]
		entry.Amount.Centavos += amount
		entry.Paid = entry.Amount.Centavos > 0
		entry.Date = parseStoredTime(date)
		if notes != "" {
			if entry.Notes != "" {
				entry.Notes += "; "
			}
			entry.Notes += notes
		}
		if ref != "" {
			entry.Reference = ref
		}
	}
	return records, rows.Err()
}

// SetCreditBalance overwrites a unit's credit balance and appends a history
// entry recording the manual adjustment.
func (r *SQLiteRepository) SetCreditBalance(ctx context.Context, clientID string, entry core.CreditEntry, newBalance core.Money) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin credit adjustment: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE units SET credit_centavos = ? WHERE id = ?`,
		newBalance.Centavos, entry.UnitID)
	if err != nil {
		return fmt.Errorf("set credit balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set credit balance rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO credit_history (id, client_id, unit_id, amount_centavos, balance_after_centavos, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, clientID, entry.UnitID, entry.Amount.Centavos, entry.BalanceAfter.Centavos,
		entry.Description, fmtTime(entry.Timestamp))
	if err != nil {
		return fmt.Errorf("insert credit entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit credit adjustment: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListCreditHistory(ctx context.Context, unitID string) ([]core.CreditEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, unit_id, amount_centavos, balance_after_centavos, description, created_at
		FROM credit_history WHERE unit_id = ? ORDER BY created_at, id`, unitID)
	if err != nil {
		return nil, fmt.Errorf("list credit history: %w", err)
	}
	defer rows.Close()

	var entries []core.CreditEntry
	for rows.Next() {
		var (
			e  core.CreditEntry
			ts string
		)
		if err := rows.Scan(&e.ID, &e.UnitID, &e.Amount.Centavos, &e.BalanceAfter.Centavos, &e.Description, &ts); err != nil {
			return nil, fmt.Errorf("scan credit entry: %w", err)
		}
		e.Timestamp = parseStoredTime(ts)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
