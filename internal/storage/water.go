package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"cuotas/internal/core"
)

func (r *SQLiteRepository) CreateWaterReading(ctx context.Context, w core.WaterReading) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO water_readings (client_id, unit_id, reading_date, reading, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		w.ClientID, w.UnitID, fmtDate(w.Date), w.Reading, fmtTime(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("create water reading: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("water reading id: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) ListWaterReadings(ctx context.Context, clientID, unitID string) ([]core.WaterReading, error) {
	query := `
		SELECT id, client_id, unit_id, reading_date, reading
		FROM water_readings WHERE client_id = ?`
	args := []any{clientID}
	if unitID != "" {
		query += ` AND unit_id = ?`
		args = append(args, unitID)
	}
	query += ` ORDER BY reading_date DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list water readings: %w", err)
	}
	defer rows.Close()

	var readings []core.WaterReading
	for rows.Next() {
		var (
			w    core.WaterReading
			date string
		)
		if err := rows.Scan(&w.ID, &w.ClientID, &w.UnitID, &date, &w.Reading); err != nil {
			return nil, fmt.Errorf("scan water reading: %w", err)
		}
		w.Date = parseStoredTime(date)
		readings = append(readings, w)
	}
	return readings, rows.Err()
}

// LatestReadings returns the two most recent readings for a unit up to and
// including the given date, newest first.
func (r *SQLiteRepository) LatestReadings(ctx context.Context, unitID string, until time.Time) ([]core.WaterReading, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, client_id, unit_id, reading_date, reading
		FROM water_readings
		WHERE unit_id = ? AND reading_date <= ?
		ORDER BY reading_date DESC, id DESC
		LIMIT 2`, unitID, fmtDate(until))
	if err != nil {
		return nil, fmt.Errorf("latest readings: %w", err)
	}
	defer rows.Close()

	var readings []core.WaterReading
	for rows.Next() {
		var (
			w    core.WaterReading
			date string
		)
		if err := rows.Scan(&w.ID, &w.ClientID, &w.UnitID, &date, &w.Reading); err != nil {
			return nil, fmt.Errorf("scan water reading: %w", err)
		}
		w.Date = parseStoredTime(date)
		readings = append(readings, w)
	}
	return readings, rows.Err()
}

func (r *SQLiteRepository) CreateWaterBill(ctx context.Context, b core.WaterBill) error {
	paid := 0
	if b.Paid {
		paid = 1
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO water_bills (id, client_id, unit_id, year, month, consumption, amount_centavos, service_centavos, penalty_centavos, due_date, paid, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.ClientID, b.UnitID, b.Year, b.Month, b.Consumption,
		b.Amount.Centavos, b.Service.Centavos, b.Penalty.Centavos,
		fmtDate(b.DueDate), paid, fmtTime(time.Now()))
	if err != nil {
		return fmt.Errorf("create water bill: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetWaterBill(ctx context.Context, unitID string, year, month int) (core.WaterBill, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, client_id, unit_id, year, month, consumption, amount_centavos, service_centavos, penalty_centavos, due_date, paid
		FROM water_bills WHERE unit_id = ? AND year = ? AND month = ?`, unitID, year, month)
	return scanWaterBill(row)
}

func (r *SQLiteRepository) ListWaterBills(ctx context.Context, clientID string, year, month int) ([]core.WaterBill, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, client_id, unit_id, year, month, consumption, amount_centavos, service_centavos, penalty_centavos, due_date, paid
		FROM water_bills WHERE client_id = ? AND year = ? AND month = ?
		ORDER BY unit_id`, clientID, year, month)
	if err != nil {
		return nil, fmt.Errorf("list water bills: %w", err)
	}
	defer rows.Close()

	var bills []core.WaterBill
	for rows.Next() {
		b, err := scanWaterBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

// ListUnpaidBillsBefore returns unpaid bills whose due date is before cutoff.
func (r *SQLiteRepository) ListUnpaidBillsBefore(ctx context.Context, clientID string, cutoff time.Time) ([]core.WaterBill, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, client_id, unit_id, year, month, consumption, amount_centavos, service_centavos, penalty_centavos, due_date, paid
		FROM water_bills WHERE client_id = ? AND paid = 0 AND due_date < ?`, clientID, fmtDate(cutoff))
	if err != nil {
		return nil, fmt.Errorf("list unpaid bills: %w", err)
	}
	defer rows.Close()

	var bills []core.WaterBill
	for rows.Next() {
		b, err := scanWaterBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

func (r *SQLiteRepository) UpdateBillPenalty(ctx context.Context, billID string, penalty core.Money) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE water_bills SET penalty_centavos = ? WHERE id = ?`,
		penalty.Centavos, billID); err != nil {
		return fmt.Errorf("update bill penalty: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkBillPaid(ctx context.Context, billID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE water_bills SET paid = 1 WHERE id = ?`, billID)
	if err != nil {
		return fmt.Errorf("mark bill paid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark bill paid rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyBillPayment marks the bill paid and books the income transaction in a
// single database transaction, so a failed insert leaves the bill unpaid.
func (r *SQLiteRepository) ApplyBillPayment(ctx context.Context, billID string, txn core.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bill payment: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE water_bills SET paid = 1 WHERE id = ? AND paid = 0`, billID)
	if err != nil {
		return fmt.Errorf("mark bill paid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark bill paid rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	if err := insertTransactionTx(ctx, tx, txn); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bill payment: %w", err)
	}

	slog.InfoContext(ctx, "Water bill payment recorded",
		"bill_id", billID,
		"transaction_id", txn.ID,
		"amount_centavos", txn.Amount.Centavos)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWaterBill(row rowScanner) (core.WaterBill, error) {
	var (
		b    core.WaterBill
		due  string
		paid int
	)
	err := row.Scan(&b.ID, &b.ClientID, &b.UnitID, &b.Year, &b.Month, &b.Consumption,
		&b.Amount.Centavos, &b.Service.Centavos, &b.Penalty.Centavos, &due, &paid)
	if err == sql.ErrNoRows {
		return core.WaterBill{}, ErrNotFound
	}
	if err != nil {
		return core.WaterBill{}, fmt.Errorf("scan water bill: %w", err)
	}
	b.DueDate = parseStoredTime(due)
	b.Paid = paid == 1
	return b, nil
}
