package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"cuotas/internal/core"
)

func insertTransactionTx(ctx context.Context, tx *sql.Tx, t core.Transaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (id, client_id, txn_date, description, amount_centavos, category, currency, created_by, reference, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ClientID, fmtDate(t.Date), t.Description, t.Amount.Centavos,
		t.Category, t.Currency, t.CreatedBy, t.Reference, fmtTime(time.Now()))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertTransactionTx(ctx, tx, t); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"description", t.Description,
		"amount_centavos", t.Amount.Centavos,
		"category", t.Category)
	return nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	var (
		t    core.Transaction
		date string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, client_id, txn_date, description, amount_centavos, category, currency, created_by, reference
		FROM transactions WHERE id = ?`, id).
		Scan(&t.ID, &t.ClientID, &date, &t.Description, &t.Amount.Centavos,
			&t.Category, &t.Currency, &t.CreatedBy, &t.Reference)
	if err == sql.ErrNoRows {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	t.Date = parseStoredTime(date)
	return t, nil
}

// ListTransactions returns a client's ledger for one calendar month, newest
// first. Month 0 means the whole year.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, clientID string, year, month int) ([]core.Transaction, error) {
	var prefix string
	if month > 0 {
		prefix = fmt.Sprintf("%04d-%02d", year, month)
	} else {
		prefix = fmt.Sprintf("%04d", year)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, client_id, txn_date, description, amount_centavos, category, currency, created_by, reference
		FROM transactions
		WHERE client_id = ? AND txn_date LIKE ? || '%'
		ORDER BY txn_date DESC, created_at DESC`, clientID, prefix)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []core.Transaction
	for rows.Next() {
		var (
			t    core.Transaction
			date string
		)
		if err := rows.Scan(&t.ID, &t.ClientID, &date, &t.Description, &t.Amount.Centavos,
			&t.Category, &t.Currency, &t.CreatedBy, &t.Reference); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Date = parseStoredTime(date)
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// ListCategories returns the distinct transaction categories used by a client.
func (r *SQLiteRepository) ListCategories(ctx context.Context, clientID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT category FROM transactions WHERE client_id = ? ORDER BY category`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// CategoryActuals sums ledger expenses per category for a fiscal year.
// Expense amounts are negative in the ledger; sums are returned positive.
func (r *SQLiteRepository) CategoryActuals(ctx context.Context, clientID string, yearStart, yearEnd time.Time) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category, SUM(-amount_centavos)
		FROM transactions
		WHERE client_id = ? AND amount_centavos < 0 AND txn_date >= ? AND txn_date < ?
		GROUP BY category`, clientID, fmtDate(yearStart), fmtDate(yearEnd))
	if err != nil {
		return nil, fmt.Errorf("category actuals: %w", err)
	}
	defer rows.Close()

	actuals := make(map[string]int64)
	for rows.Next() {
		var (
			cat string
			sum int64
		)
		if err := rows.Scan(&cat, &sum); err != nil {
			return nil, fmt.Errorf("scan category actual: %w", err)
		}
		actuals[cat] = sum
	}
	return actuals, rows.Err()
}

// PendingExport lists transactions not yet exported to the board ledger.
func (r *SQLiteRepository) PendingExport(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, client_id, txn_date, description, amount_centavos, category, currency, created_by, reference
		FROM transactions
		WHERE sync_status = 'pending'
		ORDER BY created_at
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("pending export: %w", err)
	}
	defer rows.Close()

	var txns []core.Transaction
	for rows.Next() {
		var (
			t    core.Transaction
			date string
		)
		if err := rows.Scan(&t.ID, &t.ClientID, &date, &t.Description, &t.Amount.Centavos,
			&t.Category, &t.Currency, &t.CreatedBy, &t.Reference); err != nil {
			return nil, fmt.Errorf("scan pending transaction: %w", err)
		}
		t.Date = parseStoredTime(date)
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

func (r *SQLiteRepository) MarkExported(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE transactions SET sync_status = 'synced' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	slog.InfoContext(ctx, "Transaction marked as exported", "id", id)
	return nil
}

func (r *SQLiteRepository) MarkExportError(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE transactions SET sync_status = 'error' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark export error: %w", err)
	}
	slog.WarnContext(ctx, "Transaction marked with export error", "id", id)
	return nil
}
