package storage

import (
	"context"
	"fmt"

	"cuotas/internal/core"
)

// UpsertBudgetLine inserts or replaces one category's planned amount.
func (r *SQLiteRepository) UpsertBudgetLine(ctx context.Context, b core.BudgetLine) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budgets (client_id, year, category, amount_centavos)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (client_id, year, category) DO UPDATE SET amount_centavos = excluded.amount_centavos`,
		b.ClientID, b.Year, b.Category, b.Amount.Centavos)
	if err != nil {
		return fmt.Errorf("upsert budget line: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListBudgetLines(ctx context.Context, clientID string, year int) ([]core.BudgetLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, client_id, year, category, amount_centavos
		FROM budgets WHERE client_id = ? AND year = ? ORDER BY category`, clientID, year)
	if err != nil {
		return nil, fmt.Errorf("list budget lines: %w", err)
	}
	defer rows.Close()

	var lines []core.BudgetLine
	for rows.Next() {
		var b core.BudgetLine
		if err := rows.Scan(&b.ID, &b.ClientID, &b.Year, &b.Category, &b.Amount.Centavos); err != nil {
			return nil, fmt.Errorf("scan budget line: %w", err)
		}
		lines = append(lines, b)
	}
	return lines, rows.Err()
}
