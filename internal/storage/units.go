package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cuotas/internal/core"
)

func (r *SQLiteRepository) CreateUnit(ctx context.Context, u core.Unit) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO units (id, client_id, unit_number, owners, dues_centavos, credit_centavos, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.ClientID, u.UnitNumber, u.Owners, u.Dues.Centavos, u.CreditBalance.Centavos, fmtTime(time.Now()))
	if err != nil {
		return fmt.Errorf("create unit: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetUnit(ctx context.Context, id string) (core.Unit, error) {
	var u core.Unit
	err := r.db.QueryRowContext(ctx, `
		SELECT id, client_id, unit_number, owners, dues_centavos, credit_centavos
		FROM units WHERE id = ?`, id).
		Scan(&u.ID, &u.ClientID, &u.UnitNumber, &u.Owners, &u.Dues.Centavos, &u.CreditBalance.Centavos)
	if err == sql.ErrNoRows {
		return core.Unit{}, ErrNotFound
	}
	if err != nil {
		return core.Unit{}, fmt.Errorf("get unit: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) ListUnits(ctx context.Context, clientID string) ([]core.Unit, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, client_id, unit_number, owners, dues_centavos, credit_centavos
		FROM units WHERE client_id = ? ORDER BY unit_number`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	defer rows.Close()

	var units []core.Unit
	for rows.Next() {
		var u core.Unit
		if err := rows.Scan(&u.ID, &u.ClientID, &u.UnitNumber, &u.Owners, &u.Dues.Centavos, &u.CreditBalance.Centavos); err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// UpdateUnitDues changes the scheduled monthly dues for a unit.
func (r *SQLiteRepository) UpdateUnitDues(ctx context.Context, unitID string, dues core.Money) error {
	res, err := r.db.ExecContext(ctx, `UPDATE units SET dues_centavos = ? WHERE id = ?`, dues.Centavos, unitID)
	if err != nil {
		return fmt.Errorf("update unit dues: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update unit dues rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
