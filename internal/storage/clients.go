package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cuotas/internal/core"
)

var ErrNotFound = errors.New("not found")

func (r *SQLiteRepository) CreateClient(ctx context.Context, c core.Client) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clients (id, name, fiscal_start_month, currency, water_rate_centavos, water_service_centavos, penalty_rate_bp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.FiscalStartMonth, c.Currency,
		c.WaterRate.Centavos, c.WaterService.Centavos, c.PenaltyRateBP, fmtTime(time.Now()))
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetClient(ctx context.Context, id string) (core.Client, error) {
	var c core.Client
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, fiscal_start_month, currency, water_rate_centavos, water_service_centavos, penalty_rate_bp
		FROM clients WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.FiscalStartMonth, &c.Currency,
			&c.WaterRate.Centavos, &c.WaterService.Centavos, &c.PenaltyRateBP)
	if err == sql.ErrNoRows {
		return core.Client{}, ErrNotFound
	}
	if err != nil {
		return core.Client{}, fmt.Errorf("get client: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListClients(ctx context.Context) ([]core.Client, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, fiscal_start_month, currency, water_rate_centavos, water_service_centavos, penalty_rate_bp
		FROM clients ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var clients []core.Client
	for rows.Next() {
		var c core.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.FiscalStartMonth, &c.Currency,
			&c.WaterRate.Centavos, &c.WaterService.Centavos, &c.PenaltyRateBP); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// UpdateClientConfig persists the settings the configuration view edits.
func (r *SQLiteRepository) UpdateClientConfig(ctx context.Context, c core.Client) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE clients
		SET name = ?, fiscal_start_month = ?, currency = ?, water_rate_centavos = ?, water_service_centavos = ?, penalty_rate_bp = ?
		WHERE id = ?`,
		c.Name, c.FiscalStartMonth, c.Currency,
		c.WaterRate.Centavos, c.WaterService.Centavos, c.PenaltyRateBP, c.ID)
	if err != nil {
		return fmt.Errorf("update client config: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update client config rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
