package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRate is a stored daily quote, e.g. base USD quote MXN.
// The rate is kept as a decimal string; no float ever touches it.
type ExchangeRate struct {
	Date      time.Time
	Base      string
	Quote     string
	Rate      decimal.Decimal
	FetchedAt time.Time
}

func (r *SQLiteRepository) UpsertExchangeRate(ctx context.Context, rate ExchangeRate) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO exchange_rates (rate_date, base, quote, rate, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (rate_date, base, quote) DO UPDATE SET rate = excluded.rate, fetched_at = excluded.fetched_at`,
		fmtDate(rate.Date), rate.Base, rate.Quote, rate.Rate.String(), fmtTime(rate.FetchedAt))
	if err != nil {
		return fmt.Errorf("upsert exchange rate: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetExchangeRate(ctx context.Context, date time.Time, base, quote string) (ExchangeRate, error) {
	var (
		rate         ExchangeRate
		d, rs, fetched string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT rate_date, base, quote, rate, fetched_at
		FROM exchange_rates WHERE rate_date = ? AND base = ? AND quote = ?`,
		fmtDate(date), base, quote).
		Scan(&d, &rate.Base, &rate.Quote, &rs, &fetched)
	if err == sql.ErrNoRows {
		return ExchangeRate{}, ErrNotFound
	}
	if err != nil {
		return ExchangeRate{}, fmt.Errorf("get exchange rate: %w", err)
	}
	rate.Date = parseStoredTime(d)
	rate.FetchedAt = parseStoredTime(fetched)
	rate.Rate, err = decimal.NewFromString(rs)
	if err != nil {
		return ExchangeRate{}, fmt.Errorf("parse stored rate %q: %w", rs, err)
	}
	return rate, nil
}

// LatestExchangeRate returns the most recent quote at or before date.
func (r *SQLiteRepository) LatestExchangeRate(ctx context.Context, date time.Time, base, quote string) (ExchangeRate, error) {
	var (
		rate           ExchangeRate
		d, rs, fetched string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT rate_date, base, quote, rate, fetched_at
		FROM exchange_rates
		WHERE rate_date <= ? AND base = ? AND quote = ?
		ORDER BY rate_date DESC LIMIT 1`,
		fmtDate(date), base, quote).
		Scan(&d, &rate.Base, &rate.Quote, &rs, &fetched)
	if err == sql.ErrNoRows {
		return ExchangeRate{}, ErrNotFound
	}
	if err != nil {
		return ExchangeRate{}, fmt.Errorf("latest exchange rate: %w", err)
	}
	rate.Date = parseStoredTime(d)
	rate.FetchedAt = parseStoredTime(fetched)
	rate.Rate, err = decimal.NewFromString(rs)
	if err != nil {
		return ExchangeRate{}, fmt.Errorf("parse stored rate %q: %w", rs, err)
	}
	return rate, nil
}
