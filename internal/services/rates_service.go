package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"cuotas/internal/core"
	"cuotas/internal/storage"
)

var ErrNoRate = errors.New("no exchange rate available")

// RatesService keeps a daily USD/MXN rate table for owners who pay from
// abroad. Rates are fetched from a configurable JSON feed and stored with
// decimal precision.
type RatesService struct {
	storage   *storage.SQLiteRepository
	client    *http.Client
	sourceURL string
}

func NewRatesService(repo *storage.SQLiteRepository, sourceURL string) *RatesService {
	return &RatesService{
		storage:   repo,
		client:    &http.Client{Timeout: 15 * time.Second},
		sourceURL: sourceURL,
	}
}

// rateFeed is the shape of the source document. Rate may arrive as a JSON
// string or number.
type rateFeed struct {
	Date  string      `json:"date"`
	Base  string      `json:"base"`
	Quote string      `json:"quote"`
	Rate  json.Number `json:"rate"`
}

// Refresh fetches today's rate from the feed and upserts it.
func (s *RatesService) Refresh(ctx context.Context) error {
	if s.sourceURL == "" {
		return errors.New("rates source URL not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.sourceURL, nil)
	if err != nil {
		return fmt.Errorf("build rates request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch rates: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rates feed returned %d", resp.StatusCode)
	}

	var feed rateFeed
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return fmt.Errorf("decode rates feed: %w", err)
	}

	rate, err := decimal.NewFromString(feed.Rate.String())
	if err != nil {
		return fmt.Errorf("parse rate %q: %w", feed.Rate, err)
	}
	if rate.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("non-positive rate %s", rate)
	}

	date, err := time.Parse("2006-01-02", feed.Date)
	if err != nil {
		return fmt.Errorf("parse rate date %q: %w", feed.Date, err)
	}
	base, quote := feed.Base, feed.Quote
	if base == "" {
		base = "USD"
	}
	if quote == "" {
		quote = "MXN"
	}

	err = s.storage.UpsertExchangeRate(ctx, storage.ExchangeRate{
		Date:      date,
		Base:      base,
		Quote:     quote,
		Rate:      rate,
		FetchedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("store rate: %w", err)
	}

	slog.InfoContext(ctx, "Exchange rate refreshed",
		"date", feed.Date, "base", base, "quote", quote, "rate", rate.String())
	return nil
}

// ConvertToMXN converts a USD amount to centavos using the most recent rate
// at or before asOf.
func (s *RatesService) ConvertToMXN(ctx context.Context, usd core.Money, asOf time.Time) (core.Money, storage.ExchangeRate, error) {
	rate, err := s.storage.LatestExchangeRate(ctx, asOf, "USD", "MXN")
	if err == storage.ErrNotFound {
		return core.Money{}, storage.ExchangeRate{}, ErrNoRate
	}
	if err != nil {
		return core.Money{}, storage.ExchangeRate{}, fmt.Errorf("load rate: %w", err)
	}

	centavos := decimal.New(usd.Centavos, 0).Mul(rate.Rate).Round(0)
	return core.Money{Centavos: centavos.IntPart()}, rate, nil
}

// Run refreshes the rate table on a fixed interval until ctx is cancelled.
// An immediate refresh runs on start.
func (s *RatesService) Run(ctx context.Context, interval time.Duration) error {
	if err := s.Refresh(ctx); err != nil {
		slog.ErrorContext(ctx, "Initial rates refresh failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				slog.ErrorContext(ctx, "Rates refresh failed", "error", err)
			}
		}
	}
}
