package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"cuotas/internal/amqp"
	"cuotas/internal/core"
	"cuotas/internal/storage"
)

var ErrInsufficientReadings = errors.New("need two meter readings to bill")

// WaterService generates consumption bills from meter readings and applies
// late penalties.
type WaterService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewWaterService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *WaterService {
	return &WaterService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// RecordReading validates and stores one meter reading. Readings are
// cumulative, so a value below the previous one is rejected.
func (s *WaterService) RecordReading(ctx context.Context, reading core.WaterReading) (int64, error) {
	if err := reading.Validate(); err != nil {
		return 0, err
	}
	prev, err := s.storage.LatestReadings(ctx, reading.UnitID, reading.Date)
	if err != nil {
		return 0, fmt.Errorf("load previous readings: %w", err)
	}
	if len(prev) > 0 && reading.Reading < prev[0].Reading {
		return 0, core.ErrInvalidReading
	}
	return s.storage.CreateWaterReading(ctx, reading)
}

// GenerateBill bills one unit for the calendar month that ends on the latest
// reading at or before periodEnd. Consumption is the difference between the
// two most recent readings; the rate and fixed service charge come from the
// client's configuration.
func (s *WaterService) GenerateBill(ctx context.Context, clientID, unitID string, year, month int) (core.WaterBill, error) {
	if month < 1 || month > 12 {
		return core.WaterBill{}, core.ErrInvalidMonth
	}

	client, err := s.storage.GetClient(ctx, clientID)
	if err != nil {
		return core.WaterBill{}, fmt.Errorf("load client: %w", err)
	}

	periodEnd := endOfMonth(year, month)
	readings, err := s.storage.LatestReadings(ctx, unitID, periodEnd)
	if err != nil {
		return core.WaterBill{}, fmt.Errorf("load readings: %w", err)
	}
	if len(readings) < 2 {
		return core.WaterBill{}, ErrInsufficientReadings
	}

	consumption := readings[0].Reading - readings[1].Reading
	if consumption < 0 {
		consumption = 0
	}

	bill := core.WaterBill{
		ID:          uuid.NewString(),
		ClientID:    clientID,
		UnitID:      unitID,
		Year:        year,
		Month:       month,
		Consumption: consumption,
		Amount:      core.Money{Centavos: consumption * client.WaterRate.Centavos},
		Service:     client.WaterService,
		DueDate:     periodEnd.AddDate(0, 0, 15),
	}
	if err := s.storage.CreateWaterBill(ctx, bill); err != nil {
		return core.WaterBill{}, fmt.Errorf("create bill: %w", err)
	}

	slog.InfoContext(ctx, "Generated water bill",
		"unit_id", unitID,
		"year", year,
		"month", month,
		"consumption", consumption,
		"amount", bill.Amount.String())
	return bill, nil
}

// ApplyPenalties recalculates the late penalty on every unpaid bill past its
// due date. The penalty compounds monthly: each overdue month adds the
// penalty rate on top of the charge plus penalties already accrued. Returns
// the number of bills updated.
func (s *WaterService) ApplyPenalties(ctx context.Context, clientID string, asOf time.Time) (int, error) {
	client, err := s.storage.GetClient(ctx, clientID)
	if err != nil {
		return 0, fmt.Errorf("load client: %w", err)
	}
	if client.PenaltyRateBP <= 0 {
		return 0, nil
	}

	bills, err := s.storage.ListUnpaidBillsBefore(ctx, clientID, asOf)
	if err != nil {
		return 0, fmt.Errorf("list overdue bills: %w", err)
	}

	var updated int
	for _, b := range bills {
		months := monthsOverdue(b.DueDate, asOf)
		if months <= 0 {
			continue
		}
		base := b.Amount.Centavos + b.Service.Centavos
		accrued := base
		for i := 0; i < months; i++ {
			accrued += accrued * client.PenaltyRateBP / 10000
		}
		penalty := accrued - base
		if penalty == b.Penalty.Centavos {
			continue
		}
		if err := s.storage.UpdateBillPenalty(ctx, b.ID, core.Money{Centavos: penalty}); err != nil {
			return updated, fmt.Errorf("update penalty for bill %s: %w", b.ID, err)
		}
		updated++
	}
	return updated, nil
}

// RecordBillPayment marks a bill paid and books the income in the ledger.
func (s *WaterService) RecordBillPayment(ctx context.Context, clientID, unitID string, year, month int, paidDate time.Time) (core.Transaction, error) {
	bill, err := s.storage.GetWaterBill(ctx, unitID, year, month)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("load bill: %w", err)
	}
	if bill.ClientID != clientID {
		return core.Transaction{}, storage.ErrNotFound
	}
	if bill.Paid {
		return core.Transaction{}, errors.New("bill already paid")
	}
	if paidDate.IsZero() {
		paidDate = time.Now()
	}

	total := bill.Amount.Centavos + bill.Service.Centavos + bill.Penalty.Centavos
	txn := core.Transaction{
		ID:          uuid.NewString(),
		ClientID:    clientID,
		Date:        paidDate,
		Description: fmt.Sprintf("Water bill %04d-%02d unit %s", year, month, unitID),
		Amount:      core.Money{Centavos: total},
		Category:    "Water",
		Currency:    "MXN",
		Reference:   bill.ID,
	}
	if err := s.storage.ApplyBillPayment(ctx, bill.ID, txn); err != nil {
		return core.Transaction{}, fmt.Errorf("record water income: %w", err)
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.PublishLedgerSync(ctx, txn.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to publish ledger sync message",
				"transaction_id", txn.ID, "error", err)
		}
	}

	return txn, nil
}

func endOfMonth(year, month int) time.Time {
	return time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}

// monthsOverdue counts whole months elapsed since due, minimum zero.
func monthsOverdue(due, asOf time.Time) int {
	if !asOf.After(due) {
		return 0
	}
	months := 0
	for t := due.AddDate(0, 1, 0); !t.After(asOf); t = t.AddDate(0, 1, 0) {
		months++
	}
	if months == 0 {
		months = 1
	}
	return months
}
