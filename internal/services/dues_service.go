package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"cuotas/internal/amqp"
	"cuotas/internal/core"
	"cuotas/internal/storage"
)

// DuesService orchestrates dues payments across SQLite and AMQP.
type DuesService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewDuesService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *DuesService {
	return &DuesService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// PaymentRequest is a dues payment as entered by the administrator.
type PaymentRequest struct {
	ClientID  string
	UnitID    string
	Year      int
	Amount    core.Money
	Date      time.Time
	Notes     string
	Reference string
	UseCredit bool
	CreatedBy string
}

// PaymentResult describes how a payment was applied.
type PaymentResult struct {
	Reference     string
	TransactionID string
	Allocations   []storage.MonthAllocation
	CreditUsed    core.Money
	CreditAdded   core.Money
	CreditBalance core.Money
}

// RecordPayment applies a payment to the oldest unpaid fiscal months first.
// Credit can be drawn in, and any amount beyond the year's schedule is
// banked as new credit. The payment, credit movements, and ledger
// transaction commit atomically; export messages are published after.
func (s *DuesService) RecordPayment(ctx context.Context, req PaymentRequest) (PaymentResult, error) {
	if req.Amount.Centavos <= 0 {
		return PaymentResult{}, core.ErrInvalidAmount
	}
	if req.Date.IsZero() {
		req.Date = time.Now()
	}

	unit, err := s.storage.GetUnit(ctx, req.UnitID)
	if err != nil {
		return PaymentResult{}, fmt.Errorf("load unit: %w", err)
	}
	if unit.ClientID != req.ClientID {
		return PaymentResult{}, storage.ErrNotFound
	}

	record, err := s.storage.LoadDuesRecord(ctx, req.UnitID, req.Year)
	if err != nil {
		return PaymentResult{}, fmt.Errorf("load dues record: %w", err)
	}

	available := req.Amount.Centavos
	var creditAvailable int64
	if req.UseCredit {
		creditAvailable = unit.CreditBalance.Centavos
		available += creditAvailable
	}

	allocations := allocateOldestFirst(record, available)
	var allocated int64
	for _, a := range allocations {
		allocated += a.Amount.Centavos
	}

	// Cash applies first; credit covers what the cash could not. Cash left
	// over after the full year's schedule is banked as new credit.
	creditUsed := allocated - req.Amount.Centavos
	if creditUsed < 0 {
		creditUsed = 0
	}
	creditAdded := req.Amount.Centavos - allocated
	if creditAdded < 0 {
		creditAdded = 0
	}

	creditDelta := creditAdded - creditUsed
	newBalance := unit.CreditBalance.Centavos + creditDelta

	reference := req.Reference
	if reference == "" {
		reference = uuid.NewString()
	}

	var creditEntries []core.CreditEntry
	running := unit.CreditBalance.Centavos
	if creditUsed > 0 {
		running -= creditUsed
		creditEntries = append(creditEntries, core.CreditEntry{
			ID:           uuid.NewString(),
			UnitID:       req.UnitID,
			Amount:       core.Money{Centavos: -creditUsed},
			BalanceAfter: core.Money{Centavos: running},
			Description:  fmt.Sprintf("applied to %d dues", req.Year),
			Timestamp:    req.Date,
		})
	}
	if creditAdded > 0 {
		running += creditAdded
		creditEntries = append(creditEntries, core.CreditEntry{
			ID:           uuid.NewString(),
			UnitID:       req.UnitID,
			Amount:       core.Money{Centavos: creditAdded},
			BalanceAfter: core.Money{Centavos: running},
			Description:  "overpayment",
			Timestamp:    req.Date,
		})
	}

	txn := core.Transaction{
		ID:          uuid.NewString(),
		ClientID:    req.ClientID,
		Date:        req.Date,
		Description: fmt.Sprintf("Dues payment unit %s", unit.UnitNumber),
		Amount:      req.Amount,
		Category:    "HOA Dues",
		Currency:    "MXN",
		CreatedBy:   req.CreatedBy,
		Reference:   reference,
	}

	params := storage.DuesPaymentParams{
		ClientID:      req.ClientID,
		UnitID:        req.UnitID,
		Year:          req.Year,
		Allocations:   allocations,
		PaidDate:      req.Date,
		Notes:         req.Notes,
		Reference:     reference,
		CreditDelta:   core.Money{Centavos: creditDelta},
		CreditEntries: creditEntries,
		Transaction:   txn,
	}
	if err := s.storage.ApplyDuesPayment(ctx, params); err != nil {
		return PaymentResult{}, fmt.Errorf("apply payment: %w", err)
	}

	s.publishExport(ctx, txn, req, unit)

	return PaymentResult{
		Reference:     reference,
		TransactionID: txn.ID,
		Allocations:   allocations,
		CreditUsed:    core.Money{Centavos: creditUsed},
		CreditAdded:   core.Money{Centavos: creditAdded},
		CreditBalance: core.Money{Centavos: newBalance},
	}, nil
}

// allocateOldestFirst fills unpaid fiscal months in order until the amount
// runs out. Months already at or above schedule are skipped.
func allocateOldestFirst(record core.DuesRecord, amount int64) []storage.MonthAllocation {
	var out []storage.MonthAllocation
	remaining := amount
	for fm := 1; fm <= 12 && remaining > 0; fm++ {
		needed := record.Scheduled.Centavos - record.Payments[fm-1].Amount.Centavos
		if needed <= 0 {
			continue
		}
		alloc := needed
		if remaining < alloc {
			alloc = remaining
		}
		out = append(out, storage.MonthAllocation{
			FiscalMonth: fm,
			Amount:      core.Money{Centavos: alloc},
		})
		remaining -= alloc
	}
	return out
}

// SetCredit overwrites a unit's credit balance, recording the adjustment in
// the credit history.
func (s *DuesService) SetCredit(ctx context.Context, clientID, unitID string, balance core.Money, description string) error {
	if balance.Centavos < 0 {
		return core.ErrInvalidAmount
	}
	unit, err := s.storage.GetUnit(ctx, unitID)
	if err != nil {
		return fmt.Errorf("load unit: %w", err)
	}
	if unit.ClientID != clientID {
		return storage.ErrNotFound
	}
	if description == "" {
		description = "manual adjustment"
	}
	entry := core.CreditEntry{
		ID:           uuid.NewString(),
		UnitID:       unitID,
		Amount:       core.Money{Centavos: balance.Centavos - unit.CreditBalance.Centavos},
		BalanceAfter: balance,
		Description:  description,
		Timestamp:    time.Now(),
	}
	return s.storage.SetCreditBalance(ctx, clientID, entry, balance)
}

func (s *DuesService) publishExport(ctx context.Context, txn core.Transaction, req PaymentRequest, unit core.Unit) {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping export messages")
		return
	}
	if err := s.amqpClient.PublishLedgerSync(ctx, txn.ID); err != nil {
		// Don't fail the request, the sweep worker will pick it up.
		slog.ErrorContext(ctx, "Failed to publish ledger sync message",
			"transaction_id", txn.ID, "error", err)
	}
	msg := amqp.NewReceiptMessage(req.ClientID, unit.ID, txn.Reference, req.Amount.Centavos, req.Year)
	if err := s.amqpClient.PublishReceipt(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish receipt message",
			"unit_id", unit.ID, "error", err)
	}
}

// Close closes both storage and AMQP connections.
func (s *DuesService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close dues service: %v", errs)
	}

	return nil
}
