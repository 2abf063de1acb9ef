package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cuotas/internal/core"
	"cuotas/internal/storage"
)

func newTestStorage(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "cuotas.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedUnit(t *testing.T, repo *storage.SQLiteRepository, dues int64) core.Unit {
	t.Helper()
	ctx := context.Background()
	client := core.Client{
		ID:               "vista-del-mar",
		Name:             "Vista del Mar",
		FiscalStartMonth: 7,
		Currency:         "MXN",
	}
	require.NoError(t, repo.CreateClient(ctx, client))
	unit := core.Unit{
		ID:         "unit-3b",
		ClientID:   client.ID,
		UnitNumber: "3B",
		Owners:     "Carlos Mendoza",
		Dues:       core.Money{Centavos: dues},
	}
	require.NoError(t, repo.CreateUnit(ctx, unit))
	return unit
}

func TestRecordPaymentAllocatesOldestFirst(t *testing.T) {
	repo := newTestStorage(t)
	unit := seedUnit(t, repo, 50000)
	svc := NewDuesService(repo, nil)
	ctx := context.Background()

	// Two and a half months of dues.
	result, err := svc.RecordPayment(ctx, PaymentRequest{
		ClientID: unit.ClientID,
		UnitID:   unit.ID,
		Year:     2025,
		Amount:   core.Money{Centavos: 125000},
		Date:     time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.Len(t, result.Allocations, 3)
	require.Equal(t, 1, result.Allocations[0].FiscalMonth)
	require.Equal(t, int64(50000), result.Allocations[0].Amount.Centavos)
	require.Equal(t, 2, result.Allocations[1].FiscalMonth)
	require.Equal(t, int64(50000), result.Allocations[1].Amount.Centavos)
	require.Equal(t, 3, result.Allocations[2].FiscalMonth)
	require.Equal(t, int64(25000), result.Allocations[2].Amount.Centavos)
	require.Zero(t, result.CreditUsed.Centavos)
	require.Zero(t, result.CreditAdded.Centavos)
	require.NotEmpty(t, result.Reference)

	record, err := repo.LoadDuesRecord(ctx, unit.ID, 2025)
	require.NoError(t, err)
	require.Equal(t, core.StatusPaid, record.MonthStatus(1))
	require.Equal(t, core.StatusPaid, record.MonthStatus(2))
	require.Equal(t, core.StatusPartial, record.MonthStatus(3))
	require.Equal(t, core.StatusUnpaid, record.MonthStatus(4))
}

func TestRecordPaymentSkipsPaidMonths(t *testing.T) {
	repo := newTestStorage(t)
	unit := seedUnit(t, repo, 50000)
	svc := NewDuesService(repo, nil)
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, PaymentRequest{
		ClientID: unit.ClientID, UnitID: unit.ID, Year: 2025,
		Amount: core.Money{Centavos: 50000},
	})
	require.NoError(t, err)

	result, err := svc.RecordPayment(ctx, PaymentRequest{
		ClientID: unit.ClientID, UnitID: unit.ID, Year: 2025,
		Amount: core.Money{Centavos: 50000},
	})
	require.NoError(t, err)
	require.Len(t, result.Allocations, 1)
	require.Equal(t, 2, result.Allocations[0].FiscalMonth)
}

func TestRecordPaymentOverpaymentBecomesCredit(t *testing.T) {
	repo := newTestStorage(t)
	unit := seedUnit(t, repo, 50000)
	svc := NewDuesService(repo, nil)
	ctx := context.Background()

	// 13 months' worth: 12 allocated, 1 month banked as credit.
	result, err := svc.RecordPayment(ctx, PaymentRequest{
		ClientID: unit.ClientID, UnitID: unit.ID, Year: 2025,
		Amount: core.Money{Centavos: 650000},
	})
	require.NoError(t, err)
	require.Len(t, result.Allocations, 12)
	require.Equal(t, int64(50000), result.CreditAdded.Centavos)
	require.Equal(t, int64(50000), result.CreditBalance.Centavos)

	got, err := repo.GetUnit(ctx, unit.ID)
	require.NoError(t, err)
	require.Equal(t, int64(50000), got.CreditBalance.Centavos)

	history, err := repo.ListCreditHistory(ctx, unit.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, int64(50000), history[0].Amount.Centavos)
}

func TestRecordPaymentUsesCredit(t *testing.T) {
	repo := newTestStorage(t)
	unit := seedUnit(t, repo, 50000)
	svc := NewDuesService(repo, nil)
	ctx := context.Background()

	require.NoError(t, svc.SetCredit(ctx, unit.ClientID, unit.ID, core.Money{Centavos: 20000}, "opening balance"))

	// 30000 cash + 20000 credit covers exactly one month.
	result, err := svc.RecordPayment(ctx, PaymentRequest{
		ClientID: unit.ClientID, UnitID: unit.ID, Year: 2025,
		Amount:    core.Money{Centavos: 30000},
		UseCredit: true,
	})
	require.NoError(t, err)
	require.Len(t, result.Allocations, 1)
	require.Equal(t, int64(50000), result.Allocations[0].Amount.Centavos)
	require.Equal(t, int64(20000), result.CreditUsed.Centavos)
	require.Zero(t, result.CreditAdded.Centavos)
	require.Zero(t, result.CreditBalance.Centavos)

	got, err := repo.GetUnit(ctx, unit.ID)
	require.NoError(t, err)
	require.Zero(t, got.CreditBalance.Centavos)
}

func TestRecordPaymentCreatesLedgerTransaction(t *testing.T) {
	repo := newTestStorage(t)
	unit := seedUnit(t, repo, 50000)
	svc := NewDuesService(repo, nil)
	ctx := context.Background()

	result, err := svc.RecordPayment(ctx, PaymentRequest{
		ClientID: unit.ClientID, UnitID: unit.ID, Year: 2025,
		Amount:    core.Money{Centavos: 50000},
		Reference: "rcpt-77",
	})
	require.NoError(t, err)
	require.Equal(t, "rcpt-77", result.Reference)

	txn, err := repo.GetTransaction(ctx, result.TransactionID)
	require.NoError(t, err)
	require.Equal(t, int64(50000), txn.Amount.Centavos)
	require.Equal(t, "HOA Dues", txn.Category)
	require.Equal(t, "rcpt-77", txn.Reference)

	// The transaction is queued for ledger export.
	pending, err := repo.PendingExport(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestRecordPaymentRejectsBadInput(t *testing.T) {
	repo := newTestStorage(t)
	unit := seedUnit(t, repo, 50000)
	svc := NewDuesService(repo, nil)
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, PaymentRequest{
		ClientID: unit.ClientID, UnitID: unit.ID, Year: 2025,
		Amount: core.Money{Centavos: 0},
	})
	require.ErrorIs(t, err, core.ErrInvalidAmount)

	_, err = svc.RecordPayment(ctx, PaymentRequest{
		ClientID: "other-client", UnitID: unit.ID, Year: 2025,
		Amount: core.Money{Centavos: 50000},
	})
	require.ErrorIs(t, err, storage.ErrNotFound)
}
