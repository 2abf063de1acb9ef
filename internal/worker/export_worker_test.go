package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cuotas/internal/amqp"
	"cuotas/internal/core"
	"cuotas/internal/export/memory"
	"cuotas/internal/storage"
)

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "cuotas.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seed(t *testing.T, repo *storage.SQLiteRepository) (core.Client, core.Unit, core.Transaction) {
	t.Helper()
	ctx := context.Background()
	client := core.Client{ID: "c1", Name: "Las Palmas", FiscalStartMonth: 1, Currency: "MXN"}
	require.NoError(t, repo.CreateClient(ctx, client))
	unit := core.Unit{
		ID: "u1", ClientID: client.ID, UnitNumber: "12",
		Owners: "María López & Juan López", Dues: core.Money{Centavos: 40000},
	}
	require.NoError(t, repo.CreateUnit(ctx, unit))
	txn := core.Transaction{
		ID: "t1", ClientID: client.ID,
		Date:        time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		Description: "Dues payment unit 12",
		Amount:      core.Money{Centavos: 40000},
		Category:    "HOA Dues", Currency: "MXN", Reference: "rcpt-9",
	}
	require.NoError(t, repo.CreateTransaction(ctx, txn))
	return client, unit, txn
}

func TestHandleLedgerSync(t *testing.T) {
	repo := newTestRepo(t)
	_, _, txn := seed(t, repo)
	sink := memory.New()
	w := NewExportWorker(repo, sink, sink, 25)
	ctx := context.Background()

	msg := amqp.NewLedgerSyncMessage(txn.ID)
	require.NoError(t, w.HandleMessage(ctx, msg))

	rows := sink.Rows()
	require.Len(t, rows, 1)
	require.Equal(t, txn.ID, rows[0].ID)

	pending, err := repo.PendingExport(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestHandleLedgerSyncFailureMarksError(t *testing.T) {
	repo := newTestRepo(t)
	_, _, txn := seed(t, repo)
	sink := memory.New()
	sink.FailNext(errors.New("sheets quota exceeded"))
	w := NewExportWorker(repo, sink, sink, 25)
	ctx := context.Background()

	err := w.HandleLedgerSync(ctx, &amqp.LedgerSyncMessage{TransactionID: txn.ID})
	require.Error(t, err)

	// Marked as error, so the pending sweep no longer picks it up.
	pending, err := repo.PendingExport(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestHandleReceiptDefaultTemplate(t *testing.T) {
	repo := newTestRepo(t)
	_, unit, _ := seed(t, repo)
	sink := memory.New()
	w := NewExportWorker(repo, sink, sink, 25)
	ctx := context.Background()

	msg := amqp.NewReceiptMessage("c1", unit.ID, "rcpt-9", 40000, 2025)
	require.NoError(t, w.HandleMessage(ctx, msg))

	receipts := sink.Receipts()
	require.Len(t, receipts, 1)
	require.Equal(t, "Payment receipt rcpt-9", receipts[0].Subject)
	require.Contains(t, receipts[0].Body, "María López")
	require.Contains(t, receipts[0].Body, "unit 12")
	require.Contains(t, receipts[0].Body, "$400.00")
}

func TestHandleReceiptCustomTemplate(t *testing.T) {
	repo := newTestRepo(t)
	_, unit, _ := seed(t, repo)
	ctx := context.Background()
	require.NoError(t, repo.UpsertEmailTemplate(ctx, storage.EmailTemplate{
		ClientID: "c1", Name: "receipt",
		Subject: "Recibo {{.Reference}}",
		Body:    "Gracias {{.OwnerName}}, recibimos {{.Amount}}.",
	}))

	sink := memory.New()
	w := NewExportWorker(repo, sink, sink, 25)

	require.NoError(t, w.HandleReceipt(ctx, &amqp.ReceiptMessage{
		ClientID: "c1", UnitID: unit.ID, Reference: "rcpt-9", Amount: 40000, Year: 2025,
	}))

	receipts := sink.Receipts()
	require.Len(t, receipts, 1)
	require.Equal(t, "Recibo rcpt-9", receipts[0].Subject)
	require.Equal(t, "Gracias María López, recibimos $400.00.", receipts[0].Body)
}

func TestHandleMessageUnknownKind(t *testing.T) {
	repo := newTestRepo(t)
	w := NewExportWorker(repo, nil, nil, 25)
	err := w.HandleMessage(context.Background(), &amqp.Message{Kind: "mystery"})
	require.Error(t, err)
}

func TestStartupSyncCheck(t *testing.T) {
	repo := newTestRepo(t)
	client, _, txn := seed(t, repo)
	ctx := context.Background()

	other := core.Transaction{
		ID: "t2", ClientID: client.ID,
		Date:        time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC),
		Description: "garden service",
		Amount:      core.Money{Centavos: -15000},
		Category:    "Maintenance", Currency: "MXN",
	}
	require.NoError(t, repo.CreateTransaction(ctx, other))

	sink := memory.New()
	w := NewExportWorker(repo, sink, sink, 25)
	require.NoError(t, w.StartupSyncCheck(ctx))

	rows := sink.Rows()
	require.Len(t, rows, 2)
	ids := []string{rows[0].ID, rows[1].ID}
	require.Contains(t, ids, txn.ID)
	require.Contains(t, ids, other.ID)

	pending, err := repo.PendingExport(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, pending)
}
