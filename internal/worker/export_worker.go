package worker

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"text/template"

	"cuotas/internal/amqp"
	"cuotas/internal/core"
	"cuotas/internal/export"
	"cuotas/internal/storage"
)

// Default receipt wording, used when a client has no template configured.
const (
	defaultReceiptSubject = "Payment receipt {{.Reference}}"
	defaultReceiptBody    = "Dear {{.OwnerName}},\n\n" +
		"We received your payment of {{.Amount}} for unit {{.UnitNumber}} ({{.ClientName}}).\n" +
		"Reference: {{.Reference}}\n\n" +
		"Thank you."
)

// ExportWorker drains the export queue: ledger rows go to the spreadsheet,
// receipts are rendered and mailed.
type ExportWorker struct {
	storage   *storage.SQLiteRepository
	ledger    export.LedgerWriter
	receipts  export.ReceiptSender
	batchSize int
}

func NewExportWorker(storage *storage.SQLiteRepository, ledger export.LedgerWriter, receipts export.ReceiptSender, batchSize int) *ExportWorker {
	return &ExportWorker{
		storage:   storage,
		ledger:    ledger,
		receipts:  receipts,
		batchSize: batchSize,
	}
}

// HandleMessage processes one export message from AMQP.
func (w *ExportWorker) HandleMessage(ctx context.Context, msg *amqp.Message) error {
	switch msg.Kind {
	case amqp.KindLedgerSync:
		if msg.LedgerSync == nil {
			return fmt.Errorf("ledger sync message without payload")
		}
		return w.HandleLedgerSync(ctx, msg.LedgerSync)
	case amqp.KindReceipt:
		if msg.Receipt == nil {
			return fmt.Errorf("receipt message without payload")
		}
		return w.HandleReceipt(ctx, msg.Receipt)
	default:
		return fmt.Errorf("unknown message kind %q", msg.Kind)
	}
}

// HandleLedgerSync exports one transaction to the board ledger.
func (w *ExportWorker) HandleLedgerSync(ctx context.Context, msg *amqp.LedgerSyncMessage) error {
	slog.InfoContext(ctx, "Processing ledger sync message", "transaction_id", msg.TransactionID)

	txn, err := w.storage.GetTransaction(ctx, msg.TransactionID)
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	return w.exportTransaction(ctx, txn)
}

func (w *ExportWorker) exportTransaction(ctx context.Context, txn core.Transaction) error {
	if w.ledger == nil {
		slog.WarnContext(ctx, "No ledger writer configured, skipping export", "id", txn.ID)
		return nil
	}

	rowRef, err := w.ledger.Append(ctx, txn)
	if err != nil {
		if markErr := w.storage.MarkExportError(ctx, txn.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error", "id", txn.ID, "error", markErr)
		}
		return fmt.Errorf("append to ledger: %w", err)
	}

	if err := w.storage.MarkExported(ctx, txn.ID); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}

	slog.InfoContext(ctx, "Transaction exported to ledger", "id", txn.ID, "row_ref", rowRef)
	return nil
}

// HandleReceipt renders a payment receipt from the client's template and
// sends it to the unit's owners.
func (w *ExportWorker) HandleReceipt(ctx context.Context, msg *amqp.ReceiptMessage) error {
	slog.InfoContext(ctx, "Processing receipt message",
		"client_id", msg.ClientID, "unit_id", msg.UnitID, "reference", msg.Reference)

	if w.receipts == nil {
		slog.WarnContext(ctx, "No receipt sender configured, skipping receipt", "reference", msg.Reference)
		return nil
	}

	client, err := w.storage.GetClient(ctx, msg.ClientID)
	if err != nil {
		return fmt.Errorf("get client: %w", err)
	}
	unit, err := w.storage.GetUnit(ctx, msg.UnitID)
	if err != nil {
		return fmt.Errorf("get unit: %w", err)
	}

	subjectTmpl, bodyTmpl := defaultReceiptSubject, defaultReceiptBody
	if tmpl, err := w.storage.GetEmailTemplate(ctx, msg.ClientID, "receipt"); err == nil {
		subjectTmpl, bodyTmpl = tmpl.Subject, tmpl.Body
	} else if err != storage.ErrNotFound {
		return fmt.Errorf("load receipt template: %w", err)
	}

	data := map[string]string{
		"OwnerName":  core.FirstOwner(unit.Owners),
		"UnitNumber": unit.UnitNumber,
		"ClientName": client.Name,
		"Amount":     core.Money{Centavos: msg.Amount}.String(),
		"Reference":  msg.Reference,
		"Year":       fmt.Sprintf("%d", msg.Year),
	}

	subject, err := renderTemplate("subject", subjectTmpl, data)
	if err != nil {
		return fmt.Errorf("render receipt subject: %w", err)
	}
	body, err := renderTemplate("body", bodyTmpl, data)
	if err != nil {
		return fmt.Errorf("render receipt body: %w", err)
	}

	receipt := export.Receipt{
		ClientID:  msg.ClientID,
		UnitID:    msg.UnitID,
		To:        unit.Owners,
		Subject:   subject,
		Body:      body,
		Reference: msg.Reference,
	}
	if err := w.receipts.Send(ctx, receipt); err != nil {
		return fmt.Errorf("send receipt: %w", err)
	}

	slog.InfoContext(ctx, "Receipt sent", "unit_id", msg.UnitID, "reference", msg.Reference)
	return nil
}

func renderTemplate(name, text string, data map[string]string) (string, error) {
	t, err := template.New(name).Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ProcessPendingTransactions exports transactions still marked pending.
// This is a backup mechanism in case AMQP messages are lost.
func (w *ExportWorker) ProcessPendingTransactions(ctx context.Context) error {
	pending, err := w.storage.PendingExport(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending transactions", "count", len(pending))

	for _, txn := range pending {
		if err := w.exportTransaction(ctx, txn); err != nil {
			slog.ErrorContext(ctx, "Failed to export transaction", "id", txn.ID, "error", err)
			continue
		}
	}
	return nil
}

// StartupSyncCheck exports any backlog of pending transactions at worker
// startup. This recovers from missed AMQP messages or worker downtime.
func (w *ExportWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.storage.PendingExport(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending transactions for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending transactions found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending transactions on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0
	for _, txn := range pending {
		if err := w.exportTransaction(ctx, txn); err != nil {
			slog.ErrorContext(ctx, "Failed to export transaction during startup",
				"id", txn.ID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup export completed",
		"total", len(pending),
		"exported", successCount,
		"errors", errorCount)
	return nil
}
