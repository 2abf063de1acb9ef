package export

import (
	"context"

	"cuotas/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerWriter appends one transaction to the external ledger.
	LedgerWriter interface {
		Append(ctx context.Context, t core.Transaction) (rowRef string, err error)
	}

	// ReceiptSender delivers a rendered payment receipt to a unit's owners.
	ReceiptSender interface {
		Send(ctx context.Context, r Receipt) error
	}
)

// Receipt is a rendered receipt ready for delivery.
type Receipt struct {
	ClientID  string
	UnitID    string
	To        string
	Subject   string
	Body      string
	Reference string
}
