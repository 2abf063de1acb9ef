package amqp

import (
	"encoding/json"
	"time"
)

const (
	KindLedgerSync = "ledger_sync"
	KindReceipt    = "receipt"
)

// Message is the envelope carried on the export queue. Exactly one of the
// payload fields is set, selected by Kind.
type Message struct {
	Kind       string             `json:"kind"`
	LedgerSync *LedgerSyncMessage `json:"ledger_sync,omitempty"`
	Receipt    *ReceiptMessage    `json:"receipt,omitempty"`
}

// LedgerSyncMessage asks the worker to export one transaction to the ledger
// sheet. It carries only the ID; the worker fetches the row from the database.
type LedgerSyncMessage struct {
	TransactionID string    `json:"transaction_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// ReceiptMessage asks the worker to render and send a payment receipt.
type ReceiptMessage struct {
	ClientID  string    `json:"client_id"`
	UnitID    string    `json:"unit_id"`
	Reference string    `json:"reference"`
	Amount    int64     `json:"amount"` // centavos
	Year      int       `json:"year"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerSyncMessage(transactionID string) *Message {
	return &Message{
		Kind: KindLedgerSync,
		LedgerSync: &LedgerSyncMessage{
			TransactionID: transactionID,
			Timestamp:     time.Now(),
		},
	}
}

func NewReceiptMessage(clientID, unitID, reference string, amount int64, year int) *Message {
	return &Message{
		Kind: KindReceipt,
		Receipt: &ReceiptMessage{
			ClientID:  clientID,
			UnitID:    unitID,
			Reference: reference,
			Amount:    amount,
			Year:      year,
			Timestamp: time.Now(),
		},
	}
}

func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func MessageFromJSON(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
