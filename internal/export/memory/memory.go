// Package memory provides in-memory export adapters used in tests and local
// development, when no spreadsheet or mail transport is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"cuotas/internal/core"
	"cuotas/internal/export"
)

type Store struct {
	mu       sync.Mutex
	rows     []core.Transaction
	receipts []export.Receipt
	failNext error
}

var (
	_ export.LedgerWriter  = (*Store)(nil)
	_ export.ReceiptSender = (*Store)(nil)
)

func New() *Store {
	return &Store{}
}

// Append stores the transaction and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failNext; err != nil {
		s.failNext = nil
		return "", err
	}
	s.rows = append(s.rows, t)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

func (s *Store) Send(_ context.Context, r export.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failNext; err != nil {
		s.failNext = nil
		return err
	}
	s.receipts = append(s.receipts, r)
	return nil
}

// FailNext makes the next Append or Send return err.
func (s *Store) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

func (s *Store) Rows() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.rows...)
}

func (s *Store) Receipts() []export.Receipt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]export.Receipt(nil), s.receipts...)
}
