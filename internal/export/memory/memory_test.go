package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"cuotas/internal/core"
	"cuotas/internal/export"
)

func TestAppendAndRows(t *testing.T) {
	s := New()
	ctx := context.Background()

	txn := core.Transaction{
		ID:          "txn-1",
		ClientID:    "c1",
		Date:        time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		Description: "dues payment",
		Amount:      core.Money{Centavos: 50000},
		Category:    "HOA Dues",
	}

	ref, err := s.Append(ctx, txn)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if ref != "mem:1" {
		t.Errorf("ref = %q, want mem:1", ref)
	}
	if rows := s.Rows(); len(rows) != 1 || rows[0].ID != "txn-1" {
		t.Errorf("unexpected rows %+v", rows)
	}
}

func TestAppendRejectsInvalid(t *testing.T) {
	s := New()
	_, err := s.Append(context.Background(), core.Transaction{})
	if err == nil {
		t.Fatal("Append() should reject an invalid transaction")
	}
}

func TestSendAndFailNext(t *testing.T) {
	s := New()
	ctx := context.Background()

	r := export.Receipt{ClientID: "c1", UnitID: "u1", To: "owner@example.com", Subject: "Receipt"}
	if err := s.Send(ctx, r); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got := s.Receipts(); len(got) != 1 || got[0].To != "owner@example.com" {
		t.Errorf("unexpected receipts %+v", got)
	}

	boom := errors.New("smtp down")
	s.FailNext(boom)
	if err := s.Send(ctx, r); !errors.Is(err, boom) {
		t.Errorf("Send() after FailNext = %v, want %v", err, boom)
	}
	// Failure is one-shot.
	if err := s.Send(ctx, r); err != nil {
		t.Errorf("Send() after consumed failure = %v", err)
	}
}
