package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cuotas/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "cuotas.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedClientAndUnit(t *testing.T, repo *SQLiteRepository) (core.Client, core.Unit) {
	t.Helper()
	ctx := context.Background()
	client := core.Client{
		ID:               "marina-vista",
		Name:             "Marina Vista",
		FiscalStartMonth: 7,
		Currency:         "MXN",
		WaterRate:        core.Money{Centavos: 2500},
		WaterService:     core.Money{Centavos: 5000},
		PenaltyRateBP:    500,
	}
	if err := repo.CreateClient(ctx, client); err != nil {
		t.Fatalf("create client: %v", err)
	}
	unit := core.Unit{
		ID:         "unit-1a",
		ClientID:   client.ID,
		UnitNumber: "1A",
		Owners:     "Ana García",
		Dues:       core.Money{Centavos: 50000},
	}
	if err := repo.CreateUnit(ctx, unit); err != nil {
		t.Fatalf("create unit: %v", err)
	}
	return client, unit
}

func TestClientRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	client, _ := seedClientAndUnit(t, repo)
	ctx := context.Background()

	got, err := repo.GetClient(ctx, client.ID)
	if err != nil {
		t.Fatalf("get client: %v", err)
	}
	if got.FiscalStartMonth != 7 || got.WaterRate.Centavos != 2500 {
		t.Fatalf("unexpected client %+v", got)
	}

	got.WaterRate = core.Money{Centavos: 3000}
	if err := repo.UpdateClientConfig(ctx, got); err != nil {
		t.Fatalf("update config: %v", err)
	}
	got, err = repo.GetClient(ctx, client.ID)
	if err != nil {
		t.Fatalf("get client after update: %v", err)
	}
	if got.WaterRate.Centavos != 3000 {
		t.Fatalf("water rate not updated: %d", got.WaterRate.Centavos)
	}

	if _, err := repo.GetClient(ctx, "nope"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestApplyDuesPaymentAndLoadRecord(t *testing.T) {
	repo := newTestRepo(t)
	client, unit := seedClientAndUnit(t, repo)
	ctx := context.Background()

	paid := time.Date(2025, 8, 5, 0, 0, 0, 0, time.UTC)
	params := DuesPaymentParams{
		ClientID: client.ID,
		UnitID:   unit.ID,
		Year:     2025,
		Allocations: []MonthAllocation{
			{FiscalMonth: 1, Amount: core.Money{Centavos: 50000}},
			{FiscalMonth: 2, Amount: core.Money{Centavos: 25000}},
		},
		PaidDate:    paid,
		Notes:       "july+august partial",
		Reference:   "rcpt-001",
		CreditDelta: core.Money{Centavos: 10000},
		CreditEntries: []core.CreditEntry{{
			ID:           "ch-1",
			UnitID:       unit.ID,
			Amount:       core.Money{Centavos: 10000},
			BalanceAfter: core.Money{Centavos: 10000},
			Description:  "overpayment",
			Timestamp:    paid,
		}},
		Transaction: core.Transaction{
			ID:          "txn-1",
			ClientID:    client.ID,
			Date:        paid,
			Description: "Dues payment unit 1A",
			Amount:      core.Money{Centavos: 85000},
			Category:    "HOA Dues",
			Currency:    "MXN",
		},
	}
	if err := repo.ApplyDuesPayment(ctx, params); err != nil {
		t.Fatalf("apply dues payment: %v", err)
	}

	record, err := repo.LoadDuesRecord(ctx, unit.ID, 2025)
	if err != nil {
		t.Fatalf("load dues record: %v", err)
	}
	if record.Payments[0].Amount.Centavos != 50000 || !record.Payments[0].Paid {
		t.Fatalf("month 1 wrong: %+v", record.Payments[0])
	}
	if record.Payments[1].Amount.Centavos != 25000 {
		t.Fatalf("month 2 wrong: %+v", record.Payments[1])
	}
	if record.CreditBalance.Centavos != 10000 {
		t.Fatalf("credit balance = %d", record.CreditBalance.Centavos)
	}
	if len(record.CreditHistory) != 1 || record.CreditHistory[0].Description != "overpayment" {
		t.Fatalf("credit history wrong: %+v", record.CreditHistory)
	}
	if record.MonthStatus(1) != core.StatusPaid || record.MonthStatus(2) != core.StatusPartial {
		t.Fatalf("statuses wrong: %s %s", record.MonthStatus(1), record.MonthStatus(2))
	}

	// Second payment in the same month accumulates.
	second := DuesPaymentParams{
		ClientID:    client.ID,
		UnitID:      unit.ID,
		Year:        2025,
		Allocations: []MonthAllocation{{FiscalMonth: 2, Amount: core.Money{Centavos: 25000}}},
		PaidDate:    paid.AddDate(0, 0, 10),
	}
	if err := repo.ApplyDuesPayment(ctx, second); err != nil {
		t.Fatalf("apply second payment: %v", err)
	}
	record, err = repo.LoadDuesRecord(ctx, unit.ID, 2025)
	if err != nil {
		t.Fatalf("reload dues record: %v", err)
	}
	if record.Payments[1].Amount.Centavos != 50000 {
		t.Fatalf("month 2 did not accumulate: %d", record.Payments[1].Amount.Centavos)
	}
	if record.MonthStatus(2) != core.StatusPaid {
		t.Fatalf("month 2 status = %s", record.MonthStatus(2))
	}

	txn, err := repo.GetTransaction(ctx, "txn-1")
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if txn.Amount.Centavos != 85000 || txn.Category != "HOA Dues" {
		t.Fatalf("unexpected transaction %+v", txn)
	}
}

func TestTransactionsLedger(t *testing.T) {
	repo := newTestRepo(t)
	client, _ := seedClientAndUnit(t, repo)
	ctx := context.Background()

	expense := core.Transaction{
		ID:          "txn-exp",
		ClientID:    client.ID,
		Date:        time.Date(2025, 8, 10, 0, 0, 0, 0, time.UTC),
		Description: "pool chemicals",
		Amount:      core.Money{Centavos: -120000},
		Category:    "Maintenance",
		Currency:    "MXN",
	}
	if err := repo.CreateTransaction(ctx, expense); err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	txns, err := repo.ListTransactions(ctx, client.ID, 2025, 8)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(txns) != 1 || txns[0].ID != "txn-exp" {
		t.Fatalf("unexpected list %+v", txns)
	}

	txns, err = repo.ListTransactions(ctx, client.ID, 2025, 9)
	if err != nil {
		t.Fatalf("list other month: %v", err)
	}
	if len(txns) != 0 {
		t.Fatalf("expected empty month, got %d", len(txns))
	}

	cats, err := repo.ListCategories(ctx, client.ID)
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(cats) != 1 || cats[0] != "Maintenance" {
		t.Fatalf("unexpected categories %v", cats)
	}

	actuals, err := repo.CategoryActuals(ctx, client.ID,
		time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("category actuals: %v", err)
	}
	if actuals["Maintenance"] != 120000 {
		t.Fatalf("actuals = %v", actuals)
	}

	pending, err := repo.PendingExport(ctx, 10)
	if err != nil {
		t.Fatalf("pending export: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending, got %d", len(pending))
	}
	if err := repo.MarkExported(ctx, "txn-exp"); err != nil {
		t.Fatalf("mark exported: %v", err)
	}
	pending, err = repo.PendingExport(ctx, 10)
	if err != nil {
		t.Fatalf("pending export after mark: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected none pending, got %d", len(pending))
	}
}

func TestWaterReadingsAndBills(t *testing.T) {
	repo := newTestRepo(t)
	client, unit := seedClientAndUnit(t, repo)
	ctx := context.Background()

	dates := []time.Time{
		time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
	}
	for i, d := range dates {
		_, err := repo.CreateWaterReading(ctx, core.WaterReading{
			ClientID: client.ID, UnitID: unit.ID, Date: d, Reading: int64(100 + i*12),
		})
		if err != nil {
			t.Fatalf("create reading: %v", err)
		}
	}

	latest, err := repo.LatestReadings(ctx, unit.ID, dates[1])
	if err != nil {
		t.Fatalf("latest readings: %v", err)
	}
	if len(latest) != 2 || latest[0].Reading != 112 || latest[1].Reading != 100 {
		t.Fatalf("unexpected latest %+v", latest)
	}

	bill := core.WaterBill{
		ID: "bill-1", ClientID: client.ID, UnitID: unit.ID,
		Year: 2025, Month: 8, Consumption: 12,
		Amount:  core.Money{Centavos: 30000},
		Service: core.Money{Centavos: 5000},
		DueDate: time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC),
	}
	if err := repo.CreateWaterBill(ctx, bill); err != nil {
		t.Fatalf("create bill: %v", err)
	}

	unpaid, err := repo.ListUnpaidBillsBefore(ctx, client.ID, time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("list unpaid: %v", err)
	}
	if len(unpaid) != 1 {
		t.Fatalf("expected 1 unpaid, got %d", len(unpaid))
	}

	if err := repo.UpdateBillPenalty(ctx, "bill-1", core.Money{Centavos: 1750}); err != nil {
		t.Fatalf("update penalty: %v", err)
	}
	if err := repo.MarkBillPaid(ctx, "bill-1"); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	got, err := repo.GetWaterBill(ctx, unit.ID, 2025, 8)
	if err != nil {
		t.Fatalf("get bill: %v", err)
	}
	if !got.Paid || got.Penalty.Centavos != 1750 {
		t.Fatalf("unexpected bill %+v", got)
	}
}

func TestPollsAndVotes(t *testing.T) {
	repo := newTestRepo(t)
	client, unit := seedClientAndUnit(t, repo)
	ctx := context.Background()

	poll := core.Poll{
		ID:        "poll-1",
		ClientID:  client.ID,
		Title:     "2026 budget approval",
		Status:    core.PollOpen,
		CreatedAt: time.Now(),
	}
	if err := repo.CreatePoll(ctx, poll); err != nil {
		t.Fatalf("create poll: %v", err)
	}

	if err := repo.CastVote(ctx, core.Vote{PollID: poll.ID, UnitID: unit.ID, Choice: core.VoteYes, CastAt: time.Now()}); err != nil {
		t.Fatalf("cast vote: %v", err)
	}
	// The same unit cannot vote twice.
	if err := repo.CastVote(ctx, core.Vote{PollID: poll.ID, UnitID: unit.ID, Choice: core.VoteNo, CastAt: time.Now()}); err == nil {
		t.Fatalf("expected duplicate vote to fail")
	}

	result, err := repo.TallyVotes(ctx, poll.ID)
	if err != nil {
		t.Fatalf("tally: %v", err)
	}
	if result.Yes != 1 || result.Total != 1 {
		t.Fatalf("unexpected tally %+v", result)
	}

	now := time.Now()
	if err := repo.UpdatePollStatus(ctx, poll.ID, core.PollClosed, &now); err != nil {
		t.Fatalf("close poll: %v", err)
	}
	got, err := repo.GetPoll(ctx, poll.ID)
	if err != nil {
		t.Fatalf("get poll: %v", err)
	}
	if got.Status != core.PollClosed || got.ClosedAt == nil {
		t.Fatalf("poll not closed: %+v", got)
	}
}

func TestExchangeRates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	day1 := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC)
	rate := decimal.RequireFromString("17.1234")

	err := repo.UpsertExchangeRate(ctx, ExchangeRate{Date: day1, Base: "USD", Quote: "MXN", Rate: rate, FetchedAt: time.Now()})
	if err != nil {
		t.Fatalf("upsert rate: %v", err)
	}

	got, err := repo.GetExchangeRate(ctx, day1, "USD", "MXN")
	if err != nil {
		t.Fatalf("get rate: %v", err)
	}
	if !got.Rate.Equal(rate) {
		t.Fatalf("rate = %s, want %s", got.Rate, rate)
	}

	// Latest falls back to the most recent prior day.
	latest, err := repo.LatestExchangeRate(ctx, day2, "USD", "MXN")
	if err != nil {
		t.Fatalf("latest rate: %v", err)
	}
	if !latest.Rate.Equal(rate) {
		t.Fatalf("latest = %s", latest.Rate)
	}

	if _, err := repo.GetExchangeRate(ctx, day2, "USD", "MXN"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEmailTemplates(t *testing.T) {
	repo := newTestRepo(t)
	client, _ := seedClientAndUnit(t, repo)
	ctx := context.Background()

	tmpl := EmailTemplate{
		ClientID: client.ID,
		Name:     "receipt",
		Subject:  "Payment receipt {{.Reference}}",
		Body:     "Received {{.Amount}} for unit {{.UnitNumber}}.",
	}
	if err := repo.UpsertEmailTemplate(ctx, tmpl); err != nil {
		t.Fatalf("upsert template: %v", err)
	}

	got, err := repo.GetEmailTemplate(ctx, client.ID, "receipt")
	if err != nil {
		t.Fatalf("get template: %v", err)
	}
	if got.Subject != tmpl.Subject {
		t.Fatalf("unexpected subject %q", got.Subject)
	}

	tmpl.Body = "updated"
	if err := repo.UpsertEmailTemplate(ctx, tmpl); err != nil {
		t.Fatalf("update template: %v", err)
	}
	all, err := repo.ListEmailTemplates(ctx, client.ID)
	if err != nil {
		t.Fatalf("list templates: %v", err)
	}
	if len(all) != 1 || all[0].Body != "updated" {
		t.Fatalf("unexpected templates %+v", all)
	}
}

func TestApplyBillPaymentAtomic(t *testing.T) {
	repo := newTestRepo(t)
	client, unit := seedClientAndUnit(t, repo)
	ctx := context.Background()

	bill := core.WaterBill{
		ID: "bill-atomic", ClientID: client.ID, UnitID: unit.ID,
		Year: 2025, Month: 9, Consumption: 8,
		Amount:  core.Money{Centavos: 20000},
		Service: core.Money{Centavos: 5000},
		DueDate: time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC),
	}
	if err := repo.CreateWaterBill(ctx, bill); err != nil {
		t.Fatalf("create bill: %v", err)
	}

	existing := core.Transaction{
		ID: "txn-dup", ClientID: client.ID,
		Date:        time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC),
		Description: "Prior entry", Amount: core.Money{Centavos: 1000},
		Category: "Misc", Currency: "MXN",
	}
	if err := repo.CreateTransaction(ctx, existing); err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	// A colliding transaction id fails the insert; the whole payment must
	// roll back, leaving the bill unpaid.
	income := existing
	income.Description = "Water bill 2025-09 unit " + unit.ID
	income.Amount = core.Money{Centavos: 25000}
	if err := repo.ApplyBillPayment(ctx, bill.ID, income); err == nil {
		t.Fatal("expected duplicate transaction id to fail the payment")
	}
	got, err := repo.GetWaterBill(ctx, unit.ID, 2025, 9)
	if err != nil {
		t.Fatalf("get bill: %v", err)
	}
	if got.Paid {
		t.Fatal("bill must stay unpaid when the income insert fails")
	}

	income.ID = "txn-water-ok"
	if err := repo.ApplyBillPayment(ctx, bill.ID, income); err != nil {
		t.Fatalf("apply bill payment: %v", err)
	}
	got, err = repo.GetWaterBill(ctx, unit.ID, 2025, 9)
	if err != nil {
		t.Fatalf("get bill: %v", err)
	}
	if !got.Paid {
		t.Fatal("bill should be paid")
	}
	if _, err := repo.GetTransaction(ctx, "txn-water-ok"); err != nil {
		t.Fatalf("income transaction missing: %v", err)
	}

	// Paying an already-paid bill touches nothing.
	income.ID = "txn-water-again"
	if err := repo.ApplyBillPayment(ctx, bill.ID, income); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second payment, got %v", err)
	}
	if _, err := repo.GetTransaction(ctx, "txn-water-again"); err == nil {
		t.Fatal("no transaction should be booked for a paid bill")
	}
}
