package core

import (
	"testing"
	"time"
)

func TestFiscalCalendarRoundTrip(t *testing.T) {
	for start := 1; start <= 12; start++ {
		for fm := 1; fm <= 12; fm++ {
			cal := FiscalToCalendarMonth(fm, start)
			if cal < 1 || cal > 12 {
				t.Fatalf("start=%d fm=%d produced calendar month %d", start, fm, cal)
			}
			back := CalendarToFiscalMonth(cal, start)
			if back != fm {
				t.Fatalf("start=%d fm=%d -> cal=%d -> fm=%d", start, fm, cal, back)
			}
		}
	}
}

func TestFiscalToCalendarMonth(t *testing.T) {
	cases := []struct {
		fm, start, want int
	}{
		{1, 1, 1},
		{12, 1, 12},
		{1, 7, 7},
		{6, 7, 12},
		{7, 7, 1},
		{12, 7, 6},
		{1, 12, 12},
		{2, 12, 1},
	}
	for _, tc := range cases {
		if got := FiscalToCalendarMonth(tc.fm, tc.start); got != tc.want {
			t.Fatalf("FiscalToCalendarMonth(%d, %d) = %d, want %d", tc.fm, tc.start, got, tc.want)
		}
	}
}

func TestFiscalYear(t *testing.T) {
	cases := []struct {
		date  time.Time
		start int
		want  int
	}{
		{time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), 1, 2025},
		{time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), 7, 2024},
		{time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), 7, 2025},
		{time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), 12, 2024},
		{time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), 12, 2025},
	}
	for i, tc := range cases {
		if got := FiscalYear(tc.date, tc.start); got != tc.want {
			t.Fatalf("case %d: FiscalYear = %d, want %d", i, got, tc.want)
		}
	}
}

func record(scheduled int64, amounts ...int64) DuesRecord {
	r := DuesRecord{Scheduled: Money{Centavos: scheduled}}
	for i, a := range amounts {
		r.Payments[i] = PaymentEntry{Paid: a > 0, Amount: Money{Centavos: a}}
	}
	return r
}

func TestMonthStatus(t *testing.T) {
	cases := []struct {
		scheduled, amount int64
		want              PaymentStatus
	}{
		{50000, 0, StatusUnpaid},
		{50000, 1, StatusPartial},
		{50000, 49999, StatusPartial},
		{50000, 50000, StatusPaid},
		{50000, 60000, StatusPaid}, // overpayment still paid
		{0, 0, StatusUnpaid},
	}
	for i, tc := range cases {
		r := record(tc.scheduled, tc.amount)
		if got := r.MonthStatus(1); got != tc.want {
			t.Fatalf("case %d: status = %s, want %s", i, got, tc.want)
		}
	}
}

func TestFiscalQuarterStatus(t *testing.T) {
	cases := []struct {
		name        string
		r           DuesRecord
		quarter     int
		wantPaid    int64
		wantDue     int64
		wantPercent int
		wantStatus  PaymentStatus
	}{
		{"all paid", record(50000, 50000, 50000, 50000), 1, 150000, 150000, 100, StatusPaid},
		{"untouched", record(50000), 1, 0, 150000, 0, StatusUnpaid},
		{"one of three", record(50000, 50000), 1, 50000, 150000, 33, StatusPartial},
		{"two of three", record(50000, 50000, 50000), 1, 100000, 150000, 67, StatusPartial},
		{"second quarter", record(50000, 0, 0, 0, 50000, 25000), 2, 75000, 150000, 50, StatusPartial},
		{"zero scheduled", record(0), 1, 0, 0, 0, StatusUnpaid},
		{"overpaid", record(50000, 80000, 50000, 50000), 1, 180000, 150000, 120, StatusPaid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			qs := tc.r.FiscalQuarterStatus(tc.quarter)
			if qs.TotalPaid.Centavos != tc.wantPaid {
				t.Fatalf("paid = %d, want %d", qs.TotalPaid.Centavos, tc.wantPaid)
			}
			if qs.TotalDue.Centavos != tc.wantDue {
				t.Fatalf("due = %d, want %d", qs.TotalDue.Centavos, tc.wantDue)
			}
			if qs.PercentPaid != tc.wantPercent {
				t.Fatalf("percent = %d, want %d", qs.PercentPaid, tc.wantPercent)
			}
			if qs.Status != tc.wantStatus {
				t.Fatalf("status = %s, want %s", qs.Status, tc.wantStatus)
			}
		})
	}
}

func TestQuarterDueAlwaysThreeTimesScheduled(t *testing.T) {
	r := record(123456)
	for q := 1; q <= 4; q++ {
		qs := r.FiscalQuarterStatus(q)
		if qs.TotalDue.Centavos != 3*123456 {
			t.Fatalf("quarter %d due = %d", q, qs.TotalDue.Centavos)
		}
	}
}

func TestIsLate(t *testing.T) {
	// Fiscal year starts in July; "now" is October 2025, fiscal month 4 of FY2025.
	now := time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC)
	const start = 7

	cases := []struct {
		name   string
		status PaymentStatus
		year   int
		fm     int
		want   bool
	}{
		{"past year unpaid", StatusUnpaid, 2024, 12, true},
		{"past year paid", StatusPaid, 2024, 12, false},
		{"current year elapsed month", StatusUnpaid, 2025, 4, true},
		{"current year earlier month", StatusUnpaid, 2025, 1, true},
		{"current year future month", StatusUnpaid, 2025, 5, false},
		{"future year", StatusUnpaid, 2026, 1, false},
		{"partial is not late", StatusPartial, 2025, 1, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsLate(tc.status, tc.year, tc.fm, now, start); got != tc.want {
				t.Fatalf("IsLate = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIsQuarterLate(t *testing.T) {
	now := time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC)
	const start = 7

	unpaidQ2 := record(50000).FiscalQuarterStatus(2) // fiscal months 4-6
	if !IsQuarterLate(unpaidQ2, 2025, now, start) {
		t.Fatalf("expected Q2 (starting fiscal month 4) to be late in fiscal month 4")
	}
	unpaidQ3 := record(50000).FiscalQuarterStatus(3)
	if IsQuarterLate(unpaidQ3, 2025, now, start) {
		t.Fatalf("expected future Q3 not to be late")
	}
}

func TestDuesRecordTotals(t *testing.T) {
	r := record(50000, 50000, 25000)
	if got := r.TotalPaid().Centavos; got != 75000 {
		t.Fatalf("total paid = %d", got)
	}
	if got := r.TotalDue().Centavos; got != 600000 {
		t.Fatalf("total due = %d", got)
	}
}
