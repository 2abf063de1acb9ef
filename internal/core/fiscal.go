package core

import (
	"math"
	"time"
)

// Fiscal months are 1-based indices relative to a client-configured start
// month. With FiscalStartMonth = 7, fiscal month 1 is July and fiscal
// month 12 is the following June. A fiscal year is named by the calendar
// year in which it begins.

// FiscalToCalendarMonth maps a fiscal month to its calendar month for the
// given fiscal start month. Both arguments must be in 1-12; the mapping
// itself does not guard, that is the caller's contract.
func FiscalToCalendarMonth(fiscalMonth, startMonth int) int {
	return (startMonth-1+fiscalMonth-1)%12 + 1
}

// CalendarToFiscalMonth is the inverse of FiscalToCalendarMonth.
func CalendarToFiscalMonth(calendarMonth, startMonth int) int {
	return (calendarMonth-startMonth+12)%12 + 1
}

// FiscalYear returns the fiscal year containing t. Months before the start
// month belong to the fiscal year that began the previous calendar year.
func FiscalYear(t time.Time, startMonth int) int {
	if int(t.Month()) < startMonth {
		return t.Year() - 1
	}
	return t.Year()
}

// CurrentFiscalMonth returns the 1-based fiscal month containing t.
func CurrentFiscalMonth(t time.Time, startMonth int) int {
	return CalendarToFiscalMonth(int(t.Month()), startMonth)
}

// MonthStatus classifies one fiscal month's payment against the scheduled
// amount: unpaid when nothing was paid, partial when 0 < amount < scheduled,
// paid when amount >= scheduled.
func (r DuesRecord) MonthStatus(fiscalMonth int) PaymentStatus {
	amount := r.Payments[fiscalMonth-1].Amount.Centavos
	switch {
	case amount == 0:
		return StatusUnpaid
	case amount < r.Scheduled.Centavos:
		return StatusPartial
	default:
		return StatusPaid
	}
}

// QuarterStatus aggregates three fiscal months of a DuesRecord.
type QuarterStatus struct {
	Quarter     int // 1-4
	TotalPaid   Money
	TotalDue    Money // scheduled * 3
	PercentPaid int   // round(100 * paid / due), 0 when due is 0
	Status      PaymentStatus
}

// QuarterMonths returns the three fiscal months of quarter q (1-4).
func QuarterMonths(q int) [3]int {
	base := (q-1)*3 + 1
	return [3]int{base, base + 1, base + 2}
}

// FiscalQuarterStatus sums paid and due across the quarter's three months
// and applies the monthly thresholds at quarter granularity.
func (r DuesRecord) FiscalQuarterStatus(quarter int) QuarterStatus {
	months := QuarterMonths(quarter)
	var paid int64
	for _, fm := range months {
		paid += r.Payments[fm-1].Amount.Centavos
	}
	due := r.Scheduled.Centavos * 3

	qs := QuarterStatus{
		Quarter:   quarter,
		TotalPaid: Money{Centavos: paid},
		TotalDue:  Money{Centavos: due},
	}
	if due > 0 {
		qs.PercentPaid = int(math.Round(100 * float64(paid) / float64(due)))
	}
	switch {
	case paid == 0:
		qs.Status = StatusUnpaid
	case paid < due:
		qs.Status = StatusPartial
	default:
		qs.Status = StatusPaid
	}
	return qs
}

// IsLate reports whether an unpaid fiscal month should be flagged late for
// display: the selected fiscal year is already over, or it is the current
// fiscal year and the month is not in the future. Display classification
// only; it never touches financial state.
func IsLate(status PaymentStatus, selectedYear, fiscalMonth int, now time.Time, startMonth int) bool {
	if status != StatusUnpaid {
		return false
	}
	currentFY := FiscalYear(now, startMonth)
	if selectedYear < currentFY {
		return true
	}
	if selectedYear > currentFY {
		return false
	}
	return fiscalMonth <= CurrentFiscalMonth(now, startMonth)
}

// IsQuarterLate applies the lateness rule to a quarter: late iff the quarter
// is unpaid and its first fiscal month is not in the future.
func IsQuarterLate(qs QuarterStatus, selectedYear int, now time.Time, startMonth int) bool {
	return IsLate(qs.Status, selectedYear, QuarterMonths(qs.Quarter)[0], now, startMonth)
}
