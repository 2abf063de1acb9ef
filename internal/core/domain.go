package core

import (
	"errors"
	"strings"
	"time"
)

const (
	StatusUnpaid  PaymentStatus = "unpaid"
	StatusPartial PaymentStatus = "partial"
	StatusPaid    PaymentStatus = "paid"
)

const (
	PollDraft  PollStatus = "draft"
	PollOpen   PollStatus = "open"
	PollClosed PollStatus = "closed"
)

const (
	VoteYes     VoteChoice = "yes"
	VoteNo      VoteChoice = "no"
	VoteAbstain VoteChoice = "abstain"
)

type (
	PaymentStatus string
	PollStatus    string
	VoteChoice    string

	// Client is a managed property (an HOA) with its billing configuration.
	Client struct {
		ID               string
		Name             string
		FiscalStartMonth int // 1-12, calendar month the fiscal year begins
		Currency         string
		WaterRate        Money // per cubic meter
		WaterService     Money // fixed monthly service charge
		PenaltyRateBP    int64 // late penalty in basis points per month
	}

	// Unit is a single dues-paying unit (condo, lot) within a client.
	Unit struct {
		ID            string
		ClientID      string
		UnitNumber    string
		Owners        string // as entered: "First Last", "Last, First", "A & B"
		Dues          Money  // scheduled monthly dues
		CreditBalance Money
	}

	// PaymentEntry is one fiscal month's slot in a DuesRecord.
	PaymentEntry struct {
		Paid      bool
		Amount    Money
		Date      time.Time
		Notes     string
		Reference string
	}

	// CreditEntry is one row of a unit's credit balance history.
	CreditEntry struct {
		ID           string
		UnitID       string
		Amount       Money // signed: positive added, negative used
		BalanceAfter Money
		Description  string
		Timestamp    time.Time
	}

	// DuesRecord holds one unit's dues position for one fiscal year.
	// Payments is indexed by fiscal month minus one.
	DuesRecord struct {
		UnitID        string
		Year          int
		Scheduled     Money
		Payments      [12]PaymentEntry
		CreditBalance Money
		CreditHistory []CreditEntry
	}

	// Transaction is a ledger entry: dues income, water income, or an expense.
	// Amounts are signed centavos; expenses are negative.
	Transaction struct {
		ID          string
		ClientID    string
		Date        time.Time
		Description string
		Amount      Money
		Category    string
		Currency    string
		CreatedBy   string
		Reference   string
	}

	// WaterReading is a meter reading for one unit.
	WaterReading struct {
		ID       int64
		ClientID string
		UnitID   string
		Date     time.Time
		Reading  int64 // cubic meters, cumulative
	}

	// WaterBill is a generated charge for one unit and billing period.
	WaterBill struct {
		ID          string
		ClientID    string
		UnitID      string
		Year        int
		Month       int // calendar month
		Consumption int64
		Amount      Money // consumption charge
		Service     Money
		Penalty     Money
		DueDate     time.Time
		Paid        bool
	}

	// BudgetLine is one category's planned amount for a fiscal year.
	BudgetLine struct {
		ID       int64
		ClientID string
		Year     int
		Category string
		Amount   Money
	}

	// Poll is a budget-approval poll put to the unit owners.
	Poll struct {
		ID          string
		ClientID    string
		Title       string
		Description string
		Status      PollStatus
		ClosesAt    *time.Time
		ClosedAt    *time.Time
		CreatedAt   time.Time
	}

	// Vote is one unit's response to a poll. One vote per unit.
	Vote struct {
		PollID string
		UnitID string
		Choice VoteChoice
		CastAt time.Time
	}

	// PollResult is the tally of a poll's votes.
	PollResult struct {
		PollID  string
		Yes     int
		No      int
		Abstain int
		Total   int
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidMonth    = errors.New("invalid month")
	ErrInvalidYear     = errors.New("invalid year")
	ErrEmptyUnitNumber = errors.New("empty unit number")
	ErrEmptyOwners     = errors.New("empty owners")
	ErrEmptyDesc       = errors.New("empty description")
	ErrEmptyCategory   = errors.New("empty category")
	ErrEmptyTitle      = errors.New("empty title")
	ErrInvalidChoice   = errors.New("invalid vote choice")
	ErrInvalidReading  = errors.New("invalid meter reading")
)

func (u Unit) Validate() error {
	if strings.TrimSpace(u.UnitNumber) == "" {
		return ErrEmptyUnitNumber
	}
	if strings.TrimSpace(u.Owners) == "" {
		return ErrEmptyOwners
	}
	if u.Dues.Centavos < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if t.Date.IsZero() {
		return errors.New("date cannot be zero")
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDesc
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if t.Amount.Centavos == 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

func (r WaterReading) Validate() error {
	if r.Date.IsZero() {
		return errors.New("date cannot be zero")
	}
	if r.Reading < 0 {
		return ErrInvalidReading
	}
	if strings.TrimSpace(r.UnitID) == "" {
		return errors.New("empty unit id")
	}
	return nil
}

func (b BudgetLine) Validate() error {
	if b.Year < 2000 || b.Year > 2100 {
		return ErrInvalidYear
	}
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if b.Amount.Centavos < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (p Poll) Validate() error {
	if len(strings.TrimSpace(p.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(p.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	return nil
}

func (v Vote) Validate() error {
	switch v.Choice {
	case VoteYes, VoteNo, VoteAbstain:
	default:
		return ErrInvalidChoice
	}
	if strings.TrimSpace(v.UnitID) == "" {
		return errors.New("empty unit id")
	}
	return nil
}

// TotalPaid sums every monthly payment in the record.
func (r DuesRecord) TotalPaid() Money {
	var total int64
	for _, p := range r.Payments {
		total += p.Amount.Centavos
	}
	return Money{Centavos: total}
}

// TotalDue is the full year's scheduled dues.
func (r DuesRecord) TotalDue() Money {
	return Money{Centavos: r.Scheduled.Centavos * 12}
}
