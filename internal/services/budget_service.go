package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cuotas/internal/core"
	"cuotas/internal/storage"
)

// BudgetService compares planned category amounts with recorded spending.
type BudgetService struct {
	storage *storage.SQLiteRepository
}

func NewBudgetService(storage *storage.SQLiteRepository) *BudgetService {
	return &BudgetService{storage: storage}
}

// BudgetReportLine is one category's planned versus actual position.
type BudgetReportLine struct {
	Category    string
	Budget      core.Money
	Actual      core.Money
	Variance    core.Money // budget minus actual; negative means overspent
	PercentUsed int
}

// BudgetReport summarises a fiscal year's budget.
type BudgetReport struct {
	ClientID    string
	Year        int
	Lines       []BudgetReportLine
	TotalBudget core.Money
	TotalActual core.Money
}

// Report builds the budget-versus-actual view for one fiscal year. Expenses
// are aggregated over the client's fiscal window, and categories with
// spending but no budget line still appear, with a zero budget.
func (s *BudgetService) Report(ctx context.Context, clientID string, year int) (BudgetReport, error) {
	client, err := s.storage.GetClient(ctx, clientID)
	if err != nil {
		return BudgetReport{}, fmt.Errorf("load client: %w", err)
	}

	lines, err := s.storage.ListBudgetLines(ctx, clientID, year)
	if err != nil {
		return BudgetReport{}, fmt.Errorf("load budget: %w", err)
	}

	start := time.Date(year, time.Month(client.FiscalStartMonth), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	actuals, err := s.storage.CategoryActuals(ctx, clientID, start, end)
	if err != nil {
		return BudgetReport{}, fmt.Errorf("load actuals: %w", err)
	}

	report := BudgetReport{ClientID: clientID, Year: year}
	seen := make(map[string]bool, len(lines))
	for _, l := range lines {
		seen[l.Category] = true
		actual := actuals[l.Category]
		report.Lines = append(report.Lines, buildReportLine(l.Category, l.Amount.Centavos, actual))
		report.TotalBudget.Centavos += l.Amount.Centavos
		report.TotalActual.Centavos += actual
	}

	// Unbudgeted spending still shows up.
	var extra []string
	for cat := range actuals {
		if !seen[cat] {
			extra = append(extra, cat)
		}
	}
	sort.Strings(extra)
	for _, cat := range extra {
		actual := actuals[cat]
		report.Lines = append(report.Lines, buildReportLine(cat, 0, actual))
		report.TotalActual.Centavos += actual
	}

	return report, nil
}

func buildReportLine(category string, budget, actual int64) BudgetReportLine {
	line := BudgetReportLine{
		Category: category,
		Budget:   core.Money{Centavos: budget},
		Actual:   core.Money{Centavos: actual},
		Variance: core.Money{Centavos: budget - actual},
	}
	if budget > 0 {
		line.PercentUsed = int((float64(actual)/float64(budget))*100 + 0.5)
	}
	return line
}

// SetLine validates and upserts one budget line.
func (s *BudgetService) SetLine(ctx context.Context, line core.BudgetLine) error {
	if err := line.Validate(); err != nil {
		return err
	}
	return s.storage.UpsertBudgetLine(ctx, line)
}
