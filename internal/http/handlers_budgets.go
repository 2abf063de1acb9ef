package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"cuotas/internal/core"
	"cuotas/internal/services"
)

type budgetLineJSON struct {
	Category string    `json:"category"`
	Amount   moneyJSON `json:"amount"`
}

type reportLineJSON struct {
	Category    string    `json:"category"`
	Budget      moneyJSON `json:"budget"`
	Actual      moneyJSON `json:"actual"`
	Variance    moneyJSON `json:"variance"`
	PercentUsed int       `json:"percent_used"`
}

func (s *Server) handleListBudget(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("id")
	year := time.Now().Year()
	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			ErrorResponse(w, http.StatusBadRequest, "invalid year")
			return
		}
		year = y
	}

	lines, err := s.repo.ListBudgetLines(r.Context(), clientID, year)
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]budgetLineJSON, 0, len(lines))
	for _, l := range lines {
		out = append(out, budgetLineJSON{Category: l.Category, Amount: toMoneyJSON(l.Amount)})
	}
	JSONResponse(w, http.StatusOK, struct {
		Year  int              `json:"year"`
		Lines []budgetLineJSON `json:"lines"`
	}{Year: year, Lines: out})
}

func (s *Server) handleSetBudgetLine(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("id")
	if _, err := s.repo.GetClient(r.Context(), clientID); err != nil {
		respondError(w, err)
		return
	}

	var req struct {
		Year     int    `json:"year"`
		Category string `json:"category"`
		Amount   string `json:"amount"`
	}
	if err := ParseJSONBody(r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	centavos, err := parseNonNegativeCentavos(req.Amount)
	if err != nil {
		respondError(w, err)
		return
	}

	line := core.BudgetLine{
		ClientID: clientID,
		Year:     req.Year,
		Category: strings.TrimSpace(req.Category),
		Amount:   core.Money{Centavos: centavos},
	}
	if err := s.budgets.SetLine(r.Context(), line); err != nil {
		respondError(w, err)
		return
	}
	s.invalidateReports(clientID)
	JSONResponse(w, http.StatusCreated, budgetLineJSON{Category: line.Category, Amount: toMoneyJSON(line.Amount)})
}

// handleBudgetReport returns budget vs actuals for one fiscal year. Reports
// are cached briefly since actuals only move when the ledger does.
func (s *Server) handleBudgetReport(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("id")
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid year")
		return
	}

	key := s.yearViewKey(clientID, year)
	if cached, ok := s.reportCache.Get(key); ok {
		JSONResponse(w, http.StatusOK, toReportJSON(cached))
		return
	}

	report, err := s.budgets.Report(r.Context(), clientID, year)
	if err != nil {
		respondError(w, err)
		return
	}
	s.reportCache.Set(key, report)
	JSONResponse(w, http.StatusOK, toReportJSON(report))
}

func toReportJSON(report services.BudgetReport) any {
	lines := make([]reportLineJSON, 0, len(report.Lines))
	for _, l := range report.Lines {
		lines = append(lines, reportLineJSON{
			Category:    l.Category,
			Budget:      toMoneyJSON(l.Budget),
			Actual:      toMoneyJSON(l.Actual),
			Variance:    toMoneyJSON(l.Variance),
			PercentUsed: l.PercentUsed,
		})
	}
	return struct {
		ClientID    string           `json:"client_id"`
		Year        int              `json:"year"`
		Lines       []reportLineJSON `json:"lines"`
		TotalBudget moneyJSON        `json:"total_budget"`
		TotalActual moneyJSON        `json:"total_actual"`
	}{
		ClientID:    report.ClientID,
		Year:        report.Year,
		Lines:       lines,
		TotalBudget: toMoneyJSON(report.TotalBudget),
		TotalActual: toMoneyJSON(report.TotalActual),
	}
}
