package http

import (
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"cuotas/internal/core"
	"cuotas/internal/services"
	"cuotas/internal/storage"
)

type monthView struct {
	FiscalMonth   int       `json:"fiscal_month"`
	CalendarMonth int       `json:"calendar_month"`
	Status        string    `json:"status"`
	Amount        moneyJSON `json:"amount"`
	Date          string    `json:"date,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	Reference     string    `json:"reference,omitempty"`
	Late          bool      `json:"late"`
}

type quarterView struct {
	Quarter     int       `json:"quarter"`
	Status      string    `json:"status"`
	TotalPaid   moneyJSON `json:"total_paid"`
	TotalDue    moneyJSON `json:"total_due"`
	PercentPaid int       `json:"percent_paid"`
	Late        bool      `json:"late"`
}

type unitDuesView struct {
	UnitID        string        `json:"unit_id"`
	UnitNumber    string        `json:"unit_number"`
	Owners        string        `json:"owners"`
	OwnerLastName string        `json:"owner_last_name"`
	Scheduled     moneyJSON     `json:"scheduled"`
	CreditBalance moneyJSON     `json:"credit_balance"`
	Months        []monthView   `json:"months"`
	Quarters      []quarterView `json:"quarters"`
	TotalPaid     moneyJSON     `json:"total_paid"`
	TotalDue      moneyJSON     `json:"total_due"`
}

type duesYearView struct {
	ClientID         string         `json:"client_id"`
	Year             int            `json:"year"`
	FiscalStartMonth int            `json:"fiscal_start_month"`
	Units            []unitDuesView `json:"units"`
}

// handleDuesYear renders the dues grid the main view is built from: one row
// per unit, twelve month slots with status and lateness, quarter rollups.
func (s *Server) handleDuesYear(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("id")
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid year")
		return
	}

	key := s.yearViewKey(clientID, year)
	if view, found := s.yearViewCache.Get(key); found {
		slog.DebugContext(r.Context(), "Dues year view cache hit", "client_id", clientID, "year", year)
		JSONResponse(w, http.StatusOK, view)
		return
	}

	client, err := s.repo.GetClient(r.Context(), clientID)
	if err != nil {
		respondError(w, err)
		return
	}
	units, err := s.repo.ListUnits(r.Context(), clientID)
	if err != nil {
		respondError(w, err)
		return
	}
	records, err := s.repo.ListDuesRecords(r.Context(), clientID, year)
	if err != nil {
		respondError(w, err)
		return
	}
	byUnit := make(map[string]core.DuesRecord, len(records))
	for _, rec := range records {
		byUnit[rec.UnitID] = rec
	}

	now := time.Now()
	view := duesYearView{
		ClientID:         clientID,
		Year:             year,
		FiscalStartMonth: client.FiscalStartMonth,
		Units:            make([]unitDuesView, 0, len(units)),
	}
	for _, u := range units {
		record, ok := byUnit[u.ID]
		if !ok {
			record = core.DuesRecord{UnitID: u.ID, Year: year, Scheduled: u.Dues}
		}
		record.Scheduled = u.Dues

		uv := unitDuesView{
			UnitID:        u.ID,
			UnitNumber:    u.UnitNumber,
			Owners:        u.Owners,
			OwnerLastName: core.OwnerLastName(u.Owners),
			Scheduled:     toMoneyJSON(u.Dues),
			CreditBalance: toMoneyJSON(u.CreditBalance),
			TotalPaid:     toMoneyJSON(record.TotalPaid()),
			TotalDue:      toMoneyJSON(record.TotalDue()),
		}
		for fm := 1; fm <= 12; fm++ {
			entry := record.Payments[fm-1]
			status := record.MonthStatus(fm)
			mv := monthView{
				FiscalMonth:   fm,
				CalendarMonth: core.FiscalToCalendarMonth(fm, client.FiscalStartMonth),
				Status:        string(status),
				Amount:        toMoneyJSON(entry.Amount),
				Notes:         entry.Notes,
				Reference:     entry.Reference,
				Late:          core.IsLate(status, year, fm, now, client.FiscalStartMonth),
			}
			if !entry.Date.IsZero() {
				mv.Date = entry.Date.Format("2006-01-02")
			}
			uv.Months = append(uv.Months, mv)
		}
		for q := 1; q <= 4; q++ {
			qs := record.FiscalQuarterStatus(q)
			uv.Quarters = append(uv.Quarters, quarterView{
				Quarter:     q,
				Status:      string(qs.Status),
				TotalPaid:   toMoneyJSON(qs.TotalPaid),
				TotalDue:    toMoneyJSON(qs.TotalDue),
				PercentPaid: qs.PercentPaid,
				Late:        core.IsQuarterLate(qs, year, now, client.FiscalStartMonth),
			})
		}
		view.Units = append(view.Units, uv)
	}
	sort.Slice(view.Units, func(i, j int) bool {
		return view.Units[i].UnitNumber < view.Units[j].UnitNumber
	})

	s.yearViewCache.Set(key, view)
	JSONResponse(w, http.StatusOK, view)
}

type paymentRequest struct {
	Amount    string `json:"amount"`
	Date      string `json:"date"`
	Notes     string `json:"notes"`
	Reference string `json:"reference"`
	UseCredit bool   `json:"use_credit"`
	CreatedBy string `json:"created_by"`
}

type allocationJSON struct {
	FiscalMonth int       `json:"fiscal_month"`
	Amount      moneyJSON `json:"amount"`
}

func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("id")
	unitID := r.PathValue("unitID")
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid year")
		return
	}

	var req paymentRequest
	if err := ParseJSONBody(r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	centavos, err := core.ParseDecimalToCentavos(req.Amount)
	if err != nil {
		respondError(w, err)
		return
	}

	var paidDate time.Time
	if req.Date != "" {
		paidDate, err = time.Parse("2006-01-02", req.Date)
		if err != nil {
			ErrorResponse(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
			return
		}
	}

	result, err := s.dues.RecordPayment(r.Context(), services.PaymentRequest{
		ClientID:  clientID,
		UnitID:    unitID,
		Year:      year,
		Amount:    core.Money{Centavos: centavos},
		Date:      paidDate,
		Notes:     req.Notes,
		Reference: req.Reference,
		UseCredit: req.UseCredit,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	s.invalidateYearViews(clientID)

	allocations := make([]allocationJSON, 0, len(result.Allocations))
	for _, a := range result.Allocations {
		allocations = append(allocations, allocationJSON{
			FiscalMonth: a.FiscalMonth,
			Amount:      toMoneyJSON(a.Amount),
		})
	}
	JSONResponse(w, http.StatusCreated, struct {
		Reference     string           `json:"reference"`
		TransactionID string           `json:"transaction_id"`
		Allocations   []allocationJSON `json:"allocations"`
		CreditUsed    moneyJSON        `json:"credit_used"`
		CreditAdded   moneyJSON        `json:"credit_added"`
		CreditBalance moneyJSON        `json:"credit_balance"`
	}{
		Reference:     result.Reference,
		TransactionID: result.TransactionID,
		Allocations:   allocations,
		CreditUsed:    toMoneyJSON(result.CreditUsed),
		CreditAdded:   toMoneyJSON(result.CreditAdded),
		CreditBalance: toMoneyJSON(result.CreditBalance),
	})
}

func (s *Server) handleSetCredit(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("id")
	unitID := r.PathValue("unitID")

	var req struct {
		Balance     string `json:"balance"`
		Description string `json:"description"`
	}
	if err := ParseJSONBody(r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	centavos, err := parseNonNegativeCentavos(req.Balance)
	if err != nil {
		respondError(w, err)
		return
	}

	if err := s.dues.SetCredit(r.Context(), clientID, unitID, core.Money{Centavos: centavos}, req.Description); err != nil {
		respondError(w, err)
		return
	}
	s.invalidateYearViews(clientID)
	JSONResponse(w, http.StatusOK, struct {
		UnitID  string    `json:"unit_id"`
		Balance moneyJSON `json:"balance"`
	}{UnitID: unitID, Balance: toMoneyJSON(core.Money{Centavos: centavos})})
}

// parseNonNegativeCentavos is ParseDecimalToCentavos plus an allowance for
// zero, which credit resets need.
func parseNonNegativeCentavos(s string) (int64, error) {
	trimmed := strings.TrimSpace(s)
	if isZeroDecimal(trimmed) {
		return 0, nil
	}
	return core.ParseDecimalToCentavos(trimmed)
}

// isZeroDecimal reports whether s is a well-formed decimal spelling of zero
// such as "0", "0.00" or "0,0": only zero digits, at most one separator.
func isZeroDecimal(s string) bool {
	digits, seps := 0, 0
	for _, r := range s {
		switch {
		case r == '0':
			digits++
		case r == '.' || r == ',':
			seps++
		default:
			return false
		}
	}
	return digits > 0 && seps <= 1
}

func (s *Server) handleCreditHistory(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("id")
	unitID := r.PathValue("unitID")

	unit, err := s.repo.GetUnit(r.Context(), unitID)
	if err != nil {
		respondError(w, err)
		return
	}
	if unit.ClientID != clientID {
		respondError(w, storage.ErrNotFound)
		return
	}

	history, err := s.repo.ListCreditHistory(r.Context(), unitID)
	if err != nil {
		respondError(w, err)
		return
	}

	type entryJSON struct {
		ID           string    `json:"id"`
		Amount       moneyJSON `json:"amount"`
		BalanceAfter moneyJSON `json:"balance_after"`
		Description  string    `json:"description"`
		Timestamp    string    `json:"timestamp"`
	}
	out := make([]entryJSON, 0, len(history))
	for _, e := range history {
		out = append(out, entryJSON{
			ID:           e.ID,
			Amount:       toMoneyJSON(e.Amount),
			BalanceAfter: toMoneyJSON(e.BalanceAfter),
			Description:  e.Description,
			Timestamp:    e.Timestamp.Format(time.RFC3339),
		})
	}
	JSONResponse(w, http.StatusOK, out)
}
