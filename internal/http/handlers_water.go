package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cuotas/internal/core"
)

type waterReadingJSON struct {
	ID      int64  `json:"id"`
	UnitID  string `json:"unit_id"`
	Date    string `json:"date"`
	Reading int64  `json:"reading"`
}

type waterBillJSON struct {
	ID          string    `json:"id"`
	UnitID      string    `json:"unit_id"`
	Year        int       `json:"year"`
	Month       int       `json:"month"`
	Consumption int64     `json:"consumption_m3"`
	Amount      moneyJSON `json:"amount"`
	Service     moneyJSON `json:"service"`
	Penalty     moneyJSON `json:"penalty"`
	Total       moneyJSON `json:"total"`
	DueDate     string    `json:"due_date"`
	Paid        bool      `json:"paid"`
}

func toWaterBillJSON(b core.WaterBill) waterBillJSON {
	total := b.Amount.Centavos + b.Service.Centavos + b.Penalty.Centavos
	return waterBillJSON{
		ID:          b.ID,
		UnitID:      b.UnitID,
		Year:        b.Year,
		Month:       b.Month,
		Consumption: b.Consumption,
		Amount:      toMoneyJSON(b.Amount),
		Service:     toMoneyJSON(b.Service),
		Penalty:     toMoneyJSON(b.Penalty),
		Total:       toMoneyJSON(core.Money{Centavos: total}),
		DueDate:     b.DueDate.Format("2006-01-02"),
		Paid:        b.Paid,
	}
}

func (s *Server) handleListReadings(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("id")
	unitID := strings.TrimSpace(r.URL.Query().Get("unit_id"))
	if unitID == "" {
		ErrorResponse(w, http.StatusBadRequest, "unit_id query parameter is required")
		return
	}
	readings, err := s.repo.ListWaterReadings(r.Context(), clientID, unitID)
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]waterReadingJSON, 0, len(readings))
	for _, rd := range readings {
		out = append(out, waterReadingJSON{
			ID:      rd.ID,
			UnitID:  rd.UnitID,
			Date:    rd.Date.Format("2006-01-02"),
			Reading: rd.Reading,
		})
	}
	JSONResponse(w, http.StatusOK, out)
}

func (s *Server) handleCreateReading(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("id")

	var req struct {
		UnitID  string `json:"unit_id"`
		Date    string `json:"date"`
		Reading int64  `json:"reading"`
	}
	if err := ParseJSONBody(r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	date := time.Now()
	if req.Date != "" {
		var err error
		date, err = time.Parse("2006-01-02", req.Date)
		if err != nil {
			ErrorResponse(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
			return
		}
	}

	id, err := s.water.RecordReading(r.Context(), core.WaterReading{
		ClientID: clientID,
		UnitID:   strings.TrimSpace(req.UnitID),
		Date:     date,
		Reading:  req.Reading,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	JSONResponse(w, http.StatusCreated, waterReadingJSON{
		ID:      id,
		UnitID:  req.UnitID,
		Date:    date.Format("2006-01-02"),
		Reading: req.Reading,
	})
}

// handleListBills lists bills filtered by ?year and optional ?month.
func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("id")
	year := time.Now().Year()
	month := 0
	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			year = y
		}
	}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			ErrorResponse(w, http.StatusBadRequest, "invalid month")
			return
		}
		month = m
	}

	bills, err := s.repo.ListWaterBills(r.Context(), clientID, year, month)
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]waterBillJSON, 0, len(bills))
	for _, b := range bills {
		out = append(out, toWaterBillJSON(b))
	}
	JSONResponse(w, http.StatusOK, out)
}

func (s *Server) handleGenerateBill(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("id")

	var req struct {
		UnitID string `json:"unit_id"`
		Year   int    `json:"year"`
		Month  int    `json:"month"`
	}
	if err := ParseJSONBody(r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	bill, err := s.water.GenerateBill(r.Context(), clientID, strings.TrimSpace(req.UnitID), req.Year, req.Month)
	if err != nil {
		respondError(w, err)
		return
	}
	JSONResponse(w, http.StatusCreated, toWaterBillJSON(bill))
}

func (s *Server) handlePayBill(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("id")
	unitID := r.PathValue("unitID")
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid year")
		return
	}
	month, err := strconv.Atoi(r.PathValue("month"))
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid month")
		return
	}

	var req struct {
		Date string `json:"date"`
	}
	if err := ParseJSONBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		ErrorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	paidDate := time.Now()
	if req.Date != "" {
		paidDate, err = time.Parse("2006-01-02", req.Date)
		if err != nil {
			ErrorResponse(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
			return
		}
	}

	txn, err := s.water.RecordBillPayment(r.Context(), clientID, unitID, year, month, paidDate)
	if err != nil {
		respondError(w, err)
		return
	}
	s.invalidateReports(clientID)
	JSONResponse(w, http.StatusCreated, toTransactionJSON(txn))
}

// handleApplyPenalties sweeps overdue unpaid bills and adds late penalties.
func (s *Server) handleApplyPenalties(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("id")

	var req struct {
		AsOf string `json:"as_of"`
	}
	if err := ParseJSONBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		ErrorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	asOf := time.Now()
	if req.AsOf != "" {
		var err error
		asOf, err = time.Parse("2006-01-02", req.AsOf)
		if err != nil {
			ErrorResponse(w, http.StatusBadRequest, "invalid as_of, want YYYY-MM-DD")
			return
		}
	}

	updated, err := s.water.ApplyPenalties(r.Context(), clientID, asOf)
	if err != nil {
		respondError(w, err)
		return
	}
	JSONResponse(w, http.StatusOK, struct {
		Updated int `json:"updated"`
	}{Updated: updated})
}
