package http

import (
	"net/http"
	"strings"
	"time"

	"cuotas/internal/core"
	"cuotas/internal/storage"
)

type rateJSON struct {
	Date  string `json:"date"`
	Base  string `json:"base"`
	Quote string `json:"quote"`
	Rate  string `json:"rate"`
}

func toRateJSON(rate storage.ExchangeRate) rateJSON {
	return rateJSON{
		Date:  rate.Date.Format("2006-01-02"),
		Base:  rate.Base,
		Quote: rate.Quote,
		Rate:  rate.Rate.String(),
	}
}

// handleLatestRate returns the latest USD/MXN rate. With ?usd=123.45 it also
// converts that dollar amount to pesos at the returned rate.
func (s *Server) handleLatestRate(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now()

	usdParam := strings.TrimSpace(r.URL.Query().Get("usd"))
	if usdParam != "" {
		centavos, err := core.ParseDecimalToCentavos(usdParam)
		if err != nil {
			respondError(w, err)
			return
		}
		mxn, rate, err := s.rates.ConvertToMXN(r.Context(), core.Money{Centavos: centavos}, asOf)
		if err != nil {
			respondError(w, err)
			return
		}
		JSONResponse(w, http.StatusOK, struct {
			Rate rateJSON  `json:"rate"`
			USD  moneyJSON `json:"usd"`
			MXN  moneyJSON `json:"mxn"`
		}{
			Rate: toRateJSON(rate),
			USD:  toMoneyJSON(core.Money{Centavos: centavos}),
			MXN:  toMoneyJSON(mxn),
		})
		return
	}

	rate, err := s.repo.LatestExchangeRate(r.Context(), asOf, "USD", "MXN")
	if err != nil {
		respondError(w, err)
		return
	}
	JSONResponse(w, http.StatusOK, toRateJSON(rate))
}

// handleRateByDate returns the rate on or before a specific date.
func (s *Server) handleRateByDate(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse("2006-01-02", r.PathValue("date"))
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}

	rate, err := s.repo.LatestExchangeRate(r.Context(), date, "USD", "MXN")
	if err != nil {
		respondError(w, err)
		return
	}
	JSONResponse(w, http.StatusOK, toRateJSON(rate))
}
