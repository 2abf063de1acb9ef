package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"cuotas/internal/core"
)

type transactionJSON struct {
	ID          string    `json:"id"`
	Date        string    `json:"date"`
	Description string    `json:"description"`
	Amount      moneyJSON `json:"amount"`
	Category    string    `json:"category"`
	Currency    string    `json:"currency"`
	CreatedBy   string    `json:"created_by,omitempty"`
	Reference   string    `json:"reference,omitempty"`
}

func toTransactionJSON(t core.Transaction) transactionJSON {
	return transactionJSON{
		ID:          t.ID,
		Date:        t.Date.Format("2006-01-02"),
		Description: t.Description,
		Amount:      toMoneyJSON(t.Amount),
		Category:    t.Category,
		Currency:    t.Currency,
		CreatedBy:   t.CreatedBy,
		Reference:   t.Reference,
	}
}

// handleListTransactions lists the ledger for ?year=YYYY&month=M. Month 0 or
// absent means the whole year; year defaults to the current one.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("id")
	now := time.Now()
	year := now.Year()
	month := 0
	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			year = y
		}
	}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 0 || m > 12 {
			ErrorResponse(w, http.StatusBadRequest, "invalid month")
			return
		}
		month = m
	}

	txns, err := s.repo.ListTransactions(r.Context(), clientID, year, month)
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]transactionJSON, 0, len(txns))
	var total int64
	for _, t := range txns {
		out = append(out, toTransactionJSON(t))
		total += t.Amount.Centavos
	}
	JSONResponse(w, http.StatusOK, struct {
		Year         int               `json:"year"`
		Month        int               `json:"month,omitempty"`
		Total        moneyJSON         `json:"total"`
		Transactions []transactionJSON `json:"transactions"`
	}{Year: year, Month: month, Total: toMoneyJSON(core.Money{Centavos: total}), Transactions: out})
}

// handleCreateTransaction books a ledger entry. Expenses carry a negative
// amount ("-1234.56"), income a positive one.
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("id")
	if _, err := s.repo.GetClient(r.Context(), clientID); err != nil {
		respondError(w, err)
		return
	}

	var req struct {
		Date        string `json:"date"`
		Description string `json:"description"`
		Amount      string `json:"amount"`
		Category    string `json:"category"`
		Currency    string `json:"currency"`
		CreatedBy   string `json:"created_by"`
		Reference   string `json:"reference"`
	}
	if err := ParseJSONBody(r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	centavos, err := core.ParseSignedDecimalToCentavos(req.Amount)
	if err != nil {
		respondError(w, err)
		return
	}
	date := time.Now()
	if req.Date != "" {
		date, err = time.Parse("2006-01-02", req.Date)
		if err != nil {
			ErrorResponse(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
			return
		}
	}
	currency := strings.TrimSpace(req.Currency)
	if currency == "" {
		currency = "MXN"
	}

	txn := core.Transaction{
		ID:          uuid.NewString(),
		ClientID:    clientID,
		Date:        date,
		Description: strings.TrimSpace(req.Description),
		Amount:      core.Money{Centavos: centavos},
		Category:    strings.TrimSpace(req.Category),
		Currency:    currency,
		CreatedBy:   strings.TrimSpace(req.CreatedBy),
		Reference:   strings.TrimSpace(req.Reference),
	}
	if err := txn.Validate(); err != nil {
		respondError(w, err)
		return
	}

	if err := s.repo.CreateTransaction(r.Context(), txn); err != nil {
		respondError(w, err)
		return
	}
	s.invalidateReports(clientID)

	if s.amqpClient != nil {
		if err := s.amqpClient.PublishLedgerSync(r.Context(), txn.ID); err != nil {
			slog.ErrorContext(r.Context(), "Failed to publish ledger sync message",
				"transaction_id", txn.ID, "error", err)
		}
	}

	JSONResponse(w, http.StatusCreated, toTransactionJSON(txn))
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.repo.ListCategories(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	if cats == nil {
		cats = []string{}
	}
	JSONResponse(w, http.StatusOK, cats)
}
