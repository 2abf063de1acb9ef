package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cuotas/internal/amqp"
	"cuotas/internal/storage"
)

type templateJSON struct {
	Name      string `json:"name"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("clientID")
	templates, err := s.repo.ListEmailTemplates(r.Context(), clientID)
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]templateJSON, 0, len(templates))
	for _, t := range templates {
		out = append(out, templateJSON{
			Name:      t.Name,
			Subject:   t.Subject,
			Body:      t.Body,
			UpdatedAt: t.UpdatedAt.Format(time.RFC3339),
		})
	}
	JSONResponse(w, http.StatusOK, out)
}

func (s *Server) handleUpsertTemplate(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("clientID")
	if _, err := s.repo.GetClient(r.Context(), clientID); err != nil {
		respondError(w, err)
		return
	}

	var req templateJSON
	if err := ParseJSONBody(r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		ErrorResponse(w, http.StatusBadRequest, "template name is required")
		return
	}
	if strings.TrimSpace(req.Body) == "" {
		ErrorResponse(w, http.StatusBadRequest, "template body is required")
		return
	}

	tmpl := storage.EmailTemplate{
		ClientID: clientID,
		Name:     name,
		Subject:  strings.TrimSpace(req.Subject),
		Body:     req.Body,
	}
	if err := s.repo.UpsertEmailTemplate(r.Context(), tmpl); err != nil {
		respondError(w, err)
		return
	}
	JSONResponse(w, http.StatusOK, templateJSON{Name: tmpl.Name, Subject: tmpl.Subject, Body: tmpl.Body})
}

// handleSendReceipt queues a receipt email for an already-booked payment.
func (s *Server) handleSendReceipt(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("id")
	txnID := r.PathValue("txnID")

	txn, err := s.repo.GetTransaction(r.Context(), txnID)
	if err != nil {
		respondError(w, err)
		return
	}
	if txn.ClientID != clientID {
		respondError(w, storage.ErrNotFound)
		return
	}

	var req struct {
		UnitID string `json:"unit_id"`
	}
	if err := ParseJSONBody(r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	unitID := strings.TrimSpace(req.UnitID)
	if unitID == "" {
		ErrorResponse(w, http.StatusBadRequest, "unit_id is required")
		return
	}
	unit, err := s.repo.GetUnit(r.Context(), unitID)
	if err != nil {
		respondError(w, err)
		return
	}
	if unit.ClientID != clientID {
		respondError(w, storage.ErrNotFound)
		return
	}

	if s.amqpClient == nil {
		ErrorResponse(w, http.StatusServiceUnavailable, "receipt delivery is not configured")
		return
	}
	msg := amqp.NewReceiptMessage(clientID, unitID, txn.Reference, txn.Amount.Centavos, txn.Date.Year())
	if err := s.amqpClient.PublishReceipt(r.Context(), msg); err != nil {
		slog.ErrorContext(r.Context(), "Failed to publish receipt message",
			"transaction_id", txnID, "unit_id", unitID, "error", err)
		ErrorResponse(w, http.StatusBadGateway, "failed to queue receipt")
		return
	}
	JSONResponse(w, http.StatusAccepted, struct {
		TransactionID string `json:"transaction_id"`
		UnitID        string `json:"unit_id"`
		Queued        bool   `json:"queued"`
	}{TransactionID: txnID, UnitID: unitID, Queued: true})
}
