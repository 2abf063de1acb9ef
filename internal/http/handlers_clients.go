package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"cuotas/internal/core"
)

type clientJSON struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	FiscalStartMonth int       `json:"fiscal_start_month"`
	Currency         string    `json:"currency"`
	WaterRate        moneyJSON `json:"water_rate"`
	WaterService     moneyJSON `json:"water_service"`
	PenaltyRateBP    int64     `json:"penalty_rate_bp"`
}

func toClientJSON(c core.Client) clientJSON {
	return clientJSON{
		ID:               c.ID,
		Name:             c.Name,
		FiscalStartMonth: c.FiscalStartMonth,
		Currency:         c.Currency,
		WaterRate:        toMoneyJSON(c.WaterRate),
		WaterService:     toMoneyJSON(c.WaterService),
		PenaltyRateBP:    c.PenaltyRateBP,
	}
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := s.repo.ListClients(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]clientJSON, 0, len(clients))
	for _, c := range clients {
		out = append(out, toClientJSON(c))
	}
	JSONResponse(w, http.StatusOK, out)
}

type clientRequest struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	FiscalStartMonth int    `json:"fiscal_start_month"`
	Currency         string `json:"currency"`
	WaterRate        string `json:"water_rate"`
	WaterService     string `json:"water_service"`
	PenaltyRateBP    int64  `json:"penalty_rate_bp"`
}

func (req clientRequest) toClient() (core.Client, error) {
	c := core.Client{
		ID:               strings.TrimSpace(req.ID),
		Name:             strings.TrimSpace(req.Name),
		FiscalStartMonth: req.FiscalStartMonth,
		Currency:         strings.TrimSpace(req.Currency),
		PenaltyRateBP:    req.PenaltyRateBP,
	}
	if c.FiscalStartMonth < 1 || c.FiscalStartMonth > 12 {
		return core.Client{}, core.ErrInvalidMonth
	}
	if c.Currency == "" {
		c.Currency = "MXN"
	}
	if req.WaterRate != "" {
		centavos, err := core.ParseDecimalToCentavos(req.WaterRate)
		if err != nil {
			return core.Client{}, err
		}
		c.WaterRate = core.Money{Centavos: centavos}
	}
	if req.WaterService != "" {
		centavos, err := core.ParseDecimalToCentavos(req.WaterService)
		if err != nil {
			return core.Client{}, err
		}
		c.WaterService = core.Money{Centavos: centavos}
	}
	return c, nil
}

func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var req clientRequest
	if err := ParseJSONBody(r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	client, err := req.toClient()
	if err != nil {
		respondError(w, err)
		return
	}
	if client.Name == "" {
		ErrorResponse(w, http.StatusUnprocessableEntity, "name is required")
		return
	}
	if client.ID == "" {
		client.ID = uuid.NewString()
	}
	if err := s.repo.CreateClient(r.Context(), client); err != nil {
		respondError(w, err)
		return
	}
	slog.InfoContext(r.Context(), "Client created", "id", client.ID, "name", client.Name)
	JSONResponse(w, http.StatusCreated, toClientJSON(client))
}

func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	client, err := s.repo.GetClient(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	JSONResponse(w, http.StatusOK, toClientJSON(client))
}

func (s *Server) handleGetClientConfig(w http.ResponseWriter, r *http.Request) {
	s.handleGetClient(w, r)
}

func (s *Server) handleUpdateClientConfig(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("id")
	current, err := s.repo.GetClient(r.Context(), clientID)
	if err != nil {
		respondError(w, err)
		return
	}

	var req clientRequest
	if err := ParseJSONBody(r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.ID = clientID
	if req.Name == "" {
		req.Name = current.Name
	}
	if req.FiscalStartMonth == 0 {
		req.FiscalStartMonth = current.FiscalStartMonth
	}
	updated, err := req.toClient()
	if err != nil {
		respondError(w, err)
		return
	}
	if req.WaterRate == "" {
		updated.WaterRate = current.WaterRate
	}
	if req.WaterService == "" {
		updated.WaterService = current.WaterService
	}
	if req.PenaltyRateBP == 0 {
		updated.PenaltyRateBP = current.PenaltyRateBP
	}

	if err := s.repo.UpdateClientConfig(r.Context(), updated); err != nil {
		respondError(w, err)
		return
	}
	s.invalidateYearViews(clientID)
	slog.InfoContext(r.Context(), "Client config updated", "id", clientID)
	JSONResponse(w, http.StatusOK, toClientJSON(updated))
}

type unitJSON struct {
	ID            string    `json:"id"`
	UnitNumber    string    `json:"unit_number"`
	Owners        string    `json:"owners"`
	FirstOwner    string    `json:"first_owner"`
	Dues          moneyJSON `json:"dues"`
	CreditBalance moneyJSON `json:"credit_balance"`
}

func toUnitJSON(u core.Unit) unitJSON {
	return unitJSON{
		ID:            u.ID,
		UnitNumber:    u.UnitNumber,
		Owners:        u.Owners,
		FirstOwner:    core.FirstOwner(u.Owners),
		Dues:          toMoneyJSON(u.Dues),
		CreditBalance: toMoneyJSON(u.CreditBalance),
	}
}

func (s *Server) handleListUnits(w http.ResponseWriter, r *http.Request) {
	units, err := s.repo.ListUnits(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]unitJSON, 0, len(units))
	for _, u := range units {
		out = append(out, toUnitJSON(u))
	}
	JSONResponse(w, http.StatusOK, out)
}

func (s *Server) handleCreateUnit(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("id")
	if _, err := s.repo.GetClient(r.Context(), clientID); err != nil {
		respondError(w, err)
		return
	}

	var req struct {
		ID         string `json:"id"`
		UnitNumber string `json:"unit_number"`
		Owners     string `json:"owners"`
		Dues       string `json:"dues"`
	}
	if err := ParseJSONBody(r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	unit := core.Unit{
		ID:         strings.TrimSpace(req.ID),
		ClientID:   clientID,
		UnitNumber: strings.TrimSpace(req.UnitNumber),
		Owners:     strings.TrimSpace(req.Owners),
	}
	if req.Dues != "" {
		centavos, err := core.ParseDecimalToCentavos(req.Dues)
		if err != nil {
			respondError(w, err)
			return
		}
		unit.Dues = core.Money{Centavos: centavos}
	}
	if err := unit.Validate(); err != nil {
		respondError(w, err)
		return
	}
	if unit.ID == "" {
		unit.ID = uuid.NewString()
	}

	if err := s.repo.CreateUnit(r.Context(), unit); err != nil {
		respondError(w, err)
		return
	}
	s.invalidateYearViews(clientID)
	slog.InfoContext(r.Context(), "Unit created", "client_id", clientID, "unit_id", unit.ID, "unit_number", unit.UnitNumber)
	JSONResponse(w, http.StatusCreated, toUnitJSON(unit))
}
