package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"cuotas/internal/core"
	"cuotas/internal/services"
	"cuotas/internal/storage"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// JSONResponse writes a JSON response
func JSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// ErrorResponse writes a JSON error response
func ErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	JSONResponse(w, statusCode, errorBody{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}

// ParseJSONBody parses the request body into the given struct
func ParseJSONBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// respondError maps domain errors onto HTTP statuses.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		ErrorResponse(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrPollNotOpen),
		errors.Is(err, services.ErrUnitHasVoted),
		errors.Is(err, services.ErrUnitWrongClient):
		ErrorResponse(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrInsufficientReadings),
		errors.Is(err, services.ErrNoRate),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidMonth),
		errors.Is(err, core.ErrInvalidYear),
		errors.Is(err, core.ErrInvalidChoice),
		errors.Is(err, core.ErrInvalidReading),
		errors.Is(err, core.ErrEmptyUnitNumber),
		errors.Is(err, core.ErrEmptyOwners),
		errors.Is(err, core.ErrEmptyDesc),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrEmptyTitle):
		ErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
	default:
		ErrorResponse(w, http.StatusInternalServerError, err.Error())
	}
}

// moneyJSON is the wire form of a Money amount.
type moneyJSON struct {
	Centavos  int64  `json:"centavos"`
	Formatted string `json:"formatted"`
}

func toMoneyJSON(m core.Money) moneyJSON {
	return moneyJSON{Centavos: m.Centavos, Formatted: m.String()}
}
