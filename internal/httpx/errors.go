package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nk-nexus/order-stock-api/internal/orders"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func errBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

// writeError maps the engine's failure taxonomy onto HTTP statuses.
// State-guard misses already arrive folded into ErrNotFound.
func writeError(w http.ResponseWriter, err error) {
	var ise *orders.InsufficientStockError
	switch {
	case errors.As(err, &ise):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":   "insufficient stock",
			"details": ise.Details,
		})
	case errors.Is(err, orders.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errBody(err.Error()))
	case errors.Is(err, orders.ErrUnauthorized):
		writeJSON(w, http.StatusForbidden, errBody("unauthorized"))
	case errors.Is(err, orders.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errBody("not found"))
	case errors.Is(err, orders.ErrUnprocessable):
		writeJSON(w, http.StatusUnprocessableEntity, errBody(err.Error()))
	default:
		writeJSON(w, http.StatusInternalServerError, errBody("internal error"))
	}
}
