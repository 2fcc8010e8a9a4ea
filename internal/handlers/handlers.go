package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"qxtrader/internal/money"
	"qxtrader/internal/services"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// serviceErrors maps domain errors to a status and a stable error code.
var serviceErrors = []struct {
	err    error
	status int
	code   string
}{
	{services.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{services.ErrNotAuthenticated, http.StatusUnauthorized, "not_authenticated"},
	{services.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{money.ErrTooManyDecimals, http.StatusBadRequest, "invalid_amount"},
	{services.ErrAmountBelowMinimum, http.StatusBadRequest, "amount_below_minimum"},
	{services.ErrAmountAboveMaximum, http.StatusBadRequest, "amount_above_maximum"},
	{services.ErrInsufficientFunds, http.StatusBadRequest, "insufficient_funds"},
	{services.ErrUnknownSymbol, http.StatusBadRequest, "unknown_symbol"},
	{services.ErrUnsupportedDuration, http.StatusBadRequest, "unsupported_duration"},
	{services.ErrInvalidSide, http.StatusBadRequest, "invalid_side"},
	{services.ErrInvalidAddress, http.StatusBadRequest, "invalid_address"},
	{services.ErrMissingField, http.StatusBadRequest, "missing_field"},
	{services.ErrNoAccount, http.StatusNotFound, "account_not_found"},
	{services.ErrTradeNotFound, http.StatusNotFound, "trade_not_found"},
	{services.ErrTradeSettled, http.StatusConflict, "trade_settled"},
	{services.ErrVerificationNotPending, http.StatusConflict, "verification_not_pending"},
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error, fallback string) {
	for _, known := range serviceErrors {
		if errors.Is(err, known.err) {
			respondError(w, known.status, known.code)
			return
		}
	}
	h.log.Error(fallback, "error", err)
	respondError(w, http.StatusInternalServerError, fallback)
}
