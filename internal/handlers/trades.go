package handlers

import (
	"net/http"

	"qxtrader/internal/services"
)

type tradeRequest struct {
	Symbol   string      `json:"symbol"`
	Type     string      `json:"type"`
	Amount   amountField `json:"amount"`
	Duration int         `json:"duration"`
}

func (h *Handler) SubmitTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Symbol == "" || req.Type == "" || req.Duration == 0 {
		respondError(w, http.StatusBadRequest, "missing_field")
		return
	}
	amount, err := req.Amount.parse()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	trade, err := h.trades.Submit(r.Context(), services.TradeRequest{
		Symbol:   req.Symbol,
		Side:     req.Type,
		Amount:   amount,
		Duration: req.Duration,
	})
	if err != nil {
		h.respondServiceError(w, err, "trade failed")
		return
	}
	respondJSON(w, http.StatusCreated, trade)
}

func (h *Handler) ListTrades(w http.ResponseWriter, r *http.Request) {
	filter, err := services.ParseTradeFilter(r.URL.Query().Get("filter"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid filter")
		return
	}
	trades, err := h.trades.ListTrades(r.Context(), filter)
	if err != nil {
		h.respondServiceError(w, err, "unable to list trades")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"trades": trades})
}

func (h *Handler) Instruments(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"symbols":   services.Instruments(),
		"durations": services.Durations(),
		"minAmount": h.cfg.Trading.MinTrade,
		"maxAmount": h.cfg.Trading.MaxTrade,
	})
}
