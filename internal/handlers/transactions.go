package handlers

import (
	"net/http"

	"qxtrader/internal/services"
)

type depositRequest struct {
	Amount        amountField `json:"amount"`
	PaymentMethod string      `json:"paymentMethod"`
}

func (h *Handler) CreateDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	amount, err := req.Amount.parse()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	deposit, err := h.sessions.Deposit(r.Context(), services.DepositRequest{Amount: amount, Method: req.PaymentMethod})
	if err != nil {
		h.respondServiceError(w, err, "deposit failed")
		return
	}
	respondJSON(w, http.StatusCreated, deposit)
}

type withdrawalRequest struct {
	ToAddress string      `json:"toAddress"`
	Amount    amountField `json:"amount"`
	Currency  string      `json:"currency"`
}

func (h *Handler) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req withdrawalRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	amount, err := req.Amount.parse()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	withdrawal, err := h.sessions.RequestWithdrawal(r.Context(), services.WithdrawalRequest{
		ToAddress: req.ToAddress,
		Amount:    amount,
		Currency:  req.Currency,
	})
	if err != nil {
		h.respondServiceError(w, err, "withdrawal failed")
		return
	}
	respondJSON(w, http.StatusCreated, withdrawal)
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	kind, err := services.ParseHistoryKind(r.URL.Query().Get("type"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid type filter")
		return
	}
	page, err := h.sessions.History(r.Context(), services.HistoryQuery{
		Kind:     kind,
		Search:   r.URL.Query().Get("search"),
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "page_size", services.DefaultHistoryPageSize),
	})
	if err != nil {
		h.respondServiceError(w, err, "unable to list transactions")
		return
	}
	respondJSON(w, http.StatusOK, page)
}
