package handlers

import (
	"net/http"

	"qxtrader/internal/middleware"
	"qxtrader/internal/models"
	"qxtrader/internal/money"
	"qxtrader/internal/services"
	"qxtrader/internal/websocket"
)

type accountResponse struct {
	models.Account
	TradableBalance      string `json:"tradableBalance"`
	BalancePolicy        string `json:"balancePolicy"`
	VerificationRequired bool   `json:"verificationRequired"`
	HighBalance          bool   `json:"highBalance"`
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.sessions.Account(r.Context())
	if err != nil {
		h.respondServiceError(w, err, "unable to load account")
		return
	}
	required, err := h.sessions.VerificationRequired(r.Context())
	if err != nil {
		h.respondServiceError(w, err, "unable to load account")
		return
	}
	high, err := h.sessions.HighBalance(r.Context())
	if err != nil {
		h.respondServiceError(w, err, "unable to load account")
		return
	}
	policy := h.sessions.Policy()
	respondJSON(w, http.StatusOK, accountResponse{
		Account:              account,
		TradableBalance:      money.Format(policy.Tradable(account)),
		BalancePolicy:        policy.Name(),
		VerificationRequired: required,
		HighBalance:          high,
	})
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.sessions.Stats(r.Context())
	if err != nil {
		h.respondServiceError(w, err, "unable to load stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

type verificationRequest struct {
	FullName     string `json:"fullName"`
	Country      string `json:"country"`
	Address      string `json:"address"`
	Reason       string `json:"reason"`
	GovernmentID string `json:"governmentId"`
}

func (h *Handler) SubmitVerification(w http.ResponseWriter, r *http.Request) {
	var req verificationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	verification, err := h.sessions.SubmitVerification(r.Context(), services.VerificationForm{
		FullName:     req.FullName,
		Country:      req.Country,
		Address:      req.Address,
		Reason:       req.Reason,
		GovernmentID: req.GovernmentID,
	})
	if err != nil {
		h.respondServiceError(w, err, "verification failed")
		return
	}
	respondJSON(w, http.StatusAccepted, verification)
}

func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var snapshot []websocket.BalanceUpdate
	if update, err := h.sessions.BalanceSnapshot(r.Context()); err == nil {
		snapshot = append(snapshot, update)
	}
	websocket.ServeWS(w, r, h.hub, userID, snapshot...)
}
