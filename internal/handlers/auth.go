package handlers

import (
	"net/http"

	"qxtrader/internal/auth"
	"qxtrader/internal/middleware"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	account, err := h.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondServiceError(w, err, "login failed")
		return
	}
	identity, _ := h.sessions.Identity()
	token, err := auth.GenerateToken(h.cfg.JWTSecret, account.ID, h.cfg.TokenTTL, identity.Roles...)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"token":   token,
		"account": account,
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context()); err != nil {
		h.respondServiceError(w, err, "logout failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	account, err := h.sessions.Account(r.Context())
	if err != nil {
		h.respondServiceError(w, err, "unable to load account")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"id":    account.ID,
		"name":  account.Name,
		"email": account.Email,
		"roles": claims.Roles,
	})
}
