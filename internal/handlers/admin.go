package handlers

import (
	"net/http"

	"qxtrader/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) ReviewVerification(w http.ResponseWriter, r *http.Request) {
	var approve bool
	switch chi.URLParam(r, "decision") {
	case "approve":
		approve = true
	case "reject":
		approve = false
	default:
		respondError(w, http.StatusBadRequest, "decision must be approve or reject")
		return
	}
	verification, err := h.sessions.ReviewVerification(r.Context(), approve)
	if err != nil {
		h.respondServiceError(w, err, "review failed")
		return
	}
	adminID, _ := middleware.UserIDFromContext(r.Context())
	h.log.Info("verification reviewed", "admin_id", adminID, "status", verification.VerificationStatus)
	respondJSON(w, http.StatusOK, verification)
}
