package handlers

import (
	"net/http"
	"strings"

	"qxtrader/internal/auth"
	"qxtrader/internal/config"
	"qxtrader/internal/logging"
	"qxtrader/internal/middleware"
	"qxtrader/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handler struct {
	cfg      config.Config
	log      logging.Logger
	sessions Sessions
	trades   TradeService
	hub      *websocket.Hub
}

func New(cfg config.Config, log logging.Logger, sessions Sessions, trades TradeService, hub *websocket.Hub) *Handler {
	if log == nil {
		log = logging.Nop()
	}
	return &Handler{
		cfg:      cfg,
		log:      log,
		sessions: sessions,
		trades:   trades,
		hub:      hub,
	}
}

func (h *Handler) Routes() http.Handler {
	requireAuth := middleware.Auth(h.cfg.JWTSecret, h.sessions)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.RequestLogger(h.log))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(h.cfg.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.With(requireAuth).Post("/logout", h.Logout)
		r.With(requireAuth).Get("/me", h.Me)
	})
	router.Get("/instruments", h.Instruments)

	router.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/account", h.GetAccount)
		r.Get("/account/stats", h.GetStats)
		r.Post("/deposits", h.CreateDeposit)
		r.Post("/withdrawals/crypto", h.CreateWithdrawal)
		r.Get("/transactions", h.ListTransactions)
		r.Get("/trades", h.ListTrades)
		r.Post("/trades", h.SubmitTrade)
		r.Post("/verification", h.SubmitVerification)
	})
	router.With(requireAuth).Get("/ws/balances", h.WSBalances)

	router.Route("/admin", func(r chi.Router) {
		r.Use(requireAuth)
		r.With(middleware.RequireAdmin(auth.RoleAdmin)).Post("/verification/{decision}", h.ReviewVerification)
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
