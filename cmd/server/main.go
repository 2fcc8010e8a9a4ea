package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"qxtrader/internal/auth"
	"qxtrader/internal/clock"
	"qxtrader/internal/config"
	"qxtrader/internal/db"
	"qxtrader/internal/handlers"
	"qxtrader/internal/logging"
	"qxtrader/internal/models"
	"qxtrader/internal/scheduler"
	"qxtrader/internal/services"
	"qxtrader/internal/store"
	"qxtrader/internal/websocket"

	"github.com/joho/godotenv"
)

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()
	log := logging.New(cfg.Debug)
	defer func() { _ = log.Sync() }()
	if envErr != nil {
		log.Debug("no .env file loaded", "error", envErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv, closeStore := openStore(cfg, log)
	defer closeStore()

	policy, err := services.ParseBalancePolicy(cfg.Account.BalancePolicy, cfg.Account.PinnedLiveBalance)
	if err != nil {
		log.Error("invalid balance policy", "error", err)
		os.Exit(1)
	}
	logoutPolicy, err := services.ParseLogoutPolicy(cfg.Account.LogoutPolicy)
	if err != nil {
		log.Error("invalid logout policy", "error", err)
		os.Exit(1)
	}
	accountType, err := models.ParseAccountType(cfg.Account.AccountType)
	if err != nil {
		log.Error("invalid account type", "error", err)
		os.Exit(1)
	}

	verifier := newVerifier(cfg.Login, log)
	hub := websocket.NewHub()
	accounts := services.NewAccountService(kv, verifier, hub, clock.System{}, log, services.AccountOptions{
		Seed: models.Account{
			ID:          cfg.Account.ID,
			Name:        cfg.Account.Name,
			Email:       cfg.Login.Email,
			DemoBalance: cfg.Account.DemoBalance,
			LiveBalance: cfg.Account.LiveBalance,
			AccountType: accountType,
		},
		Policy:               policy,
		Logout:               logoutPolicy,
		MinDeposit:           cfg.Trading.MinDeposit,
		MaxDeposit:           cfg.Trading.MaxDeposit,
		HighBalanceThreshold: cfg.Account.HighBalanceThreshold,
	})
	if err := accounts.Open(ctx); err != nil {
		log.Error("failed to open account session", "error", err)
		os.Exit(1)
	}
	defer accounts.Close()

	engine := services.NewTradeEngine(accounts, clock.System{}, nil, log, services.TradeLimits{
		MinAmount:    cfg.Trading.MinTrade,
		MaxAmount:    cfg.Trading.MaxTrade,
		HistoryLimit: cfg.Trading.HistoryLimit,
	})

	sched := scheduler.New(cfg.Trading.TickInterval, log)
	sched.Every(1, "aging", func(ctx context.Context) error {
		_, err := engine.Tick(ctx)
		return err
	})
	sched.Every(3, "backstop", func(ctx context.Context) error {
		_, err := engine.Sweep(ctx)
		return err
	})
	sched.Every(1, "publish", accounts.Publish)
	if err := sched.Start(ctx); err != nil {
		log.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	handler := handlers.New(cfg, log, accounts, engine, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("qxtrader API listening", "addr", server.Addr, "balance_policy", policy.Name(), "logout_policy", string(logoutPolicy))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
}

// openStore picks Postgres when DATABASE_URL is set and the in-memory store
// otherwise.
func openStore(cfg config.Config, log logging.Logger) (store.Store, func()) {
	if cfg.DatabaseURL == "" {
		log.Info("using in-memory store")
		return store.NewMemoryStore(), func() {}
	}
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	log.Info("using postgres store")
	return store.NewSQLStore(database, db.NewTxRunner(database)), func() { _ = database.Close() }
}

func newVerifier(cfg config.LoginConfig, log logging.Logger) *auth.StaticVerifier {
	hash := cfg.PasswordHash
	if hash == "" && cfg.Password != "" {
		hashed, err := auth.HashPassword(cfg.Password)
		if err != nil {
			log.Error("failed to hash login password", "error", err)
			os.Exit(1)
		}
		hash = hashed
	}
	var roles []string
	if cfg.Admin {
		roles = append(roles, auth.RoleAdmin)
	}
	verifier := auth.NewStaticVerifier(cfg.Email, hash, roles...)
	if !verifier.Configured() {
		log.Warn("login credentials not configured; every login will be rejected")
	}
	return verifier
}
