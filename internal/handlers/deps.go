package handlers

import (
	"context"

	"qxtrader/internal/auth"
	"qxtrader/internal/models"
	"qxtrader/internal/services"
	"qxtrader/internal/websocket"
)

type Sessions interface {
	Login(ctx context.Context, email, password string) (models.Account, error)
	Logout(ctx context.Context) error
	IsAuthenticated() bool
	Identity() (auth.Identity, bool)
	Account(ctx context.Context) (models.Account, error)
	Policy() services.BalancePolicy
	Stats(ctx context.Context) (services.TradeStats, error)
	Deposit(ctx context.Context, req services.DepositRequest) (models.Deposit, error)
	RequestWithdrawal(ctx context.Context, req services.WithdrawalRequest) (models.Withdrawal, error)
	History(ctx context.Context, query services.HistoryQuery) (services.HistoryPage, error)
	SubmitVerification(ctx context.Context, form services.VerificationForm) (models.Verification, error)
	ReviewVerification(ctx context.Context, approve bool) (models.Verification, error)
	VerificationRequired(ctx context.Context) (bool, error)
	HighBalance(ctx context.Context) (bool, error)
	BalanceSnapshot(ctx context.Context) (websocket.BalanceUpdate, error)
}

type TradeService interface {
	Submit(ctx context.Context, req services.TradeRequest) (models.Trade, error)
	ListTrades(ctx context.Context, filter services.TradeFilter) ([]models.Trade, error)
}
