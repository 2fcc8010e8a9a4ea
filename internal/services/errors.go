package services

import (
	"errors"

	"qxtrader/internal/auth"
	"qxtrader/internal/money"
	"qxtrader/internal/validator"
)

var (
	ErrInvalidAmount       = money.ErrInvalidAmount
	ErrAmountBelowMinimum  = errors.New("amount below minimum")
	ErrAmountAboveMaximum  = errors.New("amount above maximum")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrUnknownSymbol       = errors.New("unknown symbol")
	ErrUnsupportedDuration = errors.New("unsupported duration")
	ErrInvalidSide         = errors.New("invalid trade side")
	ErrInvalidAddress      = validator.ErrInvalidAddress
	ErrMissingField        = validator.ErrMissingField

	ErrInvalidCredentials = auth.ErrInvalidCredentials
	ErrNotAuthenticated   = errors.New("not authenticated")

	ErrNoAccount              = errors.New("account not found")
	ErrTradeNotFound          = errors.New("trade not found")
	ErrTradeSettled           = errors.New("trade already settled")
	ErrInvalidTradePatch      = errors.New("invalid trade patch")
	ErrUnknownBalanceKind     = errors.New("unknown balance kind")
	ErrVerificationNotPending = errors.New("no verification awaiting review")
)
