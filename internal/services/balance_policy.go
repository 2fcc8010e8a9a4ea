package services

import (
	"fmt"
	"strings"

	"qxtrader/internal/models"
	"qxtrader/internal/money"
)

// BalancePolicy decides which counter a balance mutation lands on and which
// counter trades are funded from.
type BalancePolicy interface {
	Name() string
	Apply(account *models.Account, amount float64, kind models.BalanceKind) error
	Tradable(account models.Account) float64
}

const (
	PolicyAccumulating = "accumulating"
	PolicyFrozen       = "frozen"
	PolicyPinned       = "pinned"
)

// AccumulatingLiveBalance credits deposits to demo and lets trade results
// accumulate on live, which never goes below zero.
type AccumulatingLiveBalance struct{}

func (AccumulatingLiveBalance) Name() string { return PolicyAccumulating }

func (AccumulatingLiveBalance) Apply(account *models.Account, amount float64, kind models.BalanceKind) error {
	switch kind {
	case models.BalanceDeposit:
		account.DemoBalance = money.Add(account.DemoBalance, amount)
	case models.BalanceTrade:
		account.LiveBalance = floorZero(money.Add(account.LiveBalance, amount))
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBalanceKind, kind)
	}
	return nil
}

func (AccumulatingLiveBalance) Tradable(account models.Account) float64 {
	return account.LiveBalance
}

// FrozenLiveBalance routes every mutation to demo and never touches live.
type FrozenLiveBalance struct{}

func (FrozenLiveBalance) Name() string { return PolicyFrozen }

func (FrozenLiveBalance) Apply(account *models.Account, amount float64, kind models.BalanceKind) error {
	return applyDemo(account, amount, kind)
}

func (FrozenLiveBalance) Tradable(account models.Account) float64 {
	return account.DemoBalance
}

// PinnedLiveBalance behaves like FrozenLiveBalance but forces live back to a
// fixed figure on every mutation, whatever was persisted before.
type PinnedLiveBalance struct {
	Live float64
}

func (PinnedLiveBalance) Name() string { return PolicyPinned }

func (p PinnedLiveBalance) Apply(account *models.Account, amount float64, kind models.BalanceKind) error {
	if err := applyDemo(account, amount, kind); err != nil {
		return err
	}
	account.LiveBalance = money.Round(p.Live)
	return nil
}

func (PinnedLiveBalance) Tradable(account models.Account) float64 {
	return account.DemoBalance
}

func applyDemo(account *models.Account, amount float64, kind models.BalanceKind) error {
	switch kind {
	case models.BalanceDeposit, models.BalanceTrade:
		account.DemoBalance = floorZero(money.Add(account.DemoBalance, amount))
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBalanceKind, kind)
	}
}

func floorZero(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func ParseBalancePolicy(name string, pinnedLive float64) (BalancePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyAccumulating:
		return AccumulatingLiveBalance{}, nil
	case PolicyFrozen:
		return FrozenLiveBalance{}, nil
	case PolicyPinned:
		return PinnedLiveBalance{Live: pinnedLive}, nil
	default:
		return nil, fmt.Errorf("unknown balance policy %q", name)
	}
}

// LogoutPolicy decides what happens to the persisted account when a session ends.
type LogoutPolicy string

const (
	LogoutRetain LogoutPolicy = "retain"
	LogoutErase  LogoutPolicy = "erase"
)

func ParseLogoutPolicy(name string) (LogoutPolicy, error) {
	switch LogoutPolicy(strings.ToLower(strings.TrimSpace(name))) {
	case "", LogoutRetain:
		return LogoutRetain, nil
	case LogoutErase:
		return LogoutErase, nil
	default:
		return "", fmt.Errorf("unknown logout policy %q", name)
	}
}
