package services

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"qxtrader/internal/auth"
	"qxtrader/internal/clock"
	"qxtrader/internal/logging"
	"qxtrader/internal/models"
	"qxtrader/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSeedsAccountAndTradeList(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	assert.False(t, f.accounts.IsAuthenticated())
	account, err := f.accounts.Account(ctx)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", account.ID)
	assert.Equal(t, 55000.0, account.LiveBalance)
	assert.Equal(t, 10000.0, account.DemoBalance)

	raw, ok, err := f.store.Get(ctx, store.KeyTrades)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestLoginSuccessAuthenticatesSession(t *testing.T) {
	f := newFixture(t, nil)

	account, err := f.accounts.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	assert.True(t, f.accounts.IsAuthenticated())
	assert.Equal(t, testEmail, account.Email)
	assert.Equal(t, 55000.0, account.LiveBalance)

	identity, ok := f.accounts.Identity()
	assert.True(t, ok)
	assert.Equal(t, testEmail, identity.Email)
}

func TestLoginPreservesPersistedBalance(t *testing.T) {
	st := store.NewMemoryStore()
	persisted := seedAccount()
	persisted.LiveBalance = 61234.56
	raw, err := json.Marshal(persisted)
	require.NoError(t, err)
	require.NoError(t, st.Set(context.Background(), store.KeyAccount, raw))

	f := newFixture(t, st)
	account := f.login(t)
	assert.Equal(t, 61234.56, account.LiveBalance)
}

func TestLoginFailureLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	before, _, err := f.store.Get(ctx, store.KeyAccount)
	require.NoError(t, err)

	_, err = f.accounts.Login(ctx, testEmail, "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.False(t, f.accounts.IsAuthenticated())

	after, _, err := f.store.Get(ctx, store.KeyAccount)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLogoutPolicies(t *testing.T) {
	ctx := context.Background()

	t.Run("retain", func(t *testing.T) {
		f := newFixture(t, nil)
		f.login(t)
		require.NoError(t, f.accounts.Logout(ctx))
		assert.False(t, f.accounts.IsAuthenticated())
		_, ok, err := f.store.Get(ctx, store.KeyAccount)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("erase", func(t *testing.T) {
		f := newFixture(t, nil, withLogout(LogoutErase))
		f.login(t)
		require.NoError(t, f.accounts.Logout(ctx))
		assert.False(t, f.accounts.IsAuthenticated())
		_, ok, err := f.store.Get(ctx, store.KeyAccount)
		require.NoError(t, err)
		assert.False(t, ok)
		_, err = f.accounts.Account(ctx)
		assert.ErrorIs(t, err, ErrNoAccount)
	})
}

func TestMalformedRecordsAreTreatedAsEmpty(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.Set(ctx, store.KeyAccount, []byte("{not json")))
	require.NoError(t, st.Set(ctx, store.KeyTrades, []byte("[{oops")))
	require.NoError(t, st.Set(ctx, store.KeyDeposits, []byte("42")))

	f := newFixture(t, st)
	account, err := f.accounts.Account(ctx)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", account.ID)

	trades, err := f.accounts.GetTrades(ctx)
	require.NoError(t, err)
	assert.Empty(t, trades)

	page, err := f.accounts.History(ctx, HistoryQuery{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestUpdateBalanceRoutesThroughPolicy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	account, err := f.accounts.UpdateBalance(ctx, 100, models.BalanceDeposit)
	require.NoError(t, err)
	assert.Equal(t, 10100.0, account.DemoBalance)
	assert.Equal(t, 55000.0, account.LiveBalance)

	account, err = f.accounts.UpdateBalance(ctx, 25.5, models.BalanceTrade)
	require.NoError(t, err)
	assert.Equal(t, 55025.5, account.LiveBalance)

	_, err = f.accounts.UpdateBalance(ctx, 1, models.BalanceKind("bonus"))
	assert.ErrorIs(t, err, ErrUnknownBalanceKind)
	require.Len(t, f.hub.balances, 2)
	assert.Equal(t, "55025.50", f.hub.balances[1].TradableBalance)
}

func TestUpdateTradeRejectsSettlementPatch(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.login(t)
	trade, err := f.engine.Submit(ctx, TradeRequest{Symbol: "EUR/USD", Side: "buy", Amount: 100, Duration: 30})
	require.NoError(t, err)

	_, err = f.accounts.UpdateTrade(ctx, trade.ID, func(tr *models.Trade) {
		tr.Settle(models.ResultWin, 1000)
	})
	assert.ErrorIs(t, err, ErrInvalidTradePatch)

	_, err = f.accounts.UpdateTrade(ctx, "missing", func(*models.Trade) {})
	assert.ErrorIs(t, err, ErrTradeNotFound)

	account, err := f.accounts.Account(ctx)
	require.NoError(t, err)
	assert.Equal(t, 55000.0, account.LiveBalance)
}

func TestAddTradePrepends(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.accounts.AddTrade(ctx, models.Trade{ID: "first", Status: models.TradePending}))
	require.NoError(t, f.accounts.AddTrade(ctx, models.Trade{ID: "second", Status: models.TradePending}))

	trades, err := f.accounts.GetTrades(ctx)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "second", trades[0].ID)
	assert.Equal(t, "first", trades[1].ID)
}

func TestRoundTripPersistence(t *testing.T) {
	st := store.NewMemoryStore()
	f := newFixture(t, st)
	ctx := context.Background()
	f.login(t)
	_, err := f.engine.Submit(ctx, TradeRequest{Symbol: "BTC/USD", Side: "sell", Amount: 250, Duration: 60})
	require.NoError(t, err)
	f.advance(t, 5)

	wantAccount, err := f.accounts.Account(ctx)
	require.NoError(t, err)
	wantTrades, err := f.accounts.GetTrades(ctx)
	require.NoError(t, err)

	reopened := NewAccountService(st, stubVerifier{}, nil, clock.NewFake(testStart), logging.Nop(), AccountOptions{Seed: models.Account{ID: "other"}})
	require.NoError(t, reopened.Open(ctx))
	gotAccount, err := reopened.Account(ctx)
	require.NoError(t, err)
	gotTrades, err := reopened.GetTrades(ctx)
	require.NoError(t, err)

	assert.Equal(t, wantAccount, gotAccount)
	require.Len(t, gotTrades, 1)
	assert.True(t, wantTrades[0].Timestamp.Equal(gotTrades[0].Timestamp))
	assert.Equal(t, wantTrades, gotTrades)
	assert.Equal(t, 55, gotTrades[0].TimeLeft)
}

func TestDeposit(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.accounts.Deposit(ctx, DepositRequest{Amount: 9.99})
	assert.ErrorIs(t, err, ErrAmountBelowMinimum)
	_, err = f.accounts.Deposit(ctx, DepositRequest{Amount: -5})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	account, err := f.accounts.Account(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10000.0, account.DemoBalance)

	deposit, err := f.accounts.Deposit(ctx, DepositRequest{Amount: 250})
	require.NoError(t, err)
	assert.Equal(t, "Bank Transfer", deposit.Method)
	assert.Equal(t, models.RequestPending, deposit.Status)
	assert.Regexp(t, `^deposit_\d+_[0-9a-f]{9}$`, deposit.ID)

	account, err = f.accounts.Account(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10250.0, account.DemoBalance)
}

func TestDepositRejectsOverflowingAmounts(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.accounts.Deposit(ctx, DepositRequest{Amount: math.Inf(1)})
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = f.accounts.Deposit(ctx, DepositRequest{Amount: math.NaN()})
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = f.accounts.Deposit(ctx, DepositRequest{Amount: 1.7e308})
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = f.accounts.Deposit(ctx, DepositRequest{Amount: 1000000.01})
	assert.ErrorIs(t, err, ErrAmountAboveMaximum)

	account, err := f.accounts.Account(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10000.0, account.DemoBalance)

	for i := 0; i < 3; i++ {
		_, err = f.accounts.Deposit(ctx, DepositRequest{Amount: 1000000})
		require.NoError(t, err)
	}
	account, err = f.accounts.Account(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3010000.0, account.DemoBalance)
}

func TestRequestWithdrawal(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	address := "0x52908400098527886E0F7030069857D2E4169EE7"

	_, err := f.accounts.RequestWithdrawal(ctx, WithdrawalRequest{ToAddress: "0x123", Amount: 10})
	assert.ErrorIs(t, err, ErrInvalidAddress)
	_, err = f.accounts.RequestWithdrawal(ctx, WithdrawalRequest{ToAddress: address, Amount: 0})
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = f.accounts.RequestWithdrawal(ctx, WithdrawalRequest{ToAddress: address, Amount: 55000.01})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	withdrawal, err := f.accounts.RequestWithdrawal(ctx, WithdrawalRequest{ToAddress: address, Amount: 1500})
	require.NoError(t, err)
	assert.Equal(t, "ETH", withdrawal.Currency)
	assert.Equal(t, models.RequestPending, withdrawal.Status)

	account, err := f.accounts.Account(ctx)
	require.NoError(t, err)
	assert.Equal(t, 55000.0, account.LiveBalance)
}

func TestVerificationFlow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	required, err := f.accounts.VerificationRequired(ctx)
	require.NoError(t, err)
	assert.True(t, required)

	_, err = f.accounts.ReviewVerification(ctx, true)
	assert.ErrorIs(t, err, ErrVerificationNotPending)

	_, err = f.accounts.SubmitVerification(ctx, VerificationForm{FullName: "Jane Doe", Country: "NZ"})
	assert.ErrorIs(t, err, ErrMissingField)

	v, err := f.accounts.SubmitVerification(ctx, VerificationForm{
		FullName: "Jane Doe", Country: "NZ", Address: "1 Queen St", GovernmentID: "P123",
	})
	require.NoError(t, err)
	assert.Equal(t, models.VerificationPending, v.VerificationStatus)
	assert.True(t, v.DocumentsUploaded)
	require.NotNil(t, v.SubmittedAt)

	v, err = f.accounts.ReviewVerification(ctx, true)
	require.NoError(t, err)
	assert.True(t, v.IsVerified)
	assert.Equal(t, models.VerificationApproved, v.VerificationStatus)

	required, err = f.accounts.VerificationRequired(ctx)
	require.NoError(t, err)
	assert.False(t, required)

	high, err := f.accounts.HighBalance(ctx)
	require.NoError(t, err)
	assert.True(t, high)
}

func TestPublishOnlyWhenSubscribed(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.login(t)
	_, err := f.engine.Submit(ctx, TradeRequest{Symbol: "XAU/USD", Side: "buy", Amount: 50, Duration: 60})
	require.NoError(t, err)

	require.NoError(t, f.accounts.Publish(ctx))
	assert.Empty(t, f.hub.balances)

	f.hub.subscribed = true
	require.NoError(t, f.accounts.Publish(ctx))
	require.Len(t, f.hub.balances, 1)
	require.Len(t, f.hub.trades, 1)
	assert.Equal(t, 60, f.hub.trades[0].TimeLeft)
	assert.Empty(t, f.hub.trades[0].Result)
}

func TestLoginWithStaticVerifier(t *testing.T) {
	hash, err := auth.HashPassword(testPassword)
	require.NoError(t, err)
	verifier := auth.NewStaticVerifier(testEmail, hash)
	svc := NewAccountService(store.NewMemoryStore(), verifier, nil, nil, nil, AccountOptions{Seed: seedAccount()})
	require.NoError(t, svc.Open(context.Background()))

	_, err = svc.Login(context.Background(), "FIXED@example.com", testPassword)
	require.NoError(t, err)
	assert.True(t, svc.IsAuthenticated())
}
