package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"qxtrader/internal/auth"
	"qxtrader/internal/clock"
	"qxtrader/internal/logging"
	"qxtrader/internal/models"
	"qxtrader/internal/store"
	"qxtrader/internal/websocket"
)

const (
	testEmail    = "fixed@example.com"
	testPassword = "correct-pass"
)

var testStart = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type stubVerifier struct {
	verifyFn func(ctx context.Context, email, password string) (auth.Identity, error)
}

func (s stubVerifier) Verify(ctx context.Context, email, password string) (auth.Identity, error) {
	if s.verifyFn != nil {
		return s.verifyFn(ctx, email, password)
	}
	if email == testEmail && password == testPassword {
		return auth.Identity{Email: testEmail}, nil
	}
	return auth.Identity{}, auth.ErrInvalidCredentials
}

// sequenceRandom replays values in order and repeats the last one.
type sequenceRandom struct {
	values []float64
	next   int
}

func (r *sequenceRandom) Float64() float64 {
	if len(r.values) == 0 {
		return 0.5
	}
	v := r.values[r.next]
	if r.next < len(r.values)-1 {
		r.next++
	}
	return v
}

// flakyStore wraps a store, counts single-key writes and fails SetMany while
// failSetMany is set.
type flakyStore struct {
	store.Store
	failSetMany bool
	setManyCall int
	sets        map[string]int
}

func (f *flakyStore) Set(ctx context.Context, key string, value []byte) error {
	if f.sets == nil {
		f.sets = make(map[string]int)
	}
	f.sets[key]++
	return f.Store.Set(ctx, key, value)
}

var errStoreDown = errors.New("store down")

func (f *flakyStore) SetMany(ctx context.Context, values map[string][]byte) error {
	f.setManyCall++
	if f.failSetMany {
		return errStoreDown
	}
	return f.Store.SetMany(ctx, values)
}

type stubHub struct {
	subscribed bool
	balances   []websocket.BalanceUpdate
	trades     []websocket.TradeUpdate
}

func (h *stubHub) BroadcastBalance(_ string, update websocket.BalanceUpdate) {
	h.balances = append(h.balances, update)
}

func (h *stubHub) BroadcastTrade(_ string, update websocket.TradeUpdate) {
	h.trades = append(h.trades, update)
}

func (h *stubHub) Subscribed(string) bool {
	return h.subscribed
}

type fixture struct {
	store    store.Store
	clock    *clock.Fake
	random   *sequenceRandom
	hub      *stubHub
	accounts *AccountService
	engine   *TradeEngine
}

type fixtureOption func(*AccountOptions, *TradeLimits)

func withPolicy(p BalancePolicy) fixtureOption {
	return func(o *AccountOptions, _ *TradeLimits) { o.Policy = p }
}

func withLogout(p LogoutPolicy) fixtureOption {
	return func(o *AccountOptions, _ *TradeLimits) { o.Logout = p }
}

func seedAccount() models.Account {
	return models.Account{
		ID:          "acct-1",
		Name:        "Demo Trader",
		DemoBalance: 10000,
		LiveBalance: 55000,
		AccountType: models.AccountLive,
	}
}

func newFixture(t *testing.T, st store.Store, opts ...fixtureOption) *fixture {
	t.Helper()
	if st == nil {
		st = store.NewMemoryStore()
	}
	accountOpts := AccountOptions{
		Seed:                 seedAccount(),
		MinDeposit:           10,
		MaxDeposit:           1000000,
		HighBalanceThreshold: 50000,
	}
	limits := TradeLimits{MinAmount: 10, MaxAmount: 10000, HistoryLimit: 50}
	for _, opt := range opts {
		opt(&accountOpts, &limits)
	}
	f := &fixture{
		store:  st,
		clock:  clock.NewFake(testStart),
		random: &sequenceRandom{values: []float64{0.5}},
		hub:    &stubHub{},
	}
	f.accounts = NewAccountService(st, stubVerifier{}, f.hub, f.clock, logging.Nop(), accountOpts)
	f.engine = NewTradeEngine(f.accounts, f.clock, f.random, logging.Nop(), limits)
	if err := f.accounts.Open(context.Background()); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	return f
}

func (f *fixture) login(t *testing.T) models.Account {
	t.Helper()
	account, err := f.accounts.Login(context.Background(), testEmail, testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return account
}

// advance moves the clock one second and runs the aging tick, the way the
// scheduler does.
func (f *fixture) advance(t *testing.T, seconds int) {
	t.Helper()
	for i := 0; i < seconds; i++ {
		f.clock.Advance(time.Second)
		if _, err := f.engine.Tick(context.Background()); err != nil {
			t.Fatalf("tick failed: %v", err)
		}
	}
}
