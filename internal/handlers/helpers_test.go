package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"qxtrader/internal/auth"
	"qxtrader/internal/clock"
	"qxtrader/internal/config"
	"qxtrader/internal/logging"
	"qxtrader/internal/models"
	"qxtrader/internal/services"
	"qxtrader/internal/store"
	"qxtrader/internal/websocket"
)

const (
	testSecret   = "secret"
	testEmail    = "trader@example.com"
	testPassword = "correct-pass"
)

type stubVerifier struct {
	roles []string
}

func (s stubVerifier) Verify(_ context.Context, email, password string) (auth.Identity, error) {
	if email != testEmail || password != testPassword {
		return auth.Identity{}, auth.ErrInvalidCredentials
	}
	return auth.Identity{Email: testEmail, Roles: s.roles}, nil
}

type stubTradeService struct {
	submitFn func(ctx context.Context, req services.TradeRequest) (models.Trade, error)
	listFn   func(ctx context.Context, filter services.TradeFilter) ([]models.Trade, error)
}

func (s stubTradeService) Submit(ctx context.Context, req services.TradeRequest) (models.Trade, error) {
	if s.submitFn == nil {
		return models.Trade{}, nil
	}
	return s.submitFn(ctx, req)
}

func (s stubTradeService) ListTrades(ctx context.Context, filter services.TradeFilter) ([]models.Trade, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, filter)
}

type testServer struct {
	handler  http.Handler
	accounts *services.AccountService
	engine   *services.TradeEngine
	clock    *clock.Fake
}

func testConfig() config.Config {
	return config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      testSecret,
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
		Trading: config.TradingConfig{
			MinDeposit:   10,
			MaxDeposit:   1000000,
			MinTrade:     10,
			MaxTrade:     10000,
			HistoryLimit: 50,
		},
	}
}

// newTestServer wires the real services over an in-memory store. When trades
// is nil the real engine serves the trade routes.
func newTestServer(t *testing.T, trades TradeService, roles ...string) *testServer {
	t.Helper()
	clk := clock.NewFake(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	hub := websocket.NewHub()
	accounts := services.NewAccountService(store.NewMemoryStore(), stubVerifier{roles: roles}, hub, clk, logging.Nop(), services.AccountOptions{
		Seed: models.Account{
			ID:          "acct-1",
			Name:        "Demo Trader",
			DemoBalance: 10000,
			LiveBalance: 55000,
			AccountType: models.AccountLive,
		},
		MinDeposit:           10,
		MaxDeposit:           1000000,
		HighBalanceThreshold: 50000,
	})
	if err := accounts.Open(context.Background()); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	engine := services.NewTradeEngine(accounts, clk, rand.New(rand.NewSource(1)), logging.Nop(), services.TradeLimits{
		MinAmount:    10,
		MaxAmount:    10000,
		HistoryLimit: 50,
	})
	if trades == nil {
		trades = engine
	}
	h := New(testConfig(), logging.Nop(), accounts, trades, hub)
	return &testServer{handler: h.Routes(), accounts: accounts, engine: engine, clock: clk}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) login(t *testing.T) string {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": testEmail, "password": testPassword})
	if rr.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	decodeBody(t, rr, &resp)
	return resp.Token
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	decodeBody(t, rr, &resp)
	return resp["error"]
}
