package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"qxtrader/internal/auth"
	"qxtrader/internal/clock"
	"qxtrader/internal/logging"
	"qxtrader/internal/models"
	"qxtrader/internal/money"
	"qxtrader/internal/store"
	"qxtrader/internal/validator"
	"qxtrader/internal/websocket"

	"github.com/google/uuid"
)

type BalanceHub interface {
	BroadcastBalance(userID string, update websocket.BalanceUpdate)
	BroadcastTrade(userID string, update websocket.TradeUpdate)
	Subscribed(userID string) bool
}

type AccountOptions struct {
	Seed                 models.Account
	Policy               BalancePolicy
	Logout               LogoutPolicy
	MinDeposit           float64
	MaxDeposit           float64
	HighBalanceThreshold float64
}

// AccountService owns the single session and every read and write of the
// persisted account, trade list, deposits and withdrawals. All methods are
// serialized on one mutex, which is what makes SettleTrade a check-and-set.
type AccountService struct {
	mu       sync.Mutex
	store    store.Store
	verifier auth.CredentialVerifier
	hub      BalanceHub
	clock    clock.Clock
	log      logging.Logger
	opts     AccountOptions

	authenticated bool
	identity      auth.Identity
}

func NewAccountService(st store.Store, verifier auth.CredentialVerifier, hub BalanceHub, clk clock.Clock, log logging.Logger, opts AccountOptions) *AccountService {
	if opts.Policy == nil {
		opts.Policy = AccumulatingLiveBalance{}
	}
	if opts.Logout == "" {
		opts.Logout = LogoutRetain
	}
	if hub == nil {
		hub = nopHub{}
	}
	if clk == nil {
		clk = clock.System{}
	}
	if log == nil {
		log = logging.Nop()
	}
	return &AccountService{
		store:    st,
		verifier: verifier,
		hub:      hub,
		clock:    clk,
		log:      log,
		opts:     opts,
	}
}

// Open prepares persisted state for a new session. The session itself starts
// unauthenticated.
func (s *AccountService) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = false
	s.identity = auth.Identity{}
	if _, err := s.loadOrSeed(ctx); err != nil {
		return err
	}
	return s.ensureTrades(ctx)
}

func (s *AccountService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = false
	s.identity = auth.Identity{}
}

func (s *AccountService) Login(ctx context.Context, email, password string) (models.Account, error) {
	identity, err := s.verifier.Verify(ctx, email, password)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			s.log.Warn("credential check failed", "error", err)
		}
		return models.Account{}, ErrInvalidCredentials
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	account, err := s.loadOrSeed(ctx)
	if err != nil {
		return models.Account{}, err
	}
	if account.Email != identity.Email {
		account.Email = identity.Email
		if err := s.saveAccount(ctx, account); err != nil {
			return models.Account{}, err
		}
	}
	if err := s.ensureTrades(ctx); err != nil {
		return models.Account{}, err
	}
	s.authenticated = true
	s.identity = identity
	s.log.Info("session authenticated", "account_id", account.ID)
	return account, nil
}

func (s *AccountService) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = false
	s.identity = auth.Identity{}
	if s.opts.Logout == LogoutErase {
		if err := s.store.Remove(ctx, store.KeyAccount); err != nil {
			return fmt.Errorf("erase account: %w", err)
		}
		s.log.Info("account erased on logout")
	}
	return nil
}

func (s *AccountService) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

func (s *AccountService) Identity() (auth.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity, s.authenticated
}

func (s *AccountService) Policy() BalancePolicy {
	return s.opts.Policy
}

func (s *AccountService) Account(ctx context.Context) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requireAccount(ctx)
}

func (s *AccountService) UpdateBalance(ctx context.Context, amount float64, kind models.BalanceKind) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, err := s.requireAccount(ctx)
	if err != nil {
		return models.Account{}, err
	}
	if err := s.opts.Policy.Apply(&account, amount, kind); err != nil {
		return models.Account{}, err
	}
	if err := s.saveAccount(ctx, account); err != nil {
		return models.Account{}, err
	}
	s.hub.BroadcastBalance(account.ID, s.balanceUpdate(account))
	return account, nil
}

func (s *AccountService) TradableBalance(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, err := s.requireAccount(ctx)
	if err != nil {
		return 0, err
	}
	return s.opts.Policy.Tradable(account), nil
}

// AddTrade stores trade at the head of the list.
func (s *AccountService) AddTrade(ctx context.Context, trade models.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	trades, err := s.loadTrades(ctx)
	if err != nil {
		return err
	}
	trades = append([]models.Trade{trade}, trades...)
	return s.saveTrades(ctx, trades)
}

// UpdateTrade applies patch to a pending trade. Settlement cannot go through
// here because it must move the balance in the same write.
func (s *AccountService) UpdateTrade(ctx context.Context, id string, patch func(*models.Trade)) (models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trades, err := s.loadTrades(ctx)
	if err != nil {
		return models.Trade{}, err
	}
	idx := indexOfTrade(trades, id)
	if idx < 0 {
		return models.Trade{}, ErrTradeNotFound
	}
	current := trades[idx]
	if !current.Pending() {
		return models.Trade{}, ErrTradeSettled
	}
	patched := current
	patch(&patched)
	patched.ID = current.ID
	if !patched.Pending() {
		return models.Trade{}, fmt.Errorf("%w: settle through SettleTrade", ErrInvalidTradePatch)
	}
	if patched.TimeLeft < 0 {
		patched.TimeLeft = 0
	}
	trades[idx] = patched
	if err := s.saveTrades(ctx, trades); err != nil {
		return models.Trade{}, err
	}
	return patched, nil
}

// AgeTrades takes step seconds off every pending trade, flooring at zero, and
// saves the list once. It returns the pending trades whose time is up,
// including ones left at zero by an earlier failed settlement.
func (s *AccountService) AgeTrades(ctx context.Context, step int) ([]models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trades, err := s.loadTrades(ctx)
	if err != nil {
		return nil, err
	}
	changed := false
	var expired []models.Trade
	for i := range trades {
		if !trades[i].Pending() {
			continue
		}
		if trades[i].TimeLeft > 0 {
			trades[i].TimeLeft = max(trades[i].TimeLeft-step, 0)
			changed = true
		}
		if trades[i].TimeLeft == 0 {
			expired = append(expired, trades[i])
		}
	}
	if changed {
		if err := s.saveTrades(ctx, trades); err != nil {
			return nil, err
		}
	}
	return expired, nil
}

func (s *AccountService) GetTrades(ctx context.Context) ([]models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadTrades(ctx)
}

// SettleFunc picks the outcome of a trade. Profit is signed.
type SettleFunc func(trade models.Trade) (models.TradeResult, float64)

// SettleTrade finalizes a pending trade and applies its profit through the
// balance policy. The trade list and the account are written together; on
// any failure neither changes and the trade stays pending.
func (s *AccountService) SettleTrade(ctx context.Context, id string, settle SettleFunc) (models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trades, err := s.loadTrades(ctx)
	if err != nil {
		return models.Trade{}, err
	}
	idx := indexOfTrade(trades, id)
	if idx < 0 {
		return models.Trade{}, ErrTradeNotFound
	}
	if !trades[idx].Pending() {
		return models.Trade{}, ErrTradeSettled
	}
	account, err := s.requireAccount(ctx)
	if err != nil {
		return models.Trade{}, err
	}

	trade := trades[idx]
	result, profit := settle(trade)
	profit = money.Round(profit)
	trade.Settle(result, profit)
	if err := s.opts.Policy.Apply(&account, profit, models.BalanceTrade); err != nil {
		return models.Trade{}, err
	}
	trades[idx] = trade
	applyStats(&account, computeStats(trades))

	accountRaw, err := json.Marshal(account)
	if err != nil {
		return models.Trade{}, err
	}
	tradesRaw, err := json.Marshal(trades)
	if err != nil {
		return models.Trade{}, err
	}
	if err := s.store.SetMany(ctx, map[string][]byte{
		store.KeyAccount: accountRaw,
		store.KeyTrades:  tradesRaw,
	}); err != nil {
		return models.Trade{}, fmt.Errorf("settle %s: %w", id, err)
	}

	s.hub.BroadcastBalance(account.ID, s.balanceUpdate(account))
	s.hub.BroadcastTrade(account.ID, tradeUpdate(trade))
	return trade, nil
}

type DepositRequest struct {
	Amount float64
	Method string
}

// Deposit records a deposit request and credits it straight away.
func (s *AccountService) Deposit(ctx context.Context, req DepositRequest) (models.Deposit, error) {
	if req.Amount <= 0 || !money.Finite(req.Amount) {
		return models.Deposit{}, ErrInvalidAmount
	}
	if req.Amount < s.opts.MinDeposit {
		return models.Deposit{}, fmt.Errorf("%w: minimum deposit is %s", ErrAmountBelowMinimum, money.Format(s.opts.MinDeposit))
	}
	if s.opts.MaxDeposit > 0 && req.Amount > s.opts.MaxDeposit {
		return models.Deposit{}, fmt.Errorf("%w: maximum deposit is %s", ErrAmountAboveMaximum, money.Format(s.opts.MaxDeposit))
	}
	method := strings.TrimSpace(req.Method)
	if method == "" {
		method = "Bank Transfer"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	account, err := s.requireAccount(ctx)
	if err != nil {
		return models.Deposit{}, err
	}
	now := s.clock.Now()
	deposit := models.Deposit{
		ID:        newID("deposit", now),
		Amount:    money.Round(req.Amount),
		Method:    method,
		Status:    models.RequestPending,
		Timestamp: now,
	}
	if err := s.opts.Policy.Apply(&account, deposit.Amount, models.BalanceDeposit); err != nil {
		return models.Deposit{}, err
	}
	deposits, err := loadList[models.Deposit](ctx, s, store.KeyDeposits)
	if err != nil {
		return models.Deposit{}, err
	}
	deposits = append(deposits, deposit)

	accountRaw, err := json.Marshal(account)
	if err != nil {
		return models.Deposit{}, err
	}
	depositsRaw, err := json.Marshal(deposits)
	if err != nil {
		return models.Deposit{}, err
	}
	if err := s.store.SetMany(ctx, map[string][]byte{
		store.KeyAccount:  accountRaw,
		store.KeyDeposits: depositsRaw,
	}); err != nil {
		return models.Deposit{}, fmt.Errorf("record deposit: %w", err)
	}
	s.hub.BroadcastBalance(account.ID, s.balanceUpdate(account))
	return deposit, nil
}

type WithdrawalRequest struct {
	ToAddress string
	Amount    float64
	Currency  string
}

// RequestWithdrawal records a crypto withdrawal. Balances are not touched.
func (s *AccountService) RequestWithdrawal(ctx context.Context, req WithdrawalRequest) (models.Withdrawal, error) {
	if err := validator.ValidateWalletAddress(req.ToAddress); err != nil {
		return models.Withdrawal{}, ErrInvalidAddress
	}
	if req.Amount <= 0 || !money.Finite(req.Amount) {
		return models.Withdrawal{}, ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "ETH"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	account, err := s.requireAccount(ctx)
	if err != nil {
		return models.Withdrawal{}, err
	}
	if req.Amount > account.LiveBalance {
		return models.Withdrawal{}, ErrInsufficientFunds
	}
	now := s.clock.Now()
	withdrawal := models.Withdrawal{
		ID:        newID("withdrawal", now),
		Amount:    money.Round(req.Amount),
		Currency:  currency,
		ToAddress: strings.TrimSpace(req.ToAddress),
		Status:    models.RequestPending,
		Timestamp: now,
	}
	withdrawals, err := loadList[models.Withdrawal](ctx, s, store.KeyWithdrawals)
	if err != nil {
		return models.Withdrawal{}, err
	}
	withdrawals = append(withdrawals, withdrawal)
	raw, err := json.Marshal(withdrawals)
	if err != nil {
		return models.Withdrawal{}, err
	}
	if err := s.store.Set(ctx, store.KeyWithdrawals, raw); err != nil {
		return models.Withdrawal{}, fmt.Errorf("record withdrawal: %w", err)
	}
	return withdrawal, nil
}

type VerificationForm struct {
	FullName     string
	Country      string
	Address      string
	Reason       string
	GovernmentID string
}

func (s *AccountService) SubmitVerification(ctx context.Context, form VerificationForm) (models.Verification, error) {
	required := []struct{ field, value string }{
		{"fullName", form.FullName},
		{"country", form.Country},
		{"address", form.Address},
		{"governmentId", form.GovernmentID},
	}
	for _, r := range required {
		if err := validator.ValidateRequired(r.field, r.value); err != nil {
			return models.Verification{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	account, err := s.requireAccount(ctx)
	if err != nil {
		return models.Verification{}, err
	}
	now := s.clock.Now()
	verification := models.Verification{
		VerificationStatus: models.VerificationPending,
		DocumentsUploaded:  true,
		FullName:           strings.TrimSpace(form.FullName),
		Country:            strings.TrimSpace(form.Country),
		Address:            strings.TrimSpace(form.Address),
		Reason:             strings.TrimSpace(form.Reason),
		GovernmentID:       strings.TrimSpace(form.GovernmentID),
		SubmittedAt:        &now,
	}
	account.Verification = &verification
	if err := s.saveAccount(ctx, account); err != nil {
		return models.Verification{}, err
	}
	return verification, nil
}

func (s *AccountService) ReviewVerification(ctx context.Context, approve bool) (models.Verification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, err := s.requireAccount(ctx)
	if err != nil {
		return models.Verification{}, err
	}
	if account.Verification == nil || account.Verification.VerificationStatus != models.VerificationPending {
		return models.Verification{}, ErrVerificationNotPending
	}
	now := s.clock.Now()
	verification := *account.Verification
	verification.VerificationDate = &now
	if approve {
		verification.IsVerified = true
		verification.VerificationStatus = models.VerificationApproved
	} else {
		verification.IsVerified = false
		verification.VerificationStatus = models.VerificationRejected
	}
	account.Verification = &verification
	if err := s.saveAccount(ctx, account); err != nil {
		return models.Verification{}, err
	}
	return verification, nil
}

// VerificationRequired is informational; nothing is blocked on it.
func (s *AccountService) VerificationRequired(ctx context.Context) (bool, error) {
	account, err := s.Account(ctx)
	if err != nil {
		return false, err
	}
	return account.Verification == nil || !account.Verification.IsVerified, nil
}

func (s *AccountService) HighBalance(ctx context.Context) (bool, error) {
	account, err := s.Account(ctx)
	if err != nil {
		return false, err
	}
	return account.LiveBalance > s.opts.HighBalanceThreshold, nil
}

type TradeStats struct {
	TotalTrades   int     `json:"totalTrades"`
	WinningTrades int     `json:"winningTrades"`
	WinRate       float64 `json:"winRate"`
	TotalProfit   float64 `json:"totalProfit"`
}

func (s *AccountService) Stats(ctx context.Context) (TradeStats, error) {
	trades, err := s.GetTrades(ctx)
	if err != nil {
		return TradeStats{}, err
	}
	return computeStats(trades), nil
}

// Publish pushes the current balances and pending countdowns to websocket
// subscribers. It does nothing when nobody is listening.
func (s *AccountService) Publish(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok, err := s.loadAccount(ctx)
	if err != nil || !ok {
		return err
	}
	if !s.hub.Subscribed(account.ID) {
		return nil
	}
	s.hub.BroadcastBalance(account.ID, s.balanceUpdate(account))
	trades, err := s.loadTrades(ctx)
	if err != nil {
		return err
	}
	for _, trade := range trades {
		if trade.Pending() {
			s.hub.BroadcastTrade(account.ID, tradeUpdate(trade))
		}
	}
	return nil
}

func (s *AccountService) BalanceSnapshot(ctx context.Context) (websocket.BalanceUpdate, error) {
	account, err := s.Account(ctx)
	if err != nil {
		return websocket.BalanceUpdate{}, err
	}
	return s.balanceUpdate(account), nil
}

func (s *AccountService) balanceUpdate(account models.Account) websocket.BalanceUpdate {
	return websocket.BalanceUpdate{
		AccountID:       account.ID,
		LiveBalance:     money.Format(account.LiveBalance),
		DemoBalance:     money.Format(account.DemoBalance),
		TradableBalance: money.Format(s.opts.Policy.Tradable(account)),
	}
}

func tradeUpdate(trade models.Trade) websocket.TradeUpdate {
	update := websocket.TradeUpdate{
		TradeID:  trade.ID,
		Symbol:   trade.Symbol,
		Type:     string(trade.Type),
		Status:   string(trade.Status),
		TimeLeft: trade.TimeLeft,
	}
	if !trade.Pending() {
		update.Result = string(trade.Result)
		update.Profit = money.Format(trade.Profit)
	}
	return update
}

func (s *AccountService) requireAccount(ctx context.Context) (models.Account, error) {
	account, ok, err := s.loadAccount(ctx)
	if err != nil {
		return models.Account{}, err
	}
	if !ok {
		return models.Account{}, ErrNoAccount
	}
	return account, nil
}

// loadAccount treats an unreadable record as absent.
func (s *AccountService) loadAccount(ctx context.Context) (models.Account, bool, error) {
	raw, ok, err := s.store.Get(ctx, store.KeyAccount)
	if err != nil {
		return models.Account{}, false, fmt.Errorf("load account: %w", err)
	}
	if !ok {
		return models.Account{}, false, nil
	}
	var account models.Account
	if err := json.Unmarshal(raw, &account); err != nil {
		s.log.Warn("discarding malformed account record", "error", err)
		return models.Account{}, false, nil
	}
	return account, true, nil
}

func (s *AccountService) loadOrSeed(ctx context.Context) (models.Account, error) {
	account, ok, err := s.loadAccount(ctx)
	if err != nil {
		return models.Account{}, err
	}
	if ok {
		return account, nil
	}
	account = s.opts.Seed
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if account.AccountType == "" {
		account.AccountType = models.AccountLive
	}
	account.DemoBalance = money.Round(account.DemoBalance)
	account.LiveBalance = money.Round(account.LiveBalance)
	if err := s.saveAccount(ctx, account); err != nil {
		return models.Account{}, err
	}
	s.log.Info("seeded account", "account_id", account.ID)
	return account, nil
}

func (s *AccountService) saveAccount(ctx context.Context, account models.Account) error {
	raw, err := json.Marshal(account)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, store.KeyAccount, raw); err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

func (s *AccountService) ensureTrades(ctx context.Context) error {
	_, ok, err := s.store.Get(ctx, store.KeyTrades)
	if err != nil {
		return fmt.Errorf("load trades: %w", err)
	}
	if ok {
		return nil
	}
	return s.saveTrades(ctx, []models.Trade{})
}

func (s *AccountService) loadTrades(ctx context.Context) ([]models.Trade, error) {
	trades, err := loadList[models.Trade](ctx, s, store.KeyTrades)
	if err != nil {
		return nil, err
	}
	for i := range trades {
		trades[i].Normalize()
	}
	return trades, nil
}

func (s *AccountService) saveTrades(ctx context.Context, trades []models.Trade) error {
	raw, err := json.Marshal(trades)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, store.KeyTrades, raw); err != nil {
		return fmt.Errorf("save trades: %w", err)
	}
	return nil
}

// loadList decodes a JSON array stored under key. Absent and malformed
// values both yield an empty list.
func loadList[T any](ctx context.Context, s *AccountService, key string) ([]T, error) {
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		s.log.Warn("discarding malformed list", "key", key, "error", err)
		return nil, nil
	}
	return items, nil
}

func indexOfTrade(trades []models.Trade, id string) int {
	for i := range trades {
		if trades[i].ID == id {
			return i
		}
	}
	return -1
}

func computeStats(trades []models.Trade) TradeStats {
	var stats TradeStats
	profits := make([]float64, 0, len(trades))
	for _, trade := range trades {
		if trade.Pending() {
			continue
		}
		stats.TotalTrades++
		switch trade.Result {
		case models.ResultWin:
			stats.WinningTrades++
		case models.ResultLoss:
		}
		profits = append(profits, trade.Profit)
	}
	stats.TotalProfit = money.Sum(profits...)
	if stats.TotalTrades > 0 {
		stats.WinRate = money.Round(float64(stats.WinningTrades) * 100 / float64(stats.TotalTrades))
	}
	return stats
}

func applyStats(account *models.Account, stats TradeStats) {
	account.TotalTrades = stats.TotalTrades
	account.WinRate = stats.WinRate
	account.TotalPnL = stats.TotalProfit
}

// newID builds ids of the form <prefix>_<unix millis>_<9 random chars>.
func newID(prefix string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%s_%d_%s", prefix, now.UnixMilli(), suffix)
}

type nopHub struct{}

func (nopHub) BroadcastBalance(string, websocket.BalanceUpdate) {}
func (nopHub) BroadcastTrade(string, websocket.TradeUpdate)     {}
func (nopHub) Subscribed(string) bool                           { return false }
