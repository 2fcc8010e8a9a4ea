package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"qxtrader/internal/clock"
	"qxtrader/internal/logging"
	"qxtrader/internal/models"
	"qxtrader/internal/money"
)

var instruments = []string{
	"EUR/USD", "GBP/USD", "USD/JPY", "AUD/USD", "USD/CAD", "EUR/GBP",
	"USD/CHF", "NZD/USD", "BTC/USD", "ETH/USD", "XAU/USD", "XAG/USD",
}

var durations = []int{30, 60, 120, 300, 600}

// backstopGrace is how far past its duration a trade may run before the
// sweep force-settles it.
const backstopGrace = 3 * time.Second

// TradeLedger is the subset of AccountService the engine drives.
type TradeLedger interface {
	IsAuthenticated() bool
	TradableBalance(ctx context.Context) (float64, error)
	AddTrade(ctx context.Context, trade models.Trade) error
	AgeTrades(ctx context.Context, step int) ([]models.Trade, error)
	GetTrades(ctx context.Context) ([]models.Trade, error)
	SettleTrade(ctx context.Context, id string, settle SettleFunc) (models.Trade, error)
}

// RandomSource yields values in [0, 1).
type RandomSource interface {
	Float64() float64
}

type TradeLimits struct {
	MinAmount    float64
	MaxAmount    float64
	HistoryLimit int
}

type TradeEngine struct {
	ledger TradeLedger
	clock  clock.Clock
	log    logging.Logger
	limits TradeLimits

	randMu sync.Mutex
	rand   RandomSource
}

func NewTradeEngine(ledger TradeLedger, clk clock.Clock, random RandomSource, log logging.Logger, limits TradeLimits) *TradeEngine {
	if clk == nil {
		clk = clock.System{}
	}
	if random == nil {
		random = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if log == nil {
		log = logging.Nop()
	}
	return &TradeEngine{
		ledger: ledger,
		clock:  clk,
		log:    log,
		limits: limits,
		rand:   random,
	}
}

type TradeRequest struct {
	Symbol   string
	Side     string
	Amount   float64
	Duration int
}

func (e *TradeEngine) Submit(ctx context.Context, req TradeRequest) (models.Trade, error) {
	if !e.ledger.IsAuthenticated() {
		return models.Trade{}, ErrNotAuthenticated
	}
	symbol, ok := lookupInstrument(req.Symbol)
	if !ok {
		return models.Trade{}, fmt.Errorf("%w: %q", ErrUnknownSymbol, req.Symbol)
	}
	side, ok := models.ParseSide(req.Side)
	if !ok {
		return models.Trade{}, fmt.Errorf("%w: %q", ErrInvalidSide, req.Side)
	}
	if !supportedDuration(req.Duration) {
		return models.Trade{}, fmt.Errorf("%w: %ds", ErrUnsupportedDuration, req.Duration)
	}
	if req.Amount <= 0 || !money.Finite(req.Amount) {
		return models.Trade{}, ErrInvalidAmount
	}
	if req.Amount < e.limits.MinAmount {
		return models.Trade{}, fmt.Errorf("%w: minimum trade is %s", ErrAmountBelowMinimum, money.Format(e.limits.MinAmount))
	}
	if e.limits.MaxAmount > 0 && req.Amount > e.limits.MaxAmount {
		return models.Trade{}, fmt.Errorf("%w: maximum trade is %s", ErrAmountAboveMaximum, money.Format(e.limits.MaxAmount))
	}
	tradable, err := e.ledger.TradableBalance(ctx)
	if err != nil {
		return models.Trade{}, err
	}
	if req.Amount > tradable {
		return models.Trade{}, ErrInsufficientFunds
	}

	now := e.clock.Now()
	trade := models.Trade{
		ID:        newID("trade", now),
		Symbol:    symbol,
		Type:      side,
		Amount:    money.Round(req.Amount),
		Duration:  req.Duration,
		Timestamp: now,
		Status:    models.TradePending,
		TimeLeft:  req.Duration,
	}
	if err := e.ledger.AddTrade(ctx, trade); err != nil {
		return models.Trade{}, err
	}
	e.log.Info("trade opened", "trade_id", trade.ID, "symbol", trade.Symbol, "type", trade.Type, "amount", trade.Amount, "duration", trade.Duration)
	return trade, nil
}

// Tick ages every pending trade by one second in a single write and then
// settles those that reached zero. A failed settlement is logged and does
// not stop the others.
func (e *TradeEngine) Tick(ctx context.Context) (int, error) {
	expired, err := e.ledger.AgeTrades(ctx, 1)
	if err != nil {
		return 0, err
	}
	settled := 0
	for _, trade := range expired {
		if e.settle(ctx, trade.ID, "aging") {
			settled++
		}
	}
	return settled, nil
}

// Sweep force-settles pending trades older than their duration plus the
// grace window.
func (e *TradeEngine) Sweep(ctx context.Context) (int, error) {
	trades, err := e.ledger.GetTrades(ctx)
	if err != nil {
		return 0, err
	}
	now := e.clock.Now()
	settled := 0
	for _, trade := range trades {
		if !trade.Pending() {
			continue
		}
		deadline := time.Duration(trade.Duration)*time.Second + backstopGrace
		if trade.Age(now) <= deadline {
			continue
		}
		if e.settle(ctx, trade.ID, "backstop") {
			settled++
		}
	}
	return settled, nil
}

func (e *TradeEngine) settle(ctx context.Context, id, source string) bool {
	trade, err := e.ledger.SettleTrade(ctx, id, e.outcome)
	switch {
	case err == nil:
		e.log.Info("trade settled", "trade_id", trade.ID, "source", source, "result", trade.Result, "profit", trade.Profit)
		return true
	case errors.Is(err, ErrTradeSettled):
		e.log.Debug("trade already settled", "trade_id", id, "source", source)
	default:
		e.log.Warn("settlement failed", "trade_id", id, "source", source, "error", err)
	}
	return false
}

// outcome always wins with a profit between 70% and 130% of the stake.
func (e *TradeEngine) outcome(trade models.Trade) (models.TradeResult, float64) {
	e.randMu.Lock()
	r := e.rand.Float64()
	e.randMu.Unlock()
	return models.ResultWin, money.Scale(trade.Amount, 0.7+r*0.6)
}

type TradeFilter string

const (
	FilterAll       TradeFilter = "all"
	FilterBuy       TradeFilter = "buy"
	FilterSell      TradeFilter = "sell"
	FilterPending   TradeFilter = "pending"
	FilterCompleted TradeFilter = "completed"
)

func ParseTradeFilter(raw string) (TradeFilter, error) {
	switch f := TradeFilter(strings.ToLower(strings.TrimSpace(raw))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterBuy, FilterSell, FilterPending, FilterCompleted:
		return f, nil
	default:
		return "", fmt.Errorf("unknown trade filter %q", raw)
	}
}

// ListTrades returns trades newest first, capped at the history limit.
func (e *TradeEngine) ListTrades(ctx context.Context, filter TradeFilter) ([]models.Trade, error) {
	trades, err := e.ledger.GetTrades(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Trade, 0, len(trades))
	for _, trade := range trades {
		if !matchesFilter(trade, filter) {
			continue
		}
		out = append(out, trade)
		if e.limits.HistoryLimit > 0 && len(out) == e.limits.HistoryLimit {
			break
		}
	}
	return out, nil
}

func matchesFilter(trade models.Trade, filter TradeFilter) bool {
	switch filter {
	case FilterBuy:
		return trade.Type == models.SideBuy
	case FilterSell:
		return trade.Type == models.SideSell
	case FilterPending:
		return trade.Pending()
	case FilterCompleted:
		return !trade.Pending()
	default:
		return true
	}
}

func Instruments() []string {
	return append([]string(nil), instruments...)
}

func Durations() []int {
	return append([]int(nil), durations...)
}

func lookupInstrument(raw string) (string, bool) {
	symbol := strings.ToUpper(strings.TrimSpace(raw))
	for _, s := range instruments {
		if s == symbol {
			return s, true
		}
	}
	return "", false
}

func supportedDuration(seconds int) bool {
	for _, d := range durations {
		if d == seconds {
			return true
		}
	}
	return false
}
