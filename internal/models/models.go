package models

import (
	"fmt"
	"strings"
	"time"
)

type AccountType string

const (
	AccountDemo AccountType = "demo"
	AccountLive AccountType = "live"
)

func ParseAccountType(raw string) (AccountType, error) {
	switch AccountType(strings.ToLower(strings.TrimSpace(raw))) {
	case AccountDemo:
		return AccountDemo, nil
	case AccountLive:
		return AccountLive, nil
	default:
		return "", fmt.Errorf("unknown account type %q", raw)
	}
}

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

// Verification is cosmetic compliance metadata. Nothing is gated on it.
type Verification struct {
	IsVerified         bool               `json:"isVerified"`
	VerificationStatus VerificationStatus `json:"verificationStatus"`
	DocumentsUploaded  bool               `json:"documentsUploaded"`
	FullName           string             `json:"fullName,omitempty"`
	Country            string             `json:"country,omitempty"`
	Address            string             `json:"address,omitempty"`
	Reason             string             `json:"reason,omitempty"`
	GovernmentID       string             `json:"governmentId,omitempty"`
	SubmittedAt        *time.Time         `json:"submittedAt,omitempty"`
	VerificationDate   *time.Time         `json:"verificationDate,omitempty"`
}

type Account struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Email        string        `json:"email"`
	DemoBalance  float64       `json:"demoBalance"`
	LiveBalance  float64       `json:"liveBalance"`
	TotalTrades  int           `json:"totalTrades"`
	WinRate      float64       `json:"winRate"`
	TotalPnL     float64       `json:"totalPnL"`
	AccountType  AccountType   `json:"accountType"`
	Verification *Verification `json:"verification,omitempty"`
}

// BalanceKind names the reason for a balance mutation.
type BalanceKind string

const (
	BalanceDeposit BalanceKind = "deposit"
	BalanceTrade   BalanceKind = "trade"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func ParseSide(raw string) (Side, bool) {
	switch Side(strings.ToLower(strings.TrimSpace(raw))) {
	case SideBuy:
		return SideBuy, true
	case SideSell:
		return SideSell, true
	default:
		return "", false
	}
}

type TradeStatus string

const (
	TradePending   TradeStatus = "pending"
	TradeCompleted TradeStatus = "completed"
)

type TradeResult string

const (
	ResultWin  TradeResult = "win"
	ResultLoss TradeResult = "loss"
)

type Trade struct {
	ID        string      `json:"id"`
	Symbol    string      `json:"symbol"`
	Type      Side        `json:"type"`
	Amount    float64     `json:"amount"`
	Duration  int         `json:"duration"`
	Timestamp time.Time   `json:"timestamp"`
	Status    TradeStatus `json:"status"`
	TimeLeft  int         `json:"timeLeft"`
	Result    TradeResult `json:"result,omitempty"`
	Profit    float64     `json:"profit,omitempty"`
	Completed bool        `json:"completed"`
}

// Pending reports whether the trade still awaits settlement. A trade with the
// completed guard set is never pending, whatever its status field says.
func (t Trade) Pending() bool {
	switch t.Status {
	case TradePending:
		return !t.Completed
	case TradeCompleted:
		return false
	default:
		return !t.Completed
	}
}

// Age is how long ago the trade was opened.
func (t Trade) Age(now time.Time) time.Duration {
	return now.Sub(t.Timestamp)
}

// Settle moves the trade to its terminal state.
func (t *Trade) Settle(result TradeResult, profit float64) {
	t.Status = TradeCompleted
	t.Result = result
	t.Profit = profit
	t.TimeLeft = 0
	t.Completed = true
}

// Normalize repairs records written by older clients: unknown statuses are
// treated as pending unless the completed guard is set, and timeLeft is
// floored at zero.
func (t *Trade) Normalize() {
	switch t.Status {
	case TradePending, TradeCompleted:
	default:
		t.Status = TradePending
	}
	if t.Completed {
		t.Status = TradeCompleted
	}
	if t.TimeLeft < 0 || t.Status == TradeCompleted {
		t.TimeLeft = 0
	}
}

type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestCompleted RequestStatus = "completed"
)

type Deposit struct {
	ID        string        `json:"id"`
	Amount    float64       `json:"amount"`
	Method    string        `json:"paymentMethod"`
	Status    RequestStatus `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
}

type Withdrawal struct {
	ID        string        `json:"id"`
	Amount    float64       `json:"amount"`
	Currency  string        `json:"currency"`
	ToAddress string        `json:"toAddress"`
	Status    RequestStatus `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
}
