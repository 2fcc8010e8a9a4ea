package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"qxtrader/internal/models"
	"qxtrader/internal/store"
)

type HistoryKind string

const (
	HistoryAll        HistoryKind = "all"
	HistoryDeposit    HistoryKind = "deposit"
	HistoryWithdrawal HistoryKind = "withdrawal"
	HistoryTrade      HistoryKind = "trade"
)

func ParseHistoryKind(raw string) (HistoryKind, error) {
	switch kind := HistoryKind(strings.ToLower(strings.TrimSpace(raw))); kind {
	case "":
		return HistoryAll, nil
	case HistoryAll, HistoryDeposit, HistoryWithdrawal, HistoryTrade:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown history filter %q", raw)
	}
}

const DefaultHistoryPageSize = 8

type HistoryEntry struct {
	ID            string      `json:"id"`
	Order         string      `json:"order"`
	Kind          HistoryKind `json:"type"`
	Status        string      `json:"status"`
	PaymentSystem string      `json:"paymentSystem"`
	Amount        float64     `json:"amount"`
	Timestamp     time.Time   `json:"timestamp"`
}

type HistoryQuery struct {
	Kind     HistoryKind
	Search   string
	Page     int
	PageSize int
}

type HistoryPage struct {
	Entries    []HistoryEntry `json:"entries"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	Total      int            `json:"total"`
	TotalPages int            `json:"totalPages"`
}

// History merges deposits, withdrawals and trades into one newest first
// listing. Withdrawals are shown as negative amounts and trades carry their
// profit.
func (s *AccountService) History(ctx context.Context, query HistoryQuery) (HistoryPage, error) {
	if query.Kind == "" {
		query.Kind = HistoryAll
	}
	if query.PageSize <= 0 {
		query.PageSize = DefaultHistoryPageSize
	}
	if query.Page <= 0 {
		query.Page = 1
	}

	s.mu.Lock()
	trades, err := s.loadTrades(ctx)
	if err != nil {
		s.mu.Unlock()
		return HistoryPage{}, err
	}
	deposits, err := loadList[models.Deposit](ctx, s, store.KeyDeposits)
	if err != nil {
		s.mu.Unlock()
		return HistoryPage{}, err
	}
	withdrawals, err := loadList[models.Withdrawal](ctx, s, store.KeyWithdrawals)
	s.mu.Unlock()
	if err != nil {
		return HistoryPage{}, err
	}

	entries := make([]HistoryEntry, 0, len(trades)+len(deposits)+len(withdrawals))
	for _, trade := range trades {
		status := "pending"
		if !trade.Pending() {
			status = "succeeded"
		}
		entries = append(entries, HistoryEntry{
			ID:            trade.ID,
			Order:         orderCode(trade.ID),
			Kind:          HistoryTrade,
			Status:        status,
			PaymentSystem: "Trading",
			Amount:        trade.Profit,
			Timestamp:     trade.Timestamp,
		})
	}
	for _, w := range withdrawals {
		entries = append(entries, HistoryEntry{
			ID:            w.ID,
			Order:         orderCode(w.ID),
			Kind:          HistoryWithdrawal,
			Status:        requestStatus(w.Status),
			PaymentSystem: "Crypto (" + w.Currency + ")",
			Amount:        -w.Amount,
			Timestamp:     w.Timestamp,
		})
	}
	for _, d := range deposits {
		entries = append(entries, HistoryEntry{
			ID:            d.ID,
			Order:         orderCode(d.ID),
			Kind:          HistoryDeposit,
			Status:        requestStatus(d.Status),
			PaymentSystem: d.Method,
			Amount:        d.Amount,
			Timestamp:     d.Timestamp,
		})
	}

	search := strings.ToLower(strings.TrimSpace(query.Search))
	filtered := entries[:0]
	for _, entry := range entries {
		if query.Kind != HistoryAll && entry.Kind != query.Kind {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(entry.Order), search) &&
			!strings.Contains(strings.ToLower(entry.PaymentSystem), search) {
			continue
		}
		filtered = append(filtered, entry)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.After(filtered[j].Timestamp)
	})

	page := HistoryPage{
		Page:     query.Page,
		PageSize: query.PageSize,
		Total:    len(filtered),
	}
	page.TotalPages = (page.Total + page.PageSize - 1) / page.PageSize
	start := (page.Page - 1) * page.PageSize
	if start > len(filtered) {
		start = len(filtered)
	}
	end := start + page.PageSize
	if end > len(filtered) {
		end = len(filtered)
	}
	page.Entries = append([]HistoryEntry{}, filtered[start:end]...)
	return page, nil
}

func orderCode(id string) string {
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	return strings.ToUpper(id)
}

func requestStatus(status models.RequestStatus) string {
	switch status {
	case models.RequestPending:
		return "pending"
	case models.RequestCompleted:
		return "succeeded"
	default:
		return "succeeded"
	}
}
