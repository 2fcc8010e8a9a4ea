package websocket

import (
	"encoding/json"
	"sync"
)

type BalanceUpdate struct {
	AccountID       string `json:"account_id"`
	LiveBalance     string `json:"live_balance"`
	DemoBalance     string `json:"demo_balance"`
	TradableBalance string `json:"tradable_balance"`
}

type TradeUpdate struct {
	TradeID  string `json:"trade_id"`
	Symbol   string `json:"symbol"`
	Type     string `json:"type"`
	Status   string `json:"status"`
	TimeLeft int    `json:"time_left"`
	Result   string `json:"result,omitempty"`
	Profit   string `json:"profit,omitempty"`
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][client] = struct{}{}
}

func (h *Hub) Unregister(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		return
	}
	delete(h.clients[userID], client)
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

func (h *Hub) Subscribed(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

func (h *Hub) BroadcastBalance(userID string, update BalanceUpdate) {
	h.broadcast(userID, envelope{Type: "balance", Data: update})
}

func (h *Hub) BroadcastTrade(userID string, update TradeUpdate) {
	h.broadcast(userID, envelope{Type: "trade", Data: update})
}

// broadcast never blocks: a client whose buffer is full misses the message
// and catches up on the next publish.
func (h *Hub) broadcast(userID string, message envelope) {
	payload, _ := json.Marshal(message)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[userID] {
		client.enqueue(payload)
	}
}

func (c *Client) enqueue(payload []byte) {
	select {
	case c.send <- payload:
	default:
	}
}
