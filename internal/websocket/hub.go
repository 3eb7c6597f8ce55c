// Package websocket pushes balance changes to connected dashboards.
package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"ledgerbank/internal/money"

	"github.com/shopspring/decimal"
)

// AllAccounts subscribes a client to every account, used for admin sessions.
const AllAccounts = "*"

type BalanceUpdate struct {
	AccountID string    `json:"account_id"`
	Balance   string    `json:"balance"`
	At        time.Time `json:"at"`
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	now     func() time.Time
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		now:     time.Now,
	}
}

func (h *Hub) Register(accountID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[accountID] == nil {
		h.clients[accountID] = make(map[*Client]struct{})
	}
	h.clients[accountID][client] = struct{}{}
}

func (h *Hub) Unregister(accountID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[accountID] == nil {
		return
	}
	delete(h.clients[accountID], client)
	if len(h.clients[accountID]) == 0 {
		delete(h.clients, accountID)
	}
}

func (h *Hub) Subscribers(accountID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[accountID])
}

// BroadcastBalance sends the new balance to subscribers of accountID and to
// AllAccounts subscribers. Slow clients drop the message instead of blocking
// the writer.
func (h *Hub) BroadcastBalance(accountID string, balance decimal.Decimal) {
	payload, _ := json.Marshal(BalanceUpdate{
		AccountID: accountID,
		Balance:   money.Format(balance),
		At:        h.now().UTC(),
	})
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, key := range []string{accountID, AllAccounts} {
		for client := range h.clients[key] {
			select {
			case client.send <- payload:
			default:
			}
		}
	}
}
