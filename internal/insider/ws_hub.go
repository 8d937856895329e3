// WebSocket hub broadcasting ingested filings and cluster-buy alerts
// in real time. Clients may subscribe to specific tickers via
// ?tickers=AAPL,MSFT; without a filter they receive the full feed.
package insider

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/insiderdesk/signal-engine/internal/metrics"
)

// WSMessage is a JSON message sent to WebSocket clients.
type WSMessage struct {
	Type            string `json:"type"` // "filing_ingested" or "cluster_alert"
	Ticker          string `json:"ticker"`
	TransactionType string `json:"transaction_type,omitempty"`
	InsiderName     string `json:"insider_name,omitempty"`
	Value           string `json:"value,omitempty"`
	TradeDate       string `json:"trade_date,omitempty"`
	DistinctBuyers  int    `json:"distinct_buyers,omitempty"`
}

// wsClient is one connected subscriber. A nil tickers set means the
// client receives every message.
type wsClient struct {
	conn    *websocket.Conn
	tickers map[string]struct{}
}

func (c *wsClient) wants(ticker string) bool {
	if c.tickers == nil {
		return true
	}
	_, ok := c.tickers[ticker]
	return ok
}

// WSHub fans ingested-filing messages out to subscribed clients.
type WSHub struct {
	mu         sync.RWMutex
	clients    map[*wsClient]struct{}
	broadcast  chan WSMessage
	register   chan *wsClient
	unregister chan *wsClient
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*wsClient]struct{}),
		broadcast:  make(chan WSMessage, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
	}
}

// Run starts the hub's main event loop. Must be called in a goroutine.
func (h *WSHub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Inc()
			slog.Info("ws client connected", "total", total, "filtered", c.tickers != nil)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.conn.Close()
				metrics.WebSocketClients.Dec()
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			h.mu.Lock()
			for c := range h.clients {
				if !c.wants(msg.Ticker) {
					continue
				}
				if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
					c.conn.Close()
					delete(h.clients, c)
					metrics.WebSocketClients.Dec()
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues a message for delivery to matching subscribers.
// Drops the message when the buffer is full rather than blocking ingestion.
func (h *WSHub) Broadcast(msg WSMessage) {
	select {
	case h.broadcast <- msg:
	default:
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // Allow all origins during development.
	},
}

const wsReadDeadline = 60 * time.Second

// HandleWS handles WebSocket upgrade requests at GET /api/v1/ws.
// An optional ?tickers=AAPL,MSFT query restricts the feed.
func (h *WSHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}

	client := &wsClient{conn: conn, tickers: parseTickerFilter(r.URL.Query().Get("tickers"))}
	h.register <- client

	// Read pump: keep connection alive and detect disconnects.
	go func() {
		defer func() { h.unregister <- client }()
		conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Ping loop keeps the connection alive through proxies.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			h.mu.RLock()
			_, ok := h.clients[client]
			h.mu.RUnlock()
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}()
}

// parseTickerFilter turns "AAPL, msft" into a subscription set. Returns
// nil (subscribe to everything) when the list is empty or all-blank.
func parseTickerFilter(raw string) map[string]struct{} {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	set := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		t := strings.ToUpper(strings.TrimSpace(part))
		if t != "" {
			set[t] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}
