// Package realtime はWebSocketによる通知のプッシュ配信を提供します。
package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	applog "github.com/trading-academy/academy-web/internal/logger"
	"github.com/trading-academy/academy-web/internal/metrics"
	"github.com/trading-academy/academy-web/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

// Event はクライアントへ送るメッセージです。
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Client はWebSocket接続を持つ単一のクライアントを表します。
type Client struct {
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte
	closed bool
	mu     sync.Mutex
}

// SafeSend は安全にチャネルにメッセージを送信します（closedチェック付き）
func (c *Client) SafeSend(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.Send <- message:
		return true
	default:
		return false // チャネルがフル
	}
}

// SafeClose は安全にチャネルを閉じます
func (c *Client) SafeClose() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.Send)
		c.closed = true
	}
}

// Hub はユーザーごとのWebSocketクライアントを管理します。
// 同じユーザーが複数のタブから接続できるよう、ユーザーIDごとに複数のクライアントを保持します。
type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	logger     *zap.Logger
}

// NewHub は新しい Hub を作成し、メインループをバックグラウンドで開始します。
func NewHub(logger *zap.Logger) *Hub {
	logger = applog.OrNop(logger)
	h := &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		logger:     logger.Named("realtime"),
	}
	go h.Run()
	return h
}

// Run は Hub のメインループです。クライアントの登録と登録解除を処理します。
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			set, ok := h.clients[client.UserID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.UserID] = set
			}
			set[client] = struct{}{}
			h.mu.Unlock()
			metrics.WebsocketClients.Inc()
			h.logger.Debug("client registered", zap.String("user_id", client.UserID))

		case client := <-h.unregister:
			h.mu.Lock()
			if set, ok := h.clients[client.UserID]; ok {
				if _, ok := set[client]; ok {
					delete(set, client)
					client.SafeClose()
					metrics.WebsocketClients.Dec()
				}
				if len(set) == 0 {
					delete(h.clients, client.UserID)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", zap.String("user_id", client.UserID))

		case <-h.quit:
			return
		}
	}
}

// Serve は接続済みの conn をユーザーに紐づけて登録し、読み書きのゴルーチンを開始します。
func (h *Hub) Serve(userID string, conn *websocket.Conn) {
	client := &Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, sendBuffer),
	}

	select {
	case h.register <- client:
	case <-h.quit:
		conn.Close()
		return
	}

	go h.readPump(client)
	go client.writePump(h.logger)
}

// Publish は userID の全クライアントに通知を送ります。送信できたクライアント数を返します。
// 送信バッファが埋まっているクライアントには送りません。
func (h *Hub) Publish(userID string, n models.Notification) int {
	payload, err := json.Marshal(Event{Type: "notification", Data: n})
	if err != nil {
		h.logger.Error("通知のシリアライズに失敗しました", zap.Error(err))
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for client := range h.clients[userID] {
		if client.SafeSend(payload) {
			delivered++
		} else {
			h.logger.Warn("failed to send to client (channel closed or full)", zap.String("user_id", userID))
		}
	}
	return delivered
}

// ClientCount は userID の接続数を返します。
func (h *Hub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Shutdown はメインループを止め、全クライアントを切断します。
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() {
		close(h.quit)

		h.mu.Lock()
		for _, set := range h.clients {
			for client := range set {
				if client.Conn != nil {
					client.Conn.Close()
				}
				client.SafeClose()
				metrics.WebsocketClients.Dec()
			}
		}
		h.clients = make(map[string]map[*Client]struct{})
		h.mu.Unlock()
		h.logger.Info("realtime hub stopped")
	})
}

// readPump はクライアントからのメッセージを読み捨て、切断を検知します。
// 通知はサーバーからの一方向なので、読み込みはPongと切断の検出にだけ使います。
func (h *Hub) readPump(client *Client) {
	defer func() {
		select {
		case h.unregister <- client:
		case <-h.quit:
		}
		client.Conn.Close()
	}()

	client.Conn.SetReadLimit(maxMessageSize)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket unexpected close", zap.String("user_id", client.UserID), zap.Error(err))
			}
			return
		}
	}
}

// writePump は Send チャネルのメッセージを書き込み、定期的にPingを送ります。
func (c *Client) writePump(logger *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub がチャネルを閉じた
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Debug("websocket write failed", zap.String("user_id", c.UserID), zap.Error(err))
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
