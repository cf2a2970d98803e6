package handlers

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/ads-marketplace/campaign-backend/internal/auth"
	"github.com/ads-marketplace/campaign-backend/internal/events"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// WSHub pushes marketplace events to every client and notifications to
// the wallet they are addressed to.
type WSHub struct {
	jwtSecret   string
	subscriber  events.Subscriber
	log         *zap.Logger
	mu          sync.RWMutex
	connections map[string][]*websocket.Conn // lower-case address -> conns
}

func NewWSHub(jwtSecret string, subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		jwtSecret:   jwtSecret,
		subscriber:  subscriber,
		log:         log,
		connections: make(map[string][]*websocket.Conn),
	}
}

func (h *WSHub) Start(ctx context.Context) {
	if err := h.subscriber.Subscribe(ctx, events.StreamMarketplace, h.broadcast); err != nil {
		h.log.Error("failed to subscribe to marketplace events", zap.Error(err))
	}
	if err := h.subscriber.Subscribe(ctx, events.StreamNotifications, func(event events.Event) {
		if to := events.Recipient(event); to != "" {
			h.SendToAddress(to, event)
		}
	}); err != nil {
		h.log.Error("failed to subscribe to notifications", zap.Error(err))
	}
}

func (h *WSHub) broadcast(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conns := range h.connections {
		for _, conn := range conns {
			_ = conn.WriteMessage(websocket.TextMessage, data)
		}
	}
}

func (h *WSHub) SendToAddress(address string, event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conn := range h.connections[strings.ToLower(address)] {
		_ = conn.WriteMessage(websocket.TextMessage, data)
	}
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WSHub) HandleWS(conn *websocket.Conn) {
	tokenStr := conn.Query("token")
	if tokenStr == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing token"}`))
		conn.Close()
		return
	}

	claims, err := auth.ParseJWT(h.jwtSecret, tokenStr)
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
		conn.Close()
		return
	}

	key := strings.ToLower(claims.Wallet().Hex())

	h.mu.Lock()
	h.connections[key] = append(h.connections[key], conn)
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		conns := h.connections[key]
		for i, c := range conns {
			if c == conn {
				h.connections[key] = append(conns[:i], conns[i+1:]...)
				break
			}
		}
		if len(h.connections[key]) == 0 {
			delete(h.connections, key)
		}
		h.mu.Unlock()
		conn.Close()
	}()

	// Read loop (keep alive / pings)
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
}
