package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrUserNotConnected - у пользователя нет активных соединений
var ErrUserNotConnected = fmt.Errorf("user is not connected")

// Hub хранит активные соединения, сгруппированные по пользователю
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client

	logger *zap.Logger
}

// NewHub создает хаб. Run должен быть запущен до подключения клиентов.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.Named("WebSocketHub"),
	}
}

// Run обрабатывает регистрацию клиентов до отмены ctx
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.mu.Lock()
			conns, ok := h.clients[client.UserID]
			if !ok {
				conns = make(map[*Client]struct{})
				h.clients[client.UserID] = conns
			}
			conns[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("[WebSocketHub] client registered",
				zap.String("user_id", client.UserID), zap.String("conn_id", client.ConnectionID))
		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.clients[client.UserID]
	if !ok {
		return
	}
	if _, exists := conns[client]; !exists {
		return
	}
	delete(conns, client)
	if len(conns) == 0 {
		delete(h.clients, client.UserID)
	}
	client.CloseSend()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, conns := range h.clients {
		for client := range conns {
			client.CloseSend()
		}
		delete(h.clients, userID)
	}
}

// SendJSONToUser отправляет сообщение во все соединения пользователя
func (h *Hub) SendJSONToUser(userID string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	conns := h.clients[userID]
	if len(conns) == 0 {
		return ErrUserNotConnected
	}

	delivered := 0
	for client := range conns {
		if client.enqueue(data) {
			delivered++
		} else {
			h.logger.Warn("[WebSocketHub] client buffer full, message dropped",
				zap.String("user_id", userID), zap.String("conn_id", client.ConnectionID))
		}
	}
	if delivered == 0 {
		return fmt.Errorf("message to user %s dropped: all buffers are full", userID)
	}
	return nil
}

// ClientCount возвращает количество активных соединений
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for _, conns := range h.clients {
		count += len(conns)
	}
	return count
}

// UserCount возвращает количество подключенных пользователей
func (h *Hub) UserCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
