package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Event представляет структуру WebSocket-сообщения
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Manager обрабатывает входящие WebSocket сообщения и отправляет уведомления
type Manager struct {
	hub            HubInterface
	messageHandler map[string]func(data json.RawMessage, client *Client) error
	logger         *zap.Logger
}

// NewManager создает новый менеджер WebSocket
func NewManager(hub HubInterface, logger *zap.Logger) *Manager {
	m := &Manager{
		hub:            hub,
		messageHandler: make(map[string]func(data json.RawMessage, client *Client) error),
		logger:         logger.Named("WebSocketManager"),
	}
	m.RegisterHandler(CLIENT_PING, func(data json.RawMessage, client *Client) error {
		return m.SendEventToUser(client.UserID, SERVER_PONG, map[string]int64{"ts": time.Now().UnixMilli()})
	})
	return m
}

// RegisterHandler регистрирует обработчик для определенного типа сообщений
func (m *Manager) RegisterHandler(eventType string, handler func(data json.RawMessage, client *Client) error) {
	m.messageHandler[eventType] = handler
}

// HandleMessage обрабатывает входящее сообщение от клиента.
// Возвращает error, если обработка не удалась и соединение нужно закрыть.
func (m *Manager) HandleMessage(message []byte, client *Client) error {
	var event struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(message, &event); err != nil {
		m.logger.Info("[WebSocketManager] invalid message", zap.String("user_id", client.UserID), zap.Error(err))
		m.SendErrorToClient(client, "invalid_message_format", "Invalid JSON format")
		return err
	}

	handler, ok := m.messageHandler[event.Type]
	if !ok {
		// Неизвестный тип - не закрываем соединение
		m.SendErrorToClient(client, "unknown_message_type", fmt.Sprintf("Unknown message type: %s", event.Type))
		return nil
	}
	return handler(event.Data, client)
}

// SendErrorToClient отправляет стандартизированное сообщение об ошибке клиенту.
// Этот метод НЕ закрывает соединение.
func (m *Manager) SendErrorToClient(client *Client, code string, message string) {
	if err := m.SendEventToUser(client.UserID, SERVER_ERROR, map[string]string{
		"code":    code,
		"message": message,
	}); err != nil {
		m.logger.Debug("[WebSocketManager] failed to send error", zap.String("user_id", client.UserID), zap.Error(err))
	}
}

// SendEventToUser отправляет событие всем соединениям пользователя
func (m *Manager) SendEventToUser(userID string, eventType string, data interface{}) error {
	return m.hub.SendJSONToUser(userID, Event{Type: eventType, Data: data})
}

// ClientCount возвращает количество подключенных клиентов
func (m *Manager) ClientCount() int {
	return m.hub.ClientCount()
}
