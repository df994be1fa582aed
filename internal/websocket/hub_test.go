package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newDetachedClient создает клиента без сетевого соединения
func newDetachedClient(hub *Hub, userID string) *Client {
	return &Client{
		UserID:       userID,
		ConnectionID: userID + "-conn",
		hub:          hub,
		send:         make(chan []byte, 2),
		logger:       zap.NewNop(),
	}
}

func runHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func TestHub_SendToConnectedUser(t *testing.T) {
	hub := runHub(t)
	manager := NewManager(hub, zap.NewNop())
	client := newDetachedClient(hub, "7")
	hub.register <- client

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	err := manager.SendEventToUser("7", "results_ready", map[string]int{"assessmentId": 42})
	require.NoError(t, err)

	var event struct {
		Type string         `json:"type"`
		Data map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(<-client.send, &event))
	assert.Equal(t, "results_ready", event.Type)
	assert.Equal(t, 42, event.Data["assessmentId"])
}

func TestHub_UserNotConnected(t *testing.T) {
	hub := runHub(t)

	err := hub.SendJSONToUser("99", Event{Type: "x"})

	assert.True(t, errors.Is(err, ErrUserNotConnected))
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := runHub(t)
	client := newDetachedClient(hub, "7")
	hub.register <- client
	hub.unregister <- client

	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	_, open := <-client.send
	assert.False(t, open, "Канал отправки закрывается при отключении")
}

func TestHub_FullBufferDropsMessage(t *testing.T) {
	hub := runHub(t)
	client := newDetachedClient(hub, "7")
	hub.register <- client
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.SendJSONToUser("7", Event{Type: "a"}))
	require.NoError(t, hub.SendJSONToUser("7", Event{Type: "b"}))

	err := hub.SendJSONToUser("7", Event{Type: "c"})
	assert.Error(t, err, "Переполненный буфер не блокирует отправителя")
}

func TestManager_UnknownMessageKeepsConnection(t *testing.T) {
	hub := runHub(t)
	manager := NewManager(hub, zap.NewNop())
	client := newDetachedClient(hub, "7")
	hub.register <- client
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	err := manager.HandleMessage([]byte(`{"type":"quiz:join","data":{}}`), client)
	assert.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal(<-client.send, &event))
	assert.Equal(t, SERVER_ERROR, event.Type)

	err = manager.HandleMessage([]byte(`not json`), client)
	assert.Error(t, err)
}
