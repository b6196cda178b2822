package websocket

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTestHub запускает хаб без очистки и останавливает его по завершении теста
func startTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(0, 0)
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

// registerTestClient регистрирует клиента без сетевого соединения
func registerTestClient(t *testing.T, hub *Hub, userID uint, bufferSize int) *Client {
	t.Helper()
	client := NewClient(hub, nil, userID, "player", ClientConfig{BufferSize: bufferSize})
	require.NoError(t, hub.Register(client), "Регистрация клиента не должна завершаться ошибкой")
	return client
}

// readEvent вычитывает одно событие из буфера клиента
func readEvent(t *testing.T, client *Client) Event {
	t.Helper()
	select {
	case raw, ok := <-client.send:
		require.True(t, ok, "Канал отправки не должен быть закрыт")
		var event Event
		require.NoError(t, json.Unmarshal(raw, &event))
		return event
	case <-time.After(time.Second):
		t.Fatal("Событие не получено")
		return Event{}
	}
}

func TestHub_BroadcastToRoom(t *testing.T) {
	// Arrange
	hub := startTestHub(t)
	c1 := registerTestClient(t, hub, 1, 8)
	c2 := registerTestClient(t, hub, 2, 8)
	outsider := registerTestClient(t, hub, 3, 8)
	hub.JoinRoom("game-1", c1.ID(), c2.ID())

	// Act
	delivered, err := hub.BroadcastToRoom("game-1", []byte(`{"type":"score_update","data":{}}`))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, delivered, "Сообщение должно дойти до двух участников")
	assert.Equal(t, "score_update", readEvent(t, c1).Type)
	assert.Equal(t, "score_update", readEvent(t, c2).Type)
	assert.Len(t, outsider.send, 0, "Клиент вне комнаты не должен получать сообщение")
}

func TestHub_BroadcastToUnknownRoom(t *testing.T) {
	hub := startTestHub(t)

	delivered, err := hub.BroadcastToRoom("game-missing", []byte(`{}`))

	assert.Error(t, err, "Рассылка в несуществующую комнату должна вернуть ошибку")
	assert.Equal(t, 0, delivered)
}

func TestHub_JoinRoomSkipsUnknownConnections(t *testing.T) {
	hub := startTestHub(t)
	c1 := registerTestClient(t, hub, 1, 8)

	hub.JoinRoom("game-1", c1.ID(), "missing-conn")

	assert.ElementsMatch(t, []string{c1.ID()}, hub.RoomMembers("game-1"))
}

func TestHub_CloseRoomKeepsClients(t *testing.T) {
	hub := startTestHub(t)
	c1 := registerTestClient(t, hub, 1, 8)
	hub.JoinRoom("game-1", c1.ID())

	hub.CloseRoom("game-1")

	assert.Equal(t, 0, hub.RoomCount(), "Комната должна быть удалена")
	assert.Equal(t, 1, hub.ClientCount(), "Клиент должен остаться подключенным")
	assert.False(t, c1.IsSendClosed())
}

func TestHub_UnregisterRemovesFromRoomsAndNotifies(t *testing.T) {
	// Arrange
	hub := NewHub(0, 0)
	var (
		mu           sync.Mutex
		disconnected []uint
	)
	notified := make(chan struct{}, 2)
	hub.OnDisconnect(func(c *Client) {
		mu.Lock()
		disconnected = append(disconnected, c.UserID)
		mu.Unlock()
		notified <- struct{}{}
	})
	go hub.Run()
	t.Cleanup(hub.Stop)

	c1 := registerTestClient(t, hub, 1, 8)
	c2 := registerTestClient(t, hub, 2, 8)
	hub.JoinRoom("game-1", c1.ID(), c2.ID())

	// Act
	hub.Unregister(c1)
	hub.Unregister(c1)

	// Assert
	select {
	case <-notified:
	case <-time.After(time.Second):
		t.Fatal("Колбэк отключения не вызван")
	}
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{c2.ID()}, hub.RoomMembers("game-1"))
	assert.True(t, c1.IsSendClosed(), "Канал отправки отключенного клиента должен быть закрыт")

	// Повторный Unregister не должен вызывать колбэк второй раз
	select {
	case <-notified:
		t.Fatal("Колбэк отключения вызван повторно")
	case <-time.After(50 * time.Millisecond):
	}
	mu.Lock()
	assert.Equal(t, []uint{1}, disconnected)
	mu.Unlock()
}

func TestHub_SendToClosedClient(t *testing.T) {
	hub := startTestHub(t)
	c1 := registerTestClient(t, hub, 1, 8)
	c1.CloseSend()

	err := c1.SendEvent("score_update", nil)

	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestHub_SlowClientIsDisconnected(t *testing.T) {
	// Arrange
	hub := startTestHub(t)
	slow := registerTestClient(t, hub, 1, 1)
	require.NoError(t, slow.SendEvent("fill", nil))

	// Act
	var lastErr error
	for i := 0; i < maxBufferWarnings; i++ {
		lastErr = slow.SendEvent("overflow", nil)
	}

	// Assert
	assert.ErrorIs(t, lastErr, ErrSendBufferFull)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond,
		"Медленный клиент должен быть отключен")
}

func TestHub_SendToClient(t *testing.T) {
	hub := startTestHub(t)
	c1 := registerTestClient(t, hub, 1, 8)

	require.NoError(t, hub.SendToClient(c1.ID(), "waiting", map[string]string{"topic": "go"}))
	assert.Error(t, hub.SendToClient("missing", "waiting", nil))

	event := readEvent(t, c1)
	assert.Equal(t, "waiting", event.Type)
}

func TestHub_RegisterAfterStop(t *testing.T) {
	hub := NewHub(0, 0)
	go hub.Run()
	hub.Stop()

	client := NewClient(hub, nil, 1, "player", ClientConfig{})
	err := hub.Register(client)

	assert.ErrorIs(t, err, ErrHubStopped)
}

func TestHub_MetricsIncludeRoomsAndClients(t *testing.T) {
	hub := startTestHub(t)
	c1 := registerTestClient(t, hub, 1, 8)
	hub.JoinRoom("game-1", c1.ID())
	_, err := hub.BroadcastToRoom("game-1", []byte(`{"type":"new_question"}`))
	require.NoError(t, err)

	metrics := hub.GetMetrics()

	assert.Equal(t, 1, metrics["rooms"])
	assert.Equal(t, 1, metrics["clients"])
	stats, ok := metrics["message_type_stats"].(map[string]int64)
	require.True(t, ok)
	assert.Equal(t, int64(1), stats["new_question"])
}
