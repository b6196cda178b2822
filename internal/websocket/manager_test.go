package websocket

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_DispatchesByType(t *testing.T) {
	// Arrange
	hub := startTestHub(t)
	manager := NewManager(hub)
	client := registerTestClient(t, hub, 7, 8)

	var received struct {
		Topic string `json:"topic"`
	}
	var sender *Client
	manager.RegisterHandler("find_match", func(data json.RawMessage, c *Client) error {
		sender = c
		return json.Unmarshal(data, &received)
	})

	// Act
	err := manager.HandleMessage([]byte(`{"type":"find_match","data":{"topic":"golang"}}`), client)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "golang", received.Topic)
	assert.Same(t, client, sender)
}

func TestManager_UnknownTypeSendsError(t *testing.T) {
	hub := startTestHub(t)
	manager := NewManager(hub)
	client := registerTestClient(t, hub, 7, 8)

	err := manager.HandleMessage([]byte(`{"type":"launch_rockets"}`), client)

	require.NoError(t, err, "Неизвестный тип не должен закрывать соединение")
	event := readEvent(t, client)
	assert.Equal(t, EventServerError, event.Type)
	data, ok := event.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, ErrCodeUnknownMessageType, data["code"])
}

func TestManager_InvalidJSONSendsError(t *testing.T) {
	hub := startTestHub(t)
	manager := NewManager(hub)
	client := registerTestClient(t, hub, 7, 8)

	err := manager.HandleMessage([]byte(`{not json`), client)

	require.NoError(t, err)
	event := readEvent(t, client)
	assert.Equal(t, EventServerError, event.Type)
	data := event.Data.(map[string]interface{})
	assert.Equal(t, ErrCodeInvalidMessageFormat, data["code"])
}

func TestManager_MissingDataIsEmptyObject(t *testing.T) {
	hub := startTestHub(t)
	manager := NewManager(hub)
	client := registerTestClient(t, hub, 7, 8)

	var raw json.RawMessage
	manager.RegisterHandler("cancel_match", func(data json.RawMessage, c *Client) error {
		raw = data
		return nil
	})

	require.NoError(t, manager.HandleMessage([]byte(`{"type":"cancel_match"}`), client))
	assert.JSONEq(t, `{}`, string(raw))
}

func TestManager_HandlerErrorIsReturned(t *testing.T) {
	hub := startTestHub(t)
	manager := NewManager(hub)
	client := registerTestClient(t, hub, 7, 8)
	boom := errors.New("boom")
	manager.RegisterHandler("player_ready", func(data json.RawMessage, c *Client) error {
		return boom
	})

	err := manager.HandleMessage([]byte(`{"type":"player_ready","data":{}}`), client)

	assert.ErrorIs(t, err, boom)
}

func TestManager_BroadcastEventToRoom(t *testing.T) {
	// Arrange
	hub := startTestHub(t)
	manager := NewManager(hub)
	c1 := registerTestClient(t, hub, 1, 8)
	c2 := registerTestClient(t, hub, 2, 8)
	manager.JoinRoom("game-abc", c1.ID(), c2.ID())

	// Act
	err := manager.BroadcastEventToRoom("game-abc", "times_up", map[string]string{"correctAnswer": "B"})

	// Assert
	require.NoError(t, err)
	for _, c := range []*Client{c1, c2} {
		event := readEvent(t, c)
		assert.Equal(t, "times_up", event.Type)
		data := event.Data.(map[string]interface{})
		assert.Equal(t, "B", data["correctAnswer"])
	}

	manager.CloseRoom("game-abc")
	assert.Error(t, manager.BroadcastEventToRoom("game-abc", "times_up", nil),
		"После закрытия комнаты рассылка должна вернуть ошибку")
}
