package websocket

import (
	"encoding/json"
	"fmt"
	"log"
)

// Event представляет структуру WebSocket-сообщения
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// inboundEvent - входящее сообщение, data разбирается обработчиком
type inboundEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Manager маршрутизирует входящие сообщения по типам и рассылает события в комнаты
type Manager struct {
	hub            *Hub
	messageHandler map[string]func(data json.RawMessage, client *Client) error
}

// NewManager создает новый менеджер WebSocket
func NewManager(hub *Hub) *Manager {
	return &Manager{
		hub:            hub,
		messageHandler: make(map[string]func(data json.RawMessage, client *Client) error),
	}
}

// Hub возвращает хаб менеджера
func (m *Manager) Hub() *Hub {
	return m.hub
}

// RegisterHandler регистрирует обработчик для определенного типа сообщений
func (m *Manager) RegisterHandler(eventType string, handler func(data json.RawMessage, client *Client) error) {
	m.messageHandler[eventType] = handler
	log.Printf("[WebSocketManager] Зарегистрирован обработчик для сообщений типа: %s", eventType)
}

// HandleMessage обрабатывает входящее сообщение от клиента.
// Возвращает error, если обработка не удалась и соединение нужно закрыть.
func (m *Manager) HandleMessage(message []byte, client *Client) error {
	var event inboundEvent
	if err := json.Unmarshal(message, &event); err != nil {
		log.Printf("[WebSocketManager] Некорректный JSON от пользователя %d: %v", client.UserID, err)
		m.SendErrorToClient(client, ErrCodeInvalidMessageFormat, "Invalid JSON format")
		return nil
	}

	handler, ok := m.messageHandler[event.Type]
	if !ok {
		log.Printf("[WebSocketManager] Нет обработчика для типа '%s' от пользователя %d", event.Type, client.UserID)
		m.SendErrorToClient(client, ErrCodeUnknownMessageType, fmt.Sprintf("Unknown message type: %s", event.Type))
		return nil
	}

	if len(event.Data) == 0 {
		event.Data = json.RawMessage("{}")
	}
	if err := handler(event.Data, client); err != nil {
		log.Printf("[WebSocketManager] Обработчик '%s' вернул ошибку для пользователя %d: %v", event.Type, client.UserID, err)
		return err
	}
	return nil
}

// SendErrorToClient отправляет стандартизированное сообщение об ошибке клиенту.
// Этот метод НЕ закрывает соединение.
func (m *Manager) SendErrorToClient(client *Client, code string, message string) {
	data := map[string]string{
		"code":    code,
		"message": message,
	}
	if err := client.SendEvent(EventServerError, data); err != nil {
		log.Printf("[WebSocketManager] Не удалось отправить ошибку клиенту %d: %v", client.UserID, err)
	}
}

// JoinRoom добавляет соединения в комнату
func (m *Manager) JoinRoom(room string, connIDs ...string) {
	m.hub.JoinRoom(room, connIDs...)
}

// BroadcastEventToRoom отправляет событие всем соединениям комнаты
func (m *Manager) BroadcastEventToRoom(room string, eventType string, data interface{}) error {
	payload, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal event %s for room %s: %w", eventType, room, err)
	}
	_, err = m.hub.BroadcastToRoom(room, payload)
	return err
}

// CloseRoom удаляет комнату
func (m *Manager) CloseRoom(room string) {
	m.hub.CloseRoom(room)
}

// GetMetrics возвращает текущие метрики WebSocket-системы
func (m *Manager) GetMetrics() map[string]interface{} {
	return m.hub.GetMetrics()
}
