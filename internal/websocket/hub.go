package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// ErrHubStopped возвращается при регистрации в остановленном хабе
var ErrHubStopped = errors.New("websocket hub is stopped")

// registration - запрос на регистрацию клиента с сигналом завершения
type registration struct {
	client *Client
	done   chan struct{}
}

// Hub хранит соединения и комнаты рассылки.
// Регистрация и отключение проходят через цикл Run, рассылки читают карты под RLock.
type Hub struct {
	mu          sync.RWMutex
	clients     map[string]*Client            // connID -> клиент
	rooms       map[string]map[string]*Client // комната -> connID -> клиент
	clientRooms map[string]map[string]struct{}

	register   chan registration
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	metrics      *HubMetrics
	onDisconnect []func(*Client)

	// Настройки для очистки
	cleanupInterval   time.Duration
	inactivityTimeout time.Duration
}

// NewHub создает хаб. cleanupInterval <= 0 отключает очистку неактивных клиентов.
func NewHub(cleanupInterval, inactivityTimeout time.Duration) *Hub {
	return &Hub{
		clients:           make(map[string]*Client),
		rooms:             make(map[string]map[string]*Client),
		clientRooms:       make(map[string]map[string]struct{}),
		register:          make(chan registration, 100),
		unregister:        make(chan *Client, 256),
		done:              make(chan struct{}),
		metrics:           NewHubMetrics(),
		cleanupInterval:   cleanupInterval,
		inactivityTimeout: inactivityTimeout,
	}
}

// OnDisconnect добавляет колбэк, вызываемый после отключения клиента.
// Колбэки нужно добавить до запуска Run.
func (h *Hub) OnDisconnect(fn func(*Client)) {
	h.onDisconnect = append(h.onDisconnect, fn)
}

// Run запускает цикл обработки регистраций хаба
func (h *Hub) Run() {
	var cleanup <-chan time.Time
	if h.cleanupInterval > 0 {
		ticker := time.NewTicker(h.cleanupInterval)
		defer ticker.Stop()
		cleanup = ticker.C
		log.Printf("[Hub] Очистка неактивных клиентов каждые %v (таймаут %v)", h.cleanupInterval, h.inactivityTimeout)
	}

	for {
		select {
		case r := <-h.register:
			h.handleRegister(r.client)
			close(r.done)
		case client := <-h.unregister:
			h.handleUnregister(client)
		case <-cleanup:
			h.cleanupInactiveClients()
		case <-h.done:
			log.Printf("[Hub] Получен сигнал завершения работы, останавливаемся")
			h.cleanupAllClients()
			return
		}
	}
}

// Stop останавливает цикл хаба и закрывает все соединения
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Register регистрирует клиента и ждет завершения регистрации
func (h *Hub) Register(client *Client) error {
	r := registration{client: client, done: make(chan struct{})}
	select {
	case h.register <- r:
	case <-h.done:
		return ErrHubStopped
	}
	select {
	case <-r.done:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for client %s registration", client.ConnectionID)
	}
}

// Unregister ставит клиента в очередь на отключение. Повторный вызов безопасен.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	h.clients[client.ConnectionID] = client
	h.mu.Unlock()

	client.touch()
	h.metrics.IncrementTotalConnections()
	log.Printf("[Hub] Клиент %d зарегистрирован (Conn: %s)", client.UserID, client.ConnectionID)
}

// handleUnregister удаляет клиента из хаба и всех комнат, затем вызывает колбэки отключения
func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ConnectionID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client.ConnectionID)
	for room := range h.clientRooms[client.ConnectionID] {
		if members, ok := h.rooms[room]; ok {
			delete(members, client.ConnectionID)
		}
	}
	delete(h.clientRooms, client.ConnectionID)
	h.mu.Unlock()

	if client.conn != nil {
		client.conn.Close()
	}
	client.CloseSend()
	h.metrics.DecrementActiveConnections()
	log.Printf("[Hub] Клиент %d отключен (Conn: %s)", client.UserID, client.ConnectionID)

	for _, fn := range h.onDisconnect {
		fn(client)
	}
}

// cleanupInactiveClients отключает клиентов без активности дольше inactivityTimeout
func (h *Hub) cleanupInactiveClients() {
	if h.inactivityTimeout <= 0 {
		return
	}
	deadline := time.Now().Add(-h.inactivityTimeout)

	h.mu.RLock()
	var stale []*Client
	for _, c := range h.clients {
		if c.LastActivity().Before(deadline) {
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		log.Printf("[Hub] Клиент %d неактивен с %s, отключаем", c.UserID, c.LastActivity().Format(time.RFC3339))
		h.handleUnregister(c)
	}
	h.metrics.AddInactiveClientsRemoved(int64(len(stale)))
	h.metrics.UpdateLastCleanupTime()
}

func (h *Hub) cleanupAllClients() {
	h.mu.RLock()
	all := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()

	for _, c := range all {
		h.handleUnregister(c)
	}
}

// JoinRoom добавляет зарегистрированные соединения в комнату
func (h *Hub) JoinRoom(room string, connIDs ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Client, len(connIDs))
		h.rooms[room] = members
	}
	for _, id := range connIDs {
		client, ok := h.clients[id]
		if !ok {
			log.Printf("[Hub] Соединение %s не найдено, в комнату %s не добавлено", id, room)
			continue
		}
		members[id] = client
		if h.clientRooms[id] == nil {
			h.clientRooms[id] = make(map[string]struct{})
		}
		h.clientRooms[id][room] = struct{}{}
	}
}

// CloseRoom удаляет комнату. Соединения остаются подключенными.
func (h *Hub) CloseRoom(room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id := range h.rooms[room] {
		if rooms, ok := h.clientRooms[id]; ok {
			delete(rooms, room)
			if len(rooms) == 0 {
				delete(h.clientRooms, id)
			}
		}
	}
	delete(h.rooms, room)
}

// BroadcastToRoom отправляет готовое сообщение всем участникам комнаты.
// Возвращает количество клиентов, получивших сообщение в буфер.
func (h *Hub) BroadcastToRoom(room string, message []byte) (int, error) {
	h.mu.RLock()
	members, ok := h.rooms[room]
	if !ok {
		h.mu.RUnlock()
		return 0, fmt.Errorf("room %s not found", room)
	}
	targets := make([]*Client, 0, len(members))
	for _, c := range members {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if err := c.enqueue(message); err != nil {
			log.Printf("[Hub] Комната %s: не удалось отправить клиенту %d (Conn: %s): %v", room, c.UserID, c.ConnectionID, err)
			continue
		}
		delivered++
	}
	h.metrics.IncrementMessageTypeCount(messageTypeFromBytes(message))
	return delivered, nil
}

// SendToClient отправляет событие конкретному соединению
func (h *Hub) SendToClient(connID, eventType string, data interface{}) error {
	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("connection %s not found", connID)
	}
	return client.SendEvent(eventType, data)
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomCount возвращает количество открытых комнат
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// RoomMembers возвращает ID соединений комнаты
func (h *Hub) RoomMembers(room string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.rooms[room]))
	for id := range h.rooms[room] {
		ids = append(ids, id)
	}
	return ids
}

// GetMetrics возвращает метрики хаба
func (h *Hub) GetMetrics() map[string]interface{} {
	metrics := h.metrics.GetAllMetrics()
	metrics["rooms"] = h.RoomCount()
	metrics["clients"] = h.ClientCount()
	return metrics
}

// messageTypeFromBytes пытается извлечь тип сообщения из JSON байтов
func messageTypeFromBytes(message []byte) string {
	var event struct {
		Type string `json:"type"`
	}
	if json.Unmarshal(message, &event) == nil && event.Type != "" {
		return event.Type
	}
	return "unknown"
}
