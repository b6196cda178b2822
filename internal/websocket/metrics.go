package websocket

import (
	"sync"
	"time"
)

// HubMetrics представляет агрегированные метрики WebSocket-сервера
type HubMetrics struct {
	totalConnections       int64     // Общее количество подключений за все время
	activeConnections      int64     // Текущее количество активных подключений
	messagesSent           int64     // Общее количество отправленных сообщений
	messagesReceived       int64     // Общее количество полученных сообщений
	connectionErrors       int64     // Общее количество ошибок соединений
	inactiveClientsRemoved int64     // Общее количество удаленных неактивных клиентов
	startTime              time.Time // Время запуска сервера
	lastCleanupTime        time.Time // Время последней очистки

	// Счетчики рассылок в комнаты по типам событий
	messageTypeCounts map[string]int64

	mu sync.RWMutex
}

// NewHubMetrics создает новый экземпляр метрик Hub
func NewHubMetrics() *HubMetrics {
	return &HubMetrics{
		startTime:         time.Now(),
		lastCleanupTime:   time.Now(),
		messageTypeCounts: make(map[string]int64),
	}
}

// IncrementTotalConnections увеличивает счетчик общего количества подключений
func (m *HubMetrics) IncrementTotalConnections() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalConnections++
	m.activeConnections++
}

// DecrementActiveConnections уменьшает счетчик активных подключений
func (m *HubMetrics) DecrementActiveConnections() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeConnections > 0 {
		m.activeConnections--
	}
}

// AddMessageSent увеличивает счетчик отправленных сообщений
func (m *HubMetrics) AddMessageSent(count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messagesSent += count
}

// AddMessageReceived увеличивает счетчик полученных сообщений
func (m *HubMetrics) AddMessageReceived() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messagesReceived++
}

// AddConnectionError увеличивает счетчик ошибок соединений
func (m *HubMetrics) AddConnectionError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectionErrors++
}

// AddInactiveClientsRemoved увеличивает счетчик удаленных неактивных клиентов
func (m *HubMetrics) AddInactiveClientsRemoved(count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inactiveClientsRemoved += count
}

// UpdateLastCleanupTime обновляет время последней очистки
func (m *HubMetrics) UpdateLastCleanupTime() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCleanupTime = time.Now()
}

// IncrementMessageTypeCount увеличивает счетчик сообщений определенного типа
func (m *HubMetrics) IncrementMessageTypeCount(messageType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messageTypeCounts[messageType]++
}

// GetAllMetrics возвращает все метрики в формате карты для JSON-ответа
func (m *HubMetrics) GetAllMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	messageStats := make(map[string]int64, len(m.messageTypeCounts))
	for messageType, count := range m.messageTypeCounts {
		messageStats[messageType] = count
	}

	return map[string]interface{}{
		"total_connections":        m.totalConnections,
		"active_connections":       m.activeConnections,
		"messages_sent":            m.messagesSent,
		"messages_received":        m.messagesReceived,
		"connection_errors":        m.connectionErrors,
		"inactive_clients_removed": m.inactiveClientsRemoved,
		"uptime_seconds":           time.Since(m.startTime).Seconds(),
		"start_time":               m.startTime.Format(time.RFC3339),
		"last_cleanup":             m.lastCleanupTime.Format(time.RFC3339),
		"message_type_stats":       messageStats,
	}
}
