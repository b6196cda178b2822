package websocket

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Время, которое разрешено писать сообщение клиенту.
	writeWait = 10 * time.Second

	// Время, которое разрешено клиенту читать следующее сообщение.
	pongWait = 60 * time.Second

	// Максимальный размер входящего сообщения
	maxMessageSize = 4096

	// Размер буфера по умолчанию для канала отправки сообщений клиенту
	defaultClientBufferSize = 64

	// Максимальное количество переполнений буфера подряд до отключения
	maxBufferWarnings = 3
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}

	// ErrClientClosed возвращается при отправке в закрытое соединение
	ErrClientClosed = errors.New("websocket client is closed")
	// ErrSendBufferFull возвращается, когда буфер отправки клиента переполнен
	ErrSendBufferFull = errors.New("websocket client send buffer is full")
)

// ClientConfig содержит настройки для клиента
type ClientConfig struct {
	// BufferSize определяет размер буфера канала отправки сообщений
	BufferSize int

	// PingInterval определяет интервал между ping-сообщениями
	PingInterval time.Duration

	// PongWait определяет время ожидания pong-ответа
	PongWait time.Duration

	// WriteWait определяет тайм-аут для записи сообщений
	WriteWait time.Duration

	// MaxMessageSize определяет максимальный размер сообщения
	MaxMessageSize int64
}

// DefaultClientConfig возвращает конфигурацию клиента по умолчанию
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BufferSize:     defaultClientBufferSize,
		PingInterval:   (pongWait * 9) / 10,
		PongWait:       pongWait,
		WriteWait:      writeWait,
		MaxMessageSize: maxMessageSize,
	}
}

func (c ClientConfig) withDefaults() ClientConfig {
	def := DefaultClientConfig()
	if c.BufferSize <= 0 {
		c.BufferSize = def.BufferSize
	}
	if c.PongWait <= 0 {
		c.PongWait = def.PongWait
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongWait {
		c.PingInterval = (c.PongWait * 9) / 10
	}
	if c.WriteWait <= 0 {
		c.WriteWait = def.WriteWait
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	return c
}

// Client является посредником между WebSocket соединением и hub.
type Client struct {
	// Аутентифицированный пользователь
	UserID   uint
	Username string

	// Уникальный ID для каждого соединения
	ConnectionID string

	hub    *Hub
	conn   *websocket.Conn
	config ClientConfig

	// Буферизованный канал для исходящих сообщений
	send chan []byte
	// Защищает send от записи после закрытия
	sendMu     sync.RWMutex
	sendClosed bool

	// Время последней активности (UnixNano)
	lastActivity atomic.Int64

	// Счетчик переполнений буфера подряд
	bufferWarningCount atomic.Int32
}

// NewClient создает нового клиента
func NewClient(hub *Hub, conn *websocket.Conn, userID uint, username string, config ClientConfig) *Client {
	config = config.withDefaults()
	c := &Client{
		UserID:       userID,
		Username:     username,
		ConnectionID: uuid.New().String(),
		hub:          hub,
		conn:         conn,
		config:       config,
		send:         make(chan []byte, config.BufferSize),
	}
	c.touch()
	return c
}

// ID возвращает идентификатор соединения
func (c *Client) ID() string {
	return c.ConnectionID
}

// SendEvent ставит событие в очередь отправки клиенту
func (c *Client) SendEvent(eventType string, data interface{}) error {
	payload, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", eventType, err)
	}
	return c.enqueue(payload)
}

// enqueue неблокирующе кладет сообщение в буфер.
// После maxBufferWarnings переполнений подряд клиент отключается.
func (c *Client) enqueue(message []byte) error {
	c.sendMu.RLock()
	if c.sendClosed {
		c.sendMu.RUnlock()
		return ErrClientClosed
	}
	select {
	case c.send <- message:
		c.sendMu.RUnlock()
		c.bufferWarningCount.Store(0)
		if c.hub != nil {
			c.hub.metrics.AddMessageSent(1)
		}
		return nil
	default:
	}
	c.sendMu.RUnlock()

	count := c.bufferWarningCount.Add(1)
	log.Printf("[Client %d][Conn %s] Буфер отправки переполнен (%d/%d)", c.UserID, c.ConnectionID, count, maxBufferWarnings)
	if count >= maxBufferWarnings && c.hub != nil {
		c.hub.metrics.AddConnectionError()
		go c.hub.Unregister(c)
	}
	return ErrSendBufferFull
}

// CloseSend безопасно закрывает канал send (только один раз).
// Возвращает true, если канал был закрыт этим вызовом.
func (c *Client) CloseSend() bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return false
	}
	c.sendClosed = true
	close(c.send)
	return true
}

// IsSendClosed проверяет, закрыт ли канал send
func (c *Client) IsSendClosed() bool {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	return c.sendClosed
}

func (c *Client) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity возвращает время последней активности клиента
func (c *Client) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

// readPump читает сообщения от клиента и передает их обработчику
func (c *Client) readPump(messageHandler func(message []byte, client *Client) error) {
	defer func() {
		log.Printf("[Client %d][Conn %s] Read pump остановлен", c.UserID, c.ConnectionID)
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		c.touch()
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[Client %d][Conn %s] Ошибка чтения: %v", c.UserID, c.ConnectionID, err)
			}
			break
		}
		c.touch()
		c.hub.metrics.AddMessageReceived()

		if handlerErr := safeHandleMessage(message, c, messageHandler); handlerErr != nil {
			// Ошибка обработчика фатальна для соединения
			log.Printf("[Client %d][Conn %s] Ошибка обработчика: %v. Закрываем соединение.", c.UserID, c.ConnectionID, handlerErr)
			break
		}
	}
}

// safeHandleMessage - обертка для вызова обработчика с recover
func safeHandleMessage(message []byte, client *Client, messageHandler func(message []byte, client *Client) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC recovered in message handler for UserID: %d, ConnID: %s. Panic: %v\nStack trace:\n%s",
				client.UserID, client.ConnectionID, r, string(debug.Stack()))
			err = fmt.Errorf("panic recovered: %v", r)
		}
	}()
	message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))
	if messageHandler == nil {
		log.Printf("Warning: No message handler registered for client %d", client.UserID)
		return nil
	}
	return messageHandler(message, client)
}

// writePump отправляет сообщения клиенту из канала send
func (c *Client) writePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait)); err != nil {
				return
			}
			if !ok {
				// Хаб закрыл канал
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				log.Printf("[Client %d][Conn %s] NextWriter error: %v", c.UserID, c.ConnectionID, err)
				return
			}
			if _, err := w.Write(message); err != nil {
				log.Printf("[Client %d][Conn %s] Write error: %v", c.UserID, c.ConnectionID, err)
			}
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// StartPumps регистрирует клиента в хабе и запускает горутины чтения и записи
func (c *Client) StartPumps(messageHandler func(message []byte, client *Client) error) {
	if c.UserID == 0 {
		log.Printf("WebSocket: client has no UserID, skipping registration")
		c.conn.Close()
		return
	}
	if err := c.hub.Register(c); err != nil {
		log.Printf("WebSocket: не удалось зарегистрировать клиента %d: %v", c.UserID, err)
		c.conn.Close()
		return
	}

	go c.writePump()
	go c.readPump(messageHandler)
}
