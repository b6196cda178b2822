package handler

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"

	apperrors "github.com/Akhilsri/SheetSolver-sub000/internal/pkg/errors"
	"github.com/Akhilsri/SheetSolver-sub000/internal/service/duel"
	"github.com/Akhilsri/SheetSolver-sub000/internal/websocket"
	"github.com/Akhilsri/SheetSolver-sub000/pkg/auth"
)

// DuelCommands - команды движка дуэлей, которые вызывает WebSocket-обработчик
type DuelCommands interface {
	FindMatch(conn duel.Conn, userID uint, username, topic string) error
	CancelSearch(conn duel.Conn) error
	PlayerReady(conn duel.Conn, gameID string, userID uint) error
	SubmitAnswer(conn duel.Conn, gameID string, userID uint, answer string) error
	Forfeit(conn duel.Conn, gameID string) error
	ConnectionClosed(conn duel.Conn) error
}

// Коды ошибок WebSocket-обработчика
const (
	errCodeInvalidFormat = "invalid_format"
	errCodeUserMismatch  = "user_mismatch"
	errCodeEngineStopped = "service_unavailable"
	errCodeMissingGameID = "missing_game_id"
	errCodeMissingTopic  = "missing_topic"
)

// maxUsernameLength совпадает с размером колонки duel_sessions.player*_username
const maxUsernameLength = 50

// WSHandler обрабатывает WebSocket соединения дуэлей
type WSHandler struct {
	hub           *websocket.Hub
	wsManager     *websocket.Manager
	engine        DuelCommands
	ticketService *auth.TicketService
	upgrader      gorillaws.Upgrader
	clientConfig  websocket.ClientConfig
}

// NewWSHandler создает новый обработчик WebSocket.
// ticketService == nil включает режим разработки: пользователь берется из ?user_id=&username=.
func NewWSHandler(
	wsManager *websocket.Manager,
	engine DuelCommands,
	ticketService *auth.TicketService,
	allowedOrigins []string,
	clientConfig websocket.ClientConfig,
) *WSHandler {
	handler := &WSHandler{
		hub:           wsManager.Hub(),
		wsManager:     wsManager,
		engine:        engine,
		ticketService: ticketService,
		clientConfig:  clientConfig,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:    4096,
			WriteBufferSize:   4096,
			CheckOrigin:       originChecker(allowedOrigins),
			EnableCompression: true,
		},
	}

	// Регистрируем обработчики сообщений один раз при создании обработчика
	handler.registerMessageHandlers()

	// Закрытие соединения - событие для движка (поражение в активной дуэли, выход из очереди)
	handler.hub.OnDisconnect(func(client *websocket.Client) {
		if err := handler.engine.ConnectionClosed(client); err != nil {
			log.Printf("[WSHandler] Движок не обработал отключение пользователя %d: %v", client.UserID, err)
		}
	})

	return handler
}

// originChecker разрешает пустой Origin (не браузерный клиент) и Origin из списка
func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := allowed[origin]; ok {
			return true
		}
		log.Printf("WebSocket: rejected unauthorized origin: %s", origin)
		return false
	}
}

// HandleConnection обрабатывает входящее WebSocket соединение
func (h *WSHandler) HandleConnection(c *gin.Context) {
	userID, username, err := h.authenticate(c)
	if err != nil {
		// НЕ логируем тикет - это секретные данные аутентификации
		log.Printf("WebSocket: authentication failed - %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired ticket"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade уже записал ответ клиенту
		log.Printf("Error upgrading connection: %v", err)
		return
	}

	client := websocket.NewClient(h.hub, conn, userID, username, h.clientConfig)
	log.Printf("WebSocket: Connection upgraded for UserID: %d (Conn: %s)", userID, client.ConnectionID)

	client.StartPumps(h.wsManager.HandleMessage)
}

// authenticate извлекает пользователя из тикета или, в режиме разработки, из query
func (h *WSHandler) authenticate(c *gin.Context) (uint, string, error) {
	if h.ticketService == nil {
		userID, err := strconv.ParseUint(c.Query("user_id"), 10, 32)
		if err != nil || userID == 0 {
			return 0, "", fmt.Errorf("%w: user_id query parameter is required in development mode", apperrors.ErrUnauthorized)
		}
		return uint(userID), normalizeUsername(c.Query("username"), uint(userID)), nil
	}

	ticket := c.Query("ticket")
	if ticket == "" {
		return 0, "", fmt.Errorf("%w: missing ticket parameter", apperrors.ErrUnauthorized)
	}
	claims, err := h.ticketService.ParseTicket(ticket)
	if err != nil {
		return 0, "", err
	}
	if claims.Username == "" {
		// Имя возьмем из find_match
		return claims.UserID, "", nil
	}
	return claims.UserID, normalizeUsername(claims.Username, claims.UserID), nil
}

// normalizeUsername обрезает пробелы и длину имени до maxUsernameLength символов.
// Пустое имя заменяется на player<id>.
func normalizeUsername(name string, userID uint) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Sprintf("player%d", userID)
	}
	if utf8.RuneCountInString(name) > maxUsernameLength {
		name = strings.TrimSpace(string([]rune(name)[:maxUsernameLength]))
	}
	return name
}

// Входящие сообщения дуэлей
type findMatchMessage struct {
	UserID   uint   `json:"userId"`
	Username string `json:"username"`
	Topic    string `json:"topic"`
}

type playerReadyMessage struct {
	GameID string `json:"gameId"`
	UserID uint   `json:"userId"`
}

type submitAnswerMessage struct {
	GameID string `json:"gameId"`
	UserID uint   `json:"userId"`
	Answer string `json:"answer"`
}

type forfeitMessage struct {
	GameID string `json:"gameId"`
}

// registerMessageHandlers регистрирует обработчики для различных типов сообщений
func (h *WSHandler) registerMessageHandlers() {
	h.wsManager.RegisterHandler(duel.EventFindMatch, func(data json.RawMessage, client *websocket.Client) error {
		var msg findMatchMessage
		if !h.decode(data, &msg, client, duel.EventFindMatch) {
			return nil
		}
		if !h.checkSender(client, msg.UserID) {
			return nil
		}
		if msg.Topic == "" {
			h.wsManager.SendErrorToClient(client, errCodeMissingTopic, "topic is required")
			return nil
		}
		// Имя из тикета приоритетнее имени из сообщения
		username := client.Username
		if username == "" {
			username = normalizeUsername(msg.Username, client.UserID)
		}
		h.reportEngineError(client, duel.EventFindMatch, h.engine.FindMatch(client, client.UserID, username, msg.Topic))
		return nil
	})

	h.wsManager.RegisterHandler(duel.EventCancelMatch, func(data json.RawMessage, client *websocket.Client) error {
		h.reportEngineError(client, duel.EventCancelMatch, h.engine.CancelSearch(client))
		return nil
	})

	h.wsManager.RegisterHandler(duel.EventPlayerReady, func(data json.RawMessage, client *websocket.Client) error {
		var msg playerReadyMessage
		if !h.decode(data, &msg, client, duel.EventPlayerReady) {
			return nil
		}
		if !h.checkSender(client, msg.UserID) || !h.requireGameID(client, msg.GameID) {
			return nil
		}
		h.reportEngineError(client, duel.EventPlayerReady, h.engine.PlayerReady(client, msg.GameID, client.UserID))
		return nil
	})

	h.wsManager.RegisterHandler(duel.EventSubmitAnswer, func(data json.RawMessage, client *websocket.Client) error {
		var msg submitAnswerMessage
		if !h.decode(data, &msg, client, duel.EventSubmitAnswer) {
			return nil
		}
		if !h.checkSender(client, msg.UserID) || !h.requireGameID(client, msg.GameID) {
			return nil
		}
		h.reportEngineError(client, duel.EventSubmitAnswer, h.engine.SubmitAnswer(client, msg.GameID, client.UserID, msg.Answer))
		return nil
	})

	h.wsManager.RegisterHandler(duel.EventForfeitMatch, func(data json.RawMessage, client *websocket.Client) error {
		var msg forfeitMessage
		if !h.decode(data, &msg, client, duel.EventForfeitMatch) {
			return nil
		}
		if !h.requireGameID(client, msg.GameID) {
			return nil
		}
		h.reportEngineError(client, duel.EventForfeitMatch, h.engine.Forfeit(client, msg.GameID))
		return nil
	})

	// Обработчик для проверки соединения
	h.wsManager.RegisterHandler(websocket.EventUserHeartbeat, func(data json.RawMessage, client *websocket.Client) error {
		heartbeatResponse := map[string]interface{}{
			"timestamp": time.Now().UnixMilli(),
		}
		if err := client.SendEvent(websocket.EventServerHeartbeat, heartbeatResponse); err != nil {
			log.Printf("[WSHandler] WARNING: Ошибка при отправке server:heartbeat пользователю %d: %v", client.UserID, err)
		}
		return nil // Никогда не закрываем соединение из-за heartbeat
	})
}

// --- Вспомогательные методы ---

// decode разбирает data сообщения. Некорректные данные не закрывают соединение.
func (h *WSHandler) decode(data json.RawMessage, dst interface{}, client *websocket.Client, eventType string) bool {
	if err := json.Unmarshal(data, dst); err != nil {
		log.Printf("[WSHandler] Ошибка парсинга %s от пользователя %d: %v, Data: %s", eventType, client.UserID, err, string(data))
		h.wsManager.SendErrorToClient(client, errCodeInvalidFormat, fmt.Sprintf("Failed to parse %s event", eventType))
		return false
	}
	return true
}

// checkSender проверяет, что userId в сообщении (если указан) совпадает с аутентифицированным
func (h *WSHandler) checkSender(client *websocket.Client, claimed uint) bool {
	if claimed != 0 && claimed != client.UserID {
		log.Printf("[WSHandler] Пользователь %d прислал сообщение от имени %d", client.UserID, claimed)
		h.wsManager.SendErrorToClient(client, errCodeUserMismatch, "userId does not match the authenticated user")
		return false
	}
	return true
}

func (h *WSHandler) requireGameID(client *websocket.Client, gameID string) bool {
	if gameID == "" {
		h.wsManager.SendErrorToClient(client, errCodeMissingGameID, "gameId is required")
		return false
	}
	return true
}

// reportEngineError сообщает клиенту, что движок недоступен. Соединение не закрывается.
func (h *WSHandler) reportEngineError(client *websocket.Client, eventType string, err error) {
	if err == nil {
		return
	}
	log.Printf("[WSHandler] Ошибка движка при обработке %s от пользователя %d: %v", eventType, client.UserID, err)
	h.wsManager.SendErrorToClient(client, errCodeEngineStopped, "Duel service is unavailable")
}
