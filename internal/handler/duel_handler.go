package handler

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/Akhilsri/SheetSolver-sub000/internal/domain/entity"
	"github.com/Akhilsri/SheetSolver-sub000/internal/handler/dto"
	"github.com/Akhilsri/SheetSolver-sub000/internal/middleware"
	apperrors "github.com/Akhilsri/SheetSolver-sub000/internal/pkg/errors"
	"github.com/Akhilsri/SheetSolver-sub000/internal/service"
)

// DuelLiveView - живое состояние движка дуэлей для REST API
type DuelLiveView interface {
	TopicQueues() ([]service.TopicQueue, error)
	LiveStats() (map[string]interface{}, error)
}

// DuelHandler обрабатывает REST-запросы чтения дуэлей
type DuelHandler struct {
	duelService   *service.DuelService
	ratingService *service.RatingService
	live          DuelLiveView
}

// NewDuelHandler создает новый обработчик дуэлей
func NewDuelHandler(duelService *service.DuelService, ratingService *service.RatingService, live DuelLiveView) *DuelHandler {
	return &DuelHandler{
		duelService:   duelService,
		ratingService: ratingService,
		live:          live,
	}
}

// RegisterRoutes регистрирует маршруты дуэлей в группе /api/duels
func (h *DuelHandler) RegisterRoutes(duels gin.IRouter) {
	duels.GET("/topics", h.GetTopics)
	duels.GET("/leaderboard", h.GetLeaderboard)
	duels.GET("/stats", h.GetStats)

	users := duels.Group("/users/:userId", middleware.ExtractUintParam("userId", "userID"))
	{
		users.GET("/history", h.GetUserHistory)
		users.GET("/history/export", h.ExportUserHistory)
		users.GET("/rating", h.GetUserRating)
	}

	duels.GET("/:id", middleware.ExtractUUIDParam("id", "duelID"), h.GetSession)
}

// pagination разбирает page и page_size из query
func pagination(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	if err != nil || pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}
	return page, pageSize
}

// GetTopics возвращает темы с текущей длиной очередей
func (h *DuelHandler) GetTopics(c *gin.Context) {
	topics, err := h.live.TopicQueues()
	if err != nil {
		h.handleDuelError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"topics": topics})
}

// GetSession возвращает сохраненную дуэль
func (h *DuelHandler) GetSession(c *gin.Context) {
	sessionID := c.MustGet("duelID").(string)
	session, err := h.duelService.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		h.handleDuelError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewDuelSessionResponse(session))
}

// GetUserHistory возвращает историю дуэлей пользователя
func (h *DuelHandler) GetUserHistory(c *gin.Context) {
	userID := c.MustGet("userID").(uint)
	page, pageSize := pagination(c)

	sessions, total, err := h.duelService.GetUserHistory(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		h.handleDuelError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.PaginatedHistoryResponse{
		Duels:   dto.NewDuelHistory(sessions, userID),
		Total:   total,
		Page:    page,
		PerPage: pageSize,
	})
}

// ExportUserHistory выгружает историю дуэлей пользователя в XLSX (по умолчанию) или CSV
func (h *DuelHandler) ExportUserHistory(c *gin.Context) {
	userID := c.MustGet("userID").(uint)
	format := c.DefaultQuery("format", "xlsx")

	sessions, err := h.duelService.GetUserHistoryAll(c.Request.Context(), userID)
	if err != nil {
		h.handleDuelError(c, err)
		return
	}
	items := dto.NewDuelHistory(sessions, userID)
	filename := fmt.Sprintf("duels_user_%d_%s", userID, time.Now().Format("2006-01-02"))

	switch format {
	case "csv":
		h.exportCSV(c, items, filename)
	default:
		h.exportXLSX(c, items, filename)
	}
}

var historyHeaders = []string{"Дуэль", "Тема", "Соперник", "Мои очки", "Очки соперника", "Исход", "Причина", "Завершена"}

func historyRow(item dto.DuelHistoryItem) []string {
	completed := ""
	if item.CompletedAt != nil {
		completed = item.CompletedAt.Format(time.RFC3339)
	}
	return []string{
		item.GameID,
		sanitizeForExcel(item.Topic),
		sanitizeForExcel(item.OpponentUsername),
		strconv.Itoa(item.MyScore),
		strconv.Itoa(item.OpponentScore),
		translateOutcome(item.Outcome),
		translateEndReason(item.EndReason),
		completed,
	}
}

// exportCSV экспортирует историю в CSV с правильным экранированием спецсимволов
func (h *DuelHandler) exportCSV(c *gin.Context, items []dto.DuelHistoryItem, filename string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))

	// BOM для корректного отображения UTF-8 в Excel
	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	writer.Write(historyHeaders)
	for _, item := range items {
		writer.Write(historyRow(item))
	}
}

// exportXLSX экспортирует историю в Excel с использованием StreamWriter
func (h *DuelHandler) exportXLSX(c *gin.Context, items []dto.DuelHistoryItem, filename string) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Дуэли"
	f.SetSheetName("Sheet1", sheetName)

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[DuelHandler] Ошибка создания StreamWriter: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	headers := make([]interface{}, len(historyHeaders))
	for i, header := range historyHeaders {
		headers[i] = header
	}
	if err := sw.SetRow("A1", headers); err != nil {
		log.Printf("[DuelHandler] Ошибка записи заголовков: %v", err)
	}

	for i, item := range items {
		rowNum := i + 2 // 1 - заголовки
		values := historyRow(item)
		row := make([]interface{}, len(values))
		for j, v := range values {
			row[j] = v
		}
		// Очки пишем числами, чтобы их можно было суммировать
		row[3] = item.MyScore
		row[4] = item.OpponentScore
		if err := sw.SetRow(fmt.Sprintf("A%d", rowNum), row); err != nil {
			log.Printf("[DuelHandler] Ошибка записи строки %d: %v", rowNum, err)
		}
	}

	if err := sw.Flush(); err != nil {
		log.Printf("[DuelHandler] Ошибка при Flush: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))
	if err := f.Write(c.Writer); err != nil {
		log.Printf("[DuelHandler] Ошибка записи Excel в response: %v", err)
	}
}

// GetLeaderboard возвращает страницу таблицы рейтинга
func (h *DuelHandler) GetLeaderboard(c *gin.Context) {
	page, pageSize := pagination(c)
	offset := (page - 1) * pageSize

	ratings, total, err := h.ratingService.GetLeaderboard(c.Request.Context(), pageSize, offset)
	if err != nil {
		h.handleDuelError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.LeaderboardResponse{
		Players: dto.NewLeaderboard(ratings, offset+1),
		Total:   total,
		Page:    page,
		PerPage: pageSize,
	})
}

// GetUserRating возвращает рейтинг пользователя
func (h *DuelHandler) GetUserRating(c *gin.Context) {
	userID := c.MustGet("userID").(uint)
	rating, err := h.ratingService.GetRating(c.Request.Context(), userID)
	if err != nil {
		h.handleDuelError(c, err)
		return
	}
	c.JSON(http.StatusOK, rating)
}

// GetStats возвращает счетчики движка и метрики WebSocket
func (h *DuelHandler) GetStats(c *gin.Context) {
	stats, err := h.live.LiveStats()
	if err != nil {
		h.handleDuelError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// sanitizeForExcel экранирует данные для защиты от formula injection в Excel/CSV
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	// Символы, начинающие формулу в Excel/LibreOffice: = + - @ \t \r
	if s[0] == '=' || s[0] == '+' || s[0] == '-' || s[0] == '@' || s[0] == '\t' || s[0] == '\r' {
		return "'" + s
	}
	return s
}

func translateOutcome(outcome string) string {
	switch outcome {
	case "win":
		return "Победа"
	case "loss":
		return "Поражение"
	default:
		return "Ничья"
	}
}

func translateEndReason(reason string) string {
	switch reason {
	case entity.DuelEndCompleted:
		return "Все вопросы"
	case entity.DuelEndForfeit:
		return "Сдача"
	case entity.DuelEndDisconnect:
		return "Отключение"
	case entity.DuelEndReadyTimeout:
		return "Не подтвердил готовность"
	default:
		return reason
	}
}

// handleDuelError обрабатывает ошибки сервисов дуэлей и отправляет соответствующий HTTP ответ
func (h *DuelHandler) handleDuelError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("ERROR: Internal server error in DuelHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
