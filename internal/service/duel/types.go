package duel

import (
	"context"
	"errors"
	"time"

	"github.com/Akhilsri/SheetSolver-sub000/internal/domain/entity"
)

// Значения по умолчанию
const (
	DefaultQuestionsPerDuel = 10
	DefaultCorrectReward    = 10
)

// ErrEngineStopped возвращается, когда команда пришла после остановки движка
var ErrEngineStopped = errors.New("duel engine is stopped")

// Config содержит настройки движка дуэлей
type Config struct {
	QuestionsPerDuel int           // Сколько вопросов выбирать на дуэль
	QuestionDuration time.Duration // Время на вопрос
	RevealGrace      time.Duration // Пауза после показа правильного ответа
	ReadyTimeout     time.Duration // Сколько ждать player_ready от обоих (0 - ждать бесконечно)
	CorrectReward    int           // Очки за правильный ответ

	StoreTimeout   time.Duration // Таймаут одного обращения к хранилищу
	PersistRetries int           // Попытки завершить запись дуэли
	RetryInterval  time.Duration // Интервал между попытками

	EventsChannel string // Канал Pub/Sub для событий duel.finished
	BridgeBuffer  int    // Размер очереди задач записи
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		QuestionsPerDuel: DefaultQuestionsPerDuel,
		QuestionDuration: 10 * time.Second,
		RevealGrace:      3 * time.Second,
		ReadyTimeout:     30 * time.Second,
		CorrectReward:    DefaultCorrectReward,
		StoreTimeout:     5 * time.Second,
		PersistRetries:   3,
		RetryInterval:    500 * time.Millisecond,
		EventsChannel:    "duel:events",
		BridgeBuffer:     1024,
	}
}

// Conn - соединение игрока, через которое движок отправляет личные события
type Conn interface {
	ID() string
	SendEvent(eventType string, data interface{}) error
}

// RoomBroadcaster рассылает события всем соединениям комнаты дуэли
type RoomBroadcaster interface {
	JoinRoom(room string, connIDs ...string)
	BroadcastEventToRoom(room string, eventType string, data interface{}) error
	CloseRoom(room string)
}

// QuestionBank выдает случайные вопросы по теме
type QuestionBank interface {
	GetRandomByTopic(ctx context.Context, topic string, limit int) ([]entity.Question, error)
}

// SessionStore - долговременное хранилище дуэлей
type SessionStore interface {
	CreateSession(ctx context.Context, session *entity.DuelSession) error
	IncrementScore(ctx context.Context, sessionID string, userID uint, delta int) error
	CompleteSession(ctx context.Context, sessionID string, winnerID *uint, reason string) error
}

// RatingService пересчитывает рейтинги по итогам дуэли
type RatingService interface {
	AdjustRatings(ctx context.Context, player1ID, player2ID uint, winnerID *uint) error
}

// TopicCatalog отвечает, существует ли тема
type TopicCatalog interface {
	IsKnown(topic string) bool
}

// EventPublisher публикует события для внешних сервисов (push-уведомления и т.п.)
type EventPublisher interface {
	Publish(channel string, message []byte) error
}

// Dependencies содержит зависимости движка
type Dependencies struct {
	Questions QuestionBank
	Store     SessionStore
	Ratings   RatingService
	Topics    TopicCatalog
	Rooms     RoomBroadcaster
	Publisher EventPublisher // может быть nil
	Clock     Clock          // nil - системные часы
}

func (d Dependencies) validate() error {
	switch {
	case d.Questions == nil:
		return errors.New("duel: question bank is required")
	case d.Store == nil:
		return errors.New("duel: session store is required")
	case d.Ratings == nil:
		return errors.New("duel: rating service is required")
	case d.Topics == nil:
		return errors.New("duel: topic catalog is required")
	case d.Rooms == nil:
		return errors.New("duel: room broadcaster is required")
	}
	return nil
}
