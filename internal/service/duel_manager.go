package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Akhilsri/SheetSolver-sub000/internal/config"
	"github.com/Akhilsri/SheetSolver-sub000/internal/domain/repository"
	"github.com/Akhilsri/SheetSolver-sub000/internal/service/duel"
	"github.com/Akhilsri/SheetSolver-sub000/internal/websocket"
)

// TopicQueue - тема и количество игроков в ее очереди
type TopicQueue struct {
	Topic  string `json:"topic"`
	Queued int    `json:"queued"`
}

// DuelManager собирает движок дуэлей из зависимостей и управляет его жизненным циклом
type DuelManager struct {
	engine    *duel.Engine
	topics    *TopicService
	wsManager *websocket.Manager

	ctx     context.Context
	cancel  context.CancelFunc
	started sync.Once
}

// EngineConfig переводит настройки приложения в конфигурацию движка
func EngineConfig(cfg config.DuelConfig, eventsEnabled bool) duel.Config {
	engineCfg := duel.DefaultConfig()
	if cfg.QuestionCount > 0 {
		engineCfg.QuestionsPerDuel = cfg.QuestionCount
	}
	if cfg.QuestionDuration > 0 {
		engineCfg.QuestionDuration = cfg.QuestionDuration
	}
	if cfg.RevealGrace >= 0 {
		engineCfg.RevealGrace = cfg.RevealGrace
	}
	engineCfg.ReadyTimeout = cfg.ReadyTimeout
	if cfg.CorrectReward > 0 {
		engineCfg.CorrectReward = cfg.CorrectReward
	}
	if cfg.StoreTimeout > 0 {
		engineCfg.StoreTimeout = cfg.StoreTimeout
	}
	if cfg.PersistRetries > 0 {
		engineCfg.PersistRetries = cfg.PersistRetries
	}
	if cfg.EventsChannel != "" {
		engineCfg.EventsChannel = cfg.EventsChannel
	}
	if !eventsEnabled {
		engineCfg.EventsChannel = ""
	}
	return engineCfg
}

// NewDuelManager создает движок дуэлей. publisher может быть nil.
func NewDuelManager(
	cfg config.DuelConfig,
	duelRepo repository.DuelRepository,
	questionRepo repository.QuestionRepository,
	ratingService *RatingService,
	topicService *TopicService,
	wsManager *websocket.Manager,
	publisher websocket.PubSubProvider,
) (*DuelManager, error) {
	deps := duel.Dependencies{
		Questions: questionRepo,
		Store:     duelRepo,
		Ratings:   ratingService,
		Topics:    topicService,
		Rooms:     wsManager,
	}
	if publisher != nil {
		deps.Publisher = publisher
	}

	engine, err := duel.NewEngine(EngineConfig(cfg, publisher != nil), deps)
	if err != nil {
		return nil, fmt.Errorf("failed to create duel engine: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	log.Println("[DuelManager] Менеджер дуэлей успешно инициализирован")
	return &DuelManager{
		engine:    engine,
		topics:    topicService,
		wsManager: wsManager,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Engine возвращает движок для обработчиков WebSocket
func (dm *DuelManager) Engine() *duel.Engine {
	return dm.engine
}

// Start запускает каталог тем и цикл движка
func (dm *DuelManager) Start() {
	dm.started.Do(func() {
		dm.topics.Start(dm.ctx)
		go dm.engine.Run(dm.ctx)
		log.Println("[DuelManager] Движок дуэлей запущен")
	})
}

// Shutdown останавливает движок и ждет записи поставленных в очередь результатов
func (dm *DuelManager) Shutdown(timeout time.Duration) {
	dm.cancel()
	select {
	case <-dm.engine.Stopped():
		log.Println("[DuelManager] Движок дуэлей остановлен")
	case <-time.After(timeout):
		log.Printf("[DuelManager] Движок дуэлей не остановился за %v", timeout)
	}
}

// TopicQueues возвращает известные темы с длиной очередей
func (dm *DuelManager) TopicQueues() ([]TopicQueue, error) {
	stats, err := dm.engine.Stats()
	if err != nil {
		return nil, err
	}
	topics := dm.topics.Topics()
	result := make([]TopicQueue, 0, len(topics))
	for _, topic := range topics {
		result = append(result, TopicQueue{Topic: topic, Queued: stats.Queued[topic]})
	}
	return result, nil
}

// LiveStats возвращает счетчики движка и метрики WebSocket
func (dm *DuelManager) LiveStats() (map[string]interface{}, error) {
	stats, err := dm.engine.Stats()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"engine":    stats,
		"websocket": dm.wsManager.GetMetrics(),
	}, nil
}
