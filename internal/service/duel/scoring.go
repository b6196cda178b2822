package duel

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// finalizeJob - итог дуэли для записи в хранилище и пересчета рейтинга
type finalizeJob struct {
	SessionID string
	Topic     string
	Player1ID uint
	Player2ID uint
	WinnerID  *uint
	Reason    string
	Scores    map[uint]int
	// Дуэль прервана не игроками, рейтинг не пересчитывается
	SkipRating bool
}

type bridgeTask struct {
	// score
	sessionID string
	userID    uint
	delta     int

	finalize *finalizeJob
}

// scoringBridge выполняет записи в хранилище в отдельной горутине.
// Задачи обрабатываются строго по порядку, поэтому все записи очков
// дуэли попадают в хранилище раньше ее завершения.
type scoringBridge struct {
	cfg       Config
	store     SessionStore
	ratings   RatingService
	publisher EventPublisher

	tasks     chan bridgeTask
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
}

func newScoringBridge(cfg Config, store SessionStore, ratings RatingService, publisher EventPublisher) *scoringBridge {
	return &scoringBridge{
		cfg:       cfg,
		store:     store,
		ratings:   ratings,
		publisher: publisher,
		tasks:     make(chan bridgeTask, cfg.BridgeBuffer),
	}
}

func (b *scoringBridge) start() {
	b.startOnce.Do(func() {
		b.wg.Add(1)
		go b.loop()
	})
}

// close прекращает прием задач и ждет обработки уже поставленных
func (b *scoringBridge) close() {
	b.closeOnce.Do(func() {
		close(b.tasks)
	})
	b.wg.Wait()
}

func (b *scoringBridge) submitScore(sessionID string, userID uint, delta int) {
	b.tasks <- bridgeTask{sessionID: sessionID, userID: userID, delta: delta}
}

func (b *scoringBridge) submitFinalize(job finalizeJob) {
	b.tasks <- bridgeTask{finalize: &job}
}

func (b *scoringBridge) loop() {
	defer b.wg.Done()
	for task := range b.tasks {
		if task.finalize != nil {
			b.finalize(*task.finalize)
			continue
		}
		b.persistScore(task)
	}
}

// persistScore увеличивает счет участника в хранилище.
// Ошибка только логируется: счет в памяти остается основным.
func (b *scoringBridge) persistScore(task bridgeTask) {
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.StoreTimeout)
	defer cancel()
	if err := b.store.IncrementScore(ctx, task.sessionID, task.userID, task.delta); err != nil {
		log.Printf("[ScoringBridge] Не удалось сохранить +%d очков игрока %d в дуэли %s: %v", task.delta, task.userID, task.sessionID, err)
	}
}

// finalize завершает запись дуэли и только после этого пересчитывает рейтинг, ровно один раз
func (b *scoringBridge) finalize(job finalizeJob) {
	var err error
	for attempt := 1; attempt <= b.cfg.PersistRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), b.cfg.StoreTimeout)
		err = b.store.CompleteSession(ctx, job.SessionID, job.WinnerID, job.Reason)
		cancel()
		if err == nil {
			break
		}
		log.Printf("[ScoringBridge] Попытка %d/%d завершить дуэль %s не удалась: %v", attempt, b.cfg.PersistRetries, job.SessionID, err)
		if attempt < b.cfg.PersistRetries && b.cfg.RetryInterval > 0 {
			time.Sleep(b.cfg.RetryInterval)
		}
	}
	if err != nil {
		log.Printf("[ScoringBridge] Дуэль %s не завершена в хранилище, пересчет рейтинга пропущен", job.SessionID)
		return
	}

	if !job.SkipRating {
		b.adjustRatings(job)
	}
	b.publishFinished(job)
}

func (b *scoringBridge) adjustRatings(job finalizeJob) {
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.StoreTimeout)
	defer cancel()
	if err := b.ratings.AdjustRatings(ctx, job.Player1ID, job.Player2ID, job.WinnerID); err != nil {
		log.Printf("[ScoringBridge] Ошибка пересчета рейтинга для дуэли %s: %v", job.SessionID, err)
	}
}

func (b *scoringBridge) publishFinished(job finalizeJob) {
	if b.publisher == nil || b.cfg.EventsChannel == "" {
		return
	}
	payload, err := json.Marshal(FinishedNotification{
		Type:      PublishedDuelFinished,
		GameID:    job.SessionID,
		Topic:     job.Topic,
		Player1ID: job.Player1ID,
		Player2ID: job.Player2ID,
		WinnerID:  job.WinnerID,
		Reason:    job.Reason,
		Scores:    job.Scores,
	})
	if err != nil {
		log.Printf("[ScoringBridge] Ошибка сериализации %s: %v", PublishedDuelFinished, err)
		return
	}
	if err := b.publisher.Publish(b.cfg.EventsChannel, payload); err != nil {
		log.Printf("[ScoringBridge] Не удалось опубликовать %s для дуэли %s: %v", PublishedDuelFinished, job.SessionID, err)
	}
}
