package service

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync/atomic"
	"time"

	"github.com/Akhilsri/SheetSolver-sub000/internal/domain/repository"
	apperrors "github.com/Akhilsri/SheetSolver-sub000/internal/pkg/errors"
)

// topicSnapshot - неизменяемый снимок каталога тем
type topicSnapshot struct {
	list []string
	set  map[string]struct{}
}

func newTopicSnapshot(topics ...[]string) *topicSnapshot {
	set := make(map[string]struct{})
	for _, group := range topics {
		for _, t := range group {
			if t != "" {
				set[t] = struct{}{}
			}
		}
	}
	list := make([]string, 0, len(set))
	for t := range set {
		list = append(list, t)
	}
	sort.Strings(list)
	return &topicSnapshot{list: list, set: set}
}

// TopicService хранит каталог тем дуэлей: темы из конфигурации и темы банка вопросов.
// Каталог банка кешируется в Redis и периодически обновляется.
type TopicService struct {
	questionRepo repository.QuestionRepository
	cacheRepo    repository.TopicCacheRepository // может быть nil
	configured   []string
	refresh      time.Duration

	snapshot atomic.Value // *topicSnapshot
}

// NewTopicService создает каталог. До первого Refresh известны только темы из конфигурации.
func NewTopicService(questionRepo repository.QuestionRepository, cacheRepo repository.TopicCacheRepository, configured []string, refresh time.Duration) *TopicService {
	s := &TopicService{
		questionRepo: questionRepo,
		cacheRepo:    cacheRepo,
		configured:   append([]string(nil), configured...),
		refresh:      refresh,
	}
	s.snapshot.Store(newTopicSnapshot(s.configured))
	return s
}

func (s *TopicService) current() *topicSnapshot {
	return s.snapshot.Load().(*topicSnapshot)
}

// IsKnown проверяет, существует ли тема. Безопасен для вызова из любой горутины.
func (s *TopicService) IsKnown(topic string) bool {
	_, ok := s.current().set[topic]
	return ok
}

// Topics возвращает отсортированный список тем
func (s *TopicService) Topics() []string {
	return append([]string(nil), s.current().list...)
}

// Refresh перечитывает темы банка вопросов (через кеш) и обновляет снимок.
// При ошибке банка сохраняется предыдущий снимок.
func (s *TopicService) Refresh(ctx context.Context) error {
	bankTopics, err := s.loadBankTopics(ctx)
	if err != nil {
		return err
	}
	s.snapshot.Store(newTopicSnapshot(s.configured, bankTopics))
	return nil
}

func (s *TopicService) loadBankTopics(ctx context.Context) ([]string, error) {
	if s.cacheRepo != nil {
		cached, err := s.cacheRepo.GetTopics(ctx)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[TopicService] Ошибка чтения кеша тем: %v", err)
		}
	}

	topics, err := s.questionRepo.ListTopics(ctx)
	if err != nil {
		return nil, err
	}

	if s.cacheRepo != nil && s.refresh > 0 {
		if err := s.cacheRepo.SetTopics(ctx, topics, s.refresh); err != nil {
			log.Printf("[TopicService] Не удалось сохранить темы в кеш: %v", err)
		}
	}
	return topics, nil
}

// Invalidate сбрасывает кеш и сразу перечитывает каталог (например, после импорта вопросов)
func (s *TopicService) Invalidate(ctx context.Context) error {
	if s.cacheRepo != nil {
		if err := s.cacheRepo.InvalidateTopics(ctx); err != nil {
			log.Printf("[TopicService] Не удалось сбросить кеш тем: %v", err)
		}
	}
	return s.Refresh(ctx)
}

// Start выполняет первое обновление и запускает периодическое до отмены ctx
func (s *TopicService) Start(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil {
		log.Printf("[TopicService] Первичная загрузка тем не удалась, используются темы из конфигурации: %v", err)
	}
	log.Printf("[TopicService] Темы дуэлей: %v", s.Topics())

	if s.refresh <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(s.refresh)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.Refresh(ctx); err != nil {
					log.Printf("[TopicService] Ошибка обновления тем: %v", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
