package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	apperrors "github.com/Akhilsri/SheetSolver-sub000/internal/pkg/errors"
)

const topicsKey = "duel:topics"

// CacheRepo реализует repository.TopicCacheRepository поверх Redis
type CacheRepo struct {
	client redis.UniversalClient
}

// NewCacheRepo создает новый репозиторий кеша и возвращает ошибку при проблемах
func NewCacheRepo(client redis.UniversalClient) (*CacheRepo, error) {
	if client == nil {
		return nil, fmt.Errorf("Redis client cannot be nil for CacheRepo")
	}
	return &CacheRepo{client: client}, nil
}

// GetTopics возвращает закешированный каталог тем.
// Если ключа нет, возвращает apperrors.ErrNotFound.
func (r *CacheRepo) GetTopics(ctx context.Context) ([]string, error) {
	data, err := r.client.Get(ctx, topicsKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	var topics []string
	if err := json.Unmarshal(data, &topics); err != nil {
		return nil, fmt.Errorf("failed to decode cached topics: %w", err)
	}
	return topics, nil
}

// SetTopics сохраняет каталог тем с временем жизни ttl
func (r *CacheRepo) SetTopics(ctx context.Context, topics []string, ttl time.Duration) error {
	data, err := json.Marshal(topics)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, topicsKey, data, ttl).Err()
}

// InvalidateTopics удаляет каталог из кеша
func (r *CacheRepo) InvalidateTopics(ctx context.Context) error {
	return r.client.Del(ctx, topicsKey).Err()
}
