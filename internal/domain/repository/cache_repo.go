package repository

import (
	"context"
	"time"
)

// TopicCacheRepository определяет методы кеширования каталога тем
type TopicCacheRepository interface {
	GetTopics(ctx context.Context) ([]string, error)
	SetTopics(ctx context.Context, topics []string, ttl time.Duration) error
	InvalidateTopics(ctx context.Context) error
}
