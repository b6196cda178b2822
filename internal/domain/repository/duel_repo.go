package repository

import (
	"context"

	"github.com/Akhilsri/SheetSolver-sub000/internal/domain/entity"
)

// DuelRepository определяет методы для работы с долговременными записями дуэлей
type DuelRepository interface {
	// CreateSession создает запись дуэли и записи обоих участников в одной транзакции
	CreateSession(ctx context.Context, session *entity.DuelSession) error
	// IncrementScore атомарно увеличивает счет участника на delta
	IncrementScore(ctx context.Context, sessionID string, userID uint, delta int) error
	// CompleteSession помечает дуэль завершенной. Повторный вызов для завершенной дуэли не меняет запись.
	CompleteSession(ctx context.Context, sessionID string, winnerID *uint, reason string) error
	GetByID(ctx context.Context, sessionID string) (*entity.DuelSession, error)
	// ListByUser возвращает завершенные дуэли пользователя (новые первыми) и их общее количество
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]entity.DuelSession, int64, error)
}

// DuelRatingRepository определяет методы для работы с рейтингом дуэлей
type DuelRatingRepository interface {
	// GetOrDefault возвращает рейтинг пользователя или стартовый, если записи нет
	GetOrDefault(ctx context.Context, userID uint) (*entity.DuelRating, error)
	// SaveResult сохраняет обновленные рейтинги обоих игроков в одной транзакции
	SaveResult(ctx context.Context, ratings ...*entity.DuelRating) error
	GetLeaderboard(ctx context.Context, limit, offset int) ([]entity.DuelRating, int64, error)
}
