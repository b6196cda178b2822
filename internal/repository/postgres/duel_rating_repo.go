package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Akhilsri/SheetSolver-sub000/internal/domain/entity"
)

// DuelRatingRepo реализует repository.DuelRatingRepository
type DuelRatingRepo struct {
	db *gorm.DB
}

// NewDuelRatingRepo создает новый репозиторий рейтингов
func NewDuelRatingRepo(db *gorm.DB) *DuelRatingRepo {
	return &DuelRatingRepo{db: db}
}

// GetOrDefault возвращает рейтинг пользователя или стартовый рейтинг
func (r *DuelRatingRepo) GetOrDefault(ctx context.Context, userID uint) (*entity.DuelRating, error) {
	var rating entity.DuelRating
	err := r.db.WithContext(ctx).First(&rating, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &entity.DuelRating{UserID: userID, Rating: entity.DefaultDuelRating}, nil
	}
	if err != nil {
		return nil, err
	}
	return &rating, nil
}

// SaveResult сохраняет рейтинги (upsert по user_id) в одной транзакции
func (r *DuelRatingRepo) SaveResult(ctx context.Context, ratings ...*entity.DuelRating) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rating := range ratings {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"rating", "wins", "losses", "draws", "updated_at"}),
			}).Create(rating).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// GetLeaderboard возвращает рейтинги, отсортированные по убыванию
func (r *DuelRatingRepo) GetLeaderboard(ctx context.Context, limit, offset int) ([]entity.DuelRating, int64, error) {
	var ratings []entity.DuelRating
	var total int64

	if err := r.db.WithContext(ctx).Model(&entity.DuelRating{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := r.db.WithContext(ctx).
		Order("rating DESC, wins DESC, user_id ASC").
		Limit(limit).
		Offset(offset).
		Find(&ratings).Error
	if err != nil {
		return nil, 0, err
	}
	return ratings, total, nil
}
