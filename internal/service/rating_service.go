package service

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/Akhilsri/SheetSolver-sub000/internal/domain/entity"
	"github.com/Akhilsri/SheetSolver-sub000/internal/domain/repository"
)

// DefaultEloK - коэффициент K рейтинга Эло
const DefaultEloK = 32

// RatingService пересчитывает рейтинг Эло по итогам дуэлей
type RatingService struct {
	ratingRepo repository.DuelRatingRepository
	k          float64
}

// NewRatingService создает новый сервис рейтинга
func NewRatingService(ratingRepo repository.DuelRatingRepository) *RatingService {
	return &RatingService{
		ratingRepo: ratingRepo,
		k:          DefaultEloK,
	}
}

// AdjustRatings обновляет рейтинги обоих игроков. winnerID == nil означает ничью.
func (s *RatingService) AdjustRatings(ctx context.Context, player1ID, player2ID uint, winnerID *uint) error {
	if player1ID == player2ID {
		return fmt.Errorf("cannot adjust rating of a player against himself (%d)", player1ID)
	}
	if winnerID != nil && *winnerID != player1ID && *winnerID != player2ID {
		return fmt.Errorf("winner %d is not a participant", *winnerID)
	}

	r1, err := s.ratingRepo.GetOrDefault(ctx, player1ID)
	if err != nil {
		return fmt.Errorf("failed to load rating of user %d: %w", player1ID, err)
	}
	r2, err := s.ratingRepo.GetOrDefault(ctx, player2ID)
	if err != nil {
		return fmt.Errorf("failed to load rating of user %d: %w", player2ID, err)
	}

	// Фактический результат первого игрока: 1 - победа, 0.5 - ничья, 0 - поражение
	score1 := 0.5
	switch {
	case winnerID == nil:
		r1.Draws++
		r2.Draws++
	case *winnerID == player1ID:
		score1 = 1
		r1.Wins++
		r2.Losses++
	default:
		score1 = 0
		r1.Losses++
		r2.Wins++
	}

	old1, old2 := r1.Rating, r2.Rating
	r1.Rating, r2.Rating = s.eloPair(old1, old2, score1)

	if err := s.ratingRepo.SaveResult(ctx, r1, r2); err != nil {
		return fmt.Errorf("failed to save ratings: %w", err)
	}

	log.Printf("[RatingService] Рейтинг: игрок %d %d -> %d, игрок %d %d -> %d", player1ID, old1, r1.Rating, player2ID, old2, r2.Rating)
	return nil
}

// eloPair возвращает новые рейтинги пары. Сумма рейтингов сохраняется.
func (s *RatingService) eloPair(rating1, rating2 int, score1 float64) (int, int) {
	expected1 := 1 / (1 + math.Pow(10, float64(rating2-rating1)/400))
	delta := int(math.Round(s.k * (score1 - expected1)))
	return rating1 + delta, rating2 - delta
}

// GetLeaderboard возвращает страницу таблицы лидеров
func (s *RatingService) GetLeaderboard(ctx context.Context, limit, offset int) ([]entity.DuelRating, int64, error) {
	return s.ratingRepo.GetLeaderboard(ctx, limit, offset)
}

// GetRating возвращает рейтинг пользователя (стартовый, если он еще не играл)
func (s *RatingService) GetRating(ctx context.Context, userID uint) (*entity.DuelRating, error) {
	return s.ratingRepo.GetOrDefault(ctx, userID)
}
