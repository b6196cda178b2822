package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Akhilsri/SheetSolver-sub000/internal/domain/entity"
	apperrors "github.com/Akhilsri/SheetSolver-sub000/internal/pkg/errors"
)

// DuelRepo реализует repository.DuelRepository
type DuelRepo struct {
	db *gorm.DB
}

// NewDuelRepo создает новый репозиторий дуэлей
func NewDuelRepo(db *gorm.DB) *DuelRepo {
	return &DuelRepo{db: db}
}

// CreateSession создает запись дуэли вместе с участниками
func (r *DuelRepo) CreateSession(ctx context.Context, session *entity.DuelSession) error {
	if len(session.Participants) != 2 {
		return fmt.Errorf("%w: duel requires exactly 2 participants, got %d", apperrors.ErrValidation, len(session.Participants))
	}
	if session.Status == "" {
		session.Status = entity.DuelStatusInProgress
	}
	// gorm сохраняет ассоциацию Participants в той же транзакции
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		log.Printf("[DuelRepo] Ошибка создания дуэли %s: %v", session.ID, err)
		return err
	}
	return nil
}

// IncrementScore атомарно увеличивает счет участника через gorm.Expr
func (r *DuelRepo) IncrementScore(ctx context.Context, sessionID string, userID uint, delta int) error {
	result := r.db.WithContext(ctx).
		Model(&entity.DuelParticipant{}).
		Where("session_id = ? AND user_id = ?", sessionID, userID).
		Updates(map[string]interface{}{
			"score":      gorm.Expr("score + ?", delta),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// CompleteSession помечает дуэль завершенной. Завершенная запись не перезаписывается.
func (r *DuelRepo) CompleteSession(ctx context.Context, sessionID string, winnerID *uint, reason string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&entity.DuelSession{}).
		Where("id = ? AND status = ?", sessionID, entity.DuelStatusInProgress).
		Updates(map[string]interface{}{
			"status":       entity.DuelStatusCompleted,
			"winner_id":    winnerID,
			"end_reason":   reason,
			"completed_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Либо записи нет, либо она уже завершена
		var count int64
		if err := r.db.WithContext(ctx).Model(&entity.DuelSession{}).Where("id = ?", sessionID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return apperrors.ErrNotFound
		}
		log.Printf("[DuelRepo] Дуэль %s уже завершена, запись не изменена", sessionID)
	}
	return nil
}

// GetByID возвращает дуэль с участниками
func (r *DuelRepo) GetByID(ctx context.Context, sessionID string) (*entity.DuelSession, error) {
	var session entity.DuelSession
	err := r.db.WithContext(ctx).
		Preload("Participants", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&session, "id = ?", sessionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// ListByUser возвращает завершенные дуэли пользователя с пагинацией
func (r *DuelRepo) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]entity.DuelSession, int64, error) {
	var sessions []entity.DuelSession
	var total int64

	base := r.db.WithContext(ctx).
		Model(&entity.DuelSession{}).
		Where("(player1_id = ? OR player2_id = ?) AND status = ?", userID, userID, entity.DuelStatusCompleted).
		Session(&gorm.Session{})

	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := base.
		Preload("Participants").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "completed_at"}, Desc: true}).
		Limit(limit).
		Offset(offset).
		Find(&sessions).Error
	if err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}
