package service

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/Akhilsri/SheetSolver-sub000/internal/domain/entity"
	"github.com/Akhilsri/SheetSolver-sub000/internal/domain/repository"
	apperrors "github.com/Akhilsri/SheetSolver-sub000/internal/pkg/errors"
)

// Ограничения выборки истории
const (
	maxHistoryPageSize = 100
	maxExportRows      = 5000
)

// DuelService предоставляет чтение сохраненных дуэлей
type DuelService struct {
	duelRepo repository.DuelRepository
}

// NewDuelService создает новый сервис дуэлей
func NewDuelService(duelRepo repository.DuelRepository) *DuelService {
	return &DuelService{duelRepo: duelRepo}
}

// GetSession возвращает дуэль с участниками
func (s *DuelService) GetSession(ctx context.Context, sessionID string) (*entity.DuelSession, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, fmt.Errorf("%w: invalid duel id %q", apperrors.ErrValidation, sessionID)
	}
	session, err := s.duelRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// GetUserHistory возвращает страницу завершенных дуэлей пользователя (page с 1)
func (s *DuelService) GetUserHistory(ctx context.Context, userID uint, page, pageSize int) ([]entity.DuelSession, int64, error) {
	if userID == 0 {
		return nil, 0, fmt.Errorf("%w: user id is required", apperrors.ErrValidation)
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > maxHistoryPageSize {
		pageSize = 10
	}
	return s.duelRepo.ListByUser(ctx, userID, pageSize, (page-1)*pageSize)
}

// GetUserHistoryAll возвращает всю историю пользователя для экспорта (не более maxExportRows)
func (s *DuelService) GetUserHistoryAll(ctx context.Context, userID uint) ([]entity.DuelSession, error) {
	if userID == 0 {
		return nil, fmt.Errorf("%w: user id is required", apperrors.ErrValidation)
	}

	var all []entity.DuelSession
	for offset := 0; offset < maxExportRows; offset += maxHistoryPageSize {
		batch, total, err := s.duelRepo.ListByUser(ctx, userID, maxHistoryPageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < maxHistoryPageSize || int64(len(all)) >= total {
			break
		}
	}
	if len(all) >= maxExportRows {
		log.Printf("[DuelService] История пользователя %d обрезана до %d записей", userID, maxExportRows)
	}
	return all, nil
}
