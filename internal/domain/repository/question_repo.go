package repository

import (
	"context"

	"github.com/Akhilsri/SheetSolver-sub000/internal/domain/entity"
)

// QuestionRepository определяет методы для работы с банком вопросов
type QuestionRepository interface {
	Create(question *entity.Question) error
	CreateBatch(questions []entity.Question) error
	GetByID(id uint) (*entity.Question, error)

	// GetRandomByTopic возвращает до limit случайных вопросов темы
	GetRandomByTopic(ctx context.Context, topic string, limit int) ([]entity.Question, error)
	// ListTopics возвращает темы, для которых в банке есть вопросы
	ListTopics(ctx context.Context) ([]string, error)
	CountByTopic(ctx context.Context, topic string) (int64, error)
}
