package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Akhilsri/SheetSolver-sub000/internal/domain/entity"
	apperrors "github.com/Akhilsri/SheetSolver-sub000/internal/pkg/errors"
)

// QuestionRepo реализует repository.QuestionRepository
type QuestionRepo struct {
	db *gorm.DB
}

// NewQuestionRepo создает новый репозиторий вопросов
func NewQuestionRepo(db *gorm.DB) *QuestionRepo {
	return &QuestionRepo{db: db}
}

// Create создает новый вопрос
func (r *QuestionRepo) Create(question *entity.Question) error {
	return r.db.Create(question).Error
}

// CreateBatch создает пакет вопросов
func (r *QuestionRepo) CreateBatch(questions []entity.Question) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SET CLIENT_ENCODING TO 'UTF8'").Error; err != nil {
			return err
		}
		return tx.Create(&questions).Error
	})
}

// GetByID возвращает вопрос по ID
func (r *QuestionRepo) GetByID(id uint) (*entity.Question, error) {
	var question entity.Question
	err := r.db.First(&question, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &question, nil
}

// GetRandomByTopic возвращает до limit случайных вопросов темы.
// Банк вопросов по одной теме небольшой, поэтому ORDER BY RANDOM() по индексу topic достаточно.
func (r *QuestionRepo) GetRandomByTopic(ctx context.Context, topic string, limit int) ([]entity.Question, error) {
	var questions []entity.Question
	err := r.db.WithContext(ctx).
		Where("topic = ?", topic).
		Order("RANDOM()").
		Limit(limit).
		Find(&questions).Error
	if err != nil {
		return nil, err
	}
	return questions, nil
}

// ListTopics возвращает темы, для которых есть вопросы
func (r *QuestionRepo) ListTopics(ctx context.Context) ([]string, error) {
	var topics []string
	err := r.db.WithContext(ctx).
		Model(&entity.Question{}).
		Distinct("topic").
		Order("topic").
		Pluck("topic", &topics).Error
	return topics, err
}

// CountByTopic возвращает количество вопросов темы
func (r *QuestionRepo) CountByTopic(ctx context.Context, topic string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Question{}).
		Where("topic = ?", topic).
		Count(&count).Error
	return count, err
}
