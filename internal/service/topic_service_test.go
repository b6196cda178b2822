package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Akhilsri/SheetSolver-sub000/internal/domain/entity"
	apperrors "github.com/Akhilsri/SheetSolver-sub000/internal/pkg/errors"
)

// ============================================================================
// Моки для TopicService
// ============================================================================

type MockQuestionRepo struct {
	mock.Mock
}

func (m *MockQuestionRepo) Create(question *entity.Question) error {
	return m.Called(question).Error(0)
}

func (m *MockQuestionRepo) CreateBatch(questions []entity.Question) error {
	return m.Called(questions).Error(0)
}

func (m *MockQuestionRepo) GetByID(id uint) (*entity.Question, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Question), args.Error(1)
}

func (m *MockQuestionRepo) GetRandomByTopic(ctx context.Context, topic string, limit int) ([]entity.Question, error) {
	args := m.Called(ctx, topic, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Question), args.Error(1)
}

func (m *MockQuestionRepo) ListTopics(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockQuestionRepo) CountByTopic(ctx context.Context, topic string) (int64, error) {
	args := m.Called(ctx, topic)
	return args.Get(0).(int64), args.Error(1)
}

type MockTopicCache struct {
	mock.Mock
}

func (m *MockTopicCache) GetTopics(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockTopicCache) SetTopics(ctx context.Context, topics []string, ttl time.Duration) error {
	return m.Called(ctx, topics, ttl).Error(0)
}

func (m *MockTopicCache) InvalidateTopics(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// ============================================================================
// Тесты
// ============================================================================

func TestTopicService_ConfiguredTopicsKnownBeforeRefresh(t *testing.T) {
	svc := NewTopicService(new(MockQuestionRepo), nil, []string{"Graphs", "Arrays"}, time.Minute)

	assert.True(t, svc.IsKnown("Graphs"))
	assert.False(t, svc.IsKnown("graphs"), "Сравнение тем чувствительно к регистру")
	assert.Equal(t, []string{"Arrays", "Graphs"}, svc.Topics())
}

func TestTopicService_RefreshMergesBankTopicsAndCaches(t *testing.T) {
	// Arrange
	repo := new(MockQuestionRepo)
	cache := new(MockTopicCache)
	cache.On("GetTopics", mock.Anything).Return(nil, apperrors.ErrNotFound)
	repo.On("ListTopics", mock.Anything).Return([]string{"Trees", "Graphs"}, nil)
	cache.On("SetTopics", mock.Anything, []string{"Trees", "Graphs"}, time.Minute).Return(nil)
	svc := NewTopicService(repo, cache, []string{"Graphs"}, time.Minute)

	// Act
	err := svc.Refresh(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"Graphs", "Trees"}, svc.Topics())
	assert.True(t, svc.IsKnown("Trees"))
	cache.AssertExpectations(t)
}

func TestTopicService_CacheHitSkipsDatabase(t *testing.T) {
	repo := new(MockQuestionRepo)
	cache := new(MockTopicCache)
	cache.On("GetTopics", mock.Anything).Return([]string{"Strings"}, nil)
	svc := NewTopicService(repo, cache, nil, time.Minute)

	require.NoError(t, svc.Refresh(context.Background()))

	assert.True(t, svc.IsKnown("Strings"))
	repo.AssertNotCalled(t, "ListTopics", mock.Anything)
}

func TestTopicService_BankErrorKeepsSnapshot(t *testing.T) {
	repo := new(MockQuestionRepo)
	repo.On("ListTopics", mock.Anything).Return([]string{"Trees"}, nil).Once()
	repo.On("ListTopics", mock.Anything).Return(nil, errors.New("db down"))
	svc := NewTopicService(repo, nil, []string{"Graphs"}, 0)

	require.NoError(t, svc.Refresh(context.Background()))
	err := svc.Refresh(context.Background())

	assert.Error(t, err)
	assert.True(t, svc.IsKnown("Trees"), "Предыдущий снимок сохраняется при ошибке")
	assert.True(t, svc.IsKnown("Graphs"))
}

func TestTopicService_Invalidate(t *testing.T) {
	repo := new(MockQuestionRepo)
	cache := new(MockTopicCache)
	cache.On("InvalidateTopics", mock.Anything).Return(nil)
	cache.On("GetTopics", mock.Anything).Return(nil, apperrors.ErrNotFound)
	repo.On("ListTopics", mock.Anything).Return([]string{"Heaps"}, nil)
	cache.On("SetTopics", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	svc := NewTopicService(repo, cache, nil, time.Minute)

	require.NoError(t, svc.Invalidate(context.Background()))

	assert.True(t, svc.IsKnown("Heaps"))
	cache.AssertCalled(t, "InvalidateTopics", mock.Anything)
}
