package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Akhilsri/SheetSolver-sub000/internal/domain/entity"
	apperrors "github.com/Akhilsri/SheetSolver-sub000/internal/pkg/errors"
)

func intPtr(v int) *int { return &v }

func TestParseQuestionsJSON(t *testing.T) {
	body := `[
		{"topic":"Trees","text":"Height of a single node?","options":["0","1","2","3"],"correct":"a"},
		{"topic":"Graphs","text":"BFS uses?","options":["Stack","Queue","Heap","Set"],"correct_option":1,"point_value":20}
	]`

	inputs, err := ParseQuestionsJSON(strings.NewReader(body))

	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Equal(t, "a", inputs[0].Correct)
	require.NotNil(t, inputs[1].CorrectOption)
	assert.Equal(t, 1, *inputs[1].CorrectOption)
	assert.Equal(t, 20, inputs[1].PointValue)
}

func TestParseQuestionsJSON_Invalid(t *testing.T) {
	_, err := ParseQuestionsJSON(strings.NewReader(`{"topic":"not an array"}`))

	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestParseQuestionsXLSX(t *testing.T) {
	// Arrange
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"Тема", "Вопрос", "A", "B", "C", "D", "Ответ", "Очки"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"Arrays", "Index of first element?", "0", "1", "-1", "n", "A", 15}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"Strings", "Immutable in Go?", "Yes", "No", "Sometimes", "Never", "a"}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	// Act
	inputs, err := ParseQuestionsXLSX(&buf)

	// Assert
	require.NoError(t, err)
	require.Len(t, inputs, 2, "Строка заголовка пропускается")
	assert.Equal(t, "Arrays", inputs[0].Topic)
	assert.Equal(t, []string{"0", "1", "-1", "n"}, inputs[0].Options)
	assert.Equal(t, 15, inputs[0].PointValue)
	assert.Equal(t, 0, inputs[1].PointValue, "Очки по умолчанию назначаются при импорте")
}

func TestQuestionBankService_Import(t *testing.T) {
	// Arrange
	repo := new(MockQuestionRepo)
	var saved []entity.Question
	repo.On("CreateBatch", mock.Anything).Run(func(args mock.Arguments) {
		saved = args.Get(0).([]entity.Question)
	}).Return(nil).Once()
	svc := NewQuestionBankService(repo, nil)

	inputs := []QuestionInput{
		{Topic: " Trees ", Text: "Q1", Options: []string{"a", "b", "c", "d"}, Correct: "d"},
		{Topic: "Trees", Text: "Q2", Options: []string{"a", "b", "c", "d"}, CorrectOption: intPtr(2), PointValue: 25},
		{Topic: "Graphs", Text: "Q3", Options: []string{"a", "b", "c", "d"}, Correct: "B"},
	}

	// Act
	byTopic, err := svc.Import(context.Background(), inputs)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Trees": 2, "Graphs": 1}, byTopic)
	require.Len(t, saved, 3)
	assert.Equal(t, "Trees", saved[0].Topic, "Тема нормализуется")
	assert.Equal(t, 3, saved[0].CorrectOption)
	assert.Equal(t, 10, saved[0].PointValue, "Очки по умолчанию")
	assert.Equal(t, 2, saved[1].CorrectOption)
	assert.Equal(t, 25, saved[1].PointValue)
	assert.Equal(t, "B", saved[2].CorrectLetter())
	repo.AssertExpectations(t)
}

func TestQuestionBankService_ImportRejectsInvalid(t *testing.T) {
	valid := QuestionInput{Topic: "Trees", Text: "Q", Options: []string{"a", "b", "c", "d"}, Correct: "A"}

	tests := []struct {
		name  string
		input QuestionInput
	}{
		{"missing topic", QuestionInput{Text: "Q", Options: valid.Options, Correct: "A"}},
		{"three options", QuestionInput{Topic: "Trees", Text: "Q", Options: []string{"a", "b", "c"}, Correct: "A"}},
		{"empty option", QuestionInput{Topic: "Trees", Text: "Q", Options: []string{"a", "", "c", "d"}, Correct: "A"}},
		{"bad letter", QuestionInput{Topic: "Trees", Text: "Q", Options: valid.Options, Correct: "E"}},
		{"index out of range", QuestionInput{Topic: "Trees", Text: "Q", Options: valid.Options, CorrectOption: intPtr(4)}},
		{"no answer", QuestionInput{Topic: "Trees", Text: "Q", Options: valid.Options}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockQuestionRepo)
			svc := NewQuestionBankService(repo, nil)

			_, err := svc.Import(context.Background(), []QuestionInput{valid, tt.input})

			assert.ErrorIs(t, err, apperrors.ErrValidation)
			assert.Contains(t, err.Error(), "question #2")
			repo.AssertNotCalled(t, "CreateBatch", mock.Anything)
		})
	}
}

func TestQuestionBankService_ImportRefreshesTopics(t *testing.T) {
	// Arrange
	repo := new(MockQuestionRepo)
	cache := new(MockTopicCache)
	topics := NewTopicService(repo, cache, []string{"Arrays"}, time.Minute)
	svc := NewQuestionBankService(repo, topics)

	repo.On("CreateBatch", mock.Anything).Return(nil).Once()
	cache.On("InvalidateTopics", mock.Anything).Return(nil).Once()
	cache.On("GetTopics", mock.Anything).Return(nil, apperrors.ErrNotFound).Once()
	repo.On("ListTopics", mock.Anything).Return([]string{"Arrays", "Tries"}, nil).Once()
	cache.On("SetTopics", mock.Anything, []string{"Arrays", "Tries"}, mock.Anything).Return(nil).Once()

	// Act
	_, err := svc.Import(context.Background(), []QuestionInput{
		{Topic: "Tries", Text: "Q", Options: []string{"a", "b", "c", "d"}, Correct: "C"},
	})

	// Assert
	require.NoError(t, err)
	assert.True(t, topics.IsKnown("Tries"), "Новая тема должна стать доступной сразу после импорта")
	repo.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestQuestionBankService_ImportStoreError(t *testing.T) {
	repo := new(MockQuestionRepo)
	repo.On("CreateBatch", mock.Anything).Return(errors.New("duplicate key")).Once()
	svc := NewQuestionBankService(repo, nil)

	_, err := svc.Import(context.Background(), []QuestionInput{
		{Topic: "Trees", Text: "Q", Options: []string{"a", "b", "c", "d"}, Correct: "A"},
	})

	assert.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrValidation)
}

func TestQuestionBankService_Stats(t *testing.T) {
	repo := new(MockQuestionRepo)
	repo.On("ListTopics", mock.Anything).Return([]string{"Trees", "Arrays"}, nil)
	repo.On("CountByTopic", mock.Anything, "Arrays").Return(int64(12), nil)
	repo.On("CountByTopic", mock.Anything, "Trees").Return(int64(4), nil)
	svc := NewQuestionBankService(repo, nil)

	stats, err := svc.Stats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []TopicCount{{Topic: "Arrays", Questions: 12}, {Topic: "Trees", Questions: 4}}, stats)
}
