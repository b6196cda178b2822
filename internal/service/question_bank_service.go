package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Akhilsri/SheetSolver-sub000/internal/domain/entity"
	"github.com/Akhilsri/SheetSolver-sub000/internal/domain/repository"
	apperrors "github.com/Akhilsri/SheetSolver-sub000/internal/pkg/errors"
)

// QuestionInput - вопрос для загрузки в банк.
// Правильный ответ задается буквой (Correct) или индексом (CorrectOption).
type QuestionInput struct {
	Topic         string   `json:"topic"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	Correct       string   `json:"correct,omitempty"`
	CorrectOption *int     `json:"correct_option,omitempty"`
	PointValue    int      `json:"point_value,omitempty"`
}

// toEntity проверяет вопрос и преобразует его в entity.Question
func (in QuestionInput) toEntity() (entity.Question, error) {
	topic := strings.TrimSpace(in.Topic)
	text := strings.TrimSpace(in.Text)
	if topic == "" || text == "" {
		return entity.Question{}, fmt.Errorf("topic and text are required")
	}
	if len(in.Options) != len(entity.AnswerLetters) {
		return entity.Question{}, fmt.Errorf("exactly %d options are required, got %d", len(entity.AnswerLetters), len(in.Options))
	}
	for i, opt := range in.Options {
		if strings.TrimSpace(opt) == "" {
			return entity.Question{}, fmt.Errorf("option %s is empty", entity.AnswerLetters[i])
		}
	}

	correct := -1
	switch {
	case in.CorrectOption != nil:
		correct = *in.CorrectOption
	case in.Correct != "":
		if idx, ok := entity.OptionIndex(in.Correct); ok {
			correct = idx
		}
	}
	if correct < 0 || correct >= len(in.Options) {
		return entity.Question{}, fmt.Errorf("correct answer is missing or out of range")
	}

	points := in.PointValue
	if points <= 0 {
		points = 10
	}
	return entity.Question{
		Topic:         topic,
		Text:          text,
		Options:       entity.StringArray(in.Options),
		CorrectOption: correct,
		PointValue:    points,
	}, nil
}

// ParseQuestionsJSON читает массив вопросов в формате JSON
func ParseQuestionsJSON(r io.Reader) ([]QuestionInput, error) {
	var inputs []QuestionInput
	if err := json.NewDecoder(r).Decode(&inputs); err != nil {
		return nil, fmt.Errorf("%w: invalid questions JSON: %v", apperrors.ErrValidation, err)
	}
	return inputs, nil
}

// ParseQuestionsXLSX читает вопросы с первого листа книги Excel.
// Колонки: Тема, Вопрос, A, B, C, D, Ответ (буква), Очки (необязательно). Первая строка - заголовок.
func ParseQuestionsXLSX(r io.Reader) ([]QuestionInput, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid xlsx file: %v", apperrors.ErrValidation, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: xlsx file has no sheets", apperrors.ErrValidation)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}

	cell := func(row []string, i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	var inputs []QuestionInput
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		input := QuestionInput{
			Topic:   cell(row, 0),
			Text:    cell(row, 1),
			Options: []string{cell(row, 2), cell(row, 3), cell(row, 4), cell(row, 5)},
			Correct: cell(row, 6),
		}
		if points := cell(row, 7); points != "" {
			if input.PointValue, err = strconv.Atoi(points); err != nil {
				return nil, fmt.Errorf("%w: row %d: invalid points %q", apperrors.ErrValidation, i+1, points)
			}
		}
		inputs = append(inputs, input)
	}
	return inputs, nil
}

// QuestionBankService загружает вопросы в банк и сообщает его состояние
type QuestionBankService struct {
	questionRepo repository.QuestionRepository
	topics       *TopicService // может быть nil
}

// NewQuestionBankService создает сервис банка вопросов
func NewQuestionBankService(questionRepo repository.QuestionRepository, topics *TopicService) *QuestionBankService {
	return &QuestionBankService{questionRepo: questionRepo, topics: topics}
}

// Import проверяет все вопросы и сохраняет их одной транзакцией.
// Возвращает количество загруженных вопросов по темам.
func (s *QuestionBankService) Import(ctx context.Context, inputs []QuestionInput) (map[string]int, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no questions to import", apperrors.ErrValidation)
	}

	questions := make([]entity.Question, 0, len(inputs))
	byTopic := make(map[string]int)
	for i, in := range inputs {
		q, err := in.toEntity()
		if err != nil {
			return nil, fmt.Errorf("%w: question #%d: %v", apperrors.ErrValidation, i+1, err)
		}
		questions = append(questions, q)
		byTopic[q.Topic]++
	}

	if err := s.questionRepo.CreateBatch(questions); err != nil {
		return nil, fmt.Errorf("failed to save questions: %w", err)
	}
	log.Printf("[QuestionBank] Загружено %d вопросов по %d темам", len(questions), len(byTopic))

	// Новые темы должны сразу стать доступны для find_match
	if s.topics != nil {
		if err := s.topics.Invalidate(ctx); err != nil {
			log.Printf("[QuestionBank] Не удалось обновить каталог тем: %v", err)
		}
	}
	return byTopic, nil
}

// TopicCount - количество вопросов темы
type TopicCount struct {
	Topic     string `json:"topic"`
	Questions int64  `json:"questions"`
}

// Stats возвращает количество вопросов по каждой теме банка
func (s *QuestionBankService) Stats(ctx context.Context) ([]TopicCount, error) {
	topics, err := s.questionRepo.ListTopics(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(topics)
	counts := make([]TopicCount, 0, len(topics))
	for _, topic := range topics {
		n, err := s.questionRepo.CountByTopic(ctx, topic)
		if err != nil {
			return nil, fmt.Errorf("failed to count questions for topic %s: %w", topic, err)
		}
		counts = append(counts, TopicCount{Topic: topic, Questions: n})
	}
	return counts, nil
}
