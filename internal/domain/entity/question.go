package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// AnswerLetters - буквенные обозначения вариантов ответа в порядке индексов
var AnswerLetters = []string{"A", "B", "C", "D"}

// StringArray - пользовательский тип для работы с JSONB
type StringArray []string

// Scan реализует интерфейс sql.Scanner для StringArray
// Используется GORM для чтения JSONB данных из базы
func (o *StringArray) Scan(value interface{}) error {
	if value == nil {
		*o = StringArray{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to unmarshal JSONB value: expected []byte or string")
	}

	if len(bytes) == 0 {
		*o = StringArray{}
		return nil
	}

	return json.Unmarshal(bytes, o)
}

// Value реализует интерфейс driver.Valuer для StringArray
func (o StringArray) Value() (driver.Value, error) {
	if len(o) == 0 {
		return []byte("[]"), nil // Пустой JSON массив вместо null
	}
	return json.Marshal(o)
}

// Question представляет вопрос из банка вопросов дуэлей
type Question struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	Topic         string      `gorm:"size:100;not null;index" json:"topic"`
	Text          string      `gorm:"size:1000;not null" json:"text"`
	Options       StringArray `gorm:"type:jsonb;not null" json:"options"`
	CorrectOption int         `gorm:"not null" json:"-"` // Скрыто от клиента
	PointValue    int         `gorm:"not null;default:10" json:"point_value"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Question) TableName() string {
	return "questions"
}

// IsCorrect проверяет, является ли выбранный вариант правильным
func (q *Question) IsCorrect(selectedOption int) bool {
	return selectedOption == q.CorrectOption
}

// IsCorrectLetter проверяет ответ, заданный буквой A-D
func (q *Question) IsCorrectLetter(letter string) bool {
	idx, ok := OptionIndex(letter)
	return ok && q.IsCorrect(idx)
}

// CorrectLetter возвращает букву правильного ответа ("" если индекс вне A-D)
func (q *Question) CorrectLetter() string {
	if q.CorrectOption < 0 || q.CorrectOption >= len(AnswerLetters) {
		return ""
	}
	return AnswerLetters[q.CorrectOption]
}

// OptionsCount возвращает количество вариантов ответа
func (q *Question) OptionsCount() int {
	return len(q.Options)
}

// IsValidOption проверяет, является ли выбранный вариант допустимым
func (q *Question) IsValidOption(selectedOption int) bool {
	return selectedOption >= 0 && selectedOption < len(q.Options)
}

// OptionIndex переводит букву A-D в индекс варианта.
// Регистр и пробелы по краям не учитываются.
func OptionIndex(letter string) (int, bool) {
	l := strings.ToUpper(strings.TrimSpace(letter))
	for i, candidate := range AnswerLetters {
		if candidate == l {
			return i, true
		}
	}
	return -1, false
}
