package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestion_IsCorrect_CorrectAnswer(t *testing.T) {
	// Arrange
	question := &Question{
		ID:            1,
		Topic:         "Arrays",
		Text:          "Сложность доступа к элементу массива по индексу?",
		Options:       StringArray{"O(n)", "O(1)", "O(log n)", "O(n^2)"},
		CorrectOption: 1,
		PointValue:    10,
	}

	// Act & Assert
	assert.True(t, question.IsCorrect(1), "IsCorrect должен вернуть true для правильного ответа")
	assert.True(t, question.IsCorrectLetter("B"), "Буква B соответствует индексу 1")
	assert.True(t, question.IsCorrectLetter(" b "), "Регистр и пробелы не учитываются")
}

func TestQuestion_IsCorrect_IncorrectAnswer(t *testing.T) {
	// Arrange
	question := &Question{
		ID:            1,
		CorrectOption: 2,
	}

	// Act & Assert
	assert.False(t, question.IsCorrect(0), "IsCorrect должен вернуть false для неправильного ответа")
	assert.False(t, question.IsCorrect(1), "IsCorrect должен вернуть false для неправильного ответа")
	assert.False(t, question.IsCorrect(3), "IsCorrect должен вернуть false для неправильного ответа")
	assert.False(t, question.IsCorrectLetter("A"))
	assert.False(t, question.IsCorrectLetter("E"), "Буква вне A-D никогда не верна")
}

func TestQuestion_IsValidOption(t *testing.T) {
	// Arrange
	question := &Question{
		Options: StringArray{"A", "B", "C", "D"},
	}

	// Act & Assert: валидные опции
	for i := 0; i < 4; i++ {
		assert.True(t, question.IsValidOption(i), "Индекс %d должен быть валидным", i)
	}

	// Assert: невалидные опции
	assert.False(t, question.IsValidOption(-1), "Отрицательный индекс должен быть невалидным")
	assert.False(t, question.IsValidOption(4), "Индекс вне диапазона должен быть невалидным")
}

func TestQuestion_CorrectLetter(t *testing.T) {
	testCases := []struct {
		correct  int
		expected string
	}{
		{0, "A"},
		{3, "D"},
		{4, ""},
		{-1, ""},
	}

	for _, tc := range testCases {
		q := &Question{CorrectOption: tc.correct}
		assert.Equal(t, tc.expected, q.CorrectLetter(), "CorrectOption=%d", tc.correct)
	}
}

func TestOptionIndex(t *testing.T) {
	idx, ok := OptionIndex("C")
	assert.True(t, ok)
	assert.Equal(t, 2, idx)

	idx, ok = OptionIndex("d")
	assert.True(t, ok)
	assert.Equal(t, 3, idx)

	_, ok = OptionIndex("")
	assert.False(t, ok, "Пустая строка не является вариантом ответа")

	_, ok = OptionIndex("AB")
	assert.False(t, ok)
}

func TestQuestion_HidesCorrectOptionInJSON(t *testing.T) {
	// Arrange
	q := Question{ID: 7, Topic: "Trees", Text: "?", Options: StringArray{"a", "b", "c", "d"}, CorrectOption: 2}

	// Act
	data, err := json.Marshal(q)

	// Assert
	require.NoError(t, err)
	assert.NotContains(t, string(data), "correct", "Правильный ответ не должен попадать в JSON")
}

func TestQuestion_OptionsCount(t *testing.T) {
	// Arrange
	testCases := []struct {
		name     string
		options  StringArray
		expected int
	}{
		{"4 варианта", StringArray{"A", "B", "C", "D"}, 4},
		{"2 варианта", StringArray{"Да", "Нет"}, 2},
		{"0 вариантов", StringArray{}, 0},
		{"nil варианты", nil, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			question := &Question{Options: tc.options}
			assert.Equal(t, tc.expected, question.OptionsCount())
		})
	}
}

func TestQuestion_TableName(t *testing.T) {
	question := Question{}
	assert.Equal(t, "questions", question.TableName(), "TableName должен возвращать 'questions'")
}

// Тесты для StringArray (JSONB сериализация)

func TestStringArray_Scan_ValidJSON(t *testing.T) {
	// Arrange
	jsonBytes := []byte(`["Option 1", "Option 2", "Option 3"]`)
	var arr StringArray

	// Act
	err := arr.Scan(jsonBytes)

	// Assert
	require.NoError(t, err, "Scan не должен возвращать ошибку для валидного JSON")
	assert.Len(t, arr, 3, "Должно быть 3 элемента")
	assert.Equal(t, "Option 1", arr[0])
	assert.Equal(t, "Option 2", arr[1])
	assert.Equal(t, "Option 3", arr[2])
}

func TestStringArray_Scan_NullValue(t *testing.T) {
	// Arrange
	var arr StringArray

	// Act
	err := arr.Scan(nil)

	// Assert
	require.NoError(t, err, "Scan не должен возвращать ошибку для nil")
	assert.Len(t, arr, 0, "Для nil должен вернуться пустой массив")
}

func TestStringArray_Scan_EmptyBytes(t *testing.T) {
	// Arrange
	var arr StringArray

	// Act
	err := arr.Scan([]byte{})

	// Assert
	require.NoError(t, err, "Scan не должен возвращать ошибку для пустого массива байт")
	assert.Len(t, arr, 0, "Для пустых байт должен вернуться пустой массив")
}

func TestStringArray_Scan_StringValue(t *testing.T) {
	// Arrange
	var arr StringArray

	// Act: некоторые драйверы отдают jsonb строкой
	err := arr.Scan(`["x","y"]`)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, StringArray{"x", "y"}, arr)
}

func TestStringArray_Scan_InvalidType(t *testing.T) {
	// Arrange
	var arr StringArray

	// Act: передаём неподдерживаемый тип
	err := arr.Scan(42)

	// Assert
	assert.Error(t, err, "Scan должен возвращать ошибку для неподдерживаемого типа")
}

func TestStringArray_Value_NonEmpty(t *testing.T) {
	// Arrange
	arr := StringArray{"A", "B", "C"}

	// Act
	val, err := arr.Value()

	// Assert
	require.NoError(t, err, "Value не должен возвращать ошибку")

	bytes, ok := val.([]byte)
	require.True(t, ok, "Value должен возвращать []byte")
	assert.Equal(t, `["A","B","C"]`, string(bytes), "JSON должен быть корректным")
}

func TestStringArray_Value_Empty(t *testing.T) {
	// Arrange
	arr := StringArray{}

	// Act
	val, err := arr.Value()

	// Assert
	require.NoError(t, err, "Value не должен возвращать ошибку для пустого массива")

	bytes, ok := val.([]byte)
	require.True(t, ok, "Value должен возвращать []byte")
	assert.Equal(t, "[]", string(bytes), "Пустой массив должен сериализоваться в []")
}

func TestStringArray_Value_Nil(t *testing.T) {
	// Arrange
	var arr StringArray = nil

	// Act
	val, err := arr.Value()

	// Assert
	require.NoError(t, err, "Value не должен возвращать ошибку для nil")

	bytes, ok := val.([]byte)
	require.True(t, ok, "Value должен возвращать []byte")
	assert.Equal(t, "[]", string(bytes), "nil должен сериализоваться в []")
}
