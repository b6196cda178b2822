package errors

import "errors"

// Общие ошибки приложения
var (
	// ErrNotFound используется, когда запись или ресурс не найдены.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized используется для ошибок авторизации (неверный тикет).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation используется для ошибок валидации входных данных.
	ErrValidation = errors.New("validation failed")

	// ErrExpiredToken используется, когда тикет истек.
	ErrExpiredToken = errors.New("token is expired")

	// ErrConflict используется для конфликтов состояния.
	ErrConflict = errors.New("resource state conflict")
)

// Ошибки дуэлей
var (
	// ErrUnknownTopic - тема отсутствует в каталоге.
	ErrUnknownTopic = errors.New("unknown topic")

	// ErrAlreadyQueued - у пользователя уже есть заявка в очереди.
	ErrAlreadyQueued = errors.New("user is already waiting for a match")

	// ErrAlreadyInGame - пользователь уже участвует в активной дуэли.
	ErrAlreadyInGame = errors.New("user is already in an active game")

	// ErrNotParticipant - пользователь или соединение не относятся к указанной дуэли.
	ErrNotParticipant = errors.New("not a participant of this game")

	// ErrInvalidAnswer - ответ вне набора A-D.
	ErrInvalidAnswer = errors.New("invalid answer option")

	// ErrNotEnoughQuestions - в банке недостаточно вопросов по теме.
	ErrNotEnoughQuestions = errors.New("not enough questions for topic")
)
