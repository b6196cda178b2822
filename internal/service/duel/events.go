package duel

// Входящие события
const (
	EventFindMatch    = "find_match"
	EventPlayerReady  = "player_ready"
	EventSubmitAnswer = "submit_answer"
	EventForfeitMatch = "forfeit_match"
	EventCancelMatch  = "cancel_match"
)

// Исходящие события
const (
	EventWaitingForMatch = "waiting_for_match"
	EventMatchError      = "match_error"
	EventMatchCancelled  = "match_cancelled"
	EventMatchFound      = "match_found"
	EventNewQuestion     = "new_question"
	EventScoreUpdate     = "score_update"
	EventTimesUp         = "times_up"
	EventGameOver        = "game_over"
	EventServerError     = "server:error"
)

// Коды ошибок для server:error
const (
	ErrCodeInvalidAnswer  = "invalid_answer"
	ErrCodeGameNotFound   = "game_not_found"
	ErrCodeNotParticipant = "not_participant"
)

// Тип события во внешнем канале Pub/Sub
const PublishedDuelFinished = "duel.finished"

// WaitingPayload - данные waiting_for_match и match_cancelled
type WaitingPayload struct {
	Topic string `json:"topic"`
}

// MatchErrorPayload - данные match_error
type MatchErrorPayload struct {
	Message string `json:"message"`
}

// PlayerInfo - игрок в match_found
type PlayerInfo struct {
	UserID   uint   `json:"userId"`
	Username string `json:"username"`
}

// MatchFoundPayload - данные match_found
type MatchFoundPayload struct {
	GameID         string       `json:"gameId"`
	GameRoom       string       `json:"gameRoom"`
	Topic          string       `json:"topic"`
	Players        []PlayerInfo `json:"players"`
	TotalQuestions int          `json:"totalQuestions"`
}

// QuestionView - вопрос без правильного ответа
type QuestionView struct {
	ID      uint     `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// NewQuestionPayload - данные new_question
type NewQuestionPayload struct {
	GameID         string       `json:"gameId"`
	Question       QuestionView `json:"question"`
	QuestionNumber int          `json:"questionNumber"`
	TotalQuestions int          `json:"totalQuestions"`
	TimeLimitSec   int          `json:"timeLimitSec"`
}

// PlayerScore - счет игрока в score_update
type PlayerScore struct {
	Score int `json:"score"`
}

// ScoreUpdatePayload - данные score_update
type ScoreUpdatePayload struct {
	GameID  string               `json:"gameId"`
	Players map[uint]PlayerScore `json:"players"`
}

// TimesUpPayload - данные times_up
type TimesUpPayload struct {
	GameID         string `json:"gameId"`
	CorrectAnswer  string `json:"correctAnswer"`
	QuestionNumber int    `json:"questionNumber"`
}

// GameOverPayload - данные game_over. WinnerID равен nil при ничьей.
type GameOverPayload struct {
	GameID   string       `json:"gameId"`
	Scores   map[uint]int `json:"scores"`
	WinnerID *uint        `json:"winnerId"`
	Reason   string       `json:"reason"`
}

// ErrorPayload - данные server:error
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FinishedNotification публикуется в Pub/Sub после завершения записи дуэли
type FinishedNotification struct {
	Type      string       `json:"type"`
	GameID    string       `json:"gameId"`
	Topic     string       `json:"topic"`
	Player1ID uint         `json:"player1Id"`
	Player2ID uint         `json:"player2Id"`
	WinnerID  *uint        `json:"winnerId"`
	Reason    string       `json:"reason"`
	Scores    map[uint]int `json:"scores"`
}
