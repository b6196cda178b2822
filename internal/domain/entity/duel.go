package entity

import (
	"time"
)

// Статусы дуэли
const (
	DuelStatusInProgress = "in_progress"
	DuelStatusCompleted  = "completed"
)

// Причины завершения дуэли
const (
	DuelEndCompleted    = "completed"
	DuelEndForfeit      = "forfeit"
	DuelEndDisconnect   = "disconnect"
	DuelEndReadyTimeout = "ready_timeout"
	DuelEndShutdown     = "shutdown"
)

// DuelSession - долговременная запись о дуэли двух игроков
type DuelSession struct {
	ID            string            `gorm:"type:uuid;primaryKey" json:"id"`
	Topic         string            `gorm:"size:100;not null;index" json:"topic"`
	Player1ID     uint              `gorm:"not null;index" json:"player1_id"`
	Player2ID     uint              `gorm:"not null;index" json:"player2_id"`
	Status        string            `gorm:"size:20;not null;default:'in_progress'" json:"status"`
	WinnerID      *uint             `json:"winner_id"`
	EndReason     string            `gorm:"size:30;not null;default:''" json:"end_reason,omitempty"`
	QuestionCount int               `gorm:"not null;default:0" json:"question_count"`
	Participants  []DuelParticipant `gorm:"foreignKey:SessionID" json:"participants,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
}

// TableName определяет имя таблицы для GORM
func (DuelSession) TableName() string {
	return "duel_sessions"
}

// IsCompleted возвращает true, если дуэль завершена
func (s *DuelSession) IsCompleted() bool {
	return s.Status == DuelStatusCompleted
}

// Opponent возвращает ID соперника для userID (0, если userID не участник)
func (s *DuelSession) Opponent(userID uint) uint {
	switch userID {
	case s.Player1ID:
		return s.Player2ID
	case s.Player2ID:
		return s.Player1ID
	}
	return 0
}

// Outcome возвращает исход дуэли для userID: "win", "loss" или "draw"
func (s *DuelSession) Outcome(userID uint) string {
	if s.WinnerID == nil {
		return "draw"
	}
	if *s.WinnerID == userID {
		return "win"
	}
	return "loss"
}

// DuelParticipant - счетчик очков игрока в рамках дуэли
type DuelParticipant struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	SessionID string    `gorm:"type:uuid;not null;uniqueIndex:idx_duel_participant" json:"session_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_duel_participant" json:"user_id"`
	Username  string    `gorm:"size:50;not null;default:''" json:"username"`
	Score     int       `gorm:"not null;default:0" json:"score"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (DuelParticipant) TableName() string {
	return "duel_participants"
}

// DefaultDuelRating - стартовый рейтинг Эло
const DefaultDuelRating = 1200

// DuelRating - рейтинг игрока в дуэлях
type DuelRating struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Rating    int       `gorm:"not null;default:1200;index" json:"rating"`
	Wins      int       `gorm:"not null;default:0" json:"wins"`
	Losses    int       `gorm:"not null;default:0" json:"losses"`
	Draws     int       `gorm:"not null;default:0" json:"draws"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (DuelRating) TableName() string {
	return "duel_ratings"
}

// GamesPlayed возвращает общее количество сыгранных дуэлей
func (r *DuelRating) GamesPlayed() int {
	return r.Wins + r.Losses + r.Draws
}
