package dto

import (
	"time"

	"github.com/Akhilsri/SheetSolver-sub000/internal/domain/entity"
)

// ParticipantResponse представляет участника дуэли
type ParticipantResponse struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Score    int    `json:"score"`
}

// DuelSessionResponse представляет дуэль в формате для ответа клиенту
type DuelSessionResponse struct {
	ID            string                `json:"id"`
	Topic         string                `json:"topic"`
	Status        string                `json:"status"`
	WinnerID      *uint                 `json:"winner_id"`
	EndReason     string                `json:"end_reason,omitempty"`
	QuestionCount int                   `json:"question_count"`
	Participants  []ParticipantResponse `json:"participants"`
	CreatedAt     time.Time             `json:"created_at"`
	CompletedAt   *time.Time            `json:"completed_at,omitempty"`
}

// DuelHistoryItem - строка истории дуэлей с точки зрения одного игрока
type DuelHistoryItem struct {
	GameID           string     `json:"game_id"`
	Topic            string     `json:"topic"`
	OpponentID       uint       `json:"opponent_id"`
	OpponentUsername string     `json:"opponent_username"`
	MyScore          int        `json:"my_score"`
	OpponentScore    int        `json:"opponent_score"`
	Outcome          string     `json:"outcome"`
	EndReason        string     `json:"end_reason"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// PaginatedHistoryResponse представляет пагинированную историю дуэлей
type PaginatedHistoryResponse struct {
	Duels   []DuelHistoryItem `json:"duels"`
	Total   int64             `json:"total"`
	Page    int               `json:"page"`
	PerPage int               `json:"per_page"`
}

// LeaderboardEntry - строка таблицы рейтинга
type LeaderboardEntry struct {
	Rank        int  `json:"rank"`
	UserID      uint `json:"user_id"`
	Rating      int  `json:"rating"`
	Wins        int  `json:"wins"`
	Losses      int  `json:"losses"`
	Draws       int  `json:"draws"`
	GamesPlayed int  `json:"games_played"`
}

// LeaderboardResponse представляет страницу таблицы рейтинга
type LeaderboardResponse struct {
	Players []LeaderboardEntry `json:"players"`
	Total   int64              `json:"total"`
	Page    int                `json:"page"`
	PerPage int                `json:"per_page"`
}

// NewDuelSessionResponse создает DTO дуэли
func NewDuelSessionResponse(s *entity.DuelSession) *DuelSessionResponse {
	if s == nil {
		return nil
	}
	participants := make([]ParticipantResponse, 0, len(s.Participants))
	for _, p := range s.Participants {
		participants = append(participants, ParticipantResponse{UserID: p.UserID, Username: p.Username, Score: p.Score})
	}
	return &DuelSessionResponse{
		ID:            s.ID,
		Topic:         s.Topic,
		Status:        s.Status,
		WinnerID:      s.WinnerID,
		EndReason:     s.EndReason,
		QuestionCount: s.QuestionCount,
		Participants:  participants,
		CreatedAt:     s.CreatedAt,
		CompletedAt:   s.CompletedAt,
	}
}

// NewDuelHistoryItem создает строку истории для userID
func NewDuelHistoryItem(s *entity.DuelSession, userID uint) DuelHistoryItem {
	item := DuelHistoryItem{
		GameID:      s.ID,
		Topic:       s.Topic,
		OpponentID:  s.Opponent(userID),
		Outcome:     s.Outcome(userID),
		EndReason:   s.EndReason,
		CompletedAt: s.CompletedAt,
	}
	for _, p := range s.Participants {
		switch p.UserID {
		case userID:
			item.MyScore = p.Score
		case item.OpponentID:
			item.OpponentScore = p.Score
			item.OpponentUsername = p.Username
		}
	}
	return item
}

// NewDuelHistory создает список строк истории
func NewDuelHistory(sessions []entity.DuelSession, userID uint) []DuelHistoryItem {
	items := make([]DuelHistoryItem, 0, len(sessions))
	for i := range sessions {
		items = append(items, NewDuelHistoryItem(&sessions[i], userID))
	}
	return items
}

// NewLeaderboard создает строки таблицы рейтинга; firstRank - место первой строки страницы
func NewLeaderboard(ratings []entity.DuelRating, firstRank int) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(ratings))
	for i := range ratings {
		r := &ratings[i]
		entries = append(entries, LeaderboardEntry{
			Rank:        firstRank + i,
			UserID:      r.UserID,
			Rating:      r.Rating,
			Wins:        r.Wins,
			Losses:      r.Losses,
			Draws:       r.Draws,
			GamesPlayed: r.GamesPlayed(),
		})
	}
	return entries
}
